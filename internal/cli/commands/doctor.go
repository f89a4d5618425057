package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/macroscope/internal/adapter"
	"github.com/leapstack-labs/macroscope/internal/cli/config"
	"github.com/leapstack-labs/macroscope/internal/cli/output"
	intconfig "github.com/leapstack-labs/macroscope/internal/config"
	"github.com/leapstack-labs/macroscope/internal/expansion"
	"github.com/leapstack-labs/macroscope/pkg/engine"
)

// doctorTimeout bounds each smoke parse.
const doctorTimeout = 10 * time.Second

// doctorSample defines and calls one macro, with a nested call for the
// recursive check.
const doctorSample = `macro_rules! twice { ($e:expr) => { $e + $e }; }
macro_rules! quad { ($e:expr) => { twice!(twice!($e)) }; }
fn main() { let x = quad!(1); }
`

// Check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration and the selected engine",
		Long: `Check that macroscope can render in this project.

The doctor command verifies:
- the config file and its settings
- the engine selection and its script or command
- a plain and a recursive parse of a small sample

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run the checks
  macroscope doctor

  # Check a starlark script
  macroscope doctor --engine starlark --script macros.star -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutEngine(cmd)
			out := runDoctorChecks(cmd.Context(), cc)
			if err := renderDoctor(cc.Renderer, out); err != nil {
				return err
			}
			if out.Failed() {
				return fmt.Errorf("%d check(s) failed", out.count(statusError))
			}
			return nil
		},
	}
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	ConfigFile string        `json:"config_file,omitempty"`
	Engine     string        `json:"engine"`
	Checks     []HealthCheck `json:"checks"`
}

// HealthCheck represents a single check result.
type HealthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// Failed reports whether any check errored.
func (o *DoctorOutput) Failed() bool {
	return o.count(statusError) > 0
}

func (o *DoctorOutput) count(status string) int {
	n := 0
	for _, c := range o.Checks {
		if c.Status == status {
			n++
		}
	}
	return n
}

func (o *DoctorOutput) add(name, status, details string) {
	o.Checks = append(o.Checks, HealthCheck{Name: name, Status: status, Details: details})
}

func runDoctorChecks(ctx context.Context, cc *CommandContext) *DoctorOutput {
	cfg := cc.Cfg
	out := &DoctorOutput{
		ConfigFile: config.GetConfigFileUsed(),
		Engine:     cfg.Engine.Type,
	}

	if out.ConfigFile != "" {
		out.add("config file", statusPass, out.ConfigFile)
	} else {
		out.add("config file", statusWarn, "none found, using defaults (run 'macroscope init')")
	}

	if cfg.Scheduler.MinInterval < 100*time.Millisecond {
		out.add("scheduler interval", statusWarn, fmt.Sprintf("%s renders on almost every keystroke", cfg.Scheduler.MinInterval))
	} else {
		out.add("scheduler interval", statusPass, cfg.Scheduler.MinInterval.String())
	}

	if err := intconfig.ValidateEngine(&cfg.Engine); err != nil {
		out.add("engine", statusError, err.Error())
		return out
	}
	if err := intconfig.CheckScript(&cfg.Engine); err != nil {
		out.add("engine script", statusError, firstLine(err.Error()))
		return out
	}

	eng, err := engine.New(cfg.Engine, cc.Logger)
	if err != nil {
		out.add("engine", statusError, err.Error())
		return out
	}
	out.add("engine", statusPass, eng.Name())

	a := adapter.New(eng, cc.Logger)
	for _, recursive := range []bool{false, true} {
		name := "parse"
		if recursive {
			name = "recursive parse"
		}
		status, details := smokeParse(ctx, a, recursive)
		out.add(name, status, details)
	}
	return out
}

func smokeParse(ctx context.Context, a *adapter.Adapter, recursive bool) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	start := time.Now()
	res, err := a.Parse(ctx, doctorSample, recursive)
	if err != nil {
		return statusError, err.Error()
	}
	elapsed := time.Since(start).Round(time.Millisecond)

	nodes := expansion.BuildAll(res.Calls)
	details := fmt.Sprintf("%d call(s), %d node(s) in %s", len(nodes), expansion.Count(nodes), elapsed)
	switch {
	case res.SyntaxNodes == "":
		return statusWarn, "engine returned an empty syntax tree"
	case len(nodes) == 0:
		return statusWarn, details + "; the engine reported no expansions"
	default:
		return statusPass, details
	}
}

func renderDoctor(r *output.Renderer, out *DoctorOutput) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	return nil
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("Macroscope Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	for _, c := range out.Checks {
		status := "success"
		switch c.Status {
		case statusWarn:
			status = "warn"
		case statusError:
			status = "error"
		}
		r.StatusLine(c.Name, status, c.Details)
	}
	r.Println("")

	switch {
	case out.Failed():
		r.Println(styles.Error.Render(fmt.Sprintf("   %d check(s) failed", out.count(statusError))))
	case out.count(statusWarn) > 0:
		r.Println(styles.Warning.Render(fmt.Sprintf("   %d warning(s)", out.count(statusWarn))))
	default:
		r.Println(styles.Success.Render("   All checks passed"))
	}
	r.Println("")
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println("# Macroscope Health Report")
	r.Println("")
	r.Println("| Check | Status | Details |")
	r.Println("|-------|--------|---------|")
	for _, c := range out.Checks {
		r.Printf("| %s | %s | %s |\n", c.Name, c.Status, strings.ReplaceAll(c.Details, "|", "\\|"))
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
