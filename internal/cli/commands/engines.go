package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/macroscope/internal/cli/output"
	"github.com/leapstack-labs/macroscope/pkg/engine"
)

// NewEnginesCommand creates the engines command.
func NewEnginesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the available macro engines",
		Long: `List every registered macro engine with the response protocol it
speaks. The engine in use is selected with engine.type or --engine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutEngine(cmd)
			return listEngines(cc.Renderer, cc.Cfg.Engine.Type)
		},
	}
}

// EngineView is the JSON shape of one engine row.
type EngineView struct {
	Name        string `json:"name"`
	Protocol    string `json:"protocol"`
	Description string `json:"description"`
	Selected    bool   `json:"selected"`
}

func listEngines(r *output.Renderer, selected string) error {
	infos := engine.Describe()

	views := make([]EngineView, len(infos))
	rows := make([][]string, len(infos))
	for i, info := range infos {
		views[i] = EngineView{
			Name:        info.Name,
			Protocol:    info.Protocol,
			Description: info.Description,
			Selected:    info.Name == selected,
		}
		mark := ""
		if views[i].Selected {
			mark = "*"
		}
		rows[i] = []string{mark, info.Name, info.Protocol, info.Description}
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(views)
	}
	r.Table([]string{"", "Engine", "Protocol", "Description"}, rows)
	return nil
}
