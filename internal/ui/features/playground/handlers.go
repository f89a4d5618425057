package playground

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/macroscope/internal/expansion"
	"github.com/leapstack-labs/macroscope/internal/tabs"
)

// Session cookie name and the key holding the workspace id.
const (
	SessionName  = "macroscope"
	workspaceKey = "workspace"
)

// Handlers provides HTTP handlers for the playground.
type Handlers struct {
	registry     *Registry
	sessionStore sessions.Store
	highlighter  *Highlighter
	isDev        bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(registry *Registry, sessionStore sessions.Store, hl *Highlighter, isDev bool) *Handlers {
	return &Handlers{
		registry:     registry,
		sessionStore: sessionStore,
		highlighter:  hl,
		isDev:        isDev,
	}
}

// workspace returns the caller's workspace, creating one and saving the
// session cookie when the cookie is missing or its workspace was evicted.
// It must run before anything is written to w.
func (h *Handlers) workspace(w http.ResponseWriter, r *http.Request) (*Workspace, error) {
	// A cookie signed with an old secret yields a fresh session and an error.
	session, _ := h.sessionStore.Get(r, SessionName)
	if id, ok := session.Values[workspaceKey].(string); ok {
		if ws, ok := h.registry.Get(id); ok {
			return ws, nil
		}
	}

	ws, err := h.registry.Create(r.Context())
	if err != nil {
		return nil, err
	}
	session.Values[workspaceKey] = ws.ID
	if err := session.Save(r, w); err != nil {
		return nil, err
	}
	return ws, nil
}

// Page renders the playground with the workspace's current output.
func (h *Handlers) Page(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := Page("Playground", h.viewData(ws), h.highlighter, h.isDev).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Changes applies the editor signals to the workspace and schedules a render.
func (h *Handlers) Changes(w http.ResponseWriter, r *http.Request) {
	var signals EditorSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		sse := datastar.NewSSE(w, r)
		_ = sse.ConsoleError(err)
		return
	}

	ws, err := h.workspace(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sourceChanged := ws.Buffer.Set(signals.Source)
	flagChanged := ws.Recursive.Set(signals.Recursive)
	if sourceChanged || flagChanged {
		ws.Pipeline.Notify()
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElementTempl(Status(h.status(ws))); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// Tab activates a panel and patches the tab bar and the panels.
func (h *Handlers) Tab(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := ws.Tabs.Activate(chi.URLParam(r, "tab")); err != nil {
		if errors.Is(err, tabs.ErrUnknownTab) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sse := datastar.NewSSE(w, r)
	data := h.viewData(ws)
	if err := sse.PatchElementTempl(TabBar(data.Tabs, data.Active)); err != nil {
		_ = sse.ConsoleError(err)
		return
	}
	if err := h.sendPanels(sse, data); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// Updates is the long-lived SSE endpoint. It sends the current panels once,
// then again after every render of the workspace.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	updates := ws.Notifier.Subscribe()
	defer ws.Notifier.Unsubscribe(updates)

	sse := datastar.NewSSE(w, r)
	if err := h.sendPanels(sse, h.viewData(ws)); err != nil {
		_ = sse.ConsoleError(err)
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				// Workspace evicted or server shutting down.
				return
			}
			if err := h.sendPanels(sse, h.viewData(ws)); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

// Expand runs the engine once on the text query parameter and returns
// the result as JSON. It does not touch any workspace.
func (h *Handlers) Expand(w http.ResponseWriter, r *http.Request) {
	text := r.FormValue("text")
	recursive := false
	if v := r.FormValue("recursive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ExpandResponse{Error: "invalid recursive value: " + v})
			return
		}
		recursive = b
	}

	result, err := h.registry.Adapter().Parse(r.Context(), text, recursive)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ExpandResponse{Error: err.Error()})
		return
	}

	rules := result.MacroRules
	if rules == nil {
		rules = []string{}
	}
	writeJSON(w, http.StatusOK, ExpandResponse{
		SyntaxNodes: result.SyntaxNodes,
		MacroRules:  rules,
		Tree:        expansion.BuildAll(result.Calls),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) sendPanels(sse *datastar.ServerSentEventGenerator, data ViewData) error {
	if err := sse.PatchElementTempl(SyntaxPanel(data.Syntax, data.Active)); err != nil {
		return err
	}
	if err := sse.PatchElementTempl(ExpansionsPanel(data.Nodes, data.Active, h.highlighter)); err != nil {
		return err
	}
	if err := sse.PatchElementTempl(RulesPanel(data.Rules, data.Active)); err != nil {
		return err
	}
	return sse.PatchElementTempl(Status(data.Status))
}

func (h *Handlers) status(ws *Workspace) StatusData {
	stats := ws.Pipeline.Stats()
	s := StatusData{
		State:       ws.Pipeline.State().String(),
		Invocations: stats.Invocations,
		Dropped:     stats.Dropped,
	}
	if err := ws.View.Err(); err != nil {
		s.LastError = err.Error()
	}
	return s
}

func (h *Handlers) viewData(ws *Workspace) ViewData {
	return ViewData{
		Source:    ws.Buffer.Value(),
		Recursive: ws.Recursive.Checked(),
		Engine:    h.registry.EngineName(),
		Tabs:      ws.Tabs.Tabs(),
		Active:    ws.Tabs.Active(),
		Syntax:    ws.View.Syntax(),
		Nodes:     ws.View.Nodes(),
		Rules:     ws.View.Rules(),
		Status:    h.status(ws),
	}
}
