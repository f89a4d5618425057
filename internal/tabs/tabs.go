// Package tabs tracks which of several mutually exclusive panels is shown.
package tabs

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Standard panel ids.
const (
	Syntax     = "syntax"
	Expansions = "expansions"
	Rules      = "rules"
)

// ErrUnknownTab is returned when activating an id the controller does not hold.
var ErrUnknownTab = errors.New("unknown tab")

// Controller holds an ordered set of tab ids and the active one.
type Controller struct {
	mu     sync.RWMutex
	ids    []string
	active string
}

// New creates a controller over ids. The first id starts active.
// With no ids the standard panels are used.
func New(ids ...string) *Controller {
	if len(ids) == 0 {
		ids = []string{Syntax, Expansions, Rules}
	}
	return &Controller{ids: slices.Clone(ids), active: ids[0]}
}

// Activate shows id and hides every other tab. An unknown id leaves the
// active tab unchanged.
func (c *Controller) Activate(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.ids, id) {
		return fmt.Errorf("%w %q (available: %s)", ErrUnknownTab, id, strings.Join(c.ids, ", "))
	}
	c.active = id
	return nil
}

// Next activates the tab after the active one, wrapping around, and returns it.
func (c *Controller) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.Index(c.ids, c.active)
	c.active = c.ids[(i+1)%len(c.ids)]
	return c.active
}

// Active returns the active id.
func (c *Controller) Active() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Visible reports whether id is the active tab.
func (c *Controller) Visible(id string) bool {
	return c.Active() == id
}

// Tabs returns the ids in display order.
func (c *Controller) Tabs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.ids)
}

var titleCaser = cases.Title(language.English)

// Title returns the display label for id.
func Title(id string) string {
	return titleCaser.String(strings.ReplaceAll(id, "_", " "))
}
