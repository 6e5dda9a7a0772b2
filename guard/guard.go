// Package guard decides which screens of the client are reachable for the
// current session and keeps track of the screen being shown.
package guard

import (
	"strings"
	"sync"

	"github.com/byuoitav/functions/session"
)

// Route names a screen of the client
type Route string

const (
	Home         Route = "/"
	Login        Route = "/login"
	Register     Route = "/register"
	Functions    Route = "/functions"
	FunctionNew  Route = "/functions/new"
	FunctionEdit Route = "/functions/:id/edit"
	FunctionPlot Route = "/functions/:id/plot"
)

var protected = map[Route]bool{
	Functions:    true,
	FunctionNew:  true,
	FunctionEdit: true,
	FunctionPlot: true,
}

// Protected returns true if the route requires a signed in user
func Protected(r Route) bool {
	return protected[r]
}

// Resolve returns the route that should actually be shown when r is requested
// in the given session state
func Resolve(r Route, st session.State) Route {
	if Protected(r) && st.Anonymous() {
		return Login
	}

	return r
}

// Path fills the :id placeholder of r
func Path(r Route, id string) string {
	return strings.Replace(string(r), ":id", id, 1)
}

// Navigator holds the route currently shown
type Navigator struct {
	current   Route
	listeners []func(Route)
	mu        sync.Mutex
}

// NewNavigator returns a Navigator showing start
func NewNavigator(start Route) *Navigator {
	return &Navigator{current: start}
}

// Current returns the route being shown
func (n *Navigator) Current() Route {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.current
}

// OnNavigate registers fn to run after every route change
func (n *Navigator) OnNavigate(fn func(Route)) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.listeners = append(n.listeners, fn)
}

// Navigate shows r. Navigating to the route already shown does nothing and
// returns false, which makes repeated forced sign outs harmless.
func (n *Navigator) Navigate(r Route) bool {
	n.mu.Lock()
	if n.current == r {
		n.mu.Unlock()
		return false
	}

	n.current = r
	listeners := make([]func(Route), len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(r)
	}

	return true
}
