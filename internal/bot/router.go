package bot

import (
	"context"
	"fmt"
	"sync"

	"devbot/internal/access"
	"devbot/internal/event"
	"devbot/internal/state"
)

// AnyState matches an event regardless of the sender's conversation state.
const AnyState = "*"

// Route binds a handler to events of one kind.
//
// For messages Command is the command name without the slash; an empty
// Command matches plain text only. For callbacks Command is compared to the
// callback data. State is AnyState, "" for senders with no state, or an
// exact state name.
type Route struct {
	Kind    event.Kind
	Command string
	State   string
	Handler access.Handler
}

// Router dispatches events to the first matching route.
type Router struct {
	mu     sync.RWMutex
	routes []Route
	states state.Store
}

func NewRouter(states state.Store) *Router {
	return &Router{states: states}
}

// Handle appends a route. Routes are tried in registration order.
func (r *Router) Handle(route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

// Routes returns a copy of the registered routes.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Dispatch runs the first route matching ev. matched is false when no route
// accepts the event.
func (r *Router) Dispatch(ctx context.Context, ev *event.Event) (matched bool, err error) {
	routes := r.Routes()

	var (
		current string
		loaded  bool
	)
	for _, route := range routes {
		if !route.matchesEvent(ev) {
			continue
		}
		if route.State != AnyState {
			if !loaded {
				current, err = r.states.State(ctx, stateKey(ev))
				if err != nil {
					return false, fmt.Errorf("load state: %w", err)
				}
				loaded = true
			}
			if route.State != current {
				continue
			}
		}
		return true, route.Handler(ctx, ev)
	}
	return false, nil
}

func (route Route) matchesEvent(ev *event.Event) bool {
	if route.Kind != ev.Kind {
		return false
	}
	if ev.Kind == event.KindCallback {
		return route.Command == ev.Text()
	}
	return route.Command == ev.Command()
}

func stateKey(ev *event.Event) state.Key {
	return state.Key{ChatID: ev.ChatID(), UserID: int64(ev.Sender().ID)}
}
