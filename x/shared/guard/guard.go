// Package guard provides the re-entrancy guard held around value-moving calls.
package guard

import (
	"sync"

	errorsmod "cosmossdk.io/errors"
)

// ErrReentrant is returned when a guarded scope is entered while already held.
var ErrReentrant = errorsmod.Register("guard", 40, "re-entrant call")

// Guard tracks which named scopes are currently held. The zero value is not
// usable; create one with New and share the pointer between keeper copies.
type Guard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func New() *Guard {
	return &Guard{held: make(map[string]struct{})}
}

// Enter takes scope and returns the function that releases it. Callers must
// defer the release immediately.
func (g *Guard) Enter(scope string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[scope]; ok {
		return nil, ErrReentrant.Wrap(scope)
	}
	g.held[scope] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, scope)
			g.mu.Unlock()
		})
	}, nil
}

// Held reports whether scope is currently held.
func (g *Guard) Held(scope string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[scope]
	return ok
}
