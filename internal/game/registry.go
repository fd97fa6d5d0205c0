package game

import (
	"fmt"
	"sort"
	"sync"

	"social-casino/internal/model"
)

// Registry manages game registration and lookup by variant.
type Registry struct {
	games map[model.GameType]Game
	mu    sync.RWMutex
}

// NewRegistry creates a registry holding the given games.
func NewRegistry(games ...Game) (*Registry, error) {
	r := &Registry{
		games: make(map[model.GameType]Game),
	}
	for _, g := range games {
		if err := r.Register(g); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a game to the registry.
// If a game with the same type already exists, it will be replaced.
func (r *Registry) Register(g Game) error {
	if g == nil {
		return fmt.Errorf("cannot register nil game")
	}
	if !g.Type().Valid() {
		return fmt.Errorf("unknown game type %q", g.Type())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[g.Type()] = g
	return nil
}

// Get retrieves a game by its type.
func (r *Registry) Get(t model.GameType) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[t]
	return g, ok
}

// Types returns the registered game types in sorted order.
func (r *Registry) Types() []model.GameType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]model.GameType, 0, len(r.games))
	for t := range r.games {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
