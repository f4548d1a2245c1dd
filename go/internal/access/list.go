// Package access tracks operators, the allow-list, and the restricted-connections
// toggle (the whitelist) consulted when players connect.
package access

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/resolver"
)

// List is safe for concurrent use.
type List struct {
	restricted atomic.Bool

	mu        sync.RWMutex
	operators map[string]struct{}
	allowed   map[string]struct{}
}

// NewList creates a List. Names are matched case-insensitively.
func NewList(operators, allowed []string, restricted bool) *List {
	l := &List{
		operators: make(map[string]struct{}),
		allowed:   make(map[string]struct{}),
	}
	for _, name := range operators {
		l.operators[normalize(name)] = struct{}{}
	}
	for _, name := range allowed {
		l.allowed[normalize(name)] = struct{}{}
	}
	l.restricted.Store(restricted)
	return l
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsOperator reports whether id holds elevated privilege.
func (l *List) IsOperator(id resolver.Identity) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.operators[id.Key()]
	return ok
}

// IsAllowListed reports whether id is on the allow-list.
func (l *List) IsAllowListed(id resolver.Identity) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.allowed[id.Key()]
	return ok
}

// Allow adds name to the allow-list.
func (l *List) Allow(name string) {
	l.mu.Lock()
	l.allowed[normalize(name)] = struct{}{}
	l.mu.Unlock()
}

// Revoke removes name from the allow-list.
func (l *List) Revoke(name string) {
	l.mu.Lock()
	delete(l.allowed, normalize(name))
	l.mu.Unlock()
}

// Restricted reports whether only operators and allow-listed players may join.
func (l *List) Restricted() bool {
	return l.restricted.Load()
}

// SetRestricted turns the whitelist on or off. It is idempotent.
func (l *List) SetRestricted(restricted bool) {
	if l.restricted.Swap(restricted) != restricted {
		log.Info().Bool("restricted", restricted).Msg("whitelist toggled")
	}
}

// Permits reports whether id may join under the current restriction.
func (l *List) Permits(id resolver.Identity) bool {
	if !l.Restricted() {
		return true
	}
	return l.IsOperator(id) || l.IsAllowListed(id)
}
