// Package suppress decides whether a would-be notification is dropped
// before it is ever formatted or delivered.
package suppress

import (
	"log/slog"
	"strings"

	"github.com/wikirelay/wikirelay/internal/config"
	"github.com/wikirelay/wikirelay/internal/domain/event"
)

// Filter evaluates the configured drop lists. A malformed list in the
// configuration leaves that dimension fully open; the filter only ever
// sees normalized sets.
type Filter struct {
	hooks      map[string]struct{}
	namespaces map[int]struct{}
	users      map[string]struct{}
}

// NewFilter builds a Filter from the suppression config. Malformed
// dimensions are logged once here and left empty (nothing suppressed on
// that dimension).
func NewFilter(cfg config.Suppression, log *slog.Logger) *Filter {
	f := &Filter{
		hooks:      make(map[string]struct{}, len(cfg.Hooks.Values)),
		namespaces: make(map[int]struct{}, len(cfg.Namespaces.Values)),
		users:      make(map[string]struct{}, len(cfg.Users.Values)),
	}

	if cfg.Hooks.Malformed {
		log.Warn("suppression.hooks is not a list; all hooks are enabled")
	} else {
		for _, h := range cfg.Hooks.Values {
			f.hooks[strings.ToLower(h)] = struct{}{}
		}
	}

	if cfg.Namespaces.Malformed {
		log.Warn("suppression.namespaces is not a list; all namespaces are enabled")
	} else {
		for _, ns := range cfg.Namespaces.Values {
			f.namespaces[ns] = struct{}{}
		}
	}

	if cfg.Users.Malformed {
		log.Warn("suppression.users is not a list; all users can trigger messages")
	} else {
		for _, u := range cfg.Users.Values {
			f.users[u] = struct{}{}
		}
	}

	return f
}

// Suppressed reports whether an event for the given hook kind, namespace
// and actor must be dropped. Hook names match case-insensitively; user
// names match exactly. A nil namespace or actor skips that check.
func (f *Filter) Suppressed(hookKind string, namespace *int, actor *event.Actor) bool {
	if _, ok := f.hooks[strings.ToLower(hookKind)]; ok {
		return true
	}
	if namespace != nil {
		if _, ok := f.namespaces[*namespace]; ok {
			return true
		}
	}
	if actor != nil && actor.Name != "" {
		if _, ok := f.users[actor.Name]; ok {
			return true
		}
	}
	return false
}
