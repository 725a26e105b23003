package core

import (
	"slices"
	"strings"
	"sync"
)

// SavingLink ties a savings account to the current account it is usually fed from.
type SavingLink struct {
	Savings string
	Current string
}

// AccountRegistry holds the ordered current and savings account lists.
//
// It does no I/O: callers persist the settings document after a mutation
// that returned true.
type AccountRegistry struct {
	mu      sync.RWMutex
	current []string
	savings []string
	links   []SavingLink
}

// NewAccountRegistry builds a registry from persisted lists, dropping blanks and duplicates.
func NewAccountRegistry(current, savings []string) *AccountRegistry {
	r := &AccountRegistry{}
	for _, n := range current {
		r.Add(Current, n)
	}
	for _, n := range savings {
		r.Add(Savings, n)
	}
	return r
}

func (r *AccountRegistry) list(kind AccountKind) *[]string {
	if kind == Savings {
		return &r.savings
	}
	return &r.current
}

// Accounts returns the names of the given kind in insertion order.
func (r *AccountRegistry) Accounts(kind AccountKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(*r.list(kind))
}

// Contains reports whether name is registered under kind (exact match).
func (r *AccountRegistry) Contains(kind AccountKind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(*r.list(kind), name)
}

// Add appends name to kind. Blank or already present names are ignored.
func (r *AccountRegistry) Add(kind AccountKind, name string) bool {
	if !kind.Valid() || strings.TrimSpace(name) == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.list(kind)
	if slices.Contains(*l, name) {
		return false
	}
	*l = append(*l, name)
	return true
}

// Remove deletes name from kind. Rows referencing it are left untouched.
func (r *AccountRegistry) Remove(kind AccountKind, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.list(kind)
	i := slices.Index(*l, name)
	if i < 0 {
		return false
	}
	*l = slices.Delete(*l, i, i+1)
	r.links = slices.DeleteFunc(r.links, func(sl SavingLink) bool {
		if kind == Savings {
			return sl.Savings == name
		}
		return sl.Current == name
	})
	return true
}

// Default returns the first account of kind.
func (r *AccountRegistry) Default(kind AccountKind) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l := *r.list(kind)
	if len(l) == 0 {
		return "", false
	}
	return l[0], true
}

// CurrentOrFallback returns the default current account, or FallbackCurrentAccount
// when none is registered. The fallback is never added to the registry.
func (r *AccountRegistry) CurrentOrFallback() string {
	if name, ok := r.Default(Current); ok {
		return name
	}
	return FallbackCurrentAccount
}

// Link records that savings is fed from current. Both must be registered.
func (r *AccountRegistry) Link(savings, current string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.savings, savings) || !slices.Contains(r.current, current) {
		return false
	}
	for i, sl := range r.links {
		if sl.Savings == savings {
			if sl.Current == current {
				return false
			}
			r.links[i].Current = current
			return true
		}
	}
	r.links = append(r.links, SavingLink{Savings: savings, Current: current})
	return true
}

// LinkedCurrent returns the current account linked to savings, if any.
func (r *AccountRegistry) LinkedCurrent(savings string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sl := range r.links {
		if sl.Savings == savings {
			return sl.Current, true
		}
	}
	return "", false
}

// Links returns a copy of the savings links.
func (r *AccountRegistry) Links() []SavingLink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.links)
}
