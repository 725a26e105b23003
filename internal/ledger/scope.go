package ledger

import (
	"errors"
	"fmt"
	"strings"

	"compta/internal/core"
)

var ErrInvalidScope = errors.New("invalid scope")

// ScopeKind selects which side of the ledger a view covers.
type ScopeKind string

const (
	ScopeAll     ScopeKind = "all"
	ScopeCurrent ScopeKind = "current"
	ScopeSavings ScopeKind = "savings"
)

// Scope restricts statistics to one account, or to every current account
// when Account is empty.
type Scope struct {
	Kind    ScopeKind
	Account string
}

// AllAccounts is the unfiltered scope.
var AllAccounts = Scope{Kind: ScopeAll}

func (s Scope) String() string {
	if s.Account == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.Account
}

// ParseScope accepts "all", "current", "current:NAME" and "savings:NAME".
// An empty string is the unfiltered scope.
func ParseScope(s string) (Scope, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AllAccounts, nil
	}
	kind, name, _ := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	switch ScopeKind(strings.ToLower(strings.TrimSpace(kind))) {
	case ScopeAll:
		if name != "" {
			return Scope{}, fmt.Errorf("%w: %q takes no account", ErrInvalidScope, s)
		}
		return AllAccounts, nil
	case ScopeCurrent:
		return Scope{Kind: ScopeCurrent, Account: name}, nil
	case ScopeSavings:
		if name == "" {
			return Scope{}, fmt.Errorf("%w: savings scope needs an account", ErrInvalidScope)
		}
		return Scope{Kind: ScopeSavings, Account: name}, nil
	}
	return Scope{}, fmt.Errorf("%w: %q", ErrInvalidScope, s)
}

// LinkResolver finds the current account a savings account is attached to.
type LinkResolver interface {
	LinkedCurrent(savings string) (string, bool)
}

// FilterByScope keeps the rows visible from scope.
//
// In a named current scope, a savings transfer belongs to the current
// account its savings account is linked to; without a link it belongs to
// the current account written on the row. A savings scope keeps only the
// transfers touching that savings account.
func FilterByScope(rows []core.TransactionRecord, scope Scope, links LinkResolver) []core.TransactionRecord {
	if scope.Kind == ScopeAll || scope.Kind == "" {
		return rows
	}
	if scope.Kind == ScopeCurrent && scope.Account == "" {
		return rows
	}

	var out []core.TransactionRecord
	for _, r := range rows {
		current, savings := r.Sides()
		switch scope.Kind {
		case ScopeCurrent:
			owner := current
			if savings != "" && links != nil {
				if linked, ok := links.LinkedCurrent(savings); ok {
					owner = linked
				}
			}
			if owner == scope.Account {
				out = append(out, r)
			}
		case ScopeSavings:
			if savings != "" && savings == scope.Account {
				out = append(out, r)
			}
		}
	}
	return out
}
