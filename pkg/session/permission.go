package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrExecDenied is the sentinel wrapped by permission check failures.
var ErrExecDenied = errors.New("session: execute permission denied")

// ExecChecker decides whether a session may execute an operation,
// identified by its schema path (e.g. "/ietf-netconf:delete-config").
type ExecChecker interface {
	CheckExec(ctx context.Context, s *Session, operation string) error
}

// AllowAll grants every operation. It is the default policy when no
// access control is configured.
type AllowAll struct{}

func (AllowAll) CheckExec(context.Context, *Session, string) error { return nil }

// AllowList grants only the operations explicitly admitted, optionally
// scoped per username. An empty username rule applies to every user.
type AllowList struct {
	mu    sync.RWMutex
	rules map[string]map[string]struct{}
}

// NewAllowList constructs an empty allow list, which denies everything.
func NewAllowList() *AllowList {
	return &AllowList{rules: map[string]map[string]struct{}{}}
}

// Allow admits an operation for the given username. Use an empty
// username to admit it for all users.
func (l *AllowList) Allow(username, operation string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ops := l.rules[username]
	if ops == nil {
		ops = map[string]struct{}{}
		l.rules[username] = ops
	}
	ops[operation] = struct{}{}
}

// CheckExec implements ExecChecker.
func (l *AllowList) CheckExec(_ context.Context, s *Session, operation string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.rules[""][operation]; ok {
		return nil
	}
	if s != nil {
		if _, ok := l.rules[s.Username()][operation]; ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrExecDenied, operation)
}
