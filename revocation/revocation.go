// Package revocation provides revocation checkers for the authorization
// gate. An entry revokes a token when it equals the raw token string or
// the token's jti claim.
package revocation

import (
	"context"
	"sync"

	"github.com/gatekeep/go-jwt-gate/core"
)

// candidates lists the values a revocation entry may match for a token.
func candidates(token string, claims *core.ClaimSet) []string {
	values := []string{token}
	if claims != nil && claims.ID != "" && claims.ID != token {
		values = append(values, claims.ID)
	}
	return values
}

// List is an in-memory revocation list, safe for concurrent use.
type List struct {
	mu      sync.RWMutex
	entries map[string]struct{}
}

// NewList returns a list holding entries.
func NewList(entries ...string) *List {
	l := &List{entries: make(map[string]struct{}, len(entries))}
	l.Add(entries...)
	return l
}

// IsRevoked implements core.RevocationChecker.
func (l *List) IsRevoked(_ context.Context, token string, claims *core.ClaimSet) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, value := range candidates(token, claims) {
		if _, ok := l.entries[value]; ok {
			return true, nil
		}
	}
	return false, nil
}

// Add revokes entries. Empty strings are ignored.
func (l *List) Add(entries ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entry := range entries {
		if entry != "" {
			l.entries[entry] = struct{}{}
		}
	}
}

// Remove lifts the revocation of entries.
func (l *List) Remove(entries ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entry := range entries {
		delete(l.entries, entry)
	}
}

// Replace swaps the whole list for entries in one step.
func (l *List) Replace(entries []string) {
	next := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry != "" {
			next[entry] = struct{}{}
		}
	}

	l.mu.Lock()
	l.entries = next
	l.mu.Unlock()
}

// Len returns the number of entries.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Chain reports a token as revoked when any of its checkers does. The first
// error stops the chain so that an unreachable source fails closed.
type Chain []core.RevocationChecker

// IsRevoked implements core.RevocationChecker.
func (c Chain) IsRevoked(ctx context.Context, token string, claims *core.ClaimSet) (bool, error) {
	for _, checker := range c {
		revoked, err := checker.IsRevoked(ctx, token, claims)
		if err != nil || revoked {
			return revoked, err
		}
	}
	return false, nil
}
