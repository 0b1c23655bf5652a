// Package secrets resolves secret references such as op://vault/item/field
// to their plaintext values. Plain values are passed through, so a setting
// can hold either a literal password or a reference.
package secrets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Resolver resolves a secret reference to its plaintext value.
type Resolver interface {
	// Scheme returns the URI scheme this resolver handles (e.g., "op", "ssm").
	Scheme() string

	// Resolve fetches the secret value for the given reference.
	// The reference is the full URI (e.g., "op://CI/superset/password").
	Resolve(ctx context.Context, reference string) (string, error)
}

// maxConcurrent bounds parallel lookups in ResolveAll; each one may spawn
// a CLI process or an AWS API call.
const maxConcurrent = 4

var (
	resolvers = make(map[string]Resolver)
	mu        sync.RWMutex
)

// Register adds a resolver to the registry.
func Register(r Resolver) {
	mu.Lock()
	defer mu.Unlock()
	resolvers[r.Scheme()] = r
}

// Schemes lists the registered schemes in sorted order.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(resolvers))
	for s := range resolvers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Resolve dispatches to the appropriate resolver based on URI scheme.
func Resolve(ctx context.Context, reference string) (string, error) {
	scheme := parseScheme(reference)
	if scheme == "" {
		return "", &InvalidReferenceError{Reference: reference, Reason: "missing scheme"}
	}

	r, ok := lookup(scheme)
	if !ok {
		return "", &UnsupportedSchemeError{Scheme: scheme}
	}

	return r.Resolve(ctx, reference)
}

// IsReference reports whether value uses a registered scheme.
func IsReference(value string) bool {
	scheme := parseScheme(value)
	if scheme == "" {
		return false
	}
	_, ok := lookup(scheme)
	return ok
}

// ResolveValue resolves value if it is a reference and returns it
// unchanged otherwise.
func ResolveValue(ctx context.Context, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	return Resolve(ctx, value)
}

// ResolveAll resolves every value of values concurrently, keeping keys.
// Plain values pass through. The first failure cancels outstanding lookups.
func ResolveAll(ctx context.Context, values map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(values))
	var resultMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for key, value := range values {
		if !IsReference(value) {
			resultMu.Lock()
			resolved[key] = value
			resultMu.Unlock()
			continue
		}
		g.Go(func() error {
			v, err := Resolve(ctx, value)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", key, err)
			}
			resultMu.Lock()
			resolved[key] = v
			resultMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

func lookup(scheme string) (Resolver, bool) {
	mu.RLock()
	defer mu.RUnlock()
	r, ok := resolvers[scheme]
	return r, ok
}

// parseScheme extracts the scheme from a URI (e.g., "op" from "op://vault/item").
func parseScheme(ref string) string {
	idx := strings.Index(ref, "://")
	if idx < 1 {
		return ""
	}
	return ref[:idx]
}

// clearRegistry removes all registered resolvers. For testing only.
func clearRegistry() {
	mu.Lock()
	defer mu.Unlock()
	resolvers = make(map[string]Resolver)
}
