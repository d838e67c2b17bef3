// Package canonical holds the helpers every source uses to turn a platform
// record into a domain.Entry: title and summary derivation, tag extraction,
// curation filtering, deterministic HTML synthesis and URL normalization.
package canonical

import (
	"context"
	"errors"
)

// ErrFiltered marks a record that was intentionally dropped by curation
// rules. It is not a malformed record.
var ErrFiltered = errors.New("filtered by curation")

// MediaCache turns a remote media URL into a stable reference.
type MediaCache interface {
	Cache(ctx context.Context, remoteURL string) string
}

// Passthrough returns remote URLs unchanged.
type Passthrough struct{}

func (Passthrough) Cache(_ context.Context, remoteURL string) string {
	return remoteURL
}
