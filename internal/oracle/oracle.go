// Package oracle defines the optional ranking/classification collaborator.
// The oracle is never required: every caller pairs it with a deterministic
// rule-based fallback, and any oracle failure stays inside the resolver.
package oracle

import (
	"context"
	"errors"
)

// RankingOracle answers free-text classification and ranking questions.
// Implementations may block on network round trips; callers bound them with
// context timeouts and fall back on any error.
type RankingOracle interface {
	// ClassifySegment maps a natural-language visitor profile to a segment
	// name. The caller validates the name against its catalog.
	ClassifySegment(ctx context.Context, profile string) (string, error)
	// RankProducts returns product ids in recommended order for the prompt.
	RankProducts(ctx context.Context, prompt string) ([]string, error)
}

// ErrEmptyResponse signals the oracle answered with nothing usable.
var ErrEmptyResponse = errors.New("oracle: empty response")
