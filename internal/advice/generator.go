// Package advice produces the layered natural-language report for a
// session: one advice per finding category, generated concurrently,
// then one overall summary over the category advices.
package advice

import (
	"context"
	"errors"

	"github.com/thebtf/decody/pkg/models"
)

// ErrGeneration marks a failed or timed-out call to the external
// generator. The in-progress report fails as a whole; stored session
// state is untouched, so the caller can retry.
var ErrGeneration = errors.New("advice: generation failed")

// Generator is the external natural-language backend. Implementations
// are stateless and network-bound; calls may fail or time out.
type Generator interface {
	// ForCategory produces advice for one category's findings.
	ForCategory(ctx context.Context, category string, findings []models.MatchedFinding) (string, error)

	// ForSummary produces the overall advice over all category advices.
	ForSummary(ctx context.Context, advices []models.CategoryAdvice) (string, error)
}
