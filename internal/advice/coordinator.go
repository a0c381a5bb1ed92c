package advice

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/decody/internal/session"
	"github.com/thebtf/decody/pkg/models"
)

// Coordinator turns a session's aggregate into a final report: group
// by category, one concurrent generator call per category, a blocking
// join, then one summary call. On success the session's state is
// deleted, so a report is consumed at most once.
type Coordinator struct {
	sessions *session.Store
	gen      Generator
	timeout  time.Duration
}

// NewCoordinator creates a coordinator. timeout bounds each individual
// generator call, not the whole report.
func NewCoordinator(sessions *session.Store, gen Generator, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Coordinator{sessions: sessions, gen: gen, timeout: timeout}
}

// GenerateReport produces the final report for a session. Returns
// session.ErrNotFound when the session has no aggregate, and an error
// wrapping ErrGeneration when any generator call fails; in both cases
// stored state is left intact. Category advices appear sorted by
// category name so the output is deterministic across runs.
func (c *Coordinator) GenerateReport(ctx context.Context, sessionID string) (*models.FinalReport, error) {
	matches, err := c.sessions.ReadAggregate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]models.MatchedFinding)
	for _, m := range matches {
		grouped[m.Category] = append(grouped[m.Category], m)
	}

	categories := make([]string, 0, len(grouped))
	for category := range grouped {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	// One task per category; the indexed slice keeps collection order
	// independent of completion order.
	advices := make([]models.CategoryAdvice, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		i, category := i, category
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, c.timeout)
			defer cancel()

			findings := grouped[category]
			text, err := c.gen.ForCategory(callCtx, category, findings)
			if err != nil {
				return fmt.Errorf("%w: category %q: %v", ErrGeneration, category, err)
			}
			advices[i] = models.CategoryAdvice{
				Category: category,
				Advice:   text,
				Findings: findings,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summaryCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	overall, err := c.gen.ForSummary(summaryCtx, advices)
	if err != nil {
		return nil, fmt.Errorf("%w: summary: %v", ErrGeneration, err)
	}

	// The report is complete; consume the session. A failed delete is
	// logged rather than failing the report, at the cost of the next
	// report call seeing the same state again.
	if err := c.sessions.Delete(ctx, sessionID); err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("Failed to delete consumed session state")
	}

	log.Info().
		Str("session", sessionID).
		Int("categories", len(categories)).
		Int("findings", len(matches)).
		Msg("Report generated")

	return &models.FinalReport{
		OverallAdvice:   overall,
		CategoryAdvices: advices,
	}, nil
}
