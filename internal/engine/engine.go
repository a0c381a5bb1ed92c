// Package engine implements the matching pipeline: it crosses an
// incoming submission's findings with the rules named by the
// submission, evaluating each rule condition against each finding, and
// appends the matches to the session aggregate.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/decody/internal/eval"
	"github.com/thebtf/decody/internal/session"
	"github.com/thebtf/decody/pkg/models"
)

// RuleSource provides the rules for a set of rule file names.
type RuleSource interface {
	FetchRuleSets(ctx context.Context, fileNames []string) ([]models.Rule, error)
}

// Matcher evaluates rule conditions against findings with bounded
// parallelism.
type Matcher struct {
	workers int
}

// NewMatcher creates a matcher running at most workers evaluations
// concurrently.
func NewMatcher(workers int) *Matcher {
	if workers < 1 {
		workers = 1
	}
	return &Matcher{workers: workers}
}

// Match evaluates every rule against every finding of the submission
// and returns one MatchedFinding per pair whose condition held.
// Result order is deterministic (rule-major, then finding) regardless
// of evaluation scheduling. A condition that fails to evaluate is
// logged and treated as a non-match; it never aborts the other pairs.
func (m *Matcher) Match(ctx context.Context, input models.SubmittedInput, rules []models.Rule) []models.MatchedFinding {
	type pair struct {
		rule    models.Rule
		finding models.Finding
	}

	pairs := make([]pair, 0, len(rules)*len(input.Findings))
	for _, rule := range rules {
		for _, finding := range input.Findings {
			pairs = append(pairs, pair{rule: rule, finding: finding})
		}
	}

	// Index-addressed results keep the output stable without locking.
	results := make([]*models.MatchedFinding, len(pairs))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			bindings := map[string]string{
				"short":        p.finding.Short,
				"long":         p.finding.Long,
				"scanner_name": input.ScannerName,
			}
			matched, err := eval.Evaluate(p.rule.Condition, bindings)
			if err != nil {
				log.Warn().
					Err(err).
					Str("rule", p.rule.Name).
					Str("category", p.rule.Category).
					Msg("Rule condition failed to evaluate, treating as non-match")
				return nil
			}
			if matched {
				results[i] = &models.MatchedFinding{
					Category:        p.rule.Category,
					RuleName:        p.rule.Name,
					RuleExplanation: p.rule.Explanation,
					ScannerName:     input.ScannerName,
					ShortInput:      p.finding.Short,
					LongInput:       p.finding.Long,
				}
			}
			return nil
		})
	}
	// Workers only signal failure through the results slice, so Wait
	// is purely a join here.
	_ = g.Wait()

	matches := make([]models.MatchedFinding, 0, len(results))
	for _, r := range results {
		if r != nil {
			matches = append(matches, *r)
		}
	}
	return matches
}

// Pipeline ties the duplicate check, rule fetch, matcher and aggregate
// append together for one submission.
type Pipeline struct {
	sessions *session.Store
	rules    RuleSource
	matcher  *Matcher
}

// NewPipeline creates a submission pipeline.
func NewPipeline(sessions *session.Store, rules RuleSource, matcher *Matcher) *Pipeline {
	return &Pipeline{sessions: sessions, rules: rules, matcher: matcher}
}

// Submit processes one submission for a session: duplicate check,
// rule fetch, matching, aggregate append. Returns the number of new
// matches. A duplicate submission returns
// session.ErrDuplicateSubmission with no state change at all.
func (p *Pipeline) Submit(ctx context.Context, sessionID string, input models.SubmittedInput) (int, error) {
	if err := p.sessions.AppendInput(ctx, sessionID, input); err != nil {
		if errors.Is(err, session.ErrDuplicateSubmission) {
			return 0, err
		}
		return 0, fmt.Errorf("record submission: %w", err)
	}

	rules, err := p.rules.FetchRuleSets(ctx, input.RuleFiles)
	if err != nil {
		return 0, fmt.Errorf("fetch rules: %w", err)
	}

	matches := p.matcher.Match(ctx, input, rules)
	if err := p.sessions.AppendMatches(ctx, sessionID, matches); err != nil {
		return 0, fmt.Errorf("append matches: %w", err)
	}

	log.Debug().
		Str("session", sessionID).
		Str("scanner", input.ScannerName).
		Int("rules", len(rules)).
		Int("findings", len(input.Findings)).
		Int("matches", len(matches)).
		Msg("Submission processed")

	return len(matches), nil
}
