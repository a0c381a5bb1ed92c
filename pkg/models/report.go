// Package models contains domain models for decody.
package models

// CategoryAdvice is the generated advice for one finding category
// together with the findings it covers. Derived during report
// generation, never persisted.
type CategoryAdvice struct {
	Category string           `json:"category"`
	Advice   string           `json:"advice"`
	Findings []MatchedFinding `json:"findings"`
}

// FinalReport is the terminal output of a session: one overall advice
// plus the per-category advices it was summarized from.
type FinalReport struct {
	OverallAdvice   string           `json:"overall_advice"`
	CategoryAdvices []CategoryAdvice `json:"category_advices"`
}
