// Package models contains domain models for decody.
package models

import (
	json "github.com/goccy/go-json"
)

// Finding is one short/long-form observation produced by a scanner.
type Finding struct {
	Short string `json:"short"`
	Long  string `json:"long"`
}

// SubmittedInput is one scan submission as received on the load
// endpoint: the scanner that produced it, the rule files to match
// against and the findings themselves.
type SubmittedInput struct {
	ScannerName string    `json:"scanner_name"`
	RuleFiles   []string  `json:"rules"`
	Findings    []Finding `json:"results"`
}

// Canonical returns the canonical serialized form of the input.
// Because the input is decoded into a typed struct and re-encoded with
// a fixed field order, two submissions that differ only in JSON key
// order produce identical canonical bytes. Duplicate detection
// compares these bytes.
func (s SubmittedInput) Canonical() ([]byte, error) {
	return json.Marshal(s)
}

// MatchedFinding records that a rule's condition held for a finding.
// Only matches are recorded; RuleExplanation is therefore always
// non-empty.
type MatchedFinding struct {
	Category        string `json:"category"`
	RuleName        string `json:"rule_name"`
	RuleExplanation string `json:"rule_explanation"`
	ScannerName     string `json:"scanner_name"`
	ShortInput      string `json:"short_input"`
	LongInput       string `json:"long_input"`
}
