// Package models contains domain models for decody.
package models

// RuleFile is the named grouping a rule was imported from.
// File names are unique; rules always belong to exactly one file.
type RuleFile struct {
	ID       int64  `db:"id" json:"id"`
	FileName string `db:"file_name" json:"file_name"`
}

// Rule classifies scanner findings. Condition holds a boolean
// expression over the finding fields (short, long, scanner_name);
// Explanation is the human-readable text attached to a match.
// Rules are created by the offline importer and read-only afterwards.
type Rule struct {
	ID          int64  `db:"id" json:"id"`
	Category    string `db:"category" json:"category"`
	Name        string `db:"name" json:"name"`
	Explanation string `db:"explanation" json:"explanation"`
	Condition   string `db:"condition" json:"condition"`
}
