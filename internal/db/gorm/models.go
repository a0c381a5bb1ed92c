// Package gorm provides the GORM-backed rule repository for decody.
package gorm

// RuleFile is the deduplicated grouping key for imported rules.
type RuleFile struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	FileName string `gorm:"uniqueIndex;not null"`
}

func (RuleFile) TableName() string { return "rule_files" }

// Rule is one imported classification rule. Rules are written only by
// the importer and read-only to the service.
type Rule struct {
	ID          int64    `gorm:"primaryKey;autoIncrement"`
	FileID      int64    `gorm:"index;not null"`
	File        RuleFile `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE"`
	Category    string   `gorm:"index;not null"`
	Name        string   `gorm:"not null"`
	Explanation string   `gorm:"type:text;not null"`
	Condition   string   `gorm:"type:text;not null"`
}

func (Rule) TableName() string { return "rules" }
