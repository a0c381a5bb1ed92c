// Package gorm provides the GORM-backed rule repository for decody.
package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/thebtf/decody/pkg/models"
)

// RuleStore provides rule-related database operations.
type RuleStore struct {
	store *Store
}

// NewRuleStore creates a new rule store.
func NewRuleStore(store *Store) *RuleStore {
	return &RuleStore{store: store}
}

// FetchRules returns all rules belonging to the rule file with the
// given name. An unknown file name yields an empty slice, not an
// error: a submission may reference rule sets that were never
// imported.
func (s *RuleStore) FetchRules(ctx context.Context, fileName string) ([]models.Rule, error) {
	var rows []Rule
	err := s.store.DB.WithContext(ctx).
		Joins("JOIN rule_files ON rule_files.id = rules.file_id").
		Where("rule_files.file_name = ?", fileName).
		Order("rules.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	rules := make([]models.Rule, 0, len(rows))
	for _, r := range rows {
		rules = append(rules, models.Rule{
			ID:          r.ID,
			Category:    r.Category,
			Name:        r.Name,
			Explanation: r.Explanation,
			Condition:   r.Condition,
		})
	}
	return rules, nil
}

// FetchRuleSets returns the union of the rules of all named rule
// files, in file order then rule order.
func (s *RuleStore) FetchRuleSets(ctx context.Context, fileNames []string) ([]models.Rule, error) {
	var rules []models.Rule
	for _, name := range fileNames {
		fileRules, err := s.FetchRules(ctx, name)
		if err != nil {
			return nil, err
		}
		rules = append(rules, fileRules...)
	}
	return rules, nil
}

// ImportFile upserts the rule file by name and inserts any of the
// given rules that are not already present for it. Returns the number
// of newly inserted rules. Re-importing an unchanged file is a no-op.
func (s *RuleStore) ImportFile(ctx context.Context, fileName string, rules []models.Rule) (int, error) {
	inserted := 0
	err := s.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file RuleFile
		if err := tx.Where(RuleFile{FileName: fileName}).FirstOrCreate(&file).Error; err != nil {
			return err
		}

		for _, rule := range rules {
			var count int64
			err := tx.Model(&Rule{}).
				Where("file_id = ? AND category = ? AND name = ? AND explanation = ? AND `condition` = ?",
					file.ID, rule.Category, rule.Name, rule.Explanation, rule.Condition).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			row := Rule{
				FileID:      file.ID,
				Category:    rule.Category,
				Name:        rule.Name,
				Explanation: rule.Explanation,
				Condition:   rule.Condition,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListRuleFiles returns all known rule file names.
func (s *RuleStore) ListRuleFiles(ctx context.Context) ([]string, error) {
	var names []string
	err := s.store.DB.WithContext(ctx).
		Model(&RuleFile{}).
		Order("file_name ASC").
		Pluck("file_name", &names).Error
	return names, err
}
