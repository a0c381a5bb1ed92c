// Package importer loads human-authored rule files from a directory
// tree into the rule repository. File names are recorded relative to
// the root so submissions can reference them stably.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/decody/pkg/models"
)

// RuleSink receives parsed rule files. Satisfied by gorm.RuleStore.
type RuleSink interface {
	ImportFile(ctx context.Context, fileName string, rules []models.Rule) (int, error)
}

// ruleFile is the on-disk yaml schema.
type ruleFile struct {
	Rules []struct {
		Category    string `yaml:"category"`
		Name        string `yaml:"name"`
		Explanation string `yaml:"explanation"`
		Condition   string `yaml:"condition"`
	} `yaml:"rules"`
}

// FindRuleFiles returns the relative paths of all .yaml files under
// root, including nested directories.
func FindRuleFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	return files, err
}

// ParseRuleFile reads one yaml rule file.
func ParseRuleFile(path string) ([]models.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var parsed ruleFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	rules := make([]models.Rule, 0, len(parsed.Rules))
	for _, r := range parsed.Rules {
		if r.Name == "" || r.Condition == "" {
			return nil, fmt.Errorf("parse %s: rules require name and condition", path)
		}
		rules = append(rules, models.Rule{
			Category:    r.Category,
			Name:        r.Name,
			Explanation: r.Explanation,
			Condition:   r.Condition,
		})
	}
	return rules, nil
}

// ImportDir imports every rule file under root into the sink. Files
// that fail to parse are skipped with a warning so one broken file
// cannot block the rest. Returns the total number of newly inserted
// rules.
func ImportDir(ctx context.Context, root string, sink RuleSink) (int, error) {
	files, err := FindRuleFiles(root)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", root, err)
	}

	total := 0
	for _, rel := range files {
		rules, err := ParseRuleFile(filepath.Join(root, rel))
		if err != nil {
			log.Warn().Err(err).Str("file", rel).Msg("Skipping unparseable rule file")
			continue
		}

		inserted, err := sink.ImportFile(ctx, rel, rules)
		if err != nil {
			return total, fmt.Errorf("import %s: %w", rel, err)
		}
		if inserted > 0 {
			log.Info().Str("file", rel).Int("rules", inserted).Msg("Imported rules")
		}
		total += inserted
	}
	return total, nil
}
