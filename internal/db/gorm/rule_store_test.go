package gorm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/thebtf/decody/pkg/models"
)

// testStore creates a Store backed by a temp-file SQLite database.
func testStore(t *testing.T) (*Store, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "rule-store-test-*")
	require.NoError(t, err)

	store, err := NewStore(Config{
		Path:     filepath.Join(dir, "rules.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)

	return store, func() {
		store.Close()
		os.RemoveAll(dir)
	}
}

func sampleRules() []models.Rule {
	return []models.Rule{
		{Category: "xss", Name: "r1", Explanation: "Possible XSS", Condition: "short == 'XSS_FOUND'"},
		{Category: "sqli", Name: "r2", Explanation: "Possible SQL injection", Condition: "short == 'SQLI_FOUND'"},
	}
}

func TestImportFile_AndFetch(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	rs := NewRuleStore(store)

	inserted, err := rs.ImportFile(ctx, "web.yaml", sampleRules())
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	rules, err := rs.FetchRules(ctx, "web.yaml")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "xss", rules[0].Category)
	assert.Equal(t, "Possible XSS", rules[0].Explanation)
	assert.Equal(t, "short == 'XSS_FOUND'", rules[0].Condition)
}

func TestImportFile_Idempotent(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	rs := NewRuleStore(store)

	_, err := rs.ImportFile(ctx, "web.yaml", sampleRules())
	require.NoError(t, err)

	inserted, err := rs.ImportFile(ctx, "web.yaml", sampleRules())
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	rules, err := rs.FetchRules(ctx, "web.yaml")
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}

func TestFetchRules_UnknownFile(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()

	rs := NewRuleStore(store)
	rules, err := rs.FetchRules(context.Background(), "missing.yaml")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestFetchRuleSets_Union(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	rs := NewRuleStore(store)

	_, err := rs.ImportFile(ctx, "web.yaml", sampleRules())
	require.NoError(t, err)
	_, err = rs.ImportFile(ctx, "tls.yaml", []models.Rule{
		{Category: "tls", Name: "r3", Explanation: "Weak cipher", Condition: "short == 'WEAK_CIPHER'"},
	})
	require.NoError(t, err)

	rules, err := rs.FetchRuleSets(ctx, []string{"web.yaml", "tls.yaml"})
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "tls", rules[2].Category)
}

func TestListRuleFiles(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()
	ctx := context.Background()

	rs := NewRuleStore(store)
	_, err := rs.ImportFile(ctx, "b.yaml", nil)
	require.NoError(t, err)
	_, err = rs.ImportFile(ctx, "a.yaml", nil)
	require.NoError(t, err)

	names, err := rs.ListRuleFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, names)
}
