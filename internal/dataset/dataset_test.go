package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	ds, err := Load(writeDataset(t, `
documents:
  - id: "1"
    text: quick fox
queries:
  - query: quik fox
    expected: ["1"]
`))
	require.NoError(t, err)
	require.Len(t, ds.Documents, 1)
	assert.Equal(t, "quick fox", ds.Documents[0].Text)
	assert.Equal(t, []string{"1"}, ds.Queries[0].Expected)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no documents", "queries:\n  - query: x\n"},
		{"no queries", "documents:\n  - id: a\n    text: x\n"},
		{"missing id", "documents:\n  - text: x\nqueries:\n  - query: x\n"},
		{"duplicate id", "documents:\n  - id: a\n    text: x\n  - id: a\n    text: y\nqueries:\n  - query: x\n"},
		{"bad yaml", "documents: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeDataset(t, tt.body))
			assert.Error(t, err)
		})
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSampleDatasetLoads(t *testing.T) {
	ds, err := Load(filepath.Join("..", "..", "configs", "profiler", "sample.yaml"))
	require.NoError(t, err)
	assert.Len(t, ds.Documents, 12)
	assert.NotEmpty(t, ds.Queries)
}
