// Package dataset reads the YAML corpora used by the profiler and the load
// driver: a list of documents plus queries with the IDs they should find.
package dataset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Dataset struct {
	Documents []Document `yaml:"documents"`
	Queries   []Query    `yaml:"queries"`
}

type Document struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

// Query lists the document IDs a good ranking returns near the top.
type Query struct {
	Query    string   `yaml:"query"`
	Expected []string `yaml:"expected"`
}

// Load parses the dataset at path. A dataset without documents or without
// queries is rejected.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	if len(ds.Documents) == 0 {
		return nil, fmt.Errorf("dataset %s has no documents", path)
	}
	if len(ds.Queries) == 0 {
		return nil, fmt.Errorf("dataset %s has no queries", path)
	}
	seen := make(map[string]struct{}, len(ds.Documents))
	for i, doc := range ds.Documents {
		if doc.ID == "" {
			return nil, fmt.Errorf("dataset %s: document %d has no id", path, i)
		}
		if _, dup := seen[doc.ID]; dup {
			return nil, fmt.Errorf("dataset %s: duplicate document id %q", path, doc.ID)
		}
		seen[doc.ID] = struct{}{}
	}
	return &ds, nil
}
