package index

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps the whole index in process memory behind one RWMutex.
// Every method is atomic with respect to every other.
type MemoryStore struct {
	mu      sync.RWMutex
	terms   map[string]*TermEntry
	docs    map[string]DocumentMeta
	stats   CorpusStats
	size    int64
	version string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		terms: make(map[string]*TermEntry),
		docs:  make(map[string]DocumentMeta),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) TermEntry(_ context.Context, term string) (*TermEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.terms[term]
	if !ok {
		return nil, nil
	}
	return cloneEntry(entry), nil
}

func (m *MemoryStore) DocCounts(_ context.Context, terms []string) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make([]int, len(terms))
	for i, term := range terms {
		if entry, ok := m.terms[term]; ok {
			counts[i] = entry.DocCount
		}
	}
	return counts, nil
}

func (m *MemoryStore) PutPosting(_ context.Context, term, docID string, p Posting) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.terms[term]
	if !ok {
		entry = &TermEntry{Postings: make(map[string]Posting)}
		m.terms[term] = entry
		m.size += int64(len(term)) + 48
	}
	old, existed := entry.Postings[docID]
	if existed {
		m.size -= postingSize(docID, old)
	}
	entry.Postings[docID] = Posting{Frequency: p.Frequency, Positions: slices.Clone(p.Positions)}
	m.size += postingSize(docID, p)
	return !existed, nil
}

func (m *MemoryStore) DeletePosting(_ context.Context, term, docID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.terms[term]
	if !ok {
		return false, nil
	}
	old, existed := entry.Postings[docID]
	if !existed {
		return false, nil
	}
	delete(entry.Postings, docID)
	m.size -= postingSize(docID, old)
	return true, nil
}

func (m *MemoryStore) AdjustDocCount(_ context.Context, term string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.terms[term]
	if !ok {
		entry = &TermEntry{Postings: make(map[string]Posting)}
		m.terms[term] = entry
		m.size += int64(len(term)) + 48
	}
	entry.DocCount += delta
	return entry.DocCount, nil
}

func (m *MemoryStore) PruneTerm(_ context.Context, term string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.terms[term]
	if !ok || entry.DocCount != 0 || len(entry.Postings) != 0 {
		return false, nil
	}
	delete(m.terms, term)
	m.size -= int64(len(term)) + 48
	return true, nil
}

func (m *MemoryStore) DocMeta(_ context.Context, docID string) (*DocumentMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.docs[docID]
	if !ok {
		return nil, nil
	}
	meta.UniqueTerms = slices.Clone(meta.UniqueTerms)
	return &meta, nil
}

func (m *MemoryStore) PutDocMeta(_ context.Context, docID string, meta DocumentMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta.UniqueTerms = slices.Clone(meta.UniqueTerms)
	m.docs[docID] = meta
	return nil
}

func (m *MemoryStore) DeleteDocMeta(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, docID)
	return nil
}

func (m *MemoryStore) CorpusStats(context.Context) (CorpusStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats, nil
}

func (m *MemoryStore) AdjustCorpusStats(_ context.Context, docsDelta, termsDelta int) (CorpusStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.TotalDocuments = max(0, m.stats.TotalDocuments+docsDelta)
	m.stats.TotalTermCount = max(0, m.stats.TotalTermCount+termsDelta)
	return m.stats, nil
}

func (m *MemoryStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terms = make(map[string]*TermEntry)
	m.docs = make(map[string]DocumentMeta)
	m.stats = CorpusStats{}
	m.size = 0
	m.version = ""
	return nil
}

// TokenizerFingerprint returns the fingerprint recorded by the last
// SetTokenizerFingerprint, or "" after a Reset.
func (m *MemoryStore) TokenizerFingerprint(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version, nil
}

func (m *MemoryStore) SetTokenizerFingerprint(_ context.Context, fp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = fp
	return nil
}

// Size is a rough estimate of the bytes held by term entries.
func (m *MemoryStore) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// TermCount is the number of distinct term entries, including retained
// empty ones.
func (m *MemoryStore) TermCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terms)
}

// Snapshot returns a deep copy of every term entry and document meta, for
// consistency checks and debugging.
func (m *MemoryStore) Snapshot() (map[string]*TermEntry, map[string]DocumentMeta) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	terms := make(map[string]*TermEntry, len(m.terms))
	for term, entry := range m.terms {
		terms[term] = cloneEntry(entry)
	}
	docs := make(map[string]DocumentMeta, len(m.docs))
	for id, meta := range m.docs {
		meta.UniqueTerms = slices.Clone(meta.UniqueTerms)
		docs[id] = meta
	}
	return terms, docs
}

func cloneEntry(entry *TermEntry) *TermEntry {
	out := &TermEntry{
		DocCount: entry.DocCount,
		Postings: make(map[string]Posting, len(entry.Postings)),
	}
	for id, p := range entry.Postings {
		out.Postings[id] = Posting{Frequency: p.Frequency, Positions: slices.Clone(p.Positions)}
	}
	return out
}

func postingSize(docID string, p Posting) int64 {
	return int64(len(docID) + len(p.Positions)*8 + 64)
}
