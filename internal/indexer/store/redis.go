// Package store provides the shared index backend: the inverted index laid
// out as Redis hashes so the indexer and every searcher see the same state.
//
// Layout under the configured prefix:
//
//	<prefix>:df               hash  term -> DocCount
//	<prefix>:postings:<term>  hash  docID -> JSON Posting
//	<prefix>:docmeta          hash  docID -> JSON DocumentMeta
//	<prefix>:stats            hash  documents, terms
//	<prefix>:meta             hash  tokenizer fingerprint
//
// Every Store method maps onto one Redis command or one Lua script, which
// gives the per-key atomicity the index relies on.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/redis"
)

const (
	fieldDocuments   = "documents"
	fieldTerms       = "terms"
	fieldFingerprint = "tokenizer"
)

// pruneScript deletes a term's df field only when it is zero and the term
// has no postings hash (Redis drops a hash with its last field).
var pruneScript = redis.NewScript(`
local c = redis.call('HGET', KEYS[1], ARGV[1])
if c ~= false and tonumber(c) == 0 and redis.call('EXISTS', KEYS[2]) == 0 then
  redis.call('HDEL', KEYS[1], ARGV[1])
  return 1
end
return 0
`)

// statsScript applies both corpus deltas and floors each at zero.
var statsScript = redis.NewScript(`
local d = redis.call('HINCRBY', KEYS[1], 'documents', ARGV[1])
if d < 0 then
  redis.call('HSET', KEYS[1], 'documents', 0)
  d = 0
end
local t = redis.call('HINCRBY', KEYS[1], 'terms', ARGV[2])
if t < 0 then
  redis.call('HSET', KEYS[1], 'terms', 0)
  t = 0
end
return {d, t}
`)

type RedisStore struct {
	client *pkgredis.Client
	prefix string
	logger *slog.Logger
}

func NewRedisStore(client *pkgredis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: slog.Default().With("component", "redis-store"),
	}
}

var _ index.Store = (*RedisStore)(nil)

func (s *RedisStore) dfKey() string                  { return s.prefix + ":df" }
func (s *RedisStore) postingsKey(term string) string { return s.prefix + ":postings:" + term }
func (s *RedisStore) docMetaKey() string             { return s.prefix + ":docmeta" }
func (s *RedisStore) statsKey() string               { return s.prefix + ":stats" }
func (s *RedisStore) metaKey() string                { return s.prefix + ":meta" }

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrStorage, err)
}

func (s *RedisStore) TermEntry(ctx context.Context, term string) (*index.TermEntry, error) {
	raw, err := s.client.HGet(ctx, s.dfKey(), term)
	present := true
	if err != nil {
		if !pkgredis.IsNilError(err) {
			return nil, storageErr("reading df", err)
		}
		present = false
	}
	fields, err := s.client.HGetAll(ctx, s.postingsKey(term))
	if err != nil {
		return nil, storageErr("reading postings", err)
	}
	if !present && len(fields) == 0 {
		return nil, nil
	}
	entry := &index.TermEntry{Postings: make(map[string]index.Posting, len(fields))}
	if present {
		if entry.DocCount, err = strconv.Atoi(raw); err != nil {
			return nil, storageErr("parsing df of "+term, err)
		}
	}
	for docID, data := range fields {
		var p index.Posting
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, storageErr("decoding posting "+term+"/"+docID, err)
		}
		entry.Postings[docID] = p
	}
	return entry, nil
}

func (s *RedisStore) DocCounts(ctx context.Context, terms []string) ([]int, error) {
	counts := make([]int, len(terms))
	if len(terms) == 0 {
		return counts, nil
	}
	vals, err := s.client.HMGet(ctx, s.dfKey(), terms...)
	if err != nil {
		return nil, storageErr("reading df batch", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return nil, storageErr("parsing df of "+terms[i], err)
		}
		counts[i] = n
	}
	return counts, nil
}

func (s *RedisStore) PutPosting(ctx context.Context, term, docID string, p index.Posting) (bool, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("encoding posting: %w", err)
	}
	created, err := s.client.HSet(ctx, s.postingsKey(term), docID, data)
	if err != nil {
		return false, storageErr("writing posting", err)
	}
	return created, nil
}

func (s *RedisStore) DeletePosting(ctx context.Context, term, docID string) (bool, error) {
	deleted, err := s.client.HDel(ctx, s.postingsKey(term), docID)
	if err != nil {
		return false, storageErr("deleting posting", err)
	}
	return deleted, nil
}

func (s *RedisStore) AdjustDocCount(ctx context.Context, term string, delta int) (int, error) {
	n, err := s.client.HIncrBy(ctx, s.dfKey(), term, int64(delta))
	if err != nil {
		return 0, storageErr("adjusting df", err)
	}
	return int(n), nil
}

func (s *RedisStore) PruneTerm(ctx context.Context, term string) (bool, error) {
	res, err := s.client.Eval(ctx, pruneScript, []string{s.dfKey(), s.postingsKey(term)}, term)
	if err != nil {
		return false, storageErr("pruning term", err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (s *RedisStore) DocMeta(ctx context.Context, docID string) (*index.DocumentMeta, error) {
	data, err := s.client.HGet(ctx, s.docMetaKey(), docID)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return nil, nil
		}
		return nil, storageErr("reading doc meta", err)
	}
	var meta index.DocumentMeta
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, storageErr("decoding doc meta "+docID, err)
	}
	return &meta, nil
}

func (s *RedisStore) PutDocMeta(ctx context.Context, docID string, meta index.DocumentMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding doc meta: %w", err)
	}
	if _, err := s.client.HSet(ctx, s.docMetaKey(), docID, data); err != nil {
		return storageErr("writing doc meta", err)
	}
	return nil
}

func (s *RedisStore) DeleteDocMeta(ctx context.Context, docID string) error {
	if _, err := s.client.HDel(ctx, s.docMetaKey(), docID); err != nil {
		return storageErr("deleting doc meta", err)
	}
	return nil
}

func (s *RedisStore) CorpusStats(ctx context.Context) (index.CorpusStats, error) {
	fields, err := s.client.HGetAll(ctx, s.statsKey())
	if err != nil {
		return index.CorpusStats{}, storageErr("reading corpus stats", err)
	}
	var stats index.CorpusStats
	if v, ok := fields[fieldDocuments]; ok {
		if stats.TotalDocuments, err = strconv.Atoi(v); err != nil {
			return index.CorpusStats{}, storageErr("parsing documents", err)
		}
	}
	if v, ok := fields[fieldTerms]; ok {
		if stats.TotalTermCount, err = strconv.Atoi(v); err != nil {
			return index.CorpusStats{}, storageErr("parsing terms", err)
		}
	}
	return stats, nil
}

func (s *RedisStore) AdjustCorpusStats(ctx context.Context, docsDelta, termsDelta int) (index.CorpusStats, error) {
	res, err := s.client.Eval(ctx, statsScript, []string{s.statsKey()}, docsDelta, termsDelta)
	if err != nil {
		return index.CorpusStats{}, storageErr("adjusting corpus stats", err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return index.CorpusStats{}, storageErr("adjusting corpus stats", fmt.Errorf("unexpected reply %v", res))
	}
	docs, _ := vals[0].(int64)
	terms, _ := vals[1].(int64)
	return index.CorpusStats{TotalDocuments: int(docs), TotalTermCount: int(terms)}, nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	deleted, err := s.client.FlushByPattern(ctx, s.prefix+":*")
	if err != nil {
		return storageErr("resetting index", err)
	}
	s.logger.Info("index storage reset", "prefix", s.prefix, "keys_deleted", deleted)
	return nil
}

// TokenizerFingerprint returns the fingerprint the index was built with, or
// "" for an index that has never been stamped.
func (s *RedisStore) TokenizerFingerprint(ctx context.Context) (string, error) {
	fp, err := s.client.HGet(ctx, s.metaKey(), fieldFingerprint)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return "", nil
		}
		return "", storageErr("reading tokenizer fingerprint", err)
	}
	return fp, nil
}

func (s *RedisStore) SetTokenizerFingerprint(ctx context.Context, fp string) error {
	if _, err := s.client.HSet(ctx, s.metaKey(), fieldFingerprint, fp); err != nil {
		return storageErr("writing tokenizer fingerprint", err)
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
