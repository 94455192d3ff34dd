// Package tokenizer turns text into the character n-grams the index is keyed
// by. Text is folded (NFKD, combining marks stripped, lower-cased), every run
// of non-alphanumeric runes collapses to a single separator, and a fixed
// width window slides over the result. Normalize then rewrites separators to
// padding symbols that record whether the n-gram touches the start of a word,
// the end of a word, or spans two words.
//
// The same Config must be used when indexing and when querying; n-grams from
// different configurations never match.
package tokenizer

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/errors"
)

const separator = ' '

// Config fixes the n-gram scheme.
type Config struct {
	N             int
	PaddingLeft   string
	PaddingRight  string
	PaddingMiddle string
}

// DefaultConfig is the scheme used when nothing else is configured.
func DefaultConfig() Config {
	return Config{N: 3, PaddingLeft: "$", PaddingRight: "!", PaddingMiddle: "_"}
}

// Tokenizer is immutable and safe for concurrent use.
type Tokenizer struct {
	cfg Config
}

// New validates cfg. An invalid scheme is a construction-time failure that
// wraps ErrInvalidTokenizer.
func New(cfg Config) (*Tokenizer, error) {
	if cfg.N < 2 {
		return nil, apperrors.Newf(apperrors.ErrInvalidTokenizer, http.StatusInternalServerError,
			"n must be at least 2, got %d", cfg.N)
	}
	pads := map[string]string{
		"left":   cfg.PaddingLeft,
		"right":  cfg.PaddingRight,
		"middle": cfg.PaddingMiddle,
	}
	for name, pad := range pads {
		if pad == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidTokenizer, http.StatusInternalServerError,
				"%s padding must not be empty", name)
		}
		for _, r := range pad {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == separator {
				return nil, apperrors.Newf(apperrors.ErrInvalidTokenizer, http.StatusInternalServerError,
					"%s padding %q collides with text characters", name, pad)
			}
		}
	}
	if cfg.PaddingLeft == cfg.PaddingRight || cfg.PaddingLeft == cfg.PaddingMiddle || cfg.PaddingRight == cfg.PaddingMiddle {
		return nil, apperrors.New(apperrors.ErrInvalidTokenizer, http.StatusInternalServerError,
			"padding symbols must be distinct")
	}
	return &Tokenizer{cfg: cfg}, nil
}

// Fingerprint identifies the scheme. Indexes built under one fingerprint
// must be rebuilt before being queried under another.
func (t *Tokenizer) Fingerprint() string {
	raw := strings.Join([]string{
		"v1",
		strconv.Itoa(t.cfg.N),
		t.cfg.PaddingLeft,
		t.cfg.PaddingRight,
		t.cfg.PaddingMiddle,
	}, "\x00")
	return fmt.Sprintf("%016x", xxhash.Sum64String(raw))
}

// Terms is Normalize(ComputeNgrams(text)).
func (t *Tokenizer) Terms(text string) []string {
	return t.Normalize(t.ComputeNgrams(text))
}

// ComputeNgrams returns the raw sliding-window n-grams of text, in order.
// Word boundaries appear as a space. Text with no letters or digits yields
// nil.
func (t *Tokenizer) ComputeNgrams(text string) []string {
	cleaned := clean(text)
	if cleaned == "" {
		return nil
	}
	padded := make([]rune, 0, utf8.RuneCountInString(cleaned)+2)
	padded = append(padded, separator)
	padded = append(padded, []rune(cleaned)...)
	padded = append(padded, separator)

	n := t.cfg.N
	if len(padded) <= n {
		return []string{string(padded)}
	}
	ngrams := make([]string, 0, len(padded)-n+1)
	for i := 0; i+n <= len(padded); i++ {
		ngrams = append(ngrams, string(padded[i:i+n]))
	}
	return ngrams
}

// Normalize rewrites the separators inside each raw n-gram: a leading one
// becomes PaddingLeft, a trailing one PaddingRight, any other PaddingMiddle.
func (t *Tokenizer) Normalize(ngrams []string) []string {
	if len(ngrams) == 0 {
		return nil
	}
	out := make([]string, len(ngrams))
	var sb strings.Builder
	for i, ng := range ngrams {
		if !strings.ContainsRune(ng, separator) {
			out[i] = ng
			continue
		}
		sb.Reset()
		rs := []rune(ng)
		last := len(rs) - 1
		for j, r := range rs {
			switch {
			case r != separator:
				sb.WriteRune(r)
			case j == 0:
				sb.WriteString(t.cfg.PaddingLeft)
			case j == last:
				sb.WriteString(t.cfg.PaddingRight)
			default:
				sb.WriteString(t.cfg.PaddingMiddle)
			}
		}
		out[i] = sb.String()
	}
	return out
}

// foldChain strips diacritics: é -> e, ﬁ -> fi.
func foldChain() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// clean folds text and collapses every non-alphanumeric run to one
// separator, trimmed at both ends.
func clean(text string) string {
	folded, _, err := transform.String(foldChain(), text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, string(separator))
}
