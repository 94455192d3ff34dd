package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/errors"
)

func mustNew(t *testing.T, cfg Config) *Tokenizer {
	t.Helper()
	tok, err := New(cfg)
	require.NoError(t, err)
	return tok
}

func TestComputeNgramsSlidingWindow(t *testing.T) {
	tok := mustNew(t, DefaultConfig())
	assert.Equal(t, []string{" fo", "fox", "ox "}, tok.ComputeNgrams("fox"))
	assert.Equal(t, []string{" a ", "a b", " b "}, tok.ComputeNgrams("a b"))
}

func TestNormalizePadding(t *testing.T) {
	tok := mustNew(t, DefaultConfig())
	got := tok.Terms("the fox")
	assert.Equal(t, []string{"$th", "the", "he!", "e_f", "$fo", "fox", "ox!"}, got)
}

func TestTermsFoldsCaseDiacriticsAndPunctuation(t *testing.T) {
	tok := mustNew(t, DefaultConfig())
	assert.Equal(t, tok.Terms("cafe au lait"), tok.Terms("  Café, AU -- lait!! "))
	assert.Equal(t, tok.Terms("settings json"), tok.Terms("settings.json"))
}

func TestTermsEmptyInput(t *testing.T) {
	tok := mustNew(t, DefaultConfig())
	for _, in := range []string{"", "   ", "\n\t", "--- !!! ..."} {
		assert.Empty(t, tok.Terms(in), "input %q", in)
	}
}

func TestShortTextYieldsSingleNgram(t *testing.T) {
	tok := mustNew(t, Config{N: 4, PaddingLeft: "$", PaddingRight: "!", PaddingMiddle: "_"})
	assert.Equal(t, []string{"$a!"}, tok.Terms("a"))
}

func TestTermsDeterministic(t *testing.T) {
	tok := mustNew(t, DefaultConfig())
	text := "Authentication tokens expire after 24 hours"
	assert.Equal(t, tok.Terms(text), tok.Terms(text))
}

func TestTypoSharesMostNgrams(t *testing.T) {
	tok := mustNew(t, DefaultConfig())
	a := map[string]bool{}
	for _, ng := range tok.Terms("authentication") {
		a[ng] = true
	}
	shared := 0
	typo := tok.Terms("authentcation")
	for _, ng := range typo {
		if a[ng] {
			shared++
		}
	}
	assert.Greater(t, shared, len(typo)/2)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"n too small", Config{N: 1, PaddingLeft: "$", PaddingRight: "!", PaddingMiddle: "_"}},
		{"empty padding", Config{N: 3, PaddingLeft: "", PaddingRight: "!", PaddingMiddle: "_"}},
		{"duplicate padding", Config{N: 3, PaddingLeft: "$", PaddingRight: "$", PaddingMiddle: "_"}},
		{"letter padding", Config{N: 3, PaddingLeft: "x", PaddingRight: "!", PaddingMiddle: "_"}},
		{"space padding", Config{N: 3, PaddingLeft: " ", PaddingRight: "!", PaddingMiddle: "_"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, apperrors.ErrInvalidTokenizer)
		})
	}
}

func TestFingerprintTracksConfig(t *testing.T) {
	a := mustNew(t, DefaultConfig())
	b := mustNew(t, DefaultConfig())
	c := mustNew(t, Config{N: 4, PaddingLeft: "$", PaddingRight: "!", PaddingMiddle: "_"})
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)
}
