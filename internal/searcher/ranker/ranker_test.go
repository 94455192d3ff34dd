package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDF(t *testing.T) {
	assert.InDelta(t, math.Log(6.5/1.5), IDF(8, 1), 1e-12)
	assert.Less(t, IDF(3, 2), 0.0, "common n-grams go negative")
	assert.InDelta(t, 0, IDF(2, 1), 1e-12)
}

func TestTFWeight(t *testing.T) {
	assert.InDelta(t, 1.0, TFWeight(1, 10, 10), 1e-12)
	assert.Greater(t, TFWeight(1, 5, 10), TFWeight(1, 20, 10), "shorter documents weigh more")
	assert.Greater(t, TFWeight(3, 10, 10), TFWeight(1, 10, 10))
	assert.Zero(t, TFWeight(1, 10, 0))
}

func TestQuality(t *testing.T) {
	assert.InDelta(t, 0.85+0.15, Quality(1, 4, 4), 1e-12)
	assert.InDelta(t, 0.85+0.075, Quality(1, 1, 4), 1e-12)
	assert.Zero(t, Quality(0, 0, 0))
}

func TestPoolCapacity(t *testing.T) {
	p := NewPool(2)
	assert.True(t, p.Add("a", 1))
	assert.True(t, p.Add("b", 1))
	assert.True(t, p.Full())
	assert.False(t, p.Add("c", 5), "new documents are turned away once full")
	assert.True(t, p.Add("a", 0.5), "tracked documents keep accumulating")
	assert.Equal(t, 2, p.Len())
	assert.False(t, p.Tracked("c"))
	assert.False(t, p.Admits("c"))
	assert.True(t, p.Admits("b"))

	results := ranked(p, 2, 0)
	assert.Equal(t, []string{"a", "b"}, ids(results))
	assert.InDelta(t, Quality(1.5, 2, 2), results[0].Quality, 1e-12)
}

func ranked(p *Pool, uniqueTerms int, minQuality float64) []Result {
	results := p.Score(uniqueTerms, minQuality)
	Sort(results)
	return results
}

func TestPoolDropsZeroScores(t *testing.T) {
	p := NewPool(10)
	p.Add("a", 0.4)
	p.Add("a", -0.4)
	p.Add("b", 0.2)
	assert.Equal(t, 1, p.Scored())
	assert.Equal(t, []string{"b"}, ids(ranked(p, 3, 0)))
}

func TestPoolMinQuality(t *testing.T) {
	p := NewPool(10)
	p.Add("hi", 2)
	p.Add("lo", 0.01)
	assert.Equal(t, []string{"hi"}, ids(ranked(p, 1, 0.5)))
}

func TestSortTiesByID(t *testing.T) {
	results := []Result{{ID: "d2", Quality: 1}, {ID: "d1", Quality: 1}, {ID: "d3", Quality: 2}}
	Sort(results)
	assert.Equal(t, []string{"d3", "d1", "d2"}, ids(results))
}

func ids(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}
