// Command loadtest drives a running deployment with a dataset. In upsert
// mode it PUTs every document to the ingestion service; in search mode it
// replays the dataset's queries against the search service from concurrent
// workers for a fixed duration.
//
// Usage:
//
//	go run ./cmd/loadtest -mode upsert -url http://localhost:8081
//	go run ./cmd/loadtest -mode search -url http://localhost:8080 -duration 30s
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/internal/dataset"
)

// recorder collects outcomes from every worker.
type recorder struct {
	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int
	transport int
	empty     int
}

func newRecorder() *recorder {
	return &recorder{statuses: make(map[int]int)}
}

// record notes one request. status 0 with a non-nil err is a transport failure.
func (r *recorder) record(elapsed time.Duration, status int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.transport++
		return
	}
	r.statuses[status]++
	r.latencies = append(r.latencies, elapsed)
}

func (r *recorder) noteEmpty() {
	r.mu.Lock()
	r.empty++
	r.mu.Unlock()
}

type summary struct {
	total, ok, failed, empty int
	latencies                []time.Duration
	statuses                 map[int]int
}

func (r *recorder) summary() summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := summary{
		failed:    r.transport,
		empty:     r.empty,
		latencies: slices.Clone(r.latencies),
		statuses:  make(map[int]int, len(r.statuses)),
	}
	for code, n := range r.statuses {
		s.statuses[code] = n
		if code >= 200 && code < 300 {
			s.ok += n
		} else {
			s.failed += n
		}
	}
	s.total = s.ok + s.failed
	slices.Sort(s.latencies)
	return s
}

type driver struct {
	client *http.Client
	base   string
	rec    *recorder
}

// do sends req and hands the response body to inspect when it is non-nil.
func (d *driver) do(req *http.Request, inspect func(io.Reader)) {
	start := time.Now()
	resp, err := d.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if req.Context().Err() == nil {
			d.rec.record(elapsed, 0, err)
		}
		return
	}
	defer resp.Body.Close()
	if inspect != nil && resp.StatusCode == http.StatusOK {
		inspect(resp.Body)
	}
	io.Copy(io.Discard, resp.Body)
	d.rec.record(elapsed, resp.StatusCode, nil)
}

func (d *driver) upsertAll(ctx context.Context, docs []dataset.Document, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, doc := range docs {
		g.Go(func() error {
			body, err := json.Marshal(map[string]string{"text": doc.Text})
			if err != nil {
				return err
			}
			target := fmt.Sprintf("%s/api/v1/documents/%s", d.base, url.PathEscape(doc.ID))
			req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			d.do(req, nil)
			return nil
		})
	}
	return g.Wait()
}

func (d *driver) searchFor(ctx context.Context, queries []dataset.Query, minQuality float64, workers int, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	countEmpty := func(body io.Reader) {
		var res struct {
			TotalHits int `json:"total_hits"`
		}
		if json.NewDecoder(body).Decode(&res) == nil && res.TotalHits == 0 {
			d.rec.noteEmpty()
		}
	}

	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				q := queries[i%len(queries)].Query
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=10&min_quality=%g",
					d.base, url.QueryEscape(q), minQuality)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					return err
				}
				d.do(req, countEmpty)
			}
			return nil
		})
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	fmt.Print("Running")
	for {
		select {
		case err := <-done:
			fmt.Println(" done!")
			fmt.Println()
			return err
		case <-ticker.C:
			fmt.Print(".")
		}
	}
}

func main() {
	mode := flag.String("mode", "search", "upsert or search")
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the target service")
	datasetPath := flag.String("dataset", "configs/profiler/sample.yaml", "YAML dataset with documents and queries")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "search test duration")
	minQuality := flag.Float64("min-quality", 0.05, "min_quality sent with each search")
	flag.Parse()

	ds, err := dataset.Load(*datasetPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	workers := max(*concurrency, 1)
	d := &driver{
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        workers * 2,
				MaxIdleConnsPerHost: workers * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		base: *baseURL,
		rec:  newRecorder(),
	}

	fmt.Println("=== Fuzzy Search Load Driver ===")
	fmt.Printf("Mode:        %s\n", *mode)
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", workers)
	fmt.Printf("Documents:   %d\n", len(ds.Documents))
	fmt.Printf("Queries:     %d\n", len(ds.Queries))
	fmt.Println()

	ctx := context.Background()
	start := time.Now()
	switch *mode {
	case "upsert":
		err = d.upsertAll(ctx, ds.Documents, workers)
	case "search":
		err = d.searchFor(ctx, ds.Queries, *minQuality, workers, *duration)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !printReport(os.Stdout, d.rec.summary(), time.Since(start)) {
		os.Exit(1)
	}
}

// printReport writes the summary and reports whether any request completed.
func printReport(w io.Writer, s summary, elapsed time.Duration) bool {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", s.total)
	fmt.Fprintf(w, "Successful:      %d\n", s.ok)
	fmt.Fprintf(w, "Errors:          %d\n", s.failed)
	if s.empty > 0 {
		fmt.Fprintf(w, "Empty Results:   %d\n", s.empty)
	}
	if s.total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(s.failed)/float64(s.total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(s.total)/elapsed.Seconds())
	}

	if n := len(s.latencies); n > 0 {
		var sum time.Duration
		for _, l := range s.latencies {
			sum += l
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", s.latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", sum/time.Duration(n))
		fmt.Fprintf(w, "P50:    %s\n", percentile(s.latencies, 50))
		fmt.Fprintf(w, "P95:    %s\n", percentile(s.latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(s.latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", s.latencies[n-1])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	codes := make([]int, 0, len(s.statuses))
	for code := range s.statuses {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, s.statuses[code])
	}

	if s.total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
