// Package telemetry collects question-answering metrics for the daemon.
// Everything is kept in memory and reported through daemon status; nothing
// leaves the process.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/pdfqa/internal/index"
)

// Outcome is how a question ended.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeFailed   Outcome = "failed"
)

// LatencyBucket is a histogram bucket for end-to-end answer latency.
type LatencyBucket string

const (
	BucketUnder5s  LatencyBucket = "lt_5s"
	BucketUnder15s LatencyBucket = "lt_15s"
	BucketUnder30s LatencyBucket = "lt_30s"
	BucketUnder60s LatencyBucket = "lt_60s"
	BucketOver60s  LatencyBucket = "ge_60s"
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < 5*time.Second:
		return BucketUnder5s
	case d < 15*time.Second:
		return BucketUnder15s
	case d < 30*time.Second:
		return BucketUnder30s
	case d < 60*time.Second:
		return BucketUnder60s
	default:
		return BucketOver60s
	}
}

// QueryEvent is one finished question.
type QueryEvent struct {
	Query   string
	Model   string
	Outcome Outcome
	Latency time.Duration
}

// ExtractTerms lowercases query and returns its words of three or more
// characters with surrounding punctuation removed.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, `.,;:!?"'()[]{}`)
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and how often it was asked about.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	Submitted      int64                   `json:"submitted"`
	Finished       int64                   `json:"finished"`
	Outcomes       map[Outcome]int64       `json:"outcomes"`
	Models         map[string]int64        `json:"models"`
	Latency        map[LatencyBucket]int64 `json:"latency"`
	TopTerms       []TermCount             `json:"top_terms,omitempty"`
	RecentFailures []string                `json:"recent_failures,omitempty"`
	RepeatCount    int64                   `json:"repeat_count"`
	Since          time.Time               `json:"since"`
}

// Summary renders the snapshot as one line.
func (s *Snapshot) Summary() string {
	if s.Submitted == 0 {
		return "no questions yet"
	}
	return fmt.Sprintf("%d asked, %d answered, %d failed, %d repeated",
		s.Submitted, s.Outcomes[OutcomeAnswered], s.Outcomes[OutcomeFailed], s.RepeatCount)
}

// Config sizes the collector.
type Config struct {
	TopTermsCapacity      int // distinct terms tracked
	RecentFailureCapacity int // failed questions kept
	RecentQueryCapacity   int // question hashes kept for repeat detection
	PendingCapacity       int // submitted but unfinished jobs tracked
	Now                   func() time.Time
}

// DefaultConfig returns the collector defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		RecentFailureCapacity: 20,
		RecentQueryCapacity:   500,
		PendingCapacity:       256,
	}
}

type pending struct {
	query string
	model string
	at    time.Time
}

// QueryMetrics tracks questions from submission to their terminal result.
// Safe for concurrent use.
type QueryMetrics struct {
	mu  sync.Mutex
	now func() time.Time

	submitted int64
	finished  int64
	repeats   int64
	outcomes  map[Outcome]int64
	models    map[string]int64
	latencies map[LatencyBucket]int64
	topTerms  *lru.Cache[string, int64]
	recent    *lru.Cache[string, struct{}]
	inFlight  *lru.Cache[index.JobHandle, pending]
	failures  *CircularBuffer[string]
	since     time.Time
}

// New creates a collector. Zero capacities fall back to DefaultConfig.
func New(cfg Config) *QueryMetrics {
	def := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.RecentFailureCapacity <= 0 {
		cfg.RecentFailureCapacity = def.RecentFailureCapacity
	}
	if cfg.RecentQueryCapacity <= 0 {
		cfg.RecentQueryCapacity = def.RecentQueryCapacity
	}
	if cfg.PendingCapacity <= 0 {
		cfg.PendingCapacity = def.PendingCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	// lru.New only fails for non-positive sizes.
	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueryCapacity)
	inFlight, _ := lru.New[index.JobHandle, pending](cfg.PendingCapacity)

	return &QueryMetrics{
		now:       cfg.Now,
		outcomes:  make(map[Outcome]int64),
		models:    make(map[string]int64),
		latencies: make(map[LatencyBucket]int64),
		topTerms:  topTerms,
		recent:    recent,
		inFlight:  inFlight,
		failures:  NewCircularBuffer[string](cfg.RecentFailureCapacity),
		since:     cfg.Now(),
	}
}

// Submitted records a newly submitted question.
func (m *QueryMetrics) Submitted(h index.JobHandle, query, model string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.submitted++
	m.models[model]++

	for _, term := range ExtractTerms(query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	key := hashQuery(query)
	if m.recent.Contains(key) {
		m.repeats++
	}
	m.recent.Add(key, struct{}{})

	m.inFlight.Add(h, pending{query: query, model: model, at: m.now()})
}

// Finished records the terminal outcome of a submitted question. Handles
// that were never submitted, or already finished, are ignored so repeated
// result polls count once.
func (m *QueryMetrics) Finished(h index.JobHandle, outcome Outcome) (QueryEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.inFlight.Peek(h)
	if !ok {
		return QueryEvent{}, false
	}
	m.inFlight.Remove(h)

	ev := QueryEvent{Query: p.query, Model: p.model, Outcome: outcome, Latency: m.now().Sub(p.at)}
	m.finished++
	m.outcomes[outcome]++
	m.latencies[LatencyToBucket(ev.Latency)]++
	if outcome == OutcomeFailed {
		m.failures.Add(p.query)
	}
	return ev, true
}

// Snapshot returns the current metrics with at most topN terms.
func (m *QueryMetrics) Snapshot(topN int) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Snapshot{
		Submitted:      m.submitted,
		Finished:       m.finished,
		Outcomes:       copyMap(m.outcomes),
		Models:         copyMap(m.models),
		Latency:        copyMap(m.latencies),
		RecentFailures: m.failures.Items(),
		RepeatCount:    m.repeats,
		Since:          m.since,
	}

	for _, term := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(term); ok {
			s.TopTerms = append(s.TopTerms, TermCount{Term: term, Count: count})
		}
	}
	sort.SliceStable(s.TopTerms, func(i, j int) bool {
		if s.TopTerms[i].Count != s.TopTerms[j].Count {
			return s.TopTerms[i].Count > s.TopTerms[j].Count
		}
		return s.TopTerms[i].Term < s.TopTerms[j].Term
	})
	if topN >= 0 && len(s.TopTerms) > topN {
		s.TopTerms = s.TopTerms[:topN]
	}
	return s
}

func copyMap[K comparable](in map[K]int64) map[K]int64 {
	out := make(map[K]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// hashQuery normalizes case and surrounding whitespace.
func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:16])
}
