package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records commit outcomes for stock ledger operations.
type LedgerMetrics struct {
	commits   *prometheus.CounterVec
	conflicts *prometheus.CounterVec
	attempts  *prometheus.HistogramVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_commits_total",
		Help: "Committed stock ledger operations.",
	}, []string{"op"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_conflicts_total",
		Help: "Version conflicts observed while committing ledger operations.",
	}, []string{"op"})
	attempts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_commit_attempts",
		Help:    "Attempts needed before a ledger operation committed or gave up.",
		Buckets: []float64{1, 2, 3, 4, 5},
	}, []string{"op"})
	reg.MustRegister(commits, conflicts, attempts)
	return &LedgerMetrics{
		commits:   commits,
		conflicts: conflicts,
		attempts:  attempts,
	}
}

// IncCommit increments the commit counter for the named operation.
func (m *LedgerMetrics) IncCommit(op string) {
	if m == nil || m.commits == nil {
		return
	}
	m.commits.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncConflict increments the conflict counter for the named operation.
func (m *LedgerMetrics) IncConflict(op string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(op)).Inc()
}

// ObserveAttempts records how many attempts an operation used.
func (m *LedgerMetrics) ObserveAttempts(op string, attempts int) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(op)).Observe(float64(attempts))
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
