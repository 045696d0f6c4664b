package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AuthSuccess   uint64
	AuthMissing   uint64
	AuthMalformed uint64
	AuthInvalid   uint64

	QueriesOK             uint64
	QueriesInsufficient   uint64
	QueriesError          uint64
	QueryDurationCount    uint64
	QueryDurationTotalNs  int64
	LocationCacheHits     uint64
	LocationCacheMisses   uint64
	CreditsSpent          uint64

	UsagePublished      uint64
	UsageDropped        uint64
	UsageProcessed      uint64
	UsageFailed         uint64
	UsageSkipped        uint64
	UsageBatchCount     uint64
	UsageBatchSizeTotal uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	authSuccess   uint64
	authMissing   uint64
	authMalformed uint64
	authInvalid   uint64

	queriesOK            uint64
	queriesInsufficient  uint64
	queriesError         uint64
	queryDurationCount   uint64
	queryDurationTotalNs int64
	locationCacheHits    uint64
	locationCacheMisses  uint64
	creditsSpent         uint64

	usagePublished      uint64
	usageDropped        uint64
	usageProcessed      uint64
	usageFailed         uint64
	usageSkipped        uint64
	usageBatchCount     uint64
	usageBatchSizeTotal uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		AuthSuccess:          atomic.LoadUint64(&m.authSuccess),
		AuthMissing:          atomic.LoadUint64(&m.authMissing),
		AuthMalformed:        atomic.LoadUint64(&m.authMalformed),
		AuthInvalid:          atomic.LoadUint64(&m.authInvalid),
		QueriesOK:            atomic.LoadUint64(&m.queriesOK),
		QueriesInsufficient:  atomic.LoadUint64(&m.queriesInsufficient),
		QueriesError:         atomic.LoadUint64(&m.queriesError),
		QueryDurationCount:   atomic.LoadUint64(&m.queryDurationCount),
		QueryDurationTotalNs: atomic.LoadInt64(&m.queryDurationTotalNs),
		LocationCacheHits:    atomic.LoadUint64(&m.locationCacheHits),
		LocationCacheMisses:  atomic.LoadUint64(&m.locationCacheMisses),
		CreditsSpent:         atomic.LoadUint64(&m.creditsSpent),
		UsagePublished:       atomic.LoadUint64(&m.usagePublished),
		UsageDropped:         atomic.LoadUint64(&m.usageDropped),
		UsageProcessed:       atomic.LoadUint64(&m.usageProcessed),
		UsageFailed:          atomic.LoadUint64(&m.usageFailed),
		UsageSkipped:         atomic.LoadUint64(&m.usageSkipped),
		UsageBatchCount:      atomic.LoadUint64(&m.usageBatchCount),
		UsageBatchSizeTotal:  atomic.LoadUint64(&m.usageBatchSizeTotal),
	}
}

// IncAuthAttempt increments the counter matching the auth result.
func (m *InMemoryRecorder) IncAuthAttempt(result string) {
	switch result {
	case AuthSuccess:
		atomic.AddUint64(&m.authSuccess, 1)
	case AuthMissing:
		atomic.AddUint64(&m.authMissing, 1)
	case AuthMalformed:
		atomic.AddUint64(&m.authMalformed, 1)
	default:
		atomic.AddUint64(&m.authInvalid, 1)
	}
}

// IncLocationQuery increments the counter matching the query outcome.
func (m *InMemoryRecorder) IncLocationQuery(outcome string) {
	switch outcome {
	case QueryOK:
		atomic.AddUint64(&m.queriesOK, 1)
	case QueryInsufficient:
		atomic.AddUint64(&m.queriesInsufficient, 1)
	default:
		atomic.AddUint64(&m.queriesError, 1)
	}
}

// ObserveLocationQueryDuration records query duration.
func (m *InMemoryRecorder) ObserveLocationQueryDuration(duration time.Duration) {
	atomic.AddUint64(&m.queryDurationCount, 1)
	atomic.AddInt64(&m.queryDurationTotalNs, duration.Nanoseconds())
}

// IncLocationCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncLocationCacheHit() {
	atomic.AddUint64(&m.locationCacheHits, 1)
}

// IncLocationCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncLocationCacheMiss() {
	atomic.AddUint64(&m.locationCacheMisses, 1)
}

// AddCreditsSpent accumulates credits debited for API calls.
func (m *InMemoryRecorder) AddCreditsSpent(amount int64) {
	if amount > 0 {
		atomic.AddUint64(&m.creditsSpent, uint64(amount))
	}
}

// IncUsageEventPublished increments usage publish counters.
func (m *InMemoryRecorder) IncUsageEventPublished(status string) {
	if status == UsagePublished {
		atomic.AddUint64(&m.usagePublished, 1)
		return
	}
	atomic.AddUint64(&m.usageDropped, 1)
}

// IncUsageEventProcessed increments usage processing counters.
func (m *InMemoryRecorder) IncUsageEventProcessed(status string) {
	switch status {
	case UsageProcessed:
		atomic.AddUint64(&m.usageProcessed, 1)
	case UsageSkipped:
		atomic.AddUint64(&m.usageSkipped, 1)
	default:
		atomic.AddUint64(&m.usageFailed, 1)
	}
}

// ObserveUsageBatchSize records a processed batch size.
func (m *InMemoryRecorder) ObserveUsageBatchSize(size int) {
	atomic.AddUint64(&m.usageBatchCount, 1)
	atomic.AddUint64(&m.usageBatchSizeTotal, uint64(size))
}
