// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Auth attempt results.
const (
	AuthSuccess   = "success"
	AuthMissing   = "missing"
	AuthMalformed = "malformed"
	AuthInvalid   = "invalid"
)

// Location query outcomes.
const (
	QueryOK           = "ok"
	QueryInsufficient = "insufficient_credits"
	QueryError        = "error"
)

// Usage event statuses.
const (
	UsagePublished = "success"
	UsageDropped   = "dropped"
	UsageProcessed = "success"
	UsageFailed    = "failed"
	UsageSkipped   = "skipped"
)

// Recorder captures metric events for the application.
type Recorder interface {
	// Auth gate metrics
	IncAuthAttempt(result string)

	// Metered endpoint metrics
	IncLocationQuery(outcome string)
	ObserveLocationQueryDuration(duration time.Duration)
	IncLocationCacheHit()
	IncLocationCacheMiss()
	AddCreditsSpent(amount int64)

	// Usage pipeline metrics
	IncUsageEventPublished(status string)
	IncUsageEventProcessed(status string)
	ObserveUsageBatchSize(size int)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
