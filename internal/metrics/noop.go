package metrics

import "time"

// NoopRecorder discards all metric events.
type NoopRecorder struct{}

// NewNoop returns a Recorder that does nothing.
func NewNoop() *NoopRecorder {
	return &NoopRecorder{}
}

func (NoopRecorder) IncAuthAttempt(string)                       {}
func (NoopRecorder) IncLocationQuery(string)                     {}
func (NoopRecorder) ObserveLocationQueryDuration(time.Duration)  {}
func (NoopRecorder) IncLocationCacheHit()                        {}
func (NoopRecorder) IncLocationCacheMiss()                       {}
func (NoopRecorder) AddCreditsSpent(int64)                       {}
func (NoopRecorder) IncUsageEventPublished(string)               {}
func (NoopRecorder) IncUsageEventProcessed(string)               {}
func (NoopRecorder) ObserveUsageBatchSize(int)                   {}
