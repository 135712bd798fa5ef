// Package telemetry keeps a local log of answered runs in SQLite.
// Nothing is reported externally.
package telemetry

import (
	"time"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket is an answer latency histogram bucket.
type LatencyBucket string

const (
	BucketS1   LatencyBucket = "s1"   // <1s
	BucketS3   LatencyBucket = "s3"   // 1-3s
	BucketS10  LatencyBucket = "s10"  // 3-10s
	BucketS30  LatencyBucket = "s30"  // 10-30s
	BucketSMax LatencyBucket = "smax" // >=30s
)

// Buckets lists the buckets in ascending order.
var Buckets = []LatencyBucket{BucketS1, BucketS3, BucketS10, BucketS30, BucketSMax}

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < time.Second:
		return BucketS1
	case d < 3*time.Second:
		return BucketS3
	case d < 10*time.Second:
		return BucketS10
	case d < 30*time.Second:
		return BucketS30
	default:
		return BucketSMax
	}
}

// =============================================================================
// Records
// =============================================================================

// Run is one stored run.
type Run struct {
	RunID          string        `json:"run_id"`
	Query          string        `json:"query"`
	Path           string        `json:"path"`
	Outcome        string        `json:"outcome"`
	PrimaryKind    string        `json:"primary_kind"`
	PrimaryTotal   float64       `json:"primary_total"`
	SecondaryTotal *float64      `json:"secondary_total,omitempty"`
	Evidence       int           `json:"evidence"`
	WebResults     int           `json:"web_results"`
	Degradations   []string      `json:"degradations,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Stats aggregates runs since a point in time.
type Stats struct {
	Since              time.Time               `json:"since"`
	TotalRuns          int64                   `json:"total_runs"`
	FallbackRuns       int64                   `json:"fallback_runs"`
	InsufficientRuns   int64                   `json:"insufficient_runs"`
	ApologyRuns        int64                   `json:"apology_runs"`
	MalformedJudgments int64                   `json:"malformed_judgments"`
	AvgPrimaryTotal    float64                 `json:"avg_primary_total"`
	Latency            map[LatencyBucket]int64 `json:"latency"`
	Degradations       map[string]int64        `json:"degradations"`
}

// FallbackRate is the share of runs that took the web fallback branch.
func (s *Stats) FallbackRate() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.FallbackRuns) / float64(s.TotalRuns)
}
