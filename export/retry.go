package export

import (
	"log"
	"time"
)

// RetryPolicy wraps an Exporter with a bounded, fixed-delay retry loop.
// MaxRetries is the total attempt budget; the delay applies between
// attempts, never before the first. No backoff growth: retries here are
// rare and bounded.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// Run invokes exporter for job until it succeeds or the attempt budget is
// exhausted. Returns the number of attempts made and the last error, nil on
// success.
func (rp RetryPolicy) Run(exporter Exporter, job Job) (int, error) {
	maxAttempts := rp.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = exporter.Export(job)
		if lastErr == nil {
			return attempt, nil
		}
		log.Printf("Export failed for event %s (attempt %d/%d): %v", job.Identifier, attempt, maxAttempts, lastErr)
		if attempt < maxAttempts {
			log.Printf("Retrying in %s...", rp.Delay)
			time.Sleep(rp.Delay)
		}
	}
	log.Printf("Max retries reached, failed to export event %s", job.Identifier)
	return maxAttempts, lastErr
}
