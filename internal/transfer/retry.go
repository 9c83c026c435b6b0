package transfer

import "time"

// RetryConfig controls the retry combinator.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
	// ShouldRetry reports whether err is the kind of failure this
	// wrapper owns. Any other error propagates immediately without
	// consuming an attempt. Nil means retry everything.
	ShouldRetry func(error) bool
	// Sleep is a test hook. Defaults to time.Sleep.
	Sleep func(time.Duration)
	// OnRetry is invoked before each re-attempt.
	OnRetry func(attempt int, err error)
}

// Retry runs op up to cfg.Attempts times with a fixed delay in
// between. The last error is returned unchanged so callers can still
// match its type.
func Retry(cfg RetryConfig, op func() error) error {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return err
		}
		lastErr = err
		if attempt < cfg.Attempts {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, err)
			}
			sleep(cfg.Delay)
		}
	}
	return lastErr
}
