package session

import "time"

// calculateBackoff doubles base once per failure, capped at ceiling.
// Non-positive failure counts return base.
func calculateBackoff(failures int, base, ceiling time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	return delay
}

// retryDelay is the wait after the attempt-th consecutive failure. Without a
// usable maximum the delay is fixed.
func (c Config) retryDelay(attempt int) time.Duration {
	if c.MaxReconnectDelay <= c.ReconnectDelay {
		return c.ReconnectDelay
	}
	return calculateBackoff(attempt-1, c.ReconnectDelay, c.MaxReconnectDelay)
}
