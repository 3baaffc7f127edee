package adapter

import "time"

// SystemClock reports wall-clock time in UTC.
type SystemClock struct{}

// Now implements port.Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
