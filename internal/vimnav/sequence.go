package vimnav

import "time"

// DefaultSequenceTimeout is how long the detector waits for the second key
// of gg, [[ or ]].
const DefaultSequenceTimeout = 500 * time.Millisecond

// SequenceDetector recognizes two-key sequences. It is either idle or
// awaiting a second key until a deadline.
type SequenceDetector struct {
	timeout  time.Duration
	now      func() time.Time
	first    string
	deadline time.Time
}

// NewSequenceDetector returns an idle detector. A zero timeout uses
// DefaultSequenceTimeout and a nil clock uses time.Now.
func NewSequenceDetector(timeout time.Duration, now func() time.Time) *SequenceDetector {
	if timeout <= 0 {
		timeout = DefaultSequenceTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &SequenceDetector{timeout: timeout, now: now}
}

func isPrefix(key string) bool {
	return key == "g" || key == "[" || key == "]"
}

// Feed consumes one key. It returns the completed sequence when key finishes
// one, or waiting=true when key was held as a possible first key. Otherwise
// both are zero and the caller handles key on its own.
func (d *SequenceDetector) Feed(key string) (seq string, waiting bool) {
	now := d.now()
	if d.first != "" {
		first := d.first
		expired := now.After(d.deadline)
		d.Reset()
		if !expired && key == first {
			return first + key, false
		}
	}
	if isPrefix(key) {
		d.first = key
		d.deadline = now.Add(d.timeout)
		return "", true
	}
	return "", false
}

// Awaiting returns the held first key while its deadline has not passed.
func (d *SequenceDetector) Awaiting() string {
	if d.first == "" || d.now().After(d.deadline) {
		return ""
	}
	return d.first
}

// Reset returns to idle.
func (d *SequenceDetector) Reset() {
	d.first = ""
	d.deadline = time.Time{}
}
