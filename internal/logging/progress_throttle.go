package logging

// ProgressThrottle decides which encode progress updates deserve a log line.
// The daemon receives telemetry several times a second; only stage changes
// and bucket crossings make it into the log.
type ProgressThrottle struct {
	step   float64
	stage  string
	bucket int
}

// NewProgressThrottle returns a throttle that passes one update per step
// percent. Non-positive steps fall back to 5 percent buckets.
func NewProgressThrottle(step float64) *ProgressThrottle {
	if step <= 0 {
		step = 5
	}
	return &ProgressThrottle{step: step, bucket: -1}
}

// ShouldLog reports whether the update at percent is worth logging. A stage
// change always passes and re-bases the bucket at the new position.
func (p *ProgressThrottle) ShouldLog(percent float64, stage string) bool {
	if p == nil {
		return true
	}
	if stage != p.stage {
		p.stage = stage
		p.bucket = int(percent / p.step)
		return true
	}
	final := int(100 / p.step)
	if percent >= 100 {
		if p.bucket >= final {
			return false
		}
		p.bucket = final
		return true
	}
	if next := int(percent / p.step); next > p.bucket {
		p.bucket = next
		return true
	}
	return false
}

// Reset clears the throttle so the next update always logs.
func (p *ProgressThrottle) Reset() {
	if p == nil {
		return
	}
	p.stage = ""
	p.bucket = -1
}
