package logging_test

import (
	"testing"

	"ffui/internal/logging"
)

func TestProgressThrottleOnePerBucket(t *testing.T) {
	throttle := logging.NewProgressThrottle(10)

	if !throttle.ShouldLog(1, "encoding") {
		t.Fatal("first update should log")
	}
	if throttle.ShouldLog(5, "encoding") {
		t.Fatal("same bucket should not log again")
	}
	if !throttle.ShouldLog(12, "encoding") {
		t.Fatal("crossing into the next bucket should log")
	}
	if throttle.ShouldLog(14, "encoding") {
		t.Fatal("second update in the same bucket should not log")
	}
	if !throttle.ShouldLog(47, "encoding") {
		t.Fatal("skipping buckets should still log")
	}
}

func TestProgressThrottleStageChangeAlwaysLogs(t *testing.T) {
	throttle := logging.NewProgressThrottle(10)

	if !throttle.ShouldLog(55, "analysis") {
		t.Fatal("first stage update should log")
	}
	if throttle.ShouldLog(58, "analysis") {
		t.Fatal("same bucket should not log")
	}
	if !throttle.ShouldLog(2, "encoding") {
		t.Fatal("stage change should log even at lower percent")
	}
}

func TestProgressThrottleCompletionLogsOnce(t *testing.T) {
	throttle := logging.NewProgressThrottle(10)

	throttle.ShouldLog(95, "encoding")
	if !throttle.ShouldLog(100, "encoding") {
		t.Fatal("reaching 100 should log")
	}
	if throttle.ShouldLog(100, "encoding") {
		t.Fatal("repeated 100 should not log")
	}
}

func TestProgressThrottleReset(t *testing.T) {
	throttle := logging.NewProgressThrottle(10)

	throttle.ShouldLog(42, "encoding")
	if throttle.ShouldLog(43, "encoding") {
		t.Fatal("same bucket should not log before reset")
	}

	throttle.Reset()
	if !throttle.ShouldLog(43, "encoding") {
		t.Fatal("update after reset should log")
	}
}
