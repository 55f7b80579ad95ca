package publish

import (
	"testing"
	"time"
)

func TestAttemptLogRecentNewestFirst(t *testing.T) {
	log := NewAttemptLog(t.TempDir())
	defer log.Close()

	for i := 1; i <= 5; i++ {
		log.Append(AttemptRecord{
			Timestamp:   time.Now(),
			OperationID: "op",
			Attempt:     i,
		})
	}

	recent := log.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Recent(3) returned %d records, want 3", len(recent))
	}
	if recent[0].Attempt != 5 || recent[2].Attempt != 3 {
		t.Fatalf("Recent order = [%d %d %d], want [5 4 3]",
			recent[0].Attempt, recent[1].Attempt, recent[2].Attempt)
	}
}

func TestAttemptLogRecentBounded(t *testing.T) {
	log := NewAttemptLog(t.TempDir())
	defer log.Close()
	log.keep = 10

	for i := 1; i <= 25; i++ {
		log.Append(AttemptRecord{Attempt: i})
	}

	recent := log.Recent(0)
	if len(recent) != 10 {
		t.Fatalf("window size = %d, want 10", len(recent))
	}
	if recent[0].Attempt != 25 {
		t.Fatalf("newest attempt = %d, want 25", recent[0].Attempt)
	}
}
