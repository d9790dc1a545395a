package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordReady_IsIdempotent(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1700000000, 0)

	if err := s.RecordReady("AUTH-1", base); err != nil {
		t.Fatalf("RecordReady() error = %v", err)
	}
	// A later call should not reset the original ready_since.
	if err := s.RecordReady("AUTH-1", base.Add(time.Hour)); err != nil {
		t.Fatalf("RecordReady() error = %v", err)
	}

	bonus, err := s.AgingBonus("AUTH-1", 1.0, base.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("AgingBonus() error = %v", err)
	}
	if bonus != 10 {
		t.Errorf("AgingBonus() = %v, want 10", bonus)
	}
}

func TestStore_AgingBonus_UnknownTaskIsZero(t *testing.T) {
	s := openTestStore(t)
	bonus, err := s.AgingBonus("UNKNOWN-1", 2.0, time.Now())
	if err != nil {
		t.Fatalf("AgingBonus() error = %v", err)
	}
	if bonus != 0 {
		t.Errorf("AgingBonus() = %v, want 0", bonus)
	}
}

func TestStore_ClearReady(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	if err := s.RecordReady("AUTH-1", now); err != nil {
		t.Fatalf("RecordReady() error = %v", err)
	}
	if err := s.ClearReady("AUTH-1"); err != nil {
		t.Fatalf("ClearReady() error = %v", err)
	}
	bonus, err := s.AgingBonus("AUTH-1", 1.0, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("AgingBonus() error = %v", err)
	}
	if bonus != 0 {
		t.Errorf("AgingBonus() after clear = %v, want 0", bonus)
	}
}

func TestStore_IncrementRetry(t *testing.T) {
	s := openTestStore(t)
	for i := 1; i <= 3; i++ {
		count, err := s.IncrementRetry("AUTH-1")
		if err != nil {
			t.Fatalf("IncrementRetry() error = %v", err)
		}
		if count != i {
			t.Errorf("IncrementRetry() = %d, want %d", count, i)
		}
	}
}

func TestStore_RecordSkipAndEligibility(t *testing.T) {
	s := openTestStore(t)
	now := time.Unix(1700000000, 0)

	eligible, err := s.SkipEligible("AUTH-1", 10*time.Minute, now)
	if err != nil {
		t.Fatalf("SkipEligible() error = %v", err)
	}
	if !eligible {
		t.Error("expected never-skipped task to be eligible")
	}

	if err := s.RecordSkip("AUTH-1", now); err != nil {
		t.Fatalf("RecordSkip() error = %v", err)
	}

	eligible, err = s.SkipEligible("AUTH-1", 10*time.Minute, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("SkipEligible() error = %v", err)
	}
	if eligible {
		t.Error("expected task still within backoff window to be ineligible")
	}

	eligible, err = s.SkipEligible("AUTH-1", 10*time.Minute, now.Add(11*time.Minute))
	if err != nil {
		t.Fatalf("SkipEligible() error = %v", err)
	}
	if !eligible {
		t.Error("expected task past backoff window to be eligible")
	}
}

func TestStore_RecordOutcome(t *testing.T) {
	s := openTestStore(t)
	if err := s.RecordOutcome("AUTH-1", "success"); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	// overwrite
	if err := s.RecordOutcome("AUTH-1", "failure"); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
}
