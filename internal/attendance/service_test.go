package attendance

import (
	"context"
	"testing"
	"time"
)

var testSchedule = Schedule{StartHour: 9, StartMinute: 0, Grace: 15 * time.Minute}

func TestServiceMark(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)

	t.Run("derives status at creation", func(t *testing.T) {
		store := NewMemory()
		svc := NewService(store, testSchedule, 5*time.Minute)

		early, err := svc.Mark(ctx, "a", "gate-1", day.Add(9*time.Hour+2*time.Minute), 0.91)
		if err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if early.Status != StatusPresent {
			t.Errorf("status = %s, want present", early.Status)
		}

		late, err := svc.Mark(ctx, "b", "gate-1", day.Add(9*time.Hour+20*time.Minute), 0.88)
		if err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if late.Status != StatusLate {
			t.Errorf("status = %s, want late", late.Status)
		}
	})

	t.Run("repeat scan inside dedup window returns existing entry", func(t *testing.T) {
		store := NewMemory()
		now := day.Add(9 * time.Hour)
		store.SetNow(func() time.Time { return now })
		svc := NewService(store, testSchedule, 5*time.Minute)

		first, err := svc.Mark(ctx, "a", "gate-1", now, 0.9)
		if err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		second, err := svc.Mark(ctx, "a", "gate-2", now.Add(time.Minute), 0.8)
		if err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("second scan created a new entry %s, want %s", second.ID, first.ID)
		}

		entries, _ := store.List(ctx, ListFilter{PersonID: "a"})
		if len(entries) != 1 {
			t.Errorf("stored entries = %d, want 1", len(entries))
		}
	})

	t.Run("scan outside dedup window inserts a new entry", func(t *testing.T) {
		store := NewMemory()
		now := day.Add(9 * time.Hour)
		store.SetNow(func() time.Time { return now })
		svc := NewService(store, testSchedule, 5*time.Minute)

		if _, err := svc.Mark(ctx, "a", "gate-1", now.Add(-10*time.Minute), 0.9); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if _, err := svc.Mark(ctx, "a", "gate-1", now, 0.9); err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		entries, _ := store.List(ctx, ListFilter{PersonID: "a"})
		if len(entries) != 2 {
			t.Errorf("stored entries = %d, want 2", len(entries))
		}
	})

	t.Run("clamps confidence into the unit interval", func(t *testing.T) {
		store := NewMemory()
		svc := NewService(store, testSchedule, time.Minute)

		e, err := svc.Mark(ctx, "a", "", day.Add(9*time.Hour), 4.2)
		if err != nil {
			t.Fatalf("Mark() error = %v", err)
		}
		if e.Confidence != 1 {
			t.Errorf("confidence = %v, want 1", e.Confidence)
		}
	})

	t.Run("rejects empty person id", func(t *testing.T) {
		svc := NewService(NewMemory(), testSchedule, time.Minute)
		if _, err := svc.Mark(ctx, "", "gate-1", day, 0.5); err == nil {
			t.Error("Mark() with empty person id should fail")
		}
	})
}

func TestServiceOverride(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)

	t.Run("writes explicit entry with manual sentinel", func(t *testing.T) {
		store := NewMemory()
		svc := NewService(store, testSchedule, time.Minute)

		e, err := svc.Override(ctx, "a", day.Add(23*time.Hour), StatusAbsent)
		if err != nil {
			t.Fatalf("Override() error = %v", err)
		}
		if e.Status != StatusAbsent {
			t.Errorf("status = %s, want absent", e.Status)
		}
		if e.Confidence != ManualConfidence {
			t.Errorf("confidence = %v, want %v", e.Confidence, ManualConfidence)
		}
	})

	t.Run("keeps the requested status even past the cutoff", func(t *testing.T) {
		svc := NewService(NewMemory(), testSchedule, time.Minute)
		e, err := svc.Override(ctx, "a", day.Add(15*time.Hour), StatusPresent)
		if err != nil {
			t.Fatalf("Override() error = %v", err)
		}
		if e.Status != StatusPresent {
			t.Errorf("status = %s, want present", e.Status)
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		svc := NewService(NewMemory(), testSchedule, time.Minute)
		if _, err := svc.Override(ctx, "a", day, Status("tardy")); err == nil {
			t.Error("Override() with unknown status should fail")
		}
	})
}
