package ids

import (
	"testing"
	"time"
)

func TestNew_SortableWithinMillisecond(t *testing.T) {
	now := time.UnixMilli(1757555446123)
	prev := New(now)
	for i := 0; i < 100; i++ {
		next := New(now)
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestTime(t *testing.T) {
	now := time.UnixMilli(1757555446123)
	got, err := Time(New(now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("Time() = %v, want %v", got, now)
	}
	if _, err := Time("not-a-ulid"); err == nil {
		t.Error("expected error for malformed id")
	}
}
