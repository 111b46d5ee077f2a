package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_AdmitsUpToLimit(t *testing.T) {
	rl := New(10, time.Minute)
	now := time.Now()

	for i := 0; i < 10; i++ {
		if !rl.Allow("sess-1", now.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}

	// 11th within the window is rejected.
	if rl.Allow("sess-1", now.Add(10*time.Second)) {
		t.Fatal("11th request within window should be rejected")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	rl := New(10, time.Minute)
	now := time.Now()

	for i := 0; i < 10; i++ {
		rl.Allow("sess-1", now.Add(time.Duration(i)*time.Second))
	}
	if rl.Allow("sess-1", now.Add(30*time.Second)) {
		t.Fatal("should be rejected while window is full")
	}

	// Oldest admission (t=0) falls outside the window at t=61s.
	if !rl.Allow("sess-1", now.Add(61*time.Second)) {
		t.Fatal("admission should resume once the oldest timestamp expires")
	}
}

func TestLimiter_RejectionNotRecorded(t *testing.T) {
	rl := New(2, time.Minute)
	now := time.Now()

	rl.Allow("sess-1", now)
	rl.Allow("sess-1", now)

	// Hammering rejections must not extend the block.
	for i := 0; i < 50; i++ {
		rl.Allow("sess-1", now.Add(30*time.Second))
	}

	if !rl.Allow("sess-1", now.Add(61*time.Second)) {
		t.Fatal("rejected attempts should not count against the window")
	}
}

func TestLimiter_SessionsIndependent(t *testing.T) {
	rl := New(2, time.Minute)
	now := time.Now()

	rl.Allow("sess-a", now)
	rl.Allow("sess-a", now)
	if rl.Allow("sess-a", now) {
		t.Fatal("sess-a should be limited")
	}
	if !rl.Allow("sess-b", now) {
		t.Fatal("sess-b should be unaffected")
	}
}

func TestLimiter_Remove(t *testing.T) {
	rl := New(1, time.Minute)
	now := time.Now()

	rl.Allow("sess-1", now)
	rl.Allow("sess-2", now)
	if rl.Len() != 2 {
		t.Fatalf("expected 2 tracked sessions, got %d", rl.Len())
	}

	rl.Remove("sess-1")
	if rl.Len() != 1 {
		t.Fatalf("expected 1 tracked session after remove, got %d", rl.Len())
	}

	// Removed session starts fresh.
	if !rl.Allow("sess-1", now) {
		t.Fatal("removed session should be admitted again")
	}
}

func TestLimiter_PruneExcept(t *testing.T) {
	rl := New(5, time.Minute)
	now := time.Now()

	rl.Allow("kept", now)
	rl.Allow("stale-1", now)
	rl.Allow("stale-2", now)

	removed := rl.PruneExcept(map[string]struct{}{"kept": {}})
	if removed != 2 {
		t.Fatalf("expected 2 pruned, got %d", removed)
	}
	if rl.Len() != 1 {
		t.Fatalf("expected 1 tracked session, got %d", rl.Len())
	}
}
