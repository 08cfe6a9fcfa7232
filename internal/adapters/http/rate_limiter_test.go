package http

import (
	"testing"
	"time"
)

func TestPublishRateLimiter_Window(t *testing.T) {
	rl := NewPublishRateLimiter(2, 50*time.Millisecond)

	if !rl.Allow("s1_camera") || !rl.Allow("s1_camera") {
		t.Fatal("attempts within the limit were denied")
	}
	if rl.Allow("s1_camera") {
		t.Fatal("third attempt inside the window was allowed")
	}
	if !rl.Allow("s2_camera") {
		t.Fatal("another stream shares the first stream's window")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("s1_camera") {
		t.Fatal("attempt after the window expired was denied")
	}
}

func TestPublishRateLimiter_DropsIdleStreams(t *testing.T) {
	rl := NewPublishRateLimiter(5, 20*time.Millisecond)
	rl.Allow("s1_camera")
	rl.Allow("s2_screen")

	time.Sleep(40 * time.Millisecond)
	rl.Allow("s3_camera")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.history) != 1 {
		t.Fatalf("history holds %d streams, want only the active one", len(rl.history))
	}
	if _, ok := rl.history["s3_camera"]; !ok {
		t.Fatal("active stream was swept")
	}
}
