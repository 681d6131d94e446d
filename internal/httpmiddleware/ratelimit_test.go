package httpmiddleware

import "testing"

func TestTokenBucketAllow(t *testing.T) {
	l := NewSimpleTokenBucket(3, 60)

	for i := 0; i < 3; i++ {
		if !l.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.allow("1.2.3.4") {
		t.Error("request past capacity should be throttled")
	}
	// A different client has its own bucket.
	if !l.allow("5.6.7.8") {
		t.Error("separate clients must not share buckets")
	}
}

func TestTokenBucketDefaultsCapacity(t *testing.T) {
	l := NewSimpleTokenBucket(0, 2)
	if !l.allow("a") || !l.allow("a") {
		t.Error("capacity should default to the per-minute rate")
	}
	if l.allow("a") {
		t.Error("third request should be throttled")
	}
}
