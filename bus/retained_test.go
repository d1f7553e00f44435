package bus

import "testing"

func TestRetainedCacheSetAndMatching(t *testing.T) {
	c := NewMemoryRetainedCache()
	c.Set("fsuipc/offsets/1000:2", []byte{1, 2})
	c.Set("other/topic", []byte{9})

	matches := c.Matching("fsuipc/offsets/#")
	if len(matches) != 1 || matches[0].Topic != "fsuipc/offsets/1000:2" {
		t.Fatalf("unexpected matches %+v", matches)
	}
}

func TestRetainedCacheClearOnEmptyPayload(t *testing.T) {
	c := NewMemoryRetainedCache()
	c.Set("a/b", []byte{1})
	c.Set("a/b", nil)

	if matches := c.Matching("a/b"); len(matches) != 0 {
		t.Fatalf("expected no retained value after clear, got %+v", matches)
	}
}

func TestRetainedCacheMatchingHonorsWildcards(t *testing.T) {
	c := NewMemoryRetainedCache()
	c.Set("a/b/c", []byte{1})
	c.Set("a/x/c", []byte{2})
	c.Set("a/b/d", []byte{3})

	matches := c.Matching("a/+/c")
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches for a/+/c, got %d: %+v", len(matches), matches)
	}
}
