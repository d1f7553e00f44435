package topic

import "testing"

func TestTrieSubscribeMatch(t *testing.T) {
	tr := NewTrie[string]()

	if err := tr.Subscribe("fsuipc/offsets/+", "sub-1", "handler-a"); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	got := tr.Match("fsuipc/offsets/0x0560:4")
	if len(got) != 1 || got[0] != "handler-a" {
		t.Fatalf("expected one match, got %v", got)
	}

	if got := tr.Match("fsuipc/writes/0x0560:4"); len(got) != 0 {
		t.Fatalf("expected no match, got %v", got)
	}
}

func TestTrieMultipleSubscribersSameFilter(t *testing.T) {
	tr := NewTrie[int]()
	_ = tr.Subscribe("a/b", "s1", 1)
	_ = tr.Subscribe("a/b", "s2", 2)

	got := tr.Match("a/b")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
}

func TestTrieUnsubscribe(t *testing.T) {
	tr := NewTrie[int]()
	_ = tr.Subscribe("a/b", "s1", 1)

	if !tr.Unsubscribe("a/b", "s1") {
		t.Fatal("expected unsubscribe to report removal")
	}
	if tr.Unsubscribe("a/b", "s1") {
		t.Fatal("expected second unsubscribe to report no removal")
	}
	if got := tr.Match("a/b"); len(got) != 0 {
		t.Fatalf("expected no matches after unsubscribe, got %v", got)
	}
	if tr.Count() != 0 {
		t.Fatalf("expected trie to be pruned empty, count=%d", tr.Count())
	}
}

func TestTrieUnsubscribeAll(t *testing.T) {
	tr := NewTrie[int]()
	_ = tr.Subscribe("a/b", "s1", 1)
	_ = tr.Subscribe("a/c", "s1", 2)
	_ = tr.Subscribe("a/c", "s2", 3)

	removed := tr.UnsubscribeAll("s1")
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if got := tr.Match("a/c"); len(got) != 1 || got[0] != 3 {
		t.Fatalf("expected s2's registration to remain, got %v", got)
	}
}

func TestTrieMultiLevelWildcardMatch(t *testing.T) {
	tr := NewTrie[string]()
	_ = tr.Subscribe("fsuipc/#", "s1", "all-offsets")

	got := tr.Match("fsuipc/offsets/0x0560:4")
	if len(got) != 1 {
		t.Fatalf("expected # subscription to match, got %v", got)
	}
}

func TestTrieCount(t *testing.T) {
	tr := NewTrie[int]()
	_ = tr.Subscribe("a/b", "s1", 1)
	_ = tr.Subscribe("a/c", "s2", 2)

	if tr.Count() != 2 {
		t.Fatalf("expected count 2, got %d", tr.Count())
	}

	tr.Clear()
	if tr.Count() != 0 {
		t.Fatalf("expected count 0 after clear, got %d", tr.Count())
	}
}
