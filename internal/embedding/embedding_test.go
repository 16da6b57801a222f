package embedding

import "testing"

func TestBatchRanges_Empty(t *testing.T) {
	if got := batchRanges(0, 50); got != nil {
		t.Fatalf("expected nil ranges for n=0, got %v", got)
	}
}

func TestBatchRanges_ExactMultiple(t *testing.T) {
	got := batchRanges(100, 50)
	want := [][2]int{{0, 50}, {50, 100}}
	if len(got) != len(want) {
		t.Fatalf("expected %d ranges, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("range %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestBatchRanges_RemainderTail(t *testing.T) {
	got := batchRanges(120, 50)
	want := [][2]int{{0, 50}, {50, 100}, {100, 120}}
	if len(got) != len(want) {
		t.Fatalf("expected %d ranges, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("range %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestBatchRanges_SingleSmallBatch(t *testing.T) {
	got := batchRanges(3, 50)
	if len(got) != 1 || got[0] != [2]int{0, 3} {
		t.Fatalf("expected one range covering all 3 items, got %v", got)
	}
}

func TestDefaultConfig_MatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig("key", "")
	if cfg.BatchSize != 50 {
		t.Errorf("expected default batch size 50, got %d", cfg.BatchSize)
	}
	if cfg.InterBatchDelay.Milliseconds() != 100 {
		t.Errorf("expected default inter-batch delay 100ms, got %v", cfg.InterBatchDelay)
	}
	if cfg.Model != defaultModel {
		t.Errorf("expected empty model to fall back to %q, got %q", defaultModel, cfg.Model)
	}

	withModel := DefaultConfig("key", "text-embedding-custom")
	if withModel.Model != "text-embedding-custom" {
		t.Errorf("expected explicit model to override default, got %q", withModel.Model)
	}
}
