package search

import "testing"

func TestComputeMatchAllTokensAdjacent(t *testing.T) {
	// "the quick brown fox" with query tokens quick,brown at offsets 1,2
	m := ComputeMatch([][]uint16{{1}, {2}})
	if m.WordsPresent != 2 {
		t.Fatalf("WordsPresent = %d, want 2", m.WordsPresent)
	}
	if m.StartOffset != 1 {
		t.Errorf("StartOffset = %d, want 1", m.StartOffset)
	}
	// adjacent tokens: displacement 1, distance = 100-1 = 99
	if m.Distance != 99 {
		t.Errorf("Distance = %d, want 99", m.Distance)
	}
}

func TestComputeMatchPrefersMoreWordsPresent(t *testing.T) {
	// token 0 occurs far from tokens 1,2 which are adjacent to each other;
	// no window holds all three, so the best window is the adjacent pair
	// of tokens 1 and 2, with two words present.
	m := ComputeMatch([][]uint16{{50}, {1}, {2}})
	if m.WordsPresent < 2 {
		t.Fatalf("WordsPresent = %d, want at least 2", m.WordsPresent)
	}
}

func TestComputeMatchMissingTokenYieldsEmptyDiff(t *testing.T) {
	m := ComputeMatch([][]uint16{{1}, {}})
	if m.WordsPresent != 1 {
		t.Fatalf("WordsPresent = %d, want 1", m.WordsPresent)
	}
	if m.OffsetDiffs[2] != 127 {
		t.Errorf("OffsetDiffs[2] = %d, want 127 (absent token sentinel)", m.OffsetDiffs[2])
	}
}

func TestComputeMatchEmptyInput(t *testing.T) {
	m := ComputeMatch(nil)
	if m.WordsPresent != 0 {
		t.Errorf("WordsPresent = %d, want 0", m.WordsPresent)
	}
}

func TestPackOffsetDiffsBaseIsZero(t *testing.T) {
	var out [16]int8
	packOffsetDiffs([]uint16{10, 12}, 10, &out)
	if out[0] != 2 {
		t.Fatalf("out[0] (num_tokens) = %d, want 2", out[0])
	}
	if out[1] != 0 {
		t.Errorf("out[1] = %d, want 0 (base offset)", out[1])
	}
	if out[2] != 2 {
		t.Errorf("out[2] = %d, want 2", out[2])
	}
}
