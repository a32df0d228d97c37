// Package search implements the search executor, spec section 4.4:
// candidate generation against the inverted index, per-field proximity
// scoring, and the composite text-match score. The proximity scorer is
// grounded directly on original_source/include/match_score.h.
package search

import "container/heap"

const (
	// WindowSize is the sliding window width over sorted token offsets,
	// spec section 8's boundary behaviour and match_score.h's WINDOW_SIZE.
	WindowSize = 10
	// MaxTokensDistance is the distance ceiling match_score.h subtracts
	// min_displacement from; distances at or above it collapse to 0.
	MaxTokensDistance = 100
	// MaxDisplacement is the sentinel for "token absent from the window",
	// match_score.h's std::numeric_limits<uint16_t>::max().
	MaxDisplacement = 1<<16 - 1
)

// Match is a single document's proximity-scoring result for one field,
// spec section 3's posting-list-derived candidate shape and
// match_score.h's Match struct.
type Match struct {
	WordsPresent  uint8
	Distance      uint8
	StartOffset   uint16
	OffsetDiffs   [16]int8 // [0] = num_tokens; absent token stores math.MaxInt8
}

// tokenOffset is one entry in the per-token offset heap, match_score.h's
// TokenOffset.
type tokenOffset struct {
	tokenID     uint8
	offset      uint16
	offsetIndex int
}

// offsetHeap is a min-heap by offset, container/heap-backed (the teacher
// codebase favors hand-rolled heaps for its hottest loops per design
// notes, but this one runs once per candidate document per field, not
// per-token-pair, so container/heap's indirection is cheap enough and
// keeps this file approachable).
type offsetHeap []tokenOffset

func (h offsetHeap) Len() int            { return len(h) }
func (h offsetHeap) Less(i, j int) bool  { return h[i].offset < h[j].offset }
func (h offsetHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *offsetHeap) Push(x any)         { *h = append(*h, x.(tokenOffset)) }
func (h *offsetHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// ComputeMatch slides a WindowSize window over the sorted union of a
// document's per-token offsets (tokenOffsets[tokenID] is that token's
// sorted occurrence offsets within the field) and returns the window
// maximizing words_present, tied-broken by minimum total displacement,
// spec section 4.4.
func ComputeMatch(tokenOffsets [][]uint16) Match {
	numTokens := len(tokenOffsets)
	if numTokens == 0 {
		return Match{}
	}
	if numTokens > WindowSize {
		numTokens = WindowSize // a query contributes at most WindowSize tokens to one window
	}

	h := make(offsetHeap, 0, len(tokenOffsets))
	for tid, offsets := range tokenOffsets {
		if len(offsets) == 0 {
			continue
		}
		h = append(h, tokenOffset{tokenID: uint8(tid), offset: offsets[0], offsetIndex: 0})
	}
	heap.Init(&h)

	tokenOffset_ := make([]uint16, len(tokenOffsets))
	for i := range tokenOffset_ {
		tokenOffset_[i] = MaxDisplacement
	}
	minTokenOffset := make([]uint16, len(tokenOffsets))
	copy(minTokenOffset, tokenOffset_)

	var window []tokenOffset
	maxMatch := 0
	minDisplacement := MaxDisplacement

	addTop := func() {
		top := heap.Pop(&h).(tokenOffset)
		window = append(window, top)
		if top.offset < tokenOffset_[top.tokenID] {
			tokenOffset_[top.tokenID] = top.offset
		}
		top.offsetIndex++
		if top.offsetIndex < len(tokenOffsets[top.tokenID]) {
			heap.Push(&h, tokenOffset{tokenID: top.tokenID, offset: tokenOffsets[top.tokenID][top.offsetIndex], offsetIndex: top.offsetIndex})
		}
	}

	// match_score.h runs this as a do/while(!heap.empty()): the loop
	// body always executes at least once, and terminates the instant
	// the heap drains, even if `window` (its std::queue) still holds
	// un-popped entries from the last fill. It must not keep iterating
	// just because `window` is non-empty.
	if h.Len() > 0 {
		for {
			if len(window) == 0 {
				addTop()
			}
			start := window[0].offset
			for h.Len() > 0 && h[0].offset < start+WindowSize {
				addTop()
			}

			var prevPos uint32 = MaxDisplacement
			numMatch := 0
			var displacement uint32

			for tid := 0; tid < len(tokenOffsets); tid++ {
				if tokenOffset_[tid] == MaxDisplacement {
					continue
				}
				numMatch++
				if prevPos == MaxDisplacement {
					prevPos = uint32(tokenOffset_[tid])
					displacement = 0
				} else {
					cur := uint32(tokenOffset_[tid])
					if cur > prevPos {
						displacement += cur - prevPos
					} else {
						displacement += prevPos - cur
					}
					prevPos = cur
				}
			}

			if numMatch > maxMatch || (numMatch == maxMatch && int(displacement) < minDisplacement) {
				minDisplacement = int(displacement)
				copy(minTokenOffset, tokenOffset_)
				maxMatch = numMatch
			}

			// drop the window's front token from consideration and slide on
			tokenOffset_[window[0].tokenID] = MaxDisplacement
			window = window[1:]

			if h.Len() == 0 {
				break
			}
		}
	}

	var tokenStartOffset uint16
	for _, off := range minTokenOffset {
		if off != MaxDisplacement {
			tokenStartOffset = off
			break
		}
	}

	distance := uint8(0)
	if minDisplacement < MaxTokensDistance {
		distance = uint8(MaxTokensDistance - minDisplacement)
	}

	m := Match{
		WordsPresent: uint8(maxMatch),
		Distance:     distance,
		StartOffset:  tokenStartOffset,
	}
	packOffsetDiffs(minTokenOffset, tokenStartOffset, &m.OffsetDiffs)
	return m
}

// packOffsetDiffs run-length encodes the best window's offsets as
// base+signed-8-bit deltas, spec section 4.4 and match_score.h's
// pack_token_offsets. An absent token stores math.MaxInt8.
func packOffsetDiffs(minTokenOffset []uint16, base uint16, out *[16]int8) {
	n := len(minTokenOffset)
	if n > 15 {
		n = 15
	}
	out[0] = int8(n)
	for i := 0; i < n; i++ {
		if minTokenOffset[i] == MaxDisplacement {
			out[i+1] = 127
			continue
		}
		out[i+1] = int8(int32(minTokenOffset[i]) - int32(base))
	}
}
