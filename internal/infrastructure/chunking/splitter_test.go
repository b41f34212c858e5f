package chunking

import (
	"math"
	"strings"
	"testing"
)

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	s := NewSplitter(100, 10, 4)
	chunks := s.Split("short document")
	if len(chunks) != 1 || chunks[0] != "short document" {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(100, 10, 4)
	if chunks := s.Split(""); chunks != nil {
		t.Fatalf("expected nil, got %v", chunks)
	}
}

func TestSplitRespectsMaxChunks(t *testing.T) {
	s := NewSplitter(10, 0, 3)
	chunks := s.Split(strings.Repeat("a", 100))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len([]rune(chunk)) != 10 {
			t.Errorf("chunk %d length = %d", i, len([]rune(chunk)))
		}
	}
}

func TestSplitOverlapRepeatsTail(t *testing.T) {
	s := NewSplitter(6, 2, 8)
	chunks := s.Split("abcdefghij")
	if len(chunks) < 2 {
		t.Fatalf("chunks = %v", chunks)
	}
	first, second := chunks[0], chunks[1]
	if !strings.HasPrefix(second, first[len(first)-2:]) {
		t.Errorf("expected 2-rune overlap between %q and %q", first, second)
	}
}

func TestSplitRuneBoundaries(t *testing.T) {
	s := NewSplitter(4, 0, 8)
	chunks := s.Split("日本語のテキストです")
	for i, chunk := range chunks {
		if !strings.ContainsRune("日本語のテキストです", []rune(chunk)[0]) {
			t.Errorf("chunk %d starts with unexpected rune: %q", i, chunk)
		}
		if len([]rune(chunk)) > 4 {
			t.Errorf("chunk %d too long: %q", i, chunk)
		}
	}
}

func TestMeanPool(t *testing.T) {
	pooled := MeanPool([][]float32{{1, 0, 3}, {3, 2, 1}})
	want := []float32{2, 1, 2}
	if len(pooled) != len(want) {
		t.Fatalf("pooled = %v", pooled)
	}
	for i := range want {
		if math.Abs(float64(pooled[i]-want[i])) > 1e-6 {
			t.Errorf("pooled[%d] = %v, want %v", i, pooled[i], want[i])
		}
	}
}

func TestMeanPoolSingleVectorPassthrough(t *testing.T) {
	vector := []float32{0.5, 0.25}
	pooled := MeanPool([][]float32{vector})
	if &pooled[0] != &vector[0] {
		t.Error("single vector should pass through without copying")
	}
}

func TestMeanPoolMismatchedDimensions(t *testing.T) {
	if pooled := MeanPool([][]float32{{1, 2}, {1}}); pooled != nil {
		t.Errorf("expected nil for mismatched dims, got %v", pooled)
	}
	if pooled := MeanPool(nil); pooled != nil {
		t.Errorf("expected nil for empty input, got %v", pooled)
	}
}
