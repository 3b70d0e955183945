package chunker

import (
	"strings"
	"testing"
)

func TestSplitCoverage(t *testing.T) {
	text := "The mitochondria is the powerhouse of the cell. It produces ATP through cellular respiration. " +
		"Photosynthesis occurs in the chloroplasts of plant cells. Light energy is converted into chemical energy. " +
		"The nucleus contains the genetic material of the cell. DNA replication happens before cell division. " +
		"Ribosomes are the sites of protein synthesis. They translate messenger RNA into polypeptide chains."

	chunks := Split("doc1", text, 120, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	if got := Reassemble(chunks); got != text {
		t.Errorf("reassembled text does not match original\ngot:  %q\nwant: %q", got, text)
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("Entropy always increases in an isolated system. ", 40)

	first := Split("doc1", text, 200, 30)
	second := Split("doc1", text, 200, 30)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Text != second[i].Text {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitNoEmptyChunks(t *testing.T) {
	for _, text := range []string{"x", "short text.", strings.Repeat("word ", 500)} {
		for _, c := range Split("d", text, 50, 10) {
			if c.Text == "" {
				t.Errorf("empty chunk for input %q", text[:min(len(text), 20)])
			}
		}
	}
}

func TestSplitEmptyInput(t *testing.T) {
	if chunks := Split("d", "", 100, 10); chunks != nil {
		t.Errorf("expected nil for empty input, got %d chunks", len(chunks))
	}
}

func TestSplitOverlapPrefix(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30)
	chunks := Split("d", text, 100, 15)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if chunks[0].Overlap != 0 {
		t.Errorf("first chunk should have no overlap, got %d", chunks[0].Overlap)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Overlap == 0 {
			t.Errorf("chunk %d has no overlap", i)
		}
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		tail := string(prev[len(prev)-chunks[i].Overlap:])
		head := string(cur[:chunks[i].Overlap])
		if tail != head {
			t.Errorf("chunk %d overlap prefix does not match previous tail", i)
		}
	}
}

func TestSplitChunkIDsStable(t *testing.T) {
	chunks := Split("abc123", "First sentence here. Second sentence there. Third one too.", 25, 5)
	for i, c := range chunks {
		want := "abc123_chunk_" + string(rune('0'+i))
		if c.ID != want {
			t.Errorf("chunk %d id = %q, want %q", i, c.ID, want)
		}
		if c.Index != i {
			t.Errorf("chunk %d index = %d", i, c.Index)
		}
	}
}
