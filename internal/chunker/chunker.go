package chunker

import (
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/examgen/backend/internal/storage/models"
	"github.com/examgen/backend/pkg/utils"
)

const (
	DefaultChunkSize = 1200
	DefaultOverlap   = 150
)

// Split cuts text into ordered chunks of roughly size runes. Boundaries
// snap to the nearest sentence end within size/5 of the target; every
// chunk after the first is prefixed with the last overlap runes of the
// preceding span so retrieval keeps cross-boundary context.
//
// Deterministic: the same text and parameters always produce the same
// chunk sequence and ids, which is what makes re-ingestion idempotent.
// Stripping each chunk's Overlap prefix and concatenating reconstructs
// the input exactly.
func Split(docID, text string, size, overlap int) []models.Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	boundaries := sentenceBoundaries(text, runes)
	tolerance := size / 5

	var chunks []models.Chunk
	start := 0
	for index := 0; start < len(runes); index++ {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else if b := snapToBoundary(boundaries, start, end, tolerance); b > 0 {
			end = b
		}

		ov := 0
		if index > 0 && overlap < start {
			ov = overlap
		} else if index > 0 {
			ov = start
		}

		chunks = append(chunks, models.Chunk{
			ID:      utils.ChunkID(docID, index),
			DocID:   docID,
			Index:   index,
			Text:    string(runes[start-ov : end]),
			Overlap: ov,
		})
		start = end
	}

	return chunks
}

// sentenceBoundaries returns the rune offsets at which sentences end,
// in ascending order. Segmentation failures degrade to hard cuts.
func sentenceBoundaries(text string, runes []rune) []int {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil
	}

	var boundaries []int
	cursor := 0
	for _, sent := range doc.Sentences() {
		st := []rune(strings.TrimSpace(sent.Text))
		if len(st) == 0 {
			continue
		}
		idx := indexRunes(runes, st, cursor)
		if idx < 0 {
			continue
		}
		end := idx + len(st)
		boundaries = append(boundaries, end)
		cursor = end
	}
	return boundaries
}

// snapToBoundary picks the latest sentence end b with start < b <= want
// and b >= want-tolerance, or 0 if no boundary is close enough.
func snapToBoundary(boundaries []int, start, want, tolerance int) int {
	best := 0
	for _, b := range boundaries {
		if b <= start {
			continue
		}
		if b > want {
			break
		}
		if b >= want-tolerance {
			best = b
		}
	}
	return best
}

func indexRunes(haystack, needle []rune, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// Reassemble undoes Split: it strips each chunk's overlap prefix and
// concatenates what remains. Exposed for coverage checks in tests and
// ingestion sanity logging.
func Reassemble(chunks []models.Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		runes := []rune(c.Text)
		if c.Overlap > len(runes) {
			continue
		}
		sb.WriteString(string(runes[c.Overlap:]))
	}
	return sb.String()
}
