package exam

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examgen/backend/internal/examerr"
	"github.com/examgen/backend/internal/llm"
	"github.com/examgen/backend/internal/storage/models"
	"github.com/examgen/backend/internal/vector"
)

// scriptedBackend replays canned completions (or errors) in call order
// and records the prompts it was given.
type scriptedBackend struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	prompts   []string
}

func (b *scriptedBackend) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := len(b.prompts)
	b.prompts = append(b.prompts, req.UserPrompt)
	if i < len(b.errs) && b.errs[i] != nil {
		return nil, b.errs[i]
	}
	if i >= len(b.responses) {
		return nil, errors.New("no scripted response left")
	}
	return &llm.CompletionResponse{Content: b.responses[i]}, nil
}

func (b *scriptedBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.prompts)
}

func grounding() []vector.Hit {
	return []vector.Hit{
		{ChunkID: "doc1_chunk_0", Text: "Water boils at 100 degrees Celsius at sea level.", Score: 0.92},
		{ChunkID: "doc1_chunk_1", Text: "The boiling point drops as altitude increases.", Score: 0.87},
	}
}

const validMCQ = `{"question": "At what temperature does water boil at sea level?",
 "options": ["90 C", "100 C", "110 C", "120 C"],
 "correct_index": 1,
 "explanation": "The source states water boils at 100 degrees Celsius at sea level."}`

func TestGenerateMCQ(t *testing.T) {
	backend := &scriptedBackend{responses: []string{"```json\n" + validMCQ + "\n```"}}
	g := NewQuestionGenerator(backend)

	q, err := g.Generate(context.Background(), models.TypeMCQ, models.DifficultyEasy, grounding(), 1)
	require.NoError(t, err)

	assert.Equal(t, models.TypeMCQ, q.Type)
	assert.Len(t, q.Options, 4)
	assert.Equal(t, 1, q.CorrectOption)
	assert.Equal(t, 1, q.Marks)
	assert.Equal(t, []string{"doc1_chunk_0", "doc1_chunk_1"}, q.SourceChunkIDs)
	assert.Equal(t, 1, backend.calls())
}

func TestGenerateCorrectiveRetry(t *testing.T) {
	invalid := `{"question": "Pick one", "options": ["a", "b", "c"], "correct_index": 0}`
	backend := &scriptedBackend{responses: []string{invalid, validMCQ}}
	g := NewQuestionGenerator(backend)

	q, err := g.Generate(context.Background(), models.TypeMCQ, models.DifficultyEasy, grounding(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, backend.calls())

	assert.Contains(t, backend.prompts[1], "previous answer was invalid")
	assert.Contains(t, backend.prompts[1], "4 options")
	assert.Len(t, q.Options, 4)
}

func TestGenerateMalformedAfterRetry(t *testing.T) {
	invalid := `{"question": "", "options": [], "correct_index": 9}`
	backend := &scriptedBackend{responses: []string{invalid, invalid}}
	g := NewQuestionGenerator(backend)

	_, err := g.Generate(context.Background(), models.TypeMCQ, models.DifficultyEasy, grounding(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, examerr.ErrMalformedQuestion))
	assert.Equal(t, 2, backend.calls(), "exactly one corrective retry, never more")
}

func TestGenerateBackendErrorNotRetried(t *testing.T) {
	backendErr := examerr.Transient(errors.New("timeout"))
	backend := &scriptedBackend{errs: []error{backendErr}}
	g := NewQuestionGenerator(backend)

	_, err := g.Generate(context.Background(), models.TypeMCQ, models.DifficultyEasy, grounding(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, examerr.ErrTransientBackend))
	assert.Equal(t, 1, backend.calls(), "transport errors abort, the corrective retry is for validation only")
}

func TestGenerateSAQ(t *testing.T) {
	backend := &scriptedBackend{responses: []string{
		`{"question": "Why does boiling point fall with altitude?", "answer": "Because atmospheric pressure decreases, less energy is needed for vaporization."}`,
	}}
	g := NewQuestionGenerator(backend)

	q, err := g.Generate(context.Background(), models.TypeSAQ, models.DifficultyMedium, grounding(), 5)
	require.NoError(t, err)

	assert.Equal(t, models.TypeSAQ, q.Type)
	assert.Empty(t, q.Options)
	assert.Zero(t, q.WordLimit)
	assert.Equal(t, 5, q.Marks)
	assert.NotEmpty(t, q.Answer)
}

func TestGenerateLAQWordLimit(t *testing.T) {
	response := `{"question": "Discuss the relationship between pressure and boiling point.", "answer": "Outline: pressure, vapor pressure, altitude effects."}`

	for _, tc := range []struct {
		marks, limit int
	}{
		{2, 200},
		{5, 200},
		{10, 400},
	} {
		backend := &scriptedBackend{responses: []string{response}}
		g := NewQuestionGenerator(backend)

		q, err := g.Generate(context.Background(), models.TypeLAQ, models.DifficultyHard, grounding(), tc.marks)
		require.NoError(t, err)
		assert.Equal(t, tc.limit, q.WordLimit, "marks=%d", tc.marks)
	}
}

func TestGenerateRejectsEmptyGrounding(t *testing.T) {
	g := NewQuestionGenerator(&scriptedBackend{})
	_, err := g.Generate(context.Background(), models.TypeMCQ, models.DifficultyEasy, nil, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no grounding")
}

func TestValidateMCQDistinctOptions(t *testing.T) {
	err := validateMCQ(mcqPayload{
		Question:     "Pick one",
		Options:      []string{"Alpha", "beta", "ALPHA", "gamma"},
		CorrectIndex: 0,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distinct")
}

func TestExtractJSONTolerance(t *testing.T) {
	raw, err := extractJSON("Here is the question:\n```json\n{\"question\": \"q\"}\n```\nDone.")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{"))

	_, err = extractJSON("no object here")
	assert.Error(t, err)
}
