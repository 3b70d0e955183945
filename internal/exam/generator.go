package exam

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/examgen/backend/internal/examerr"
	"github.com/examgen/backend/internal/llm"
	"github.com/examgen/backend/internal/storage/models"
	"github.com/examgen/backend/internal/vector"
	"github.com/examgen/backend/pkg/logger"
)

// CompletionBackend is the narrow generation capability the question
// generator depends on. *llm.Client implements it; tests use fakes.
type CompletionBackend interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// QuestionGenerator turns grounding chunks plus a (type, difficulty,
// marks) request into one validated question. Structurally invalid
// output gets exactly one corrective retry before failing with
// examerr.ErrMalformedQuestion.
type QuestionGenerator struct {
	backend CompletionBackend
}

func NewQuestionGenerator(backend CompletionBackend) *QuestionGenerator {
	return &QuestionGenerator{backend: backend}
}

const systemPrompt = `You are an exam setter. You write questions strictly grounded in the provided source material: never introduce facts that are not in the material. Respond with a single JSON object and nothing else.`

type mcqPayload struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
}

type writtenPayload struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (g *QuestionGenerator) Generate(ctx context.Context, qt models.QuestionType, diff models.Difficulty, grounding []vector.Hit, marks int) (*models.Question, error) {
	if marks <= 0 {
		return nil, examerr.Malformed("marks must be positive")
	}
	if len(grounding) == 0 {
		return nil, fmt.Errorf("no grounding chunks for %s question", qt)
	}

	prompt := g.buildPrompt(qt, diff, grounding, marks)

	question, verr, err := g.attempt(ctx, qt, diff, grounding, marks, prompt)
	if err != nil {
		return nil, err
	}
	if verr == nil {
		return question, nil
	}

	// One corrective retry: restate the structural contract alongside
	// what was wrong with the first answer.
	logger.Warn("generated question failed validation, retrying once",
		zap.String("type", string(qt)),
		zap.Error(verr),
	)
	corrective := prompt + fmt.Sprintf(
		"\n\nYour previous answer was invalid: %s. Answer again with a single valid JSON object exactly matching the required schema.", verr)

	question, verr, err = g.attempt(ctx, qt, diff, grounding, marks, corrective)
	if err != nil {
		return nil, err
	}
	if verr != nil {
		return nil, examerr.Malformed(verr.Error())
	}
	return question, nil
}

// attempt returns (question, validationErr, backendErr). Backend errors
// are transport-level and abort; validation errors drive the corrective
// retry in Generate.
func (g *QuestionGenerator) attempt(ctx context.Context, qt models.QuestionType, diff models.Difficulty, grounding []vector.Hit, marks int, prompt string) (*models.Question, error, error) {
	resp, err := g.backend.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		return nil, nil, err
	}

	question, verr := g.parse(qt, diff, grounding, marks, resp.Content)
	return question, verr, nil
}

func (g *QuestionGenerator) buildPrompt(qt models.QuestionType, diff models.Difficulty, grounding []vector.Hit, marks int) string {
	var sb strings.Builder
	sb.WriteString("Source material:\n")
	for i, h := range grounding {
		fmt.Fprintf(&sb, "\n[%d] %s\n", i+1, h.Text)
	}

	fmt.Fprintf(&sb, "\nWrite one %s question of %s difficulty worth %d mark(s), based only on the source material above.\n", questionTypeName(qt), diff, marks)

	switch qt {
	case models.TypeMCQ:
		sb.WriteString(`Return JSON: {"question": "...", "options": ["...", "...", "...", "..."], "correct_index": 0, "explanation": "..."}. Exactly 4 distinct options, exactly one correct, correct_index is the 0-based index of the correct option.`)
	case models.TypeSAQ:
		sb.WriteString(`Return JSON: {"question": "...", "answer": "..."}. The answer is a model short answer of 2-4 sentences.`)
	case models.TypeLAQ:
		fmt.Fprintf(&sb, `Return JSON: {"question": "...", "answer": "..."}. The answer is a structured outline of the expected long answer. The question should ask for roughly %d words.`, laqWordLimit(marks))
	}
	return sb.String()
}

func (g *QuestionGenerator) parse(qt models.QuestionType, diff models.Difficulty, grounding []vector.Hit, marks int, content string) (*models.Question, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	chunkIDs := make([]string, len(grounding))
	for i, h := range grounding {
		chunkIDs[i] = h.ChunkID
	}

	base := models.Question{
		Type:           qt,
		Marks:          marks,
		Difficulty:     diff,
		SourceChunkIDs: chunkIDs,
	}

	if qt == models.TypeMCQ {
		var payload mcqPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("invalid MCQ JSON: %v", err)
		}
		if err := validateMCQ(payload); err != nil {
			return nil, err
		}
		base.Prompt = strings.TrimSpace(payload.Question)
		base.Options = payload.Options
		base.CorrectOption = payload.CorrectIndex
		base.Answer = strings.TrimSpace(payload.Explanation)
		return &base, nil
	}

	var payload writtenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid %s JSON: %v", qt, err)
	}
	if strings.TrimSpace(payload.Question) == "" {
		return nil, fmt.Errorf("%s question text is empty", qt)
	}
	if strings.TrimSpace(payload.Answer) == "" {
		return nil, fmt.Errorf("%s answer is empty", qt)
	}
	base.Prompt = strings.TrimSpace(payload.Question)
	base.Answer = strings.TrimSpace(payload.Answer)
	if qt == models.TypeLAQ {
		base.WordLimit = laqWordLimit(marks)
	}
	return &base, nil
}

func validateMCQ(p mcqPayload) error {
	if strings.TrimSpace(p.Question) == "" {
		return fmt.Errorf("MCQ question text is empty")
	}
	if len(p.Options) != 4 {
		return fmt.Errorf("MCQ must have exactly 4 options, got %d", len(p.Options))
	}
	seen := make(map[string]bool, 4)
	for i, opt := range p.Options {
		key := strings.ToLower(strings.TrimSpace(opt))
		if key == "" {
			return fmt.Errorf("MCQ option %d is empty", i)
		}
		if seen[key] {
			return fmt.Errorf("MCQ options are not distinct: %q repeats", opt)
		}
		seen[key] = true
	}
	if p.CorrectIndex < 0 || p.CorrectIndex > 3 {
		return fmt.Errorf("MCQ correct_index %d out of range", p.CorrectIndex)
	}
	return nil
}

// extractJSON tolerates markdown fences and prose around the object the
// model was asked for.
func extractJSON(content string) (json.RawMessage, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	return json.RawMessage(content[start : end+1]), nil
}

// laqWordLimit is guidance attached to long-answer questions, not a
// hard validation rule.
func laqWordLimit(marks int) int {
	limit := marks * 40
	if limit < 200 {
		limit = 200
	}
	return limit
}

func questionTypeName(qt models.QuestionType) string {
	switch qt {
	case models.TypeMCQ:
		return "multiple-choice"
	case models.TypeSAQ:
		return "short-answer"
	case models.TypeLAQ:
		return "long-answer"
	default:
		return string(qt)
	}
}
