package exam

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/examgen/backend/internal/storage/models"
)

// PaperRequest is the inbound generation request: what to generate and
// how to present it.
type PaperRequest struct {
	Heading     string               `json:"heading"`
	Topic       string               `json:"topic"`
	TotalMarks  int                  `json:"total_marks"`
	Specs       []models.QuestionSpec `json:"specs"`
	StudentInfo models.StudentInfo   `json:"student_info"`
}

// Validate rejects structurally impossible requests before any backend
// call is made. The requested total must equal the sum implied by the
// per-type specs; a mismatch is a caller error, not something generation
// can fix.
func (r PaperRequest) Validate() error {
	if len(r.Specs) == 0 {
		return fmt.Errorf("no question specs provided")
	}

	total := 0
	requested := 0
	for _, spec := range r.Specs {
		switch spec.Type {
		case models.TypeMCQ, models.TypeSAQ, models.TypeLAQ:
		default:
			return fmt.Errorf("unknown question type %q", spec.Type)
		}
		switch spec.Difficulty {
		case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
		default:
			return fmt.Errorf("unknown difficulty %q", spec.Difficulty)
		}
		if spec.Count < 0 {
			return fmt.Errorf("negative count for %s", spec.Type)
		}
		if spec.Count > 0 && spec.MarksEach <= 0 {
			return fmt.Errorf("marks per %s question must be positive", spec.Type)
		}
		total += spec.Count * spec.MarksEach
		requested += spec.Count
	}

	if requested == 0 {
		return fmt.Errorf("request contains zero questions")
	}
	if r.TotalMarks != total {
		return fmt.Errorf("requested total marks %d do not match specs sum %d", r.TotalMarks, total)
	}
	return nil
}

// RequestedCount is the number of questions the request asks for.
func (r PaperRequest) RequestedCount() int {
	n := 0
	for _, spec := range r.Specs {
		n += spec.Count
	}
	return n
}

// Assemble builds the final paper from whatever questions were actually
// generated. Total marks is always the literal sum of included question
// marks; when fewer questions succeeded than requested the paper is
// returned anyway with Complete=false, never padded with placeholders.
func Assemble(req PaperRequest, questions []models.Question, reused bool) *models.Paper {
	ordered := make([]models.Question, 0, len(questions))
	for _, qt := range []models.QuestionType{models.TypeMCQ, models.TypeSAQ, models.TypeLAQ} {
		for _, q := range questions {
			if q.Type == qt {
				ordered = append(ordered, q)
			}
		}
	}

	total := 0
	for _, q := range ordered {
		total += q.Marks
	}

	heading := strings.TrimSpace(req.Heading)
	if heading == "" {
		heading = "Examination Paper"
	}

	return &models.Paper{
		ID:             uuid.New().String(),
		Heading:        heading,
		StudentInfo:    req.StudentInfo,
		Questions:      ordered,
		TotalMarks:     total,
		RequestedMarks: req.TotalMarks,
		ContentBased:   true,
		Complete:       len(ordered) == req.RequestedCount(),
		ReusedContext:  reused,
		GeneratedAt:    time.Now(),
	}
}

// LatestCell holds the most recently assembled paper. Injected rather
// than process-global so independent service instances (and tests) do
// not share state. Last-assembled wins on concurrent generations.
type LatestCell struct {
	mu    sync.RWMutex
	paper *models.Paper
}

func NewLatestCell() *LatestCell {
	return &LatestCell{}
}

func (c *LatestCell) Set(p *models.Paper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paper = p
}

// Get returns the latest paper, or nil when none has been assembled.
func (c *LatestCell) Get() *models.Paper {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paper
}
