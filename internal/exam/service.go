package exam

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/examgen/backend/internal/metrics"
	"github.com/examgen/backend/internal/retrieval"
	"github.com/examgen/backend/internal/storage/models"
	"github.com/examgen/backend/pkg/logger"
)

// ProgressEvent is emitted per question as generation proceeds; the
// websocket handler streams these to the client.
type ProgressEvent struct {
	Stage string              `json:"stage"`
	Type  models.QuestionType `json:"type,omitempty"`
	Index int                 `json:"index"`
	Error string              `json:"error,omitempty"`
}

type ProgressFunc func(ProgressEvent)

type ServiceConfig struct {
	MaxParallelQuestions int
	QuestionTimeout      time.Duration
	RetrieveTopK         int
}

// Service runs one paper generation end to end: readiness gate,
// per-question retrieval and generation with bounded parallelism, then
// assembly. Per-question failures shrink the paper, they never abort it.
type Service struct {
	controller *Controller
	retriever  *retrieval.Retriever
	generator  *QuestionGenerator
	latest     *LatestCell

	maxParallel     int
	questionTimeout time.Duration
	retrieveTopK    int
}

func NewService(controller *Controller, retriever *retrieval.Retriever, generator *QuestionGenerator, latest *LatestCell, cfg ServiceConfig) *Service {
	if cfg.MaxParallelQuestions <= 0 {
		cfg.MaxParallelQuestions = 4
	}
	if cfg.QuestionTimeout <= 0 {
		cfg.QuestionTimeout = 60 * time.Second
	}
	if cfg.RetrieveTopK <= 0 {
		cfg.RetrieveTopK = 5
	}
	return &Service{
		controller:      controller,
		retriever:       retriever,
		generator:       generator,
		latest:          latest,
		maxParallel:     cfg.MaxParallelQuestions,
		questionTimeout: cfg.QuestionTimeout,
		retrieveTopK:    cfg.RetrieveTopK,
	}
}

func (s *Service) Controller() *Controller { return s.controller }

func (s *Service) LatestPaper() *models.Paper { return s.latest.Get() }

type questionJob struct {
	qType models.QuestionType
	diff  models.Difficulty
	marks int
	index int
}

func (s *Service) GeneratePaper(ctx context.Context, req PaperRequest) (*models.Paper, error) {
	return s.GeneratePaperWithProgress(ctx, req, nil)
}

// GeneratePaperWithProgress generates every requested question, waits
// for all of them (or their timeouts), and assembles whatever
// succeeded. It fails outright only when the service is not ready, the
// request is invalid, or not a single question could be generated.
func (s *Service) GeneratePaperWithProgress(ctx context.Context, req PaperRequest, progress ProgressFunc) (*models.Paper, error) {
	if err := s.controller.RequireReady(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid paper request: %w", err)
	}

	start := time.Now()
	jobs := expandSpecs(req.Specs)

	logger.Info("generating paper",
		zap.String("heading", req.Heading),
		zap.Int("questions", len(jobs)),
		zap.Int("total_marks", req.TotalMarks),
	)

	var (
		mu        sync.Mutex
		used      = make(map[string]bool)
		questions = make([]*models.Question, len(jobs))
		reused    bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			q, jobReused, err := s.generateOne(gctx, req.Topic, job, &mu, used)
			if err != nil {
				logger.Warn("question generation failed",
					zap.String("type", string(job.qType)),
					zap.Int("index", job.index),
					zap.Error(err),
				)
				metrics.QuestionFailures.WithLabelValues(string(job.qType)).Inc()
				s.emit(progress, ProgressEvent{Stage: "question_failed", Type: job.qType, Index: job.index, Error: err.Error()})
				// A failed question shrinks the paper; it must not
				// cancel the sibling generations.
				return nil
			}

			mu.Lock()
			questions[job.index] = q
			if jobReused {
				reused = true
			}
			for _, id := range q.SourceChunkIDs {
				used[id] = true
			}
			mu.Unlock()

			s.emit(progress, ProgressEvent{Stage: "question_done", Type: job.qType, Index: job.index})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	generated := make([]models.Question, 0, len(jobs))
	for _, q := range questions {
		if q != nil {
			generated = append(generated, *q)
		}
	}

	if len(generated) == 0 {
		metrics.PapersGenerated.WithLabelValues("false").Inc()
		return nil, fmt.Errorf("all %d question generations failed", len(jobs))
	}

	paper := Assemble(req, generated, reused)
	s.latest.Set(paper)

	metrics.PapersGenerated.WithLabelValues(strconv.FormatBool(paper.Complete)).Inc()
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	logger.Info("paper assembled",
		zap.String("paper_id", paper.ID),
		zap.Int("questions", len(paper.Questions)),
		zap.Int("total_marks", paper.TotalMarks),
		zap.Bool("complete", paper.Complete),
	)

	s.emit(progress, ProgressEvent{Stage: "paper_complete", Index: len(generated)})
	return paper, nil
}

// generateOne retrieves grounding for one question and generates it
// under the per-question timeout. The used set is snapshotted under mu
// so parallel questions bias away from each other's grounding.
func (s *Service) generateOne(ctx context.Context, topic string, job questionJob, mu *sync.Mutex, used map[string]bool) (*models.Question, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.questionTimeout)
	defer cancel()

	mu.Lock()
	snapshot := make(map[string]bool, len(used))
	for id := range used {
		snapshot[id] = true
	}
	mu.Unlock()

	result, err := s.retriever.Retrieve(ctx, topic, job.qType, job.diff, s.retrieveTopK, snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("retrieval: %w", err)
	}
	if len(result.Hits) == 0 {
		return nil, false, fmt.Errorf("no grounding content retrieved")
	}

	q, err := s.generator.Generate(ctx, job.qType, job.diff, result.Hits, job.marks)
	if err != nil {
		return nil, false, err
	}
	return q, result.Reused, nil
}

func (s *Service) emit(progress ProgressFunc, ev ProgressEvent) {
	if progress != nil {
		progress(ev)
	}
}

// expandSpecs flattens per-type specs into one job per question, in
// paper order (MCQ, then SAQ, then LAQ).
func expandSpecs(specs []models.QuestionSpec) []questionJob {
	var jobs []questionJob
	for _, qt := range []models.QuestionType{models.TypeMCQ, models.TypeSAQ, models.TypeLAQ} {
		for _, spec := range specs {
			if spec.Type != qt {
				continue
			}
			for i := 0; i < spec.Count; i++ {
				jobs = append(jobs, questionJob{
					qType: spec.Type,
					diff:  spec.Difficulty,
					marks: spec.MarksEach,
					index: len(jobs),
				})
			}
		}
	}
	return jobs
}
