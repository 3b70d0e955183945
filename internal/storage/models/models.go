package models

import "time"

type IngestStatus string

const (
	IngestPending IngestStatus = "pending"
	IngestRunning IngestStatus = "ingesting"
	IngestDone    IngestStatus = "ingested"
	IngestFailed  IngestStatus = "failed"
)

type QuestionType string

const (
	TypeMCQ QuestionType = "MCQ"
	TypeSAQ QuestionType = "SAQ"
	TypeLAQ QuestionType = "LAQ"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Document is one uploaded source file. The ID is derived from the file
// content so re-uploading the same PDF maps to the same document.
type Document struct {
	ID            string       `json:"id"`
	Filename      string       `json:"filename"`
	RawText       string       `json:"-"`
	Status        IngestStatus `json:"status"`
	FailureReason string       `json:"failure_reason,omitempty"`
	ChunkCount    int          `json:"chunk_count"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Chunk is a bounded span of a document's text, the unit of embedding
// and retrieval. Immutable once created.
type Chunk struct {
	ID      string `json:"id"`
	DocID   string `json:"doc_id"`
	Index   int    `json:"index"`
	Text    string `json:"text"`
	Overlap int    `json:"overlap"`
}

// QuestionSpec is the per-type request: how many questions, at which
// difficulty, each worth how many marks.
type QuestionSpec struct {
	Type       QuestionType `json:"type"`
	Count      int          `json:"count"`
	Difficulty Difficulty   `json:"difficulty"`
	MarksEach  int          `json:"marks_each"`
}

// Question is one generated exam question. MCQs carry exactly four
// distinct options with one correct index; SAQ/LAQ carry an answer hint.
type Question struct {
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	Options        []string     `json:"options,omitempty"`
	CorrectOption  int          `json:"correct_option"`
	Answer         string       `json:"answer"`
	Marks          int          `json:"marks"`
	Difficulty     Difficulty   `json:"difficulty"`
	WordLimit      int          `json:"word_limit,omitempty"`
	SourceChunkIDs []string     `json:"source_chunk_ids"`
}

type StudentInfo struct {
	IncludeRoll  bool `json:"include_roll"`
	IncludeName  bool `json:"include_name"`
	IncludeClass bool `json:"include_class"`
}

// Paper is one assembled exam paper. Questions are ordered and grouped
// by type (MCQ, then SAQ, then LAQ). TotalMarks is always the literal
// sum of the included questions' marks.
type Paper struct {
	ID             string      `json:"id"`
	Heading        string      `json:"heading"`
	StudentInfo    StudentInfo `json:"student_info"`
	Questions      []Question  `json:"questions"`
	TotalMarks     int         `json:"total_marks"`
	RequestedMarks int         `json:"requested_marks"`
	ContentBased   bool        `json:"content_based"`
	Complete       bool        `json:"complete"`
	ReusedContext  bool        `json:"reused_context"`
	GeneratedAt    time.Time   `json:"generated_at"`
}

// BatchFailure records one embedding/upsert batch that exhausted its
// retries during ingestion.
type BatchFailure struct {
	BatchStart int    `json:"batch_start"`
	BatchSize  int    `json:"batch_size"`
	Reason     string `json:"reason"`
}

// IngestionResult reports what one ingestion run achieved. Partial
// results are kept; re-running ingestion is idempotent.
type IngestionResult struct {
	DocID         string         `json:"doc_id"`
	Filename      string         `json:"filename"`
	ChunksTotal   int            `json:"chunks_total"`
	ChunksIndexed int            `json:"chunks_indexed"`
	Failures      []BatchFailure `json:"failures,omitempty"`
}

// SavedPaper is a persisted paper row in the saved-papers store.
type SavedPaper struct {
	ID         string    `json:"id"`
	Heading    string    `json:"heading"`
	TotalMarks int       `json:"total_marks"`
	Payload    string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
