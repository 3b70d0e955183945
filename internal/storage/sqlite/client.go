package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/examgen/backend/internal/storage/models"
	"github.com/examgen/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		status TEXT NOT NULL,
		failure_reason TEXT,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON document_chunks(doc_id);

	CREATE TABLE IF NOT EXISTS saved_papers (
		id TEXT PRIMARY KEY,
		heading TEXT NOT NULL,
		total_marks INTEGER NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_papers_created ON saved_papers(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// UpsertDocument inserts or refreshes a document row. Keyed by the
// content-derived id, so re-uploading the same file updates in place.
func (c *Client) UpsertDocument(doc *models.Document) error {
	_, err := c.db.Exec(`
		INSERT INTO documents (id, filename, status, failure_reason, chunk_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			status = excluded.status,
			failure_reason = excluded.failure_reason,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Filename, string(doc.Status), doc.FailureReason,
		doc.ChunkCount, doc.CreatedAt.Unix(), doc.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (c *Client) SetDocumentStatus(docID string, status models.IngestStatus, failureReason string) error {
	_, err := c.db.Exec(`
		UPDATE documents SET status = ?, failure_reason = ?, updated_at = ?
		WHERE id = ?`,
		string(status), failureReason, time.Now().Unix(), docID,
	)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	return nil
}

func (c *Client) GetDocument(docID string) (*models.Document, error) {
	row := c.db.QueryRow(`
		SELECT id, filename, status, COALESCE(failure_reason, ''), chunk_count, created_at, updated_at
		FROM documents WHERE id = ?`, docID)

	var doc models.Document
	var status string
	var createdAt, updatedAt int64
	err := row.Scan(&doc.ID, &doc.Filename, &status, &doc.FailureReason, &doc.ChunkCount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.Status = models.IngestStatus(status)
	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)
	return &doc, nil
}

func (c *Client) ListDocuments() ([]models.Document, error) {
	rows, err := c.db.Query(`
		SELECT id, filename, status, COALESCE(failure_reason, ''), chunk_count, created_at, updated_at
		FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var status string
		var createdAt, updatedAt int64
		if err := rows.Scan(&doc.ID, &doc.Filename, &status, &doc.FailureReason, &doc.ChunkCount, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Status = models.IngestStatus(status)
		doc.CreatedAt = time.Unix(createdAt, 0)
		doc.UpdatedAt = time.Unix(updatedAt, 0)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpsertChunks writes chunk metadata rows, overwriting by id so repeated
// ingestion does not duplicate.
func (c *Client) UpsertChunks(chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO document_chunks (id, doc_id, chunk_index, text, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, ch := range chunks {
		if _, err := stmt.Exec(ch.ID, ch.DocID, ch.Index, ch.Text, now); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ch.ID, err)
		}
	}
	return tx.Commit()
}

func (c *Client) CountChunks(docID string) (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM document_chunks WHERE doc_id = ?`, docID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func (c *Client) SavePaper(paper *models.SavedPaper) error {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO saved_papers (id, heading, total_marks, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		paper.ID, paper.Heading, paper.TotalMarks, paper.Payload, paper.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save paper: %w", err)
	}
	return nil
}

func (c *Client) ListPapers() ([]models.SavedPaper, error) {
	rows, err := c.db.Query(`
		SELECT id, heading, total_marks, created_at
		FROM saved_papers ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	var papers []models.SavedPaper
	for rows.Next() {
		var p models.SavedPaper
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Heading, &p.TotalMarks, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0)
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

func (c *Client) GetPaper(id string) (*models.SavedPaper, error) {
	row := c.db.QueryRow(`
		SELECT id, heading, total_marks, payload, created_at
		FROM saved_papers WHERE id = ?`, id)

	var p models.SavedPaper
	var createdAt int64
	err := row.Scan(&p.ID, &p.Heading, &p.TotalMarks, &p.Payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	return &p, nil
}

func (c *Client) DeletePaper(id string) error {
	_, err := c.db.Exec(`DELETE FROM saved_papers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}
	return nil
}
