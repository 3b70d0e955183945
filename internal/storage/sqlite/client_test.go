package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examgen/backend/internal/storage/models"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleDoc() *models.Document {
	now := time.Now()
	return &models.Document{
		ID:        "doc1",
		Filename:  "notes.pdf",
		Status:    models.IngestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestUpsertDocumentInPlace(t *testing.T) {
	c := testClient(t)

	doc := sampleDoc()
	require.NoError(t, c.UpsertDocument(doc))

	doc.Status = models.IngestDone
	doc.ChunkCount = 7
	require.NoError(t, c.UpsertDocument(doc))

	got, err := c.GetDocument("doc1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.IngestDone, got.Status)
	assert.Equal(t, 7, got.ChunkCount)

	docs, err := c.ListDocuments()
	require.NoError(t, err)
	assert.Len(t, docs, 1, "same id must not produce a second row")
}

func TestSetDocumentStatus(t *testing.T) {
	c := testClient(t)
	require.NoError(t, c.UpsertDocument(sampleDoc()))

	require.NoError(t, c.SetDocumentStatus("doc1", models.IngestFailed, "3 of 9 chunks failed to index"))

	got, err := c.GetDocument("doc1")
	require.NoError(t, err)
	assert.Equal(t, models.IngestFailed, got.Status)
	assert.Equal(t, "3 of 9 chunks failed to index", got.FailureReason)
}

func TestGetDocumentMissing(t *testing.T) {
	c := testClient(t)
	got, err := c.GetDocument("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertChunksOverwrites(t *testing.T) {
	c := testClient(t)
	require.NoError(t, c.UpsertDocument(sampleDoc()))

	chunks := []models.Chunk{
		{ID: "doc1_chunk_0", DocID: "doc1", Index: 0, Text: "first"},
		{ID: "doc1_chunk_1", DocID: "doc1", Index: 1, Text: "second"},
	}
	require.NoError(t, c.UpsertChunks(chunks))
	require.NoError(t, c.UpsertChunks(chunks))

	n, err := c.CountChunks("doc1")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "re-ingestion replaces chunk rows by id")
}

func TestChunksCascadeWithDocument(t *testing.T) {
	c := testClient(t)
	require.NoError(t, c.UpsertDocument(sampleDoc()))
	require.NoError(t, c.UpsertChunks([]models.Chunk{
		{ID: "doc1_chunk_0", DocID: "doc1", Index: 0, Text: "x"},
	}))

	_, err := c.db.Exec(`DELETE FROM documents WHERE id = ?`, "doc1")
	require.NoError(t, err)

	n, err := c.CountChunks("doc1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSavedPaperLifecycle(t *testing.T) {
	c := testClient(t)

	paper := &models.SavedPaper{
		ID:         "p1",
		Heading:    "Physics Midterm",
		TotalMarks: 50,
		Payload:    `{"id":"p1","questions":[]}`,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, c.SavePaper(paper))

	listed, err := c.ListPapers()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].Payload, "listing omits the full payload")

	got, err := c.GetPaper("p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, paper.Payload, got.Payload)

	require.NoError(t, c.DeletePaper("p1"))
	got, err = c.GetPaper("p1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
