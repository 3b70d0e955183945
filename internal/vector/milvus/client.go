package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/examgen/backend/internal/examerr"
	"github.com/examgen/backend/internal/vector"
	"github.com/examgen/backend/pkg/logger"
)

const (
	fieldChunkID    = "chunk_id"
	fieldEmbedding  = "embedding"
	fieldText       = "text"
	fieldDocID      = "doc_id"
	fieldChunkIndex = "chunk_index"
	fieldFilename   = "filename"
)

// Client implements vector.Index on a Milvus deployment. Inner product
// over normalized embeddings, so higher scores are more relevant.
type Client struct {
	client client.Client
}

func NewClient(ctx context.Context, endpoint string) (*Client, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized", zap.String("endpoint", endpoint))

	return &Client{client: c}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) Ping(ctx context.Context) error {
	if _, err := m.client.ListCollections(ctx); err != nil {
		return examerr.Transient(fmt.Errorf("milvus liveness probe failed: %w", err))
	}
	return nil
}

func (m *Client) EnsureCollection(ctx context.Context, name string, dim int) error {
	has, err := m.client.HasCollection(ctx, name)
	if err != nil {
		return examerr.Transient(fmt.Errorf("failed to check collection: %w", err))
	}

	if has {
		return m.verifyDimension(ctx, name, dim)
	}

	schema := &entity.Schema{
		CollectionName: name,
		Description:    "document chunk embeddings for exam generation",
		Fields: []*entity.Field{
			{
				Name:       fieldChunkID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "96"},
			},
			{
				Name:       fieldEmbedding,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dim)},
			},
			{
				Name:       fieldText,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "8192"},
			},
			{
				Name:       fieldDocID,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "96"},
			},
			{
				Name:     fieldChunkIndex,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       fieldFilename,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return examerr.Transient(fmt.Errorf("failed to create collection: %w", err))
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 128)
	if err != nil {
		return fmt.Errorf("failed to build index definition: %w", err)
	}
	if err := m.client.CreateIndex(ctx, name, fieldEmbedding, idx, false); err != nil {
		return examerr.Transient(fmt.Errorf("failed to create index: %w", err))
	}

	if err := m.client.LoadCollection(ctx, name, false); err != nil {
		return examerr.Transient(fmt.Errorf("failed to load collection: %w", err))
	}

	logger.Info("collection created and loaded",
		zap.String("collection", name),
		zap.Int("dim", dim),
	)
	return nil
}

// verifyDimension compares the stored embedding dimension against the
// configured one. A conflict is fatal for the collection, never retried.
func (m *Client) verifyDimension(ctx context.Context, name string, dim int) error {
	coll, err := m.client.DescribeCollection(ctx, name)
	if err != nil {
		return examerr.Transient(fmt.Errorf("failed to describe collection: %w", err))
	}

	for _, field := range coll.Schema.Fields {
		if field.Name != fieldEmbedding {
			continue
		}
		stored, err := strconv.Atoi(field.TypeParams["dim"])
		if err != nil {
			return fmt.Errorf("collection %s has unreadable dimension: %w", name, err)
		}
		if stored != dim {
			return fmt.Errorf("%w: collection %s has dimension %d, expected %d",
				examerr.ErrSchemaMismatch, name, stored, dim)
		}
		return nil
	}
	return fmt.Errorf("%w: collection %s has no embedding field", examerr.ErrSchemaMismatch, name)
}

func (m *Client) Upsert(ctx context.Context, collection string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	dim := len(records[0].Vector)
	chunkIDs := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	texts := make([]string, len(records))
	docIDs := make([]string, len(records))
	chunkIndexes := make([]int64, len(records))
	filenames := make([]string, len(records))

	for i, r := range records {
		chunkIDs[i] = r.ID
		embeddings[i] = r.Vector
		texts[i] = r.Text
		docIDs[i] = r.DocID
		chunkIndexes[i] = int64(r.ChunkIndex)
		filenames[i] = r.Filename
	}

	_, err := m.client.Upsert(
		ctx,
		collection,
		"",
		entity.NewColumnVarChar(fieldChunkID, chunkIDs),
		entity.NewColumnFloatVector(fieldEmbedding, dim, embeddings),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldDocID, docIDs),
		entity.NewColumnInt64(fieldChunkIndex, chunkIndexes),
		entity.NewColumnVarChar(fieldFilename, filenames),
	)
	if err != nil {
		return examerr.Transient(fmt.Errorf("failed to upsert chunks: %w", err))
	}

	if err := m.client.Flush(ctx, collection, false); err != nil {
		return examerr.Transient(fmt.Errorf("failed to flush: %w", err))
	}

	logger.Debug("chunks upserted into vector index",
		zap.String("collection", collection),
		zap.Int("count", len(records)),
	)
	return nil
}

func (m *Client) Search(ctx context.Context, collection string, queryVector []float32, topK int, filter map[string]string) ([]vector.Hit, error) {
	expr := ""
	if docID, ok := filter[fieldDocID]; ok && docID != "" {
		expr = fmt.Sprintf(`%s == "%s"`, fieldDocID, docID)
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResult, err := m.client.Search(
		ctx,
		collection,
		[]string{},
		expr,
		[]string{fieldChunkID, fieldText, fieldDocID, fieldChunkIndex},
		[]entity.Vector{entity.FloatVector(queryVector)},
		fieldEmbedding,
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, examerr.Transient(fmt.Errorf("failed to search: %w", err))
	}

	hits := make([]vector.Hit, 0, topK)
	for _, sr := range searchResult {
		chunkIDCol := sr.Fields.GetColumn(fieldChunkID)
		textCol := sr.Fields.GetColumn(fieldText)
		docIDCol := sr.Fields.GetColumn(fieldDocID)
		indexCol := sr.Fields.GetColumn(fieldChunkIndex)

		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := chunkIDCol.GetAsString(i)
			text, _ := textCol.GetAsString(i)
			docID, _ := docIDCol.GetAsString(i)
			chunkIndex, _ := indexCol.GetAsInt64(i)

			hits = append(hits, vector.Hit{
				ChunkID:    chunkID,
				Text:       text,
				DocID:      docID,
				ChunkIndex: int(chunkIndex),
				Score:      sr.Scores[i],
			})
		}
	}

	logger.Debug("vector search completed",
		zap.Int("top_k", topK),
		zap.Int("results", len(hits)),
		zap.String("filter", expr),
	)
	return hits, nil
}
