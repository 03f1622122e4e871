package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aiwendy/roundtable/internal/modules/model"
)

type KnowledgeRepo interface {
	// SearchByEmbedding runs a cosine nearest-neighbor scan over the caller's
	// chunks, bounded by maxCandidates, and returns up to topK hits scored as
	// max(0, 1 - distance). A non-nil projectID restricts the scan to that
	// project's documents. Chunks of soft-deleted documents and chunks whose
	// stored dimension differs from the query are excluded.
	SearchByEmbedding(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID, embedding model.Vector, topK int, maxCandidates int) ([]model.KnowledgeHit, error)

	CountChunks(ctx context.Context, userID uuid.UUID) (int64, error)
}

type knowledgeRepo struct {
	db *gorm.DB
}

func NewKnowledgeRepo(db *gorm.DB) KnowledgeRepo {
	return &knowledgeRepo{db: db}
}

type knowledgeRow struct {
	ChunkID    uuid.UUID `gorm:"column:chunk_id"`
	DocumentID uuid.UUID `gorm:"column:document_id"`
	FileName   string    `gorm:"column:file_name"`
	Content    string    `gorm:"column:content"`
	Distance   float64   `gorm:"column:distance"`
}

func (r *knowledgeRepo) SearchByEmbedding(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID, embedding model.Vector, topK int, maxCandidates int) ([]model.KnowledgeHit, error) {
	if topK <= 0 {
		topK = 5
	}
	if maxCandidates <= 0 {
		maxCandidates = 400
	}

	qv, err := embedding.Value()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT c.id AS chunk_id,
		       c.document_id,
		       d.file_name,
		       c.content,
		       c.embedding <=> ?::vector AS distance
		FROM knowledge_chunks c
		JOIN knowledge_documents d ON d.id = c.document_id AND d.deleted_at IS NULL
		WHERE c.user_id = ?
		  AND c.embedding IS NOT NULL
		  AND c.embedding_dim = ?`
	args := []interface{}{qv, userID, len(embedding)}
	if projectID != nil {
		query += `
		  AND d.project_id = ?`
		args = append(args, *projectID)
	}
	query += `
		ORDER BY distance ASC
		LIMIT ?`
	args = append(args, clampCandidates(topK, maxCandidates))

	var rows []knowledgeRow
	err = r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	hits := make([]model.KnowledgeHit, 0, len(rows))
	for _, row := range rows {
		score := 1 - row.Distance
		if score < 0 {
			score = 0
		}
		hits = append(hits, model.KnowledgeHit{
			ChunkID:    row.ChunkID,
			DocumentID: row.DocumentID,
			FileName:   row.FileName,
			Content:    row.Content,
			Score:      score,
		})
		if len(hits) >= topK {
			break
		}
	}
	return hits, nil
}

func clampCandidates(topK, maxCandidates int) int {
	if topK > maxCandidates {
		return topK
	}
	return maxCandidates
}

func (r *knowledgeRepo) CountChunks(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.KnowledgeChunk{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}
