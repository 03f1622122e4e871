package model

import (
	"database/sql/driver"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Vector is a minimal pgvector-compatible type for GORM schema/migrations.
// It implements sql.Scanner / driver.Valuer so GORM treats it as a scalar column.
type Vector []float32

func (Vector) GormDataType() string {
	return "vector"
}

func (Vector) GormDBDataType(_ *gorm.DB, _ *schema.Field) string {
	dim := strings.TrimSpace(os.Getenv("KB_EMBEDDING_DIM"))
	if dim == "" {
		dim = "1536"
	}
	parsed, err := strconv.Atoi(dim)
	if err != nil || parsed <= 0 {
		dim = "1536"
	}
	return fmt.Sprintf("vector(%s)", dim)
}

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	parts := make([]string, 0, len(v))
	for _, f := range v {
		parts = append(parts, strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ",")), nil
}

func (v *Vector) Scan(value interface{}) error {
	if v == nil {
		return fmt.Errorf("Vector.Scan: nil receiver")
	}
	if value == nil {
		*v = nil
		return nil
	}
	var s string
	switch x := value.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return fmt.Errorf("Vector.Scan: unsupported type %T", value)
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		*v = Vector{}
		return nil
	}
	raw := strings.Split(s, ",")
	out := make([]float32, 0, len(raw))
	for _, part := range raw {
		part = strings.TrimSpace(part)
		f, err := strconv.ParseFloat(part, 32)
		if err != nil {
			return fmt.Errorf("Vector.Scan: parse float: %w", err)
		}
		out = append(out, float32(f))
	}
	*v = out
	return nil
}

// KnowledgeDocument is an ingested source file in a user's knowledge base.
// Soft-deleted documents must never surface in retrieval.
type KnowledgeDocument struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ProjectID *uuid.UUID `gorm:"type:uuid;index" json:"project_id"`

	FileName string `gorm:"type:text;not null" json:"file_name"`
	MimeType string `gorm:"type:text;not null;default:''" json:"mime_type"`
	Status   string `gorm:"type:text;not null;default:'ready'" json:"status"`

	CreatedAt time.Time      `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Document <-> User
	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`

	// Document <-> Chunk
	Chunks []KnowledgeChunk `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (KnowledgeDocument) TableName() string { return "knowledge_documents" }

// KnowledgeChunk is one embedded slice of a document. Chunks whose
// EmbeddingDim differs from the query vector are skipped at search time.
type KnowledgeChunk struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	ChunkIndex   int    `gorm:"not null;default:0" json:"chunk_index"`
	Content      string `gorm:"type:text;not null" json:"content"`
	Embedding    Vector `json:"-"`
	EmbeddingDim int    `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	// Chunk <-> Document
	Document *KnowledgeDocument `gorm:"foreignKey:DocumentID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (KnowledgeChunk) TableName() string { return "knowledge_chunks" }

// KnowledgeHit is one scored retrieval result returned to the orchestrator.
type KnowledgeHit struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	DocumentID uuid.UUID `json:"document_id"`
	FileName   string    `json:"file_name"`
	Content    string    `json:"content"`
	Score      float64   `json:"score"`
}
