package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ---------------------------------------------------------------------------
// Role constants
// ---------------------------------------------------------------------------

// Role is a type alias for message role strings.
// Using alias (=) instead of a new type so existing "user"/"assistant"
// literals remain assignable without conversion.
type Role = string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// MessageType distinguishes ordinary coach responses from moderator phases.
type MessageType = string

const (
	MessageTypeResponse MessageType = "response"
	MessageTypeOpening  MessageType = "opening"
	MessageTypeSummary  MessageType = "summary"
	MessageTypeClosing  MessageType = "closing"
)

// SequenceClosing is the reserved sequence_in_turn value for closing remarks.
const SequenceClosing = 999

// ---------------------------------------------------------------------------
// Attachment
// ---------------------------------------------------------------------------

// Attachment describes a file attached to a user message. Base64Data is
// request-only transport for image payloads: it is forwarded to the provider
// for the duration of one generation call and never persisted.
type Attachment struct {
	ID            string `json:"id"`
	Type          string `json:"type"` // image, audio, pdf, word, excel, ppt, text, code, file
	FileName      string `json:"fileName"`
	FileSize      int64  `json:"fileSize"`
	MimeType      string `json:"mimeType"`
	URL           string `json:"url"`
	Base64Data    string `json:"base64Data,omitempty"`
	ExtractedText string `json:"extractedText,omitempty"`
	Transcription string `json:"transcription,omitempty"`
}

// Sanitized returns a copy safe for storage (base64 payload dropped).
func (a Attachment) Sanitized() Attachment {
	a.Base64Data = ""
	return a
}

// SanitizeAttachments strips request-only payloads from an attachment list.
// Returns nil for an empty list so the column stays NULL.
func SanitizeAttachments(atts []Attachment) []Attachment {
	if len(atts) == 0 {
		return nil
	}
	out := make([]Attachment, 0, len(atts))
	for _, a := range atts {
		out = append(out, a.Sanitized())
	}
	return out
}

// ---------------------------------------------------------------------------
// Message model
// ---------------------------------------------------------------------------

// RoundtableMessage is one utterance within a session. Rows are append-only:
// the orchestrator creates them and never mutates or deletes them. Replay
// order is creation order; TurnNumber/SequenceInTurn are informational.
type RoundtableMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_rt_session_created,priority:1" json:"session_id"`

	// CoachID is nil only for user messages.
	CoachID *string `gorm:"type:text;index" json:"coach_id"`

	Role    string `gorm:"type:text;not null;check:role IN ('user','assistant')" json:"role"`
	Content string `gorm:"type:text;not null;default:''" json:"content"`

	Attachments datatypes.JSONSlice[Attachment] `gorm:"type:jsonb" swaggertype:"array,object" json:"attachments,omitempty"`

	MessageType    string `gorm:"type:text;not null;default:'response';check:message_type IN ('response','opening','summary','closing')" json:"message_type"`
	TurnNumber     int    `gorm:"not null;default:0" json:"turn_number"`
	SequenceInTurn int    `gorm:"not null;default:0" json:"sequence_in_turn"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP;index:idx_rt_session_created,priority:2" json:"created_at"`

	// Message <-> Session
	Session *RoundtableSession `gorm:"foreignKey:SessionID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (RoundtableMessage) TableName() string { return "roundtable_messages" }
