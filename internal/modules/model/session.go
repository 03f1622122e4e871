package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Discussion modes.
const (
	ModeFree      = "free"
	ModeModerated = "moderated"
)

// Knowledge-base retrieval timing policies.
const (
	KBTimingOff       = "off"
	KBTimingMessage   = "message"
	KBTimingRound     = "round"
	KBTimingCoach     = "coach"
	KBTimingModerator = "moderator"
)

// Debate styles for free-mode cross-coach rounds.
const (
	DebateConverge = "converge"
	DebateClash    = "clash"
)

// Participant count bounds per session.
const (
	MinCoaches = 2
	MaxCoaches = 5
)

// RoundtableSession is one multi-coach conversation. The session row is the
// only mutable shared state of a conversation; the orchestrator is its sole
// writer while a chat turn is running.
type RoundtableSession struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ProjectID *uuid.UUID `gorm:"type:uuid;index" json:"project_id"`
	PresetID  *string    `gorm:"type:text" json:"preset_id"`
	Title     string     `gorm:"type:text;not null;default:''" json:"title"`

	// CoachIDs is the ordered participant list; order is the turn order.
	CoachIDs datatypes.JSONSlice[string] `gorm:"type:jsonb;not null" swaggertype:"array,string" json:"coach_ids"`

	DiscussionMode string  `gorm:"type:text;not null;default:'free';check:discussion_mode IN ('free','moderated')" json:"discussion_mode"`
	ModeratorID    *string `gorm:"type:text" json:"moderator_id"`

	// Session-level LLM defaults; each may be overridden per chat call.
	LLMConfigID    *string  `gorm:"type:text" json:"llm_config_id"`
	LLMProvider    *string  `gorm:"type:text" json:"llm_provider"`
	LLMModel       *string  `gorm:"type:text" json:"llm_model"`
	LLMTemperature *float64 `json:"llm_temperature"`
	LLMMaxTokens   *int     `json:"llm_max_tokens"`

	// Knowledge-base policy defaults.
	KBTiming        string `gorm:"type:text;not null;default:'off';check:kb_timing IN ('off','message','round','coach','moderator')" json:"kb_timing"`
	KBTopK          int    `gorm:"not null;default:5" json:"kb_top_k"`
	KBMaxCandidates int    `gorm:"not null;default:400" json:"kb_max_candidates"`

	MessageCount int  `gorm:"not null;default:0" json:"message_count"`
	RoundCount   int  `gorm:"not null;default:0" json:"round_count"`
	IsActive     bool `gorm:"not null;default:true;index" json:"is_active"`

	EndedAt   *time.Time `json:"ended_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Session <-> User
	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`

	// Session <-> Message
	Messages []RoundtableMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (RoundtableSession) TableName() string { return "roundtable_sessions" }

// IsModerated reports whether the session runs in moderated mode.
func (s *RoundtableSession) IsModerated() bool { return s.DiscussionMode == ModeModerated }
