package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// ---------------------------------------------------------------------------
// Coach style (closed tagged variant)
// ---------------------------------------------------------------------------

// StyleKind enumerates the known coaching styles. Unknown labels from the
// catalog are preserved as KindCustom with the raw label attached.
type StyleKind string

const (
	StyleAnalytical StyleKind = "analytical"
	StyleEmpathetic StyleKind = "empathetic"
	StyleToughLove  StyleKind = "tough_love"
	StyleStrategic  StyleKind = "strategic"
	StyleMindful    StyleKind = "mindful"
	StyleHost       StyleKind = "host"
	StyleCustom     StyleKind = "custom"
)

var styleDisplay = map[StyleKind]string{
	StyleAnalytical: "分析型",
	StyleEmpathetic: "共情型",
	StyleToughLove:  "严厉关爱型",
	StyleStrategic:  "策略型",
	StyleMindful:    "正念型",
	StyleHost:       "主持人",
}

// CoachStyle is the persona style tag. It round-trips through a single text
// column: known kinds store their kind value, custom styles store the raw
// label as-is.
type CoachStyle struct {
	Kind  StyleKind
	Label string // raw label, set when Kind == StyleCustom
}

// ParseCoachStyle maps a raw catalog label to a CoachStyle.
func ParseCoachStyle(raw string) CoachStyle {
	k := StyleKind(raw)
	if _, ok := styleDisplay[k]; ok {
		return CoachStyle{Kind: k}
	}
	if raw == "" {
		return CoachStyle{Kind: StyleCustom, Label: ""}
	}
	return CoachStyle{Kind: StyleCustom, Label: raw}
}

// Display returns the human-readable style name, falling back to the
// generic coach label when nothing usable is present.
func (s CoachStyle) Display() string {
	if s.Kind == StyleCustom {
		if s.Label != "" {
			return s.Label
		}
		return "教练"
	}
	if d, ok := styleDisplay[s.Kind]; ok {
		return d
	}
	return "教练"
}

func (s CoachStyle) String() string { return s.Display() }

func (CoachStyle) GormDataType() string { return "text" }

func (s CoachStyle) Value() (driver.Value, error) {
	if s.Kind == StyleCustom {
		return s.Label, nil
	}
	return string(s.Kind), nil
}

func (s *CoachStyle) Scan(value interface{}) error {
	if value == nil {
		*s = CoachStyle{Kind: StyleCustom}
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = ParseCoachStyle(v)
	case []byte:
		*s = ParseCoachStyle(string(v))
	default:
		return fmt.Errorf("CoachStyle.Scan: unsupported type %T", value)
	}
	return nil
}

func (s CoachStyle) MarshalJSON() ([]byte, error) {
	v, _ := s.Value()
	return []byte(fmt.Sprintf("%q", v)), nil
}

func (s *CoachStyle) UnmarshalJSON(b []byte) error {
	if len(b) >= 2 && b[0] == '"' {
		*s = ParseCoachStyle(string(b[1 : len(b)-1]))
		return nil
	}
	return fmt.Errorf("CoachStyle: invalid JSON %q", string(b))
}

// ---------------------------------------------------------------------------
// Coach model
// ---------------------------------------------------------------------------

// Coach is a read-only catalog persona. The orchestrator never mutates it.
type Coach struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	Name        string     `gorm:"type:text;not null" json:"name"`
	AvatarURL   string     `gorm:"type:text;not null;default:''" json:"avatar_url"`
	Style       CoachStyle `gorm:"type:text;not null;default:''" json:"style"`
	Description string     `gorm:"type:text;not null;default:''" json:"description"`

	// SystemPrompt is the persona's base instruction; roundtable framing is
	// appended per turn by the prompt assembler.
	SystemPrompt string  `gorm:"type:text;not null;default:''" json:"-"`
	Temperature  float64 `gorm:"not null;default:0.7" json:"temperature"`

	SortOrder int  `gorm:"not null;default:0" json:"sort_order"`
	IsActive  bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Coach) TableName() string { return "coaches" }

// CoachBrief is the projection of a coach embedded in API responses.
type CoachBrief struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	Style       string `json:"style"`
	Description string `json:"description,omitempty"`
}

func (c Coach) Brief() CoachBrief {
	return CoachBrief{
		ID:          c.ID,
		Name:        c.Name,
		AvatarURL:   c.AvatarURL,
		Style:       c.Style.Display(),
		Description: c.Description,
	}
}

// ---------------------------------------------------------------------------
// Preset model
// ---------------------------------------------------------------------------

// CoachPreset is a named bundle of coach ids used to spawn sessions.
type CoachPreset struct {
	ID          string                      `gorm:"type:text;primaryKey" json:"id"`
	Name        string                      `gorm:"type:text;not null" json:"name"`
	Description string                      `gorm:"type:text;not null;default:''" json:"description"`
	Icon        string                      `gorm:"type:text;not null;default:''" json:"icon"`
	CoachIDs    datatypes.JSONSlice[string] `gorm:"type:jsonb;not null" swaggertype:"array,string" json:"coach_ids"`
	SortOrder   int                         `gorm:"not null;default:0" json:"sort_order"`
	IsActive    bool                        `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CoachPreset) TableName() string { return "coach_presets" }
