package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoachStyle(t *testing.T) {
	tests := []struct {
		raw         string
		wantKind    StyleKind
		wantDisplay string
	}{
		{"analytical", StyleAnalytical, "分析型"},
		{"empathetic", StyleEmpathetic, "共情型"},
		{"tough_love", StyleToughLove, "严厉关爱型"},
		{"host", StyleHost, "主持人"},
		{"socratic", StyleCustom, "socratic"},
		{"", StyleCustom, "教练"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			s := ParseCoachStyle(tt.raw)
			assert.Equal(t, tt.wantKind, s.Kind)
			assert.Equal(t, tt.wantDisplay, s.Display())
		})
	}
}

func TestCoachStyle_ColumnRoundTrip(t *testing.T) {
	for _, raw := range []string{"analytical", "mindful", "socratic"} {
		original := ParseCoachStyle(raw)
		stored, err := original.Value()
		require.NoError(t, err)

		var loaded CoachStyle
		require.NoError(t, loaded.Scan(stored))
		assert.Equal(t, original, loaded, "raw=%s", raw)
	}
}

func TestCoachStyle_JSON(t *testing.T) {
	s := ParseCoachStyle("strategic")
	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"strategic"`, string(b))

	var out CoachStyle
	require.NoError(t, out.UnmarshalJSON([]byte(`"tough_love"`)))
	assert.Equal(t, StyleToughLove, out.Kind)
}

func TestSanitizeAttachments(t *testing.T) {
	assert.Nil(t, SanitizeAttachments(nil))

	out := SanitizeAttachments([]Attachment{
		{Type: "image", FileName: "a.png", Base64Data: "payload", URL: "https://files/a.png"},
		{Type: "document", FileName: "b.pdf", ExtractedText: "text"},
	})
	require.Len(t, out, 2)
	assert.Empty(t, out[0].Base64Data, "base64 payloads never reach storage")
	assert.Equal(t, "https://files/a.png", out[0].URL)
	assert.Equal(t, "text", out[1].ExtractedText)
}
