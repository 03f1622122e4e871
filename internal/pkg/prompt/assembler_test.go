package prompt

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiwendy/roundtable/internal/modules/model"
	"github.com/aiwendy/roundtable/internal/pkg/llm"
)

func testCoaches() []model.Coach {
	return []model.Coach{
		{ID: "rational", Name: "理性分析师", Style: model.CoachStyle{Kind: model.StyleAnalytical}, SystemPrompt: "你是理性分析师。"},
		{ID: "warm", Name: "温暖陪伴者", Style: model.CoachStyle{Kind: model.StyleEmpathetic}, SystemPrompt: "你是温暖陪伴者。"},
	}
}

func strRef(s string) *string { return &s }

func TestCoachTurn_SystemFraming(t *testing.T) {
	coaches := testCoaches()
	msgs := NewAssembler(0).CoachTurn(CoachTurnInput{
		Coach:     coaches[0],
		Coaches:   coaches,
		Round:     1,
		Moderated: true,
		History:   []model.RoundtableMessage{{Role: model.RoleUser, Content: "我总是拿不住盈利单"}},
	})

	require.NotEmpty(t, msgs)
	sys := msgs[0]
	assert.Equal(t, llm.RoleSystem, sys.Role)
	assert.Contains(t, sys.Content, "你是理性分析师。")
	assert.Contains(t, sys.Content, "理性分析师（分析型风格）")
	assert.Contains(t, sys.Content, "温暖陪伴者")

	// Moderated sessions do not carry the free-mode debate instruction.
	for _, m := range msgs {
		assert.NotContains(t, m.Content, "互辩")
	}
}

func TestCoachTurn_DebateInstruction(t *testing.T) {
	coaches := testCoaches()

	tests := []struct {
		name        string
		round       int
		debateStyle string
		wantPhrase  string
	}{
		{"first round has no debate framing", 1, model.DebateClash, "第 1 轮讨论"},
		{"clash style", 2, model.DebateClash, "对立辩论风格"},
		{"converge style", 2, model.DebateConverge, "收敛纠错风格"},
		{"empty style defaults to converge", 3, "", "收敛纠错风格"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := NewAssembler(0).CoachTurn(CoachTurnInput{
				Coach:       coaches[0],
				Coaches:     coaches,
				Round:       tt.round,
				DebateStyle: tt.debateStyle,
				Moderated:   false,
				History:     []model.RoundtableMessage{{Role: model.RoleUser, Content: "问题"}},
			})
			require.GreaterOrEqual(t, len(msgs), 2)
			assert.Equal(t, llm.RoleSystem, msgs[1].Role)
			assert.Contains(t, msgs[1].Content, tt.wantPhrase)
		})
	}
}

func TestCoachTurn_KnowledgeBlockPlacement(t *testing.T) {
	coaches := testCoaches()
	msgs := NewAssembler(0).CoachTurn(CoachTurnInput{
		Coach:          coaches[0],
		Coaches:        coaches,
		Round:          1,
		Moderated:      true,
		KnowledgeBlock: "以下为知识库检索到的参考内容",
		History:        []model.RoundtableMessage{{Role: model.RoleUser, Content: "问题"}},
	})

	require.GreaterOrEqual(t, len(msgs), 3)
	assert.Equal(t, llm.RoleSystem, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "知识库")
	assert.Equal(t, llm.RoleUser, msgs[len(msgs)-1].Role)
}

func TestCoachTurn_SpeakerPrefixes(t *testing.T) {
	coaches := testCoaches()
	moderator := model.Coach{ID: "host", Name: "圆桌主持人", Style: model.CoachStyle{Kind: model.StyleHost}}

	history := []model.RoundtableMessage{
		{Role: model.RoleUser, Content: "开始吧"},
		{Role: model.RoleAssistant, CoachID: strRef("host"), Content: "欢迎各位"},
		{Role: model.RoleAssistant, CoachID: strRef("rational"), Content: "先看数据"},
		{Role: model.RoleAssistant, CoachID: strRef("ghost"), Content: "来历不明"},
	}

	msgs := NewAssembler(0).CoachTurn(CoachTurnInput{
		Coach:     coaches[1],
		Coaches:   coaches,
		Moderator: &moderator,
		Round:     1,
		Moderated: true,
		History:   history,
	})

	joined := ""
	for _, m := range msgs {
		if m.Role == llm.RoleAssistant {
			joined += m.Content + "\n"
		}
	}
	assert.Contains(t, joined, "[圆桌主持人]: 欢迎各位")
	assert.Contains(t, joined, "[理性分析师]: 先看数据")
	assert.Contains(t, joined, "[教练]: 来历不明")
}

func TestCoachTurn_LiveAttachmentsForCurrentMessage(t *testing.T) {
	coaches := testCoaches()
	current := uuid.New()

	// The stored row has sanitized attachments; the live ones still carry
	// the base64 payload for this one call.
	history := []model.RoundtableMessage{
		{
			ID:      current,
			Role:    model.RoleUser,
			Content: "看看这张截图",
			Attachments: []model.Attachment{
				{Type: "image", FileName: "chart.png", URL: "https://files/chart.png"},
			},
		},
	}
	live := []model.Attachment{
		{Type: "image", FileName: "chart.png", MimeType: "image/png", Base64Data: "aGVsbG8="},
	}

	msgs := NewAssembler(0).CoachTurn(CoachTurnInput{
		Coach:                coaches[0],
		Coaches:              coaches,
		Round:                1,
		Moderated:            true,
		History:              history,
		CurrentUserMessageID: current,
		LiveAttachments:      live,
	})

	last := msgs[len(msgs)-1]
	require.Len(t, last.Images, 1)
	assert.Equal(t, "aGVsbG8=", last.Images[0].Base64)
	assert.Equal(t, "image/png", last.Images[0].MimeType)
}

func TestCoachTurn_TrimKeepsNewestHistory(t *testing.T) {
	coaches := testCoaches()
	long := strings.Repeat("词 ", 400)

	var history []model.RoundtableMessage
	for i := 0; i < 50; i++ {
		history = append(history, model.RoundtableMessage{Role: model.RoleUser, Content: long})
	}
	history = append(history, model.RoundtableMessage{Role: model.RoleUser, Content: "最新的问题"})

	msgs := NewAssembler(500).CoachTurn(CoachTurnInput{
		Coach:     coaches[0],
		Coaches:   coaches,
		Round:     1,
		Moderated: true,
		History:   history,
	})

	last := msgs[len(msgs)-1]
	assert.Equal(t, "最新的问题", last.Content)
	// Far fewer than the 51 history entries survive the budget.
	assert.Less(t, len(msgs), 10)
}

func TestUserTurn_AttachmentBlocks(t *testing.T) {
	msg := UserTurn("复盘一下今天", []model.Attachment{
		{Type: "document", FileName: "journal.pdf", ExtractedText: "三次冲动加仓"},
		{Type: "audio", FileName: "note.m4a", Transcription: "感觉很焦虑"},
		{Type: "image", FileName: "pnl.png", URL: "https://files/pnl.png"},
	})

	assert.Equal(t, llm.RoleUser, msg.Role)
	assert.Contains(t, msg.Content, "附件内容:")
	assert.Contains(t, msg.Content, "[文件: journal.pdf]\n三次冲动加仓")
	assert.Contains(t, msg.Content, "[语音转写: note.m4a]\n感觉很焦虑")
	assert.Contains(t, msg.Content, "[图片: pnl.png]\nhttps://files/pnl.png")
}

func TestFormatKnowledge(t *testing.T) {
	assert.Empty(t, FormatKnowledge(nil))
	assert.Empty(t, FormatKnowledge([]model.KnowledgeHit{{Content: "   "}}))

	block := FormatKnowledge([]model.KnowledgeHit{
		{FileName: "risk.md", Content: "单笔风险不超过 1%"},
		{Content: "无标题内容"},
	})
	assert.Contains(t, block, "[1] risk.md\n单笔风险不超过 1%")
	assert.Contains(t, block, "[2] Document\n无标题内容")
	assert.Contains(t, block, "知识库检索")
}

func TestKnowledgeQueryWithHistory(t *testing.T) {
	history := []model.RoundtableMessage{
		{Role: model.RoleAssistant, Content: "观点一"},
		{Role: model.RoleUser, Content: "用户插话"},
		{Role: model.RoleAssistant, Content: "观点二"},
		{Role: model.RoleAssistant, Content: "观点三"},
		{Role: model.RoleAssistant, Content: "观点四"},
		{Role: model.RoleAssistant, Content: "观点五"},
	}

	q := KnowledgeQueryWithHistory("基础问题", history, 4)

	// Only the four most recent assistant utterances, in chronological order.
	assert.NotContains(t, q, "观点一")
	assert.NotContains(t, q, "用户插话")
	idx2 := strings.Index(q, "观点二")
	idx5 := strings.Index(q, "观点五")
	assert.Greater(t, idx2, strings.Index(q, "基础问题"))
	assert.Greater(t, idx5, idx2)
}

func TestModeratorPrompts(t *testing.T) {
	moderator := model.Coach{ID: "host", Name: "圆桌主持人", SystemPrompt: "你是主持人。", Style: model.CoachStyle{Kind: model.StyleHost}}
	coaches := testCoaches()

	opening := ModeratorOpening(moderator, coaches, "拿不住盈利单怎么办", "")
	require.Len(t, opening, 1)
	assert.Equal(t, llm.RoleUser, opening[0].Role)
	assert.Contains(t, opening[0].Content, "理性分析师（分析型风格）")
	assert.Contains(t, opening[0].Content, "拿不住盈利单怎么办")

	summary := ModeratorSummary(moderator, []RoundStatement{
		{CoachName: "理性分析师", Content: "先看数据"},
		{CoachName: "", Content: "应被跳过"},
	}, "知识块")
	require.Len(t, summary, 1)
	assert.Contains(t, summary[0].Content, "【理性分析师】: 先看数据")
	assert.NotContains(t, summary[0].Content, "应被跳过")
	assert.Contains(t, summary[0].Content, "知识块")

	history := []model.RoundtableMessage{
		{Role: model.RoleAssistant, CoachID: strRef("rational"), Content: "a"},
		{Role: model.RoleAssistant, CoachID: strRef("rational"), Content: "b"},
		{Role: model.RoleAssistant, CoachID: strRef("warm"), Content: "c"},
		{Role: model.RoleUser, Content: "不计入"},
	}
	closing := ModeratorClosing(moderator, coaches, history, "")
	require.Len(t, closing, 1)
	assert.Contains(t, closing[0].Content, "【理性分析师】共发言 2 次")
	assert.Contains(t, closing[0].Content, "【温暖陪伴者】共发言 1 次")
}
