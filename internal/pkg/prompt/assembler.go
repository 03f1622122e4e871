// Package prompt builds the provider-ready message sequences for coach and
// moderator turns. All discussion state stays structured until it crosses
// the provider boundary here.
package prompt

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aiwendy/roundtable/internal/modules/model"
	"github.com/aiwendy/roundtable/internal/pkg/llm"
	"github.com/aiwendy/roundtable/internal/pkg/tokenizer"
)

// Assembler turns personas, rolling history, attachments and retrieved
// knowledge into flattened prompt messages.
type Assembler struct {
	historyTokenBudget int
}

func NewAssembler(historyTokenBudget int) *Assembler {
	if historyTokenBudget <= 0 {
		historyTokenBudget = 12000
	}
	return &Assembler{historyTokenBudget: historyTokenBudget}
}

// CoachTurnInput is everything one coach turn is conditioned on.
type CoachTurnInput struct {
	Coach     model.Coach
	Coaches   []model.Coach
	Moderator *model.Coach

	Round       int
	DebateStyle string
	Moderated   bool

	// KnowledgeBlock is a pre-formatted retrieval block, empty when the
	// timing policy yields nothing for this stage.
	KnowledgeBlock string

	History []model.RoundtableMessage

	// CurrentUserMessageID marks the triggering user message in History;
	// its attachments come from LiveAttachments so base64 payloads survive
	// for this one call.
	CurrentUserMessageID uuid.UUID
	LiveAttachments      []model.Attachment
}

// CoachTurn assembles the message sequence for one coach utterance:
// persona system prompt with roundtable framing, the free-mode round
// instruction, an optional knowledge block, then the full role-tagged
// history trimmed to the token budget.
func (a *Assembler) CoachTurn(in CoachTurnInput) []llm.Message {
	msgs := []llm.Message{
		llm.SystemMessage(roundtableSystemPrompt(in.Coach, in.Coaches)),
	}
	if !in.Moderated {
		msgs = append(msgs, llm.SystemMessage(debateRoundInstruction(in.Round, in.DebateStyle)))
	}
	if in.KnowledgeBlock != "" {
		msgs = append(msgs, llm.SystemMessage(in.KnowledgeBlock))
	}

	history := a.historyMessages(in)
	return append(msgs, history...)
}

func (a *Assembler) historyMessages(in CoachTurnInput) []llm.Message {
	out := make([]llm.Message, 0, len(in.History))
	for _, msg := range in.History {
		if msg.Role == model.RoleUser {
			atts := []model.Attachment(msg.Attachments)
			if msg.ID == in.CurrentUserMessageID {
				atts = in.LiveAttachments
			}
			out = append(out, UserTurn(msg.Content, atts))
			continue
		}
		name := speakerName(msg.CoachID, in.Coaches, in.Moderator)
		out = append(out, llm.AssistantMessage(fmt.Sprintf("[%s]: %s", name, msg.Content)))
	}
	return a.trimToBudget(out)
}

// trimToBudget drops the oldest history entries until the total fits the
// token budget. The newest entry always survives.
func (a *Assembler) trimToBudget(history []llm.Message) []llm.Message {
	total := 0
	counts := make([]int, len(history))
	for i, m := range history {
		counts[i] = tokenizer.Count(m.Content)
		total += counts[i]
	}
	drop := 0
	for total > a.historyTokenBudget && drop < len(history)-1 {
		total -= counts[drop]
		drop++
	}
	return history[drop:]
}

func speakerName(coachID *string, coaches []model.Coach, moderator *model.Coach) string {
	if coachID == nil {
		return "教练"
	}
	if moderator != nil && moderator.ID == *coachID {
		return moderator.Name
	}
	for _, c := range coaches {
		if c.ID == *coachID {
			return c.Name
		}
	}
	return "教练"
}

// UserTurn reconstructs one user message: image attachments become inline
// image references, attachments with extracted text or transcription become
// filename-prefixed context blocks, anything else degrades to a bare
// reference line.
func UserTurn(content string, atts []model.Attachment) llm.Message {
	if len(atts) == 0 {
		return llm.UserMessage(content)
	}

	msg := llm.Message{Role: llm.RoleUser, Content: strings.TrimSpace(content)}

	var extra []string
	for _, att := range atts {
		switch {
		case att.Type == "image" && att.Base64Data != "":
			msg.Images = append(msg.Images, llm.ImageRef{
				Base64:   att.Base64Data,
				MimeType: att.MimeType,
			})
		case att.ExtractedText != "":
			extra = append(extra, fmt.Sprintf("[文件: %s]\n%s", att.FileName, att.ExtractedText))
		case att.Transcription != "":
			extra = append(extra, fmt.Sprintf("[语音转写: %s]\n%s", att.FileName, att.Transcription))
		case att.Type == "image":
			extra = append(extra, fmt.Sprintf("[图片: %s]\n%s", att.FileName, att.URL))
		default:
			extra = append(extra, fmt.Sprintf("[附件: %s]\n%s", att.FileName, att.URL))
		}
	}

	if len(extra) > 0 {
		block := "附件内容:\n" + strings.Join(extra, "\n\n---\n\n")
		if msg.Content != "" {
			msg.Content = msg.Content + "\n\n" + block
		} else {
			msg.Content = block
		}
	}
	return msg
}

func roundtableSystemPrompt(coach model.Coach, all []model.Coach) string {
	names := make([]string, 0, len(all))
	others := make([]string, 0, len(all))
	for _, c := range all {
		names = append(names, c.Name)
		if c.ID != coach.ID {
			others = append(others, c.Name)
		}
	}

	framing := fmt.Sprintf(`

你正在参与一场关于交易心理的圆桌讨论。
参与者：%s
你的角色是 %s（%s风格）。

讨论规则：
1. 保持你独特的个性和沟通风格
2. 可以回应、补充或友好地质疑其他教练的观点
3. 每次发言保持简洁，2-4句话即可
4. 关注用户的具体问题，给出有价值的建议
5. 如果其他教练已经给出了好的建议，可以补充而不是重复

其他教练：%s
`, strings.Join(names, ", "), coach.Name, coach.Style.Display(), strings.Join(others, ", "))

	return coach.SystemPrompt + framing
}

func debateRoundInstruction(round int, debateStyle string) string {
	if round <= 1 {
		return "你正在进行第 1 轮讨论：请给出你从自己风格出发的核心判断与建议。\n" +
			"要求：2-4 句，尽量具体可执行；不要复述其他人（因为还没开始互辩）。"
	}

	if strings.ToLower(strings.TrimSpace(debateStyle)) == model.DebateClash {
		return fmt.Sprintf("你正在进行第 %d 轮互辩（对立辩论风格）：你必须点名引用至少 1 位其他教练的观点，\n", round) +
			"并指出其建议的潜在风险/盲点（可以不同意），然后给出你的替代方案或更严格的边界条件。\n" +
			"最后输出 1 条你认为最关键、最可执行的动作建议。\n" +
			"要求：2-5 句；避免重复上一轮自己的话；保持专业但允许有建设性的反驳。"
	}

	return fmt.Sprintf("你正在进行第 %d 轮互辩（收敛纠错风格）：你必须点名引用至少 1 位其他教练的观点，\n", round) +
		"说明你同意/补充/纠错的点，并把各方观点合并成更清晰的执行方案（明确优先级或适用条件）。\n" +
		"最后输出 1-2 条更具体、可执行的建议。\n" +
		"要求：2-5 句；避免重复上一轮自己的话；保持专业、聚焦可执行。"
}

// FormatKnowledge renders retrieval hits into the context block injected
// into prompts. Empty input renders to an empty string.
func FormatKnowledge(hits []model.KnowledgeHit) string {
	if len(hits) == 0 {
		return ""
	}
	lines := make([]string, 0, len(hits))
	for i, h := range hits {
		content := strings.TrimSpace(h.Content)
		if content == "" {
			continue
		}
		title := h.FileName
		if title == "" {
			title = "Document"
		}
		lines = append(lines, fmt.Sprintf("[%d] %s\n%s", i+1, title, content))
	}
	if len(lines) == 0 {
		return ""
	}
	return "以下为知识库检索到的参考内容（仅在相关时使用，不要编造引用）：\n\n" +
		strings.Join(lines, "\n\n---\n\n")
}

// KnowledgeQueryBase builds the retrieval query seed from the user's text
// plus any extracted attachment content.
func KnowledgeQueryBase(content string, atts []model.Attachment) string {
	base := strings.TrimSpace(content)
	var extra []string
	for _, att := range atts {
		if att.ExtractedText != "" {
			extra = append(extra, fmt.Sprintf("[文件: %s]\n%s", att.FileName, att.ExtractedText))
		} else if att.Transcription != "" {
			extra = append(extra, fmt.Sprintf("[语音转写: %s]\n%s", att.FileName, att.Transcription))
		}
	}
	if len(extra) == 0 {
		return base
	}
	return base + "\n\n" + strings.Join(extra, "\n\n---\n\n")
}

// KnowledgeQueryWithHistory widens the query with the most recent assistant
// utterances so mid-discussion retrieval follows the conversation.
func KnowledgeQueryWithHistory(base string, history []model.RoundtableMessage, maxAssistant int) string {
	if maxAssistant <= 0 {
		maxAssistant = 4
	}
	recent := make([]string, 0, maxAssistant)
	for i := len(history) - 1; i >= 0 && len(recent) < maxAssistant; i-- {
		if history[i].Role != model.RoleAssistant {
			continue
		}
		content := strings.TrimSpace(history[i].Content)
		if content == "" {
			continue
		}
		recent = append(recent, content)
	}
	parts := make([]string, 0, len(recent)+1)
	parts = append(parts, base)
	for i := len(recent) - 1; i >= 0; i-- {
		parts = append(parts, recent[i])
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}
