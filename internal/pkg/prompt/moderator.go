package prompt

import (
	"fmt"
	"strings"

	"github.com/aiwendy/roundtable/internal/modules/model"
	"github.com/aiwendy/roundtable/internal/pkg/llm"
)

// Fallback utterances substituted when a moderator or coach generation
// fails. They are persisted like any other message so the discussion can
// continue.
const (
	FallbackOpening = "欢迎来到本次圆桌讨论。让我们请各位教练就这个问题分享自己的见解。"
	FallbackCoach   = "抱歉，我暂时无法回应。请稍后再试。"
	FallbackSummary = "感谢各位教练的精彩分享。让我们继续深入探讨这个问题。"
	FallbackClosing = "感谢各位教练的精彩分享和用户的积极参与。希望今天的讨论对您有所帮助，欢迎随时开启新的讨论！"
)

// RoundStatement is one coach utterance fed into the moderator's round
// summary.
type RoundStatement struct {
	CoachName string
	Content   string
}

// ModeratorOpening builds the opening prompt. Moderator phases are a single
// user-role message carrying the full instruction.
func ModeratorOpening(moderator model.Coach, coaches []model.Coach, userQuestion, knowledgeBlock string) []llm.Message {
	styles := make([]string, 0, len(coaches))
	for _, c := range coaches {
		styles = append(styles, fmt.Sprintf("%s（%s风格）", c.Name, c.Style.Display()))
	}

	text := moderator.SystemPrompt + fmt.Sprintf(`

你是本次圆桌讨论的主持人。
参与教练：%s
用户问题：%s

请用 2-3 句话开场：
1. 简要破题，说明这是个什么类型的问题
2. 预告将邀请哪些教练从哪些角度来分析这个问题

注意：
- 保持简洁专业
- 不要重复用户的问题原文
- 让用户知道接下来会发生什么
`, strings.Join(styles, ", "), userQuestion)

	return withKnowledge(text, knowledgeBlock)
}

// ModeratorSummary builds the after-round summary prompt.
func ModeratorSummary(moderator model.Coach, statements []RoundStatement, knowledgeBlock string) []llm.Message {
	lines := make([]string, 0, len(statements))
	for _, s := range statements {
		if s.CoachName == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("【%s】: %s", s.CoachName, s.Content))
	}

	text := moderator.SystemPrompt + fmt.Sprintf(`

你是主持人，请总结本轮讨论。

各教练观点：
%s

请用 3-4 句话：
1. 总结各教练的核心观点和建议
2. 指出他们观点中的共识和分歧（如果有）
3. 提出一个深化问题供用户思考或追问

注意：
- 保持中立客观
- 突出要点，不要重复全部内容
- 深化问题要有启发性
`, strings.Join(lines, "\n"))

	return withKnowledge(text, knowledgeBlock)
}

// ModeratorClosing builds the closing prompt from per-coach contribution
// counts over the whole discussion.
func ModeratorClosing(moderator model.Coach, coaches []model.Coach, history []model.RoundtableMessage, knowledgeBlock string) []llm.Message {
	counts := make(map[string]int)
	order := make([]string, 0, len(coaches))
	for _, msg := range history {
		if msg.Role != model.RoleAssistant || msg.CoachID == nil {
			continue
		}
		name := speakerName(msg.CoachID, coaches, &moderator)
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	lines := make([]string, 0, len(order))
	for _, name := range order {
		lines = append(lines, fmt.Sprintf("【%s】共发言 %d 次", name, counts[name]))
	}

	text := moderator.SystemPrompt + fmt.Sprintf(`

你是主持人，讨论即将结束，请给出结语。

讨论概况：
%s

请用 4-5 句话：
1. 感谢各位教练的精彩分享
2. 综合各教练观点，给出 2-3 条核心建议
3. 鼓励用户将建议付诸实践
4. 欢迎用户随时开启新的讨论

注意：
- 总结要有综合性，不是简单罗列
- 建议要具体可执行
- 语气温和专业
`, strings.Join(lines, "\n"))

	return withKnowledge(text, knowledgeBlock)
}

func withKnowledge(text, knowledgeBlock string) []llm.Message {
	if knowledgeBlock != "" {
		text = text + "\n\n" + knowledgeBlock
	}
	return []llm.Message{llm.UserMessage(text)}
}
