package bootstrap

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aiwendy/roundtable/internal/config"
	"github.com/aiwendy/roundtable/internal/modules/model"
	"github.com/aiwendy/roundtable/internal/pkg/utils/tokens"
)

// EnsureDefaultUserExists provisions the bootstrap user when a token is
// configured, so a fresh deployment is immediately usable.
func EnsureDefaultUserExists(ctx context.Context, db *gorm.DB, cfg *config.Config, log *zap.Logger) error {
	secret := cfg.Auth.DefaultUserToken
	pepper := cfg.Auth.SecretPepper
	if secret == "" || pepper == "" {
		return nil
	}

	lookup := tokens.HMAC256Hex(pepper, secret)
	identifier := cfg.Auth.DefaultUserIdentifier

	var user model.User
	err := db.WithContext(ctx).Where(&model.User{Identifier: identifier}).First(&user).Error
	switch err {
	case nil:
		if user.SecretKeyHMAC == lookup {
			return nil
		}
		if uErr := db.WithContext(ctx).Model(&user).Update("secret_key_hmac", lookup).Error; uErr != nil {
			return uErr
		}
		log.Sugar().Infow("default user token rotated", "user", user.ID)
		return nil

	case gorm.ErrRecordNotFound:
		user = model.User{Identifier: identifier, SecretKeyHMAC: lookup}
		if cErr := db.WithContext(ctx).Create(&user).Error; cErr != nil {
			return cErr
		}
		log.Sugar().Infow("default user created", "user", user.ID)
		return nil

	default:
		return err
	}
}

// EnsureCoachCatalog seeds the built-in personas and presets. Existing rows
// are left untouched so operator edits survive restarts.
func EnsureCoachCatalog(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	coaches := []model.Coach{
		{
			ID:          "rational",
			Name:        "理性分析师",
			Style:       model.CoachStyle{Kind: model.StyleAnalytical},
			Description: "用数据和概率拆解问题，先看事实再谈感受。",
			SystemPrompt: "你是一位理性分析型交易心理教练。你擅长用数据、概率和逻辑拆解交易者的困境，" +
				"先确认事实，再分析决策链条，最后给出可量化的改进建议。语气冷静克制。",
			Temperature: 0.5,
			SortOrder:   1,
			IsActive:    true,
		},
		{
			ID:          "warm",
			Name:        "温暖陪伴者",
			Style:       model.CoachStyle{Kind: model.StyleEmpathetic},
			Description: "先接住情绪，再慢慢梳理发生了什么。",
			SystemPrompt: "你是一位共情型交易心理教练。你首先确认和接纳交易者的情绪，" +
				"帮助对方命名感受，再温和地引导复盘。语气温暖，不评判。",
			Temperature: 0.8,
			SortOrder:   2,
			IsActive:    true,
		},
		{
			ID:          "drill",
			Name:        "魔鬼教练",
			Style:       model.CoachStyle{Kind: model.StyleToughLove},
			Description: "直接指出问题，不留情面，但句句为你。",
			SystemPrompt: "你是一位严厉关爱型交易心理教练。你直接指出交易者行为中的纪律问题和自我欺骗，" +
				"不绕弯子，但每条批评都附带一个明确的改正动作。语气犀利。",
			Temperature: 0.7,
			SortOrder:   3,
			IsActive:    true,
		},
		{
			ID:          "strategist",
			Name:        "策略规划师",
			Style:       model.CoachStyle{Kind: model.StyleStrategic},
			Description: "把讨论落到计划、规则和下一步行动上。",
			SystemPrompt: "你是一位策略型交易心理教练。你把心理问题转化为可执行的规则和计划：" +
				"入场条件、仓位约束、复盘节奏。每次发言都要落到具体行动。",
			Temperature: 0.6,
			SortOrder:   4,
			IsActive:    true,
		},
		{
			ID:          "zen",
			Name:        "正念导师",
			Style:       model.CoachStyle{Kind: model.StyleMindful},
			Description: "关注身体信号与当下觉察，练习与冲动共处。",
			SystemPrompt: "你是一位正念型交易心理教练。你引导交易者觉察身体信号和情绪冲动，" +
				"用呼吸和暂停练习在冲动与行动之间创造空间。语气平静缓慢。",
			Temperature: 0.7,
			SortOrder:   5,
			IsActive:    true,
		},
		{
			ID:          "host",
			Name:        "圆桌主持人",
			Style:       model.CoachStyle{Kind: model.StyleHost},
			Description: "主持讨论，开场、总结、收尾。",
			SystemPrompt: "你是圆桌讨论的主持人。你负责开场破题、在每轮讨论后做中立总结、" +
				"并在讨论结束时给出综合结语。你自己不提供交易建议，只组织和提炼各位教练的观点。",
			Temperature: 0.6,
			SortOrder:   99,
			IsActive:    true,
		},
	}

	presets := []model.CoachPreset{
		{
			ID:          "balanced",
			Name:        "均衡视角",
			Description: "理性、共情与策略三种视角的组合。",
			Icon:        "scale",
			CoachIDs:    []string{"rational", "warm", "strategist"},
			SortOrder:   1,
			IsActive:    true,
		},
		{
			ID:          "discipline",
			Name:        "纪律特训",
			Description: "针对执行力和冲动交易的高强度组合。",
			Icon:        "target",
			CoachIDs:    []string{"drill", "rational", "zen"},
			SortOrder:   2,
			IsActive:    true,
		},
		{
			ID:          "full-table",
			Name:        "全员圆桌",
			Description: "五位教练同台，多角度充分讨论。",
			Icon:        "users",
			CoachIDs:    []string{"rational", "warm", "drill", "strategist", "zen"},
			SortOrder:   3,
			IsActive:    true,
		},
	}

	for i := range coaches {
		res := db.WithContext(ctx).Where(&model.Coach{ID: coaches[i].ID}).FirstOrCreate(&coaches[i])
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			log.Sugar().Infow("seeded coach", "id", coaches[i].ID)
		}
	}
	for i := range presets {
		res := db.WithContext(ctx).Where(&model.CoachPreset{ID: presets[i].ID}).FirstOrCreate(&presets[i])
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			log.Sugar().Infow("seeded preset", "id", presets[i].ID)
		}
	}
	return nil
}
