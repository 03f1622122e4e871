package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aiwendy/roundtable/internal/config"
	mq "github.com/aiwendy/roundtable/internal/infra/queue"
	"github.com/aiwendy/roundtable/internal/modules/model"
	"github.com/aiwendy/roundtable/internal/modules/repo"
	"github.com/aiwendy/roundtable/internal/pkg/llm"
	"github.com/aiwendy/roundtable/internal/pkg/prompt"
	"github.com/aiwendy/roundtable/internal/telemetry"
)

const (
	chatLockTTL      = 5 * time.Minute
	defaultMaxRounds = 1
	maxRoundsLimit   = 3
	historyWindow    = 100

	maxTokensOpening = 300
	maxTokensCoach   = 500
	maxTokensSummary = 400
	maxTokensClosing = 500
)

// errStreamClosed marks emitter failures: the client is gone and the run
// should stop quietly without touching the discussion state further.
var errStreamClosed = errors.New("event stream closed")

// ChatInput is one user turn: the message plus per-call overrides.
type ChatInput struct {
	SessionID   uuid.UUID
	Content     string
	Attachments []model.Attachment

	MaxRounds   int
	ShouldEnd   bool
	DebateStyle string

	ConfigID    string
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   *int

	KBTiming        string
	KBTopK          *int
	KBMaxCandidates *int
}

// ChatRun is a fully validated chat call, ready to execute. All
// configuration errors have already been surfaced synchronously by
// PrepareChat; from here on only generation and persistence can fail.
type ChatRun struct {
	UserID    uuid.UUID
	Session   *model.RoundtableSession
	Coaches   []model.Coach
	Moderator *model.Coach

	in      ChatInput
	plan    *llm.Plan
	gate    *kbGate
	lockKey string
}

// TurnCompletedEvent is published to the message queue after a successful
// run for the downstream journal/report pipeline.
type TurnCompletedEvent struct {
	SessionID   uuid.UUID `json:"session_id"`
	UserID      uuid.UUID `json:"user_id"`
	RoundsRun   int       `json:"rounds_run"`
	ShouldEnd   bool      `json:"should_end"`
	CoachCount  int       `json:"coach_count"`
	CompletedAt time.Time `json:"completed_at"`
}

type RoundtableService interface {
	// PrepareChat validates the session, personas, provider configuration
	// and the per-session lock. Every configuration error is returned here,
	// before any event or persistence happens.
	PrepareChat(ctx context.Context, userID uuid.UUID, in ChatInput) (*ChatRun, error)

	// ExecuteChat drives the discussion state machine and streams events
	// through the emitter. It never returns an error: generation failures
	// degrade to fallback utterances, persistence failures end the stream
	// with an error event, transport failures just stop the run.
	ExecuteChat(ctx context.Context, run *ChatRun, emitter Emitter)

	// Release frees the session lock. ExecuteChat releases on its own;
	// callers only need this when abandoning a prepared run.
	Release(ctx context.Context, run *ChatRun)
}

type roundtableService struct {
	sessions  repo.SessionRepo
	coaches   repo.CoachRepo
	retriever KnowledgeRetriever
	resolver  *llm.Resolver
	router    *llm.Router
	assembler *prompt.Assembler
	rdb       *redis.Client
	publisher *mq.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewRoundtableService(
	sessions repo.SessionRepo,
	coaches repo.CoachRepo,
	retriever KnowledgeRetriever,
	resolver *llm.Resolver,
	router *llm.Router,
	assembler *prompt.Assembler,
	rdb *redis.Client,
	publisher *mq.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) RoundtableService {
	return &roundtableService{
		sessions:  sessions,
		coaches:   coaches,
		retriever: retriever,
		resolver:  resolver,
		router:    router,
		assembler: assembler,
		rdb:       rdb,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

func (s *roundtableService) PrepareChat(ctx context.Context, userID uuid.UUID, in ChatInput) (*ChatRun, error) {
	if in.Content == "" {
		return nil, ErrEmptyContent
	}
	if in.MaxRounds == 0 {
		in.MaxRounds = defaultMaxRounds
	}
	if in.MaxRounds < 1 || in.MaxRounds > maxRoundsLimit {
		return nil, ErrInvalidRoundCount
	}
	if in.DebateStyle == "" {
		in.DebateStyle = model.DebateConverge
	}

	sess, err := s.sessions.Get(ctx, userID, in.SessionID)
	if err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !sess.IsActive {
		return nil, ErrSessionInactive
	}

	coaches, err := s.coaches.ListActiveByIDs(ctx, sess.CoachIDs)
	if err != nil {
		return nil, err
	}
	if len(coaches) == 0 {
		return nil, ErrNoCoaches
	}

	var moderator *model.Coach
	if sess.IsModerated() {
		if sess.ModeratorID == nil {
			return nil, ErrModeratorMissing
		}
		m, err := s.coaches.Get(ctx, *sess.ModeratorID)
		if err != nil || !m.IsActive {
			return nil, fmt.Errorf("%w: %q", ErrModeratorMissing, *sess.ModeratorID)
		}
		moderator = m
	}

	plan, err := s.resolver.Resolve(sess, llm.Overrides{
		ConfigID:    in.ConfigID,
		Provider:    in.Provider,
		Model:       in.Model,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	kbTiming := firstNonEmptyStr(in.KBTiming, sess.KBTiming, model.KBTimingOff)
	gate := newKBGate(
		s.retriever, s.log, userID, sess.ProjectID, kbTiming,
		defaultInt(in.KBTopK, sess.KBTopK),
		defaultInt(in.KBMaxCandidates, sess.KBMaxCandidates),
	)

	run := &ChatRun{
		UserID:    userID,
		Session:   sess,
		Coaches:   coaches,
		Moderator: moderator,
		in:        in,
		plan:      plan,
		gate:      gate,
		lockKey:   fmt.Sprintf("roundtable:lock:%s", sess.ID),
	}

	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, run.lockKey, userID.String(), chatLockTTL).Result()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSessionBusy
		}
	}
	return run, nil
}

func (s *roundtableService) Release(ctx context.Context, run *ChatRun) {
	if s.rdb == nil || run == nil {
		return
	}
	if err := s.rdb.Del(ctx, run.lockKey).Err(); err != nil {
		s.log.Warn("failed to release chat lock", zap.String("key", run.lockKey), zap.Error(err))
	}
}

func (s *roundtableService) ExecuteChat(ctx context.Context, run *ChatRun, emitter Emitter) {
	defer s.Release(context.WithoutCancel(ctx), run)
	start := time.Now()

	err := s.execute(ctx, run, emitter)
	elapsed := float64(time.Since(start).Milliseconds())
	mctx := context.WithoutCancel(ctx)

	if err == nil {
		telemetry.RecordChatRun(mctx, "success", elapsed, int64(run.in.MaxRounds), int64(len(run.Coaches)))
		return
	}
	if errors.Is(err, errStreamClosed) || ctx.Err() != nil {
		// Client disconnect is a transport event, not a discussion failure.
		s.log.Info("chat stream aborted by client",
			zap.String("session_id", run.Session.ID.String()))
		telemetry.RecordChatRun(mctx, "aborted", elapsed, int64(run.in.MaxRounds), int64(len(run.Coaches)))
		return
	}
	s.log.Error("chat run failed",
		zap.String("session_id", run.Session.ID.String()), zap.Error(err))
	telemetry.RecordChatRun(mctx, "error", elapsed, int64(run.in.MaxRounds), int64(len(run.Coaches)))
	_ = emitter.Emit(Event{Type: EventError, Message: err.Error()})
}

func (s *roundtableService) execute(ctx context.Context, run *ChatRun, emitter Emitter) error {
	sess := run.Session
	in := run.in
	isFirstMessage := sess.MessageCount == 0

	userMsg := &model.RoundtableMessage{
		SessionID:      sess.ID,
		Role:           model.RoleUser,
		Content:        in.Content,
		Attachments:    model.SanitizeAttachments(in.Attachments),
		MessageType:    model.MessageTypeResponse,
		TurnNumber:     sess.RoundCount + 1,
		SequenceInTurn: 0,
	}
	if err := s.sessions.AppendMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}

	// The token budget in the assembler does the fine-grained trimming; the
	// window here just bounds the query.
	history, err := s.sessions.ListRecentMessages(ctx, sess.ID, historyWindow)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	kbQueryBase := prompt.KnowledgeQueryBase(in.Content, in.Attachments)
	kbMessageText := ""
	if run.gate.timing == model.KBTimingMessage {
		kbMessageText = run.gate.text(ctx, "message", kbQueryBase)
	}

	// Moderator opening: only for the very first message of a moderated
	// session, before any round starts.
	if run.Moderator != nil && isFirstMessage {
		kbText := kbMessageText
		switch run.gate.timing {
		case model.KBTimingRound:
			kbText = run.gate.text(ctx, "round:1", prompt.KnowledgeQueryWithHistory(kbQueryBase, history, 4))
		case model.KBTimingModerator:
			kbText = run.gate.text(ctx, "moderator:opening", prompt.KnowledgeQueryWithHistory(kbQueryBase, history, 4))
		}
		msgs := prompt.ModeratorOpening(*run.Moderator, run.Coaches, in.Content, kbText)
		saved, err := s.moderatorPhase(ctx, run, emitter, model.MessageTypeOpening, msgs,
			prompt.FallbackOpening, maxTokensOpening, sess.RoundCount+1, 0)
		if err != nil {
			return err
		}
		history = append(history, *saved)
	}

	for round := 1; round <= in.MaxRounds; round++ {
		if err := emit(emitter, Event{Type: EventRoundStart, Round: round}); err != nil {
			return err
		}

		kbRoundText := ""
		if run.gate.timing == model.KBTimingRound {
			kbRoundText = run.gate.text(ctx, fmt.Sprintf("round:%d", round),
				prompt.KnowledgeQueryWithHistory(kbQueryBase, history, 4))
		}

		var statements []prompt.RoundStatement
		for seq, coach := range run.Coaches {
			if err := emit(emitter, Event{
				Type:        EventCoachStart,
				CoachID:     coach.ID,
				CoachName:   coach.Name,
				CoachAvatar: coach.AvatarURL,
			}); err != nil {
				return err
			}

			kbText := ""
			switch run.gate.timing {
			case model.KBTimingMessage:
				kbText = kbMessageText
			case model.KBTimingRound:
				kbText = kbRoundText
			case model.KBTimingCoach:
				kbText = run.gate.text(ctx, fmt.Sprintf("coach:%d:%s", round, coach.ID),
					prompt.KnowledgeQueryWithHistory(kbQueryBase, history, 4))
			}

			msgs := s.assembler.CoachTurn(prompt.CoachTurnInput{
				Coach:                coach,
				Coaches:              run.Coaches,
				Moderator:            run.Moderator,
				Round:                round,
				DebateStyle:          in.DebateStyle,
				Moderated:            sess.IsModerated(),
				KnowledgeBlock:       kbText,
				History:              history,
				CurrentUserMessageID: userMsg.ID,
				LiveAttachments:      in.Attachments,
			})

			content, err := s.generate(ctx, run, emitter, coach.ID, msgs,
				coachTemperature(run.plan, coach.Temperature), maxTokensCoach)
			if err != nil {
				if errors.Is(err, errStreamClosed) || ctx.Err() != nil {
					return errStreamClosed
				}
				s.log.Error("coach generation failed, substituting fallback",
					zap.String("coach_id", coach.ID), zap.Error(err))
				telemetry.RecordChatFallback(ctx, "coach")
				content = prompt.FallbackCoach
				if err := emit(emitter, Event{Type: EventContent, CoachID: coach.ID, Content: content}); err != nil {
					return err
				}
			}

			coachMsg := &model.RoundtableMessage{
				SessionID:      sess.ID,
				CoachID:        &coach.ID,
				Role:           model.RoleAssistant,
				Content:        content,
				MessageType:    model.MessageTypeResponse,
				TurnNumber:     sess.RoundCount + round,
				SequenceInTurn: seq + 1,
			}
			if err := s.sessions.AppendMessage(ctx, coachMsg); err != nil {
				return fmt.Errorf("persist coach message: %w", err)
			}
			history = append(history, *coachMsg)
			statements = append(statements, prompt.RoundStatement{CoachName: coach.Name, Content: content})

			if err := emit(emitter, Event{Type: EventCoachEnd, CoachID: coach.ID}); err != nil {
				return err
			}
		}

		if err := emit(emitter, Event{Type: EventRoundEnd, Round: round}); err != nil {
			return err
		}

		if run.Moderator != nil {
			kbText := kbMessageText
			switch run.gate.timing {
			case model.KBTimingRound:
				kbText = kbRoundText
			case model.KBTimingModerator:
				kbText = run.gate.text(ctx, fmt.Sprintf("moderator:summary:%d", round),
					prompt.KnowledgeQueryWithHistory(kbQueryBase, history, 4))
			}
			msgs := prompt.ModeratorSummary(*run.Moderator, statements, kbText)
			saved, err := s.moderatorPhase(ctx, run, emitter, model.MessageTypeSummary, msgs,
				prompt.FallbackSummary, maxTokensSummary, sess.RoundCount+round, len(run.Coaches)+1)
			if err != nil {
				return err
			}
			history = append(history, *saved)
		}
	}

	if run.Moderator != nil && in.ShouldEnd {
		kbText := ""
		switch run.gate.timing {
		case model.KBTimingMessage:
			kbText = kbMessageText
		case model.KBTimingModerator:
			kbText = run.gate.text(ctx, "moderator:closing",
				prompt.KnowledgeQueryWithHistory(kbQueryBase, history, 4))
		}
		msgs := prompt.ModeratorClosing(*run.Moderator, run.Coaches, history, kbText)
		if _, err := s.moderatorPhase(ctx, run, emitter, model.MessageTypeClosing, msgs,
			prompt.FallbackClosing, maxTokensClosing, sess.RoundCount+in.MaxRounds, model.SequenceClosing); err != nil {
			return err
		}
	}

	// The round counter always advances by the requested rounds, even when
	// individual phases fell back.
	if err := s.sessions.FinishRun(ctx, sess.ID, in.MaxRounds); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	s.publishTurnCompleted(ctx, run)

	return emit(emitter, Event{Type: EventDone})
}

// moderatorPhase runs one opening/summary/closing generation: start event,
// streamed content with fallback on failure, persistence, end event.
func (s *roundtableService) moderatorPhase(
	ctx context.Context,
	run *ChatRun,
	emitter Emitter,
	messageType string,
	msgs []llm.Message,
	fallback string,
	maxTokens int,
	turnNumber, seq int,
) (*model.RoundtableMessage, error) {
	m := run.Moderator
	if err := emit(emitter, Event{
		Type:        EventModeratorStart,
		MessageType: messageType,
		CoachID:     m.ID,
		CoachName:   m.Name,
		CoachAvatar: m.AvatarURL,
	}); err != nil {
		return nil, err
	}

	content, err := s.generate(ctx, run, emitter, m.ID,
		msgs, coachTemperature(run.plan, m.Temperature), maxTokens)
	if err != nil {
		if errors.Is(err, errStreamClosed) || ctx.Err() != nil {
			return nil, errStreamClosed
		}
		s.log.Error("moderator generation failed, substituting fallback",
			zap.String("message_type", messageType), zap.Error(err))
		telemetry.RecordChatFallback(ctx, messageType)
		content = fallback
		if err := emit(emitter, Event{Type: EventContent, CoachID: m.ID, Content: content}); err != nil {
			return nil, err
		}
	}

	msg := &model.RoundtableMessage{
		SessionID:      run.Session.ID,
		CoachID:        &m.ID,
		Role:           model.RoleAssistant,
		Content:        content,
		MessageType:    messageType,
		TurnNumber:     turnNumber,
		SequenceInTurn: seq,
	}
	if err := s.sessions.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist moderator %s: %w", messageType, err)
	}

	if err := emit(emitter, Event{Type: EventModeratorEnd, MessageType: messageType, CoachID: m.ID}); err != nil {
		return nil, err
	}
	return msg, nil
}

// generate streams one utterance through the provider attempt chain,
// forwarding fragments as content events and returning the accumulated text.
func (s *roundtableService) generate(
	ctx context.Context,
	run *ChatRun,
	emitter Emitter,
	coachID string,
	msgs []llm.Message,
	temperature float64,
	defaultMaxTokens int,
) (string, error) {
	maxTokens := defaultMaxTokens
	if run.plan.MaxTokens != nil {
		maxTokens = *run.plan.MaxTokens
	}

	accumulated := ""
	err := s.router.ChatStream(ctx, run.plan.Attempts, msgs, llm.GenerateConfig{
		Model:       run.plan.Model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, func(chunk string) error {
		accumulated += chunk
		if err := emitter.Emit(Event{Type: EventContent, CoachID: coachID, Content: chunk}); err != nil {
			return fmt.Errorf("%w: %v", errStreamClosed, err)
		}
		return nil
	})
	if err != nil {
		return accumulated, err
	}
	return accumulated, nil
}

func (s *roundtableService) publishTurnCompleted(ctx context.Context, run *ChatRun) {
	if s.publisher == nil {
		return
	}
	ev := TurnCompletedEvent{
		SessionID:   run.Session.ID,
		UserID:      run.UserID,
		RoundsRun:   run.in.MaxRounds,
		ShouldEnd:   run.in.ShouldEnd,
		CoachCount:  len(run.Coaches),
		CompletedAt: time.Now(),
	}
	err := s.publisher.PublishJSON(ctx,
		s.cfg.RabbitMQ.ExchangeName.RoundtableEvents,
		s.cfg.RabbitMQ.RoutingKey.TurnCompleted, ev)
	if err != nil {
		s.log.Warn("failed to publish turn completed event", zap.Error(err))
	}
}

func emit(emitter Emitter, ev Event) error {
	if err := emitter.Emit(ev); err != nil {
		return fmt.Errorf("%w: %v", errStreamClosed, err)
	}
	return nil
}

func coachTemperature(plan *llm.Plan, personaTemp float64) float64 {
	if plan.Temperature != nil {
		return *plan.Temperature
	}
	if personaTemp > 0 {
		return personaTemp
	}
	return 0.7
}

func firstNonEmptyStr(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
