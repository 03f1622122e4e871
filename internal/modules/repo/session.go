package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aiwendy/roundtable/internal/modules/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

type SessionRepo interface {
	Create(ctx context.Context, s *model.RoundtableSession) error
	Get(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) (*model.RoundtableSession, error)
	Update(ctx context.Context, s *model.RoundtableSession) error
	Delete(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) error
	// List returns the user's sessions newest first, restricted to one
	// project when projectID is set.
	List(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID, limit int, offset int) ([]model.RoundtableSession, int64, error)

	// AppendMessage persists one transcript row and bumps the session's
	// message counter in the same transaction.
	AppendMessage(ctx context.Context, msg *model.RoundtableMessage) error
	ListMessages(ctx context.Context, sessionID uuid.UUID, limit int, offset int) ([]model.RoundtableMessage, error)
	ListRecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]model.RoundtableMessage, error)

	// FinishRun advances the round counter after a chat run, whether or not
	// every utterance generated successfully.
	FinishRun(ctx context.Context, sessionID uuid.UUID, roundsRun int) error
}

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepo {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, s *model.RoundtableSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepo) Get(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) (*model.RoundtableSession, error) {
	var s model.RoundtableSession
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) Update(ctx context.Context, s *model.RoundtableSession) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *sessionRepo) Delete(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		Delete(&model.RoundtableSession{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepo) List(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID, limit int, offset int) ([]model.RoundtableSession, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&model.RoundtableSession{}).Where("user_id = ?", userID)
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []model.RoundtableSession
	err := q.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (r *sessionRepo) AppendMessage(ctx context.Context, msg *model.RoundtableMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.RoundtableSession{}).
			Where("id = ?", msg.SessionID).
			Updates(map[string]interface{}{
				"message_count": gorm.Expr("message_count + 1"),
				"updated_at":    time.Now(),
			}).Error
	})
}

func (r *sessionRepo) ListMessages(ctx context.Context, sessionID uuid.UUID, limit int, offset int) ([]model.RoundtableMessage, error) {
	var msgs []model.RoundtableMessage
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, sequence_in_turn ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *sessionRepo) ListRecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]model.RoundtableMessage, error) {
	var msgs []model.RoundtableMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, sequence_in_turn DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	// Restore chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *sessionRepo) FinishRun(ctx context.Context, sessionID uuid.UUID, roundsRun int) error {
	return r.db.WithContext(ctx).
		Model(&model.RoundtableSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"round_count": gorm.Expr("round_count + ?", roundsRun),
			"updated_at":  time.Now(),
		}).Error
}
