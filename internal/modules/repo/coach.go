package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/aiwendy/roundtable/internal/modules/model"
)

var (
	ErrCoachNotFound  = errors.New("coach not found")
	ErrPresetNotFound = errors.New("preset not found")
)

type CoachRepo interface {
	ListActive(ctx context.Context) ([]model.Coach, error)
	Get(ctx context.Context, id string) (*model.Coach, error)

	// ListActiveByIDs resolves ids to active coaches, preserving the input
	// order. Unknown or inactive ids are silently dropped.
	ListActiveByIDs(ctx context.Context, ids []string) ([]model.Coach, error)

	ListPresets(ctx context.Context) ([]model.CoachPreset, error)
	GetPreset(ctx context.Context, id string) (*model.CoachPreset, error)
}

type coachRepo struct {
	db *gorm.DB
}

func NewCoachRepo(db *gorm.DB) CoachRepo {
	return &coachRepo{db: db}
}

func (r *coachRepo) ListActive(ctx context.Context) ([]model.Coach, error) {
	var coaches []model.Coach
	err := r.db.WithContext(ctx).
		Where(&model.Coach{IsActive: true}).
		Order("sort_order ASC, id ASC").
		Find(&coaches).Error
	if err != nil {
		return nil, err
	}
	return coaches, nil
}

func (r *coachRepo) Get(ctx context.Context, id string) (*model.Coach, error) {
	var c model.Coach
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCoachNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *coachRepo) ListActiveByIDs(ctx context.Context, ids []string) ([]model.Coach, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var coaches []model.Coach
	err := r.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&coaches).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Coach, len(coaches))
	for _, c := range coaches {
		byID[c.ID] = c
	}
	ordered := make([]model.Coach, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

func (r *coachRepo) ListPresets(ctx context.Context) ([]model.CoachPreset, error) {
	var presets []model.CoachPreset
	err := r.db.WithContext(ctx).
		Where(&model.CoachPreset{IsActive: true}).
		Order("sort_order ASC, id ASC").
		Find(&presets).Error
	if err != nil {
		return nil, err
	}
	return presets, nil
}

func (r *coachRepo) GetPreset(ctx context.Context, id string) (*model.CoachPreset, error) {
	var p model.CoachPreset
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPresetNotFound
		}
		return nil, err
	}
	return &p, nil
}
