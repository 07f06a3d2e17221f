package db

import (
	"context"

	"recordproof/internal/domain"

	"gorm.io/gorm"
)

type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Create(ctx context.Context, record domain.Record) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := toModel(record)
	return translateError(r.db.WithContext(ctx).Create(&model).Error)
}

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model RecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	record := fromModel(model)
	return &record, nil
}

func (r *RecordRepository) GetByEmail(ctx context.Context, email string) (*domain.Record, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model RecordModel
	if err := r.db.WithContext(ctx).First(&model, "email = ?", email).Error; err != nil {
		return nil, translateError(err)
	}
	record := fromModel(model)
	return &record, nil
}

func (r *RecordRepository) List(ctx context.Context, offset, limit int) ([]domain.Record, int64, error) {
	if r.db == nil {
		return nil, 0, errDBUnavailable
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&RecordModel{}).Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}
	var models []RecordModel
	err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return fromModels(models), total, nil
}

func (r *RecordRepository) ListAll(ctx context.Context, limit int) ([]domain.Record, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	query := r.db.WithContext(ctx).Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []RecordModel
	if err := query.Find(&models).Error; err != nil {
		return nil, translateError(err)
	}
	return fromModels(models), nil
}

func (r *RecordRepository) Update(ctx context.Context, record domain.Record) error {
	if r.db == nil {
		return errDBUnavailable
	}
	result := r.db.WithContext(ctx).
		Model(&RecordModel{}).
		Where("id = ?", record.ID).
		Updates(map[string]any{
			"email":      record.Email,
			"role":       string(record.Role),
			"status":     string(record.Status),
			"email_hash": record.EmailHash,
			"signature":  record.Signature,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	result := r.db.WithContext(ctx).Delete(&RecordModel{}, "id = ?", id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toModel(record domain.Record) RecordModel {
	return RecordModel{
		ID:        record.ID,
		Email:     record.Email,
		Role:      string(record.Role),
		Status:    string(record.Status),
		CreatedAt: record.CreatedAt,
		EmailHash: record.EmailHash,
		Signature: record.Signature,
	}
}

func fromModel(model RecordModel) domain.Record {
	return domain.Record{
		ID:        model.ID,
		Email:     model.Email,
		Role:      domain.Role(model.Role),
		Status:    domain.Status(model.Status),
		CreatedAt: model.CreatedAt.UTC(),
		EmailHash: model.EmailHash,
		Signature: model.Signature,
	}
}

func fromModels(models []RecordModel) []domain.Record {
	out := make([]domain.Record, 0, len(models))
	for _, model := range models {
		out = append(out, fromModel(model))
	}
	return out
}
