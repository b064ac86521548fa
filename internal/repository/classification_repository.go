package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("classification not found")

// ClassificationLog is one persisted classification attempt.
type ClassificationLog struct {
	ID         uint      `gorm:"primaryKey"`
	RequestID  string    `gorm:"column:request_id;uniqueIndex;size:64"`
	Source     string    `gorm:"column:source;size:16"`
	Label      string    `gorm:"column:label;size:16;index"`
	Confidence float32   `gorm:"column:confidence"`
	Scores     string    `gorm:"column:scores;type:text"`
	TensorHash string    `gorm:"column:tensor_hash;size:40;index"`
	LatencyMs  int64     `gorm:"column:latency_ms"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (ClassificationLog) TableName() string {
	return "classification_logs"
}

type LabelCount struct {
	Label string
	Count int64
}

type ClassificationRepository struct {
	db *gorm.DB
}

func NewClassificationRepository(db *gorm.DB) *ClassificationRepository {
	return &ClassificationRepository{db: db}
}

func (r *ClassificationRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&ClassificationLog{})
}

func (r *ClassificationRepository) SaveLog(ctx context.Context, log *ClassificationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *ClassificationRepository) FindByRequestID(ctx context.Context, requestID string) (*ClassificationLog, error) {
	var log ClassificationLog
	err := r.db.WithContext(ctx).First(&log, "request_id = ?", requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// CountByLabel returns how many attempts ended in each label.
func (r *ClassificationRepository) CountByLabel(ctx context.Context) ([]LabelCount, error) {
	var counts []LabelCount
	err := r.db.WithContext(ctx).
		Model(&ClassificationLog{}).
		Select("label, count(*) as count").
		Group("label").
		Order("label").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// AverageLatency returns the mean latency in milliseconds over all attempts.
func (r *ClassificationRepository) AverageLatency(ctx context.Context) (float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).
		Model(&ClassificationLog{}).
		Select("avg(latency_ms)").
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}
