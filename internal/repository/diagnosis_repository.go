package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/leafdoctor/internal/retry"
)

// DiagnosisLog represents a persisted diagnosis.
type DiagnosisLog struct {
	ID           uint      `gorm:"primaryKey"`
	RequestID    string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID       string    `gorm:"column:user_id;size:64;index"`
	TopLabel     string    `gorm:"column:top_label;size:64;index"`
	Confidence   float64   `gorm:"column:confidence"`
	Distribution []float64 `gorm:"column:distribution;serializer:json"`
	Labels       []string  `gorm:"column:labels;serializer:json"`
	Source       string    `gorm:"column:source;size:16"`
	Provider     string    `gorm:"column:provider;size:32"`
	SHA1Hash     string    `gorm:"column:sha1_hash;size:40;index"`
	LatencyMs    float64   `gorm:"column:latency_ms"`
	CreatedAt    time.Time `gorm:"column:created_at;index"`
}

// TableName overrides the default table name.
func (DiagnosisLog) TableName() string {
	return "diagnosis_logs"
}

// LabelCount is the number of diagnoses for one top label.
type LabelCount struct {
	Label string `gorm:"column:top_label"`
	Count int64  `gorm:"column:count"`
}

// MetricsAggregation is the raw aggregate used for metrics summaries.
type MetricsAggregation struct {
	TotalCount        int64
	DemoCount         int64
	AverageConfidence float64
	AverageLatencyMs  float64
	LabelCounts       []LabelCount
}

// DiagnosisRepository provides persistence APIs for diagnosis logs.
type DiagnosisRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
}

// NewDiagnosisRepository creates a new repository instance.
func NewDiagnosisRepository(db *gorm.DB, logger *zap.Logger) *DiagnosisRepository {
	return &DiagnosisRepository{
		db:     db,
		logger: logger.Named("diagnosis_repository"),
		policy: retry.DefaultPolicy(),
	}
}

// AutoMigrate ensures the schema is available.
func (r *DiagnosisRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&DiagnosisLog{})
}

// SaveLog persists a diagnosis log entry.
func (r *DiagnosisRepository) SaveLog(ctx context.Context, log *DiagnosisLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestIDAndUser retrieves a diagnosis log matching the request and owner.
func (r *DiagnosisRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*DiagnosisLog, error) {
	var log DiagnosisLog
	if err := r.db.WithContext(ctx).First(&log, "request_id = ? AND user_id = ?", requestID, userID).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// FindDuplicatesByHash lists the user's other diagnoses of the same image.
func (r *DiagnosisRepository) FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*DiagnosisLog, error) {
	var logs []*DiagnosisLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND sha1_hash = ? AND request_id <> ?", userID, hash, excludeRequestID).
		Order("created_at DESC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// ListRecent returns the user's latest diagnoses, newest first.
func (r *DiagnosisRepository) ListRecent(ctx context.Context, userID string, limit int) ([]*DiagnosisLog, error) {
	var logs []*DiagnosisLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// AggregateMetrics computes totals and averages over all diagnoses.
func (r *DiagnosisRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var row struct {
		TotalCount        int64
		DemoCount         int64
		AverageConfidence float64
		AverageLatencyMs  float64
	}
	err := r.db.WithContext(ctx).Model(&DiagnosisLog{}).
		Select(`COUNT(*) AS total_count,
			COALESCE(SUM(CASE WHEN source = 'demo' THEN 1 ELSE 0 END), 0) AS demo_count,
			COALESCE(AVG(confidence), 0) AS average_confidence,
			COALESCE(AVG(latency_ms), 0) AS average_latency_ms`).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	var counts []LabelCount
	err = r.db.WithContext(ctx).Model(&DiagnosisLog{}).
		Select("top_label, COUNT(*) AS count").
		Group("top_label").
		Order("top_label").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	return &MetricsAggregation{
		TotalCount:        row.TotalCount,
		DemoCount:         row.DemoCount,
		AverageConfidence: row.AverageConfidence,
		AverageLatencyMs:  row.AverageLatencyMs,
		LabelCounts:       counts,
	}, nil
}

func (r *DiagnosisRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	return retry.Do(ctx, r.policy, r.logger, operation, requestID, fn)
}
