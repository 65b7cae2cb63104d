package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/leafdoctor/internal/diagnosis"
	"github.com/example/leafdoctor/internal/imageprocessor"
	"github.com/example/leafdoctor/internal/inference"
	"github.com/example/leafdoctor/internal/logging"
	"github.com/example/leafdoctor/internal/repository"
	"github.com/example/leafdoctor/internal/retry"
)

var (
	// ErrUnableToAnalyze is the single user-facing analysis failure.
	ErrUnableToAnalyze = errors.New("unable to analyze image")
	// ErrInProgress means the diagnosis has been accepted but not stored yet.
	ErrInProgress = errors.New("diagnosis in progress")
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// DiagnosisRepository defines the persistence operations needed by the use case.
type DiagnosisRepository interface {
	SaveLog(ctx context.Context, log *repository.DiagnosisLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.DiagnosisLog, error)
	FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*repository.DiagnosisLog, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]*repository.DiagnosisLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// Predictor yields raw scores, falling back to demo mode when needed.
type Predictor interface {
	Predict(ctx context.Context, requestID string, img *imageprocessor.Image) (*inference.Prediction, error)
	Mode() inference.Source
}

// Upload is an image submitted for diagnosis.
type Upload struct {
	ContentType string
	Data        []byte
	Enhance     bool
}

// Report is the stored and returned outcome of one diagnosis.
type Report struct {
	RequestID         string                   `json:"request_id"`
	UserID            string                   `json:"user_id"`
	TopLabel          diagnosis.Label          `json:"top_label"`
	DisplayLabel      string                   `json:"display_label"`
	ConfidencePercent float64                  `json:"confidence_percent"`
	Labels            []diagnosis.Label        `json:"labels"`
	Distribution      []float64                `json:"distribution"`
	Recommendation    diagnosis.Recommendation `json:"recommendation"`
	Source            inference.Source         `json:"source"`
	Provider          string                   `json:"provider"`
	SHA1Hash          string                   `json:"sha1_hash"`
	LatencyMs         float64                  `json:"latency_ms"`
	CreatedAt         time.Time                `json:"created_at"`
}

// DuplicateReport lists earlier diagnoses of the same image.
type DuplicateReport struct {
	Request    *Report
	Duplicates []*Report
}

// DiagnosisUseCase encapsulates business logic for the diagnosis flow.
type DiagnosisUseCase struct {
	repo      DiagnosisRepository
	cache     Cache
	predictor Predictor
	analyzer  *diagnosis.Analyzer
	logger    *zap.Logger
	policy    retry.Policy
	now       func() time.Time
}

// NewDiagnosisUseCase constructs a new use case instance.
func NewDiagnosisUseCase(repo DiagnosisRepository, cache Cache, predictor Predictor, analyzer *diagnosis.Analyzer, logger *zap.Logger) *DiagnosisUseCase {
	return &DiagnosisUseCase{
		repo:      repo,
		cache:     cache,
		predictor: predictor,
		analyzer:  analyzer,
		logger:    logger.Named("diagnosis_usecase"),
		policy:    retry.DefaultPolicy(),
		now:       time.Now,
	}
}

// Mode reports whether diagnoses currently come from a model or demo mode.
func (uc *DiagnosisUseCase) Mode() inference.Source {
	return uc.predictor.Mode()
}

// Labels returns the configured label order.
func (uc *DiagnosisUseCase) Labels() []diagnosis.Label {
	return uc.analyzer.Labels()
}

// Diagnose prepares the image, obtains scores, classifies them and stores
// the report.
func (uc *DiagnosisUseCase) Diagnose(ctx context.Context, userID string, upload Upload) (*Report, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.diagnose", requestID)
	cacheKey := resultKey(requestID)

	img, err := imageprocessor.Prepare(upload.ContentType, upload.Data, imageprocessor.Options{Enhance: upload.Enhance})
	if err != nil {
		if errors.Is(err, imageprocessor.ErrUnsupportedType) || errors.Is(err, imageprocessor.ErrTooLarge) || errors.Is(err, imageprocessor.ErrEmpty) {
			return nil, err
		}
		opLogger.Warn("image preparation failed", zap.Error(err))
		return nil, logging.NewOperationError("usecase.prepare_image", requestID, errors.Join(ErrUnableToAnalyze, err))
	}

	if err := retry.Do(ctx, uc.policy, uc.logger, "cache.set.processing", requestID, func() error {
		return uc.cache.Set(ctx, cacheKey, processingMarker(userID), processingTTL)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return nil, err
	}

	started := uc.now()
	prediction, err := uc.predictor.Predict(ctx, requestID, img)
	if err != nil {
		opLogger.Error("prediction failed", zap.Error(err))
		uc.markFailed(ctx, opLogger, cacheKey, userID)
		return nil, logging.NewOperationError("usecase.predict", requestID, errors.Join(ErrUnableToAnalyze, err))
	}
	latency := uc.now().Sub(started)

	result, err := uc.analyzer.Analyze(prediction.Scores)
	if err != nil {
		opLogger.Warn("scores rejected", zap.Error(err), zap.String("source", string(prediction.Source)))
		uc.markFailed(ctx, opLogger, cacheKey, userID)
		return nil, logging.NewOperationError("usecase.analyze", requestID, errors.Join(ErrUnableToAnalyze, err))
	}

	hash := sha1.Sum(upload.Data)
	report := &Report{
		RequestID:         requestID,
		UserID:            userID,
		TopLabel:          result.TopLabel,
		DisplayLabel:      result.DisplayLabel(),
		ConfidencePercent: result.ConfidencePercent,
		Labels:            result.Labels,
		Distribution:      result.Distribution,
		Recommendation:    result.Recommendation,
		Source:            prediction.Source,
		Provider:          prediction.Provider,
		SHA1Hash:          hex.EncodeToString(hash[:]),
		LatencyMs:         float64(latency.Microseconds()) / 1000,
		CreatedAt:         uc.now().UTC(),
	}

	serialized, err := json.Marshal(report)
	if err != nil {
		opLogger.Error("failed to serialize diagnosis report", zap.Error(err))
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := uc.repo.SaveLog(gctx, toLog(report)); err != nil {
			opLogger.Error("failed to persist diagnosis log", zap.Error(err))
			return logging.NewOperationError("usecase.save_log", requestID, err)
		}
		return nil
	})
	g.Go(func() error {
		err := retry.Do(gctx, uc.policy, uc.logger, "cache.set.result", requestID, func() error {
			return uc.cache.Set(gctx, cacheKey, string(serialized), resultTTL)
		})
		if err != nil {
			opLogger.Error("failed to cache diagnosis report", zap.Error(err))
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	opLogger.Info("diagnosis complete",
		zap.String("label", string(report.TopLabel)),
		zap.Float64("confidence", report.ConfidencePercent),
		zap.String("source", string(report.Source)),
	)
	return report, nil
}

// GetResult retrieves a cached diagnosis or loads it from persistence.
func (uc *DiagnosisUseCase) GetResult(ctx context.Context, userID, requestID string) (*Report, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_result", requestID)

	cached, err := uc.cachedValue(ctx, requestID)
	switch {
	case err == nil && cached == processingMarker(userID):
		return nil, ErrInProgress
	case err == nil && cached == failedMarker(userID):
		return nil, ErrUnableToAnalyze
	case err == nil && !isMarker(cached):
		var report Report
		if err := json.Unmarshal([]byte(cached), &report); err != nil {
			opLogger.Warn("failed to decode cached report", zap.Error(err))
		} else if report.UserID == userID {
			return &report, nil
		}
	case err != nil && !errors.Is(err, ErrCacheMiss):
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	log, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	return uc.fromLog(log), nil
}

// GetDuplicateReport lists the user's other diagnoses of the same image.
func (uc *DiagnosisUseCase) GetDuplicateReport(ctx context.Context, userID, requestID string) (*DuplicateReport, error) {
	log, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}

	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, userID, log.SHA1Hash, log.RequestID)
	if err != nil {
		return nil, err
	}

	report := &DuplicateReport{Request: uc.fromLog(log), Duplicates: make([]*Report, 0, len(duplicates))}
	for _, d := range duplicates {
		report.Duplicates = append(report.Duplicates, uc.fromLog(d))
	}
	return report, nil
}

// History returns the user's most recent diagnoses.
func (uc *DiagnosisUseCase) History(ctx context.Context, userID string, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	logs, err := uc.repo.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	reports := make([]*Report, 0, len(logs))
	for _, l := range logs {
		reports = append(reports, uc.fromLog(l))
	}
	return reports, nil
}

// ShareText renders the plain-text share message for a stored diagnosis.
func (uc *DiagnosisUseCase) ShareText(ctx context.Context, userID, requestID, link string) (string, error) {
	report, err := uc.GetResult(ctx, userID, requestID)
	if err != nil {
		return "", err
	}
	d := &diagnosis.Diagnosis{Result: diagnosis.Result{
		TopLabel:          report.TopLabel,
		ConfidencePercent: report.ConfidencePercent,
		Distribution:      report.Distribution,
	}}
	return d.ShareText(link), nil
}

// markFailed replaces the processing marker so pollers stop waiting on a
// request that will never produce a report.
func (uc *DiagnosisUseCase) markFailed(ctx context.Context, opLogger *zap.Logger, key, userID string) {
	if err := uc.cache.Set(context.WithoutCancel(ctx), key, failedMarker(userID), failedTTL); err != nil {
		opLogger.Warn("failed to record analysis failure", zap.Error(err))
	}
}

func (uc *DiagnosisUseCase) cachedValue(ctx context.Context, requestID string) (string, error) {
	var value string
	miss := false
	err := retry.Do(ctx, uc.policy, uc.logger, "cache.get.result", requestID, func() error {
		v, err := uc.cache.Get(ctx, resultKey(requestID))
		if errors.Is(err, ErrCacheMiss) {
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if miss {
		return "", ErrCacheMiss
	}
	return value, err
}

func toLog(r *Report) *repository.DiagnosisLog {
	labels := make([]string, len(r.Labels))
	for i, l := range r.Labels {
		labels[i] = string(l)
	}
	return &repository.DiagnosisLog{
		RequestID:    r.RequestID,
		UserID:       r.UserID,
		TopLabel:     string(r.TopLabel),
		Confidence:   r.ConfidencePercent,
		Distribution: r.Distribution,
		Labels:       labels,
		Source:       string(r.Source),
		Provider:     r.Provider,
		SHA1Hash:     r.SHA1Hash,
		LatencyMs:    r.LatencyMs,
		CreatedAt:    r.CreatedAt,
	}
}

// fromLog rebuilds a report; the recommendation comes from the current
// catalog and is left empty when the label is no longer configured.
func (uc *DiagnosisUseCase) fromLog(log *repository.DiagnosisLog) *Report {
	labels := make([]diagnosis.Label, len(log.Labels))
	for i, l := range log.Labels {
		labels[i] = diagnosis.Label(l)
	}
	d := &diagnosis.Diagnosis{Result: diagnosis.Result{TopLabel: diagnosis.Label(log.TopLabel)}}
	report := &Report{
		RequestID:         log.RequestID,
		UserID:            log.UserID,
		TopLabel:          diagnosis.Label(log.TopLabel),
		DisplayLabel:      d.DisplayLabel(),
		ConfidencePercent: log.Confidence,
		Labels:            labels,
		Distribution:      log.Distribution,
		Source:            inference.Source(log.Source),
		Provider:          log.Provider,
		SHA1Hash:          log.SHA1Hash,
		LatencyMs:         log.LatencyMs,
		CreatedAt:         log.CreatedAt,
	}
	if rec, err := uc.analyzer.Recommendation(report.TopLabel); err == nil {
		report.Recommendation = rec
	} else {
		uc.logger.Warn("stored label has no recommendation", zap.String("label", log.TopLabel), zap.String("request_id", log.RequestID))
	}
	return report
}
