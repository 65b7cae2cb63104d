package usecase

import "context"

// MetricsSummary represents aggregated diagnosis insights.
type MetricsSummary struct {
	TotalDiagnoses           int64            `json:"total_diagnoses"`
	DemoDiagnoses            int64            `json:"demo_diagnoses"`
	DemoRate                 float64          `json:"demo_rate"`
	AverageConfidencePercent float64          `json:"average_confidence_percent"`
	AverageLatencyMs         float64          `json:"average_latency_ms"`
	ByLabel                  map[string]int64 `json:"by_label"`
	Mode                     string           `json:"mode"`
}

// GetMetricsSummary aggregates diagnosis metrics from persisted logs.
func (uc *DiagnosisUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalDiagnoses:           aggregation.TotalCount,
		DemoDiagnoses:            aggregation.DemoCount,
		AverageConfidencePercent: aggregation.AverageConfidence,
		AverageLatencyMs:         aggregation.AverageLatencyMs,
		ByLabel:                  make(map[string]int64, len(aggregation.LabelCounts)),
		Mode:                     string(uc.predictor.Mode()),
	}
	for _, l := range uc.Labels() {
		summary.ByLabel[string(l)] = 0
	}
	for _, c := range aggregation.LabelCounts {
		summary.ByLabel[c.Label] = c.Count
	}

	if aggregation.TotalCount > 0 {
		summary.DemoRate = float64(aggregation.DemoCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
