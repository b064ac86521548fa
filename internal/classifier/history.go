package classifier

import (
	"context"
	"errors"

	"github.com/Brownie44l1/fer-classifier/internal/emotion"
	"github.com/Brownie44l1/fer-classifier/internal/repository"
)

// ErrHistoryDisabled is returned by history queries when no repository is configured.
var ErrHistoryDisabled = errors.New("classification history is disabled")

// Repository defines the persistence operations needed by the service.
type Repository interface {
	SaveLog(ctx context.Context, log *repository.ClassificationLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.ClassificationLog, error)
	CountByLabel(ctx context.Context) ([]repository.LabelCount, error)
	AverageLatency(ctx context.Context) (float64, error)
}

type nopRepository struct{}

func (nopRepository) SaveLog(context.Context, *repository.ClassificationLog) error { return nil }

func (nopRepository) FindByRequestID(context.Context, string) (*repository.ClassificationLog, error) {
	return nil, ErrHistoryDisabled
}

func (nopRepository) CountByLabel(context.Context) ([]repository.LabelCount, error) {
	return nil, ErrHistoryDisabled
}

func (nopRepository) AverageLatency(context.Context) (float64, error) {
	return 0, ErrHistoryDisabled
}

// Summary aggregates persisted classification attempts.
type Summary struct {
	TotalRequests    int64            `json:"total_requests"`
	PerLabel         map[string]int64 `json:"per_label"`
	RecognizedRate   float64          `json:"recognized_rate"`
	NoneRate         float64          `json:"none_rate"`
	ErrorRate        float64          `json:"error_rate"`
	AverageLatencyMs float64          `json:"average_latency_ms"`
}

func (s *Service) GetResult(ctx context.Context, requestID string) (*repository.ClassificationLog, error) {
	return s.repo.FindByRequestID(ctx, requestID)
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	counts, err := s.repo.CountByLabel(ctx)
	if err != nil {
		return nil, err
	}
	latency, err := s.repo.AverageLatency(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		PerLabel:         make(map[string]int64, len(emotion.All)),
		AverageLatencyMs: latency,
	}
	var recognized, none, failed int64
	for _, c := range counts {
		summary.PerLabel[c.Label] = c.Count
		summary.TotalRequests += c.Count

		l, err := emotion.ParseLabel(c.Label)
		switch {
		case err != nil:
		case l == emotion.None:
			none += c.Count
		case l == emotion.Error:
			failed += c.Count
		default:
			recognized += c.Count
		}
	}

	if summary.TotalRequests > 0 {
		total := float64(summary.TotalRequests)
		summary.RecognizedRate = float64(recognized) / total
		summary.NoneRate = float64(none) / total
		summary.ErrorRate = float64(failed) / total
	}
	return summary, nil
}
