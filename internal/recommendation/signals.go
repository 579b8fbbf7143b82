package recommendation

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/obimo/obimo-backend/internal/common/logger"
)

// SignalLogger is the append-only sink for pipeline telemetry. It never
// returns an error: a failed insert is logged and counted, nothing more.
type SignalLogger struct {
	repo   Repository
	logger *logger.Logger
}

func NewSignalLogger(repo Repository, log *logger.Logger) *SignalLogger {
	return &SignalLogger{repo: repo, logger: log}
}

func (s *SignalLogger) Log(ctx context.Context, signalType string, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode training signal", "signal_type", signalType, "error", err)
		recordSignalFailure()
		return
	}

	signal := &TrainingSignal{SignalType: signalType, Data: data}
	if err := s.repo.InsertTrainingSignal(ctx, signal); err != nil {
		s.logger.Warn("failed to store training signal", "signal_type", signalType, "error", err)
		recordSignalFailure()
	}
}
