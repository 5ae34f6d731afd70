package notification

import (
	"context"
	"log/slog"

	"github.com/tendant/signup-gate/pkg/auth"
)

// LogSender is a development sender that only logs. The code is written at
// debug level so it can be read from a local console.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a logging sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendCode(ctx context.Context, phone, code string) error {
	s.logger.Info("verification code dispatched to log", "phone", auth.MaskPhone(phone))
	s.logger.Debug("verification code", "phone", auth.MaskPhone(phone), "code", code)
	return nil
}
