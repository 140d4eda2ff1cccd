package notification

import (
	"context"
	"log/slog"
)

// LogGateway writes notices to the log instead of a broker. It is the
// fallback when no Kafka brokers are configured. Verification codes are
// never logged.
type LogGateway struct {
	logger *slog.Logger
}

func NewLogGateway(logger *slog.Logger) *LogGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogGateway{logger: logger}
}

func (g *LogGateway) NotifyTransferCreated(ctx context.Context, n TransferCreated) error {
	g.logger.InfoContext(ctx, "transfer notice",
		"kind", KindTransferCreated,
		"transfer_code", n.TransferCode,
		"respondent_id", n.RespondentID,
		"animals", len(n.AnimalCUIs),
		"expires_at", n.ExpiresAt,
	)
	return nil
}

func (g *LogGateway) NotifyResetCode(ctx context.Context, n ResetCode) error {
	g.logger.InfoContext(ctx, "transfer notice",
		"kind", KindResetCode,
		"transfer_code", n.TransferCode,
		"respondent_id", n.RespondentID,
	)
	return nil
}
