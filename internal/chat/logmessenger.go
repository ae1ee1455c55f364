package chat

import (
	"context"

	"go.uber.org/zap"
)

// LogMessenger is used when no webhook is configured: deliveries are logged
// instead of sent, so local runs stay functional.
type LogMessenger struct {
	logger *zap.Logger
}

// NewLogMessenger builds the messenger.
func NewLogMessenger(logger *zap.Logger) *LogMessenger {
	return &LogMessenger{logger: logger}
}

func (m *LogMessenger) SendDirect(ctx context.Context, memberID, body string) error {
	m.logger.Debug("direct message", zap.String("member_id", memberID), zap.String("body", body))
	return nil
}

func (m *LogMessenger) SendChannel(ctx context.Context, channelID, body string) error {
	m.logger.Debug("channel message", zap.String("channel_id", channelID), zap.String("body", body))
	return nil
}
