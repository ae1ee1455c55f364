package chat

import "context"

// Messenger is the boundary to the chat platform. Rendering, layout, and
// transport details live behind it; this service only needs delivery.
type Messenger interface {
	SendDirect(ctx context.Context, memberID, body string) error
	SendChannel(ctx context.Context, channelID, body string) error
}
