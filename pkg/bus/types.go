// Package bus defines the message types exchanged between the channel
// adapter and the inbound router.
package bus

import "context"

// InboundMessage is one text message received from the chat channel.
type InboundMessage struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id"`
	SenderID  int64  `json:"sender_id"`
	Username  string `json:"username,omitempty"`
	Text      string `json:"text"`
}

// InboundHandler consumes inbound messages one at a time, in arrival order.
type InboundHandler func(ctx context.Context, msg InboundMessage)
