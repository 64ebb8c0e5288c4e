package bridge

import (
	"context"

	"github.com/pHequals7/humanlink/pkg/bus"
	"github.com/pHequals7/humanlink/pkg/history"
	"github.com/pHequals7/humanlink/pkg/logger"
	"github.com/pHequals7/humanlink/pkg/utils"
)

// Acknowledgment texts sent back to the human. Every inbound message gets
// exactly one of these.
const (
	ackUnauthorized = "❌ Unauthorized access"
	ackReceived     = "✅ Response received and forwarded to LLM"
	ackNoted        = "📝 Message noted. Waiting for LLM to request next interaction."
)

// HandleInbound routes one message from the chat channel: authorize the
// sender, record the message, and either wake the most recently created
// waiting Ask call or note the message as unsolicited.
func (e *Engine) HandleInbound(ctx context.Context, msg bus.InboundMessage) {
	if msg.ChatID != e.authorizedChat {
		logger.WarnCF("bridge", "Unauthorized access attempt", map[string]interface{}{
			"chat_id":   msg.ChatID,
			"sender_id": msg.SenderID,
		})
		e.ack(ctx, msg, ackUnauthorized)
		return
	}

	e.log.Append(history.Message{
		Direction: history.DirectionInbound,
		Text:      msg.Text,
		MessageID: msg.MessageID,
	})
	logger.InfoCF("bridge", "Received message from human", map[string]interface{}{
		"preview": utils.Truncate(msg.Text, previewLen),
	})

	if e.reg.resolveLatest(msg.Text) {
		e.ack(ctx, msg, ackReceived)
		return
	}

	// No question outstanding (or the reply lost a race with a timeout):
	// the message stays in the log for the model to discover later.
	e.ack(ctx, msg, ackNoted)
}

func (e *Engine) ack(ctx context.Context, msg bus.InboundMessage, text string) {
	if err := e.channel.Reply(ctx, msg.ChatID, msg.MessageID, text); err != nil {
		logger.WarnCF("bridge", "Failed to send acknowledgment", map[string]interface{}{
			"chat_id": msg.ChatID,
			"error":   err.Error(),
		})
	}
}
