// Package bridge implements the request/response correlation engine that
// turns a fire-and-forget chat message into an awaitable, timeout-bounded
// "ask the human" primitive. Many concurrent Ask callers may be suspended
// at once while a single inbound stream resolves them.
package bridge

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pHequals7/humanlink/pkg/history"
	"github.com/pHequals7/humanlink/pkg/logger"
	"github.com/pHequals7/humanlink/pkg/utils"
)

const previewLen = 50

// Channel is the outbound half of the chat transport the engine depends on.
// Send delivers text to the single authorized chat and returns the
// channel-assigned message ID. Reply sends an acknowledgment to an
// arbitrary chat, linked to the message being acknowledged.
type Channel interface {
	Send(ctx context.Context, text string) (int, error)
	Reply(ctx context.Context, chatID int64, replyTo int, text string) error
}

type AskRequest struct {
	Text            string
	WaitForResponse bool
	Timeout         time.Duration
	Sanitize        bool
}

// AskResult is the structured outcome of one Ask call. Exactly one of
// Answered, TimedOut or Cancelled is set when the caller waited; Err is set
// for delivery failures and input errors, in which case Sent reports
// whether the message left the process.
type AskResult struct {
	Sent      bool
	MessageID int
	Answered  bool
	Response  string
	TimedOut  bool
	Cancelled bool
	Err       string
}

// Engine owns the conversation log and the pending-request registry; no
// other component mutates them.
type Engine struct {
	channel        Channel
	log            *history.Store
	reg            *registry
	authorizedChat int64
	closed         atomic.Bool
}

func NewEngine(channel Channel, log *history.Store, authorizedChat int64) *Engine {
	return &Engine{
		channel:        channel,
		log:            log,
		reg:            newRegistry(),
		authorizedChat: authorizedChat,
	}
}

// Ask sends text to the human and, when requested, suspends the caller
// until a reply arrives, the timeout elapses, the engine shuts down, or the
// caller's own context is cancelled. The pending entry is removed on every
// exit path; the registry never outlives the suspension it tracks.
func (e *Engine) Ask(ctx context.Context, req AskRequest) AskResult {
	if strings.TrimSpace(req.Text) == "" {
		return AskResult{Err: "message must not be empty"}
	}
	if req.WaitForResponse && req.Timeout <= 0 {
		return AskResult{Err: "timeout must be positive when waiting for a response"}
	}
	if e.closed.Load() {
		return AskResult{Cancelled: true, Err: "engine is shut down"}
	}

	outgoing := req.Text
	if req.Sanitize {
		outgoing = utils.EscapeMarkdown(req.Text)
	}

	msgID, err := e.channel.Send(ctx, outgoing)
	if err != nil {
		logger.ErrorCF("bridge", "Failed to send message", map[string]interface{}{
			"error": err.Error(),
		})
		return AskResult{Err: err.Error()}
	}

	// The log stores the original text, not the escaped wire form.
	e.log.Append(history.Message{
		Direction: history.DirectionOutbound,
		Text:      req.Text,
		MessageID: msgID,
	})
	logger.InfoCF("bridge", "Sent message to human", map[string]interface{}{
		"message_id": msgID,
		"preview":    utils.Truncate(req.Text, previewLen),
	})

	if !req.WaitForResponse {
		return AskResult{Sent: true, MessageID: msgID}
	}

	id := correlationID(msgID)
	p, err := e.reg.insert(id)
	if err != nil {
		logger.ErrorCF("bridge", "Correlation ID collision", map[string]interface{}{
			"id": id,
		})
		return AskResult{Sent: true, MessageID: msgID, Err: err.Error()}
	}
	defer e.reg.remove(id)

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		if p.state == stateResolved {
			return AskResult{Sent: true, MessageID: msgID, Answered: true, Response: p.response}
		}
		return AskResult{Sent: true, MessageID: msgID, Cancelled: true}
	case <-timer.C:
		logger.WarnCF("bridge", "Timed out waiting for human response", map[string]interface{}{
			"id":      id,
			"timeout": req.Timeout.String(),
		})
		return AskResult{Sent: true, MessageID: msgID, TimedOut: true}
	case <-ctx.Done():
		return AskResult{Sent: true, MessageID: msgID, Cancelled: true, Err: ctx.Err().Error()}
	}
}

// History returns the most recent limit log entries (all of them when limit
// is zero or below) plus the total count.
func (e *Engine) History(limit int) ([]history.Message, int) {
	return e.log.Recent(limit)
}

func (e *Engine) ClearHistory() {
	e.log.Clear()
	logger.InfoC("bridge", "Conversation history cleared")
}

// PendingCount reports how many callers are currently suspended in Ask.
func (e *Engine) PendingCount() int {
	return e.reg.size()
}

// Shutdown force-wakes every waiting caller with a cancelled outcome.
// Idempotent; the second and later calls are no-ops.
func (e *Engine) Shutdown() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	n := e.reg.cancelAll()
	logger.InfoCF("bridge", "Engine shut down", map[string]interface{}{
		"cancelled": n,
	})
}
