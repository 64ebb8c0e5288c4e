package bridge

import (
	"context"
	"testing"

	"github.com/pHequals7/humanlink/pkg/bus"
)

func TestRouterUnauthorizedSender(t *testing.T) {
	e, ch, hist := newTestEngine()

	e.HandleInbound(context.Background(), bus.InboundMessage{
		ChatID:    99999,
		MessageID: 7,
		Text:      "let me in",
	})

	if hist.Len() != 0 {
		t.Fatalf("history len = %d, want 0 for unauthorized sender", hist.Len())
	}
	if e.PendingCount() != 0 {
		t.Fatalf("pending count = %d, want 0", e.PendingCount())
	}
	reply, ok := ch.lastReply()
	if !ok {
		t.Fatal("no rejection acknowledgment sent")
	}
	if reply.Text != ackUnauthorized {
		t.Fatalf("ack = %q, want %q", reply.Text, ackUnauthorized)
	}
	if reply.ChatID != 99999 || reply.ReplyTo != 7 {
		t.Fatalf("ack addressed to %d/%d, want the offending chat 99999/7", reply.ChatID, reply.ReplyTo)
	}
}

func TestRouterUnsolicitedMessage(t *testing.T) {
	e, ch, hist := newTestEngine()

	e.HandleInbound(context.Background(), bus.InboundMessage{
		ChatID:    testChatID,
		MessageID: 789,
		Text:      "Unsolicited message",
	})

	msgs, total := hist.Recent(10)
	if total != 1 {
		t.Fatalf("history total = %d, want 1", total)
	}
	if msgs[0].Text != "Unsolicited message" {
		t.Fatalf("history entry = %q, want the inbound text", msgs[0].Text)
	}
	reply, ok := ch.lastReply()
	if !ok || reply.Text != ackNoted {
		t.Fatalf("ack = %+v, want %q", reply, ackNoted)
	}
}

func TestRouterEveryInboundGetsOneAck(t *testing.T) {
	e, ch, _ := newTestEngine()

	e.HandleInbound(context.Background(), bus.InboundMessage{ChatID: testChatID, Text: "one"})
	e.HandleInbound(context.Background(), bus.InboundMessage{ChatID: 99999, Text: "two"})
	e.HandleInbound(context.Background(), bus.InboundMessage{ChatID: testChatID, Text: "three"})

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.replies) != 3 {
		t.Fatalf("acks = %d, want 3 (one per inbound message)", len(ch.replies))
	}
}
