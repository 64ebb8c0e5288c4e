package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pHequals7/humanlink/pkg/bus"
	"github.com/pHequals7/humanlink/pkg/history"
)

const testChatID int64 = 12345

type fakeReply struct {
	ChatID  int64
	ReplyTo int
	Text    string
}

// fakeChannel records sends and replies and hands out sequential message IDs.
type fakeChannel struct {
	mu      sync.Mutex
	nextID  int
	sendErr error
	sent    []string
	replies []fakeReply
}

func (f *fakeChannel) Send(_ context.Context, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, text)
	return f.nextID, nil
}

func (f *fakeChannel) Reply(_ context.Context, chatID int64, replyTo int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, fakeReply{ChatID: chatID, ReplyTo: replyTo, Text: text})
	return nil
}

func (f *fakeChannel) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeChannel) lastReply() (fakeReply, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return fakeReply{}, false
	}
	return f.replies[len(f.replies)-1], true
}

func newTestEngine() (*Engine, *fakeChannel, *history.Store) {
	ch := &fakeChannel{}
	hist := history.NewStore(history.DefaultMaxSize)
	return NewEngine(ch, hist, testChatID), ch, hist
}

// waitPending polls until the engine holds want pending requests.
func waitPending(t *testing.T, e *Engine, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.PendingCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("pending count = %d, want %d", e.PendingCount(), want)
}

func TestAskWithoutWait(t *testing.T) {
	e, ch, hist := newTestEngine()

	res := e.Ask(context.Background(), AskRequest{Text: "Hello", WaitForResponse: false})

	if !res.Sent {
		t.Fatalf("sent = false, want true (err=%q)", res.Err)
	}
	if res.MessageID != 1 {
		t.Fatalf("message_id = %d, want 1", res.MessageID)
	}
	if got := len(ch.sentMessages()); got != 1 {
		t.Fatalf("channel sends = %d, want 1", got)
	}
	msgs, total := hist.Recent(10)
	if total != 1 {
		t.Fatalf("history total = %d, want 1", total)
	}
	if msgs[0].Text != "Hello" || msgs[0].Direction != history.DirectionOutbound {
		t.Fatalf("history entry = %+v, want outbound Hello", msgs[0])
	}
	if e.PendingCount() != 0 {
		t.Fatalf("pending count = %d, want 0", e.PendingCount())
	}
}

func TestAskLogOrderMatchesCallOrder(t *testing.T) {
	e, _, hist := newTestEngine()

	for i := 0; i < 5; i++ {
		res := e.Ask(context.Background(), AskRequest{Text: fmt.Sprintf("msg %d", i)})
		if !res.Sent {
			t.Fatalf("ask %d failed: %s", i, res.Err)
		}
	}

	msgs, total := hist.Recent(0)
	if total != 5 {
		t.Fatalf("history total = %d, want 5", total)
	}
	for i, m := range msgs {
		if want := fmt.Sprintf("msg %d", i); m.Text != want {
			t.Fatalf("history[%d] = %q, want %q", i, m.Text, want)
		}
	}
}

func TestAskSanitizeEscapesWireButNotLog(t *testing.T) {
	e, ch, hist := newTestEngine()

	res := e.Ask(context.Background(), AskRequest{Text: "a_b*c", Sanitize: true})
	if !res.Sent {
		t.Fatalf("ask failed: %s", res.Err)
	}

	sent := ch.sentMessages()
	if sent[0] != `a\_b\*c` {
		t.Fatalf("wire text = %q, want escaped", sent[0])
	}
	msgs, _ := hist.Recent(1)
	if msgs[0].Text != "a_b*c" {
		t.Fatalf("log text = %q, want original", msgs[0].Text)
	}
}

func TestAskSendFailure(t *testing.T) {
	e, ch, hist := newTestEngine()
	ch.sendErr = errors.New("network down")

	res := e.Ask(context.Background(), AskRequest{Text: "Hello", WaitForResponse: true, Timeout: time.Second})

	if res.Sent {
		t.Fatal("sent = true, want false")
	}
	if res.Err != "network down" {
		t.Fatalf("err = %q, want %q", res.Err, "network down")
	}
	if hist.Len() != 0 {
		t.Fatalf("history len = %d, want 0 after failed send", hist.Len())
	}
	if e.PendingCount() != 0 {
		t.Fatalf("pending count = %d, want 0 after failed send", e.PendingCount())
	}
}

func TestAskInputValidation(t *testing.T) {
	e, _, _ := newTestEngine()

	if res := e.Ask(context.Background(), AskRequest{Text: "  "}); res.Err == "" {
		t.Fatal("expected error for empty message")
	}
	if res := e.Ask(context.Background(), AskRequest{Text: "hi", WaitForResponse: true, Timeout: 0}); res.Err == "" {
		t.Fatal("expected error for non-positive timeout")
	}
}

func TestAskRoundTrip(t *testing.T) {
	e, ch, hist := newTestEngine()

	results := make(chan AskResult, 1)
	go func() {
		results <- e.Ask(context.Background(), AskRequest{
			Text:            "Hello human",
			WaitForResponse: true,
			Timeout:         5 * time.Second,
		})
	}()

	waitPending(t, e, 1)

	e.HandleInbound(context.Background(), bus.InboundMessage{
		ChatID:    testChatID,
		MessageID: 456,
		Text:      "Hello LLM",
	})

	res := <-results
	if !res.Sent || !res.Answered {
		t.Fatalf("result = %+v, want sent and answered", res)
	}
	if res.Response != "Hello LLM" {
		t.Fatalf("response = %q, want %q", res.Response, "Hello LLM")
	}
	if e.PendingCount() != 0 {
		t.Fatalf("pending count = %d, want 0 after resolution", e.PendingCount())
	}

	msgs, total := hist.Recent(10)
	if total != 2 {
		t.Fatalf("history total = %d, want 2", total)
	}
	if msgs[0].Direction != history.DirectionOutbound || msgs[1].Direction != history.DirectionInbound {
		t.Fatalf("history directions = %v/%v, want outbound then inbound", msgs[0].Direction, msgs[1].Direction)
	}

	reply, ok := ch.lastReply()
	if !ok || reply.Text != ackReceived {
		t.Fatalf("ack = %+v, want %q", reply, ackReceived)
	}
}

func TestAskTimeout(t *testing.T) {
	e, _, _ := newTestEngine()

	timeout := 50 * time.Millisecond
	start := time.Now()
	res := e.Ask(context.Background(), AskRequest{
		Text:            "anyone there?",
		WaitForResponse: true,
		Timeout:         timeout,
	})
	elapsed := time.Since(start)

	if !res.Sent || !res.TimedOut {
		t.Fatalf("result = %+v, want sent and timed out", res)
	}
	if res.Answered {
		t.Fatal("answered = true, want false on timeout")
	}
	if elapsed < timeout {
		t.Fatalf("returned after %v, before the %v timeout", elapsed, timeout)
	}
	if elapsed > timeout+time.Second {
		t.Fatalf("returned after %v, far beyond the %v timeout", elapsed, timeout)
	}
	if e.PendingCount() != 0 {
		t.Fatalf("pending count = %d, want 0 after timeout", e.PendingCount())
	}
}

func TestAskCallerCancellation(t *testing.T) {
	e, _, _ := newTestEngine()

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan AskResult, 1)
	go func() {
		results <- e.Ask(ctx, AskRequest{Text: "hi", WaitForResponse: true, Timeout: 5 * time.Second})
	}()

	waitPending(t, e, 1)
	cancel()

	res := <-results
	if !res.Cancelled {
		t.Fatalf("result = %+v, want cancelled", res)
	}
	if e.PendingCount() != 0 {
		t.Fatalf("pending count = %d, want 0 after caller cancellation", e.PendingCount())
	}
}

func TestConcurrentAsksLatestWins(t *testing.T) {
	e, _, _ := newTestEngine()

	first := make(chan AskResult, 1)
	go func() {
		first <- e.Ask(context.Background(), AskRequest{Text: "first", WaitForResponse: true, Timeout: 5 * time.Second})
	}()
	waitPending(t, e, 1)

	second := make(chan AskResult, 1)
	go func() {
		second <- e.Ask(context.Background(), AskRequest{Text: "second", WaitForResponse: true, Timeout: 5 * time.Second})
	}()
	waitPending(t, e, 2)

	e.HandleInbound(context.Background(), bus.InboundMessage{
		ChatID: testChatID,
		Text:   "answer",
	})

	res := <-second
	if !res.Answered || res.Response != "answer" {
		t.Fatalf("second ask result = %+v, want answered with %q", res, "answer")
	}

	// The earlier ask must still be suspended.
	select {
	case res := <-first:
		t.Fatalf("first ask returned %+v, want still waiting", res)
	case <-time.After(100 * time.Millisecond):
	}
	if e.PendingCount() != 1 {
		t.Fatalf("pending count = %d, want 1", e.PendingCount())
	}

	e.Shutdown()
	<-first
}

func TestShutdownCancelsAllWaiters(t *testing.T) {
	e, _, _ := newTestEngine()

	results := make(chan AskResult, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- e.Ask(context.Background(), AskRequest{Text: "q", WaitForResponse: true, Timeout: time.Minute})
		}()
	}
	waitPending(t, e, 2)

	e.Shutdown()

	for i := 0; i < 2; i++ {
		select {
		case res := <-results:
			if !res.Cancelled {
				t.Fatalf("result = %+v, want cancelled", res)
			}
			if res.Answered || res.TimedOut {
				t.Fatalf("result = %+v, want pure cancellation", res)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter did not return after shutdown")
		}
	}
	if e.PendingCount() != 0 {
		t.Fatalf("pending count = %d, want 0 after shutdown", e.PendingCount())
	}

	// Idempotence: a second shutdown is a no-op.
	e.Shutdown()

	// Asks after shutdown return the cancellation shape immediately.
	res := e.Ask(context.Background(), AskRequest{Text: "late", WaitForResponse: true, Timeout: time.Minute})
	if !res.Cancelled || res.Sent {
		t.Fatalf("post-shutdown ask = %+v, want unsent cancellation", res)
	}
}

func TestClearHistoryLeavesPendingAlone(t *testing.T) {
	e, _, hist := newTestEngine()

	done := make(chan AskResult, 1)
	go func() {
		done <- e.Ask(context.Background(), AskRequest{Text: "q", WaitForResponse: true, Timeout: time.Minute})
	}()
	waitPending(t, e, 1)

	e.ClearHistory()
	e.ClearHistory()

	if hist.Len() != 0 {
		t.Fatalf("history len = %d, want 0", hist.Len())
	}
	if e.PendingCount() != 1 {
		t.Fatalf("pending count = %d, want 1 (clear must not touch registry)", e.PendingCount())
	}

	e.Shutdown()
	<-done
}
