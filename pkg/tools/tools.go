// Package tools exposes the bridge engine's operations as MCP tools over
// the official go-sdk. The wire contract (tool names, argument names,
// result fields) is what LLM clients depend on; treat it as frozen.
package tools

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pHequals7/humanlink/pkg/bridge"
	"github.com/pHequals7/humanlink/pkg/logger"
)

const defaultHistoryLimit = 10

// Service binds the MCP tool handlers to one engine instance.
type Service struct {
	engine         *bridge.Engine
	defaultTimeout time.Duration
}

func NewService(engine *bridge.Engine, defaultTimeout time.Duration) *Service {
	return &Service{
		engine:         engine,
		defaultTimeout: defaultTimeout,
	}
}

// NewServer builds the MCP server with all three tools registered. The
// caller runs it over a transport of its choosing (stdio in production).
func NewServer(svc *Service, name, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "send_message_to_human",
		Description: "Send a message to the human via Telegram and optionally wait for a response.",
		InputSchema: sendMessageSchema(),
	}, svc.handleSendMessage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_conversation_history",
		Description: "Get recent conversation history between LLM and human.",
		InputSchema: historySchema(),
	}, svc.handleGetHistory)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_conversation_history",
		Description: "Clear the conversation history.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, svc.handleClearHistory)

	return server
}

type SendMessageInput struct {
	Message             string `json:"message"`
	WaitForResponse     *bool  `json:"wait_for_response,omitempty"`
	TimeoutSeconds      *int   `json:"timeout_seconds,omitempty"`
	EscapeMarkdownChars *bool  `json:"escape_markdown_chars,omitempty"`
}

type SendMessageOutput struct {
	Sent      bool    `json:"sent"`
	Response  *string `json:"response"`
	MessageID *string `json:"message_id"`
	Error     string  `json:"error,omitempty"`
	Timestamp string  `json:"timestamp"`
}

type HistoryInput struct {
	Limit *int `json:"limit,omitempty"`
}

type HistoryEntry struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	MessageID int    `json:"message_id,omitempty"`
}

type HistoryOutput struct {
	History       []HistoryEntry `json:"history"`
	TotalMessages int            `json:"total_messages"`
	Timestamp     string         `json:"timestamp"`
}

type ClearInput struct{}

type ClearOutput struct {
	Cleared   bool   `json:"cleared"`
	Timestamp string `json:"timestamp"`
}

func (s *Service) handleSendMessage(ctx context.Context, _ *mcp.CallToolRequest, in SendMessageInput) (*mcp.CallToolResult, SendMessageOutput, error) {
	requestID := uuid.New().String()

	wait := true
	if in.WaitForResponse != nil {
		wait = *in.WaitForResponse
	}
	timeout := s.defaultTimeout
	if in.TimeoutSeconds != nil {
		timeout = time.Duration(*in.TimeoutSeconds) * time.Second
	}
	sanitize := true
	if in.EscapeMarkdownChars != nil {
		sanitize = *in.EscapeMarkdownChars
	}

	logger.DebugCF("tools", "send_message_to_human", map[string]interface{}{
		"request_id": requestID,
		"wait":       wait,
		"timeout":    timeout.String(),
	})

	res := s.engine.Ask(ctx, bridge.AskRequest{
		Text:            in.Message,
		WaitForResponse: wait,
		Timeout:         timeout,
		Sanitize:        sanitize,
	})

	out := SendMessageOutput{
		Sent:      res.Sent,
		Timestamp: timestamp(),
	}
	if res.Sent {
		id := strconv.Itoa(res.MessageID)
		out.MessageID = &id
	}
	if res.Answered {
		out.Response = &res.Response
	}
	switch {
	case res.Err != "":
		out.Error = res.Err
	case res.TimedOut:
		out.Error = "Response timeout"
	case res.Cancelled:
		out.Error = "Request cancelled"
	}

	logger.DebugCF("tools", "send_message_to_human complete", map[string]interface{}{
		"request_id": requestID,
		"sent":       out.Sent,
		"answered":   res.Answered,
	})

	return nil, out, nil
}

func (s *Service) handleGetHistory(_ context.Context, _ *mcp.CallToolRequest, in HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
	limit := defaultHistoryLimit
	if in.Limit != nil {
		limit = *in.Limit
	}

	messages, total := s.engine.History(limit)

	out := HistoryOutput{
		History:       make([]HistoryEntry, 0, len(messages)),
		TotalMessages: total,
		Timestamp:     timestamp(),
	}
	for _, m := range messages {
		out.History = append(out.History, HistoryEntry{
			Timestamp: m.Timestamp.Format(time.RFC3339),
			Type:      string(m.Direction),
			Message:   m.Text,
			MessageID: m.MessageID,
		})
	}

	return nil, out, nil
}

func (s *Service) handleClearHistory(_ context.Context, _ *mcp.CallToolRequest, _ ClearInput) (*mcp.CallToolResult, ClearOutput, error) {
	s.engine.ClearHistory()
	return nil, ClearOutput{Cleared: true, Timestamp: timestamp()}, nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func sendMessageSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"message": {
				Type:        "string",
				Description: "The message to send to the human",
			},
			"wait_for_response": {
				Type:        "boolean",
				Description: "Whether to wait for a human response",
				Default:     json.RawMessage("true"),
			},
			"timeout_seconds": {
				Type:        "integer",
				Description: "How long to wait for a response, in seconds",
				Default:     json.RawMessage("300"),
			},
			"escape_markdown_chars": {
				Type:        "boolean",
				Description: "Whether to escape markdown special characters in the message",
				Default:     json.RawMessage("true"),
			},
		},
		Required: []string{"message"},
	}
}

func historySchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"limit": {
				Type:        "integer",
				Description: "Maximum number of recent messages to return; 0 or below returns all",
				Default:     json.RawMessage("10"),
			},
		},
	}
}
