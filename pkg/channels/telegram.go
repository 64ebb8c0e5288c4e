// Package channels implements the Telegram transport the bridge engine
// sends through and receives from.
package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/pHequals7/humanlink/pkg/bus"
	"github.com/pHequals7/humanlink/pkg/config"
	"github.com/pHequals7/humanlink/pkg/logger"
	"github.com/pHequals7/humanlink/pkg/utils"
)

const telegramMaxLen = 4096

type TelegramChannel struct {
	bot     *telego.Bot
	config  config.TelegramConfig
	running atomic.Bool
}

func NewTelegramChannel(cfg config.TelegramConfig) (*TelegramChannel, error) {
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, parseErr := url.Parse(cfg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, parseErr)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramChannel{
		bot:    bot,
		config: cfg,
	}, nil
}

// Start begins long polling and feeds every text update to handler, one at
// a time, in arrival order. The polling loop stops when ctx is cancelled.
func (c *TelegramChannel) Start(ctx context.Context, handler bus.InboundHandler) error {
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)...")

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	c.running.Store(true)
	logger.InfoCF("telegram", "Telegram bot connected", map[string]interface{}{
		"username": c.bot.Username(),
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					logger.InfoC("telegram", "Updates channel closed")
					return
				}
				if update.Message != nil {
					c.handleMessage(ctx, update.Message, handler)
				}
			}
		}
	}()

	return nil
}

func (c *TelegramChannel) Stop() {
	logger.InfoC("telegram", "Stopping Telegram bot...")
	c.running.Store(false)
}

// Send delivers text to the configured authorized chat and returns the
// Telegram message ID. Long messages are split at the 4096-char API limit;
// the ID of the first chunk identifies the whole send. Messages go out as
// Markdown with a plain-text retry when Telegram rejects the markup.
func (c *TelegramChannel) Send(ctx context.Context, text string) (int, error) {
	if !c.running.Load() {
		return 0, fmt.Errorf("telegram bot not running")
	}

	chunks := splitLargeMessage(text, telegramMaxLen)

	firstID := 0
	for i, chunk := range chunks {
		content := chunk
		if len(chunks) > 1 {
			content = fmt.Sprintf("[%d/%d]\n%s", i+1, len(chunks), chunk)
		}

		msg := tu.Message(tu.ID(c.config.ChatID), content)
		msg.ParseMode = telego.ModeMarkdown

		sent, err := c.bot.SendMessage(ctx, msg)
		if err != nil {
			logger.WarnCF("telegram", "Markdown parse failed, falling back to plain text", map[string]interface{}{
				"error": err.Error(),
			})
			msg.ParseMode = ""
			sent, err = c.bot.SendMessage(ctx, msg)
			if err != nil {
				return 0, fmt.Errorf("failed to send message: %w", err)
			}
		}

		if i == 0 {
			firstID = sent.MessageID
		}
	}

	return firstID, nil
}

// Reply sends an acknowledgment to chatID, linked to the message being
// acknowledged. Unlike Send it may target an unauthorized chat: rejection
// notices go to the sender who was rejected.
func (c *TelegramChannel) Reply(ctx context.Context, chatID int64, replyTo int, text string) error {
	if !c.running.Load() {
		return fmt.Errorf("telegram bot not running")
	}

	msg := tu.Message(tu.ID(chatID), text)
	if replyTo != 0 {
		msg.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo}
	}

	if _, err := c.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

func (c *TelegramChannel) handleMessage(ctx context.Context, message *telego.Message, handler bus.InboundHandler) {
	user := message.From
	if user == nil {
		return
	}

	text := message.Text
	if text == "" {
		text = message.Caption
	}
	if text == "" {
		logger.DebugCF("telegram", "Ignoring non-text message", map[string]interface{}{
			"chat_id": message.Chat.ID,
		})
		return
	}

	logger.DebugCF("telegram", "Received message", map[string]interface{}{
		"chat_id": message.Chat.ID,
		"user_id": user.ID,
		"preview": utils.Truncate(text, 50),
	})

	handler(ctx, bus.InboundMessage{
		ChatID:    message.Chat.ID,
		MessageID: message.MessageID,
		SenderID:  user.ID,
		Username:  user.Username,
		Text:      text,
	})
}

// splitLargeMessage splits a message into chunks if it exceeds Telegram's
// limit, preferring to break at a newline in the last third of a chunk.
func splitLargeMessage(content string, maxLen int) []string {
	if len(content) <= maxLen {
		return []string{content}
	}

	var chunks []string
	remaining := content

	for len(remaining) > 0 {
		chunkSize := maxLen
		if len(remaining) < chunkSize {
			chunkSize = len(remaining)
		}

		if chunkSize == maxLen {
			lastNewline := strings.LastIndex(remaining[:chunkSize], "\n")
			if lastNewline > maxLen*2/3 {
				chunkSize = lastNewline + 1
			}
		}

		chunks = append(chunks, remaining[:chunkSize])
		remaining = remaining[chunkSize:]
	}

	return chunks
}
