package channels

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mymmrac/telego"
)

// PrintChatIDs fetches pending updates for the bot and prints the chat ID
// of each, so an operator can discover the value for the chat_id config
// key. Run it after sending the bot a message.
func PrintChatIDs(ctx context.Context, token string, w io.Writer) error {
	bot, err := telego.NewBot(token)
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}

	fmt.Fprintln(w, "Getting updates from Telegram...")
	updates, err := bot.GetUpdates(ctx, &telego.GetUpdatesParams{})
	if err != nil {
		return fmt.Errorf("failed to get updates: %w", err)
	}

	printed := 0
	for _, update := range updates {
		if update.Message == nil {
			continue
		}
		chat := update.Message.Chat
		fmt.Fprintf(w, "Chat ID: %d\n", chat.ID)
		fmt.Fprintf(w, "Chat Type: %s\n", chat.Type)
		if chat.Username != "" {
			fmt.Fprintf(w, "Username: @%s\n", chat.Username)
		}
		if chat.FirstName != "" {
			fmt.Fprintf(w, "Name: %s\n", chat.FirstName)
		}
		fmt.Fprintln(w, strings.Repeat("-", 30))
		printed++
	}

	if printed == 0 {
		fmt.Fprintln(w, "No messages found. Send a message to your bot first!")
	}
	return nil
}
