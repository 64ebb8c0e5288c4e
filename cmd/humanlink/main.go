// humanlink bridges an LLM (MCP client over stdio) with a human reachable
// over Telegram: the model asks, the human answers, the model resumes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pHequals7/humanlink/pkg/bridge"
	"github.com/pHequals7/humanlink/pkg/channels"
	"github.com/pHequals7/humanlink/pkg/config"
	"github.com/pHequals7/humanlink/pkg/history"
	"github.com/pHequals7/humanlink/pkg/logger"
	"github.com/pHequals7/humanlink/pkg/tools"
)

var version = "dev"

func main() {
	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("humanlink", flag.ExitOnError)
	configPath := fs.String("config", "~/.humanlink/config.json", "path to config file")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Parse(args)

	if *showVersion {
		fmt.Println("humanlink " + version)
		return
	}

	switch command {
	case "serve":
		runServe(*configPath)
	case "get-chat-id":
		runGetChatID(*configPath)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		fmt.Fprintln(os.Stderr, "usage: humanlink [serve|get-chat-id] [flags]")
		os.Exit(1)
	}
}

func runServe(configPath string) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load config: " + err.Error())
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		logger.Error("Configuration validation failed:")
		for _, e := range errs {
			logger.Error("  - " + e)
		}
		os.Exit(1)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.FileEnabled {
		if err := logger.EnableFileLogging(cfg.Logging.FilePath); err != nil {
			logger.Warn("Failed to enable file logging: " + err.Error())
		}
	}

	logger.InfoCF("main", "Starting humanlink", map[string]interface{}{
		"version":     version,
		"server_name": cfg.ServerName,
		"chat_id":     cfg.Telegram.ChatID,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	channel, err := channels.NewTelegramChannel(cfg.Telegram)
	if err != nil {
		logger.Fatal("Failed to create telegram channel: " + err.Error())
	}

	hist := history.NewStore(cfg.Bridge.MaxHistorySize)
	engine := bridge.NewEngine(channel, hist, cfg.Telegram.ChatID)

	if err := channel.Start(ctx, engine.HandleInbound); err != nil {
		logger.Fatal("Failed to start telegram channel: " + err.Error())
	}

	svc := tools.NewService(engine, time.Duration(cfg.Bridge.DefaultTimeoutSeconds)*time.Second)
	server := tools.NewServer(svc, cfg.ServerName, version)

	logger.InfoC("main", "Running MCP server on stdio")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.ErrorC("main", "MCP server error: "+err.Error())
	}

	logger.InfoC("main", "Initiating graceful shutdown...")
	engine.Shutdown()
	channel.Stop()
	logger.InfoC("main", "Graceful shutdown complete")
}

func runGetChatID(configPath string) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}
	if cfg.Telegram.Token == "" {
		fmt.Fprintln(os.Stderr, "Error: telegram token not configured")
		fmt.Fprintln(os.Stderr, "Set HUMANLINK_TELEGRAM_TOKEN or the telegram.token config key")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := channels.PrintChatIDs(ctx, cfg.Telegram.Token, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
