// Package telegram bridges the chat session to a single-user Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/personachat/internal/logger"
)

// commands is the menu published to Telegram on start.
var commands = []models.BotCommand{
	{Command: "start", Description: "Show the welcome message"},
	{Command: "help", Description: "List the available commands"},
	{Command: "image", Description: "Generate an image: /image [@bot ...] <prompt>"},
	{Command: "video", Description: "Generate a video: /video [@bot ...] <prompt>"},
	{Command: "export", Description: "Download the chat history as Markdown"},
}

// Bridge owns the Telegram bot instance.
type Bridge struct {
	bot *bot.Bot
	log *slog.Logger
}

// NewBridge creates the bot, installs the logging middleware and the chat
// handler, and registers every command. Extra options are appended last.
func NewBridge(deps HandlerDeps, opts ...bot.Option) (*Bridge, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	botOpts := append([]bot.Option{
		bot.WithMiddlewares(logger.TelegramMiddleware(deps.Logger)),
		bot.WithDefaultHandler(applyMiddleware(NewChatHandler(deps), []bot.Middleware{AdminOnly(deps)})),
	}, opts...)

	b, err := NewTelegramBot(deps.Config.Token, deps.Logger, botOpts...)
	if err != nil {
		return nil, err
	}
	if err := RegisterHandlers(b, deps.Logger, RegisterAllCommands(deps)); err != nil {
		return nil, err
	}
	return &Bridge{bot: b, log: deps.Logger.With("component", "telegram_bridge")}, nil
}

// Run publishes the command menu and polls for updates until ctx is done.
func (br *Bridge) Run(ctx context.Context) error {
	if _, err := br.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: commands}); err != nil {
		br.log.WarnContext(ctx, "Failed to publish command menu", "error", err)
	}
	br.log.InfoContext(ctx, "Telegram bridge polling for updates")
	br.bot.Start(ctx)
	br.log.InfoContext(ctx, "Telegram bridge stopped")
	return nil
}

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created", "token_prefix", tokenPrefix(token))
	return b, nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return "..."
	}
	return token[:8] + "..."
}

// applyMiddleware wraps a handler function with a slice of middleware.
// The first middleware in the slice is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers command handlers with the bot, applying each
// handler's middleware.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, registeredHandlers map[string]RegisteredHandler) error {
	if b == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	if len(registeredHandlers) == 0 {
		log.Warn("No handlers provided for registration.")
		return nil
	}

	for name, regHandler := range registeredHandlers {
		if regHandler.Handler == nil {
			log.Warn("Skipping registration for nil handler", "command", name)
			continue
		}
		finalHandler := applyMiddleware(regHandler.Handler, regHandler.Middleware)
		b.RegisterHandler(regHandler.HandlerType, regHandler.Pattern, regHandler.MatchType, finalHandler)
		log.Debug("Registered handler", "command", name, "match_type", regHandler.MatchType, "middleware_count", len(regHandler.Middleware))
	}

	log.Info("Registered Telegram handlers", "count", len(registeredHandlers))
	return nil
}
