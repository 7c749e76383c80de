package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const unauthorizedMessage = "Sorry, this bot is private."

// AdminOnly lets only the configured admin through. Anyone else gets a short
// refusal and the update goes no further.
func AdminOnly(deps HandlerDeps) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message == nil {
				return
			}
			if update.Message.From == nil || update.Message.From.ID != deps.Config.AdminID {
				chatID := update.Message.Chat.ID
				log := deps.Logger.With("middleware", "AdminOnly")
				var userID int64
				if update.Message.From != nil {
					userID = update.Message.From.ID
				}
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", chatID)

				if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: unauthorizedMessage}); err != nil {
					log.ErrorContext(ctx, "Failed to send unauthorized message", "error", err, "chat_id", chatID)
				}
				return
			}
			next(ctx, b, update)
		}
	}
}
