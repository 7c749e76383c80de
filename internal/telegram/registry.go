package telegram

import (
	"github.com/go-telegram/bot"

	"github.com/edgard/personachat/internal/media"
)

// RegisteredHandler is a command handler with its match rule and middleware.
type RegisteredHandler struct {
	HandlerType bot.HandlerType
	Pattern     string
	Handler     bot.HandlerFunc
	Middleware  []bot.Middleware
	MatchType   bot.MatchType
}

// RegisterAllCommands returns every command handler keyed by command.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		HandlerType: bot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   bot.MatchTypeCommandStartOnly,
	}
	handlers["/help"] = RegisteredHandler{
		HandlerType: bot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   bot.MatchTypeCommandStartOnly,
	}

	adminMiddleware := []bot.Middleware{AdminOnly(deps)}

	handlers["/image"] = RegisteredHandler{
		HandlerType: bot.HandlerTypeMessageText,
		Pattern:     "image",
		Handler:     NewMediaHandler(deps, media.KindImage),
		MatchType:   bot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}
	handlers["/video"] = RegisteredHandler{
		HandlerType: bot.HandlerTypeMessageText,
		Pattern:     "video",
		Handler:     NewMediaHandler(deps, media.KindVideo),
		MatchType:   bot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}
	handlers["/export"] = RegisteredHandler{
		HandlerType: bot.HandlerTypeMessageText,
		Pattern:     "export",
		Handler:     NewExportHandler(deps),
		MatchType:   bot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}

	return handlers
}
