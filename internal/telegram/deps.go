package telegram

import (
	"context"
	"log/slog"

	"github.com/edgard/personachat/internal/chat"
	"github.com/edgard/personachat/internal/config"
	"github.com/edgard/personachat/internal/media"
)

// Session is the part of the chat session the bridge drives.
// *chat.Session implements it.
type Session interface {
	Send(ctx context.Context, text string) ([]chat.Message, error)
	GenerateMedia(ctx context.Context, req chat.MediaRequest) ([]chat.Message, error)
	ExportMarkdown() string
	AuthorName(m chat.Message) string
}

// MediaFiles resolves stored artifacts for upload. *media.Store implements it.
type MediaFiles interface {
	Get(ctx context.Context, id string) (*media.Artifact, error)
	Path(a *media.Artifact) string
}

// HandlerDeps provides dependencies for Telegram handlers.
type HandlerDeps struct {
	Logger  *slog.Logger
	Config  config.TelegramConfig
	Session Session
	Media   MediaFiles
}
