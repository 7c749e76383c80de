package telegram

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/personachat/internal/chat"
	"github.com/edgard/personachat/internal/media"
)

const (
	welcomeText = "Hi! Send me a message and the personas will answer. Use /help to see what else I can do."
	helpText    = `Commands:
/image [@bot ...] <prompt> - generate an image, optionally featuring personas
/video [@bot ...] <prompt> - generate a video, optionally featuring personas
/export - download the chat history as Markdown
/help - show this message

Anything else you send goes to the chat.`
	unknownCommandText = "Unknown command. Use /help to see what I can do."
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return textHandler{deps: deps, name: "start", text: welcomeText}.Handle
}

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return textHandler{deps: deps, name: "help", text: helpText}.Handle
}

// textHandler answers with a fixed text.
type textHandler struct {
	deps HandlerDeps
	name string
	text string
}

func (h textHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", h.name)

	if update.Message == nil {
		log.WarnContext(ctx, "Handler received update without message", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling command", "chat_id", chatID)

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.text}); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}

// NewChatHandler returns the default handler: any text that is not a known
// command becomes a chat turn.
func NewChatHandler(deps HandlerDeps) bot.HandlerFunc {
	return chatHandler{deps}.Handle
}

type chatHandler struct {
	deps HandlerDeps
}

func (h chatHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "chat")

	msg := update.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		log.DebugContext(ctx, "Ignoring update without text", "update_id", update.ID)
		return
	}
	r := replier{deps: h.deps, chatID: msg.Chat.ID}

	if strings.HasPrefix(msg.Text, "/") {
		r.sendText(ctx, b, unknownCommandText)
		return
	}

	r.typing(ctx, b, models.ChatActionTyping)
	appended, err := h.deps.Session.Send(ctx, msg.Text)
	if err != nil {
		log.WarnContext(ctx, "Chat turn failed", "error", err, "chat_id", msg.Chat.ID)
		if len(appended) == 0 {
			r.sendText(ctx, b, err.Error())
			return
		}
	}
	r.relay(ctx, b, appended)
}

// NewMediaHandler returns a handler for /image or /video.
func NewMediaHandler(deps HandlerDeps, kind media.Kind) bot.HandlerFunc {
	return mediaHandler{deps: deps, kind: kind}.Handle
}

type mediaHandler struct {
	deps HandlerDeps
	kind media.Kind
}

func (h mediaHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", string(h.kind))

	msg := update.Message
	if msg == nil {
		return
	}
	r := replier{deps: h.deps, chatID: msg.Chat.ID}

	botIDs, prompt := splitMentions(commandArgs(msg.Text))
	if prompt == "" {
		r.sendText(ctx, b, "Usage: /"+string(h.kind)+" [@bot ...] <prompt>")
		return
	}

	action := models.ChatActionUploadPhoto
	if h.kind == media.KindVideo {
		action = models.ChatActionUploadVideo
	}
	r.typing(ctx, b, action)

	log.InfoContext(ctx, "Generating media", "chat_id", msg.Chat.ID, "bots", botIDs)
	appended, err := h.deps.Session.GenerateMedia(ctx, chat.MediaRequest{Kind: h.kind, Prompt: prompt, BotIDs: botIDs})
	if err != nil {
		log.WarnContext(ctx, "Media generation failed", "error", err, "chat_id", msg.Chat.ID)
		if len(appended) == 0 {
			r.sendText(ctx, b, err.Error())
			return
		}
	}
	r.relay(ctx, b, appended)
}

// NewExportHandler returns a handler that sends the transcript as a document.
func NewExportHandler(deps HandlerDeps) bot.HandlerFunc {
	return exportHandler{deps}.Handle
}

type exportHandler struct {
	deps HandlerDeps
}

func (h exportHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "export")

	msg := update.Message
	if msg == nil {
		return
	}
	doc := &models.InputFileUpload{
		Filename: chat.ExportFileName,
		Data:     strings.NewReader(h.deps.Session.ExportMarkdown()),
	}
	if _, err := b.SendDocument(ctx, &bot.SendDocumentParams{ChatID: msg.Chat.ID, Document: doc}); err != nil {
		log.ErrorContext(ctx, "Failed to send export", "error", err, "chat_id", msg.Chat.ID)
	}
}
