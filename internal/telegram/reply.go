package telegram

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/personachat/internal/chat"
	"github.com/edgard/personachat/internal/media"
)

// Telegram API limits, in characters.
const (
	maxMessageLength = 4096
	maxCaptionLength = 1024
)

const sendMessageTimeout = 30 * time.Second

// formatMessage renders a session message as plain Telegram text.
func formatMessage(author string, m chat.Message) string {
	var sb strings.Builder
	if m.Author != chat.AuthorSystem {
		sb.WriteString(author)
		sb.WriteString(": ")
	}
	sb.WriteString(m.Text)
	if len(m.Citations) > 0 {
		sb.WriteString("\n\nSources:")
		for _, c := range m.Citations {
			title := c.Title
			if title == "" {
				title = c.URI
			}
			fmt.Fprintf(&sb, "\n- %s: %s", title, c.URI)
		}
	}
	return sb.String()
}

// splitText cuts s into chunks of at most limit runes, preferring line breaks.
func splitText(s string, limit int) []string {
	if utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}
	var chunks []string
	runes := []rune(s)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// commandArgs drops the leading command (including any @botname suffix).
func commandArgs(text string) string {
	_, rest, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(rest)
}

// splitMentions peels leading @id tokens off a prompt.
func splitMentions(args string) (ids []string, prompt string) {
	fields := strings.Fields(args)
	i := 0
	for ; i < len(fields) && strings.HasPrefix(fields[i], "@") && len(fields[i]) > 1; i++ {
		ids = append(ids, strings.TrimPrefix(fields[i], "@"))
	}
	return ids, strings.Join(fields[i:], " ")
}

// replier relays session messages to one chat.
type replier struct {
	deps   HandlerDeps
	chatID int64
}

// relay sends every non-user message in order. User messages are the
// Telegram user's own input and are not echoed back.
func (r replier) relay(ctx context.Context, b *bot.Bot, msgs []chat.Message) {
	for _, m := range msgs {
		if m.Author == chat.AuthorUser {
			continue
		}
		text := formatMessage(r.deps.Session.AuthorName(m), m)
		if ref, ok := m.Media.Image(); ok {
			r.sendMedia(ctx, b, ref, text)
			continue
		}
		if ref, ok := m.Media.Video(); ok {
			r.sendMedia(ctx, b, ref, text)
			continue
		}
		r.sendText(ctx, b, text)
	}
}

func (r replier) sendText(ctx context.Context, b *bot.Bot, text string) {
	log := r.deps.Logger.With("chat_id", r.chatID)
	for _, chunk := range splitText(text, maxMessageLength) {
		sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
		_, err := b.SendMessage(sendCtx, &bot.SendMessageParams{ChatID: r.chatID, Text: chunk})
		cancel()
		if err != nil {
			log.ErrorContext(ctx, "Failed to send message", "error", err)
			return
		}
	}
}

// sendMedia uploads a stored artifact with the message as caption. If the
// file cannot be read the message is sent as text with the local URL.
func (r replier) sendMedia(ctx context.Context, b *bot.Bot, ref media.Ref, text string) {
	log := r.deps.Logger.With("chat_id", r.chatID, "media_id", ref.ID)

	caption := text
	if utf8.RuneCountInString(caption) > maxCaptionLength {
		r.sendText(ctx, b, text)
		caption = ""
	}

	f, name, err := r.open(ctx, ref)
	if err != nil {
		log.WarnContext(ctx, "Stored media unavailable, sending link", "error", err)
		if caption == "" {
			r.sendText(ctx, b, ref.URL)
			return
		}
		r.sendText(ctx, b, text+"\n"+ref.URL)
		return
	}
	defer f.Close()

	upload := &models.InputFileUpload{Filename: name, Data: f}
	sendCtx, cancel := context.WithTimeout(ctx, 2*sendMessageTimeout)
	defer cancel()

	if ref.Kind == media.KindVideo {
		_, err = b.SendVideo(sendCtx, &bot.SendVideoParams{ChatID: r.chatID, Video: upload, Caption: caption})
	} else {
		_, err = b.SendPhoto(sendCtx, &bot.SendPhotoParams{ChatID: r.chatID, Photo: upload, Caption: caption})
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to upload media", "error", err, "kind", ref.Kind)
	}
}

func (r replier) open(ctx context.Context, ref media.Ref) (*os.File, string, error) {
	if r.deps.Media == nil {
		return nil, "", fmt.Errorf("no media store configured")
	}
	a, err := r.deps.Media.Get(ctx, ref.ID)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(r.deps.Media.Path(a))
	if err != nil {
		return nil, "", fmt.Errorf("open media file: %w", err)
	}
	return f, a.FileName, nil
}

func (r replier) typing(ctx context.Context, b *bot.Bot, action models.ChatAction) {
	if _, err := b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: r.chatID, Action: action}); err != nil {
		r.deps.Logger.DebugContext(ctx, "Failed to send chat action", "error", err, "chat_id", r.chatID)
	}
}
