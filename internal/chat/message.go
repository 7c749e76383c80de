package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/personachat/internal/gemini"
	"github.com/edgard/personachat/internal/media"
)

// Author identifies who wrote a message.
type Author string

const (
	AuthorUser   Author = "user"
	AuthorBot    Author = "bot"
	AuthorSystem Author = "system"
)

// Media is the optional artifact attached to a message: none, an image, or
// a video. The zero value is none.
type Media struct {
	ref *media.Ref
}

// NoMedia is the empty attachment.
var NoMedia = Media{}

// ImageMedia attaches an image.
func ImageMedia(ref *media.Ref) Media {
	if ref == nil {
		return NoMedia
	}
	r := *ref
	r.Kind = media.KindImage
	return Media{ref: &r}
}

// VideoMedia attaches a video.
func VideoMedia(ref *media.Ref) Media {
	if ref == nil {
		return NoMedia
	}
	r := *ref
	r.Kind = media.KindVideo
	return Media{ref: &r}
}

// IsZero reports whether nothing is attached.
func (m Media) IsZero() bool {
	return m.ref == nil
}

// Image returns the attached image, if any.
func (m Media) Image() (media.Ref, bool) {
	if m.ref == nil || m.ref.Kind != media.KindImage {
		return media.Ref{}, false
	}
	return *m.ref, true
}

// Video returns the attached video, if any.
func (m Media) Video() (media.Ref, bool) {
	if m.ref == nil || m.ref.Kind != media.KindVideo {
		return media.Ref{}, false
	}
	return *m.ref, true
}

func (m Media) MarshalJSON() ([]byte, error) {
	if m.ref == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m.ref)
}

// Message is one entry of the session log. Messages are never modified after
// they are appended.
type Message struct {
	ID        string            `json:"id"`
	Author    Author            `json:"author"`
	Text      string            `json:"text"`
	Media     Media             `json:"media,omitzero"`
	BotID     string            `json:"botId,omitempty"`
	Citations []gemini.Citation `json:"citations,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func newMessage(author Author, text string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Author:    author,
		Text:      text,
		CreatedAt: now,
	}
}
