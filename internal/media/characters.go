package media

import (
	"context"
	"fmt"

	apperrors "github.com/edgard/personachat/internal/errors"
	"github.com/edgard/personachat/internal/gemini"
	"github.com/edgard/personachat/internal/prompt"
	"github.com/edgard/personachat/internal/roster"
)

// CharacterImageKind selects which stored persona prompt to render.
type CharacterImageKind string

const (
	CharacterAvatar CharacterImageKind = "avatar"
	CharacterBikini CharacterImageKind = "bikini"
)

// ParseCharacterImageKind validates a kind name.
func ParseCharacterImageKind(s string) (CharacterImageKind, error) {
	switch k := CharacterImageKind(s); k {
	case CharacterAvatar, CharacterBikini:
		return k, nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown character image type %q", s), nil)
}

func (k CharacterImageKind) aspectRatio() string {
	if k == CharacterAvatar {
		return gemini.AspectSquare
	}
	return gemini.AspectTall
}

func (k CharacterImageKind) promptFor(b *roster.BotProfile) string {
	if k == CharacterAvatar {
		return b.Avatar
	}
	return b.Bikini
}

// CharacterResult is the outcome for one persona in a bulk run.
type CharacterResult struct {
	BotID string `json:"botId"`
	Ref   *Ref   `json:"ref,omitempty"`
	Error string `json:"error,omitempty"`
}

// CharacterImage renders a persona's stored avatar or full-body prompt.
func (g *Generator) CharacterImage(ctx context.Context, client gemini.Client, model string, b *roster.BotProfile, kind CharacterImageKind) (*Ref, error) {
	p := kind.promptFor(b)
	if p == "" {
		err := apperrors.NewValidationError(fmt.Sprintf("Prompt for type '%s' not found on bot profile.", kind), nil)
		g.log.WarnContext(ctx, "Character prompt missing", "bot_id", b.ID, "kind", kind)
		return nil, err
	}
	return g.Image(ctx, client, ImageJob{
		Model:       model,
		Prompt:      p,
		AspectRatio: kind.aspectRatio(),
		Label:       fmt.Sprintf("%s-%s.png", b.ID, kind),
		Title:       fmt.Sprintf("%s %s", b.FirstName, kind),
	})
}

// CharacterImages renders the same kind for every persona, one after the
// other. A failure for one persona does not stop the run; report is called
// after each persona. Cancellation stops the run early.
func (g *Generator) CharacterImages(ctx context.Context, client gemini.Client, model string, bots []*roster.BotProfile, kind CharacterImageKind, report func(CharacterResult)) []CharacterResult {
	results := make([]CharacterResult, 0, len(bots))
	for _, b := range bots {
		if ctx.Err() != nil {
			break
		}
		res := CharacterResult{BotID: b.ID}
		ref, err := g.CharacterImage(ctx, client, model, b, kind)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Ref = ref
		}
		results = append(results, res)
		if report != nil {
			report(res)
		}
	}
	return results
}

// CharacterVideo renders the persona showcase video at 720p.
func (g *Generator) CharacterVideo(ctx context.Context, client gemini.Client, model string, b *roster.BotProfile, status StatusFunc) (*Ref, error) {
	return g.Video(ctx, client, VideoJob{
		Model:      model,
		Prompt:     prompt.CharacterVideo(b),
		Resolution: "720p",
		Label:      b.ID + ".mp4",
		Title:      b.FirstName,
		Raw:        true,
	}, status)
}
