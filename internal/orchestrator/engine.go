// Package orchestrator decides, for each user turn, which persona(s) answer,
// produces their replies, and decides whether an illustrative image is
// generated. A turn never dead-ends on a selection problem: it falls back to
// the first persona in the roster.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/edgard/personachat/internal/config"
	"github.com/edgard/personachat/internal/console"
	apperrors "github.com/edgard/personachat/internal/errors"
	"github.com/edgard/personachat/internal/gemini"
	"github.com/edgard/personachat/internal/media"
	"github.com/edgard/personachat/internal/prompt"
	"github.com/edgard/personachat/internal/roster"
)

// Mode selects the responder strategy.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// MaxParticipants caps multi-responder selection.
const MaxParticipants = 5

// Settings are the user-selected models.
type Settings struct {
	TextModel  string `json:"geminiModel"`
	ImageModel string `json:"imagenModel"`
}

// Turn is everything one orchestration call works on. It is built fresh by
// the session for every user message.
type Turn struct {
	Settings Settings
	Roster   *roster.Registry
	Input    string
	History  []gemini.Turn
	Client   gemini.Client
	Console  console.Sink
}

// Reply is one persona's answer.
type Reply struct {
	Bot       *roster.BotProfile
	Text      string
	Citations []gemini.Citation
	Image     *media.Ref
	// Failed marks a placeholder substituted for a failed reply call.
	Failed bool
}

// ImageMaker generates a stored image. media.Generator implements it.
type ImageMaker interface {
	Image(ctx context.Context, client gemini.Client, job media.ImageJob) (*media.Ref, error)
}

// Engine runs orchestration turns.
type Engine struct {
	mode          Mode
	maxResponders int
	images        ImageMaker
	log           *slog.Logger
}

// New creates an Engine.
func New(cfg config.OrchestratorConfig, images ImageMaker, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	maxResponders := cfg.MaxResponders
	if maxResponders <= 0 || maxResponders > MaxParticipants {
		maxResponders = MaxParticipants
	}
	mode := Mode(cfg.Mode)
	if mode != ModeMulti {
		mode = ModeSingle
	}
	return &Engine{
		mode:          mode,
		maxResponders: maxResponders,
		images:        images,
		log:           log.With("component", "orchestrator"),
	}
}

// Mode returns the configured responder strategy.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Placeholder is the text shown in place of a persona whose reply failed.
func Placeholder(b *roster.BotProfile) string {
	return fmt.Sprintf("_%s could not respond right now._", b.FirstName)
}

// Orchestrate produces the replies for one user turn. Selection problems
// fall back to the default persona and reply failures become placeholders.
// Credential failures abort the turn. A media failure is returned as a
// coded error together with the replies produced so far.
func (e *Engine) Orchestrate(ctx context.Context, turn Turn) ([]Reply, error) {
	if turn.Roster.Len() == 0 {
		return nil, apperrors.NewOrchestrationError("no personas are loaded", nil)
	}
	if turn.Client == nil {
		return nil, apperrors.ErrCredentialRequired
	}
	if turn.Console == nil {
		turn.Console = console.Discard{}
	}

	e.log.InfoContext(ctx, "Orchestrating turn", "mode", e.mode, "history", len(turn.History), "roster", turn.Roster.Len())
	if e.mode == ModeMulti {
		return e.orchestrateMulti(ctx, turn)
	}
	return e.orchestrateSingle(ctx, turn)
}

func (e *Engine) orchestrateSingle(ctx context.Context, turn Turn) ([]Reply, error) {
	req := gemini.TextRequest{
		Model:             turn.Settings.TextModel,
		SystemInstruction: prompt.SingleSelectionInstruction(turn.Roster.Bots()),
		Turns:             []gemini.Turn{{Role: gemini.RoleUser, Text: prompt.Selection(turn.History, turn.Input)}},
		Schema:            gemini.SingleSelectionSchema,
	}
	sel := e.selection(ctx, turn, req, parseSingle)
	if err := credentialFailure(sel); err != nil {
		return nil, err
	}

	bots, decision := e.resolve(ctx, turn, sel, 1)
	bot := bots[0]

	reply, err := e.reply(ctx, turn, bot, turn.Input)
	if err != nil {
		return nil, err
	}
	replies := []Reply{reply}

	if decision.Wanted() {
		return e.illustrate(ctx, turn, replies, decision)
	}
	return replies, nil
}

func (e *Engine) orchestrateMulti(ctx context.Context, turn Turn) ([]Reply, error) {
	req := gemini.TextRequest{
		Model:             turn.Settings.TextModel,
		SystemInstruction: prompt.MultiSelectionInstruction(turn.Roster.Bots(), e.maxResponders),
		Turns:             []gemini.Turn{{Role: gemini.RoleUser, Text: prompt.Selection(turn.History, turn.Input)}},
		Schema:            gemini.MultiSelectionSchema,
	}
	sel := e.selection(ctx, turn, req, parseMulti)
	if err := credentialFailure(sel); err != nil {
		return nil, err
	}

	bots, _ := e.resolve(ctx, turn, sel, e.maxResponders)

	replies := make([]Reply, 0, len(bots))
	var spoken []prompt.Spoken
	for _, bot := range bots {
		reply, err := e.reply(ctx, turn, bot, prompt.TeamReply(turn.Input, spoken))
		if err != nil {
			return nil, err
		}
		replies = append(replies, reply)
		if !reply.Failed {
			spoken = append(spoken, prompt.Spoken{Name: bot.FirstName, Text: reply.Text})
		}
	}

	decision, err := e.decideImage(ctx, turn, spoken)
	if err != nil {
		return nil, err
	}
	if decision.Wanted() {
		return e.illustrate(ctx, turn, replies, decision)
	}
	return replies, nil
}

// selection runs a selection call and classifies its outcome.
func (e *Engine) selection(ctx context.Context, turn Turn, req gemini.TextRequest, parse func(string) Selection) Selection {
	turn.Console.Add(ctx, console.LevelGeminiRequest, "Orchestrator Request", req)
	resp, err := turn.Client.GenerateText(ctx, req)
	if err != nil {
		turn.Console.Add(ctx, console.LevelError, "Orchestrator Failed", map[string]any{"error": err.Error()})
		return CallFailed{Err: err}
	}
	turn.Console.Add(ctx, console.LevelGeminiResponse, "Orchestrator Response", resp.Raw)

	sel := parse(resp.Text)
	if pf, ok := sel.(ParseFailed); ok {
		turn.Console.Add(ctx, console.LevelError, "Orchestrator Failed", map[string]any{"error": pf.Err.Error(), "raw": pf.Raw})
	}
	return sel
}

func credentialFailure(sel Selection) error {
	if cf, ok := sel.(CallFailed); ok && gemini.IsCredentialError(cf.Err) {
		return cf.Err
	}
	return nil
}

// resolve maps a selection to at most limit known personas, falling back to
// the default persona with no image when nothing usable was selected.
func (e *Engine) resolve(ctx context.Context, turn Turn, sel Selection, limit int) ([]*roster.BotProfile, ImageDecision) {
	var reason string
	switch s := sel.(type) {
	case Selected:
		bots := turn.Roster.Resolve(s.IDs)
		if len(bots) > limit {
			bots = bots[:limit]
		}
		if len(bots) > 0 {
			if dropped := len(s.IDs) - len(bots); dropped > 0 {
				e.log.WarnContext(ctx, "Dropped unusable participant ids", "selected", s.IDs, "dropped", dropped)
			}
			return bots, s.Image
		}
		reason = fmt.Sprintf("unknown participant ids %v", s.IDs)
	case ParseFailed:
		reason = "unparseable selection: " + s.Err.Error()
	case CallFailed:
		reason = "selection call failed: " + s.Err.Error()
	}

	fallback, _ := turn.Roster.Default()
	e.log.WarnContext(ctx, "Falling back to default persona", "bot_id", fallback.ID, "reason", reason)
	turn.Console.Add(ctx, console.LevelWarn, "Orchestrator Fallback", map[string]any{"botId": fallback.ID, "reason": reason})
	return []*roster.BotProfile{fallback}, ImageDecision{}
}

// reply asks one persona for its answer. Only credential failures are
// returned as errors; anything else turns into a placeholder reply.
func (e *Engine) reply(ctx context.Context, turn Turn, bot *roster.BotProfile, userText string) (Reply, error) {
	turns := slices.Clone(turn.History)
	turns = append(turns, gemini.Turn{Role: gemini.RoleUser, Text: userText})

	req := gemini.TextRequest{
		Model:             turn.Settings.TextModel,
		SystemInstruction: prompt.PersonaInstruction(bot),
		Turns:             turns,
		Grounding:         true,
	}
	turn.Console.Add(ctx, console.LevelGeminiRequest, "Bot Request: "+bot.FirstName, req)

	resp, err := turn.Client.GenerateText(ctx, req)
	if err != nil {
		turn.Console.Add(ctx, console.LevelError, "Bot Failed: "+bot.FirstName, map[string]any{"error": err.Error()})
		if gemini.IsCredentialError(err) {
			return Reply{}, err
		}
		e.log.WarnContext(ctx, "Persona reply failed, using placeholder", "bot_id", bot.ID, "error", err)
		return Reply{Bot: bot, Text: Placeholder(bot), Failed: true}, nil
	}
	turn.Console.Add(ctx, console.LevelGeminiResponse, "Bot Response: "+bot.FirstName, resp.Raw)

	return Reply{Bot: bot, Text: resp.Text, Citations: resp.Citations}, nil
}

// decideImage runs the multi-mode image decision. A failed call means no
// image.
func (e *Engine) decideImage(ctx context.Context, turn Turn, spoken []prompt.Spoken) (ImageDecision, error) {
	req := gemini.TextRequest{
		Model:             turn.Settings.TextModel,
		SystemInstruction: prompt.ImageDecisionInstruction,
		Turns:             []gemini.Turn{{Role: gemini.RoleUser, Text: prompt.ImageDecision(turn.Input, spoken)}},
		Schema:            gemini.ImageDecisionSchema,
	}
	turn.Console.Add(ctx, console.LevelGeminiRequest, "Image Decision Request", req)

	resp, err := turn.Client.GenerateText(ctx, req)
	if err != nil {
		turn.Console.Add(ctx, console.LevelError, "Image Decision Failed", map[string]any{"error": err.Error()})
		if gemini.IsCredentialError(err) {
			return ImageDecision{}, err
		}
		return ImageDecision{}, nil
	}
	turn.Console.Add(ctx, console.LevelGeminiResponse, "Image Decision Response", resp.Raw)

	d, err := parseDecision(resp.Text)
	if err != nil {
		turn.Console.Add(ctx, console.LevelError, "Image Decision Failed", map[string]any{"error": err.Error(), "raw": resp.Text})
		return ImageDecision{}, nil
	}
	return d, nil
}

// illustrate attaches a generated image to the last reply. On failure the
// replies are returned unchanged with the media error.
func (e *Engine) illustrate(ctx context.Context, turn Turn, replies []Reply, d ImageDecision) ([]Reply, error) {
	if e.images == nil {
		return replies, apperrors.NewMediaError("image generation is not available", nil)
	}
	ref, err := e.images.Image(ctx, turn.Client, media.ImageJob{
		Model:       turn.Settings.ImageModel,
		Prompt:      d.Prompt,
		AspectRatio: gemini.AspectSquare,
		Label:       "chat.png",
		Title:       "Chat",
	})
	if err != nil {
		e.log.ErrorContext(ctx, "Illustration failed", "error", err)
		if !apperrors.IsMediaFailure(err) {
			err = apperrors.NewMediaError("image generation failed", err)
		}
		return replies, err
	}
	replies[len(replies)-1].Image = ref
	return replies, nil
}
