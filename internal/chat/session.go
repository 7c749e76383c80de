// Package chat holds the single chat session: the append-only message log,
// the busy flag that admits one dispatch at a time, the user's model
// settings, and the credential precondition in front of every backend call.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/edgard/personachat/internal/config"
	"github.com/edgard/personachat/internal/console"
	apperrors "github.com/edgard/personachat/internal/errors"
	"github.com/edgard/personachat/internal/gemini"
	"github.com/edgard/personachat/internal/media"
	"github.com/edgard/personachat/internal/orchestrator"
	"github.com/edgard/personachat/internal/prompt"
	"github.com/edgard/personachat/internal/roster"
)

// User-visible session texts.
const (
	WelcomeMessage    = "Welcome to Katje B.V. AI Chat. Profiles and teams loaded."
	CredentialMissing = "Please select an API key in the settings before sending a message."
	ResponseFailed    = "An error occurred while getting a response."
	MediaFailed       = "An error occurred while generating media."

	loadFailedTemplate = "Could not load character and team data. Please check the console. Details: %s"
	systemErrorPrefix  = "Error: "
)

const (
	defaultVideoFormat  = "720p"
	defaultImageLabel   = "image.png"
	defaultVideoLabel   = "video.mp4"
	unresolvedBotAuthor = "Katje AI"
)

// Settings are the user-selected models.
type Settings = orchestrator.Settings

// Credentials is the credential holder in front of the model backend.
// gemini.Provider implements it.
type Credentials interface {
	HasCredential() bool
	Client(ctx context.Context) (gemini.Client, error)
	Invalidate()
}

// Orchestrator produces the persona replies for a turn.
type Orchestrator interface {
	Orchestrate(ctx context.Context, turn orchestrator.Turn) ([]orchestrator.Reply, error)
}

// MediaGenerator produces stored images and videos. media.Generator
// implements it.
type MediaGenerator interface {
	Image(ctx context.Context, client gemini.Client, job media.ImageJob) (*media.Ref, error)
	Video(ctx context.Context, client gemini.Client, job media.VideoJob, status media.StatusFunc) (*media.Ref, error)
	CharacterImage(ctx context.Context, client gemini.Client, model string, b *roster.BotProfile, kind media.CharacterImageKind) (*media.Ref, error)
	CharacterImages(ctx context.Context, client gemini.Client, model string, bots []*roster.BotProfile, kind media.CharacterImageKind, report func(media.CharacterResult)) []media.CharacterResult
	CharacterVideo(ctx context.Context, client gemini.Client, model string, b *roster.BotProfile, status media.StatusFunc) (*media.Ref, error)
}

// Deps are the collaborators of a Session.
type Deps struct {
	Roster *roster.Registry
	// LoadErr is the roster load failure, if any. The session still starts
	// so the user sees the error.
	LoadErr     error
	Credentials Credentials
	Engine      Orchestrator
	Media       MediaGenerator
	Console     console.Sink
	Settings    Settings
	VideoModel  string
	// VideoResolution is used when a video request names no format.
	VideoResolution string
	Logger          *slog.Logger
}

// State is the snapshot served to the browser.
type State struct {
	Loading         bool     `json:"loading"`
	HasCredential   bool     `json:"hasCredential"`
	LoadError       string   `json:"loadError,omitempty"`
	Settings        Settings `json:"settings"`
	Messages        int      `json:"messages"`
	LastImagePrompt string   `json:"lastImagePrompt,omitempty"`
	LastVideoPrompt string   `json:"lastVideoPrompt,omitempty"`
}

// MediaRequest is a user-initiated image or video generation.
type MediaRequest struct {
	Kind   media.Kind `json:"kind"`
	Prompt string     `json:"prompt"`
	BotIDs []string   `json:"botIds"`
	TeamID string     `json:"teamId"`
	// Format is the aspect ratio for images and the resolution for videos.
	Format string `json:"format"`
}

// Session is the one chat session of the process.
type Session struct {
	roster      *roster.Registry
	credentials Credentials
	engine      Orchestrator
	media       MediaGenerator
	console     console.Sink
	videoModel  string
	videoRes    string
	log         *slog.Logger
	now         func() time.Time

	mu              sync.Mutex
	messages        []Message
	busy            bool
	settings        Settings
	loadErr         string
	lastImagePrompt string
	lastVideoPrompt string
}

// New creates the session and records the welcome or load-failure message.
func New(d Deps) *Session {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	sink := d.Console
	if sink == nil {
		sink = console.Discard{}
	}
	settings := d.Settings
	if settings.TextModel == "" {
		settings.TextModel = config.DefaultTextModel
	}
	if settings.ImageModel == "" {
		settings.ImageModel = config.DefaultImageModel
	}
	videoModel := d.VideoModel
	if videoModel == "" {
		videoModel = config.DefaultVideoModel
	}
	videoRes := d.VideoResolution
	if videoRes == "" {
		videoRes = defaultVideoFormat
	}
	reg := d.Roster
	if reg == nil {
		reg, _ = roster.NewRegistry(nil, nil)
	}

	s := &Session{
		roster:      reg,
		credentials: d.Credentials,
		engine:      d.Engine,
		media:       d.Media,
		console:     sink,
		videoModel:  videoModel,
		videoRes:    videoRes,
		settings:    settings,
		log:         log.With("component", "chat_session"),
		now:         func() time.Time { return time.Now().UTC() },
	}

	ctx := context.Background()
	if d.LoadErr != nil {
		s.loadErr = fmt.Sprintf(loadFailedTemplate, d.LoadErr.Error())
		s.console.Add(ctx, console.LevelError, "Data Load Failed", map[string]any{"error": d.LoadErr.Error()})
		s.log.Error("Roster load failed", "error", d.LoadErr)
		s.appendSystemError(s.loadErr)
	} else {
		s.console.Add(ctx, console.LevelInfo, "Data Loaded", map[string]any{"bots": reg.Len(), "teams": len(reg.Teams())})
		s.appendSystem(WelcomeMessage)
	}
	return s
}

// Roster returns the session's registry.
func (s *Session) Roster() *roster.Registry {
	return s.roster
}

// Messages returns a copy of the log.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// State returns the current session snapshot.
func (s *Session) State() State {
	hasCredential := s.credentials != nil && s.credentials.HasCredential()

	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Loading:         s.busy,
		HasCredential:   hasCredential,
		LoadError:       s.loadErr,
		Settings:        s.settings,
		Messages:        len(s.messages),
		LastImagePrompt: s.lastImagePrompt,
		LastVideoPrompt: s.lastVideoPrompt,
	}
}

// Settings returns the selected models.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings replaces the selected models after validating them.
func (s *Session) SetSettings(ctx context.Context, next Settings) error {
	if !config.IsTextModel(next.TextModel) {
		return apperrors.NewValidationError(fmt.Sprintf("unsupported text model %q", next.TextModel), nil)
	}
	if !config.IsImageModel(next.ImageModel) {
		return apperrors.NewValidationError(fmt.Sprintf("unsupported image model %q", next.ImageModel), nil)
	}

	s.mu.Lock()
	s.settings = next
	s.mu.Unlock()

	s.console.Add(ctx, console.LevelInfo, "Settings Updated", next)
	s.log.InfoContext(ctx, "Settings updated", "text_model", next.TextModel, "image_model", next.ImageModel)
	return nil
}

// Send dispatches one user message and returns the messages it appended.
// Empty input is ignored. Orchestration and media failures are recorded in
// the log and also returned.
func (s *Session) Send(ctx context.Context, text string) ([]Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	mark := s.mark()

	client, err := s.client(ctx)
	if err != nil {
		return s.since(mark), err
	}

	s.mu.Lock()
	history := historyOf(s.messages)
	settings := s.settings
	s.mu.Unlock()

	s.append(newMessage(AuthorUser, text, s.now()))

	replies, err := s.engine.Orchestrate(ctx, orchestrator.Turn{
		Settings: settings,
		Roster:   s.roster,
		Input:    text,
		History:  history,
		Client:   client,
		Console:  s.console,
	})
	for _, r := range replies {
		s.append(s.botMessage(r))
	}
	if err != nil {
		s.fail(ctx, "Orchestration Failed", ResponseFailed, err)
		return s.since(mark), err
	}

	s.log.InfoContext(ctx, "Turn complete", "replies", len(replies))
	return s.since(mark), nil
}

// GenerateMedia runs a user-initiated image or video request featuring the
// given team (preferred) or personas, and returns the messages it appended.
func (s *Session) GenerateMedia(ctx context.Context, req MediaRequest) ([]Message, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, apperrors.NewValidationError("prompt is required", nil)
	}
	format, err := mediaFormat(req.Kind, req.Format, s.videoRes)
	if err != nil {
		return nil, err
	}

	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	mark := s.mark()

	client, err := s.client(ctx)
	if err != nil {
		return s.since(mark), err
	}

	var team *roster.Team
	var featured []*roster.BotProfile
	if t, ok := s.roster.Team(req.TeamID); req.TeamID != "" && ok {
		team = t
		featured = s.roster.TeamMembers(t)
	} else {
		featured = s.roster.Resolve(req.BotIDs)
	}

	s.mu.Lock()
	if req.Kind == media.KindImage {
		s.lastImagePrompt = req.Prompt
	} else {
		s.lastVideoPrompt = req.Prompt
	}
	settings := s.settings
	s.mu.Unlock()

	s.append(newMessage(AuthorUser, prompt.MediaRequestText(string(req.Kind), prompt.Subject(team, featured), req.Prompt), s.now()))

	scene := prompt.Scene(req.Prompt, featured)
	var msg Message
	switch req.Kind {
	case media.KindImage:
		var ref *media.Ref
		ref, err = s.media.Image(ctx, client, media.ImageJob{
			Model:       settings.ImageModel,
			Prompt:      scene,
			AspectRatio: format,
			Label:       defaultImageLabel,
			Title:       "Image",
		})
		if err == nil {
			msg = s.mediaMessage("Generated image for prompt: \""+req.Prompt+"\"", featured, ImageMedia(ref))
		}
	case media.KindVideo:
		var ref *media.Ref
		ref, err = s.media.Video(ctx, client, media.VideoJob{
			Model:      s.videoModel,
			Prompt:     scene,
			Resolution: format,
			Label:      defaultVideoLabel,
			Title:      "Video",
		}, s.appendSystem)
		if err == nil {
			msg = s.mediaMessage("Generated video for prompt: \""+req.Prompt+"\"", featured, VideoMedia(ref))
		}
	}
	if err != nil {
		s.fail(ctx, fmt.Sprintf("Failed to generate %s", req.Kind), MediaFailed, err)
		return s.since(mark), err
	}

	s.append(msg)
	s.console.Add(ctx, console.LevelInfo, "Generated "+string(req.Kind), map[string]any{"prompt": req.Prompt, "featured": len(featured)})
	return s.since(mark), nil
}

// CharacterImage renders one persona's avatar or full-body picture. It does
// not touch the chat log and does not take the busy flag.
func (s *Session) CharacterImage(ctx context.Context, botID string, kind media.CharacterImageKind) (*media.Ref, error) {
	b, ok := s.roster.Bot(botID)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("bot %q not found", botID))
	}
	client, err := s.characterClient(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := s.media.CharacterImage(ctx, client, s.Settings().ImageModel, b, kind)
	return ref, s.checkCredential(err)
}

// CharacterImages renders one kind for every persona in roster order.
func (s *Session) CharacterImages(ctx context.Context, kind media.CharacterImageKind) ([]media.CharacterResult, error) {
	client, err := s.characterClient(ctx)
	if err != nil {
		return nil, err
	}
	results := s.media.CharacterImages(ctx, client, s.Settings().ImageModel, s.roster.Bots(), kind, func(r media.CharacterResult) {
		if r.Error != "" {
			s.log.WarnContext(ctx, "Character image failed", "bot_id", r.BotID, "error", r.Error)
		}
	})
	return results, nil
}

// CharacterVideo renders one persona's showcase video.
func (s *Session) CharacterVideo(ctx context.Context, botID string, status media.StatusFunc) (*media.Ref, error) {
	b, ok := s.roster.Bot(botID)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("bot %q not found", botID))
	}
	client, err := s.characterClient(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := s.media.CharacterVideo(ctx, client, s.videoModel, b, status)
	return ref, s.checkCredential(err)
}

// AuthorName is the display name used for a message in exports.
func (s *Session) AuthorName(m Message) string {
	switch m.Author {
	case AuthorUser:
		return "You"
	case AuthorBot:
		if b, ok := s.roster.Bot(m.BotID); ok {
			return b.FullName()
		}
		return unresolvedBotAuthor
	default:
		return "System"
	}
}

func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return apperrors.ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// client enforces the credential precondition. Without a confirmed
// credential it records the instruction and makes no backend call.
func (s *Session) client(ctx context.Context) (gemini.Client, error) {
	if s.credentials == nil || !s.credentials.HasCredential() {
		s.appendSystemError(CredentialMissing)
		s.console.Add(ctx, console.LevelWarn, "Credential Required", nil)
		return nil, apperrors.ErrCredentialRequired
	}
	client, err := s.credentials.Client(ctx)
	if err != nil {
		s.fail(ctx, "Client Setup Failed", ResponseFailed, err)
		return nil, err
	}
	return client, nil
}

func (s *Session) characterClient(ctx context.Context) (gemini.Client, error) {
	if s.credentials == nil || !s.credentials.HasCredential() {
		return nil, apperrors.ErrCredentialRequired
	}
	client, err := s.credentials.Client(ctx)
	return client, s.checkCredential(err)
}

func (s *Session) checkCredential(err error) error {
	if gemini.IsCredentialError(err) && s.credentials != nil {
		s.credentials.Invalidate()
	}
	return err
}

// fail records err as a system error. Credential failures get the specific
// key message and reset the credential flag.
func (s *Session) fail(ctx context.Context, title, fallback string, err error) {
	s.console.Add(ctx, console.LevelError, title, map[string]any{"error": err.Error()})
	s.log.ErrorContext(ctx, title, "error", err)

	switch {
	case gemini.IsCredentialError(err):
		if s.credentials != nil {
			s.credentials.Invalidate()
		}
		s.appendSystemError(gemini.CredentialMessage(err))
	case apperrors.IsMediaFailure(err):
		s.appendSystemError(MediaFailed)
	default:
		s.appendSystemError(fallback)
	}
}

func (s *Session) botMessage(r orchestrator.Reply) Message {
	m := newMessage(AuthorBot, r.Text, s.now())
	if r.Bot != nil {
		m.BotID = r.Bot.ID
	}
	m.Citations = r.Citations
	m.Media = ImageMedia(r.Image)
	return m
}

// mediaMessage attributes generated media to the first featured persona, or
// the default persona when nobody is featured.
func (s *Session) mediaMessage(text string, featured []*roster.BotProfile, m Media) Message {
	msg := newMessage(AuthorBot, text, s.now())
	if len(featured) > 0 {
		msg.BotID = featured[0].ID
	} else if b, ok := s.roster.Default(); ok {
		msg.BotID = b.ID
	}
	msg.Media = m
	return msg
}

func (s *Session) append(m Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
}

func (s *Session) appendSystem(text string) {
	s.append(newMessage(AuthorSystem, text, s.now()))
}

func (s *Session) appendSystemError(text string) {
	s.appendSystem(systemErrorPrefix + text)
}

func (s *Session) mark() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Session) since(mark int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages[mark:]...)
}

// historyOf maps prior user and bot messages to model turns.
func historyOf(messages []Message) []gemini.Turn {
	turns := make([]gemini.Turn, 0, len(messages))
	for _, m := range messages {
		switch m.Author {
		case AuthorUser:
			turns = append(turns, gemini.Turn{Role: gemini.RoleUser, Text: m.Text})
		case AuthorBot:
			turns = append(turns, gemini.Turn{Role: gemini.RoleModel, Text: m.Text})
		}
	}
	return turns
}

func mediaFormat(kind media.Kind, format, defaultResolution string) (string, error) {
	switch kind {
	case media.KindImage:
		if format == "" {
			return gemini.AspectSquare, nil
		}
		if !gemini.ValidAspect(format) {
			return "", apperrors.NewValidationError(fmt.Sprintf("unsupported aspect ratio %q", format), nil)
		}
		return format, nil
	case media.KindVideo:
		if format == "" {
			return defaultResolution, nil
		}
		if format != "720p" && format != "1080p" {
			return "", apperrors.NewValidationError(fmt.Sprintf("unsupported resolution %q", format), nil)
		}
		return format, nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown media kind %q", kind), nil)
}
