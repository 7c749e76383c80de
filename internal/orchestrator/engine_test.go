package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/personachat/internal/config"
	"github.com/edgard/personachat/internal/console"
	apperrors "github.com/edgard/personachat/internal/errors"
	"github.com/edgard/personachat/internal/gemini"
	"github.com/edgard/personachat/internal/gemini/geminitest"
	"github.com/edgard/personachat/internal/logger"
	"github.com/edgard/personachat/internal/media"
	"github.com/edgard/personachat/internal/roster"
)

type fakeImages struct {
	jobs []media.ImageJob
	err  error
}

func (f *fakeImages) Image(_ context.Context, _ gemini.Client, job media.ImageJob) (*media.Ref, error) {
	f.jobs = append(f.jobs, job)
	if f.err != nil {
		return nil, f.err
	}
	return &media.Ref{ID: "img-1", Kind: media.KindImage, URL: media.URL("img-1"), MIMEType: "image/png"}, nil
}

func testRoster(t *testing.T) *roster.Registry {
	t.Helper()
	reg, err := roster.NewRegistry([]*roster.BotProfile{
		{ID: "ana", FirstName: "Ana", Biography: "Ana is a marine biologist."},
		{ID: "bo", FirstName: "Bo", Biography: "Bo is a chef."},
		{ID: "cy", FirstName: "Cy", Biography: "Cy is a pilot."},
	}, nil)
	require.NoError(t, err)
	return reg
}

func newEngine(mode string, images ImageMaker) *Engine {
	return New(config.OrchestratorConfig{Mode: mode, MaxResponders: 2}, images, logger.Discard())
}

func newTurn(t *testing.T, client gemini.Client) Turn {
	return Turn{
		Settings: Settings{TextModel: "gemini-flash-latest", ImageModel: "imagen-4.0-generate-001"},
		Roster:   testRoster(t),
		Input:    "What should I cook tonight?",
		History:  []gemini.Turn{{Role: gemini.RoleUser, Text: "hi"}, {Role: gemini.RoleModel, Text: "hello"}},
		Client:   client,
		Console:  console.Discard{},
	}
}

func TestParseSelection(t *testing.T) {
	t.Parallel()

	sel := parseSingle("```json\n{\"participant\":{\"id\":\"bo\",\"reasoning\":\"food\"},\"image_request\":{\"should_generate\":true,\"prompt\":\"pasta\"}}\n```")
	got, ok := sel.(Selected)
	require.True(t, ok)
	assert.Equal(t, []string{"bo"}, got.IDs)
	assert.True(t, got.Image.Wanted())

	_, ok = parseSingle("not json").(ParseFailed)
	assert.True(t, ok)
	_, ok = parseSingle(`{"participant":{"id":" "}}`).(ParseFailed)
	assert.True(t, ok)

	multi, ok := parseMulti(`{"participants":[{"id":"bo"},{"id":""},{"id":"cy"}]}`).(Selected)
	require.True(t, ok)
	assert.Equal(t, []string{"bo", "cy"}, multi.IDs)
	_, ok = parseMulti(`{"participants":[]}`).(ParseFailed)
	assert.True(t, ok)

	assert.False(t, ImageDecision{ShouldGenerate: true, Prompt: "  "}.Wanted())
}

func TestSingleModeSelectsAndReplies(t *testing.T) {
	t.Parallel()

	fake := &geminitest.Fake{Texts: []geminitest.Result{
		{Text: `{"participant":{"id":"bo","reasoning":"cooking"},"image_request":{"should_generate":false}}`},
		{Text: "Try a risotto.", Citations: []gemini.Citation{{Title: "Risotto", URI: "https://example.com/r"}}},
	}}
	images := &fakeImages{}

	replies, err := newEngine("single", images).Orchestrate(context.Background(), newTurn(t, fake))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "bo", replies[0].Bot.ID)
	assert.Equal(t, "Try a risotto.", replies[0].Text)
	assert.Len(t, replies[0].Citations, 1)
	assert.Nil(t, replies[0].Image)
	assert.Empty(t, images.jobs)

	reqs := fake.TextRequestsSnapshot()
	require.Len(t, reqs, 2)
	assert.NotNil(t, reqs[0].Schema)
	assert.Contains(t, reqs[0].Turns[0].Text, "What should I cook tonight?")
	assert.True(t, reqs[1].Grounding)
	assert.Contains(t, reqs[1].SystemInstruction, "Bo is a chef.")
	require.Len(t, reqs[1].Turns, 3)
	assert.Equal(t, "What should I cook tonight?", reqs[1].Turns[2].Text)
}

func TestSingleModeFallsBackToDefault(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		selection geminitest.Result
	}{
		{name: "call failed", selection: geminitest.Result{Err: errors.New("boom")}},
		{name: "unparseable", selection: geminitest.Result{Text: "I pick Bo!"}},
		{name: "unknown id", selection: geminitest.Result{Text: `{"participant":{"id":"zed"},"image_request":{"should_generate":true,"prompt":"x"}}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := &geminitest.Fake{Texts: []geminitest.Result{tt.selection, {Text: "Hello from Ana."}}}
			images := &fakeImages{}

			replies, err := newEngine("single", images).Orchestrate(context.Background(), newTurn(t, fake))
			require.NoError(t, err)
			require.Len(t, replies, 1)
			assert.Equal(t, "ana", replies[0].Bot.ID)
			assert.Equal(t, "Hello from Ana.", replies[0].Text)
			assert.Empty(t, images.jobs, "fallback never generates an image")
		})
	}
}

func TestSingleModeImage(t *testing.T) {
	t.Parallel()

	fake := &geminitest.Fake{Texts: []geminitest.Result{
		{Text: `{"participant":{"id":"cy"},"image_request":{"should_generate":true,"prompt":"a biplane over the sea"}}`},
		{Text: "Look at this plane."},
	}}
	images := &fakeImages{}

	replies, err := newEngine("single", images).Orchestrate(context.Background(), newTurn(t, fake))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.NotNil(t, replies[0].Image)
	assert.Equal(t, media.URL("img-1"), replies[0].Image.URL)

	require.Len(t, images.jobs, 1)
	assert.Equal(t, "a biplane over the sea", images.jobs[0].Prompt)
	assert.Equal(t, gemini.AspectSquare, images.jobs[0].AspectRatio)
	assert.Equal(t, "imagen-4.0-generate-001", images.jobs[0].Model)
}

func TestMediaFailureKeepsReplies(t *testing.T) {
	t.Parallel()

	fake := &geminitest.Fake{Texts: []geminitest.Result{
		{Text: `{"participant":{"id":"cy"},"image_request":{"should_generate":true,"prompt":"plane"}}`},
		{Text: "Here you go."},
	}}
	images := &fakeImages{err: errors.New("imagen down")}

	replies, err := newEngine("single", images).Orchestrate(context.Background(), newTurn(t, fake))
	require.Error(t, err)
	assert.True(t, apperrors.IsMediaFailure(err))
	require.Len(t, replies, 1)
	assert.Equal(t, "Here you go.", replies[0].Text)
	assert.Nil(t, replies[0].Image)
}

func TestMultiModeTranscript(t *testing.T) {
	t.Parallel()

	fake := &geminitest.Fake{Texts: []geminitest.Result{
		{Text: `{"participants":[{"id":"bo"},{"id":"zed"},{"id":"bo"},{"id":"cy"},{"id":"ana"}]}`},
		{Text: "Bo says pasta."},
		{Text: "Cy says fish."},
		{Text: `{"should_generate":false,"prompt":"","reasoning":"no need"}`},
	}}
	images := &fakeImages{}

	replies, err := newEngine("multi", images).Orchestrate(context.Background(), newTurn(t, fake))
	require.NoError(t, err)
	require.Len(t, replies, 2, "unknown and repeated ids dropped, capped at max responders")
	assert.Equal(t, "bo", replies[0].Bot.ID)
	assert.Equal(t, "cy", replies[1].Bot.ID)
	assert.Empty(t, images.jobs)

	reqs := fake.TextRequestsSnapshot()
	require.Len(t, reqs, 4)
	assert.Contains(t, reqs[0].SystemInstruction, "between 1 and 2")

	first := reqs[1].Turns[len(reqs[1].Turns)-1].Text
	assert.Equal(t, "What should I cook tonight?", first)

	second := reqs[2].Turns[len(reqs[2].Turns)-1].Text
	assert.Contains(t, second, "**Bo:** Bo says pasta.")

	decision := reqs[3].Turns[0].Text
	assert.Contains(t, decision, "Bo says pasta.")
	assert.Contains(t, decision, "Cy says fish.")
	assert.NotNil(t, reqs[3].Schema)
}

func TestMultiModePlaceholderAndImage(t *testing.T) {
	t.Parallel()

	fake := &geminitest.Fake{Texts: []geminitest.Result{
		{Text: `{"participants":[{"id":"ana"},{"id":"bo"}]}`},
		{Err: errors.New("overloaded")},
		{Text: "Bo is here."},
		{Text: `{"should_generate":true,"prompt":"a kitchen","reasoning":"visual"}`},
	}}
	images := &fakeImages{}

	replies, err := newEngine("multi", images).Orchestrate(context.Background(), newTurn(t, fake))
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.True(t, replies[0].Failed)
	assert.Equal(t, "_Ana could not respond right now._", replies[0].Text)
	assert.Nil(t, replies[0].Image)
	require.NotNil(t, replies[1].Image, "image goes on the final reply")

	reqs := fake.TextRequestsSnapshot()
	second := reqs[2].Turns[len(reqs[2].Turns)-1].Text
	assert.NotContains(t, second, "could not respond", "failed replies are left out of the transcript")
}

func TestMultiModeDecisionFailureMeansNoImage(t *testing.T) {
	t.Parallel()

	fake := &geminitest.Fake{Texts: []geminitest.Result{
		{Text: `{"participants":[{"id":"bo"}]}`},
		{Text: "Pasta."},
		{Text: "maybe?"},
	}}
	images := &fakeImages{}

	replies, err := newEngine("multi", images).Orchestrate(context.Background(), newTurn(t, fake))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Empty(t, images.jobs)
}

func TestOrchestrateAborts(t *testing.T) {
	t.Parallel()

	t.Run("empty roster", func(t *testing.T) {
		t.Parallel()
		empty, err := roster.NewRegistry(nil, nil)
		require.NoError(t, err)
		fake := &geminitest.Fake{}
		turn := newTurn(t, fake)
		turn.Roster = empty

		_, err = newEngine("single", nil).Orchestrate(context.Background(), turn)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeOrchestration, apperrors.Code(err))
		assert.Zero(t, fake.Calls())
	})

	t.Run("credential", func(t *testing.T) {
		t.Parallel()
		fake := &geminitest.Fake{Texts: []geminitest.Result{
			{Err: apperrors.NewCredentialError(gemini.KeyNotFoundMessage, nil)},
		}}

		replies, err := newEngine("single", nil).Orchestrate(context.Background(), newTurn(t, fake))
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrCredentialRequired)
		assert.Empty(t, replies)
		assert.Equal(t, 1, fake.Calls())
	})

	t.Run("credential during reply", func(t *testing.T) {
		t.Parallel()
		fake := &geminitest.Fake{TextFunc: func(_ context.Context, req gemini.TextRequest) (*gemini.TextResponse, error) {
			if req.Schema != nil {
				return &gemini.TextResponse{Text: `{"participants":[{"id":"bo"}]}`}, nil
			}
			return nil, apperrors.NewCredentialError("API key not valid", nil)
		}}

		_, err := newEngine("multi", nil).Orchestrate(context.Background(), newTurn(t, fake))
		assert.True(t, gemini.IsCredentialError(err))
	})
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	e := New(config.OrchestratorConfig{Mode: "bogus", MaxResponders: 99}, nil, nil)
	assert.Equal(t, ModeSingle, e.Mode())
	assert.Equal(t, MaxParticipants, e.maxResponders)
	assert.True(t, strings.HasPrefix(Placeholder(&roster.BotProfile{FirstName: "Jo"}), "_Jo"))
}
