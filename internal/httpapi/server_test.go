package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/personachat/internal/chat"
	"github.com/edgard/personachat/internal/config"
	"github.com/edgard/personachat/internal/console"
	"github.com/edgard/personachat/internal/gemini"
	"github.com/edgard/personachat/internal/gemini/geminitest"
	"github.com/edgard/personachat/internal/logger"
	"github.com/edgard/personachat/internal/media"
	"github.com/edgard/personachat/internal/orchestrator"
	"github.com/edgard/personachat/internal/roster"
)

type testEnv struct {
	handler  http.Handler
	fake     *geminitest.Fake
	provider *gemini.Provider
	store    *media.Store
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()

	log := logger.Discard()
	reg, err := roster.NewRegistry(
		[]*roster.BotProfile{
			{ID: "ana", FirstName: "Ana", LastName: "Silva", Biography: "Ana is a diver.", Avatar: "portrait of Ana", Relationships: map[string]string{"bo": "cousin"}},
			{ID: "bo", FirstName: "Bo", LastName: "Berg", Biography: "Bo is a sailor."},
		},
		[]*roster.Team{{ID: "crew", Name: "Crew", LeaderID: "bo", MemberIDs: []string{"bo", "ana", "ghost"}}},
	)
	require.NoError(t, err)

	fake := &geminitest.Fake{}
	provider := gemini.NewProvider(config.GeminiConfig{APIKey: apiKey}, log,
		gemini.WithFactory(func(context.Context, string) (gemini.Client, error) { return fake, nil }))
	sink := console.New(log)

	dir := t.TempDir()
	store, err := media.OpenStore(filepath.Join(dir, "media"), filepath.Join(dir, "index.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	noSleep := media.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
	gen := media.NewGenerator(store, media.NewPoller(time.Second, 3, sink, log, noSleep), sink, log)

	session := chat.New(chat.Deps{
		Roster:      reg,
		Credentials: provider,
		Engine:      orchestrator.New(config.OrchestratorConfig{Mode: "single", MaxResponders: 5}, gen, log),
		Media:       gen,
		Console:     sink,
		Logger:      log,
	})

	srv := NewServer(config.HTTPConfig{TurnTimeout: time.Minute}, Deps{
		Session:     session,
		Credentials: provider,
		Media:       store,
		Console:     sink,
	}, log)
	return &testEnv{handler: srv.Handler(), fake: fake, provider: provider, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Action  string          `json:"action"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestWithCORS(t *testing.T) {
	t.Parallel()

	var calls int32
	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNoContent)
	})
	wrapped := WithCORS(stub)

	testCases := []struct {
		name           string
		method         string
		expectedStatus int
		expectedCalls  int32
	}{
		{name: "preflight is answered directly", method: http.MethodOptions, expectedStatus: http.StatusOK, expectedCalls: 0},
		{name: "GET passes through", method: http.MethodGet, expectedStatus: http.StatusNoContent, expectedCalls: 1},
	}

	for _, tc := range testCases {
		atomic.StoreInt32(&calls, 0)
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, httptest.NewRequest(tc.method, "/", nil))

			res := rec.Result()
			assert.Equal(t, tc.expectedStatus, res.StatusCode)
			assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
			assert.NotEmpty(t, res.Header.Get("Access-Control-Allow-Methods"))
			assert.Equal(t, tc.expectedCalls, atomic.LoadInt32(&calls))
		})
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	wrapped.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndState(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state chat.State
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &state))
	assert.False(t, state.HasCredential)
	assert.False(t, state.Loading)
	assert.Equal(t, config.DefaultTextModel, state.Settings.TextModel)
}

func TestSendRequiresCredential(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodPost, "/api/messages", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusPreconditionRequired, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, ActionSelectCredential, body.Action)
	assert.Contains(t, string(body.Data), "Please select an API key")
	assert.Zero(t, env.fake.Calls())

	rec = env.do(t, http.MethodPost, "/api/credential", map[string]string{"apiKey": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/credential", map[string]string{"apiKey": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.provider.HasCredential())

	env.fake.Texts = []geminitest.Result{{Text: `{"participant":{"id":"bo"}}`}, {Text: "Ahoy."}}
	rec = env.do(t, http.MethodPost, "/api/messages", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	var appended []chat.Message
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &appended))
	require.Len(t, appended, 2)
	assert.Equal(t, "Ahoy.", appended[1].Text)
	assert.Equal(t, "bo", appended[1].BotID)

	rec = env.do(t, http.MethodGet, "/api/messages", nil)
	var all []chat.Message
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &all))
	assert.Len(t, all, 4)
}

func TestSendBadBody(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "key")
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateAndServeMedia(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "key")

	rec := env.do(t, http.MethodPost, "/api/generate", chat.MediaRequest{Kind: media.KindImage, Prompt: "reef", BotIDs: []string{"ana"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var appended []struct {
		Text  string     `json:"text"`
		Media *media.Ref `json:"media"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &appended))
	require.Len(t, appended, 2)
	require.NotNil(t, appended[1].Media)
	assert.Equal(t, media.KindImage, appended[1].Media.Kind)

	file := env.do(t, http.MethodGet, appended[1].Media.URL, nil)
	require.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, "image/png", file.Header().Get("Content-Type"))
	assert.Equal(t, geminitest.PNG, file.Body.Bytes())

	missing := env.do(t, http.MethodGet, "/media/1b4e28ba-2fa1-11d2-883f-0016d3cca427", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	rec = env.do(t, http.MethodPost, "/api/generate", chat.MediaRequest{Kind: media.KindImage, Prompt: "reef", Format: "5:4"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateVideoFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "key")
	env.fake.PollVideoFunc = func(_ context.Context, job *gemini.VideoJob) (*gemini.VideoJob, error) {
		return job, nil
	}

	rec := env.do(t, http.MethodPost, "/api/generate", chat.MediaRequest{Kind: media.KindVideo, Prompt: "storm"})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "POLL_TIMEOUT", body.Code)
	assert.Equal(t, 3, env.fake.Polls)
}

func TestRosterRoutes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "key")

	rec := env.do(t, http.MethodGet, "/api/bots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bots []roster.BotProfile
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &bots))
	assert.Len(t, bots, 2)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/bots/zed", nil).Code)

	rec = env.do(t, http.MethodGet, "/api/bots/ana/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="ana.md"`)
	assert.Contains(t, rec.Body.String(), "Ana Silva")

	rec = env.do(t, http.MethodGet, "/api/bots/ana/export?format=yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "firstName: Ana")

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/bots/ana/export?format=pdf", nil).Code)

	rec = env.do(t, http.MethodGet, "/api/teams/crew", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var team struct {
		ID      string              `json:"id"`
		Members []roster.BotProfile `json:"members"`
		Leader  *roster.BotProfile  `json:"leader"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &team))
	assert.Equal(t, "crew", team.ID)
	require.Len(t, team.Members, 2, "unknown member ids are skipped")
	assert.Equal(t, "bo", team.Leader.ID)

	rec = env.do(t, http.MethodGet, "/api/related?ids=ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["bo"]`, string(decode(t, rec).Data))
}

func TestCharacterMediaRoutes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "key")

	rec := env.do(t, http.MethodPost, "/api/bots/ana/media/avatar", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, env.fake.ImageRequests, 1)
	assert.Equal(t, gemini.AspectSquare, env.fake.ImageRequests[0].AspectRatio)

	rec = env.do(t, http.MethodPost, "/api/bots/bo/media/avatar", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "bo has no avatar prompt")

	rec = env.do(t, http.MethodPost, "/api/bots/ana/media/portrait", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/bots/media/avatar", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var results []media.CharacterResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &results))
	require.Len(t, results, 2)
	assert.NotNil(t, results[0].Ref)
	assert.NotEmpty(t, results[1].Error)

	rec = env.do(t, http.MethodPost, "/api/bots/bo/media/video", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), media.StatusComplete)
}

func TestSettingsConsoleAndExport(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "key")

	rec := env.do(t, http.MethodPut, "/api/settings", chat.Settings{TextModel: "gemini-2.5-pro", ImageModel: config.DefaultImageModel})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPut, "/api/settings", chat.Settings{TextModel: "nope", ImageModel: config.DefaultImageModel})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/settings", nil)
	var settings chat.Settings
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &settings))
	assert.Equal(t, "gemini-2.5-pro", settings.TextModel)

	rec = env.do(t, http.MethodGet, "/api/models", nil)
	assert.Contains(t, rec.Body.String(), "gemini-flash-latest")

	rec = env.do(t, http.MethodGet, "/api/console", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []console.Entry
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &entries))
	assert.NotEmpty(t, entries)

	rec = env.do(t, http.MethodGet, "/api/export/chat", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), chat.ExportFileName)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "**System:**\n\n"+chat.WelcomeMessage))
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "key")
	env.fake.Texts = []geminitest.Result{{Text: `{"participant":{"id":"bo"},"image_request":{"should_generate":true,"prompt":"boat"}}`}, {Text: "Look."}}
	env.fake.ImageFunc = func(context.Context, gemini.ImageRequest) (*gemini.Image, error) {
		return nil, io.ErrUnexpectedEOF
	}

	rec := env.do(t, http.MethodPost, "/api/messages", map[string]string{"text": "boat pic"})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	var appended []chat.Message
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &appended))
	require.Len(t, appended, 3, "text reply is kept alongside the media error")
	assert.Equal(t, "Look.", appended[1].Text)
}
