package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/edgard/personachat/internal/chat"
	"github.com/edgard/personachat/internal/config"
	apperrors "github.com/edgard/personachat/internal/errors"
	"github.com/edgard/personachat/internal/media"
	"github.com/edgard/personachat/internal/roster"
)

type sendRequest struct {
	Text string `json:"text"`
}

type credentialRequest struct {
	APIKey string `json:"apiKey"`
}

type teamView struct {
	*roster.Team `yaml:",inline"`
	Members []*roster.BotProfile `json:"members"`
	Leader  *roster.BotProfile   `json:"leader,omitempty"`
}

type modelsView struct {
	TextModels  []string `json:"textModels"`
	ImageModels []string `json:"imageModels"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Messages())
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err, nil)
		return
	}

	ctx, cancel := s.dispatchContext(true)
	defer cancel()

	appended, err := s.session.Send(ctx, req.Text)
	if err != nil {
		respondError(w, err, appended)
		return
	}
	writeJSON(w, http.StatusOK, appended)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req chat.MediaRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err, nil)
		return
	}

	ctx, cancel := s.dispatchContext(req.Kind != media.KindVideo)
	defer cancel()

	appended, err := s.session.GenerateMedia(ctx, req)
	if err != nil {
		respondError(w, err, appended)
		return
	}
	writeJSON(w, http.StatusOK, appended)
}

func (s *Server) handleBots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Roster().Bots())
}

func (s *Server) handleBot(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleBotExport(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bot(w, r)
	if !ok {
		return
	}
	format := exportFormat(r)
	if format == roster.FormatMarkdown {
		writeDownload(w, b.ID+".md", "text/markdown; charset=utf-8", []byte(roster.ProfileMarkdown(b)))
		return
	}
	data, contentType, err := roster.Document(b, format)
	if err != nil {
		respondError(w, apperrors.NewValidationError(err.Error(), nil), nil)
		return
	}
	writeDownload(w, b.ID+"."+format, contentType, data)
}

func (s *Server) handleBotMedia(w http.ResponseWriter, r *http.Request) {
	id, kind := r.PathValue("id"), r.PathValue("kind")

	if kind == string(media.KindVideo) {
		ctx, cancel := s.dispatchContext(false)
		defer cancel()

		var statuses []string
		ref, err := s.session.CharacterVideo(ctx, id, func(line string) { statuses = append(statuses, line) })
		if err != nil {
			respondError(w, err, map[string]any{"status": statuses})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ref": ref, "status": statuses})
		return
	}

	imageKind, err := media.ParseCharacterImageKind(kind)
	if err != nil {
		respondError(w, err, nil)
		return
	}
	ctx, cancel := s.dispatchContext(true)
	defer cancel()

	ref, err := s.session.CharacterImage(ctx, id, imageKind)
	if err != nil {
		respondError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (s *Server) handleRosterMedia(w http.ResponseWriter, r *http.Request) {
	kind, err := media.ParseCharacterImageKind(r.PathValue("kind"))
	if err != nil {
		respondError(w, err, nil)
		return
	}
	ctx, cancel := s.dispatchContext(false)
	defer cancel()

	results, err := s.session.CharacterImages(ctx, kind)
	if err != nil {
		respondError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	related := s.session.Roster().Related(ids)
	if related == nil {
		related = []string{}
	}
	writeJSON(w, http.StatusOK, related)
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	reg := s.session.Roster()
	teams := reg.Teams()
	views := make([]teamView, 0, len(teams))
	for _, t := range teams {
		views = append(views, newTeamView(reg, t))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	t, ok := s.team(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newTeamView(s.session.Roster(), t))
}

func (s *Server) handleTeamExport(w http.ResponseWriter, r *http.Request) {
	t, ok := s.team(w, r)
	if !ok {
		return
	}
	view := newTeamView(s.session.Roster(), t)
	format := exportFormat(r)
	if format == roster.FormatMarkdown {
		writeDownload(w, t.ID+".md", "text/markdown; charset=utf-8", []byte(roster.TeamMarkdown(t, view.Members, view.Leader)))
		return
	}
	data, contentType, err := roster.Document(view, format)
	if err != nil {
		respondError(w, apperrors.NewValidationError(err.Error(), nil), nil)
		return
	}
	writeDownload(w, t.ID+"."+format, contentType, data)
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	if s.console == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, s.console.Entries())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var next chat.Settings
	if err := decodeJSON(r, &next); err != nil {
		respondError(w, err, nil)
		return
	}
	if err := s.session.SetSettings(r.Context(), next); err != nil {
		respondError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Settings())
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modelsView{TextModels: config.TextModels, ImageModels: config.ImageModels})
}

func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err, nil)
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		respondError(w, apperrors.NewValidationError("apiKey is required", nil), nil)
		return
	}
	s.credentials.SetCredential(key)
	s.log.InfoContext(r.Context(), "API credential updated")
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleExportChat(w http.ResponseWriter, r *http.Request) {
	writeDownload(w, chat.ExportFileName, "text/markdown; charset=utf-8", []byte(s.session.ExportMarkdown()))
}

func (s *Server) handleMediaFile(w http.ResponseWriter, r *http.Request) {
	a, err := s.files.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err, nil)
		return
	}
	f, err := os.Open(s.files.Path(a))
	if err != nil {
		s.log.ErrorContext(r.Context(), "Stored media file missing", "id", a.ID, "error", err)
		respondError(w, apperrors.NewNotFoundError(fmt.Sprintf("media %s not found", a.ID)), nil)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", a.MIMEType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeContent(w, r, a.FileName, a.CreatedAt(), f)
}

func (s *Server) bot(w http.ResponseWriter, r *http.Request) (*roster.BotProfile, bool) {
	id := r.PathValue("id")
	b, ok := s.session.Roster().Bot(id)
	if !ok {
		respondError(w, apperrors.NewNotFoundError(fmt.Sprintf("bot %q not found", id)), nil)
	}
	return b, ok
}

func (s *Server) team(w http.ResponseWriter, r *http.Request) (*roster.Team, bool) {
	id := r.PathValue("id")
	t, ok := s.session.Roster().Team(id)
	if !ok {
		respondError(w, apperrors.NewNotFoundError(fmt.Sprintf("team %q not found", id)), nil)
	}
	return t, ok
}

func newTeamView(reg *roster.Registry, t *roster.Team) teamView {
	leader, _ := reg.Bot(t.LeaderID)
	return teamView{Team: t, Members: reg.TeamMembers(t), Leader: leader}
}

func exportFormat(r *http.Request) string {
	switch f := strings.ToLower(r.URL.Query().Get("format")); f {
	case "", "markdown":
		return roster.FormatMarkdown
	case "yml":
		return roster.FormatYAML
	default:
		return f
	}
}

func writeDownload(w http.ResponseWriter, name, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
