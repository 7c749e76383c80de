package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/edgard/personachat/internal/errors"
)

// Manifest locations relative to the roster source.
const (
	BotManifest  = "bots/bot-list.json"
	TeamManifest = "teams/team-list.json"

	maxDocumentSize = 1 << 20
)

// Source fetches roster documents by slash-separated relative name.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// NewSource returns an HTTP source for http(s) locations and a directory
// source otherwise.
func NewSource(location string, client *http.Client) (Source, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		base, err := url.Parse(strings.TrimRight(location, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid roster url %q: %w", location, err)
		}
		if client == nil {
			client = http.DefaultClient
		}
		return &HTTPSource{base: base, client: client}, nil
	}
	return DirSource(location), nil
}

// HTTPSource reads documents with plain GET requests below a base URL.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, name string) (data []byte, err error) {
	ref, err := url.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("invalid document name %q: %w", name, err)
	}
	target := s.base.ResolveReference(ref).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", target, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body from %s: %w", target, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: %s", target, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
}

// DirSource reads documents from a local directory.
type DirSource string

// Fetch implements Source.
func (d DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := path.Clean("/" + name)
	return os.ReadFile(filepath.Join(string(d), filepath.FromSlash(clean)))
}

// Loader reads both manifests and every document they reference.
type Loader struct {
	source      Source
	concurrency int
	log         *slog.Logger
	validate    *validator.Validate
}

// NewLoader creates a Loader. concurrency caps parallel document fetches.
func NewLoader(source Source, concurrency int, log *slog.Logger) *Loader {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loader{
		source:      source,
		concurrency: concurrency,
		log:         log.With("component", "roster_loader"),
		validate:    validator.New(),
	}
}

// Load fetches bots and teams concurrently and builds a Registry. Any fetch,
// parse or validation failure is a data-load error naming the document.
func (l *Loader) Load(ctx context.Context) (*Registry, error) {
	startTime := time.Now()

	var bots []*BotProfile
	var teams []*Team

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bots, err = loadAll[BotProfile](gCtx, l, "bots", BotManifest)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = loadAll[Team](gCtx, l, "teams", TeamManifest)
		return err
	})
	if err := g.Wait(); err != nil {
		l.log.ErrorContext(ctx, "Failed to load roster", "error", err)
		return nil, err
	}

	reg, err := NewRegistry(bots, teams)
	if err != nil {
		return nil, apperrors.NewDataLoadError("invalid roster", err)
	}

	l.log.InfoContext(ctx, "Roster loaded",
		"bots", len(bots), "teams", len(teams), "duration", time.Since(startTime))
	return reg, nil
}

func loadAll[T any](ctx context.Context, l *Loader, dir, manifest string) ([]*T, error) {
	raw, err := l.source.Fetch(ctx, manifest)
	if err != nil {
		return nil, apperrors.NewDataLoadError("failed to fetch "+manifest, err)
	}
	var files []string
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, apperrors.NewDataLoadError("failed to parse "+manifest, err)
	}

	out := make([]*T, len(files))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, file := range files {
		g.Go(func() error {
			name := dir + "/" + file
			data, err := l.source.Fetch(gCtx, name)
			if err != nil {
				return apperrors.NewDataLoadError("failed to fetch "+name, err)
			}
			var doc T
			if err := json.Unmarshal(data, &doc); err != nil {
				return apperrors.NewDataLoadError("failed to parse "+name, err)
			}
			if err := l.validate.Struct(&doc); err != nil {
				return apperrors.NewDataLoadError("invalid document "+name, err)
			}
			out[i] = &doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
