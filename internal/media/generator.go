package media

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/personachat/internal/console"
	apperrors "github.com/edgard/personachat/internal/errors"
	"github.com/edgard/personachat/internal/gemini"
	"github.com/edgard/personachat/internal/prompt"
)

// ImageJob describes one image to generate. Prompt is enhanced with the
// lighting suffix before it is sent.
type ImageJob struct {
	Model       string
	Prompt      string
	AspectRatio string
	Label       string
	// Title names the request in the console, e.g. "Chat".
	Title string
}

// VideoJob describes one video to generate.
type VideoJob struct {
	Model      string
	Prompt     string
	Resolution string
	Label      string
	Title      string
	// Raw skips the lighting suffix.
	Raw bool
}

// Generator turns prompts into stored artifacts.
type Generator struct {
	store  *Store
	poller *Poller
	sink   console.Sink
	log    *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(store *Store, poller *Poller, sink console.Sink, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = console.Discard{}
	}
	return &Generator{
		store:  store,
		poller: poller,
		sink:   sink,
		log:    log.With("component", "media_generator"),
	}
}

// Image generates and stores one image.
func (g *Generator) Image(ctx context.Context, client gemini.Client, job ImageJob) (*Ref, error) {
	if job.AspectRatio == "" {
		job.AspectRatio = gemini.AspectSquare
	}
	if !gemini.ValidAspect(job.AspectRatio) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported aspect ratio %q", job.AspectRatio), nil)
	}
	title := job.Title
	if title == "" {
		title = "Chat"
	}

	req := gemini.ImageRequest{
		Model:       job.Model,
		Prompt:      prompt.EnhanceImage(job.Prompt),
		AspectRatio: job.AspectRatio,
	}
	g.sink.Add(ctx, console.LevelImagenRequest, "Imagen Request ("+title+")", req)

	img, err := client.GenerateImage(ctx, req)
	if err != nil {
		g.sink.Add(ctx, console.LevelError, "Imagen Failed ("+title+")", map[string]any{"error": err.Error()})
		return nil, apperrors.NewMediaError("image generation failed", err)
	}

	a, err := g.store.Save(ctx, KindImage, img.MIMEType, job.Label, img.Data)
	if err != nil {
		g.sink.Add(ctx, console.LevelError, "Imagen Failed ("+title+")", map[string]any{"step": "store", "error": err.Error()})
		return nil, apperrors.NewMediaError("failed to store image", err)
	}

	g.sink.Add(ctx, console.LevelImagenResponse, "Imagen Response ("+title+")",
		map[string]any{"id": a.ID, "mimeType": a.MIMEType, "size": a.Size})
	g.log.InfoContext(ctx, "Image generated", "id", a.ID, "label", job.Label, "size", a.Size)
	return a.Ref(), nil
}

// Video submits a video job, polls it to completion, downloads and stores
// the result. Every phase is reported through status.
func (g *Generator) Video(ctx context.Context, client gemini.Client, job VideoJob, status StatusFunc) (ref *Ref, err error) {
	if status == nil {
		status = func(string) {}
	}
	title := "Video Gen"
	if job.Title != "" {
		title += ": " + job.Title
	}

	defer func() {
		if err != nil {
			status(StatusError(err))
			g.sink.Add(ctx, console.LevelError, title+" Failed", map[string]any{"error": err.Error()})
			if !apperrors.IsMediaFailure(err) {
				err = apperrors.NewMediaError("video generation failed", err)
			}
		}
	}()

	req := gemini.VideoRequest{
		Model:       job.Model,
		Prompt:      job.Prompt,
		Resolution:  job.Resolution,
		AspectRatio: gemini.AspectWide,
	}
	if !job.Raw {
		req.Prompt = prompt.EnhanceVideo(job.Prompt)
	}
	g.sink.Add(ctx, console.LevelGeminiRequest, title+" Request", req)

	status(StatusSubmitting)
	submitted, err := client.StartVideo(ctx, req)
	if err != nil {
		return nil, err
	}

	done, err := g.poller.Run(ctx, client, submitted, status)
	if err != nil {
		return nil, err
	}

	data, mime, err := client.Download(ctx, done.URI)
	if err != nil {
		return nil, err
	}
	if mime == "" {
		mime = "video/mp4"
	}

	a, err := g.store.Save(ctx, KindVideo, mime, job.Label, data)
	if err != nil {
		return nil, err
	}

	status(StatusComplete)
	g.log.InfoContext(ctx, "Video generated", "id", a.ID, "label", job.Label, "size", a.Size)
	return a.Ref(), nil
}
