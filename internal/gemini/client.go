// Package gemini implements integration with Google's Gemini, Imagen and Veo
// models through the genai SDK. Everything above this package talks to the
// Client interface, so the SDK types never leak into orchestration code.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/personachat/internal/config"
	apperrors "github.com/edgard/personachat/internal/errors"
)

// Client defines the model operations used throughout the application.
type Client interface {
	// GenerateText runs one text completion, optionally schema-constrained or
	// grounded.
	GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error)

	// GenerateImage returns the first generated image.
	GenerateImage(ctx context.Context, req ImageRequest) (*Image, error)

	// StartVideo submits a video job and returns its handle.
	StartVideo(ctx context.Context, req VideoRequest) (*VideoJob, error)

	// PollVideo re-queries a job's status.
	PollVideo(ctx context.Context, job *VideoJob) (*VideoJob, error)

	// Download fetches a generated file, authenticating with the API key.
	Download(ctx context.Context, uri string) ([]byte, string, error)
}

type sdkClient struct {
	genaiClient   *genai.Client
	httpClient    *http.Client
	apiKey        string
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	maxRetries    int
	retryDelay    time.Duration
}

// NewClient creates a Gemini client for apiKey with the provided configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, apiKey string, log *slog.Logger) (Client, error) {
	if apiKey == "" {
		return nil, apperrors.ErrCredentialRequired
	}
	if log == nil {
		log = slog.Default()
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,

		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "text_model", cfg.TextModel, "max_retries", cfg.MaxRetries)
	return &sdkClient{
		genaiClient: gi,
		// Downloads stream whole videos; they are bounded by ctx rather than
		// the API call timeout.
		httpClient:    &http.Client{},
		apiKey:        apiKey,
		log:           logger,
		contentConfig: baseCfg,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
	}, nil
}

// withRetries runs call, retrying only 500/503 API errors up to maxRetries
// times. The final error is classified for credential problems.
func withRetries[T any](ctx context.Context, c *sdkClient, op string, call func() (T, error)) (T, error) {
	var zero T
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		var out T
		out, err = call()
		if err == nil {
			return out, nil
		}

		if code, ok := apiErrorCode(err); ok && (code == http.StatusInternalServerError || code == http.StatusServiceUnavailable) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call due to retriable APIError",
					"operation", op, "attempt", i+1, "delay", c.retryDelay, "code", code)
				select {
				case <-ctx.Done():
					return zero, ctx.Err()
				case <-time.After(c.retryDelay):
				}
				continue
			}
		}
		break
	}

	c.log.ErrorContext(ctx, "Gemini API call failed", "operation", op, "error", err)
	return zero, classify(op, err)
}

func toContents(turns []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		var role genai.Role = genai.RoleUser
		if t.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return contents
}

func (c *sdkClient) GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	c.log.DebugContext(ctx, "Generating text", "model", req.Model, "turns", len(req.Turns), "schema", req.Schema != nil, "grounding", req.Grounding)

	copyCfg := *c.contentConfig
	if req.SystemInstruction != "" {
		copyCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}}
	}
	if req.Schema != nil {
		copyCfg.ResponseMIMEType = "application/json"
		copyCfg.ResponseSchema = req.Schema
	}
	if req.Grounding {
		copyCfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	contents := toContents(req.Turns)
	resp, err := withRetries(ctx, c, "generate_text", func() (*genai.GenerateContentResponse, error) {
		return c.genaiClient.Models.GenerateContent(ctx, req.Model, contents, &copyCfg)
	})
	if err != nil {
		return nil, err
	}

	text, err := c.extractTextFromResponse(ctx, resp)
	if err != nil {
		return nil, err
	}
	return &TextResponse{Text: text, Citations: extractCitations(resp), Raw: resp}, nil
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini returned no response")
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("request blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)

		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonStop {
			return "", fmt.Errorf("gemini returned no content, finish reason: %s", finishReason)
		}
		return "", errors.New("gemini returned empty content")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini returned empty text")
	}
	return text, nil
}

// extractCitations collects the web sources of the first candidate.
func extractCitations(resp *genai.GenerateContentResponse) []Citation {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var out []Citation
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		out = append(out, Citation{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return out
}

func (c *sdkClient) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	c.log.DebugContext(ctx, "Generating image", "model", req.Model, "aspect_ratio", req.AspectRatio)

	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
		AspectRatio:    req.AspectRatio,
	}
	resp, err := withRetries(ctx, c, "generate_image", func() (*genai.GenerateImagesResponse, error) {
		return c.genaiClient.Models.GenerateImages(ctx, req.Model, req.Prompt, cfg)
	})
	if err != nil {
		return nil, err
	}

	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, errors.New("API returned no images")
	}
	img := resp.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return &Image{Data: img.ImageBytes, MIMEType: mime}, nil
}

func (c *sdkClient) StartVideo(ctx context.Context, req VideoRequest) (*VideoJob, error) {
	c.log.DebugContext(ctx, "Submitting video job", "model", req.Model, "resolution", req.Resolution)

	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		Resolution:     req.Resolution,
		AspectRatio:    req.AspectRatio,
	}
	op, err := withRetries(ctx, c, "start_video", func() (*genai.GenerateVideosOperation, error) {
		return c.genaiClient.Models.GenerateVideos(ctx, req.Model, req.Prompt, nil, cfg)
	})
	if err != nil {
		return nil, err
	}
	return jobFromOperation(op), nil
}

func (c *sdkClient) PollVideo(ctx context.Context, job *VideoJob) (*VideoJob, error) {
	if job == nil || job.op == nil {
		return nil, errors.New("video job has no backend operation")
	}
	op, err := withRetries(ctx, c, "poll_video", func() (*genai.GenerateVideosOperation, error) {
		return c.genaiClient.Operations.GetVideosOperation(ctx, job.op, nil)
	})
	if err != nil {
		return nil, err
	}
	return jobFromOperation(op), nil
}

func jobFromOperation(op *genai.GenerateVideosOperation) *VideoJob {
	job := &VideoJob{Name: op.Name, Done: op.Done, op: op}
	if len(op.Error) > 0 {
		job.Error = operationErrorMessage(op.Error)
	}
	if op.Response != nil && len(op.Response.GeneratedVideos) > 0 {
		if v := op.Response.GeneratedVideos[0].Video; v != nil {
			job.URI = v.URI
		}
	}
	return job
}

func operationErrorMessage(e map[string]any) string {
	if msg, ok := e["message"].(string); ok && msg != "" {
		return msg
	}
	return fmt.Sprintf("%v", e)
}

func (c *sdkClient) Download(ctx context.Context, uri string) (data []byte, mime string, err error) {
	target, err := withKey(uri, c.apiKey)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download file: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close download body: %w", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", classify("download", fmt.Errorf("failed to download video: %s", resp.Status), resp.StatusCode)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read download body: %w", err)
	}
	c.log.DebugContext(ctx, "File downloaded", "size", len(data))
	return data, resp.Header.Get("Content-Type"), nil
}

// withKey adds the API key as the key query parameter of uri.
func withKey(uri, apiKey string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid download uri: %w", err)
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
