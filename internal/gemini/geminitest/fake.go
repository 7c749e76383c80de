// Package geminitest provides a scriptable in-memory gemini.Client for tests.
package geminitest

import (
	"context"
	"errors"
	"sync"

	"github.com/edgard/personachat/internal/gemini"
)

// PNG is a minimal valid PNG header, enough for content sniffing.
var PNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// Result is one scripted text response.
type Result struct {
	Text      string
	Citations []gemini.Citation
	Err       error
}

// Fake records every call and answers from scripts or the Func hooks.
// Text calls consume Texts in order; once exhausted they answer "ok".
type Fake struct {
	mu sync.Mutex

	Texts []Result

	TextFunc       func(ctx context.Context, req gemini.TextRequest) (*gemini.TextResponse, error)
	ImageFunc      func(ctx context.Context, req gemini.ImageRequest) (*gemini.Image, error)
	StartVideoFunc func(ctx context.Context, req gemini.VideoRequest) (*gemini.VideoJob, error)
	PollVideoFunc  func(ctx context.Context, job *gemini.VideoJob) (*gemini.VideoJob, error)
	DownloadFunc   func(ctx context.Context, uri string) ([]byte, string, error)

	TextRequests  []gemini.TextRequest
	ImageRequests []gemini.ImageRequest
	VideoRequests []gemini.VideoRequest
	Polls         int
	Downloads     []string
}

var _ gemini.Client = (*Fake)(nil)

// Calls returns the total number of backend calls made.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.TextRequests) + len(f.ImageRequests) + len(f.VideoRequests) + f.Polls + len(f.Downloads)
}

// TextRequestsSnapshot returns a copy of the recorded text requests.
func (f *Fake) TextRequestsSnapshot() []gemini.TextRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gemini.TextRequest(nil), f.TextRequests...)
}

func (f *Fake) GenerateText(ctx context.Context, req gemini.TextRequest) (*gemini.TextResponse, error) {
	f.mu.Lock()
	f.TextRequests = append(f.TextRequests, req)
	fn := f.TextFunc
	var next *Result
	if fn == nil && len(f.Texts) > 0 {
		next = &f.Texts[0]
		f.Texts = f.Texts[1:]
	}
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if next == nil {
		return &gemini.TextResponse{Text: "ok"}, nil
	}
	if next.Err != nil {
		return nil, next.Err
	}
	return &gemini.TextResponse{Text: next.Text, Citations: next.Citations, Raw: next.Text}, nil
}

func (f *Fake) GenerateImage(ctx context.Context, req gemini.ImageRequest) (*gemini.Image, error) {
	f.mu.Lock()
	f.ImageRequests = append(f.ImageRequests, req)
	fn := f.ImageFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &gemini.Image{Data: PNG, MIMEType: "image/png"}, nil
}

func (f *Fake) StartVideo(ctx context.Context, req gemini.VideoRequest) (*gemini.VideoJob, error) {
	f.mu.Lock()
	f.VideoRequests = append(f.VideoRequests, req)
	fn := f.StartVideoFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return gemini.NewVideoJob("operations/fake", false, "", ""), nil
}

func (f *Fake) PollVideo(ctx context.Context, job *gemini.VideoJob) (*gemini.VideoJob, error) {
	if job == nil {
		return nil, errors.New("nil job")
	}
	f.mu.Lock()
	f.Polls++
	fn := f.PollVideoFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, job)
	}
	return gemini.NewVideoJob(job.Name, true, "", "https://files.example/"+job.Name+":download?alt=media"), nil
}

func (f *Fake) Download(ctx context.Context, uri string) ([]byte, string, error) {
	f.mu.Lock()
	f.Downloads = append(f.Downloads, uri)
	fn := f.DownloadFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, uri)
	}
	return []byte("fake-mp4"), "video/mp4", nil
}
