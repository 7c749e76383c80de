package media

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/personachat/internal/console"
	apperrors "github.com/edgard/personachat/internal/errors"
	"github.com/edgard/personachat/internal/gemini"
)

// State is the phase of a video job.
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller drives a submitted video job to a terminal state. It waits a fixed
// interval before every re-query and gives up after maxPolls re-queries.
type Poller struct {
	interval time.Duration
	maxPolls int
	sleep    SleepFunc
	sink     console.Sink
	log      *slog.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithSleep replaces the wait between re-queries.
func WithSleep(s SleepFunc) PollerOption {
	return func(p *Poller) {
		p.sleep = s
	}
}

// NewPoller creates a Poller.
func NewPoller(interval time.Duration, maxPolls int, sink console.Sink, log *slog.Logger, opts ...PollerOption) *Poller {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = console.Discard{}
	}
	p := &Poller{
		interval: interval,
		maxPolls: maxPolls,
		sleep:    sleepContext,
		sink:     sink,
		log:      log.With("component", "video_poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls job until it is done, fails, or exceeds the poll budget. On
// success the returned job carries the download URI. status receives the
// in-progress line once, and the downloading line when the job completes.
func (p *Poller) Run(ctx context.Context, client gemini.Client, job *gemini.VideoJob, status StatusFunc) (*gemini.VideoJob, error) {
	if status == nil {
		status = func(string) {}
	}

	p.sink.Add(ctx, console.LevelGeminiResponse, "Video Gen Initial Response", job)
	state := p.transition(ctx, job, StateSubmitted, StatePolling)
	status(StatusInProgress)

	polls := 0
	for !job.Done {
		if polls >= p.maxPolls {
			p.transition(ctx, job, state, StateTimedOut)
			return nil, apperrors.NewPollTimeoutError(polls)
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, err
		}

		next, err := client.PollVideo(ctx, job)
		if err != nil {
			p.log.ErrorContext(ctx, "Video status query failed", "job", job.Name, "attempt", polls+1, "error", err)
			p.transition(ctx, job, state, StateFailed)
			return nil, err
		}
		job = next
		polls++
		p.sink.Add(ctx, console.LevelInfo, "Polling video status", job)
	}

	switch {
	case job.Error != "":
		p.transition(ctx, job, state, StateFailed)
		return nil, apperrors.NewPollError(job.Error)
	case job.URI == "":
		p.transition(ctx, job, state, StateFailed)
		return nil, apperrors.NewPollError("Video generation succeeded but no download link was provided.")
	}

	p.transition(ctx, job, state, StateCompleted)
	p.log.InfoContext(ctx, "Video job completed", "job", job.Name, "polls", polls)
	status(StatusDownloading)
	return job, nil
}

func (p *Poller) transition(ctx context.Context, job *gemini.VideoJob, from, to State) State {
	p.log.DebugContext(ctx, "Video job state changed", "job", job.Name, "from", from, "to", to)
	return to
}
