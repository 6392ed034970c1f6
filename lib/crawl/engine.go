package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arv-anshul/hockey/lib/telemetry"
	"github.com/go-resty/resty/v2"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"
)

type Options struct {
	UserAgent string
	// zero means the 30s default
	Timeout       time.Duration
	RetryCount    int
	RetryWaitTime time.Duration
	// zero disables the politeness limiter
	RequestsPerSecond float64
}

type Stats struct {
	Requests int
	Items    int
}

type Engine struct {
	http    *resty.Client
	limiter *rate.Limiter
	jobs    []Job

	mu    sync.Mutex
	stats map[string]Stats
}

func New(opts Options) *Engine {
	client := resty.New()
	if opts.UserAgent != "" {
		client.SetHeader("user-agent", opts.UserAgent)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)
	client.SetRetryCount(opts.RetryCount)
	if opts.RetryWaitTime > 0 {
		client.SetRetryWaitTime(opts.RetryWaitTime)
	}
	telemetry.InstrumentResty(client, "lib/crawl")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Engine{
		http:    client,
		limiter: limiter,
		stats:   map[string]Stats{},
	}
}

func (e *Engine) Register(job Job) {
	e.jobs = append(e.jobs, job)
	e.stats[job.Name] = Stats{}
}

// Run drains every registered job and closes its sink. Fetch and parse
// failures are logged and skipped; only sink failures and cancellation
// surface as errors.
func (e *Engine) Run(ctx context.Context) error {
	var (
		mu      sync.Mutex
		errlist []error
	)

	wg := conc.NewWaitGroup()
	for _, job := range e.jobs {
		job := job
		wg.Go(func() {
			err := e.runJob(ctx, job)
			if err != nil {
				mu.Lock()
				errlist = append(errlist, fmt.Errorf("job %s: %w", job.Name, err))
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	return errors.Join(errlist...)
}

func (e *Engine) runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		closeErr := job.Sink.Close()
		if err == nil {
			err = closeErr
		}
	}()

	frontier := append([]Request(nil), job.Seeds...)
	seen := map[string]bool{}

	for len(frontier) > 0 {
		req := frontier[0]
		frontier = frontier[1:]

		if seen[req.URL] {
			slog.Debug("filtered duplicate request", "job", job.Name, "url", req.URL)
			continue
		}
		seen[req.URL] = true

		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		res, err := e.http.R().SetContext(ctx).Get(req.URL)
		if err != nil {
			slog.Error("fetch failed", "job", job.Name, "url", req.URL, "err", err)
			continue
		}
		e.countRequest(job.Name)

		if !res.IsSuccess() {
			slog.Error("unexpected response status",
				"job", job.Name, "url", req.URL, "status", res.StatusCode())
			continue
		}

		result, err := job.Parse(ctx, &Response{
			Request:    req,
			StatusCode: res.StatusCode(),
			Body:       res.Body(),
		})
		if err != nil {
			slog.Error("parse failed", "job", job.Name, "url", req.URL, "err", err)
			continue
		}

		for _, item := range result.Items {
			if err := job.Sink.Write(item); err != nil {
				return err
			}
		}
		e.countItems(job.Name, len(result.Items))
		frontier = append(frontier, result.Next...)
	}

	return nil
}

func (e *Engine) countRequest(job string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats[job]
	s.Requests++
	e.stats[job] = s
}

func (e *Engine) countItems(job string, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats[job]
	s.Items += n
	e.stats[job] = s
}

// Stats reports per-job request and record counts for the run so far.
func (e *Engine) Stats() map[string]Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]Stats, len(e.stats))
	for k, v := range e.stats {
		out[k] = v
	}
	return out
}
