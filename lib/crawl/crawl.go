// Package crawl is a small fetch-and-parse engine. A job supplies seed
// requests, a parse callback and an output sink; the engine owns fetching,
// retry, politeness delay, duplicate-request filtering and sink lifecycle.
//
// Each job's frontier is drained in FIFO order on a single goroutine, so a
// parse callback may keep per-job state (counters and the like) without
// locking. Distinct jobs run concurrently.
package crawl

import "context"

type Request struct {
	URL string
	// Meta carries per-request context back into the parse callback, e.g.
	// the page number while paginating or the team id of a roster page.
	Meta map[string]string
}

type Response struct {
	Request    Request
	StatusCode int
	Body       []byte
}

// ParseResult is what a parse callback gives back: records for the job's
// sink and follow-up requests for its frontier.
type ParseResult struct {
	Items []any
	Next  []Request
}

type ParseFunc func(ctx context.Context, res *Response) (ParseResult, error)

type Job struct {
	Name  string
	Seeds []Request
	Parse ParseFunc
	Sink  Sink
}
