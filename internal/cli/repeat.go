package cli

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	volley "github.com/wesleyorama2/volley/http"
	"github.com/wesleyorama2/volley/internal/stats"
)

// repeat sends n requests made by build, at most concurrency at a time and,
// when rps is positive, no faster than rps per second. Failed requests are
// counted in the summary rather than returned.
func (s *session) repeat(ctx context.Context, build func() (*volley.Request, error), n, concurrency int, rps float64) (stats.Summary, error) {
	recorder := stats.NewRecorder()

	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < n; i++ {
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				break
			}
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			req, err := build()
			if err != nil {
				return err
			}
			start := time.Now()
			ok, size := s.measure(gctx, req)
			recorder.Record(time.Now(), time.Since(start), ok, size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats.Summary{}, err
	}
	if err := ctx.Err(); err != nil {
		return recorder.Summary(), err
	}
	return recorder.Summary(), nil
}

// measure sends req and reports whether it succeeded and how many body
// bytes it returned.
func (s *session) measure(ctx context.Context, req *volley.Request) (bool, int64) {
	res, err := req.Response(ctx)
	if err != nil {
		if ctx.Err() != nil {
			req.Abort()
		}
		s.log.Debug("request failed", "request_id", req.ID(), "error", err)
		return false, 0
	}
	body, err := res.GetBody()
	if err != nil {
		return false, int64(len(body))
	}
	return !res.IsError(), int64(len(body))
}
