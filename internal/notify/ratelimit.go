package notify

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Channel
	limiter *rate.Limiter
}

// RateLimited puts a token bucket of perSecond sends (burst = perSecond) in front of next.
// Waiting past the caller's deadline fails the send. perSecond <= 0 disables limiting.
func RateLimited(next Channel, perSecond int) Channel {
	if perSecond <= 0 {
		return next
	}
	return &rateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

func (r *rateLimited) Name() string { return r.next.Name() }

func (r *rateLimited) Send(ctx context.Context, to Recipient, msg Message) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Send(ctx, to, msg)
}
