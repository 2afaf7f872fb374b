package vision

import (
	"context"
	"time"

	"sjsage522/consoledealworker/logger"
)

// DefaultTimeout bounds a single image classification
const DefaultTimeout = 8 * time.Second

// FailOpen wraps a classifier so that any failure yields an indeterminate
// judgment instead of an error. It never returns a non-nil error.
type FailOpen struct {
	inner   Classifier
	timeout time.Duration
}

// NewFailOpen wraps inner with a timeout; a non-positive timeout uses
// DefaultTimeout
func NewFailOpen(inner Classifier, timeout time.Duration) *FailOpen {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FailOpen{inner: inner, timeout: timeout}
}

type classifyResult struct {
	judgment Judgment
	err      error
}

// Classify returns the inner judgment, or an indeterminate one if the inner
// classifier errors or does not answer within the timeout
func (f *FailOpen) Classify(ctx context.Context, imageRef string) (Judgment, error) {
	if f.inner == nil {
		return indeterminate("no classifier configured"), nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// Buffered so a classifier that ignores ctx does not leak its goroutine
	// on a blocked send.
	done := make(chan classifyResult, 1)
	go func() {
		j, err := f.inner.Classify(ctx, imageRef)
		done <- classifyResult{judgment: j, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil {
			return f.timedOut(ctx, imageRef), nil
		}
		if res.err != nil {
			logger.ForVision().Warn().
				Err(res.err).
				Str("image", imageRef).
				Msg("Image classifier unavailable, letting listing through")
			return indeterminate(res.err.Error()), nil
		}
		return res.judgment, nil
	case <-ctx.Done():
		return f.timedOut(ctx, imageRef), nil
	}
}

func (f *FailOpen) timedOut(ctx context.Context, imageRef string) Judgment {
	logger.ForVision().Warn().
		Dur("timeout", f.timeout).
		Str("image", imageRef).
		Msg("Image classifier timed out, letting listing through")
	return indeterminate("timeout: " + ctx.Err().Error())
}

func indeterminate(cause string) Judgment {
	return Judgment{Verdict: VerdictIndeterminate, Cause: cause}
}
