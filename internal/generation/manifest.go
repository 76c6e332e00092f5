package generation

import (
	"context"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/llm"
	"golang.org/x/sync/errgroup"
)

// PendingFunc is called periodically while a generation is in flight.
type PendingFunc func(elapsed time.Duration)

// GenerateManifest produces the company manifest on a worker goroutine while
// the caller waits, calling onPending at the pending interval. The worker
// writes the result into the store once; it keeps running if ctx is cancelled
// so the manifest still lands.
func (c *Coordinator) GenerateManifest(ctx context.Context, sc Scope, onPending PendingFunc) (string, error) {
	prompt := manifestPrompt(sc.Store.Answers())
	workCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	var text string
	g.Go(func() error {
		out, err := c.generate(workCtx, sc, KindManifest, llm.Request{Prompt: prompt})
		if err != nil {
			return err
		}
		sc.Store.UpdateArtifacts(func(a *domain.Artifacts) {
			a.ManifestText = out
		})
		sc.Store.AppendExchange("Generera företagsmanifest", out)
		c.artifactReady(sc, domain.ArtifactManifest)
		text = out
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	ticker := time.NewTicker(c.pending)
	defer ticker.Stop()
	start := c.now()
	for {
		select {
		case err := <-done:
			if err != nil {
				return llm.FailureText(err), err
			}
			return text, nil
		case <-ticker.C:
			if onPending != nil {
				onPending(c.now().Sub(start))
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
