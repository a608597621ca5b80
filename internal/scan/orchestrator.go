// Package scan runs one end-to-end item scan: a mandatory vision
// analysis and, when configured, a best-effort reverse image search,
// launched concurrently and joined into a single result.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"itemscan/internal/llm"
	"itemscan/internal/search"
	"itemscan/internal/storage"
)

// Cleanup gets its own deadline so a temporary upload is removed even
// when the search step already timed out.
const discardTimeout = 10 * time.Second

// Request is one validated scan: decoded image bytes plus the declared
// media type, already defaulted to image/jpeg by the caller.
type Request struct {
	Image     []byte
	MediaType string
}

// Result joins the vision analysis with the best-effort web matches.
// WebResults is never nil; it is empty when enrichment was disabled or
// failed.
type Result struct {
	Analysis   llm.Analysis
	WebResults []search.Match
}

// Store is the temporary image storage collaborator.
type Store interface {
	Store(ctx context.Context, data []byte, mediaType string) (storage.Blob, error)
	Discard(ctx context.Context, blob storage.Blob) error
}

// Searcher is the reverse image search collaborator.
type Searcher interface {
	Search(ctx context.Context, imageURL string) ([]search.Match, error)
}

// Orchestrator fans a scan out to the vision service and the
// store→search chain. A nil store or searcher disables enrichment:
// the scan then resolves to an empty match list without any network
// call to those providers.
type Orchestrator struct {
	analyzer      llm.Analyzer
	store         Store
	searcher      Searcher
	visionTimeout time.Duration
}

func New(analyzer llm.Analyzer, store Store, searcher Searcher, visionTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		analyzer:      analyzer,
		store:         store,
		searcher:      searcher,
		visionTimeout: visionTimeout,
	}
}

// Scan launches both chains concurrently and waits for both to
// settle, so wall-clock latency is the slower chain, not their sum.
// The vision chain is mandatory and its error fails the scan. The
// enrichment chain absorbs every failure into an empty match list.
func (o *Orchestrator) Scan(ctx context.Context, req Request) (*Result, error) {
	result := &Result{WebResults: []search.Match{}}

	// A plain group, not WithContext: a vision failure must not cancel
	// the enrichment chain mid-upload, and vice versa. The two chains
	// write disjoint result fields, so no locking is needed.
	var g errgroup.Group

	g.Go(func() error {
		actx := ctx
		if o.visionTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, o.visionTimeout)
			defer cancel()
		}
		analysis, err := o.analyzer.Analyze(actx, req.Image, req.MediaType)
		if err != nil {
			return err
		}
		result.Analysis = analysis
		return nil
	})

	g.Go(func() error {
		if o.store == nil || o.searcher == nil {
			return nil
		}
		matches, err := o.enrich(ctx, req)
		if err != nil {
			// Best-effort enrichment: never fails the scan.
			log.Warn().Err(err).Msg("web search enrichment failed")
			return nil
		}
		result.WebResults = matches
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// enrich uploads the image, searches for visual matches against the
// temporary URL, and removes the upload on every exit path of the
// search step.
func (o *Orchestrator) enrich(ctx context.Context, req Request) ([]search.Match, error) {
	blob, err := o.store.Store(ctx, req.Image, req.MediaType)
	if err != nil {
		return nil, fmt.Errorf("failed to store temporary image: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
		defer cancel()
		if err := o.store.Discard(dctx, blob); err != nil {
			log.Warn().Err(err).Str("key", blob.Key).Msg("failed to discard temporary image")
		}
	}()

	return o.searcher.Search(ctx, blob.URL)
}
