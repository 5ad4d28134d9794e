// Package pipeline runs the per-event decode, classify and enrich flow for
// account updates.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/walletwatch/service/activity"
	"github.com/brojonat/walletwatch/service/enrich"
	"github.com/brojonat/walletwatch/service/metrics"
	natspkg "github.com/brojonat/walletwatch/service/nats"
	"github.com/brojonat/walletwatch/service/solana"
)

// Outcomes recorded per handled event.
const (
	OutcomeInvalid   = "invalid"
	OutcomeBalance   = "balance"
	OutcomeDuplicate = "duplicate"
	OutcomeUndecoded = "undecoded"
	OutcomeEnriched  = "enriched"
	OutcomePanic     = "panic"
)

// TransactionFetcher decodes a signature into a record. *activity.Fetcher
// satisfies it.
type TransactionFetcher interface {
	Fetch(ctx context.Context, signature, wallet string) *activity.TransactionRecord
}

// RecordEnricher builds an EnrichedRecord. *enrich.Enricher satisfies it.
type RecordEnricher interface {
	Enrich(ctx context.Context, wallet string, rec *activity.TransactionRecord, update *activity.AccountUpdate) *enrich.EnrichedRecord
}

// Renderer writes reports. *presenter.Presenter satisfies it.
type Renderer interface {
	Render(w io.Writer, rec *enrich.EnrichedRecord) error
	RenderBalance(w io.Writer, u *activity.AccountUpdate) error
}

// Config controls a Pipeline.
type Config struct {
	// Concurrency bounds in-flight events; 0 means unbounded.
	Concurrency int
	// DedupCapacity sizes the SeenSet; 0 disables dedup.
	DedupCapacity int
	// Output receives rendered reports; nil disables rendering.
	Output io.Writer
}

// Pipeline handles update events. Each event is processed on its own
// goroutine; events may complete out of arrival order.
type Pipeline struct {
	normalizer *activity.Normalizer
	fetcher    TransactionFetcher
	enricher   RecordEnricher
	renderer   Renderer
	publisher  natspkg.Publisher

	seen *SeenSet
	sem  chan struct{}
	wg   sync.WaitGroup

	out   io.Writer
	outMu sync.Mutex

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Pipeline. publisher may be nil to skip publishing.
func New(
	cfg Config,
	normalizer *activity.Normalizer,
	fetcher TransactionFetcher,
	enricher RecordEnricher,
	renderer Renderer,
	publisher natspkg.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Pipeline {
	p := &Pipeline{
		normalizer: normalizer,
		fetcher:    fetcher,
		enricher:   enricher,
		renderer:   renderer,
		publisher:  publisher,
		seen:       NewSeenSet(cfg.DedupCapacity),
		out:        cfg.Output,
		metrics:    m,
		logger:     logger,
	}
	if cfg.Concurrency > 0 {
		p.sem = make(chan struct{}, cfg.Concurrency)
	}
	return p
}

// Run consumes events until ctx is done or events is closed, then waits for
// in-flight events to finish.
func (p *Pipeline) Run(ctx context.Context, events <-chan *solana.UpdateEvent) error {
	defer p.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev == nil || ev.Ping {
				continue
			}
			if !p.acquire(ctx) {
				return ctx.Err()
			}
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				defer p.release()
				p.Handle(ctx, ev)
			}()
		}
	}
}

func (p *Pipeline) acquire(ctx context.Context) bool {
	if p.sem == nil {
		return true
	}
	select {
	case p.sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Pipeline) release() {
	if p.sem != nil {
		<-p.sem
	}
}

// Handle processes a single event synchronously and returns its outcome.
// A panic is recovered and falls back to the balance-only render.
func (p *Pipeline) Handle(ctx context.Context, ev *solana.UpdateEvent) (outcome string) {
	start := time.Now()
	if p.metrics != nil {
		p.metrics.AddPipelineInFlight(1)
	}

	var update *activity.AccountUpdate
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomePanic
			p.logger.ErrorContext(ctx, "event handler panicked",
				"panic", fmt.Sprint(r),
				"signature", signatureOf(update),
			)
			if update != nil {
				p.renderBalance(ctx, update)
			}
		}
		if p.metrics != nil {
			p.metrics.AddPipelineInFlight(-1)
			p.metrics.RecordPipelineRun(outcome, time.Since(start).Seconds())
		}
	}()

	var ok bool
	update, ok = p.normalizer.Normalize(ev)
	if !ok {
		return OutcomeInvalid
	}
	return p.process(ctx, update)
}

func (p *Pipeline) process(ctx context.Context, update *activity.AccountUpdate) string {
	if !update.HasSignature() {
		p.renderBalance(ctx, update)
		return OutcomeBalance
	}
	key := dedupKey(update)
	if !p.seen.Add(key) {
		p.logger.DebugContext(ctx, "skipping already processed signature",
			"signature", update.Signature,
			"address", update.Address,
		)
		return OutcomeDuplicate
	}

	rec := p.fetcher.Fetch(ctx, update.Signature, update.Address)
	if rec == nil {
		// a failed lookup may succeed on redelivery
		p.seen.Remove(key)
		p.renderBalance(ctx, update)
		return OutcomeUndecoded
	}

	enriched := p.enricher.Enrich(ctx, update.Address, rec, update)
	p.render(ctx, enriched)

	if p.publisher != nil {
		if err := p.publisher.PublishActivity(ctx, enriched); err != nil {
			p.logger.WarnContext(ctx, "failed to publish activity",
				"signature", enriched.Signature,
				"wallet", update.Address,
				"error", err,
			)
		}
	}

	p.logger.InfoContext(ctx, "activity processed",
		"signature", enriched.Signature,
		"wallet", update.Address,
		"transaction_type", enriched.Summary.TransactionType,
		"risk_level", enriched.Summary.RiskLevel,
		"tokens", enriched.Summary.TotalTokensInvolved,
	)
	return OutcomeEnriched
}

func (p *Pipeline) render(ctx context.Context, rec *enrich.EnrichedRecord) {
	if p.out == nil || p.renderer == nil {
		return
	}
	p.outMu.Lock()
	defer p.outMu.Unlock()
	if err := p.renderer.Render(p.out, rec); err != nil {
		p.logger.WarnContext(ctx, "failed to render report", "signature", rec.Signature, "error", err)
	}
}

func (p *Pipeline) renderBalance(ctx context.Context, update *activity.AccountUpdate) {
	if p.out == nil || p.renderer == nil {
		return
	}
	p.outMu.Lock()
	defer p.outMu.Unlock()
	if err := p.renderer.RenderBalance(p.out, update); err != nil {
		p.logger.WarnContext(ctx, "failed to render balance update", "address", update.Address, "error", err)
	}
}

// dedupKey matches the NATS message ID: one transaction touching several
// tracked wallets yields one record per wallet.
func dedupKey(u *activity.AccountUpdate) string {
	return u.Address + ":" + u.Signature
}

func signatureOf(u *activity.AccountUpdate) string {
	if u == nil {
		return ""
	}
	return u.Signature
}
