// Package quotes implements the quote stream manager (C4): opens a stream
// via internal/wire, aggregates incoming batches, ranks them, and exposes a
// live "current best" view to the display layer.
package quotes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridgeline/titan-swap/internal/wire"
)

// Request mirrors spec.md §3's QuoteRequest.
type Request struct {
	InputMint         [32]byte
	OutputMint        [32]byte
	InputAmount       uint64
	UserPubkey        [32]byte
	SlippageBps       uint16
	MaxQuotesPerBatch uint8
	UpdateIntervalMs  uint16
}

// WinningQuote is the §3 tie-break result: maximal out_amount, ties broken
// by (lowest price_impact_bps, then lexicographic provider_id).
type WinningQuote struct {
	Quote wire.Quote
}

// Update is delivered to the stream's consumer for each non-terminal
// server event.
type Update struct {
	Batch   wire.QuoteBatch
	Winning *WinningQuote // nil if the batch was empty (or all-zero out_amount)
}

// Manager owns one Session for the lifetime of a single swap's quote
// stream, per §4.2/§5's single-owner contract.
type Manager struct {
	session *wire.Session
	log     *logrus.Entry

	firstQuoteDeadline time.Duration

	mu         sync.Mutex
	lastBatch  wire.QuoteBatch
	lastWin    *WinningQuote
}

// NewManager constructs a Manager bound to an open wire.Session.
func NewManager(session *wire.Session, firstQuoteDeadline time.Duration, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		session:            session,
		log:                log.WithField("component", "quotes.manager"),
		firstQuoteDeadline: firstQuoteDeadline,
	}
}

// Snapshot returns the most recently observed batch and winning quote,
// for callers (currently the tests) that don't want to race the channel.
func (m *Manager) Snapshot() (wire.QuoteBatch, *WinningQuote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBatch, m.lastWin
}

// StreamQuotes implements §4.4's stream_quotes contract: opens a stream via
// C2 with the given request, and yields an Update for every QuoteBatch the
// server emits on the returned channel. The channel is closed when the
// stream terminates (consumer cancellation, server StreamEnd, or session
// error); the final error, if any, is sent on errCh before closing.
//
// Cancelling ctx sends StopStream (§5 cancellation semantics) and
// guarantees no further Update is sent once StreamQuotes' internal pump
// goroutine has observed the cancellation — satisfied by unregistering the
// stream channel in Session.StopStream before this function returns.
func (m *Manager) StreamQuotes(ctx context.Context, req Request) (<-chan Update, <-chan error, error) {
	id := uuid.New()
	events, err := m.session.OpenStream(id, wire.NewSwapQuoteStream{
		CorrelationID: id,
		InputMint:     req.InputMint,
		OutputMint:    req.OutputMint,
		Amount:        req.InputAmount,
		UserPubkey:    req.UserPubkey,
		SlippageBps:   req.SlippageBps,
		MaxQuotes:     req.MaxQuotesPerBatch,
		IntervalMs:    req.UpdateIntervalMs,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening quote stream: %w", err)
	}

	updates := make(chan Update, 1)
	errc := make(chan error, 1)

	go m.pump(ctx, id, events, updates, errc)
	return updates, errc, nil
}

func (m *Manager) pump(ctx context.Context, id uuid.UUID, events <-chan wire.StreamEvent, updates chan<- Update, errc chan<- error) {
	defer close(updates)

	deadline := time.NewTimer(m.firstQuoteDeadline)
	defer deadline.Stop()
	gotFirst := false

	for {
		select {
		case <-ctx.Done():
			_ = m.session.StopStream(id)
			return

		case <-deadline.C:
			if !gotFirst {
				_ = m.session.StopStream(id)
				errc <- fmt.Errorf("no_quotes: no usable quote batch within %s", m.firstQuoteDeadline)
				return
			}

		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Err != nil {
				errc <- fmt.Errorf("transport_broken: %w", ev.Err)
				return
			}
			if ev.End != nil {
				return
			}
			if ev.Batch == nil {
				continue
			}

			win := rankBatch(*ev.Batch)
			if win != nil {
				gotFirst = true
			}

			m.mu.Lock()
			m.lastBatch = *ev.Batch
			if win != nil {
				m.lastWin = win
			}
			m.mu.Unlock()

			select {
			case updates <- Update{Batch: *ev.Batch, Winning: win}:
			case <-ctx.Done():
				_ = m.session.StopStream(id)
				return
			}
		}
	}
}

// rankBatch implements the §3/§8 tie-break rule. An empty batch, or one
// where every quote has out_amount == 0, is treated as empty (§4.4 edge
// case) and yields a nil WinningQuote — the prior winner is left
// unchanged by the caller, since rankBatch never mutates state itself.
func rankBatch(batch wire.QuoteBatch) *WinningQuote {
	var best *wire.Quote
	for i := range batch.Quotes {
		q := &batch.Quotes[i]
		if q.OutAmount == 0 {
			continue
		}
		if best == nil || isBetter(*q, *best) {
			best = q
		}
	}
	if best == nil {
		return nil
	}
	return &WinningQuote{Quote: *best}
}

// isBetter reports whether candidate beats current under the tie-break
// rule: maximal out_amount, then lowest price_impact_bps, then
// lexicographically smaller provider_id.
func isBetter(candidate, current wire.Quote) bool {
	if candidate.OutAmount != current.OutAmount {
		return candidate.OutAmount > current.OutAmount
	}
	if candidate.PriceImpactBps != current.PriceImpactBps {
		return candidate.PriceImpactBps < current.PriceImpactBps
	}
	return candidate.ProviderID < current.ProviderID
}
