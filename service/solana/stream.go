package solana

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/walletwatch/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// SignatureLookup resolves the most recent signature for an address.
// *Client satisfies it.
type SignatureLookup interface {
	LatestSignature(ctx context.Context, address string) (solana.Signature, bool, error)
}

// AccountStream subscribes to account changes for a fixed set of wallets
// over the RPC websocket and emits UpdateEvents. A logs subscription on the
// same connection supplies the signature of the transaction behind each
// account change.
type AccountStream struct {
	wsURL     string
	wallets   []solana.PublicKey
	lookup    SignatureLookup
	keepalive time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewAccountStream creates a stream for the given wallet addresses.
// lookup may be nil, in which case updates without a matching log
// notification carry no signature.
// A zero keepalive disables ping events.
func NewAccountStream(
	wsURL string,
	wallets []string,
	lookup SignatureLookup,
	keepalive time.Duration,
	lookupTimeout time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*AccountStream, error) {
	keys := make([]solana.PublicKey, 0, len(wallets))
	for _, w := range wallets {
		pk, err := solana.PublicKeyFromBase58(w)
		if err != nil {
			return nil, fmt.Errorf("invalid wallet address %q: %w", w, err)
		}
		keys = append(keys, pk)
	}
	return &AccountStream{
		wsURL:     wsURL,
		wallets:   keys,
		lookup:    lookup,
		keepalive: keepalive,
		timeout:   lookupTimeout,
		logger:    logger,
		metrics:   m,
	}, nil
}

// Run subscribes to every wallet and writes events to out until ctx is done.
// Each subscription reconnects with backoff on failure. out is not closed.
func (s *AccountStream) Run(ctx context.Context, out chan<- *UpdateEvent) error {
	var wg sync.WaitGroup
	for _, wallet := range s.wallets {
		wg.Add(1)
		go func(wallet solana.PublicKey) {
			defer wg.Done()
			s.subscribeLoop(ctx, wallet, out)
		}(wallet)
	}

	if s.keepalive > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(s.keepalive)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					select {
					case out <- &UpdateEvent{Ping: true, CreatedAt: time.Now().UTC()}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	return ctx.Err()
}

func (s *AccountStream) subscribeLoop(ctx context.Context, wallet solana.PublicKey, out chan<- *UpdateEvent) {
	address := wallet.String()
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for ctx.Err() == nil {
		err := s.subscribeOnce(ctx, wallet, out)
		if ctx.Err() != nil {
			return
		}

		s.logger.WarnContext(ctx, "account subscription ended, reconnecting",
			"wallet", address,
			"error", err,
			"backoff_seconds", backoff.Seconds(),
		)
		if s.metrics != nil {
			s.metrics.RecordStreamReconnect(address)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (s *AccountStream) subscribeOnce(ctx context.Context, wallet solana.PublicKey, out chan<- *UpdateEvent) error {
	address := wallet.String()

	client, err := ws.Connect(ctx, s.wsURL)
	if err != nil {
		return fmt.Errorf("failed to connect websocket: %w", err)
	}
	defer client.Close()

	sub, err := client.AccountSubscribe(wallet, rpc.CommitmentConfirmed)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", address, err)
	}
	defer sub.Unsubscribe()

	logsSub, err := client.LogsSubscribeMentions(wallet, rpc.CommitmentConfirmed)
	if err != nil {
		return fmt.Errorf("failed to subscribe to logs mentioning %s: %w", address, err)
	}
	defer logsSub.Unsubscribe()

	s.logger.InfoContext(ctx, "subscribed to account updates", "wallet", address)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := newSlotSignatures(signatureSlotWindow)
	logsErr := make(chan error, 1)
	go func() {
		for {
			res, err := logsSub.Recv(subCtx)
			if err != nil {
				logsErr <- err
				cancel()
				return
			}
			if res != nil {
				sigs.record(res.Context.Slot, res.Value.Signature)
			}
		}
	}()

	for {
		res, err := sub.Recv(subCtx)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordStreamEvent(address, "error")
			}
			select {
			case lerr := <-logsErr:
				return fmt.Errorf("failed to receive log notification: %w", lerr)
			default:
			}
			return fmt.Errorf("failed to receive account update: %w", err)
		}
		if res == nil {
			continue
		}

		lamports := res.Value.Lamports
		payload := &AccountPayload{
			Address:    address,
			Lamports:   &lamports,
			Owner:      res.Value.Owner.String(),
			Executable: res.Value.Executable,
			Slot:       res.Context.Slot,
		}
		if res.Value.RentEpoch != nil {
			payload.RentEpoch = res.Value.RentEpoch.Uint64()
		}
		if sig, ok := sigs.wait(subCtx, res.Context.Slot, signatureWait); ok {
			payload.Signature = append([]byte(nil), sig[:]...)
		} else {
			payload.Signature = s.latestSignature(subCtx, address)
		}

		if s.metrics != nil {
			s.metrics.RecordStreamEvent(address, "update")
		}

		select {
		case out <- &UpdateEvent{Account: payload, CreatedAt: time.Now().UTC()}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

const (
	// signatureSlotWindow bounds how many recent slots keep a signature.
	signatureSlotWindow = 64
	// signatureWait is how long an account update waits for the log
	// notification of its slot before falling back to the RPC lookup.
	signatureWait = 500 * time.Millisecond
)

// slotSignatures maps recent slots to the last transaction signature seen in
// that slot for one wallet. Log notifications carry the signature; account
// notifications only carry the slot.
type slotSignatures struct {
	mu      sync.Mutex
	window  int
	bySlot  map[uint64]solana.Signature
	order   []uint64
	changed chan struct{}
}

func newSlotSignatures(window int) *slotSignatures {
	return &slotSignatures{
		window:  window,
		bySlot:  make(map[uint64]solana.Signature, window),
		changed: make(chan struct{}),
	}
}

// record stores sig for slot, replacing an earlier signature from the same
// slot, and wakes waiters.
func (s *slotSignatures) record(slot uint64, sig solana.Signature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySlot[slot]; !ok {
		s.order = append(s.order, slot)
		if len(s.order) > s.window {
			delete(s.bySlot, s.order[0])
			s.order = s.order[1:]
		}
	}
	s.bySlot[slot] = sig
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *slotSignatures) get(slot uint64) (solana.Signature, bool, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.bySlot[slot]
	return sig, ok, s.changed
}

// wait returns the signature recorded for slot, blocking up to timeout for
// it to arrive.
func (s *slotSignatures) wait(ctx context.Context, slot uint64, timeout time.Duration) (solana.Signature, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		sig, ok, changed := s.get(slot)
		if ok {
			return sig, true
		}
		select {
		case <-changed:
		case <-timer.C:
			return solana.Signature{}, false
		case <-ctx.Done():
			return solana.Signature{}, false
		}
	}
}

// latestSignature attaches the newest signature for the account when no log
// notification arrived for the update's slot. The lookup is best effort.
func (s *AccountStream) latestSignature(ctx context.Context, address string) []byte {
	if s.lookup == nil {
		return nil
	}
	lookupCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	sig, ok, err := s.lookup.LatestSignature(lookupCtx, address)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to look up latest signature", "wallet", address, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	raw := make([]byte, len(sig))
	copy(raw, sig[:])
	return raw
}
