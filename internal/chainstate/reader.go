/*

Package chainstate keeps a read-only projection of the vault and the connected investor.

A poll reads every value in parallel and publishes them together as one State. Published states
are never merged: each publish replaces the previous one. A poll whose reads started before the
currently published state's reads is stale and is dropped. At most one poll runs at a time;
a trigger that arrives while a poll is running is suppressed, not queued.

*/

package chainstate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/onchainfund/fundops/internal/logger"
	"github.com/onchainfund/fundops/internal/types"
	"github.com/onchainfund/fundops/internal/utils"
	"github.com/onchainfund/fundops/internal/vault"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNetworkRead    = errors.New("chain state read failed")
	ErrNoTarget       = errors.New("no investor account selected")
	ErrAlreadyStarted = errors.New("chain state reader already started")
)

// Target selects the investor whose balances and allowance are tracked.
type Target struct {
	Account      common.Address
	DepositAsset types.Asset
}

func (t Target) hasAccount() bool {
	return t.Account != (common.Address{})
}

// State is one published projection. Account and Allowance are zero when no account is targeted.
type State struct {
	Snapshot  types.VaultSnapshot   `json:"snapshot"`
	Account   types.AccountState    `json:"account"`
	Allowance types.AllowanceRecord `json:"allowance"`
	Target    Target                `json:"-"`

	readStartedAt time.Time
}

// Options configures a Reader.
type Options struct {
	Interval time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Target is the initially tracked investor. Setting it here does not trigger a poll.
	Target Target
}

// Reader polls the chain and publishes State.
type Reader struct {
	source   vault.Reader
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger

	inFlight atomic.Bool
	latest   atomic.Pointer[State]

	mu            sync.Mutex
	target        Target
	lastErr       error
	denomDecimals *uint8
	shareDecimals *uint8
	onPublish     []func(State)
	onError       []func(error)
	cron          *cron.Cron
	cancel        context.CancelFunc
	started       sync.WaitGroup
}

// New creates a reader over source. It does nothing until Start or Trigger is called.
func New(source vault.Reader, opts Options) *Reader {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Reader{
		source:   source,
		interval: opts.Interval,
		now:      opts.Clock,
		target:   opts.Target,
		log:      logger.GetForComponent("chain_state"),
	}
}

// OnPublish registers a hook called after every publish, from the publishing goroutine.
func (r *Reader) OnPublish(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPublish = append(r.onPublish, fn)
}

// OnError registers a hook called after every failed poll.
func (r *Reader) OnError(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = append(r.onError, fn)
}

// Start schedules polling every interval and runs a first poll immediately.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cron != nil {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	cronLog := cronLogger{log: r.log}
	c := cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))
	c.Schedule(cron.Every(r.interval), cron.FuncJob(func() { r.Trigger(ctx) }))
	r.cron = c
	r.cancel = cancel
	r.mu.Unlock()

	c.Start()
	r.started.Add(1)
	go func() {
		defer r.started.Done()
		r.Trigger(ctx)
	}()

	r.log.Info().Dur("interval", r.interval).Str("vault", r.source.VaultProxy().Hex()).Msg("Chain state polling started")
	return nil
}

// Stop halts polling and waits for running polls, including the initial one, to finish.
func (r *Reader) Stop() {
	r.mu.Lock()
	c, cancel := r.cron, r.cancel
	r.cron, r.cancel = nil, nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	r.started.Wait()
	r.log.Info().Msg("Chain state polling stopped")
}

// CurrentTarget returns the tracked investor.
func (r *Reader) CurrentTarget() Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// Trigger runs one poll now. It returns false without polling when a poll is already running.
func (r *Reader) Trigger(ctx context.Context) bool {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.log.Debug().Msg("Poll already in flight, trigger suppressed")
		return false
	}
	defer r.inFlight.Store(false)

	if err := r.poll(ctx); err != nil {
		r.recordError(err)
	}
	return true
}

// Latest returns the most recently published state.
func (r *Reader) Latest() (State, bool) {
	s := r.latest.Load()
	if s == nil {
		return State{}, false
	}
	return *s, true
}

// Snapshot returns the most recently published vault snapshot.
func (r *Reader) Snapshot() (types.VaultSnapshot, bool) {
	s, ok := r.Latest()
	return s.Snapshot, ok
}

// Allowance returns the published allowance of the tracked investor.
func (r *Reader) Allowance() types.AllowanceRecord {
	s, _ := r.Latest()
	return s.Allowance
}

// Spender is the address deposits must be approved for.
func (r *Reader) Spender() common.Address {
	return r.source.Comptroller()
}

// LastError returns the error of the most recent poll, or nil if it succeeded.
func (r *Reader) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// ReadAllowance reads the tracked investor's allowance from the chain now, publishes it in
// place of the previous allowance and returns it.
func (r *Reader) ReadAllowance(ctx context.Context) (types.AllowanceRecord, error) {
	target := r.CurrentTarget()
	if !target.hasAccount() {
		return types.AllowanceRecord{}, ErrNoTarget
	}
	started := r.now()
	spender := r.source.Comptroller()

	raw, err := r.source.Allowance(ctx, target.DepositAsset.Address, target.Account, spender)
	if err != nil {
		return types.AllowanceRecord{}, fmt.Errorf("%w: allowance: %v", ErrNetworkRead, err)
	}
	record := types.AllowanceRecord{
		Owner:   target.Account,
		Spender: spender,
		Amount:  sdkmath.NewIntFromBigInt(raw),
		AsOf:    started,
	}

	r.mu.Lock()
	var hooks []func(State)
	var next State
	if prev := r.latest.Load(); r.target == target && prev != nil && prev.Target == target && !prev.readStartedAt.After(started) {
		next = *prev
		next.Allowance = record
		next.readStartedAt = started
		r.latest.Store(&next)
		hooks = append(hooks, r.onPublish...)
	}
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(next)
	}
	return record, nil
}

func (r *Reader) poll(ctx context.Context) error {
	target := r.CurrentTarget()
	started := r.now()

	denomDecimals, shareDecimals, err := r.decimals(ctx)
	if err != nil {
		return err
	}

	var (
		gsv, gav, depositBal, shareBal, allowance *big.Int
		spender                                   = r.source.Comptroller()
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		gsv, err = r.source.GrossShareValue(gctx)
		return wrapRead("gross share value", err)
	})
	g.Go(func() (err error) {
		gav, err = r.source.GrossAssetValue(gctx)
		return wrapRead("gross asset value", err)
	})
	if target.hasAccount() {
		g.Go(func() (err error) {
			depositBal, err = r.source.TokenBalance(gctx, target.DepositAsset.Address, target.Account)
			return wrapRead("deposit balance", err)
		})
		g.Go(func() (err error) {
			shareBal, err = r.source.ShareBalance(gctx, target.Account)
			return wrapRead("share balance", err)
		})
		g.Go(func() (err error) {
			allowance, err = r.source.Allowance(gctx, target.DepositAsset.Address, target.Account, spender)
			return wrapRead("allowance", err)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	finished := r.now()
	next := State{
		Snapshot: types.VaultSnapshot{
			NavPerShare:     utils.FromBaseUnits(gsv, denomDecimals),
			GrossAssetValue: utils.FromBaseUnits(gav, denomDecimals),
			AsOf:            finished,
		},
		Target:        target,
		readStartedAt: started,
	}
	if target.hasAccount() {
		next.Account = types.AccountState{
			Owner:          target.Account,
			DepositBalance: utils.FromBaseUnits(depositBal, target.DepositAsset.Decimals),
			ShareBalance:   utils.FromBaseUnits(shareBal, shareDecimals),
			AsOf:           finished,
		}
		next.Allowance = types.AllowanceRecord{
			Owner:   target.Account,
			Spender: spender,
			Amount:  sdkmath.NewIntFromBigInt(allowance),
			AsOf:    finished,
		}
	}

	r.publish(next)
	return nil
}

// publish stores next unless a state from later reads is already published or the target moved.
func (r *Reader) publish(next State) {
	r.mu.Lock()
	if next.Target != r.target {
		r.mu.Unlock()
		r.log.Debug().Msg("Discarding poll result for a previous target")
		return
	}
	if prev := r.latest.Load(); prev != nil && prev.readStartedAt.After(next.readStartedAt) {
		r.mu.Unlock()
		r.log.Debug().
			Time("pollStarted", next.readStartedAt).
			Time("publishedStarted", prev.readStartedAt).
			Msg("Discarding stale poll result")
		return
	}
	r.latest.Store(&next)
	r.lastErr = nil
	hooks := append([]func(State){}, r.onPublish...)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(next)
	}

	r.log.Debug().
		Str("nav", next.Snapshot.NavPerShare.String()).
		Str("gav", next.Snapshot.GrossAssetValue.String()).
		Msg("Published chain state")
}

func (r *Reader) recordError(err error) {
	r.mu.Lock()
	r.lastErr = err
	hooks := append([]func(error){}, r.onError...)
	r.mu.Unlock()

	r.log.Warn().Err(err).Msg("Chain state poll failed, keeping last published state")
	for _, fn := range hooks {
		fn(err)
	}
}

// decimals resolves the denomination and share precision once.
func (r *Reader) decimals(ctx context.Context) (uint8, uint8, error) {
	r.mu.Lock()
	denom, share := r.denomDecimals, r.shareDecimals
	r.mu.Unlock()
	if denom != nil && share != nil {
		return *denom, *share, nil
	}

	asset, err := r.source.DenominationAsset(ctx)
	if err != nil {
		return 0, 0, wrapRead("denomination asset", err)
	}
	d, err := r.source.TokenDecimals(ctx, asset)
	if err != nil {
		return 0, 0, wrapRead("denomination decimals", err)
	}
	s, err := r.source.TokenDecimals(ctx, r.source.VaultProxy())
	if err != nil {
		return 0, 0, wrapRead("share decimals", err)
	}

	r.mu.Lock()
	r.denomDecimals, r.shareDecimals = &d, &s
	r.mu.Unlock()
	return d, s, nil
}

func wrapRead(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrNetworkRead, what, err)
}
