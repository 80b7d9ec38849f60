package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nhbenergy/core/epoch"
	coreerrors "nhbenergy/core/errors"
	"nhbenergy/core/events"
	nhbstate "nhbenergy/core/state"
	"nhbenergy/core/types"
	"nhbenergy/crypto"
	"nhbenergy/native/bank"
	"nhbenergy/native/common"
	"nhbenergy/native/energy"
	"nhbenergy/native/feecollector"
	"nhbenergy/native/lock"
	"nhbenergy/native/rewards"
	"nhbenergy/observability/metrics"
	"nhbenergy/storage"
)

// Well-known module accounts.
var (
	LockAccount         [20]byte = crypto.ModuleAddress(lock.ModuleName)
	FeeCollectorAccount [20]byte = crypto.ModuleAddress(feecollector.ModuleName)
)

var (
	errNotMintable = coreerrors.Validation("processor: token cannot be minted directly")
	errNilCaller   = coreerrors.Validation("processor: caller address required")
)

// Config wires the processor's modules.
type Config struct {
	Owner         [20]byte
	Lock          lock.Params
	Weeks         epoch.Timekeeper
	MaxClaimWeeks uint64
	MergePolicy   lock.MergePolicy
	Pauses        common.PauseView
}

// Validate ensures the configuration is self-consistent.
func (c Config) Validate() error {
	if err := c.Lock.Validate(); err != nil {
		return err
	}
	if err := c.Weeks.Validate(); err != nil {
		return err
	}
	return nil
}

// Option customises a Processor.
type Option func(*Processor)

// WithEmitter forwards committed events to emitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(p *Processor) {
		if emitter != nil {
			p.emitter = emitter
		}
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer overrides the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Processor) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// Processor runs every ledger operation as one atomic transition: state
// changes and events become visible together, or not at all.
type Processor struct {
	stateMu sync.Mutex

	db        storage.Database
	owner     [20]byte
	state     *nhbstate.Manager
	clock     *epoch.Pinned
	buffer    *events.Buffer
	emitter   events.Emitter
	logger    *slog.Logger
	tracer    trace.Tracer
	telemetry *metrics.EnergyMetrics

	bank      *bank.Ledger
	energy    *energy.Ledger
	locks     *lock.Engine
	rewards   *rewards.Engine
	collector *feecollector.Collector
	contracts *ContractRegistry
}

// NewProcessor builds a processor over db using clock for epochs.
func NewProcessor(db storage.Database, clock epoch.Clock, cfg Config, opts ...Option) (*Processor, error) {
	if db == nil {
		return nil, fmt.Errorf("processor: database required")
	}
	if clock == nil {
		return nil, fmt.Errorf("processor: clock required")
	}
	if cfg.Lock.FeesCollector == ([20]byte{}) {
		cfg.Lock.FeesCollector = FeeCollectorAccount
	}
	cfg.Lock.BaseToken = bank.NormalizeToken(cfg.Lock.BaseToken)
	cfg.Lock.LockedToken = bank.NormalizeToken(cfg.Lock.LockedToken)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Processor{
		db:        db,
		owner:     cfg.Owner,
		state:     nhbstate.NewManager(db),
		clock:     epoch.NewPinned(clock),
		buffer:    &events.Buffer{},
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("nhbenergy/core"),
		telemetry: metrics.Energy(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.bank = bank.NewLedger()
	p.bank.SetState(p.state)
	p.bank.SetEmitter(p.buffer)

	p.energy = energy.NewLedger()
	p.energy.SetState(p.state)
	p.energy.SetEmitter(p.buffer)

	p.contracts = NewContractRegistry(p.bank)

	p.collector = feecollector.NewCollector(FeeCollectorAccount, cfg.Lock.LockedToken, cfg.Weeks)
	p.collector.SetState(p.state)
	p.collector.SetEmitter(p.buffer)
	p.collector.SetBank(p.bank)
	p.collector.SetClock(p.clock)
	p.collector.SetPauses(cfg.Pauses)
	p.collector.SetLockedSource(LockAccount)
	p.contracts.Register(FeeCollectorAccount, lock.DepositFeesEndpoint, p.collector.HandleDeposit)

	p.rewards = rewards.NewEngine(cfg.Weeks)
	p.rewards.SetState(p.state)
	p.rewards.SetEmitter(p.buffer)
	p.rewards.SetEnergySource(p.energy)
	p.rewards.SetPayer(p.collector)
	p.rewards.SetCollectPolicy(p.collector.CollectRewardsForWeek)
	p.rewards.SetClock(p.clock)
	p.rewards.SetPauses(cfg.Pauses)
	p.rewards.SetMaxClaimWeeks(cfg.MaxClaimWeeks)

	p.locks = lock.NewEngine(LockAccount, cfg.Lock)
	p.locks.SetState(p.state)
	p.locks.SetEmitter(p.buffer)
	p.locks.SetBank(p.bank)
	p.locks.SetEnergyLedger(p.energy)
	p.locks.SetEnergyObserver(p.rewards)
	p.locks.SetContractRouter(p.contracts)
	p.locks.SetPauses(cfg.Pauses)
	p.locks.SetPermissions(common.OwnerPermissions{Owner: cfg.Owner})
	p.locks.SetClock(p.clock)
	p.locks.SetMergePolicy(cfg.MergePolicy)

	p.collector.SetLockedReceiver(p.locks)
	return p, nil
}

// Contracts exposes the built-in contract registry.
func (p *Processor) Contracts() *ContractRegistry { return p.contracts }

// Outcome classifies an operation error for logs and metrics.
func Outcome(err error) string {
	switch coreerrors.Class(err) {
	case nil:
		if err == nil {
			return "ok"
		}
		return "internal"
	case coreerrors.ErrValidation:
		return "validation"
	case coreerrors.ErrPrecondition:
		return "precondition"
	case coreerrors.ErrPermission:
		return "permission"
	default:
		return "invariant"
	}
}

func (p *Processor) execute(ctx context.Context, op string, fn func() error) error {
	ctx, span := p.tracer.Start(ctx, "energy."+op)
	defer span.End()

	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	start := time.Now()
	current := p.clock.Pin()
	defer p.clock.Unpin()
	span.SetAttributes(attribute.Int64("energy.epoch", int64(current)))

	err := fn()
	if err == nil {
		err = p.state.Commit()
	}
	outcome := Outcome(err)
	p.telemetry.ObserveOperation(op, outcome, current, time.Since(start))
	if err != nil {
		p.state.Discard()
		p.buffer.Reset()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		level := slog.LevelDebug
		if outcome == "invariant" || outcome == "internal" {
			level = slog.LevelError
		}
		p.logger.Log(ctx, level, "operation rejected",
			slog.String("op", op),
			slog.Uint64("epoch", current),
			slog.String("outcome", outcome),
			slog.Any("error", err))
		return err
	}
	flushed := p.buffer.Flush(p.emitter)
	p.logger.Debug("operation committed",
		slog.String("op", op),
		slog.Uint64("epoch", current),
		slog.Int("events", len(flushed)))
	return nil
}

func (p *Processor) view(fn func() error) error {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return fn()
}

func requireCaller(caller [20]byte) error {
	if caller == ([20]byte{}) {
		return errNilCaller
	}
	return nil
}

// --- admin ---

func (p *Processor) SetPenaltyPercentage(ctx context.Context, caller [20]byte, min, max uint64) error {
	return p.execute(ctx, "set_penalty_percentage", func() error {
		return p.locks.SetPenaltyPercentage(caller, min, max)
	})
}

func (p *Processor) SetFeesBurnPercentage(ctx context.Context, caller [20]byte, bps uint64) error {
	return p.execute(ctx, "set_fees_burn_percentage", func() error {
		return p.locks.SetFeesBurnPercentage(caller, bps)
	})
}

func (p *Processor) SetFeesCollectorAddress(ctx context.Context, caller, collector [20]byte) error {
	return p.execute(ctx, "set_fees_collector", func() error {
		return p.locks.SetFeesCollectorAddress(caller, collector)
	})
}

// MintTokens issues fungible tokens to an account. Owner only; the locked
// token can only come into existence by locking.
func (p *Processor) MintTokens(ctx context.Context, caller, to [20]byte, token string, amount *big.Int) error {
	return p.execute(ctx, "mint", func() error {
		if err := (common.OwnerPermissions{Owner: p.owner}).RequireOwner(caller); err != nil {
			return err
		}
		if err := requireCaller(to); err != nil {
			return err
		}
		if strings.EqualFold(bank.NormalizeToken(token), p.locks.Params().LockedToken) {
			return errNotMintable
		}
		return p.bank.Mint(to, token, 0, amount)
	})
}

// --- user operations ---

func (p *Processor) LockTokens(ctx context.Context, caller [20]byte, amount *big.Int, lockEpochs uint64) (*lock.Receipt, error) {
	var receipt *lock.Receipt
	err := p.execute(ctx, "lock_tokens", func() error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		var err error
		payment := types.Payment{Token: p.locks.Params().BaseToken, Amount: amount}
		receipt, err = p.locks.LockTokens(caller, payment, lockEpochs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (p *Processor) Unlock(ctx context.Context, caller [20]byte, payment types.Payment) (*lock.Receipt, error) {
	var receipt *lock.Receipt
	err := p.execute(ctx, "unlock", func() error {
		var err error
		receipt, err = p.locks.Unlock(caller, payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (p *Processor) UnlockEarly(ctx context.Context, caller [20]byte, payment types.Payment) (*lock.Receipt, error) {
	var receipt *lock.Receipt
	err := p.execute(ctx, "unlock_early", func() error {
		var err error
		receipt, err = p.locks.UnlockEarly(caller, payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (p *Processor) ReduceLockPeriod(ctx context.Context, caller [20]byte, payment types.Payment, epochsToReduce uint64) (*lock.Receipt, error) {
	var receipt *lock.Receipt
	err := p.execute(ctx, "reduce_lock_period", func() error {
		var err error
		receipt, err = p.locks.ReduceLockPeriod(caller, payment, epochsToReduce)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (p *Processor) SendFeesToCollector(ctx context.Context) (*lock.PendingFees, error) {
	var sent *lock.PendingFees
	err := p.execute(ctx, "send_fees_to_collector", func() error {
		var err error
		sent, err = p.locks.SendFeesToCollector()
		return err
	})
	if err != nil {
		return nil, err
	}
	return sent, nil
}

func (p *Processor) ClaimRewards(ctx context.Context, caller [20]byte, week uint64) (*rewards.ClaimResult, error) {
	var result *rewards.ClaimResult
	err := p.execute(ctx, "claim_rewards", func() error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		var err error
		result, err = p.rewards.Claim(caller, week)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DepositSwapFees sends payment from caller to the fee collector.
func (p *Processor) DepositSwapFees(ctx context.Context, caller [20]byte, payment types.Payment) error {
	return p.execute(ctx, "deposit_swap_fees", func() error {
		if err := requireCaller(caller); err != nil {
			return err
		}
		return p.contracts.Forward(caller, FeeCollectorAccount, lock.DepositFeesEndpoint, payment)
	})
}

// --- views ---

// CurrentEpoch returns the epoch an operation issued now would observe.
func (p *Processor) CurrentEpoch() uint64 { return p.clock.CurrentEpoch() }

// CurrentWeek returns the reward week of the current epoch.
func (p *Processor) CurrentWeek() uint64 { return p.rewards.CurrentWeek() }

func (p *Processor) Energy(user [20]byte) (*energy.Entry, error) {
	var entry *energy.Entry
	err := p.view(func() error {
		var err error
		entry, err = p.energy.Energy(user, p.clock.CurrentEpoch())
		return err
	})
	return entry, err
}

func (p *Processor) LockParams() lock.Params { return p.locks.Params() }

func (p *Processor) LockSettings() (*lock.Settings, error) {
	var settings *lock.Settings
	err := p.view(func() error {
		var err error
		settings, err = p.locks.Settings()
		return err
	})
	return settings, err
}

func (p *Processor) PenaltyAmount(amount *big.Int, epochsToReduce uint64) (*big.Int, error) {
	var penalty *big.Int
	err := p.view(func() error {
		var err error
		penalty, err = p.locks.PenaltyAmount(amount, epochsToReduce)
		return err
	})
	return penalty, err
}

func (p *Processor) Lot(nonce uint64) (*lock.Lot, error) {
	var lot *lock.Lot
	err := p.view(func() error {
		var err error
		lot, err = p.locks.Lot(nonce)
		return err
	})
	return lot, err
}

func (p *Processor) Balance(holder [20]byte, token string, nonce uint64) (*big.Int, error) {
	var balance *big.Int
	err := p.view(func() error {
		var err error
		balance, err = p.bank.Balance(holder, token, nonce)
		return err
	})
	return balance, err
}

func (p *Processor) Supply(token string) (*big.Int, error) {
	var supply *big.Int
	err := p.view(func() error {
		var err error
		supply, err = p.bank.Supply(token)
		return err
	})
	return supply, err
}

func (p *Processor) WeekSnapshot(week uint64) (rewards.Snapshot, error) {
	var snapshot rewards.Snapshot
	err := p.view(func() error {
		var err error
		snapshot, err = p.rewards.Snapshot(week)
		return err
	})
	return snapshot, err
}

func (p *Processor) WeekWeight(user [20]byte, week uint64) (*rewards.NextWeekWeight, error) {
	var weight *rewards.NextWeekWeight
	err := p.view(func() error {
		var err error
		weight, err = p.rewards.WeekWeight(user, week)
		return err
	})
	return weight, err
}

func (p *Processor) ClaimProgress(user [20]byte) (*rewards.ClaimProgress, error) {
	var progress *rewards.ClaimProgress
	err := p.view(func() error {
		var err error
		progress, err = p.rewards.Progress(user)
		return err
	})
	return progress, err
}

// PendingDeposits returns the fees accumulated for week that no snapshot has
// collected yet.
func (p *Processor) PendingDeposits(week uint64) ([]types.TokenAmount, error) {
	var rewardsForWeek []types.TokenAmount
	err := p.view(func() error {
		var err error
		rewardsForWeek, err = p.collector.WeekRewards(week)
		return err
	})
	return rewardsForWeek, err
}

// IsInvariantFault reports whether err means stored accounting is broken.
func IsInvariantFault(err error) bool {
	return errors.Is(err, coreerrors.ErrInvariant)
}
