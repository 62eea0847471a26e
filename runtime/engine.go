// Package runtime executes signed transactions against native programs and
// records their outcome on a ledger backend.
package runtime

import (
	"context"
	"math/bits"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	ledgerctx "github.com/govm-net/counter/context"
	_ "github.com/govm-net/counter/context/memory"
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/crypto/ed25519"
	"github.com/govm-net/counter/programs/system"
	"github.com/govm-net/counter/types"
)

// Engine is responsible for program registration and transaction execution
type Engine struct {
	config   *Config
	ledger   types.Ledger
	programs map[core.Address]core.Program

	log      *zap.Logger
	now      func() time.Time
	registry *prometheus.Registry
	metrics  *metrics

	mu sync.Mutex
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithClock sets the source of block timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLedger uses an already opened ledger instead of the configured backend
func WithLedger(ledger types.Ledger) Option {
	return func(e *Engine) {
		e.ledger = ledger
	}
}

// NewEngine creates a new engine
func NewEngine(config *Config, opts ...Option) (*Engine, error) {
	// Ensure configuration is valid
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	registry, m, err := newMetrics()
	if err != nil {
		return nil, errors.Wrap(err, "failed to register metrics")
	}

	e := &Engine{
		config:   config,
		programs: map[core.Address]core.Program{core.SystemProgramID: system.Program{}},
		log:      zap.NewNop(),
		now:      time.Now,
		registry: registry,
		metrics:  m,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.ledger == nil {
		if config.ContextType == "" {
			e.ledger, err = ledgerctx.GetDefault(config.ContextParams)
		} else {
			e.ledger, err = ledgerctx.Get(ledgerctx.ContextType(config.ContextType), config.ContextParams)
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to open ledger")
		}
	}
	return e, nil
}

// RegisterProgram makes a program callable by instructions addressed to its ID
func (e *Engine) RegisterProgram(p core.Program) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := p.ID()
	if id == core.SystemProgramID {
		return errors.Wrap(core.ErrInvalidArgument, "program id is reserved for the system program")
	}
	if _, ok := e.programs[id]; ok {
		return errors.Errorf("program %s already registered", id)
	}
	e.programs[id] = p
	e.log.Info("program registered", zap.String("name", p.Name()), zap.Stringer("id", id))
	return nil
}

// Ledger returns the backing ledger
func (e *Engine) Ledger() types.Ledger {
	return e.ledger
}

// Gatherer exposes the engine metrics
func (e *Engine) Gatherer() prometheus.Gatherer {
	return e.registry
}

// verify checks every signature and returns the set of signers.
func verify(tx *types.Transaction) (map[core.Address]bool, error) {
	if tx == nil || len(tx.Message.Instructions) == 0 {
		return nil, errors.Wrap(core.ErrInvalidArgument, "transaction has no instructions")
	}
	msg, err := tx.Message.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode message")
	}

	signers := make(map[core.Address]bool, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		if !ed25519.Verify(msg, ed25519.PublicKey(sig.PublicKey), sig.Signature) {
			return nil, errors.Wrapf(core.ErrInvalidSignature, "%s", sig.PublicKey)
		}
		signers[sig.PublicKey] = true
	}

	if !signers[tx.Message.FeePayer] {
		return nil, errors.Wrapf(core.ErrMissingSignature, "fee payer %s", tx.Message.FeePayer)
	}
	for _, ix := range tx.Message.Instructions {
		for _, meta := range ix.Accounts {
			if meta.IsSigner && !signers[meta.Address] {
				return nil, errors.Wrapf(core.ErrMissingSignature, "%s", meta.Address)
			}
		}
	}
	return signers, nil
}

// chargeFee debits the fee payer inside batch. Only system accounts pay fees.
func chargeFee(batch types.Batch, payer core.Address, fee uint64) error {
	if fee == 0 {
		return nil
	}
	acct, err := batch.GetAccount(payer)
	if errors.Is(err, core.ErrAccountNotFound) {
		return errors.Wrapf(core.ErrInsufficientFundsForFee, "fee payer %s has no account", payer)
	}
	if err != nil {
		return err
	}
	// Program-owned accounts hold rent deposits only their owner may move
	if acct.Owner != core.SystemProgramID || len(acct.Data) > 0 {
		return errors.Wrapf(core.ErrInvalidFeePayer, "%s is owned by %s", payer, acct.Owner)
	}
	if acct.Lamports < fee {
		return errors.Wrapf(core.ErrInsufficientFundsForFee, "need %d lamports, have %d", fee, acct.Lamports)
	}
	acct.Lamports -= fee
	if !acct.Exists() {
		return batch.DeleteAccount(payer)
	}
	return batch.PutAccount(payer, acct)
}

func (e *Engine) reject(id core.Hash, err error) error {
	e.metrics.txRejected.Inc()
	e.log.Warn("transaction rejected", zap.Stringer("id", id), zap.Error(err))
	return err
}

// Execute runs a signed transaction. Its instructions are applied atomically:
// either every instruction succeeds or none of their writes persist. The fee
// is charged in both cases.
//
// A transaction that cannot be executed at all (bad signature, unknown fee
// payer, duplicate) returns a nil receipt and leaves the ledger untouched.
// A transaction whose instructions fail returns its receipt together with
// the error.
func (e *Engine) Execute(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	signers, err := verify(tx)
	if err != nil {
		return nil, e.reject(core.ZeroHash, err)
	}
	id, err := tx.ID()
	if err != nil {
		return nil, e.reject(core.ZeroHash, err)
	}

	if _, err := e.ledger.Receipt(id); err == nil {
		return nil, e.reject(id, errors.Wrapf(core.ErrDuplicateTransaction, "%s", id))
	} else if !errors.Is(err, core.ErrReceiptNotFound) {
		return nil, err
	}

	head, err := e.ledger.Head()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read head")
	}
	block := types.BlockInfo{Height: head.Height + 1, Time: e.now().Unix()}

	hi, fee := bits.Mul64(e.config.LamportsPerSignature, uint64(len(tx.Signatures)))
	if hi != 0 {
		return nil, e.reject(id, core.ErrArithmeticOverflow)
	}
	payer := tx.Message.FeePayer

	batch, err := e.ledger.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin batch")
	}
	if err := chargeFee(batch, payer, fee); err != nil {
		_ = batch.Rollback()
		return nil, e.reject(id, err)
	}

	exec := newExecution(e.config, batch, signers, block)
	var execErr error
	for i, ix := range tx.Message.Instructions {
		program, ok := e.programs[ix.ProgramID]
		if !ok {
			execErr = errors.Wrapf(core.ErrProgramNotFound, "instruction %d: %s", i, ix.ProgramID)
			break
		}
		if err := exec.invoke(program, ix); err != nil {
			e.metrics.instructions.WithLabelValues(program.Name(), "failed").Inc()
			execErr = errors.Wrapf(err, "instruction %d", i)
			break
		}
		e.metrics.instructions.WithLabelValues(program.Name(), "success").Inc()
	}

	receipt := &types.Receipt{
		ID:          id,
		BlockHeight: block.Height,
		BlockTime:   block.Time,
		FeePayer:    payer,
		Fee:         fee,
		Success:     execErr == nil,
		ComputeUsed: exec.meter.Used(),
		Logs:        exec.logs,
	}

	if execErr != nil {
		// Discard every instruction write and keep only the fee
		if err := batch.Rollback(); err != nil {
			return nil, errors.Wrap(err, "failed to roll back batch")
		}
		batch, err = e.ledger.Begin()
		if err != nil {
			return nil, errors.Wrap(err, "failed to begin batch")
		}
		if err := chargeFee(batch, payer, fee); err != nil {
			_ = batch.Rollback()
			return nil, err
		}
		var pe *core.ProgramError
		if errors.As(execErr, &pe) {
			receipt.ErrorCode = pe.Code
			receipt.ErrorName = pe.Name
		}
		receipt.Error = execErr.Error()
	} else {
		receipt.Events = exec.events
	}

	if err := batch.PutReceipt(receipt); err != nil {
		_ = batch.Rollback()
		return nil, errors.Wrap(err, "failed to store receipt")
	}
	if err := batch.PutHead(block); err != nil {
		_ = batch.Rollback()
		return nil, errors.Wrap(err, "failed to store head")
	}
	if err := batch.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit batch")
	}

	e.metrics.feesCollected.Add(float64(fee))
	e.metrics.computeUsed.Observe(float64(receipt.ComputeUsed))
	if execErr != nil {
		e.metrics.txFailed.Inc()
		e.log.Info("transaction failed",
			zap.Stringer("id", id),
			zap.Uint64("height", block.Height),
			zap.Uint32("code", receipt.ErrorCode),
			zap.Error(execErr))
		return receipt, execErr
	}
	e.metrics.txSucceeded.Inc()
	e.log.Debug("transaction executed",
		zap.Stringer("id", id),
		zap.Uint64("height", block.Height),
		zap.Uint64("compute", receipt.ComputeUsed))
	return receipt, nil
}

// Airdrop credits lamports to addr, creating a system account when needed
func (e *Engine) Airdrop(addr core.Address, lamports uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch, err := e.ledger.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin batch")
	}
	acct, err := batch.GetAccount(addr)
	if errors.Is(err, core.ErrAccountNotFound) {
		acct = &types.Account{Owner: core.SystemProgramID}
	} else if err != nil {
		_ = batch.Rollback()
		return err
	}
	sum, carry := bits.Add64(acct.Lamports, lamports, 0)
	if carry != 0 {
		_ = batch.Rollback()
		return core.ErrArithmeticOverflow
	}
	acct.Lamports = sum
	if err := batch.PutAccount(addr, acct); err != nil {
		_ = batch.Rollback()
		return err
	}
	if err := batch.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit airdrop")
	}
	e.log.Debug("airdrop", zap.Stringer("address", addr), zap.Uint64("lamports", lamports))
	return nil
}

// Account returns the committed state of addr
func (e *Engine) Account(addr core.Address) (*types.Account, error) {
	return e.ledger.Account(addr)
}

// AccountsByOwner lists the committed accounts owned by owner
func (e *Engine) AccountsByOwner(owner core.Address) ([]types.KeyedAccount, error) {
	return e.ledger.AccountsByOwner(owner)
}

// Balance returns the lamports held by addr, zero for unknown addresses
func (e *Engine) Balance(addr core.Address) (uint64, error) {
	acct, err := e.ledger.Account(addr)
	if errors.Is(err, core.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Lamports, nil
}

// Receipt returns the recorded outcome of a transaction
func (e *Engine) Receipt(id core.Hash) (*types.Receipt, error) {
	return e.ledger.Receipt(id)
}

// Head returns the last produced block
func (e *Engine) Head() (types.BlockInfo, error) {
	return e.ledger.Head()
}

// Close closes the engine
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ledger.Close(); err != nil {
		return errors.Wrap(err, "failed to close ledger")
	}
	return nil
}
