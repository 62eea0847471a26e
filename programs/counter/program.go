// Package counter is a native program that keeps a one byte counter in an
// account of its own.
package counter

import (
	"github.com/near/borsh-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/govm-net/counter/core"
)

// ProgramID is the address instructions use to reach the counter program.
var ProgramID = core.MustAddressFromString("AsjZ3kWAUSQRNt2pZVeJkywhZ6gpLpHZmJjduPmKZDZZ")

type handler func(p *Program, ctx core.Context, accounts []*core.AccountInfo, args []byte) error

type entry struct {
	name    string
	title   string
	handler handler
}

var entries = func() map[[DiscriminatorLen]byte]entry {
	title := cases.Title(language.English)
	m := make(map[[DiscriminatorLen]byte]entry)
	for name, h := range map[string]handler{
		Initialize: (*Program).initialize,
		Increment:  (*Program).increment,
		Decrement:  (*Program).decrement,
		Set:        (*Program).set,
		Close:      (*Program).close,
	} {
		m[InstructionDiscriminator(name)] = entry{name: name, title: title.String(name), handler: h}
	}
	return m
}()

// Program implements core.Program.
type Program struct {
	log *zap.Logger
}

// New creates the counter program. A nil logger disables logging.
func New(log *zap.Logger) *Program {
	if log == nil {
		log = zap.NewNop()
	}
	return &Program{log: log}
}

func (p *Program) ID() core.Address { return ProgramID }

func (p *Program) Name() string { return "counter" }

// Execute dispatches on the instruction discriminator.
func (p *Program) Execute(ctx core.Context, accounts []*core.AccountInfo, data []byte) error {
	if len(data) < DiscriminatorLen {
		return ErrInstructionNotFound.Wrap(errors.Errorf("instruction data is %d bytes", len(data)))
	}
	var d [DiscriminatorLen]byte
	copy(d[:], data)
	e, ok := entries[d]
	if !ok {
		return ErrInstructionNotFound
	}
	ctx.Msg("Instruction: " + e.title)
	return e.handler(p, ctx, accounts, data[DiscriminatorLen:])
}

func requireAccounts(accounts []*core.AccountInfo, n int) error {
	if len(accounts) < n {
		return errors.Wrapf(core.ErrMissingAccount, "need %d accounts, got %d", n, len(accounts))
	}
	return nil
}

func noArgs(args []byte) error {
	if len(args) != 0 {
		return ErrInstructionDidNotDeserialize.Wrap(errors.Errorf("%d unexpected bytes", len(args)))
	}
	return nil
}

// load validates record and decodes its state.
func (p *Program) load(record *core.AccountInfo) (Record, error) {
	if v := ValidateRecord(ProgramID, record); v != Valid {
		return Record{}, v.Err()
	}
	return DecodeRecord(record.Data)
}

func (p *Program) store(record *core.AccountInfo, r Record) error {
	data, err := r.Encode()
	if err != nil {
		return err
	}
	copy(record.Data, data)
	return nil
}

// allocationCauses are the CreateAccount failures reported as AllocationError.
// Anything else, such as running out of compute, is passed through.
var allocationCauses = []error{
	core.ErrAccountAlreadyInUse,
	core.ErrInsufficientFunds,
	core.ErrMissingSignature,
	core.ErrInvalidArgument,
	core.ErrReadonlyModified,
}

func allocationError(err error) error {
	for _, cause := range allocationCauses {
		if errors.Is(err, cause) {
			return ErrAllocation.Wrap(err)
		}
	}
	return err
}

func (p *Program) initialize(ctx core.Context, accounts []*core.AccountInfo, args []byte) error {
	if err := requireAccounts(accounts, 3); err != nil {
		return err
	}
	if err := noArgs(args); err != nil {
		return err
	}
	payer, record, system := accounts[0], accounts[1], accounts[2]
	if system.Address != core.SystemProgramID {
		return ErrAccountShapeMismatch.Wrap(errors.Errorf("expected system program, got %s", system.Address))
	}

	if err := ctx.CreateAccount(payer.Address, record.Address, Space, payer.Address); err != nil {
		return allocationError(err)
	}
	r := Record{Count: 0}
	if err := p.store(record, r); err != nil {
		return err
	}

	ctx.Log("Initialized",
		"count", r.Count,
		"authority", payer.Address,
		"height", ctx.BlockHeight(),
		"time", ctx.BlockTime())
	p.log.Debug("counter initialized",
		zap.Stringer("record", record.Address),
		zap.Stringer("authority", payer.Address))
	return nil
}

func (p *Program) increment(ctx core.Context, accounts []*core.AccountInfo, args []byte) error {
	if err := requireAccounts(accounts, 1); err != nil {
		return err
	}
	if err := noArgs(args); err != nil {
		return err
	}
	record := accounts[0]
	r, err := p.load(record)
	if err != nil {
		return err
	}
	if r.Count == 255 {
		return ErrArithmeticOverflow
	}
	r.Count++
	if err := p.store(record, r); err != nil {
		return err
	}
	ctx.Log("Incremented", "count", r.Count)
	p.log.Debug("counter incremented", zap.Stringer("record", record.Address), zap.Uint8("count", r.Count))
	return nil
}

func (p *Program) decrement(ctx core.Context, accounts []*core.AccountInfo, args []byte) error {
	if err := requireAccounts(accounts, 1); err != nil {
		return err
	}
	if err := noArgs(args); err != nil {
		return err
	}
	record := accounts[0]
	r, err := p.load(record)
	if err != nil {
		return err
	}
	if r.Count == 0 {
		return ErrArithmeticUnderflow
	}
	r.Count--
	if err := p.store(record, r); err != nil {
		return err
	}
	ctx.Log("Decremented", "count", r.Count)
	p.log.Debug("counter decremented", zap.Stringer("record", record.Address), zap.Uint8("count", r.Count))
	return nil
}

func (p *Program) set(ctx core.Context, accounts []*core.AccountInfo, args []byte) error {
	if err := requireAccounts(accounts, 1); err != nil {
		return err
	}
	var a SetArgs
	if len(args) != 1 {
		return ErrInstructionDidNotDeserialize.Wrap(errors.Errorf("set takes 1 byte, got %d", len(args)))
	}
	if err := borsh.Deserialize(&a, args); err != nil {
		return ErrInstructionDidNotDeserialize.Wrap(err)
	}
	record := accounts[0]
	r, err := p.load(record)
	if err != nil {
		return err
	}
	r.Count = a.Value
	if err := p.store(record, r); err != nil {
		return err
	}
	ctx.Log("Set", "count", r.Count)
	p.log.Debug("counter set", zap.Stringer("record", record.Address), zap.Uint8("count", r.Count))
	return nil
}

func (p *Program) close(ctx core.Context, accounts []*core.AccountInfo, args []byte) error {
	if err := requireAccounts(accounts, 2); err != nil {
		return err
	}
	if err := noArgs(args); err != nil {
		return err
	}
	payer, record := accounts[0], accounts[1]
	if v := ValidateClose(ProgramID, payer, record); v != Valid {
		return v.Err()
	}
	r, err := DecodeRecord(record.Data)
	if err != nil {
		return err
	}
	reclaimed := record.Lamports
	if err := ctx.CloseAccount(record.Address, payer.Address); err != nil {
		return err
	}
	ctx.Log("Closed", "count", r.Count, "reclaimed", reclaimed)
	p.log.Debug("counter closed", zap.Stringer("record", record.Address), zap.Uint64("reclaimed", reclaimed))
	return nil
}
