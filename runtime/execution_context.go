package runtime

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/meter"
	"github.com/govm-net/counter/types"
)

// execution carries the state shared by every instruction of one transaction
type execution struct {
	config  *Config
	batch   types.Batch
	signers map[core.Address]bool
	meter   *meter.Meter
	block   types.BlockInfo

	logs   []string
	events []types.Event
}

func newExecution(config *Config, batch types.Batch, signers map[core.Address]bool, block types.BlockInfo) *execution {
	return &execution{
		config:  config,
		batch:   batch,
		signers: signers,
		meter:   meter.New(config.ComputeUnitLimit),
		block:   block,
	}
}

func (x *execution) logf(format string, args ...any) {
	x.logs = append(x.logs, fmt.Sprintf(format, args...))
}

// invoke runs one instruction and writes its account changes into the batch.
func (x *execution) invoke(program core.Program, ix types.Instruction) error {
	cost := x.config.InstructionCost + x.config.AccountCost*uint64(len(ix.Accounts))
	if err := x.meter.Consume(cost); err != nil {
		return err
	}

	inv, accounts, err := x.load(program, ix.Accounts)
	if err != nil {
		return err
	}

	id := program.ID()
	before := x.meter.Used()
	x.logf("Program %s invoke [1]", id)

	err = inv.run(accounts, ix.Data)
	if err == nil {
		err = inv.settle()
	}
	if err == nil {
		err = inv.persist()
	}
	x.logf("Program %s consumed %d of %d compute units", id, x.meter.Used()-before, x.meter.Limit())
	if err != nil {
		x.logf("Program %s failed: %v", id, err)
		return err
	}
	x.logf("Program %s success", id)
	x.events = append(x.events, inv.events...)
	return nil
}

// load reads the instruction's accounts from the batch. Repeated addresses
// share one AccountInfo whose flags are the union of their metas.
func (x *execution) load(program core.Program, metas []types.AccountMeta) (*invocation, []*core.AccountInfo, error) {
	inv := &invocation{
		exec:    x,
		program: program,
		infos:   make(map[core.Address]*core.AccountInfo, len(metas)),
		orig:    make(map[core.Address]*types.Account, len(metas)),
		base:    make(map[core.Address]*types.Account, len(metas)),
	}
	accounts := make([]*core.AccountInfo, 0, len(metas))
	for _, meta := range metas {
		if info, ok := inv.infos[meta.Address]; ok {
			info.IsSigner = info.IsSigner || meta.IsSigner
			info.IsWritable = info.IsWritable || meta.IsWritable
			accounts = append(accounts, info)
			continue
		}

		acct, err := x.batch.GetAccount(meta.Address)
		if errors.Is(err, core.ErrAccountNotFound) {
			acct = &types.Account{}
		} else if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to load account %s", meta.Address)
		}

		info := &core.AccountInfo{
			Address:    meta.Address,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Lamports:   acct.Lamports,
			Owner:      acct.Owner,
			Authority:  acct.Authority,
			Data:       append([]byte(nil), acct.Data...),
		}
		inv.order = append(inv.order, meta.Address)
		inv.infos[meta.Address] = info
		inv.orig[meta.Address] = acct.Clone()
		inv.base[meta.Address] = acct.Clone()
		accounts = append(accounts, info)
	}
	return inv, accounts, nil
}

// invocation is the core.Context of one instruction.
type invocation struct {
	exec    *execution
	program core.Program

	order []core.Address
	infos map[core.Address]*core.AccountInfo
	orig  map[core.Address]*types.Account // as loaded
	base  map[core.Address]*types.Account // as of the last settle or system call

	events []types.Event
}

var _ core.Context = (*invocation)(nil)

func (inv *invocation) run(accounts []*core.AccountInfo, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(core.ErrProgramPanicked, "%v", r)
		}
	}()
	return inv.program.Execute(inv, accounts, data)
}

func snapshot(info *core.AccountInfo) *types.Account {
	acct := &types.Account{
		Lamports:  info.Lamports,
		Owner:     info.Owner,
		Authority: info.Authority,
	}
	if len(info.Data) > 0 {
		acct.Data = append([]byte(nil), info.Data...)
	}
	return acct
}

func sameAccount(a, b *types.Account) bool {
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Authority == b.Authority &&
		bytes.Equal(a.Data, b.Data)
}

// check validates what the program did to one account since base.
func (inv *invocation) check(info *core.AccountInfo, base *types.Account) error {
	now := snapshot(info)
	if sameAccount(now, base) {
		return nil
	}
	if !info.IsWritable {
		return core.ErrReadonlyModified
	}
	if len(now.Data) != len(base.Data) {
		return core.ErrInvalidAccountData
	}
	if now.Owner != base.Owner || now.Authority != base.Authority {
		return core.ErrExternalDataModified
	}
	if base.Owner != inv.program.ID() {
		if !bytes.Equal(now.Data, base.Data) || now.Lamports < base.Lamports {
			return core.ErrExternalDataModified
		}
	}
	return nil
}

type uint128 struct{ hi, lo uint64 }

func (u *uint128) add(v uint64) {
	var carry uint64
	u.lo, carry = bits.Add64(u.lo, v, 0)
	u.hi += carry
}

// settle validates the program's direct modifications and accepts them as the new base.
func (inv *invocation) settle() error {
	var before, after uint128
	for _, addr := range inv.order {
		info, base := inv.infos[addr], inv.base[addr]
		if err := inv.check(info, base); err != nil {
			return errors.Wrapf(err, "account %s", addr)
		}
		before.add(base.Lamports)
		after.add(info.Lamports)
	}
	if before != after {
		return core.ErrUnbalancedInstruction
	}
	inv.rebase(inv.order...)
	return nil
}

func (inv *invocation) rebase(addrs ...core.Address) {
	for _, addr := range addrs {
		inv.base[addr] = snapshot(inv.infos[addr])
	}
}

// persist writes changed writable accounts. Accounts left without lamports
// or data are removed from the ledger.
func (inv *invocation) persist() error {
	batch := inv.exec.batch
	for _, addr := range inv.order {
		info := inv.infos[addr]
		if !info.IsWritable {
			continue
		}
		acct := snapshot(info)
		if sameAccount(acct, inv.orig[addr]) {
			continue
		}
		var err error
		if acct.Exists() {
			err = batch.PutAccount(addr, acct)
		} else {
			err = batch.DeleteAccount(addr)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to write account %s", addr)
		}
	}
	return nil
}

func (inv *invocation) account(addr core.Address) (*core.AccountInfo, error) {
	info, ok := inv.infos[addr]
	if !ok {
		return nil, errors.Wrapf(core.ErrMissingAccount, "%s", addr)
	}
	return info, nil
}

func (inv *invocation) writable(addr core.Address) (*core.AccountInfo, error) {
	info, err := inv.account(addr)
	if err != nil {
		return nil, err
	}
	if !info.IsWritable {
		return nil, errors.Wrapf(core.ErrReadonlyModified, "%s", addr)
	}
	return info, nil
}

func (inv *invocation) writableSigner(addr core.Address) (*core.AccountInfo, error) {
	info, err := inv.writable(addr)
	if err != nil {
		return nil, err
	}
	if !info.IsSigner {
		return nil, errors.Wrapf(core.ErrMissingSignature, "%s", addr)
	}
	return info, nil
}

// syscall charges a system call and settles pending modifications so the
// call starts from validated state.
func (inv *invocation) syscall() error {
	if err := inv.exec.meter.Consume(inv.exec.config.SystemCallCost); err != nil {
		return err
	}
	return inv.settle()
}

func (inv *invocation) ProgramID() core.Address {
	return inv.program.ID()
}

func (inv *invocation) BlockHeight() uint64 {
	return inv.exec.block.Height
}

func (inv *invocation) BlockTime() int64 {
	return inv.exec.block.Time
}

func (inv *invocation) IsSigner(addr core.Address) bool {
	return inv.exec.signers[addr]
}

// CreateAccount funds addr with the rent-exempt minimum for space bytes and
// assigns it to the calling program.
func (inv *invocation) CreateAccount(payer, addr core.Address, space uint64, authority core.Address) error {
	if err := inv.syscall(); err != nil {
		return err
	}
	if payer == addr {
		return errors.Wrap(core.ErrInvalidArgument, "payer cannot fund itself")
	}
	from, err := inv.writableSigner(payer)
	if err != nil {
		return err
	}
	to, err := inv.writableSigner(addr)
	if err != nil {
		return err
	}
	if to.Exists() {
		return errors.Wrapf(core.ErrAccountAlreadyInUse, "%s", addr)
	}
	if space > types.MaxPermittedDataLength {
		return errors.Wrapf(core.ErrInvalidArgument, "space %d exceeds %d", space, types.MaxPermittedDataLength)
	}
	if from.Owner != core.SystemProgramID || len(from.Data) > 0 {
		return errors.Wrapf(core.ErrInvalidArgument, "payer %s is not a system account", payer)
	}
	rent := types.RentExemptMinimum(space)
	if from.Lamports < rent {
		return errors.Wrapf(core.ErrInsufficientFunds, "need %d lamports, have %d", rent, from.Lamports)
	}

	from.Lamports -= rent
	to.Lamports = rent
	to.Owner = inv.program.ID()
	to.Authority = authority
	to.Data = make([]byte, space)
	inv.rebase(payer, addr)
	return nil
}

// CloseAccount moves every lamport of addr to recipient and clears the account.
func (inv *invocation) CloseAccount(addr, recipient core.Address) error {
	if err := inv.syscall(); err != nil {
		return err
	}
	if addr == recipient {
		return errors.Wrap(core.ErrInvalidArgument, "cannot close an account into itself")
	}
	acct, err := inv.writable(addr)
	if err != nil {
		return err
	}
	to, err := inv.writable(recipient)
	if err != nil {
		return err
	}
	if !acct.Exists() {
		return errors.Wrapf(core.ErrAccountNotFound, "%s", addr)
	}
	if acct.Owner != inv.program.ID() {
		return errors.Wrapf(core.ErrExternalDataModified, "%s is not owned by the program", addr)
	}
	sum, carry := bits.Add64(to.Lamports, acct.Lamports, 0)
	if carry != 0 {
		return core.ErrArithmeticOverflow
	}

	to.Lamports = sum
	acct.Lamports = 0
	acct.Owner = core.SystemProgramID
	acct.Authority = core.ZeroAddress
	acct.Data = nil
	inv.rebase(addr, recipient)
	return nil
}

// Transfer moves lamports out of a signing system account or an account
// owned by the calling program.
func (inv *invocation) Transfer(from, to core.Address, lamports uint64) error {
	if err := inv.syscall(); err != nil {
		return err
	}
	src, err := inv.writable(from)
	if err != nil {
		return err
	}
	dst, err := inv.writable(to)
	if err != nil {
		return err
	}
	// Wallets always need their signature, even when the system program moves them
	switch src.Owner {
	case core.SystemProgramID:
		if !src.IsSigner {
			return errors.Wrapf(core.ErrMissingSignature, "%s", from)
		}
	case inv.program.ID():
	default:
		return errors.Wrapf(core.ErrExternalDataModified, "%s is not owned by the program", from)
	}
	if from == to || lamports == 0 {
		return nil
	}
	if src.Lamports < lamports {
		return errors.Wrapf(core.ErrInsufficientFunds, "need %d lamports, have %d", lamports, src.Lamports)
	}
	sum, carry := bits.Add64(dst.Lamports, lamports, 0)
	if carry != 0 {
		return core.ErrArithmeticOverflow
	}

	src.Lamports -= lamports
	dst.Lamports = sum
	inv.rebase(from, to)
	return nil
}

func (inv *invocation) ConsumeCompute(units uint64) error {
	return inv.exec.meter.Consume(units)
}

func (inv *invocation) Msg(message string) {
	inv.exec.logf("Program log: %s", message)
}

// Log records an event; keyValues alternate between keys and values.
func (inv *invocation) Log(eventName string, keyValues ...any) {
	ev := types.Event{Program: inv.program.ID(), Name: eventName}
	for i := 0; i < len(keyValues); i += 2 {
		attr := types.Attribute{Key: fmt.Sprint(keyValues[i])}
		if i+1 < len(keyValues) {
			attr.Value = fmt.Sprint(keyValues[i+1])
		}
		ev.Attributes = append(ev.Attributes, attr)
	}
	inv.events = append(inv.events, ev)
}
