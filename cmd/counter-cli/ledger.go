package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/crypto/ed25519"
	"github.com/govm-net/counter/programs/system"
	"github.com/govm-net/counter/runtime"
	"github.com/govm-net/counter/types"
)

type balanceView struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
}

func (b balanceView) String() string {
	return fmt.Sprintf("%s: %d lamports", b.Address, b.Lamports)
}

type eventView struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
}

type receiptView struct {
	ID          string      `json:"id"`
	BlockHeight uint64      `json:"block_height"`
	BlockTime   string      `json:"block_time"`
	FeePayer    string      `json:"fee_payer"`
	Fee         uint64      `json:"fee"`
	Success     bool        `json:"success"`
	ErrorCode   uint32      `json:"error_code,omitempty"`
	ErrorName   string      `json:"error_name,omitempty"`
	Error       string      `json:"error,omitempty"`
	ComputeUsed uint64      `json:"compute_used"`
	Logs        []string    `json:"logs"`
	Events      []eventView `json:"events"`
}

func newReceiptView(r *types.Receipt) receiptView {
	view := receiptView{
		ID:          r.ID.String(),
		BlockHeight: r.BlockHeight,
		BlockTime:   time.Unix(r.BlockTime, 0).UTC().Format(time.RFC3339),
		FeePayer:    r.FeePayer.String(),
		Fee:         r.Fee,
		Success:     r.Success,
		ErrorCode:   r.ErrorCode,
		ErrorName:   r.ErrorName,
		Error:       r.Error,
		ComputeUsed: r.ComputeUsed,
		Logs:        r.Logs,
	}
	for _, ev := range r.Events {
		attrs := make(map[string]string, len(ev.Attributes))
		for _, attr := range ev.Attributes {
			attrs[attr.Key] = attr.Value
		}
		view.Events = append(view.Events, eventView{Name: ev.Name, Attributes: attrs})
	}
	return view
}

func (r receiptView) String() string {
	var b strings.Builder
	status := "success"
	if !r.Success {
		status = "failed"
	}
	fmt.Fprintf(&b, "Transaction %s\n", r.ID)
	fmt.Fprintf(&b, "  status:  %s\n", status)
	if !r.Success {
		fmt.Fprintf(&b, "  error:   %s\n", r.Error)
	}
	fmt.Fprintf(&b, "  block:   %d (%s)\n", r.BlockHeight, r.BlockTime)
	fmt.Fprintf(&b, "  fee:     %d lamports paid by %s\n", r.Fee, r.FeePayer)
	fmt.Fprintf(&b, "  compute: %d units\n", r.ComputeUsed)
	for _, ev := range r.Events {
		fmt.Fprintf(&b, "  event:   %s %v\n", ev.Name, ev.Attributes)
	}
	for _, line := range r.Logs {
		fmt.Fprintf(&b, "  log:     %s\n", line)
	}
	return strings.TrimRight(b.String(), "\n")
}

// submit signs and executes ixs. A transaction that ran and failed prints
// its receipt before the error is returned.
func (a *app) submit(cmd *cobra.Command, e *runtime.Engine, payer ed25519.PrivateKey, signers []ed25519.PrivateKey, ixs ...types.Instruction) error {
	tx := types.NewTransaction(payer.Address(), uint64(time.Now().UnixNano()), ixs...)
	if err := tx.Sign(append([]ed25519.PrivateKey{payer}, signers...)...); err != nil {
		return err
	}
	return a.execute(cmd, e, tx)
}

// execute runs a signed transaction and prints its receipt when one was recorded.
func (a *app) execute(cmd *cobra.Command, e *runtime.Engine, tx *types.Transaction) error {
	receipt, err := e.Execute(context.Background(), tx)
	if receipt != nil {
		if perr := a.printValue(cmd, newReceiptView(receipt)); perr != nil {
			return perr
		}
	}
	return err
}

func newAirdropCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop <key|address> <lamports>",
		Short: "Credit lamports to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := a.resolveAddress(args[0])
			if err != nil {
				return err
			}
			lamports, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return errors.Wrap(err, "invalid lamports")
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.Airdrop(addr, lamports); err != nil {
				return err
			}
			balance, err := e.Balance(addr)
			if err != nil {
				return err
			}
			return a.printValue(cmd, balanceView{Address: addr.String(), Lamports: balance})
		},
	}
}

func newTransferCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer <key|address> <lamports>",
		Short: "Send lamports from the payer to another account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payer, err := a.payer(cmd)
			if err != nil {
				return err
			}
			to, err := a.resolveAddress(args[0])
			if err != nil {
				return err
			}
			lamports, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return errors.Wrap(err, "invalid lamports")
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()
			return a.submit(cmd, e, payer, nil, system.NewTransferInstruction(payer.Address(), to, lamports))
		},
	}
	addPayerFlag(cmd)
	return cmd
}

func newBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <key|address>",
		Short: "Show the lamports held by an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := a.resolveAddress(args[0])
			if err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			balance, err := e.Balance(addr)
			if err != nil {
				return err
			}
			return a.printValue(cmd, balanceView{Address: addr.String(), Lamports: balance})
		},
	}
}

func newReceiptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <transaction id>",
		Short: "Show the recorded outcome of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.HashFromString(args[0])
			if err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			receipt, err := e.Receipt(id)
			if err != nil {
				return err
			}
			return a.printValue(cmd, newReceiptView(receipt))
		},
	}
}
