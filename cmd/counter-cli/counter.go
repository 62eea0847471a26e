package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/crypto/ed25519"
	"github.com/govm-net/counter/keystore"
	"github.com/govm-net/counter/programs/counter"
	"github.com/govm-net/counter/types"
)

const payerFlag = "payer"

type recordView struct {
	Address   string `json:"address"`
	Count     uint8  `json:"count"`
	Authority string `json:"authority"`
	Lamports  uint64 `json:"lamports"`
}

func (r recordView) String() string {
	return fmt.Sprintf("%s: count=%d authority=%s lamports=%d", r.Address, r.Count, r.Authority, r.Lamports)
}

type recordListView []recordView

func (l recordListView) String() string {
	if len(l) == 0 {
		return "no counter records"
	}
	lines := make([]string, 0, len(l))
	for _, r := range l {
		lines = append(lines, r.String())
	}
	return strings.Join(lines, "\n")
}

func addPayerFlag(cmd *cobra.Command) {
	cmd.Flags().String(payerFlag, "payer", "name of the stored key paying fees")
}

func (a *app) payer(cmd *cobra.Command) (ed25519.PrivateKey, error) {
	name, err := cmd.Flags().GetString(payerFlag)
	if err != nil {
		return ed25519.EmptyPrivateKey, err
	}
	ks, err := a.keys()
	if err != nil {
		return ed25519.EmptyPrivateKey, err
	}
	key, err := ks.Get(name)
	if err != nil {
		return ed25519.EmptyPrivateKey, errors.Wrapf(err, "payer %s", name)
	}
	return key.PrivateKey, nil
}

// newRecordCmd builds a command that sends one instruction for the record argument
func newRecordCmd(a *app, use, short string, nargs int, build func(payer, record core.Address, args []string) (types.Instruction, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			payer, err := a.payer(cmd)
			if err != nil {
				return err
			}
			record, err := a.resolveAddress(args[0])
			if err != nil {
				return err
			}
			ix, err := build(payer.Address(), record, args[1:])
			if err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()
			return a.submit(cmd, e, payer, nil, ix)
		},
	}
	addPayerFlag(cmd)
	return cmd
}

func newInitializeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "initialize <record key>",
		Short: "Allocate a counter record at a stored key, generating the key when needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payer, err := a.payer(cmd)
			if err != nil {
				return err
			}
			ks, err := a.keys()
			if err != nil {
				return err
			}
			record, err := ks.Get(args[0])
			if errors.Is(err, keystore.ErrKeyNotFound) {
				record, err = ks.Generate(args[0])
			}
			if err != nil {
				return err
			}
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()
			return a.submit(cmd, e, payer, []ed25519.PrivateKey{record.PrivateKey},
				counter.NewInitializeInstruction(payer.Address(), record.Address()))
		},
	}
	addPayerFlag(cmd)
	return cmd
}

func newIncrementCmd(a *app) *cobra.Command {
	return newRecordCmd(a, "increment <record>", "Add one to a counter", 1,
		func(_, record core.Address, _ []string) (types.Instruction, error) {
			return counter.NewIncrementInstruction(record), nil
		})
}

func newDecrementCmd(a *app) *cobra.Command {
	return newRecordCmd(a, "decrement <record>", "Subtract one from a counter", 1,
		func(_, record core.Address, _ []string) (types.Instruction, error) {
			return counter.NewDecrementInstruction(record), nil
		})
}

func newSetCmd(a *app) *cobra.Command {
	return newRecordCmd(a, "set <record> <value>", "Overwrite a counter with a value from 0 to 255", 2,
		func(_, record core.Address, args []string) (types.Instruction, error) {
			v, err := strconv.ParseUint(args[0], 10, 8)
			if err != nil {
				return types.Instruction{}, errors.Wrap(err, "value must be between 0 and 255")
			}
			return counter.NewSetInstruction(record, uint8(v)), nil
		})
}

func newCloseCmd(a *app) *cobra.Command {
	return newRecordCmd(a, "close <record>", "Destroy a counter record and reclaim its lamports to the payer", 1,
		func(payer, record core.Address, _ []string) (types.Instruction, error) {
			return counter.NewCloseInstruction(payer, record), nil
		})
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <record>",
		Short: "Show the current state of a counter record",
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

			r, err := counter.Fetch(e, addr)
			if err != nil {
				return err
			}
			acct, err := e.Account(addr)
			if err != nil {
				return err
			}
			return a.printValue(cmd, recordView{
				Address:   addr.String(),
				Count:     r.Count,
				Authority: acct.Authority.String(),
				Lamports:  acct.Lamports,
			})
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every counter record on the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()

			entries, err := counter.All(e)
			if err != nil {
				return err
			}
			view := make(recordListView, 0, len(entries))
			for _, entry := range entries {
				view = append(view, recordView{
					Address:   entry.Address.String(),
					Count:     entry.Record.Count,
					Authority: entry.Authority.String(),
					Lamports:  entry.Lamports,
				})
			}
			return a.printValue(cmd, view)
		},
	}
}
