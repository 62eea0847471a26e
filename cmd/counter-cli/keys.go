package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/govm-net/counter/crypto/ed25519"
	"github.com/govm-net/counter/keystore"
)

type keyView struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (k keyView) String() string {
	return fmt.Sprintf("%s\t%s", k.Name, k.Address)
}

type keyListView []keyView

func (l keyListView) String() string {
	lines := make([]string, 0, len(l))
	for _, k := range l {
		lines = append(lines, k.String())
	}
	return strings.Join(lines, "\n")
}

func newKeysCmd(a *app) *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage local keypairs",
	}

	var importKey string
	generateCmd := &cobra.Command{
		Use:   "generate <name>",
		Short: "Generate (or import with --private-key) a named keypair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := a.keys()
			if err != nil {
				return err
			}
			var key *keystore.Key
			if importKey != "" {
				priv, err := ed25519.PrivateKeyFromString(importKey)
				if err != nil {
					return err
				}
				key, err = ks.Import(args[0], priv)
				if err != nil {
					return err
				}
			} else {
				key, err = ks.Generate(args[0])
				if err != nil {
					return err
				}
			}
			return a.printValue(cmd, keyView{Name: key.Name, Address: key.Address().String()})
		},
	}
	generateCmd.Flags().StringVar(&importKey, "private-key", "", "base58 private key to import instead of generating one")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored keypairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := a.keys()
			if err != nil {
				return err
			}
			list, err := ks.List()
			if err != nil {
				return err
			}
			view := make(keyListView, 0, len(list))
			for _, md := range list {
				view = append(view, keyView{Name: md.Name, Address: md.Address})
			}
			return a.printValue(cmd, view)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show the address of a stored keypair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := a.keys()
			if err != nil {
				return err
			}
			key, err := ks.Get(args[0])
			if err != nil {
				return err
			}
			return a.printValue(cmd, keyView{Name: key.Name, Address: key.Address().String()})
		},
	}

	keysCmd.AddCommand(generateCmd, listCmd, showCmd)
	return keysCmd
}
