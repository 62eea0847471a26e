package main

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/govm-net/counter/api"
	"github.com/govm-net/counter/types"
)

const (
	listenFlag        = "listen"
	recipientFlag     = "recipient"
	defaultAmountFlag = "default-amount"
)

func newActionsCmd(a *app) *cobra.Command {
	actionsCmd := &cobra.Command{
		Use:   "actions",
		Short: "Serve transfer actions and sign the transactions they return",
	}
	actionsCmd.AddCommand(newActionsServeCmd(a), newActionsSignCmd(a))
	return actionsCmd
}

func newActionsServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transfer action over HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			listen, _ := flags.GetString(listenFlag)
			recipientName, _ := flags.GetString(recipientFlag)
			amount, _ := flags.GetFloat64(defaultAmountFlag)

			recipient, err := a.resolveAddress(recipientName)
			if err != nil {
				return err
			}
			cfg := api.DefaultConfig(recipient)
			cfg.DefaultAmount = amount

			srv := &http.Server{
				Addr:              listen,
				Handler:           api.NewServer(cfg, a.log),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				a.log.Info("serving actions", zap.String("addr", listen), zap.Stringer("recipient", recipient))
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return errors.Wrap(err, "server failed")
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String(listenFlag, "127.0.0.1:8080", "HTTP listen address")
	cmd.Flags().String(recipientFlag, "", "key name or address receiving transfers")
	cmd.Flags().Float64(defaultAmountFlag, 0.1, "amount offered by the action link, in whole units")
	_ = cmd.MarkFlagRequired(recipientFlag)
	return cmd
}

func newActionsSignCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign <base64 transaction>",
		Short: "Sign a transaction returned by an action with the payer key and execute it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payer, err := a.payer(cmd)
			if err != nil {
				return err
			}
			data, err := base64.StdEncoding.DecodeString(args[0])
			if err != nil {
				return errors.Wrap(err, "transaction is not base64")
			}
			tx, err := types.DecodeTransaction(data)
			if err != nil {
				return err
			}
			if tx.Message.FeePayer != payer.Address() {
				return errors.Errorf("transaction is for %s, payer is %s", tx.Message.FeePayer, payer.Address())
			}
			if err := tx.Sign(payer); err != nil {
				return err
			}

			e, err := a.engine()
			if err != nil {
				return err
			}
			defer e.Close()
			return a.execute(cmd, e, tx)
		},
	}
	addPayerFlag(cmd)
	return cmd
}
