package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	ledgerctx "github.com/govm-net/counter/context"
	_ "github.com/govm-net/counter/context/db"
	_ "github.com/govm-net/counter/context/pebble"
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/keystore"
	"github.com/govm-net/counter/programs/counter"
	"github.com/govm-net/counter/runtime"
)

const (
	envPrefix = "COUNTER"

	homeFlag                 = "home"
	backendFlag              = "backend"
	lamportsPerSignatureFlag = "lamports-per-signature"
	computeLimitFlag         = "compute-limit"
	logLevelFlag             = "log-level"
	outputFlag               = "output"
)

// app holds the state shared by every command of one invocation
type app struct {
	v   *viper.Viper
	log *zap.Logger
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".counter-cli"
	}
	return filepath.Join(home, ".counter-cli")
}

func (a *app) addPersistentFlags(cmd *cobra.Command) {
	defaults := runtime.DefaultConfig()
	flags := cmd.PersistentFlags()
	flags.String(homeFlag, defaultHome(), "directory for keys, config and ledger data")
	flags.String(backendFlag, string(ledgerctx.DBContextType), "ledger backend (memory, db, pebble)")
	flags.Uint64(lamportsPerSignatureFlag, defaults.LamportsPerSignature, "fee charged per transaction signature")
	flags.Uint64(computeLimitFlag, defaults.ComputeUnitLimit, "compute units available to one transaction")
	flags.String(logLevelFlag, "info", "log level (debug, info, warn, error)")
	flags.StringP(outputFlag, "o", "text", "output format (text, json)")
}

// bindFlagsLoadViper binds flags and environment variables, then reads
// <home>/config.yaml when present.
func (a *app) bindFlagsLoadViper(cmd *cobra.Command, _ []string) error {
	// cmd.Flags() includes the persistent flags of the parents
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	home := a.v.GetString(homeFlag)
	a.v.SetConfigName("config")
	a.v.SetConfigType("yaml")
	a.v.AddConfigPath(home)
	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "failed to read config")
		}
	}

	log, err := newLogger(a.v.GetString(logLevelFlag))
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s", logLevelFlag)
	}
	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func (a *app) keys() (*keystore.Manager, error) {
	return keystore.NewManager(filepath.Join(a.v.GetString(homeFlag), "keys"), a.log)
}

// engineConfig maps flags to the runtime configuration
func (a *app) engineConfig() *runtime.Config {
	cfg := runtime.DefaultConfig()
	home := a.v.GetString(homeFlag)
	cfg.ContextType = a.v.GetString(backendFlag)
	cfg.LamportsPerSignature = a.v.GetUint64(lamportsPerSignatureFlag)
	cfg.ComputeUnitLimit = a.v.GetUint64(computeLimitFlag)
	switch ledgerctx.ContextType(cfg.ContextType) {
	case ledgerctx.DBContextType:
		cfg.ContextParams = map[string]any{"db_path": filepath.Join(home, "ledger.db")}
	case ledgerctx.PebbleContextType:
		cfg.ContextParams = map[string]any{"dir": filepath.Join(home, "pebble")}
	}
	return cfg
}

// engine opens the ledger and registers the counter program
func (a *app) engine() (*runtime.Engine, error) {
	e, err := runtime.NewEngine(a.engineConfig(), runtime.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	if err := e.RegisterProgram(counter.New(a.log)); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

// resolveAddress accepts a key name or a base58 address
func (a *app) resolveAddress(nameOrAddress string) (core.Address, error) {
	ks, err := a.keys()
	if err != nil {
		return core.ZeroAddress, err
	}
	if key, err := ks.Get(nameOrAddress); err == nil {
		return key.Address(), nil
	} else if !errors.Is(err, keystore.ErrKeyNotFound) && !errors.Is(err, keystore.ErrInvalidName) {
		return core.ZeroAddress, err
	}
	addr, err := core.AddressFromString(nameOrAddress)
	if err != nil {
		return core.ZeroAddress, errors.Errorf("%q is neither a stored key nor an address", nameOrAddress)
	}
	return addr, nil
}

// printValue writes v as indented JSON or through its String method
func (a *app) printValue(cmd *cobra.Command, v fmt.Stringer) error {
	if strings.ToLower(a.v.GetString(outputFlag)) == "json" {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal JSON")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.String())
	return nil
}
