package runtime

import (
	"github.com/pkg/errors"

	ledgerctx "github.com/govm-net/counter/context"
)

// Config represents engine configuration
type Config struct {
	// Ledger backend
	ContextType   string         // Registered backend name, empty for the registry default
	ContextParams map[string]any // Backend parameters such as db_path or dir

	// Fees and compute budget
	LamportsPerSignature uint64 // Fee charged to the fee payer per signature
	ComputeUnitLimit     uint64 // Budget of one transaction
	InstructionCost      uint64 // Units charged to dispatch an instruction
	AccountCost          uint64 // Units charged per account an instruction references
	SystemCallCost       uint64 // Units charged per system service call
}

// DefaultConfig returns a configuration with an in-memory ledger
func DefaultConfig() *Config {
	return &Config{
		ContextType:          string(ledgerctx.MemoryContextType),
		LamportsPerSignature: 5000,
		ComputeUnitLimit:     200_000,
		InstructionCost:      1000,
		AccountCost:          100,
		SystemCallCost:       150,
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config == nil {
		return errors.New("config is nil")
	}

	if config.ComputeUnitLimit == 0 {
		return errors.New("compute unit limit must be positive")
	}

	if config.InstructionCost > config.ComputeUnitLimit {
		return errors.Errorf("instruction cost %d exceeds compute unit limit %d",
			config.InstructionCost, config.ComputeUnitLimit)
	}

	return nil
}
