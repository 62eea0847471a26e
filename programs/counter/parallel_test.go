package counter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/counter/crypto/ed25519"
	"github.com/govm-net/counter/types"
)

// TestParallelExecution sends increments for several records from many
// goroutines. The engine serializes them, so every increment lands exactly once.
func TestParallelExecution(t *testing.T) {
	h := setup(t)
	const (
		records = 4
		workers = 8
		perWork = 10
	)

	addrs := make([]ed25519.PrivateKey, records)
	for i := range addrs {
		addrs[i] = h.initialize(t)
	}

	// Pre-sign everything so the goroutines only execute
	txs := make([][]*types.Transaction, workers)
	for w := 0; w < workers; w++ {
		for i := 0; i < perWork; i++ {
			h.nonce++
			record := addrs[(w+i)%records].Address()
			tx := types.NewTransaction(h.payer.Address(), h.nonce, NewIncrementInstruction(record))
			require.NoError(t, tx.Sign(h.payer))
			txs[w] = append(txs[w], tx)
		}
	}

	startTime := time.Now()
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(batch []*types.Transaction) {
			defer wg.Done()
			for _, tx := range batch {
				if _, err := h.engine.Execute(context.Background(), tx); err != nil {
					failed.Add(1)
				}
			}
		}(txs[w])
	}
	wg.Wait()
	t.Logf("parallel execution of %d transactions took %v", workers*perWork, time.Since(startTime))

	require.Zero(t, failed.Load())
	total := 0
	for _, record := range addrs {
		total += int(h.count(t, record.Address()))
	}
	assert.Equal(t, workers*perWork, total)

	head, err := h.engine.Head()
	require.NoError(t, err)
	assert.Equal(t, uint64(records+workers*perWork), head.Height)
}
