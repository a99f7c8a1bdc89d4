package memory

import (
	"context"
	"sync"

	"github.com/estatedesk/brokercycle/internal/domain"
)

// TxRunner implements domain.TxRunner with a single coarse mutex. The memory
// stores have no multi-statement atomicity of their own, so serializing every
// validate-then-mutate sequence is what keeps concurrent completions from
// interleaving.
type TxRunner struct {
	mu sync.Mutex
}

// NewTxRunner creates a coarse-lock transaction runner.
func NewTxRunner() *TxRunner {
	return &TxRunner{}
}

func (r *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}

// Compile-time interface check.
var _ domain.TxRunner = (*TxRunner)(nil)
