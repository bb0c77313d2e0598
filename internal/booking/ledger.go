package booking

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/practice-booking/internal/metrics"
	"github.com/iliyamo/practice-booking/internal/model"
	"github.com/iliyamo/practice-booking/internal/repository"
)

// Balance returns a client's credit balance.
func (e *Engine) Balance(ctx context.Context, clientID uint64) (model.CreditBalance, error) {
	return e.credits.Balance(ctx, clientID)
}

// Transactions returns a client's ledger, oldest first.
func (e *Engine) Transactions(ctx context.Context, clientID uint64) ([]model.CreditTransaction, error) {
	return e.credits.ListTransactions(ctx, clientID)
}

// GrantCredits adds n credits to a client, recording one ledger entry.
// Payment for the credits is settled elsewhere.
func (e *Engine) GrantCredits(ctx context.Context, clientID uint64, n int, reason string) (model.CreditBalance, error) {
	cb, err := e.grantCredits(ctx, clientID, n, reason)
	if err != nil {
		return model.CreditBalance{}, reject("grant", err)
	}
	return cb, nil
}

func (e *Engine) grantCredits(ctx context.Context, clientID uint64, n int, reason string) (model.CreditBalance, error) {
	if n <= 0 {
		return model.CreditBalance{}, validation("credits to grant must be positive, got %d", n)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "credit pack"
	}
	if _, err := e.clients.GetByID(ctx, clientID); errors.Is(err, repository.ErrNotFound) {
		return model.CreditBalance{}, notFound("client")
	} else if err != nil {
		return model.CreditBalance{}, err
	}

	tx, err := e.credits.DB().BeginTx(ctx, nil)
	if err != nil {
		return model.CreditBalance{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := e.credits.GrantTx(ctx, tx, clientID, n, reason, e.now()); err != nil {
		return model.CreditBalance{}, err
	}
	cb, err := e.credits.BalanceTx(ctx, tx, clientID)
	if err != nil {
		return model.CreditBalance{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.CreditBalance{}, err
	}
	committed = true

	metrics.CreditMovements.WithLabelValues(string(model.CreditGrant)).Inc()
	e.log.Info("credits granted", zap.Uint64("client_id", clientID), zap.Int("credits", n), zap.Int("balance", cb.Balance))
	return cb, nil
}

// LedgerCheck compares a client's balance with the sum of its ledger.
type LedgerCheck struct {
	ClientID  uint64 `json:"client_id"`
	Balance   int    `json:"balance"`
	LedgerSum int    `json:"ledger_sum"`
	OK        bool   `json:"ok"`
}

// Verify recomputes the ledger sum for one client.
func (e *Engine) Verify(ctx context.Context, clientID uint64) (LedgerCheck, error) {
	cb, err := e.credits.Balance(ctx, clientID)
	if err != nil {
		return LedgerCheck{}, err
	}
	sum, err := e.credits.LedgerSum(ctx, clientID)
	if err != nil {
		return LedgerCheck{}, err
	}
	return LedgerCheck{
		ClientID:  clientID,
		Balance:   cb.Balance,
		LedgerSum: sum,
		OK:        sum == cb.Balance && cb.Balance >= 0,
	}, nil
}

// VerifyAll checks every client that ever held credits.
func (e *Engine) VerifyAll(ctx context.Context) ([]LedgerCheck, error) {
	ids, err := e.credits.ClientsWithLedger(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]LedgerCheck, 0, len(ids))
	for _, id := range ids {
		c, err := e.Verify(ctx, id)
		if err != nil {
			return nil, err
		}
		if !c.OK {
			e.log.Error("ledger mismatch", zap.Uint64("client_id", id), zap.Int("balance", c.Balance), zap.Int("ledger_sum", c.LedgerSum))
		}
		out = append(out, c)
	}
	return out, nil
}
