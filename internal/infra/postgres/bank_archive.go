package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"warp-quiz-server/internal/domain"
)

// BankArchive persists uploaded question banks as JSONB so a bank can be
// reloaded after a restart. Live session state is deliberately not stored.
type BankArchive struct {
	pool *pgxpool.Pool
}

func NewBankArchive(pool *pgxpool.Pool) *BankArchive {
	return &BankArchive{pool: pool}
}

// SaveBank upserts the bank under its ID.
func (a *BankArchive) SaveBank(ctx context.Context, bank domain.Bank) error {
	data, err := json.Marshal(bank)
	if err != nil {
		return fmt.Errorf("marshal bank: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO question_banks (id, data) VALUES ($1, $2::jsonb)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, uploaded_at = now()`,
		bank.ID, data,
	)
	if err != nil {
		return fmt.Errorf("save bank: %w", err)
	}
	return nil
}

// LoadBank implements the BankLoader used by the bank caches.
func (a *BankArchive) LoadBank(ctx context.Context, bankID string) (domain.Bank, error) {
	var raw []byte
	err := a.pool.QueryRow(ctx, `SELECT data FROM question_banks WHERE id=$1`, bankID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Bank{}, domain.ErrBankNotFound
	}
	if err != nil {
		return domain.Bank{}, fmt.Errorf("load bank: %w", err)
	}
	var bank domain.Bank
	if err := json.Unmarshal(raw, &bank); err != nil {
		return domain.Bank{}, fmt.Errorf("unmarshal bank: %w", err)
	}
	return bank, nil
}
