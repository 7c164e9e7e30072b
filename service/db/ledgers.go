package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/brojonat/solxr/service/engine"
	"github.com/brojonat/solxr/service/strategy"
	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
)

type pgTokens struct{ tx pgx.Tx }

func (l pgTokens) Mint(ctx context.Context, to solana.PublicKey, amount uint64) error {
	const query = `
		INSERT INTO token_balances (owner, amount) VALUES ($1, $2)
		ON CONFLICT (owner) DO UPDATE SET amount = token_balances.amount + EXCLUDED.amount`

	if err := fitBigint(amount); err != nil {
		return err
	}
	if _, err := l.tx.Exec(ctx, query, to.String(), i64(amount)); err != nil {
		return fmt.Errorf("postgres: mint: %w", err)
	}
	return nil
}

func (l pgTokens) BalanceOf(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return balanceOf(ctx, l.tx, "token_balances", owner)
}

func (l pgTokens) Supply(ctx context.Context) (uint64, error) {
	var supply int64
	if err := l.tx.QueryRow(ctx, "SELECT COALESCE(SUM(amount), 0)::BIGINT FROM token_balances").Scan(&supply); err != nil {
		return 0, fmt.Errorf("postgres: token supply: %w", err)
	}
	return u64(supply), nil
}

type pgCollateral struct{ tx pgx.Tx }

func (l pgCollateral) Transfer(ctx context.Context, from, to solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	const debit = `
		UPDATE collateral_balances SET amount = amount - $2
		WHERE owner = $1 AND amount >= $2`

	if err := fitBigint(amount); err != nil {
		return err
	}
	tag, err := l.tx.Exec(ctx, debit, from.String(), i64(amount))
	if err != nil {
		return fmt.Errorf("postgres: debit collateral: %w", err)
	}
	if tag.RowsAffected() == 0 {
		held, _ := balanceOf(ctx, l.tx, "collateral_balances", from)
		return fmt.Errorf("%w: %s holds %d, needs %d", engine.ErrInsufficientFunds, from, held, amount)
	}
	return l.Deposit(ctx, to, amount)
}

func (l pgCollateral) BalanceOf(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return balanceOf(ctx, l.tx, "collateral_balances", owner)
}

func (l pgCollateral) Deposit(ctx context.Context, to solana.PublicKey, amount uint64) error {
	const query = `
		INSERT INTO collateral_balances (owner, amount) VALUES ($1, $2)
		ON CONFLICT (owner) DO UPDATE SET amount = collateral_balances.amount + EXCLUDED.amount`

	if err := fitBigint(amount); err != nil {
		return err
	}
	if _, err := l.tx.Exec(ctx, query, to.String(), i64(amount)); err != nil {
		return fmt.Errorf("postgres: credit collateral: %w", err)
	}
	return nil
}

// balanceOf reads owner's row from one of the balance tables.
func balanceOf(ctx context.Context, tx pgx.Tx, table string, owner solana.PublicKey) (uint64, error) {
	var amount int64
	err := tx.QueryRow(ctx, "SELECT amount FROM "+table+" WHERE owner = $1", owner.String()).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: read %s: %w", table, err)
	}
	return u64(amount), nil
}

type pgEditions struct{ tx pgx.Tx }

func (l pgEditions) CreateMaster(ctx context.Context, master solana.PublicKey, supplyCap *uint64) error {
	var capValue *int64
	if supplyCap != nil {
		if err := fitBigint(*supplyCap); err != nil {
			return err
		}
		v := i64(*supplyCap)
		capValue = &v
	}
	_, err := l.tx.Exec(ctx,
		"INSERT INTO edition_masters (master, supply_cap) VALUES ($1, $2)",
		master.String(), capValue)
	if err != nil {
		return fmt.Errorf("postgres: create master %s: %w", master, err)
	}
	return nil
}

func (l pgEditions) PrintEdition(ctx context.Context, master, edition solana.PublicKey, number uint64, to solana.PublicKey) error {
	const reserve = `
		UPDATE edition_masters SET printed = printed + 1
		WHERE master = $1 AND (supply_cap IS NULL OR printed < supply_cap)`

	tag, err := l.tx.Exec(ctx, reserve, master.String())
	if err != nil {
		return fmt.Errorf("postgres: reserve edition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return strategy.Errorf(strategy.ErrSupplyExhausted, "master %s cannot print edition %d", master, number)
	}
	_, err = l.tx.Exec(ctx,
		"INSERT INTO editions (edition, master, number, owner) VALUES ($1, $2, $3, $4)",
		edition.String(), master.String(), i64(number), to.String())
	if err != nil {
		return fmt.Errorf("postgres: print edition %d: %w", number, err)
	}
	return nil
}

func (l pgEditions) AmountHeld(ctx context.Context, edition, owner solana.PublicKey) (uint64, error) {
	var held int64
	err := l.tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM editions WHERE edition = $1 AND owner = $2 AND NOT burned",
		edition.String(), owner.String()).Scan(&held)
	if err != nil {
		return 0, fmt.Errorf("postgres: amount held: %w", err)
	}
	return u64(held), nil
}

func (l pgEditions) Burn(ctx context.Context, edition, owner solana.PublicKey) error {
	tag, err := l.tx.Exec(ctx,
		"UPDATE editions SET burned = TRUE WHERE edition = $1 AND owner = $2 AND NOT burned",
		edition.String(), owner.String())
	if err != nil {
		return fmt.Errorf("postgres: burn edition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return strategy.Errorf(strategy.ErrNotHeld, "%s does not hold edition %s", owner, edition)
	}
	return nil
}

func (l pgEditions) Transfer(ctx context.Context, edition, from, to solana.PublicKey) error {
	tag, err := l.tx.Exec(ctx,
		"UPDATE editions SET owner = $3 WHERE edition = $1 AND owner = $2 AND NOT burned",
		edition.String(), from.String(), to.String())
	if err != nil {
		return fmt.Errorf("postgres: transfer edition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return strategy.Errorf(strategy.ErrNotHeld, "%s does not hold edition %s", from, edition)
	}
	return nil
}
