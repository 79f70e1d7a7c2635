package ledger

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/Changyu123Chen/notion-ledger/internal/logger"
	"github.com/Changyu123Chen/notion-ledger/internal/notion"
)

// ComputeTodayDeltas streams today's transactions and nets a per-account
// delta map, each delta in the account's own currency. A transaction
// whose stored idempotency key equals its recomputed fingerprint has
// already been applied and contributes nothing. Every transaction that
// did change at least one account gets its fingerprint stamped back;
// a failed stamp is logged and the run continues, leaving that
// transaction eligible for reprocessing on the next run.
func (e *Engine) ComputeTodayDeltas(ctx context.Context, accounts map[string]*Account) (DeltaMap, error) {
	log := logger.FromContext(ctx)

	deltas := make(DeltaMap)
	var applied, replayed int

	pager := notion.NewPager(e.store, e.dbs.Transactions, &notionapi.DatabaseQueryRequest{
		Filter: dayWindowFilter(e.today()),
	})
	for pager.More() {
		pages, err := pager.Next(ctx)
		if err != nil {
			return nil, &DataSourceError{Collection: "transactions", Err: err}
		}
		for _, page := range pages {
			tx := transactionFromPage(page)

			fp := tx.Fingerprint()
			if tx.IdempotencyKey == fp {
				replayed++
				continue
			}

			if !applyTransaction(deltas, accounts, tx) {
				continue
			}
			applied++

			if err := e.stampIdempotencyKey(ctx, tx.PageID, fp); err != nil {
				log.Error().Err(err).Str("page_id", tx.PageID).Msg("Failed to store idempotency key; transaction may be reapplied next run")
			}
		}
	}

	log.Info().
		Int("applied", applied).
		Int("already_applied", replayed).
		Int("accounts_touched", len(deltas)).
		Msg("Computed today's deltas")

	return deltas, nil
}

// applyTransaction applies one transaction's currency-lane rules to the
// delta map and reports whether any account changed.
func applyTransaction(deltas DeltaMap, accounts map[string]*Account, tx Transaction) bool {
	touched := false
	add := func(name string, amount decimal.Decimal) {
		if name == "" || amount.IsZero() {
			return
		}
		deltas[name] = deltas[name].Add(amount)
		touched = true
	}
	currencyOf := func(name string) Currency {
		if acc, ok := accounts[name]; ok {
			return acc.Currency
		}
		return ""
	}

	cad, usd := tx.CAD, tx.USD

	switch tx.Type {
	case TypeExpense:
		// Reduce the source account in its own currency.
		if cad.IsPositive() && currencyOf(tx.FromAccount) == CurrencyCAD {
			add(tx.FromAccount, cad.Neg())
		}
		if usd.IsPositive() && currencyOf(tx.FromAccount) == CurrencyUSD {
			add(tx.FromAccount, usd.Neg())
		}

	case TypeIncome:
		// Increase the target account in its own currency.
		if cad.IsPositive() && currencyOf(tx.ToAccount) == CurrencyCAD {
			add(tx.ToAccount, cad)
		}
		if usd.IsPositive() && currencyOf(tx.ToAccount) == CurrencyUSD {
			add(tx.ToAccount, usd)
		}

	case TypeTransfer:
		from := currencyOf(tx.FromAccount)
		to := currencyOf(tx.ToAccount)
		if from == "" || to == "" {
			break
		}

		if from == to {
			// Same currency: move the matching lane only.
			if from == CurrencyCAD {
				if cad.IsPositive() {
					add(tx.FromAccount, cad.Neg())
					add(tx.ToAccount, cad)
				}
			} else if usd.IsPositive() {
				add(tx.FromAccount, usd.Neg())
				add(tx.ToAccount, usd)
			}
			break
		}

		// Cross-currency transfers need both exchange legs; a single
		// lane is never applied partially.
		if from == CurrencyUSD && to == CurrencyCAD && usd.IsPositive() && cad.IsPositive() {
			add(tx.FromAccount, usd.Neg())
			add(tx.ToAccount, cad)
		}
		if from == CurrencyCAD && to == CurrencyUSD && cad.IsPositive() && usd.IsPositive() {
			add(tx.FromAccount, cad.Neg())
			add(tx.ToAccount, usd)
		}

	case TypeRepayment:
		// Lanes are independent: debit and credit whichever accounts
		// match each lane's currency.
		if cad.IsPositive() {
			if currencyOf(tx.FromAccount) == CurrencyCAD {
				add(tx.FromAccount, cad.Neg())
			}
			if currencyOf(tx.ToAccount) == CurrencyCAD {
				add(tx.ToAccount, cad)
			}
		}
		if usd.IsPositive() {
			if currencyOf(tx.FromAccount) == CurrencyUSD {
				add(tx.FromAccount, usd.Neg())
			}
			if currencyOf(tx.ToAccount) == CurrencyUSD {
				add(tx.ToAccount, usd)
			}
		}
	}

	return touched
}

func (e *Engine) stampIdempotencyKey(ctx context.Context, pageID, fingerprint string) error {
	_, err := e.store.UpdatePage(ctx, pageID, notionapi.Properties{
		"Idempotency Key": richTextProp(fingerprint),
	})
	if err != nil {
		return &IdempotencyWriteError{PageID: pageID, Err: err}
	}
	return nil
}
