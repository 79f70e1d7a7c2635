package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/Changyu123Chen/notion-ledger/internal/logger"
	"github.com/Changyu123Chen/notion-ledger/internal/notion"
)

// LoadTodayBalanceIndex preloads today's daily-balance rows keyed by
// account and currency, so the updater can upsert without a per-account
// query. Rows missing the account or currency are skipped.
func (e *Engine) LoadTodayBalanceIndex(ctx context.Context) (BalanceIndex, error) {
	log := logger.FromContext(ctx)

	index := make(BalanceIndex)

	pager := notion.NewPager(e.store, e.dbs.DailyBalances, &notionapi.DatabaseQueryRequest{
		Filter: dayWindowFilter(e.today()),
	})
	for pager.More() {
		pages, err := pager.Next(ctx)
		if err != nil {
			return nil, &DataSourceError{Collection: "daily balances", Err: err}
		}
		for _, page := range pages {
			row, err := dailyBalanceFromPage(page)
			if err != nil {
				log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Skipping daily balance row")
				continue
			}
			index[balanceKey(row.AccountName, row.Currency)] = row
		}
	}

	log.Info().Int("rows", len(index)).Msg("Loaded today's daily balance index")
	return index, nil
}

// UpdateBalances applies the computed deltas to every known account and
// upserts the day-level audit row for each. Accounts without a delta
// still get a daily row recording delta 0 and the unchanged closing
// balance.
func (e *Engine) UpdateBalances(ctx context.Context, accounts map[string]*Account, deltas DeltaMap, index BalanceIndex) error {
	log := logger.FromContext(ctx)
	day := e.today()

	names := make([]string, 0, len(accounts))
	for name := range accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		acc := accounts[name]
		delta := deltas[name]
		newBalance := acc.Balance.Add(delta)

		if !delta.IsZero() {
			log.Info().
				Str("account", name).
				Str("currency", string(acc.Currency)).
				Str("balance", acc.Balance.String()).
				Str("new_balance", newBalance.String()).
				Str("delta", delta.String()).
				Msg("Updating account balance")

			_, err := e.store.UpdatePage(ctx, acc.PageID, notionapi.Properties{
				"Current Balance": numberProp(newBalance),
			})
			if err != nil {
				return fmt.Errorf("updating balance of %q: %w", name, err)
			}
			acc.Balance = newBalance
		} else {
			log.Debug().
				Str("account", name).
				Str("currency", string(acc.Currency)).
				Str("closing", acc.Balance.String()).
				Msg("No transactions today")
		}

		if err := e.upsertDailyBalance(ctx, index, acc, delta, acc.Balance, day); err != nil {
			return err
		}
	}

	return nil
}

// upsertDailyBalance creates or updates the (account, currency, day)
// audit row. The index is refreshed in memory after every write so a
// second touch within the same run updates instead of creating a
// duplicate, even though a just-created row's page ID is unknown until
// the next run.
func (e *Engine) upsertDailyBalance(ctx context.Context, index BalanceIndex, acc *Account, delta, closing decimal.Decimal, day civil.Date) error {
	key := balanceKey(acc.Name, acc.Currency)

	if row, ok := index[key]; ok {
		newDelta := row.Delta.Add(delta)
		if delta.IsZero() && closing.Equal(row.Closing) {
			return nil
		}
		if row.PageID != "" {
			_, err := e.store.UpdatePage(ctx, row.PageID, notionapi.Properties{
				"Delta":           numberProp(newDelta),
				"Closing Balance": numberProp(closing),
			})
			if err != nil {
				return fmt.Errorf("updating daily balance row for %q: %w", acc.Name, err)
			}
		}
		row.Delta = newDelta
		row.Closing = closing
		return nil
	}

	_, err := e.store.CreatePage(ctx, e.dbs.DailyBalances, notionapi.Properties{
		"Name":            titleProp(dailySummaryName(day)),
		"Date":            notionapi.DateProperty{Date: &notionapi.DateObject{Start: dateValue(day)}},
		"Account":         richTextProp(acc.Name),
		"Currency":        selectProp(string(acc.Currency)),
		"Delta":           numberProp(delta),
		"Closing Balance": numberProp(closing),
		"Source":          selectProp("automated"),
		"Reconciled":      notionapi.CheckboxProperty{Checkbox: false},
	})
	if err != nil {
		return fmt.Errorf("creating daily balance row for %q: %w", acc.Name, err)
	}

	// The created row's page ID is unknown without a re-query; an
	// empty ID still guards against a duplicate create this run.
	index[key] = &DailyBalance{
		AccountName: acc.Name,
		Currency:    acc.Currency,
		Delta:       delta,
		Closing:     closing,
	}
	return nil
}

func dailySummaryName(day civil.Date) string {
	return day.In(time.Local).Format("January 2, 2006") + " - Summary"
}
