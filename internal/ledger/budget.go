package ledger

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/Changyu123Chen/notion-ledger/internal/logger"
	"github.com/Changyu123Chen/notion-ledger/internal/notion"
)

// defaultMonthlyBudget seeds a budget row created on the first expense
// of a new month.
var defaultMonthlyBudget = decimal.NewFromInt(1000)

// ComputeTodayExpenseTotal sums the CAD amount of every expense
// transaction dated today with a positive CAD lane.
func (e *Engine) ComputeTodayExpenseTotal(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero

	filter := append(dayWindowFilter(e.today()), notionapi.PropertyFilter{
		Property: "Type",
		Select:   &notionapi.SelectFilterCondition{Equals: "Expense"},
	})

	pager := notion.NewPager(e.store, e.dbs.Transactions, &notionapi.DatabaseQueryRequest{
		Filter: filter,
	})
	for pager.More() {
		pages, err := pager.Next(ctx)
		if err != nil {
			return decimal.Zero, &DataSourceError{Collection: "transactions", Err: err}
		}
		for _, page := range pages {
			if cad := readNumber(page.Properties["CAD Amount"]); cad.IsPositive() {
				total = total.Add(cad)
			}
		}
	}

	return total, nil
}

// UpsertMonthlyBudget locates the current month's budget row by month
// key or name and applies today's expense total to its remaining
// allowance, creating the row with defaults when the month is new.
//
// Known limitation carried over from the upstream behavior: the full
// day total is subtracted on every run, so a second run in the same day
// subtracts that day's expenses twice. last_recalc records each run so
// operators can spot repeats.
func (e *Engine) UpsertMonthlyBudget(ctx context.Context, expenseTotal decimal.Decimal) error {
	log := logger.FromContext(ctx)

	month := e.monthKey()
	now := e.now()

	resp, err := e.store.QueryDatabase(ctx, e.dbs.Budgets, &notionapi.DatabaseQueryRequest{
		PageSize: 1,
		Filter: notionapi.OrCompoundFilter{
			notionapi.PropertyFilter{
				Property: "Month",
				RichText: &notionapi.TextFilterCondition{Equals: month},
			},
			notionapi.PropertyFilter{
				Property: "Name",
				Title:    &notionapi.TextFilterCondition{Equals: month},
			},
		},
	})
	if err != nil {
		return &BudgetUpdateError{Err: fmt.Errorf("querying budgets: %w", err)}
	}

	if len(resp.Results) == 0 {
		remaining := defaultMonthlyBudget.Sub(expenseTotal)
		_, err := e.store.CreatePage(ctx, e.dbs.Budgets, notionapi.Properties{
			"Name":        titleProp(month),
			"Month":       richTextProp(month),
			"Budget":      numberProp(defaultMonthlyBudget),
			"Remaining":   numberProp(remaining),
			"Last Recalc": dateProp(now),
		})
		if err != nil {
			return &BudgetUpdateError{Err: fmt.Errorf("creating budget row: %w", err)}
		}

		log.Info().
			Str("month", month).
			Str("budget", defaultMonthlyBudget.String()).
			Str("remaining", remaining.String()).
			Str("expense_total", expenseTotal.String()).
			Msg("Created monthly budget row")
		return nil
	}

	page := resp.Results[0]
	budget := readNumber(page.Properties["Budget"])
	remaining := readNumber(page.Properties["Remaining"])

	// A remaining of zero is treated as never recorded and falls back
	// to the budget amount (the store returns unset numbers as zero).
	base := remaining
	if remaining.IsZero() {
		base = budget
	}
	newRemaining := base.Sub(expenseTotal)

	_, err = e.store.UpdatePage(ctx, string(page.ID), notionapi.Properties{
		"Remaining":   numberProp(newRemaining),
		"Last Recalc": dateProp(now),
	})
	if err != nil {
		return &BudgetUpdateError{Err: fmt.Errorf("updating budget row: %w", err)}
	}

	log.Info().
		Str("month", month).
		Str("remaining", base.String()).
		Str("new_remaining", newRemaining.String()).
		Str("expense_total", expenseTotal.String()).
		Msg("Updated monthly budget")
	return nil
}

func (e *Engine) monthKey() string {
	day := e.today()
	return fmt.Sprintf("%04d-%02d", day.Year, int(day.Month))
}
