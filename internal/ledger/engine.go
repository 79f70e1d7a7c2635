package ledger

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jomei/notionapi"

	"github.com/Changyu123Chen/notion-ledger/internal/logger"
	"github.com/Changyu123Chen/notion-ledger/internal/notion"
)

// Databases names the Notion databases the engine works against.
type Databases struct {
	Transactions  string
	Accounts      string
	DailyBalances string
	Budgets       string
}

// Engine runs the daily ledger reconciliation: it nets today's
// transaction deltas per account, applies them to account balances,
// maintains the day-level audit rows, and reconciles the monthly
// budget counter.
type Engine struct {
	store notion.Service
	dbs   Databases
	now   func() time.Time
}

// New creates an Engine over the given store and databases.
func New(store notion.Service, dbs Databases) *Engine {
	return &Engine{
		store: store,
		dbs:   dbs,
		now:   time.Now,
	}
}

func (e *Engine) today() civil.Date {
	return civil.DateOf(e.now())
}

func dateValue(d civil.Date) *notionapi.Date {
	t := d.In(time.Local)
	nd := notionapi.Date(t)
	return &nd
}

// dayWindowFilter matches rows dated within the given calendar day.
func dayWindowFilter(day civil.Date) notionapi.AndCompoundFilter {
	return notionapi.AndCompoundFilter{
		notionapi.PropertyFilter{
			Property: "Date",
			Date:     &notionapi.DateFilterCondition{OnOrAfter: dateValue(day)},
		},
		notionapi.PropertyFilter{
			Property: "Date",
			Date:     &notionapi.DateFilterCondition{Before: dateValue(day.AddDays(1))},
		},
	}
}

// RunDailyRecalc executes one reconciliation run. The run is a single
// best-effort pass with no cross-step transaction: a mid-run failure
// leaves some accounts updated and others not, and is safe to retry
// because unstamped transactions are simply reprocessed. There is no
// cross-process locking; two overlapping runs can double-apply.
func (e *Engine) RunDailyRecalc(ctx context.Context) error {
	log := logger.FromContext(ctx).With().Str("run_id", uuid.NewString()).Logger()
	ctx = logger.WithContext(ctx, log)

	accounts, err := e.LoadAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		log.Error().Msg("No accounts found; check the accounts database and property names")
		return nil
	}

	deltas, err := e.ComputeTodayDeltas(ctx, accounts)
	if err != nil {
		return err
	}
	if len(deltas) == 0 {
		log.Info().Msg("No transactions for today; daily balance rows still written with delta 0")
	}

	index, err := e.LoadTodayBalanceIndex(ctx)
	if err != nil {
		return err
	}

	if err := e.UpdateBalances(ctx, accounts, deltas, index); err != nil {
		return err
	}

	if err := e.reconcileBudget(ctx); err != nil {
		log.Error().Err(err).Msg("Budget reconciliation failed; balance updates are preserved")
	}

	log.Info().Int("accounts", len(accounts)).Msg("Daily recalculation completed")
	return nil
}

func (e *Engine) reconcileBudget(ctx context.Context) error {
	total, err := e.ComputeTodayExpenseTotal(ctx)
	if err != nil {
		return &BudgetUpdateError{Err: err}
	}
	return e.UpsertMonthlyBudget(ctx, total)
}
