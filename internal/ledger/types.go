package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Currency is an account's settlement currency.
type Currency string

const (
	CurrencyCAD Currency = "CAD"
	CurrencyUSD Currency = "USD"
)

// Transaction types recognized by the delta computer. Any other value
// contributes no delta.
const (
	TypeExpense   = "expense"
	TypeIncome    = "income"
	TypeTransfer  = "transfer"
	TypeRepayment = "repayment"
)

// Account is one row of the account directory. Balances are mutated
// only by the balance updater.
type Account struct {
	PageID   string
	Name     string
	Currency Currency
	Balance  decimal.Decimal
}

// Transaction is a validated ledger transaction. CAD and USD are its
// two currency lanes; either may be zero.
type Transaction struct {
	PageID         string
	Type           string
	FromAccount    string
	ToAccount      string
	CAD            decimal.Decimal
	USD            decimal.Decimal
	Date           string // YYYY-MM-DD
	IdempotencyKey string
}

// Fingerprint returns a stable hash of the transaction's semantic
// fields. It is independent of the stored idempotency key and of any
// edit timestamps, so re-reading an already-applied transaction yields
// the same value.
func (t Transaction) Fingerprint() string {
	payload := struct {
		Type string `json:"type"`
		From string `json:"from"`
		To   string `json:"to"`
		CAD  string `json:"cad"`
		USD  string `json:"usd"`
		Date string `json:"date"`
	}{t.Type, t.FromAccount, t.ToAccount, t.CAD.String(), t.USD.String(), t.Date}

	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// DeltaMap holds the net per-account delta for one day, each in that
// account's own currency.
type DeltaMap map[string]decimal.Decimal

// DailyBalance is one day-level audit row: an account's net change and
// closing balance for a single calendar day. A row created earlier in
// the same run has an empty PageID until the next run re-queries it.
type DailyBalance struct {
	PageID      string
	AccountName string
	Currency    Currency
	Delta       decimal.Decimal
	Closing     decimal.Decimal
}

// BalanceIndex indexes today's daily-balance rows by account and
// currency.
type BalanceIndex map[string]*DailyBalance

func balanceKey(account string, currency Currency) string {
	return account + "||" + string(currency)
}
