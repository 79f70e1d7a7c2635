package ledger

import (
	"context"

	"github.com/Changyu123Chen/notion-ledger/internal/logger"
	"github.com/Changyu123Chen/notion-ledger/internal/notion"
)

// LoadAccounts reads the full account directory into a name-keyed map.
// Rows without a resolvable name are skipped; a failed page fetch aborts
// with a DataSourceError.
func (e *Engine) LoadAccounts(ctx context.Context) (map[string]*Account, error) {
	log := logger.FromContext(ctx)

	accounts := make(map[string]*Account)
	var skipped int

	pager := notion.NewPager(e.store, e.dbs.Accounts, nil)
	for pager.More() {
		pages, err := pager.Next(ctx)
		if err != nil {
			return nil, &DataSourceError{Collection: "accounts", Err: err}
		}
		for _, page := range pages {
			acc, err := accountFromPage(page)
			if err != nil {
				skipped++
				log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Skipping account row")
				continue
			}
			accounts[acc.Name] = acc
		}
	}

	log.Info().
		Int("accounts", len(accounts)).
		Int("skipped", skipped).
		Msg("Loaded account directory")

	return accounts, nil
}
