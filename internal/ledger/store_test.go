package ledger

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jomei/notionapi"

	"github.com/Changyu123Chen/notion-ledger/internal/logger"
)

// fakeStore is an in-memory notion.Service. It interprets the filter
// shapes the engine actually issues (day windows, select equality,
// title/rich-text equality) and applies page updates to its stored
// pages so multi-run tests observe persisted state.
type fakeStore struct {
	pages     map[string][]*notionapi.Page
	created   []createdPage
	updates   map[string]int
	queryErr  map[string]error
	updateErr map[string]error
	createErr error
	nextID    int
}

type createdPage struct {
	DatabaseID string
	Props      notionapi.Properties
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pages:     make(map[string][]*notionapi.Page),
		updates:   make(map[string]int),
		queryErr:  make(map[string]error),
		updateErr: make(map[string]error),
	}
}

func (f *fakeStore) add(databaseID string, page notionapi.Page) {
	p := page
	f.pages[databaseID] = append(f.pages[databaseID], &p)
}

func (f *fakeStore) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if err := f.queryErr[databaseID]; err != nil {
		return nil, err
	}

	var results []notionapi.Page
	for _, page := range f.pages[databaseID] {
		if matchFilter(*page, req.Filter) {
			results = append(results, *page)
		}
	}
	if req.PageSize > 0 && len(results) > req.PageSize {
		results = results[:req.PageSize]
	}
	return &notionapi.DatabaseQueryResponse{Results: results}, nil
}

func (f *fakeStore) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, createdPage{DatabaseID: databaseID, Props: properties})

	f.nextID++
	page := notionapi.Page{
		ID:         notionapi.ObjectID(fmt.Sprintf("fake-%d", f.nextID)),
		Properties: normalizeProps(properties),
	}
	f.pages[databaseID] = append(f.pages[databaseID], &page)
	return &page, nil
}

func (f *fakeStore) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if err := f.updateErr[pageID]; err != nil {
		return nil, err
	}
	f.updates[pageID]++

	for _, pages := range f.pages {
		for _, page := range pages {
			if string(page.ID) == pageID {
				for k, v := range normalizeProps(properties) {
					page.Properties[k] = v
				}
				return page, nil
			}
		}
	}
	return nil, fmt.Errorf("page %s not found", pageID)
}

// normalizeProps converts value-typed written properties into the
// pointer-typed form the API returns on reads, and fills in PlainText
// the way the live service would.
func normalizeProps(props notionapi.Properties) notionapi.Properties {
	out := make(notionapi.Properties, len(props))
	for key, prop := range props {
		switch p := prop.(type) {
		case notionapi.TitleProperty:
			p.Title = fillPlainText(p.Title)
			out[key] = &p
		case notionapi.RichTextProperty:
			p.RichText = fillPlainText(p.RichText)
			out[key] = &p
		case notionapi.SelectProperty:
			out[key] = &p
		case notionapi.NumberProperty:
			out[key] = &p
		case notionapi.DateProperty:
			out[key] = &p
		case notionapi.CheckboxProperty:
			out[key] = &p
		default:
			out[key] = prop
		}
	}
	return out
}

func fillPlainText(rts []notionapi.RichText) []notionapi.RichText {
	for i := range rts {
		if rts[i].PlainText == "" && rts[i].Text != nil {
			rts[i].PlainText = rts[i].Text.Content
		}
	}
	return rts
}

func matchFilter(page notionapi.Page, f notionapi.Filter) bool {
	switch ft := f.(type) {
	case nil:
		return true
	case notionapi.AndCompoundFilter:
		for _, sub := range ft {
			if !matchFilter(page, sub) {
				return false
			}
		}
		return true
	case notionapi.OrCompoundFilter:
		for _, sub := range ft {
			if matchFilter(page, sub) {
				return true
			}
		}
		return false
	case notionapi.PropertyFilter:
		return matchProperty(page, ft)
	default:
		return true
	}
}

func matchProperty(page notionapi.Page, f notionapi.PropertyFilter) bool {
	prop := page.Properties[f.Property]
	switch {
	case f.Date != nil:
		day := readDateStart(prop)
		if day == "" {
			return false
		}
		if f.Date.OnOrAfter != nil && day < dayString(f.Date.OnOrAfter) {
			return false
		}
		if f.Date.Before != nil && day >= dayString(f.Date.Before) {
			return false
		}
		return true
	case f.Select != nil:
		return readSelect(prop) == f.Select.Equals
	case f.RichText != nil:
		return readRichText(prop) == f.RichText.Equals
	case f.Title != nil:
		return readTitle(prop) == f.Title.Equals
	default:
		return true
	}
}

func dayString(d *notionapi.Date) string {
	return time.Time(*d).Format("2006-01-02")
}

// Test page builders.

func testRichText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type:      notionapi.ObjectTypeText,
			Text:      &notionapi.Text{Content: content},
			PlainText: content,
		},
	}
}

func testAccountPage(id, name, currency string, balance float64) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			"Name":            &notionapi.TitleProperty{Title: testRichText(name)},
			"Currency":        &notionapi.SelectProperty{Select: notionapi.Option{Name: currency}},
			"Current Balance": &notionapi.NumberProperty{Number: balance},
		},
	}
}

func testDateProp(day string) *notionapi.DateProperty {
	t, _ := time.Parse("2006-01-02", day)
	d := notionapi.Date(t)
	return &notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

func testTransactionPage(id, txType, from, to string, cad, usd float64, day string) notionapi.Page {
	props := notionapi.Properties{
		"Type":       &notionapi.SelectProperty{Select: notionapi.Option{Name: txType}},
		"CAD Amount": &notionapi.NumberProperty{Number: cad},
		"USD Amount": &notionapi.NumberProperty{Number: usd},
		"Date":       testDateProp(day),
	}
	if from != "" {
		props["From Account"] = &notionapi.SelectProperty{Select: notionapi.Option{Name: from}}
	}
	if to != "" {
		props["To Account"] = &notionapi.SelectProperty{Select: notionapi.Option{Name: to}}
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func testDailyBalancePage(id, account, currency string, delta, closing float64, day string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			"Account":         &notionapi.RichTextProperty{RichText: testRichText(account)},
			"Currency":        &notionapi.SelectProperty{Select: notionapi.Option{Name: currency}},
			"Delta":           &notionapi.NumberProperty{Number: delta},
			"Closing Balance": &notionapi.NumberProperty{Number: closing},
			"Date":            testDateProp(day),
		},
	}
}

func testBudgetPage(id, month string, budget, remaining float64) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			"Name":      &notionapi.TitleProperty{Title: testRichText(month)},
			"Month":     &notionapi.RichTextProperty{RichText: testRichText(month)},
			"Budget":    &notionapi.NumberProperty{Number: budget},
			"Remaining": &notionapi.NumberProperty{Number: remaining},
		},
	}
}

// Engine fixtures pinned to a fixed clock.

const (
	testDay      = "2025-03-14"
	testMonth    = "2025-03"
	txDB         = "db-transactions"
	accountsDB   = "db-accounts"
	dailyDB      = "db-daily-balances"
	budgetsDB    = "db-budgets"
	yesterdayDay = "2025-03-13"
)

func testEngine(store *fakeStore) *Engine {
	e := New(store, Databases{
		Transactions:  txDB,
		Accounts:      accountsDB,
		DailyBalances: dailyDB,
		Budgets:       budgetsDB,
	})
	e.now = func() time.Time {
		return time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	}
	return e
}

func testCtx() context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(io.Discard))
}
