// Package weights refreshes and serves the cached weight-tracking
// snapshot: the full Notion weights table is pulled, converted, and
// written to object storage as a single JSON document that the widget
// front end reads.
package weights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/Changyu123Chen/notion-ledger/internal/logger"
	"github.com/Changyu123Chen/notion-ledger/internal/notion"
	"github.com/Changyu123Chen/notion-ledger/internal/objstore"
)

// Row is one weight measurement.
type Row struct {
	Date    string   `json:"date"`
	Morning *float64 `json:"morning,omitempty"`
	Night   *float64 `json:"night,omitempty"`
	Title   string   `json:"title"`
}

// Snapshot is the cached JSON document.
type Snapshot struct {
	UpdatedAt time.Time `json:"updatedAt"`
	Rows      []Row     `json:"rows"`
}

// Cache pulls the weights table from Notion and stores the snapshot in
// object storage under a fixed key.
type Cache struct {
	store      notion.Service
	databaseID string
	objects    objstore.Store
	key        string
	now        func() time.Time
}

// NewCache creates a Cache writing to the given object key.
func NewCache(store notion.Service, databaseID string, objects objstore.Store, key string) *Cache {
	return &Cache{
		store:      store,
		databaseID: databaseID,
		objects:    objects,
		key:        key,
		now:        time.Now,
	}
}

// Refresh pulls the full table and rewrites the snapshot. It returns
// the number of rows cached.
func (c *Cache) Refresh(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)

	var rows []Row
	pager := notion.NewPager(c.store, c.databaseID, &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{
			{Property: "Measurement Date", Direction: notionapi.SortOrderASC},
		},
	})
	for pager.More() {
		pages, err := pager.Next(ctx)
		if err != nil {
			return 0, fmt.Errorf("querying weights: %w", err)
		}
		for _, page := range pages {
			row := rowFromPage(page)
			if row.Date == "" && row.Morning == nil && row.Night == nil {
				continue
			}
			rows = append(rows, row)
		}
	}

	snapshot := Snapshot{UpdatedAt: c.now().UTC(), Rows: rows}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return 0, fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := c.objects.Put(ctx, c.key, data, "application/json"); err != nil {
		return 0, fmt.Errorf("storing snapshot: %w", err)
	}

	log.Info().Int("rows", len(rows)).Str("key", c.key).Msg("Refreshed weight snapshot")
	return len(rows), nil
}

// Latest returns the most recently written snapshot. It falls back to a
// prefix lookup when the exact key is missing, and reports
// objstore.ErrNotFound when no snapshot has been written yet.
func (c *Cache) Latest(ctx context.Context) (*Snapshot, error) {
	data, err := c.objects.Get(ctx, c.key)
	if errors.Is(err, objstore.ErrNotFound) {
		key, findErr := c.objects.Find(ctx, c.key)
		if findErr != nil {
			return nil, findErr
		}
		data, err = c.objects.Get(ctx, key)
	}
	if err != nil {
		return nil, err
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snapshot, nil
}

func rowFromPage(page notionapi.Page) Row {
	props := page.Properties
	return Row{
		Title:   readTitle(props["Weight"]),
		Date:    readDateStart(props["Measurement Date"]),
		Morning: readOptionalNumber(props["Morning weight"]),
		Night:   readOptionalNumber(props["Night Weight"]),
	}
}

func readTitle(prop notionapi.Property) string {
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok {
		return ""
	}
	var sb strings.Builder
	for _, rt := range title.Title {
		sb.WriteString(rt.PlainText)
	}
	return sb.String()
}

func readDateStart(prop notionapi.Property) string {
	if d, ok := prop.(*notionapi.DateProperty); ok && d.Date != nil && d.Date.Start != nil {
		return time.Time(*d.Date.Start).Format("2006-01-02")
	}
	return ""
}

// readOptionalNumber treats a zero reading as unset; the store returns
// empty number properties as zero and a zero weight is never real.
func readOptionalNumber(prop notionapi.Property) *float64 {
	num, ok := prop.(*notionapi.NumberProperty)
	if !ok || num.Number == 0 {
		return nil
	}
	n := num.Number
	return &n
}
