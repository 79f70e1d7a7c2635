package ledger

import (
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// Property readers. Notion rows arrive loosely typed; these fail closed
// by returning zero values so callers can skip incomplete rows.

func plainText(rts []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range rts {
		sb.WriteString(rt.PlainText)
	}
	return sb.String()
}

func readTitle(prop notionapi.Property) string {
	if title, ok := prop.(*notionapi.TitleProperty); ok {
		return plainText(title.Title)
	}
	return ""
}

func readRichText(prop notionapi.Property) string {
	if rich, ok := prop.(*notionapi.RichTextProperty); ok {
		return plainText(rich.RichText)
	}
	return ""
}

func readSelect(prop notionapi.Property) string {
	if sel, ok := prop.(*notionapi.SelectProperty); ok {
		return sel.Select.Name
	}
	return ""
}

func readNumber(prop notionapi.Property) decimal.Decimal {
	if num, ok := prop.(*notionapi.NumberProperty); ok {
		return decimal.NewFromFloat(num.Number)
	}
	return decimal.Zero
}

func readDateStart(prop notionapi.Property) string {
	if d, ok := prop.(*notionapi.DateProperty); ok && d.Date != nil && d.Date.Start != nil {
		return time.Time(*d.Date.Start).Format("2006-01-02")
	}
	return ""
}

// readAccountRef reads an account reference that may be stored as a
// select, rich text, or title property.
func readAccountRef(prop notionapi.Property) string {
	if name := readSelect(prop); name != "" {
		return name
	}
	if name := readRichText(prop); name != "" {
		return name
	}
	return readTitle(prop)
}

// Property builders.

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

func titleProp(content string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Title: richText(content)}
}

func richTextProp(content string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{RichText: richText(content)}
}

func selectProp(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Select: notionapi.Option{Name: name}}
}

func numberProp(d decimal.Decimal) notionapi.NumberProperty {
	return notionapi.NumberProperty{Number: d.InexactFloat64()}
}

func dateProp(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{Start: &d},
	}
}

// Entity conversion.

// accountFromPage converts an account row, failing closed when the name
// cannot be resolved.
func accountFromPage(page notionapi.Page) (*Account, error) {
	name := readAccountRef(page.Properties["Name"])
	if name == "" {
		return nil, &ValidationError{Collection: "accounts", Field: "Name"}
	}

	currency := Currency(readSelect(page.Properties["Currency"]))
	if currency == "" {
		currency = CurrencyCAD
	}

	return &Account{
		PageID:   string(page.ID),
		Name:     name,
		Currency: currency,
		Balance:  readNumber(page.Properties["Current Balance"]),
	}, nil
}

func transactionFromPage(page notionapi.Page) Transaction {
	props := page.Properties
	return Transaction{
		PageID:         string(page.ID),
		Type:           strings.ToLower(strings.TrimSpace(readSelect(props["Type"]))),
		FromAccount:    readAccountRef(props["From Account"]),
		ToAccount:      readAccountRef(props["To Account"]),
		CAD:            readNumber(props["CAD Amount"]),
		USD:            readNumber(props["USD Amount"]),
		Date:           readDateStart(props["Date"]),
		IdempotencyKey: readRichText(props["Idempotency Key"]),
	}
}

// dailyBalanceFromPage converts a daily-balance row, failing closed when
// the account or currency cannot be resolved.
func dailyBalanceFromPage(page notionapi.Page) (*DailyBalance, error) {
	props := page.Properties

	account := readAccountRef(props["Account"])
	if account == "" {
		return nil, &ValidationError{Collection: "daily balances", Field: "Account"}
	}
	currency := Currency(readSelect(props["Currency"]))
	if currency == "" {
		return nil, &ValidationError{Collection: "daily balances", Field: "Currency"}
	}

	return &DailyBalance{
		PageID:      string(page.ID),
		AccountName: account,
		Currency:    currency,
		Delta:       readNumber(props["Delta"]),
		Closing:     readNumber(props["Closing Balance"]),
	}, nil
}
