package notion

import (
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/export"
	"github.com/jomei/notionapi"
)

// Property names of the ledger database.
const (
	propTitle        = "Description"
	propLineID       = "Line ID"
	propEntryID      = "Entry ID"
	propPeriod       = "Period"
	propDate         = "Date"
	propKind         = "Kind"
	propAccount      = "Account"
	propDebit        = "Debit"
	propCredit       = "Credit"
	propReference    = "Reference"
	propTransactions = "Transactions"
)

// LineProperties maps one ledger line to Notion page properties.
func LineProperties(row export.EntryRow) notionapi.Properties {
	props := notionapi.Properties{
		propTitle: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: row.Description}},
			},
		},
		propLineID:  richText(row.LineID),
		propEntryID: richText(row.EntryID),
		propPeriod:  richText(row.PeriodID),
		propDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: dateOf(row.Date)},
		},
		propKind: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(row.Kind)},
		},
		propAccount: notionapi.SelectProperty{
			Select: notionapi.Option{Name: accountLabel(row)},
		},
		propDebit:  notionapi.NumberProperty{Number: row.Debit.InexactFloat64()},
		propCredit: notionapi.NumberProperty{Number: row.Credit.InexactFloat64()},
	}

	if row.Reference != "" {
		props[propReference] = richText(row.Reference)
	}
	if len(row.TransactionIDs) > 0 {
		props[propTransactions] = richText(strings.Join(row.TransactionIDs, ", "))
	}

	return props
}

// accountLabel is "code name", or the name alone for unresolved accounts.
// Notion select options may not contain commas.
func accountLabel(row export.EntryRow) string {
	label := row.AccountName
	if row.AccountCode != "" {
		label = row.AccountCode + " " + row.AccountName
	}
	return strings.ReplaceAll(label, ",", " ")
}

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
		},
	}
}

func dateOf(t time.Time) *notionapi.Date {
	d := notionapi.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return &d
}

// plainText reads a rich text property from a queried page.
func plainText(page notionapi.Page, name string) string {
	prop, ok := page.Properties[name]
	if !ok {
		return ""
	}
	rt, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(rt.RichText) == 0 {
		return ""
	}
	if rt.RichText[0].PlainText != "" {
		return rt.RichText[0].PlainText
	}
	if rt.RichText[0].Text != nil {
		return rt.RichText[0].Text.Content
	}
	return ""
}
