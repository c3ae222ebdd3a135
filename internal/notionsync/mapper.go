package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

// Property names of the Notion databases.
const (
	PropTitle         = "Description"
	PropTransactionID = "Transaction ID"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropType          = "Type"
	PropCategory      = "Category"
	PropMonth         = "Month"
	PropBucket        = "Bucket"

	PropPerson  = "Person"
	PropDebtID  = "Debt ID"
	PropStatus  = "Status"
	PropDueDate = "Due Date"
)

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{RichText: []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}}}
}

func title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Title: []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}}}
}

func date(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

func selectOption(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Select: notionapi.Option{Name: name}}
}

// TransactionToNotionProperties maps t onto a row of the transactions
// database. The title falls back to the category when there is no
// description.
func TransactionToNotionProperties(t domain.Transaction) notionapi.Properties {
	name := t.Description
	if name == "" {
		name = t.Category
	}
	amount, _ := t.Amount.Float64()
	props := notionapi.Properties{
		PropTitle:         title(name),
		PropTransactionID: richText(t.ID),
		PropDate:          date(t.Date.UTC()),
		PropAmount:        notionapi.NumberProperty{Number: amount},
		PropType:          selectOption(string(t.Type)),
		PropCategory:      selectOption(t.Category),
		PropMonth:         richText(t.Month()),
	}
	if t.Type == domain.Expense {
		props[PropBucket] = selectOption(string(domain.BucketFor(t.Category)))
	}
	return props
}

// DebtToNotionProperties maps d onto a row of the debts database.
func DebtToNotionProperties(d domain.DebtRecord) notionapi.Properties {
	amount, _ := d.Amount.Float64()
	props := notionapi.Properties{
		PropPerson: title(d.Person),
		PropDebtID: richText(d.ID),
		PropDate:   date(d.Date.UTC()),
		PropAmount: notionapi.NumberProperty{Number: amount},
		PropType:   selectOption(string(d.Type)),
		PropStatus: selectOption(string(d.Status)),
	}
	if d.DueDate != nil {
		props[PropDueDate] = date(d.DueDate.UTC())
	}
	if d.Description != "" {
		props[PropTitle] = richText(d.Description)
	}
	return props
}

func plainText(page notionapi.Page, prop string) string {
	switch p := page.Properties[prop].(type) {
	case *notionapi.RichTextProperty:
		if len(p.RichText) > 0 {
			return p.RichText[0].PlainText
		}
	case *notionapi.TitleProperty:
		if len(p.Title) > 0 {
			return p.Title[0].PlainText
		}
	}
	return ""
}

func selectName(page notionapi.Page, prop string) string {
	if p, ok := page.Properties[prop].(*notionapi.SelectProperty); ok {
		return p.Select.Name
	}
	return ""
}
