// Package report turns a bill into the tabular document written by the
// export sinks.
package report

import (
	"fmt"
	"strings"
	"time"

	"smartbill/internal/core"
	"smartbill/internal/reflow"
)

// NoInsights is used when a bill carries neither suggestions nor a summary.
const NoInsights = "No suggestions available."

type Options struct {
	Currency core.Currency
	Reflow   reflow.Options
}

type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BillReport is serialized into the export job payload.
type BillReport struct {
	BillID   string        `json:"bill_id"`
	Category core.Category `json:"category"`
	Date     time.Time     `json:"date"`
	Title    string        `json:"title"`
	Fields   []Field       `json:"fields"`
	Insights []string      `json:"insights"`
}

// Build assembles the report for bill.
func Build(bill core.BillRecord, opts Options) BillReport {
	currency := opts.Currency
	if currency == "" {
		currency = core.DefaultCurrency
	}

	fields := []Field{
		{Name: "Category", Value: bill.Category.String()},
		{Name: "Total Amount", Value: currency.Format(bill.TotalAmount)},
		{Name: "Bill Date", Value: core.FormatDate(bill.BillDate)},
	}
	for _, tax := range bill.Taxes {
		fields = append(fields, Field{Name: tax.Name, Value: currency.Format(tax.Amount)})
	}

	return BillReport{
		BillID:   bill.ID,
		Category: bill.Category,
		Date:     bill.BillDate,
		Title:    fmt.Sprintf("%s - %s", bill.Category, core.FormatDate(bill.BillDate)),
		Fields:   fields,
		Insights: insights(bill, opts.Reflow),
	}
}

func insights(bill core.BillRecord, opts reflow.Options) []string {
	if text := core.FlattenSuggestions(bill.Suggestions); strings.TrimSpace(text) != "" {
		return opts.Reflow(text)
	}
	if strings.TrimSpace(bill.AISummary) != "" {
		return opts.Reflow(bill.AISummary)
	}
	return []string{NoInsights}
}

// Rows flattens the report for row-oriented sinks: the title, a header,
// the field rows, a blank separator, then one row per insight paragraph.
func (r BillReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Fields)+len(r.Insights)+4)
	rows = append(rows, []string{r.Title}, []string{"Field", "Value"})
	for _, f := range r.Fields {
		rows = append(rows, []string{f.Name, f.Value})
	}
	rows = append(rows, []string{}, []string{"Insights"})
	for _, p := range r.Insights {
		rows = append(rows, []string{p})
	}
	return rows
}

// Filename is the base name used by file sinks, without extension.
func (r BillReport) Filename() string {
	return fmt.Sprintf("SmartBill_%s_%s", r.Category, r.BillID)
}
