package timeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartbill/internal/core"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMerge_Scenario(t *testing.T) {
	bills := []core.BillRecord{{ID: "a", BillDate: day(2024, 3, 1), TotalAmount: decimal.NewFromInt(100), Category: core.Water}}
	sugs := []core.SuggestionRecord{{ID: "b", CreatedAt: day(2024, 3, 2), SavingsEstimate: decimal.NewFromInt(50), Category: core.Water}}

	got := Merge(bills, sugs)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	first, second := got[0], got[1]
	if first.SourceID != "b" || first.Kind != core.KindSavings {
		t.Fatalf("first = %+v, want suggestion b", first)
	}
	if second.SourceID != "a" || second.Kind != core.KindAnalysis {
		t.Fatalf("second = %+v, want bill a", second)
	}
	if first.Title != "Water Optimization" || first.Text != "Savings Found: Rs 50" {
		t.Fatalf("suggestion entry = %q / %q", first.Title, first.Text)
	}
	if second.Title != "Water Analysis" || second.Text != "Total Amount: Rs 100" {
		t.Fatalf("bill entry = %q / %q", second.Title, second.Text)
	}
}

func TestMerge_Empty(t *testing.T) {
	got := Merge(nil, nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("Merge(nil, nil) = %#v, want empty slice", got)
	}
}

func TestMerge_LengthAndOrder(t *testing.T) {
	var bills []core.BillRecord
	var sugs []core.SuggestionRecord
	for i := 0; i < 7; i++ {
		bills = append(bills, core.BillRecord{ID: fmt.Sprintf("b%d", i), BillDate: day(2024, time.Month(1+i%12), 1+(i*5)%28)})
	}
	for i := 0; i < 5; i++ {
		sugs = append(sugs, core.SuggestionRecord{ID: fmt.Sprintf("s%d", i), CreatedAt: day(2024, time.Month(1+(i*3)%12), 1+(i*7)%28)})
	}

	got := Merge(bills, sugs)

	if len(got) != len(bills)+len(sugs) {
		t.Fatalf("len = %d, want %d", len(got), len(bills)+len(sugs))
	}
	for i := 0; i+1 < len(got); i++ {
		if got[i].Date.Before(got[i+1].Date) {
			t.Fatalf("entry %d (%v) before entry %d (%v)", i, got[i].Date, i+1, got[i+1].Date)
		}
	}
}

func TestMerge_TieBreak(t *testing.T) {
	same := day(2024, 5, 5)
	bills := []core.BillRecord{{ID: "b1", BillDate: same}, {ID: "b2", BillDate: same}}
	sugs := []core.SuggestionRecord{{ID: "s1", CreatedAt: same}, {ID: "s2", CreatedAt: same}}

	got := Merge(bills, sugs)

	want := []string{"s1", "s2", "b1", "b2"}
	for i, id := range want {
		if got[i].SourceID != id {
			t.Fatalf("position %d = %s, want %s", i, got[i].SourceID, id)
		}
	}
}

func TestMerge_NoDedup(t *testing.T) {
	same := day(2024, 1, 1)
	bills := []core.BillRecord{{ID: "x", BillDate: same, Category: core.Gas}}
	sugs := []core.SuggestionRecord{{ID: "x", CreatedAt: same, Category: core.Gas}}
	if got := Merge(bills, sugs); len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestMerge_ZeroDatesSortLast(t *testing.T) {
	bills := []core.BillRecord{{ID: "undated"}, {ID: "dated", BillDate: day(2023, 1, 1)}}
	got := Merge(bills, nil)
	if got[0].SourceID != "dated" || got[1].SourceID != "undated" {
		t.Fatalf("order = %s,%s", got[0].SourceID, got[1].SourceID)
	}
}

func TestMerge_WithCurrency(t *testing.T) {
	bills := []core.BillRecord{{ID: "a", TotalAmount: decimal.RequireFromString("12.5")}}
	got := Merge(bills, nil, WithCurrency("€"))
	if got[0].Text != "Total Amount: € 12.5" {
		t.Fatalf("Text = %q", got[0].Text)
	}
}
