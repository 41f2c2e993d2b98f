package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/entity"
	"github.com/joseph-ayodele/shipdocs/internal/llm"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestOrderNumbers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"pair ampersand", "Please ship orders 3004 & 3020 today", []string{"3004", "3020"}},
		{"pair and", "orders 3004 and 3020 are packed", []string{"3004", "3020"}},
		{"pair SOs comma", "SOs 3004, 3020 are ready", []string{"3004", "3020"}},
		{"pair repeated later", "orders 3004 & 3020. Re SO 3004 and SO 3020", []string{"3004", "3020"}},
		{"individual", "Sales Order 3004:\nstuff\nSales Order 3020:\nmore", []string{"3004", "3020"}},
		{"typo zero", "S0 3024 is ready", []string{"3024"}},
		{"chain", "SO 3012, 3022, and 3222 are ready", []string{"3012", "3022", "3222"}},
		{"chain stops at quantity", "SO 3015, 250 kg total", []string{"3015"}},
		{"sales order hash", "Sales Order #4410 shipped", []string{"4410"}},
		{"none", "thanks, 12 boxes", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OrderNumbers(tt.text, nil)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("OrderNumbers = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFallbackSingleOrderScenario(t *testing.T) {
	body := "Hi team,\nSO 3015 for Fastenal, 2 pails of ANDEROL FGCS-2 Food Grade Grease, batch WH1K25G043\nThanks"
	inst, err := NewFallback(nil, quiet()).Parse(context.Background(), body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(inst.OrderNumbers, []string{"3015"}) {
		t.Fatalf("orders = %v", inst.OrderNumbers)
	}
	if entity.StrValue(inst.CompanyName) != "Fastenal" {
		t.Errorf("company = %q", entity.StrValue(inst.CompanyName))
	}
	items := inst.DeclaredFor("3015")
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	it := items[0]
	if it.Description != "ANDEROL FGCS-2 Food Grade Grease" {
		t.Errorf("description = %q", it.Description)
	}
	if it.Quantity.Decimal.String() != "2" || entity.StrValue(it.Unit) != "PAIL" {
		t.Errorf("quantity = %s %s", it.Quantity.Decimal, entity.StrValue(it.Unit))
	}
	if entity.StrValue(it.BatchNumber) != "WH1K25G043" {
		t.Errorf("batch = %q", entity.StrValue(it.BatchNumber))
	}
	if inst.Source != constants.SourceFallback {
		t.Errorf("source = %s", inst.Source)
	}
}

func TestFallbackItemPhrases(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		qty   string
		unit  string
		desc  string
		batch string
	}{
		{"thousands separator", "SO 3015 for Fastenal, 1,200 kg of Sodium Hydroxide Solution, batch NA2025X1", "1200", "KG", "Sodium Hydroxide Solution", "NA2025X1"},
		{"grouped with decimals", "SO 3015 for Acme: 12,500.5 lb of Soda Ash", "12500.5", "LB", "Soda Ash", ""},
		{"lot word in description", "SO 3015, 2 drums of Degreaser Lotus", "2", "DRUM", "Degreaser Lotus", ""},
		{"batch word in description", "SO 3015, 3 pails of Grease Batchelor", "3", "PAIL", "Grease Batchelor", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := NewFallback(nil, quiet()).Parse(context.Background(), tt.body)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			items := inst.DeclaredFor("3015")
			if len(items) != 1 {
				t.Fatalf("items = %+v", items)
			}
			it := items[0]
			if it.Quantity.Decimal.String() != tt.qty || entity.StrValue(it.Unit) != tt.unit {
				t.Errorf("quantity = %s %s, want %s %s", it.Quantity.Decimal, entity.StrValue(it.Unit), tt.qty, tt.unit)
			}
			if it.Description != tt.desc {
				t.Errorf("description = %q, want %q", it.Description, tt.desc)
			}
			if entity.StrValue(it.BatchNumber) != tt.batch {
				t.Errorf("batch = %q, want %q", entity.StrValue(it.BatchNumber), tt.batch)
			}
		})
	}
}

const multiBlock = `Hello,

Sales Order 3004:
8 drums of Product X, batch B-100
2 pails of Grease Y; lot L7
Gross weight: 1,200 kg
2 pallets, 48x40x50 in

Sales Order 3020:
5 cases of Widget Z
Gross weight: 300 kg
1 pallet

PO# 45-1122
Special instructions: Deliver to dock 4
`

func TestFallbackMultiBlock(t *testing.T) {
	inst, err := NewFallback(nil, quiet()).Parse(context.Background(), multiBlock)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(inst.OrderNumbers, []string{"3004", "3020"}) {
		t.Fatalf("orders = %v", inst.OrderNumbers)
	}

	a := inst.ItemsByOrder["3004"]
	if len(a) != 2 {
		t.Fatalf("3004 items = %+v", a)
	}
	if a[0].Description != "Product X" || entity.StrValue(a[0].Unit) != "DRUM" || entity.StrValue(a[0].BatchNumber) != "B-100" {
		t.Errorf("3004[0] = %+v", a[0])
	}
	if a[1].Description != "Grease Y" || entity.StrValue(a[1].BatchNumber) != "L7" {
		t.Errorf("3004[1] = %q batch %q", a[1].Description, entity.StrValue(a[1].BatchNumber))
	}
	b := inst.ItemsByOrder["3020"]
	if len(b) != 1 || b[0].Description != "Widget Z" || entity.StrValue(b[0].Unit) != "CASE" {
		t.Errorf("3020 items = %+v", b)
	}
	if len(inst.Items) != 3 {
		t.Errorf("flattened items = %d", len(inst.Items))
	}

	d := inst.OrderDetails["3004"]
	if d.GrossWeight == nil || d.GrossWeight.Value.String() != "1200" || d.GrossWeight.Unit != "kg" {
		t.Errorf("3004 gross = %+v", d.GrossWeight)
	}
	if d.PalletCount == nil || *d.PalletCount != 2 || entity.StrValue(d.PalletDimensions) != "48x40x50 in" {
		t.Errorf("3004 pallets = %v %q", d.PalletCount, entity.StrValue(d.PalletDimensions))
	}
	if inst.TotalWeight == nil || inst.TotalWeight.Value.String() != "1500" {
		t.Errorf("total weight = %+v", inst.TotalWeight)
	}
	if inst.PalletCount == nil || *inst.PalletCount != 3 {
		t.Errorf("pallet count = %v", inst.PalletCount)
	}
	if !reflect.DeepEqual(inst.PONumbers, []string{"45-1122"}) {
		t.Errorf("po numbers = %v", inst.PONumbers)
	}
	if entity.StrValue(inst.SpecialInstructions) != "Deliver to dock 4" {
		t.Errorf("special = %q", entity.StrValue(inst.SpecialInstructions))
	}
}

func TestFallbackSingleOrderAggregates(t *testing.T) {
	body := "Please ship SO 3015.\n3 drums of Solvent 142, lot 77A. Total weight 450 lbs on 1 pallet, 48x40x48 in."
	inst, err := NewFallback(nil, quiet()).Parse(context.Background(), body)
	if err != nil {
		t.Fatal(err)
	}
	items := inst.ItemsByOrder["3015"]
	if len(items) != 1 || items[0].Description != "Solvent 142" || entity.StrValue(items[0].BatchNumber) != "77A" {
		t.Fatalf("items = %+v", items)
	}
	if inst.TotalWeight == nil || inst.TotalWeight.Value.String() != "450" || inst.TotalWeight.Unit != "lb" {
		t.Errorf("weight = %+v", inst.TotalWeight)
	}
	if inst.PalletCount == nil || *inst.PalletCount != 1 {
		t.Errorf("pallets = %v", inst.PalletCount)
	}
}

func TestFallbackUnattributedItems(t *testing.T) {
	body := "orders 3004 & 3020\n4 drums of Product X"
	inst, err := NewFallback(nil, quiet()).Parse(context.Background(), body)
	if err != nil {
		t.Fatal(err)
	}
	if len(inst.ItemsByOrder) != 0 {
		t.Errorf("items attributed: %v", inst.ItemsByOrder)
	}
	if got := inst.DeclaredFor("3020"); len(got) != 1 {
		t.Errorf("DeclaredFor = %+v", got)
	}
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f fakeCompleter) Name() string { return "fake" }
func (f fakeCompleter) Complete(context.Context, llm.CompletionRequest) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.reply), nil
}

func hybridWith(c llm.Completer) *Hybrid {
	var ex *llm.Extractor
	if c != nil {
		ex = llm.NewExtractor(c, quiet(), llm.WithMaxAttempts(1))
	}
	return NewHybrid(NewLLMParser(ex, nil, quiet()), NewFallback(nil, quiet()), quiet())
}

func TestHybridLLMPath(t *testing.T) {
	reply := `{"order_numbers":["SO 3015","3015","3015"],
		"items_by_order":{"3015":[{"quantity":"2","unit":"pails","description":"ANDEROL FGCS-2 Food Grade Grease","batch_number":"WH1K25G043"}],
		                  "9":[{"quantity":1,"description":"Mystery"}]},
		"company_name":"Fastenal"}`
	inst, err := hybridWith(fakeCompleter{reply: reply}).Parse(context.Background(), "SO 3015 for Fastenal")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if inst.Source != constants.SourceLLM {
		t.Fatalf("source = %s", inst.Source)
	}
	if !reflect.DeepEqual(inst.OrderNumbers, []string{"3015"}) {
		t.Errorf("orders = %v", inst.OrderNumbers)
	}
	if _, ok := inst.ItemsByOrder["9"]; ok {
		t.Error("item filed under an invalid order number kept")
	}
	got := inst.ItemsByOrder["3015"]
	if len(got) != 1 || entity.StrValue(got[0].Unit) != "PAIL" {
		t.Errorf("3015 items = %+v", got)
	}
	if len(inst.Items) != 2 {
		t.Errorf("items = %+v", inst.Items)
	}
}

func TestHybridFallsBack(t *testing.T) {
	body := "SO 3015 for Fastenal, 2 pails of ANDEROL FGCS-2 Food Grade Grease, batch WH1K25G043"
	inst, err := hybridWith(fakeCompleter{err: errors.New("deadline")}).Parse(context.Background(), body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if inst.Source != constants.SourceFallback || len(inst.ItemsByOrder["3015"]) != 1 {
		t.Errorf("inst = %+v", inst)
	}
}

func TestHybridEmptyBody(t *testing.T) {
	if _, err := hybridWith(nil).Parse(context.Background(), "  \n"); !common.IsParseError(err) {
		t.Fatalf("err = %v", err)
	}
}
