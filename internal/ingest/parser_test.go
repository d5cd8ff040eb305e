package ingest

import (
	"testing"
	"time"

	"hogar/internal/core"
)

var ingestedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const fullBill = `TotalEnergies Clientes
	Factura nº AB123
	Fecha emisión:   15.03.2024
	Resumen de importes
	Electricidad   45,30 €
	Gas   30,10 €
	Servicios   5,00 €
	Tasas e impuestos   3,60 €
	Detalle de consumos
	Electricidad   250 kWh
	Gas   120 kWh`

func TestParseFullBill(t *testing.T) {
	inv := ParseText(fullBill, ingestedAt)

	if inv.InvoiceNumber != "AB123" {
		t.Errorf("invoice number = %q, want AB123", inv.InvoiceNumber)
	}
	if got := inv.IssueDate.String(); got != "2024-03-15" {
		t.Errorf("issue date = %s, want 2024-03-15", got)
	}
	if inv.ElecAmount.Cents != 4530 {
		t.Errorf("elec amount = %d, want 4530", inv.ElecAmount.Cents)
	}
	if inv.GasAmount.Cents != 3010 {
		t.Errorf("gas amount = %d, want 3010", inv.GasAmount.Cents)
	}
	if inv.ServicesAmount.Cents != 500 {
		t.Errorf("services amount = %d, want 500", inv.ServicesAmount.Cents)
	}
	if inv.TaxesAmount.Cents != 360 {
		t.Errorf("taxes amount = %d, want 360", inv.TaxesAmount.Cents)
	}
	if inv.TotalAmount.Cents != 8400 {
		t.Errorf("total amount = %d, want 8400", inv.TotalAmount.Cents)
	}
	if inv.ElecKwh != 250 || inv.ElecKwhSource != core.KwhLabeled {
		t.Errorf("elec kwh = %v (%s), want 250 labeled", inv.ElecKwh, inv.ElecKwhSource)
	}
	if inv.GasKwh != 120 || inv.GasKwhSource != core.KwhLabeled {
		t.Errorf("gas kwh = %v (%s), want 120 labeled", inv.GasKwh, inv.GasKwhSource)
	}
	if err := inv.Validate(); err != nil {
		t.Errorf("full bill should validate: %v", err)
	}
}

// The parsed total always equals the arithmetic sum of the four fields.
func TestTotalIsSumOfParts(t *testing.T) {
	cases := []string{
		fullBill,
		"Electricidad 12,00 € Gas 0,50 €",
		"Servicios 1,00 €",
		"sin importes",
	}
	for _, text := range cases {
		inv := ParseText(text, ingestedAt)
		sum := inv.ElecAmount.Cents + inv.GasAmount.Cents + inv.ServicesAmount.Cents + inv.TaxesAmount.Cents
		if inv.TotalAmount.Cents != sum {
			t.Errorf("total %d != sum %d for %q", inv.TotalAmount.Cents, sum, text)
		}
	}
}

func TestCommaAndDotAmountsAreEqual(t *testing.T) {
	a := ParseText("Electricidad 123,45 €", ingestedAt)
	b := ParseText("Electricidad 123.45 €", ingestedAt)
	if a.ElecAmount.Cents != 12345 {
		t.Fatalf("comma amount = %d, want 12345", a.ElecAmount.Cents)
	}
	if a.ElecAmount != b.ElecAmount {
		t.Fatalf("comma %d != dot %d", a.ElecAmount.Cents, b.ElecAmount.Cents)
	}

	c := ParseText("Electricidad 10,00 € consumo 250,5 kWh", ingestedAt)
	d := ParseText("Electricidad 10.00 € consumo 250.5 kWh", ingestedAt)
	if c.ElecKwh != 250.5 || c.ElecKwh != d.ElecKwh {
		t.Fatalf("kwh comma %v != dot %v", c.ElecKwh, d.ElecKwh)
	}
}

func TestFallbacks(t *testing.T) {
	inv := ParseText("Gas 10,00 € nada más", ingestedAt)

	// No invoice number on the bill: synthetic id from the ingestion timestamp.
	if inv.InvoiceNumber != "DOC-1717243200000" {
		t.Errorf("synthetic invoice number = %q", inv.InvoiceNumber)
	}
	// No issue date: ingestion date.
	if got := inv.IssueDate.String(); got != "2024-06-01" {
		t.Errorf("fallback issue date = %s, want 2024-06-01", got)
	}
	if inv.ElecKwhSource != core.KwhMissing || inv.GasKwhSource != core.KwhMissing {
		t.Errorf("kwh sources = %q/%q, want missing", inv.ElecKwhSource, inv.GasKwhSource)
	}
}

func TestZeroTotalFailsValidation(t *testing.T) {
	inv := ParseText("Factura nº ZZ9 sin líneas de importe", ingestedAt)
	if inv.TotalAmount.Cents != 0 {
		t.Fatalf("expected zero total, got %d", inv.TotalAmount.Cents)
	}
	if err := inv.Validate(); err == nil {
		t.Fatal("zero-total invoice must fail validation")
	}
}

func TestPositionalKwhFallback(t *testing.T) {
	// Without a gas label the second bare figure is taken for gas and
	// tagged as positional (low confidence).
	inv := ParseText("Electricidad 20,00 € consumos del periodo 300 kWh y 150 kWh", ingestedAt)
	if inv.ElecKwh != 300 {
		t.Errorf("elec kwh = %v, want 300", inv.ElecKwh)
	}
	if inv.GasKwh != 150 || inv.GasKwhSource != core.KwhPositional {
		t.Errorf("gas kwh = %v (%s), want 150 positional", inv.GasKwh, inv.GasKwhSource)
	}

	// Only one figure and no gas label: gas stays at zero instead of
	// stealing the electricity figure.
	one := ParseText("Electricidad 5,00 € consumo 90 kWh", ingestedAt)
	if one.ElecKwh != 90 {
		t.Errorf("elec kwh = %v, want 90", one.ElecKwh)
	}
	if one.GasKwh != 0 || one.GasKwhSource != core.KwhMissing {
		t.Errorf("gas kwh = %v (%s), want 0 missing", one.GasKwh, one.GasKwhSource)
	}
}

func TestGasRuleDoesNotCrossAmountLines(t *testing.T) {
	// A labeled gas match must come from the consumption block, never by
	// skipping over the summary's euro amounts into the electricity figure.
	inv := ParseText("Gas 30,10 € Detalle Electricidad 250 kWh", ingestedAt)
	if inv.GasKwhSource == core.KwhLabeled {
		t.Fatalf("gas kwh %v wrongly labeled from electricity block", inv.GasKwh)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  a\n\tb   c\r\n")
	if got != "a b c" {
		t.Fatalf("Normalize = %q, want %q", got, "a b c")
	}
}
