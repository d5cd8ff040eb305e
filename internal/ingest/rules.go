package ingest

import (
	"regexp"

	"hogar/internal/core"
)

// Extraction rules for the TotalEnergies dual-fuel bill layout. Matching runs
// over whitespace-normalized text so the patterns are position-independent.
var (
	reWhitespace    = regexp.MustCompile(`\s+`)
	reInvoiceNumber = regexp.MustCompile(`(?i)Factura\s*nº\s*([A-Z0-9]+)`)
	reIssueDate     = regexp.MustCompile(`(?i)Fecha\s*emisi[oó]n:\s*(\d{2})\.(\d{2})\.(\d{4})`)

	// Amount and consumption figures accept both the decimal comma of the
	// Spanish layout and a dot, matching what the cent parser accepts.
	reElecAmount     = regexp.MustCompile(`(?i)Electricidad\s+(\d+(?:[.,]\d+)?)\s*€`)
	reGasAmount      = regexp.MustCompile(`(?i)Gas\s+(\d+(?:[.,]\d+)?)\s*€`)
	reServicesAmount = regexp.MustCompile(`(?i)Servicios\s+(\d+(?:[.,]\d+)?)\s*€`)
	reTaxesAmount    = regexp.MustCompile(`(?i)Tasas e impuestos\s+(\d+(?:[.,]\d+)?)\s*€`)

	reElecKwh = regexp.MustCompile(`(?i)(?:Electricidad|Energía).*?(\d+(?:[.,]\d+)?)\s*kWh`)
	// The gas rule must not skip across an amount line (€) into the
	// electricity consumption block.
	reGasKwh = regexp.MustCompile(`(?i)Gas[^€]*?(\d+(?:[.,]\d+)?)\s*kWh`)
	reAnyKwh = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*kWh`)
)

// matchCents applies an amount rule and returns the captured value in cents.
// An absent match is 0: the bill simply has no such line.
func matchCents(re *regexp.Regexp, text string) core.Money {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return core.Money{}
	}
	cents, err := core.ParseNonNegativeCents(m[1])
	if err != nil {
		return core.Money{}
	}
	return core.Money{Cents: cents}
}

// matchKwh applies a consumption rule and returns the captured kWh figure.
func matchKwh(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	cents, err := core.ParseNonNegativeCents(m[1])
	if err != nil {
		return 0, false
	}
	return float64(cents) / 100, true
}

// nthKwh returns the n-th (0-based) bare "N kWh" occurrence in document order.
func nthKwh(text string, n int) (float64, bool) {
	all := reAnyKwh.FindAllStringSubmatch(text, -1)
	if len(all) <= n {
		return 0, false
	}
	cents, err := core.ParseNonNegativeCents(all[n][1])
	if err != nil {
		return 0, false
	}
	return float64(cents) / 100, true
}
