// Package ingest turns the raw text of an uploaded utility bill into a
// structured invoice record.
//
// The extraction is pattern-based: each field has a labeled rule, with
// documented fallbacks for fields that may be missing or unlabeled. A bill
// whose four monetary rules all fail to match produces a zero total and is
// treated as an extraction failure by the caller.
package ingest

import (
	"fmt"
	"strings"
	"time"

	"hogar/internal/core"
)

// Normalize collapses all whitespace runs to single spaces so that rule
// matching does not depend on the extractor's line breaking.
func Normalize(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// ParseText extracts an invoice from normalized bill text. now supplies the
// ingestion timestamp used for the synthetic invoice number and the issue
// date fallback.
//
// The returned invoice may have a zero total; callers decide whether that
// constitutes a failure (see core.Invoice.Validate).
func ParseText(text string, now time.Time) core.Invoice {
	clean := Normalize(text)

	inv := core.Invoice{
		InvoiceNumber: fmt.Sprintf("DOC-%d", now.UnixMilli()),
		IssueDate:     core.NewDate(now.Year(), int(now.Month()), now.Day()),
	}

	if m := reInvoiceNumber.FindStringSubmatch(clean); m != nil {
		inv.InvoiceNumber = m[1]
	}

	if m := reIssueDate.FindStringSubmatch(clean); m != nil {
		// DD.MM.YYYY reassembled as YYYY-MM-DD
		if d, err := core.ParseDate(m[3] + "-" + m[2] + "-" + m[1]); err == nil {
			inv.IssueDate = d
		}
	}

	inv.ElecAmount = matchCents(reElecAmount, clean)
	inv.GasAmount = matchCents(reGasAmount, clean)
	inv.ServicesAmount = matchCents(reServicesAmount, clean)
	inv.TaxesAmount = matchCents(reTaxesAmount, clean)
	inv.TotalAmount = inv.Total()

	inv.ElecKwh, inv.ElecKwhSource = extractElecKwh(clean)
	inv.GasKwh, inv.GasKwhSource = extractGasKwh(clean)

	return inv
}

// extractElecKwh prefers the labeled electricity consumption figure and falls
// back to the first bare kWh occurrence in the document.
func extractElecKwh(text string) (float64, core.KwhSource) {
	if v, ok := matchKwh(reElecKwh, text); ok {
		return v, core.KwhLabeled
	}
	if v, ok := nthKwh(text, 0); ok {
		return v, core.KwhPositional
	}
	return 0, core.KwhMissing
}

// extractGasKwh prefers a gas-labeled figure; the positional fallback (second
// bare kWh occurrence in document order) is order-dependent and tagged as
// low confidence.
func extractGasKwh(text string) (float64, core.KwhSource) {
	if v, ok := matchKwh(reGasKwh, text); ok {
		return v, core.KwhLabeled
	}
	if v, ok := nthKwh(text, 1); ok {
		return v, core.KwhPositional
	}
	return 0, core.KwhMissing
}
