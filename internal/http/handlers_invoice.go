package http

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"hogar/internal/core"
	"hogar/internal/services"
)

type invoiceView struct {
	ID             int64   `json:"id"`
	InvoiceNumber  string  `json:"invoice_number"`
	IssueDate      string  `json:"issue_date"`
	ElecAmount     float64 `json:"elec_amount"`
	GasAmount      float64 `json:"gas_amount"`
	ServicesAmount float64 `json:"services_amount"`
	TaxesAmount    float64 `json:"taxes_amount"`
	TotalAmount    float64 `json:"total_amount"`
	ElecKwh        float64 `json:"elec_kwh"`
	GasKwh         float64 `json:"gas_kwh"`
	ElecKwhSource  string  `json:"elec_kwh_source,omitempty"`
	GasKwhSource   string  `json:"gas_kwh_source,omitempty"`
}

type outcomeView struct {
	Name      string       `json:"name"`
	Saved     bool         `json:"saved"`
	Error     string       `json:"error,omitempty"`
	InvoiceID int64        `json:"invoice_id,omitempty"`
	Invoice   *invoiceView `json:"invoice,omitempty"`
}

func toInvoiceView(inv core.Invoice) invoiceView {
	return invoiceView{
		ID:             inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		IssueDate:      inv.IssueDate.String(),
		ElecAmount:     inv.ElecAmount.Euros(),
		GasAmount:      inv.GasAmount.Euros(),
		ServicesAmount: inv.ServicesAmount.Euros(),
		TaxesAmount:    inv.TaxesAmount.Euros(),
		TotalAmount:    inv.TotalAmount.Euros(),
		ElecKwh:        inv.ElecKwh,
		GasKwh:         inv.GasKwh,
		ElecKwhSource:  string(inv.ElecKwhSource),
		GasKwhSource:   string(inv.GasKwhSource),
	}
}

// handleInvoiceUpload accepts a multipart batch of bill documents and returns
// one outcome per document, in upload order.
func (s *Server) handleInvoiceUpload(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}

	files := r.MultipartForm.File["documents"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no documents attached")
		return
	}

	docs := make([]services.Document, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("cannot read %s", fh.Filename))
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("cannot read %s", fh.Filename))
			return
		}
		docs = append(docs, services.Document{Name: fh.Filename, Content: content})
	}

	outcomes := s.ingest.IngestBatch(r.Context(), docs)

	views := make([]outcomeView, len(outcomes))
	saved := 0
	for i, o := range outcomes {
		views[i] = outcomeView{Name: o.Name}
		if o.Err != nil {
			views[i].Error = o.Err.Error()
			continue
		}
		views[i].Saved = true
		views[i].InvoiceID = o.InvoiceID
		inv := toInvoiceView(o.Invoice)
		views[i].Invoice = &inv
		saved++
	}

	if saved > 0 {
		s.invalidateInvoices()
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"documents": views,
		"saved":     saved,
		"failed":    len(outcomes) - saved,
	})
}

func (s *Server) handleInvoiceList(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	from, err := parseDateParam(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	invoices, err := s.listInvoicesCached(r, from, to)
	if err != nil {
		slog.ErrorContext(r.Context(), "Invoice list failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not list invoices")
		return
	}

	views := make([]invoiceView, len(invoices))
	for i, inv := range invoices {
		views[i] = toInvoiceView(inv)
	}
	respondJSON(w, http.StatusOK, map[string]any{"invoices": views})
}

func (s *Server) listInvoicesCached(r *http.Request, from, to core.Date) ([]core.Invoice, error) {
	key := invoicesView + ":" + from.String() + ":" + to.String()
	if cached, found := s.invoicesCache.Get(key); found {
		return cached, nil
	}
	invoices, err := s.storage.ListInvoices(r.Context(), from, to)
	if err != nil {
		return nil, err
	}
	s.invoicesCache.Set(key, invoices)
	return invoices, nil
}

// handleInvoiceExport streams the invoice list as CSV.
func (s *Server) handleInvoiceExport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	from, err := parseDateParam(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	invoices, err := s.storage.ListInvoices(r.Context(), from, to)
	if err != nil {
		slog.ErrorContext(r.Context(), "Invoice export failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not export invoices")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="facturas.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"invoice_number", "issue_date", "electricidad", "gas", "servicios", "impuestos", "total", "elec_kwh", "gas_kwh"})
	for _, inv := range invoices {
		_ = cw.Write([]string{
			inv.InvoiceNumber,
			inv.IssueDate.String(),
			inv.ElecAmount.FormatEuros(),
			inv.GasAmount.FormatEuros(),
			inv.ServicesAmount.FormatEuros(),
			inv.TaxesAmount.FormatEuros(),
			inv.TotalAmount.FormatEuros(),
			strconv.FormatFloat(inv.ElecKwh, 'f', -1, 64),
			strconv.FormatFloat(inv.GasKwh, 'f', -1, 64),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.ErrorContext(r.Context(), "CSV write failed", "error", err)
	}
}

// handleInvoicePurge deletes all invoices issued before the given date.
func (s *Server) handleInvoicePurge(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	before, err := core.ParseDate(r.URL.Query().Get("before"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "before parameter must be YYYY-MM-DD")
		return
	}

	deleted, err := s.storage.PurgeInvoicesBefore(r.Context(), before)
	if err != nil {
		slog.ErrorContext(r.Context(), "Invoice purge failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not purge invoices")
		return
	}

	s.invalidateInvoices()
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
