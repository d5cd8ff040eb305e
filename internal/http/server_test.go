package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hogar/internal/auth"
	"hogar/internal/services"
	"hogar/internal/storage"
)

type fakeExtractor struct {
	texts map[string]string
}

func (f *fakeExtractor) Text(_ context.Context, doc io.Reader) (string, error) {
	content, err := io.ReadAll(doc)
	if err != nil {
		return "", err
	}
	if text, ok := f.texts[string(content)]; ok {
		return text, nil
	}
	return "", io.ErrUnexpectedEOF
}

const billText = `TotalEnergies Factura nº AB123
Fecha emisión: 15.03.2024
Electricidad 45,30 €
Gas 30,10 €
Servicios 5,00 €
Tasas e impuestos 3,60 €
Electricidad consumo 250 kWh
Gas consumo 120 kWh`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	extractor := &fakeExtractor{texts: map[string]string{"doc1": billText}}
	tokens := auth.NewTokenService("test-secret-key-16", time.Hour)

	s := NewServer(Options{
		Addr:          ":0",
		Ingest:        services.NewIngestService(extractor, repo, nil, 5*time.Second, 2),
		Packs:         services.NewPackService(repo),
		Storage:       repo,
		Tokens:        tokens,
		AdminUsername: "admin",
		SessionTTL:    time.Hour,
		MaxUploadSize: 1 << 20,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func signup(t *testing.T, s *Server, username string) *http.Cookie {
	t.Helper()
	body := `{"username":"` + username + `","password":"secret-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("signup did not set a session cookie")
	return nil
}

func doJSON(s *Server, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestSignupDuplicateUsername(t *testing.T) {
	s := newTestServer(t)
	signup(t, s, "ana")

	// case-insensitive collision reports a conflict, not a server error
	rec := doJSON(s, http.MethodPost, "/auth/signup", `{"username":"ANA","password":"secret-password"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d, want 409", rec.Code)
	}
}

func TestAuthGuard(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(s, http.MethodGet, "/packs", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated /packs status = %d, want 401", rec.Code)
	}

	cookie := signup(t, s, "ana")
	rec = doJSON(s, http.MethodGet, "/packs", "", cookie)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated /packs status = %d, want 200", rec.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	s := newTestServer(t)
	signup(t, s, "ana")

	rec := doJSON(s, http.MethodPost, "/auth/login", `{"username":"ana","password":"secret-password"}`, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("login status = %d, want 200", rec.Code)
	}

	rec = doJSON(s, http.MethodPost, "/auth/login", `{"username":"ana","password":"wrong-password"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", rec.Code)
	}
}

func TestPackLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	cookie := signup(t, s, "ana")

	rec := doJSON(s, http.MethodPost, "/packs",
		`{"service_name":"Fisioterapia","total_sessions":2,"amount_paid":"250,00"}`, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pack status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created packView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode pack: %v", err)
	}
	if created.AmountPaid != 250 {
		t.Errorf("amount_paid = %v, want 250", created.AmountPaid)
	}

	rec = doJSON(s, http.MethodPost, "/packs/consume",
		`{"id":`+jsonID(created.ID)+`,"date":"2024-05-01"}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("consume status = %d, body %s", rec.Code, rec.Body.String())
	}
	var consumed packView
	if err := json.Unmarshal(rec.Body.Bytes(), &consumed); err != nil {
		t.Fatalf("decode pack: %v", err)
	}
	if consumed.UsedSessions != 1 || consumed.Remaining != 1 {
		t.Errorf("after consume: used=%d remaining=%d, want 1/1", consumed.UsedSessions, consumed.Remaining)
	}
	if len(consumed.SessionDates) != 1 || consumed.SessionDates[0] != "2024-05-01" {
		t.Errorf("session dates = %v, want [2024-05-01]", consumed.SessionDates)
	}

	rec = doJSON(s, http.MethodPost, "/packs/renew",
		`{"id":`+jsonID(created.ID)+`,"date":"2024-06-01"}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("renew status = %d, body %s", rec.Code, rec.Body.String())
	}
	var renewed packView
	if err := json.Unmarshal(rec.Body.Bytes(), &renewed); err != nil {
		t.Fatalf("decode pack: %v", err)
	}
	if renewed.UsedSessions != 0 || len(renewed.SessionDates) != 0 {
		t.Errorf("renewed pack not reset: used=%d dates=%v", renewed.UsedSessions, renewed.SessionDates)
	}

	rec = doJSON(s, http.MethodPost, "/packs/delete", `{"id":`+jsonID(created.ID)+`}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestPackCreateValidationError(t *testing.T) {
	s := newTestServer(t)
	cookie := signup(t, s, "ana")

	rec := doJSON(s, http.MethodPost, "/packs", `{"service_name":"Yoga","total_sessions":0}`, cookie)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid pack status = %d, want 422; body %s", rec.Code, rec.Body.String())
	}
}

func TestInvoiceUploadBatch(t *testing.T) {
	s := newTestServer(t)
	cookie := signup(t, s, "ana")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range map[string]string{"marzo.pdf": "doc1", "roto.pdf": "garbage"} {
		part, err := mw.CreateFormFile("documents", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = part.Write([]byte(content))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/invoices/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Documents []outcomeView `json:"documents"`
		Saved     int           `json:"saved"`
		Failed    int           `json:"failed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Saved != 1 || resp.Failed != 1 {
		t.Errorf("saved=%d failed=%d, want 1/1", resp.Saved, resp.Failed)
	}
	for _, doc := range resp.Documents {
		switch doc.Name {
		case "marzo.pdf":
			if !doc.Saved || doc.Invoice == nil || doc.Invoice.InvoiceNumber != "AB123" {
				t.Errorf("marzo.pdf outcome = %+v, want saved invoice AB123", doc)
			}
		case "roto.pdf":
			if doc.Saved || doc.Error == "" {
				t.Errorf("roto.pdf outcome = %+v, want error", doc)
			}
		}
	}

	rec = doJSON(s, http.MethodGet, "/invoices", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Invoices []invoiceView `json:"invoices"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Invoices) != 1 {
		t.Fatalf("got %d invoices, want 1", len(list.Invoices))
	}
	if list.Invoices[0].TotalAmount != 84 {
		t.Errorf("total = %v, want 84", list.Invoices[0].TotalAmount)
	}
}

func TestInvoiceCSVExport(t *testing.T) {
	s := newTestServer(t)
	cookie := signup(t, s, "ana")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("documents", "marzo.pdf")
	_, _ = part.Write([]byte("doc1"))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/invoices/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}

	rec = doJSON(s, http.MethodGet, "/invoices/export", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "AB123") || !strings.Contains(body, "2024-03-15") {
		t.Errorf("CSV missing invoice data:\n%s", body)
	}
}

func TestAdminOnlyPurge(t *testing.T) {
	s := newTestServer(t)
	member := signup(t, s, "ana")
	admin := signup(t, s, "admin")

	rec := doJSON(s, http.MethodPost, "/invoices/purge?before=2024-01-01", "", member)
	if rec.Code != http.StatusForbidden {
		t.Errorf("member purge status = %d, want 403", rec.Code)
	}

	rec = doJSON(s, http.MethodPost, "/invoices/purge?before=2024-01-01", "", admin)
	if rec.Code != http.StatusOK {
		t.Errorf("admin purge status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
}

func TestShoppingListFlow(t *testing.T) {
	s := newTestServer(t)
	cookie := signup(t, s, "ana")

	rec := doJSON(s, http.MethodPost, "/shopping-list/add", `{"name":"Leche"}`, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add item status = %d, body %s", rec.Code, rec.Body.String())
	}
	var item shoppingItemView
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}

	rec = doJSON(s, http.MethodPost, "/shopping-list/toggle",
		`{"id":`+jsonID(item.ID)+`,"checked":true}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}

	rec = doJSON(s, http.MethodGet, "/shopping-list", "", cookie)
	var list struct {
		Items []shoppingItemView `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || !list.Items[0].Checked {
		t.Errorf("list = %+v, want one checked item", list.Items)
	}

	rec = doJSON(s, http.MethodPost, "/shopping-list/clear", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
}

func TestPlannerAndWeekImport(t *testing.T) {
	s := newTestServer(t)
	cookie := signup(t, s, "ana")

	rec := doJSON(s, http.MethodPost, "/recipes",
		`{"name":"Lentejas","steps":["Sofreír","Cocer 40 min"],"ingredients":[{"name":"Lentejas","amount":"400g"},{"name":"Zanahoria","amount":"2"}]}`, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create recipe status = %d, body %s", rec.Code, rec.Body.String())
	}
	var recipe recipeView
	if err := json.Unmarshal(rec.Body.Bytes(), &recipe); err != nil {
		t.Fatalf("decode recipe: %v", err)
	}

	rec = doJSON(s, http.MethodPost, "/planner/assign",
		`{"date":"2024-05-06","meal_type":"lunch","recipe_id":`+jsonID(recipe.ID)+`}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("assign status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(s, http.MethodPost, "/shopping-list/import-week",
		`{"from":"2024-05-06","to":"2024-05-12"}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rec.Code, rec.Body.String())
	}
	var imported map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &imported); err != nil {
		t.Fatalf("decode import: %v", err)
	}
	if imported["added"] != 2 {
		t.Errorf("added = %d, want 2", imported["added"])
	}

	rec = doJSON(s, http.MethodGet, "/planner?from=2024-05-06&to=2024-05-12", "", cookie)
	var plan struct {
		Meals []plannedMealView `json:"meals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if len(plan.Meals) != 1 || plan.Meals[0].MealType != "lunch" {
		t.Errorf("plan = %+v, want one lunch", plan.Meals)
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
