package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/plaid/plaid-go/v41/plaid"

	plaidclient "spendlens/src/plaid"
)

func plaidErrorHandler(t *testing.T, status int, code, message string, captured *map[string]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			body := map[string]any{"path": r.URL.Path, "client_id": r.Header.Get("PLAID-CLIENT-ID")}
			var payload map[string]any
			if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
				body["payload"] = payload
			}
			*captured = body
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"error_type":      "ITEM_ERROR",
			"error_code":      code,
			"error_message":   message,
			"display_message": nil,
			"request_id":      "req-123",
		})
	}
}

func newTestClient(t *testing.T, handler http.Handler) *PlaidClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPlaidClient(plaidclient.NewPlaidClientForURL("client-id", "secret", srv.URL, 5*time.Second))
}

func TestGetTransactions_MapsErrorBody(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, plaidErrorHandler(t, http.StatusBadRequest, ProductNotReady, "the requested product is not yet ready", &captured))

	dates := DateRange{
		Start: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	_, _, err := client.GetTransactions(context.Background(), "access-sandbox-abc", dates, PageOptions{Count: 100, Offset: 200})
	if err == nil {
		t.Fatal("expected error")
	}

	var aggErr *AggregatorError
	if !errors.As(err, &aggErr) {
		t.Fatalf("expected *AggregatorError, got %T: %v", err, err)
	}
	if aggErr.Code != ProductNotReady {
		t.Errorf("expected code %s, got %s", ProductNotReady, aggErr.Code)
	}
	if aggErr.Status != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", aggErr.Status)
	}
	if aggErr.RequestID != "req-123" {
		t.Errorf("expected request id req-123, got %q", aggErr.RequestID)
	}
	if !IsCode(err, ProductNotReady) {
		t.Error("IsCode should match the wrapped error")
	}

	if captured["path"] != "/transactions/get" {
		t.Errorf("unexpected path %v", captured["path"])
	}
	if captured["client_id"] != "client-id" {
		t.Errorf("client id header not sent, got %v", captured["client_id"])
	}
	payload, _ := captured["payload"].(map[string]any)
	if payload["start_date"] != "2024-04-01" || payload["end_date"] != "2024-05-01" {
		t.Errorf("unexpected dates in payload: %v", payload)
	}
	options, _ := payload["options"].(map[string]any)
	if options["count"] != float64(100) || options["offset"] != float64(200) {
		t.Errorf("unexpected options in payload: %v", options)
	}
}

func TestExchangePublicToken_MapsErrorBody(t *testing.T) {
	client := newTestClient(t, plaidErrorHandler(t, http.StatusBadRequest, "INVALID_PUBLIC_TOKEN", "provided public token is in an invalid format", nil))

	_, _, err := client.ExchangePublicToken(context.Background(), "public-bogus")

	var aggErr *AggregatorError
	if !errors.As(err, &aggErr) {
		t.Fatalf("expected *AggregatorError, got %v", err)
	}
	if aggErr.Code != "INVALID_PUBLIC_TOKEN" {
		t.Errorf("unexpected code %q", aggErr.Code)
	}
	if !strings.Contains(err.Error(), "exchange public token") {
		t.Errorf("expected call context in error, got %q", err.Error())
	}
}

func TestLinkSandboxInstitution_NonJSONErrorPassesThrough(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))

	_, err := client.LinkSandboxInstitution(context.Background(), "ins_109512", []string{"transactions"})
	if err == nil {
		t.Fatal("expected error")
	}

	var aggErr *AggregatorError
	if errors.As(err, &aggErr) {
		t.Errorf("expected a transport error, got aggregator error %v", aggErr)
	}
}

func TestFromPlaidTransaction(t *testing.T) {
	var txn plaid.Transaction
	txn.SetTransactionId("t1")
	txn.SetDate("2024-05-03")
	txn.SetAmount(12.5)
	txn.SetCategory([]string{"Food and Drink", "Restaurants"})
	txn.SetMerchantName("Tacos")
	txn.SetPending(true)

	rec, err := fromPlaidTransaction(txn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != "t1" || !rec.Pending || rec.MerchantName != "Tacos" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Amount.String() != "12.5" {
		t.Errorf("expected amount 12.5, got %s", rec.Amount)
	}
	if !rec.Date.Equal(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", rec.Date)
	}
	if len(rec.Category) != 2 {
		t.Errorf("expected 2 categories, got %v", rec.Category)
	}
}

func TestFromPlaidTransaction_BadDate(t *testing.T) {
	var txn plaid.Transaction
	txn.SetTransactionId("t1")
	txn.SetDate("05/03/2024")

	if _, err := fromPlaidTransaction(txn); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestLastDays(t *testing.T) {
	end := time.Date(2024, 5, 31, 17, 45, 0, 0, time.UTC)
	r := LastDays(end, 30)

	if !r.End.Equal(time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end %v", r.End)
	}
	if !r.Start.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %v", r.Start)
	}
}
