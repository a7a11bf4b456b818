package bank

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer user-token" {
			t.Errorf("Authorization = %q, want bearer user token", got)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestAkahuClient_TransactionsCreditOnly(t *testing.T) {
	srv := testServer(t, http.StatusOK, `{"transactions":[
		{"id":"t1","date":"2025-03-02T09:15:00Z","amount":450.0,"description":"Rent FLAT 2B"},
		{"id":"t2","date":"2025-03-02","amount":-87.5,"description":"Countdown"},
		{"id":"t3","date":"2025-03-03","amount":120.0,"description":"Transfer"}
	]}`)
	defer srv.Close()

	client := NewAkahuClient(srv.URL, "app", "secret", time.Second)
	txns, err := client.Transactions(context.Background(), "user-token", time.Now().AddDate(0, 0, -3), time.Now())
	if err != nil {
		t.Fatalf("Transactions error = %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2 (debits filtered)", len(txns))
	}
	if txns[0].ID != "t1" || !txns[0].Amount.Equal(decimal.NewFromInt(450)) {
		t.Errorf("unexpected first transaction %+v", txns[0])
	}
	if txns[1].Date.Format("2006-01-02") != "2025-03-03" {
		t.Errorf("plain date parsed to %v", txns[1].Date)
	}
}

func TestAkahuClient_ErrorTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuthFailed},
		{http.StatusForbidden, ErrAuthFailed},
		{http.StatusTooManyRequests, ErrTransient},
		{http.StatusBadGateway, ErrTransient},
	}

	for _, tc := range cases {
		srv := testServer(t, tc.status, `{}`)
		client := NewAkahuClient(srv.URL, "app", "secret", time.Second)
		_, err := client.Transactions(context.Background(), "user-token", time.Now(), time.Now())
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: error = %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestAkahuClient_NetworkErrorIsTransient(t *testing.T) {
	srv := testServer(t, http.StatusOK, `{}`)
	srv.Close() // connection refused from here on

	client := NewAkahuClient(srv.URL, "app", "secret", time.Second)
	_, err := client.Accounts(context.Background(), "user-token")
	if !errors.Is(err, ErrTransient) {
		t.Errorf("network error = %v, want ErrTransient", err)
	}
}
