package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"farepay/internal/app/payments"
	"farepay/internal/domain"
)

func TestClient_Initiate(t *testing.T) {
	t.Run("Given an accepted request When initiating Then returns the merchant reference", func(t *testing.T) {
		var got payments.InitiatePaymentRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/pay" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			_ = json.NewEncoder(w).Encode(payments.InitiatePaymentResponse{MerchantReference: "ws_CO_1"})
		}))
		defer srv.Close()

		c := New(srv.URL+"/", time.Second, zap.NewNop())
		ref, err := c.Initiate(context.Background(), payments.InitiatePaymentRequest{
			SubjectID:    "psv-7",
			PayerContact: "0712345678",
			LineItems:    []domain.LineItem{{ItemID: "stage-1", UnitFare: decimal.NewFromInt(50), Quantity: 1}},
		})

		if err != nil {
			t.Fatalf("Initiate failed: %v", err)
		}
		if ref != "ws_CO_1" {
			t.Errorf("expected ws_CO_1, got %q", ref)
		}
		if got.SubjectID != "psv-7" || len(got.LineItems) != 1 {
			t.Errorf("unexpected request body %+v", got)
		}
	})

	t.Run("Given a 400 answer When initiating Then returns an APIError with the message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(payments.ErrorResponse{Error: "Invalid payment amount."})
		}))
		defer srv.Close()

		_, err := New(srv.URL, time.Second, zap.NewNop()).Initiate(context.Background(), payments.InitiatePaymentRequest{})

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "Invalid payment amount." {
			t.Errorf("unexpected error %+v", apiErr)
		}
	})
}

func TestClient_QueryStatus(t *testing.T) {
	t.Run("Given a successful session When queried Then returns the receipt", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/status/ws_CO_1" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			view := domain.StatusView{
				MerchantReference: "ws_CO_1",
				Status:            domain.QueryStatusSuccess,
				Amount:            decimal.NewFromInt(100),
				Receipt:           &domain.Receipt{ReceiptNumber: "ABC123"},
			}
			_ = json.NewEncoder(w).Encode(payments.NewStatusResponse(view))
		}))
		defer srv.Close()

		view, err := New(srv.URL, time.Second, zap.NewNop()).QueryStatus(context.Background(), "ws_CO_1")

		if err != nil {
			t.Fatalf("QueryStatus failed: %v", err)
		}
		if view.Status != domain.QueryStatusSuccess || view.Receipt == nil || view.Receipt.ReceiptNumber != "ABC123" {
			t.Errorf("unexpected view %+v", view)
		}
	})

	t.Run("Given an unknown reference When queried Then returns not_found without error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"not_found"}`))
		}))
		defer srv.Close()

		view, err := New(srv.URL, time.Second, zap.NewNop()).QueryStatus(context.Background(), "ghost")

		if err != nil {
			t.Fatalf("QueryStatus failed: %v", err)
		}
		if view.Status != domain.QueryStatusNotFound || view.MerchantReference != "ghost" {
			t.Errorf("unexpected view %+v", view)
		}
	})

	t.Run("Given a server error When queried Then returns an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := New(srv.URL, time.Second, zap.NewNop()).QueryStatus(context.Background(), "ws_CO_1")

		if err == nil {
			t.Fatal("expected an error")
		}
	})
}
