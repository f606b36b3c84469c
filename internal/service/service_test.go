package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billdesk/internal/middleware"
	"github.com/mmynk/billdesk/internal/models"
	"github.com/mmynk/billdesk/internal/storage/sqlite"
)

type testEnv struct {
	server   *httptest.Server
	store    *sqlite.SQLiteStore
	registry *prometheus.Registry
	sessions *ReturnSessionService
}

// setupTestServer runs all three services against a temp SQLite database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(),
		middleware.MetricsInterceptor(reg),
	)

	sessions := NewReturnSessionService(store, time.Minute, metrics)

	mux := http.NewServeMux()
	mux.Handle(NewInvoiceServiceHandler(NewInvoiceService(store, metrics, time.UTC), interceptors))
	mux.Handle(NewReturnServiceHandler(NewReturnService(store, time.UTC), interceptors))
	mux.Handle(NewReturnSessionServiceHandler(sessions, interceptors))
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		sessions.Close()
		store.Close()
	})
	return &testEnv{server: server, store: store, registry: reg, sessions: sessions}
}

// call invokes one unary method through a real Connect client.
func call[Req, Res any](t *testing.T, env *testEnv, service, method string, req *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](
		env.server.Client(),
		env.server.URL+Procedure(service, method),
		connect.WithCodec(jsonCodec{}),
	)
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func mustCall[Req, Res any](t *testing.T, env *testEnv, service, method string, req *Req) *Res {
	t.Helper()
	res, err := call[Req, Res](t, env, service, method, req)
	require.NoError(t, err)
	return res
}

// errorCode returns the Connect code and the domain code of err.
func errorCode(t *testing.T, err error) (connect.Code, string) {
	t.Helper()
	require.Error(t, err)
	var ce *connect.Error
	require.True(t, errors.As(err, &ce), "expected *connect.Error, got %T", err)
	return ce.Code(), ce.Meta().Get(ErrorCodeHeader)
}

func lineItem(desc, qty, rate string) models.LineItem {
	return models.LineItem{
		Category:    "Grocery",
		Description: desc,
		Quantity:    decimal.RequireFromString(qty),
		Rate:        decimal.RequireFromString(rate),
		Unit:        "Pcs",
	}
}

// saveInvoice stores an invoice through the RPC surface.
func saveInvoice(t *testing.T, env *testEnv, items ...models.LineItem) *DocumentView {
	t.Helper()
	return mustCall[SaveInvoiceRequest, DocumentView](t, env, InvoiceServiceName, "SaveInvoice", &SaveInvoiceRequest{
		Invoice: models.Document{
			Date:   "2026-10-15",
			Client: models.Client{Name: "Asha Traders", Mobile: "9800000000"},
			Items:  items,
		},
	})
}
