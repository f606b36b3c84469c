package service

import (
	"testing"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/mmynk/billdesk/internal/errors"
	"github.com/mmynk/billdesk/internal/models"
	"github.com/mmynk/billdesk/internal/reconcile"
)

func TestReturnSessionWorkflow(t *testing.T) {
	env := setupTestServer(t)
	inv := saveInvoice(t, env,
		lineItem("Rice", "2", "50"),
		lineItem("Dal", "1", "25.50"),
		lineItem("Oil", "1", "180"),
	)
	rice, dal, oil := inv.Items[0].ID, inv.Items[1].ID, inv.Items[2].ID

	sess := mustCall[Empty, SessionView](t, env, ReturnSessionServiceName, "StartSession", &Empty{})
	assert.Equal(t, reconcile.StateSearching, sess.State)

	t.Run("unknown invoice keeps searching", func(t *testing.T) {
		_, err := call[SearchRequest, SearchResponse](t, env, ReturnSessionServiceName, "Search",
			&SearchRequest{SessionID: sess.ID, Key: "7"})
		code, domain := errorCode(t, err)
		assert.Equal(t, connect.CodeNotFound, code)
		assert.Equal(t, ierr.CodeDocumentNotFound, domain)

		view := mustCall[SessionRequest, SessionView](t, env, ReturnSessionServiceName, "GetSession",
			&SessionRequest{SessionID: sess.ID})
		assert.Equal(t, reconcile.StateSearching, view.State)
	})

	t.Run("everything is returned by default", func(t *testing.T) {
		res := mustCall[SearchRequest, SearchResponse](t, env, ReturnSessionServiceName, "Search",
			&SearchRequest{SessionID: sess.ID, Key: "1"})
		assert.Equal(t, reconcile.OutcomeEditing, res.Outcome)
		require.NotNil(t, res.Session.Draft)
		assert.Equal(t, "RB001", res.Session.Draft.ID)
		assert.Len(t, res.Session.Draft.Items, 3)
		assert.Empty(t, res.Session.RestorePool)
		assert.Equal(t, "306.00", res.Session.Draft.Totals.NetAmount.StringFixed(2))
	})

	t.Run("remove and restore", func(t *testing.T) {
		view := mustCall[ItemRequest, SessionView](t, env, ReturnSessionServiceName, "RemoveItem",
			&ItemRequest{SessionID: sess.ID, Key: dal})
		assert.Len(t, view.Draft.Items, 2)
		require.Len(t, view.RestorePool, 1)
		assert.Equal(t, dal, view.RestorePool[0].ID)

		view = mustCall[ItemRequest, SessionView](t, env, ReturnSessionServiceName, "RestoreItem",
			&ItemRequest{SessionID: sess.ID, Key: dal})
		assert.Len(t, view.Draft.Items, 3)
		assert.Empty(t, view.RestorePool)

		_, err := call[ItemRequest, SessionView](t, env, ReturnSessionServiceName, "RestoreItem",
			&ItemRequest{SessionID: sess.ID, Key: dal})
		code, _ := errorCode(t, err)
		assert.Equal(t, connect.CodeFailedPrecondition, code)
	})

	t.Run("edit items and header", func(t *testing.T) {
		mustCall[ItemRequest, SessionView](t, env, ReturnSessionServiceName, "RemoveItem",
			&ItemRequest{SessionID: sess.ID, Key: oil})
		mustCall[UpdateItemRequest, SessionView](t, env, ReturnSessionServiceName, "UpdateItem",
			&UpdateItemRequest{SessionID: sess.ID, Key: rice, Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(50)})
		view := mustCall[UpdateHeaderRequest, SessionView](t, env, ReturnSessionServiceName, "UpdateHeader",
			&UpdateHeaderRequest{SessionID: sess.ID, Client: &models.Client{Name: "Walk-in"}, Date: "2026-10-16"})

		assert.Equal(t, "Walk-in", view.Draft.Client.Name)
		assert.Equal(t, "2026-10-16", view.Draft.Date)
		// 1 x 50 + 1 x 25.50
		assert.Equal(t, "75.50", view.Draft.Totals.Subtotal.StringFixed(2))
		assert.Equal(t, "76.00", view.Draft.Totals.NetAmount.StringFixed(2))
	})

	t.Run("submit stores the note and the updated bill", func(t *testing.T) {
		res := mustCall[SessionRequest, SubmitResponse](t, env, ReturnSessionServiceName, "Submit",
			&SessionRequest{SessionID: sess.ID})
		assert.Equal(t, "RB001", res.Return.ID)
		assert.Equal(t, "NB001", res.Return.InvoiceID)
		assert.Equal(t, reconcile.StateCompleted, res.Session.State)

		bill := mustCall[DocumentRef, DocumentView](t, env, ReturnServiceName, "GetUpdatedBill", &DocumentRef{ID: "UB001"})
		// Rice 1 left, Oil kept: 1 x 50 + 1 x 180
		assert.Equal(t, "230.00", bill.Totals.NetAmount.StringFixed(2))
	})

	t.Run("second search finds the existing return", func(t *testing.T) {
		mustCall[SessionRequest, SessionView](t, env, ReturnSessionServiceName, "Reset", &SessionRequest{SessionID: sess.ID})
		res := mustCall[SearchRequest, SearchResponse](t, env, ReturnSessionServiceName, "Search",
			&SearchRequest{SessionID: sess.ID, Key: "NB001"})
		assert.Equal(t, reconcile.OutcomeExistingReturn, res.Outcome)
		require.NotNil(t, res.Session.Existing)
		assert.Equal(t, "RB001", res.Session.Existing.ID)

		returns := mustCall[ListRequest, ListDocumentsResponse](t, env, ReturnServiceName, "ListReturns", &ListRequest{})
		assert.Len(t, returns.Documents, 1)
	})

	t.Run("resume updates the stored note", func(t *testing.T) {
		view := mustCall[ResumeRequest, SessionView](t, env, ReturnSessionServiceName, "Resume",
			&ResumeRequest{SessionID: sess.ID})
		assert.Equal(t, reconcile.StateEditing, view.State)
		assert.Len(t, view.RestorePool, 1)

		mustCall[ItemRequest, SessionView](t, env, ReturnSessionServiceName, "RestoreItem",
			&ItemRequest{SessionID: sess.ID, Key: oil})
		res := mustCall[SessionRequest, SubmitResponse](t, env, ReturnSessionServiceName, "Submit",
			&SessionRequest{SessionID: sess.ID})
		assert.Len(t, res.Return.Items, 3)

		bill := mustCall[DocumentRef, DocumentView](t, env, ReturnServiceName, "GetUpdatedBill", &DocumentRef{ID: "UB001"})
		assert.Len(t, bill.Items, 1)
		assert.Equal(t, "Rice", bill.Items[0].Description)
	})

	count, err := testutil.GatherAndCount(env.registry, "billdesk_duplicate_return_hits_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReturnSessionErrors(t *testing.T) {
	env := setupTestServer(t)
	saveInvoice(t, env, lineItem("Rice", "2", "50"))
	sess := mustCall[Empty, SessionView](t, env, ReturnSessionServiceName, "StartSession", &Empty{})

	t.Run("malformed key", func(t *testing.T) {
		_, err := call[SearchRequest, SearchResponse](t, env, ReturnSessionServiceName, "Search",
			&SearchRequest{SessionID: sess.ID, Key: "NB-1"})
		code, domain := errorCode(t, err)
		assert.Equal(t, connect.CodeInvalidArgument, code)
		assert.Equal(t, ierr.CodeInvalidIDFormat, domain)
	})

	t.Run("empty return set", func(t *testing.T) {
		res := mustCall[SearchRequest, SearchResponse](t, env, ReturnSessionServiceName, "Search",
			&SearchRequest{SessionID: sess.ID, Key: "1"})
		mustCall[ItemRequest, SessionView](t, env, ReturnSessionServiceName, "RemoveItem",
			&ItemRequest{SessionID: sess.ID, Key: res.Session.Draft.Items[0].ID})

		_, err := call[SessionRequest, SubmitResponse](t, env, ReturnSessionServiceName, "Submit",
			&SessionRequest{SessionID: sess.ID})
		code, domain := errorCode(t, err)
		assert.Equal(t, connect.CodeInvalidArgument, code)
		assert.Equal(t, ierr.CodeEmptyItemSet, domain)

		check := mustCall[CheckReturnRequest, CheckReturnResponse](t, env, ReturnServiceName, "CheckReturn",
			&CheckReturnRequest{InvoiceID: "1"})
		assert.False(t, check.Exists)
	})

	t.Run("ended session is gone", func(t *testing.T) {
		mustCall[SessionRequest, Empty](t, env, ReturnSessionServiceName, "EndSession", &SessionRequest{SessionID: sess.ID})
		_, err := call[SessionRequest, SessionView](t, env, ReturnSessionServiceName, "GetSession",
			&SessionRequest{SessionID: sess.ID})
		code, _ := errorCode(t, err)
		assert.Equal(t, connect.CodeNotFound, code)
	})
}
