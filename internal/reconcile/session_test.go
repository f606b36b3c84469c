package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/mmynk/billdesk/internal/errors"
	"github.com/mmynk/billdesk/internal/models"
	"github.com/mmynk/billdesk/internal/storage"
)

// fakeLedger is an in-memory Ledger that records the calls it receives.
type fakeLedger struct {
	mu       sync.Mutex
	invoices map[string]*models.Document
	returns  map[string]*models.Document // by invoice id
	calls    []string
	saveErr  error
}

func newFakeLedger(invoices ...*models.Document) *fakeLedger {
	l := &fakeLedger{
		invoices: map[string]*models.Document{},
		returns:  map[string]*models.Document{},
	}
	for _, inv := range invoices {
		l.invoices[inv.ID] = inv
	}
	return l
}

func (l *fakeLedger) record(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *fakeLedger) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *fakeLedger) CheckReturn(_ context.Context, invoiceID string) (storage.ReturnCheck, error) {
	l.record("CheckReturn")
	if note, ok := l.returns[invoiceID]; ok {
		return storage.ReturnCheck{Exists: true, Return: note.Clone()}, nil
	}
	return storage.ReturnCheck{}, nil
}

func (l *fakeLedger) GetInvoice(_ context.Context, id string) (*models.Document, error) {
	l.record("GetInvoice")
	inv, ok := l.invoices[id]
	if !ok {
		return nil, ierr.NewErrorf("invoice %s not found", id).Mark(ierr.ErrDocumentNotFound)
	}
	return inv.Clone(), nil
}

func (l *fakeLedger) CreateReturn(_ context.Context, doc *models.Document) error {
	l.record("CreateReturn")
	if l.saveErr != nil {
		return l.saveErr
	}
	if _, ok := l.returns[doc.InvoiceID]; ok {
		return ierr.NewError("duplicate").Mark(ierr.ErrDuplicateReturn)
	}
	l.returns[doc.InvoiceID] = doc.Clone()
	return nil
}

func (l *fakeLedger) UpdateReturn(_ context.Context, doc *models.Document) error {
	l.record("UpdateReturn")
	if l.saveErr != nil {
		return l.saveErr
	}
	l.returns[doc.InvoiceID] = doc.Clone()
	return nil
}

func item(id, desc, qty, rate string) models.LineItem {
	return models.LineItem{
		ID:          id,
		Description: desc,
		Quantity:    decimal.RequireFromString(qty),
		Rate:        decimal.RequireFromString(rate),
		Unit:        "Pcs",
	}
}

func threeItemInvoice() *models.Document {
	return &models.Document{
		Kind:   models.KindInvoice,
		ID:     "NB007",
		Date:   "2026-10-01",
		Client: models.Client{Name: "Asha Traders"},
		Items: []models.LineItem{
			item("i1", "Rice", "2", "50"),
			item("i2", "Dal", "1", "25.50"),
			item("i3", "Oil", "1", "180"),
		},
	}
}

func newTestSession(ledger Ledger) *Session {
	s := NewSession("test-session", ledger)
	s.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }
	return s
}

func keys(items []models.LineItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key()
	}
	return out
}

func TestSearchReturnsEverythingByDefault(t *testing.T) {
	ledger := newFakeLedger(threeItemInvoice())
	s := newTestSession(ledger)

	res, err := s.Search(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, OutcomeEditing, res.Outcome)
	assert.Equal(t, StateEditing, s.State())
	assert.Equal(t, []string{"CheckReturn", "GetInvoice"}, ledger.Calls())

	assert.Len(t, s.ReturnSet(), 3)
	assert.Empty(t, s.RestorePool())

	snap := s.Snapshot()
	require.NotNil(t, snap.Draft)
	assert.Equal(t, "RB007", snap.Draft.ID)
	assert.Equal(t, "NB007", snap.Draft.InvoiceID)
	assert.Equal(t, "Asha Traders", snap.Draft.Client.Name)
	assert.Equal(t, "2026-10-15", snap.Draft.Date)
	assert.Equal(t, "306.00", snap.Draft.Totals.NetAmount.StringFixed(2))
}

func TestRemoveAndRestore(t *testing.T) {
	s := newTestSession(newFakeLedger(threeItemInvoice()))
	_, err := s.Search(context.Background(), "NB007")
	require.NoError(t, err)

	require.NoError(t, s.RemoveItem("i2"))
	assert.Equal(t, []string{"i1", "i3"}, keys(s.ReturnSet()))
	assert.Equal(t, []string{"i2"}, keys(s.RestorePool()))

	require.NoError(t, s.RestoreItem("i2"))
	assert.Len(t, s.ReturnSet(), 3)
	assert.Empty(t, s.RestorePool())

	// Restoring twice must not duplicate the item.
	err = s.RestoreItem("i2")
	assert.True(t, ierr.IsInvalidOperation(err))
	assert.Len(t, s.ReturnSet(), 3)

	assert.True(t, ierr.IsInvalidOperation(s.RemoveItem("missing")))
}

func TestRestorePoolIsOriginalMinusReturnSet(t *testing.T) {
	s := newTestSession(newFakeLedger(threeItemInvoice()))
	_, err := s.Search(context.Background(), "7")
	require.NoError(t, err)

	require.NoError(t, s.RemoveItem("i1"))
	require.NoError(t, s.RemoveItem("i3"))
	assert.Equal(t, []string{"i1", "i3"}, keys(s.RestorePool()))

	require.NoError(t, s.RemoveItem("i2"))
	assert.Empty(t, s.ReturnSet())
	assert.Equal(t, []string{"i1", "i2", "i3"}, keys(s.RestorePool()))
}

func TestSearchExistingReturn(t *testing.T) {
	ledger := newFakeLedger(threeItemInvoice())
	ledger.returns["NB007"] = &models.Document{
		Kind:      models.KindReturnNote,
		ID:        "RB007",
		InvoiceID: "NB007",
		Date:      "2026-10-02",
		Items:     []models.LineItem{item("i3", "Oil", "1", "180")},
	}
	s := newTestSession(ledger)

	res, err := s.Search(context.Background(), "nb7")
	require.NoError(t, err)
	assert.Equal(t, OutcomeExistingReturn, res.Outcome)
	require.NotNil(t, res.Existing)
	assert.Equal(t, "RB007", res.Existing.ID)
	assert.Equal(t, StateExistingReturnFound, s.State())
	assert.Equal(t, []string{"CheckReturn"}, ledger.Calls())

	t.Run("resume edits the existing note", func(t *testing.T) {
		require.NoError(t, s.Resume(context.Background(), nil))
		assert.Equal(t, StateEditing, s.State())
		assert.Equal(t, []string{"i3"}, keys(s.ReturnSet()))
		assert.Equal(t, []string{"i1", "i2"}, keys(s.RestorePool()))
		assert.Equal(t, "2026-10-02", s.Snapshot().Draft.Date)

		require.NoError(t, s.RestoreItem("i1"))
		doc, err := s.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "RB007", doc.ID)
		assert.Equal(t, "UpdateReturn", ledger.Calls()[len(ledger.Calls())-1])
		assert.Len(t, ledger.returns["NB007"].Items, 2)
	})
}

func TestSearchErrors(t *testing.T) {
	t.Run("malformed key", func(t *testing.T) {
		ledger := newFakeLedger()
		s := newTestSession(ledger)
		_, err := s.Search(context.Background(), "seven")
		assert.True(t, ierr.IsInvalidIDFormat(err))
		assert.Equal(t, StateSearching, s.State())
		assert.Empty(t, ledger.Calls())
	})

	t.Run("unknown invoice", func(t *testing.T) {
		s := newTestSession(newFakeLedger())
		_, err := s.Search(context.Background(), "42")
		assert.True(t, ierr.IsNotFound(err))
		assert.Equal(t, StateSearching, s.State())
	})

	t.Run("ledger failure", func(t *testing.T) {
		s := newTestSession(failingLedger{err: errors.New("disk I/O error")})
		_, err := s.Search(context.Background(), "42")
		assert.True(t, ierr.IsStoreUnavailable(err))
		assert.Equal(t, StateSearching, s.State())

		// The session is still usable.
		_, err = s.Search(context.Background(), "43")
		assert.True(t, ierr.IsStoreUnavailable(err))
	})
}

func TestSubmit(t *testing.T) {
	t.Run("creates the return note", func(t *testing.T) {
		ledger := newFakeLedger(threeItemInvoice())
		s := newTestSession(ledger)
		_, err := s.Search(context.Background(), "7")
		require.NoError(t, err)
		require.NoError(t, s.RemoveItem("i3"))

		doc, err := s.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, s.State())
		assert.Equal(t, "RB007", doc.ID)
		assert.Equal(t, models.KindReturnNote, doc.Kind)
		assert.Equal(t, "125.50", doc.Totals.Subtotal.StringFixed(2))
		assert.Equal(t, "126.00", doc.Totals.NetAmount.StringFixed(2))
		assert.Equal(t, "CreateReturn", ledger.Calls()[len(ledger.Calls())-1])
		assert.NotNil(t, s.Snapshot().Saved)

		// A second search for the same invoice finds the stored return.
		s.Reset()
		res, err := s.Search(context.Background(), "7")
		require.NoError(t, err)
		assert.Equal(t, OutcomeExistingReturn, res.Outcome)
		assert.Len(t, ledger.returns, 1)
	})

	t.Run("empty item set never reaches the ledger", func(t *testing.T) {
		ledger := newFakeLedger(threeItemInvoice())
		s := newTestSession(ledger)
		_, err := s.Search(context.Background(), "7")
		require.NoError(t, err)
		for _, k := range []string{"i1", "i2", "i3"} {
			require.NoError(t, s.RemoveItem(k))
		}

		_, err = s.Submit(context.Background())
		assert.True(t, ierr.IsValidation(err))
		assert.Equal(t, ierr.ErrEmptyItemSet, ierr.ValidationReason(err))
		assert.Equal(t, "No items selected for return.", ierr.Hint(err))
		assert.Equal(t, StateEditing, s.State())
		assert.NotContains(t, ledger.Calls(), "CreateReturn")
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		ledger := newFakeLedger(threeItemInvoice())
		s := newTestSession(ledger)
		_, err := s.Search(context.Background(), "7")
		require.NoError(t, err)
		require.NoError(t, s.UpdateItem("i1", decimal.Zero, decimal.NewFromInt(50)))

		_, err = s.Submit(context.Background())
		assert.Equal(t, ierr.ErrNonPositiveQuantity, ierr.ValidationReason(err))
		assert.Equal(t, StateEditing, s.State())
		assert.NotContains(t, ledger.Calls(), "CreateReturn")
	})

	t.Run("store failure keeps the draft", func(t *testing.T) {
		ledger := newFakeLedger(threeItemInvoice())
		ledger.saveErr = errors.New("database is locked")
		s := newTestSession(ledger)
		_, err := s.Search(context.Background(), "7")
		require.NoError(t, err)
		require.NoError(t, s.RemoveItem("i2"))

		_, err = s.Submit(context.Background())
		assert.True(t, ierr.IsStoreUnavailable(err))
		assert.Equal(t, StateEditing, s.State())
		assert.Equal(t, []string{"i1", "i3"}, keys(s.ReturnSet()))
		assert.Equal(t, []string{"i2"}, keys(s.RestorePool()))

		ledger.saveErr = nil
		_, err = s.Submit(context.Background())
		require.NoError(t, err)
	})

	t.Run("losing the create race opens the stored return", func(t *testing.T) {
		ledger := newFakeLedger(threeItemInvoice())
		s := newTestSession(ledger)
		_, err := s.Search(context.Background(), "7")
		require.NoError(t, err)
		winner := &models.Document{
			Kind:      models.KindReturnNote,
			ID:        "RB007",
			InvoiceID: "NB007",
			Items:     []models.LineItem{item("i2", "Dal", "1", "25.50")},
		}
		ledger.returns["NB007"] = winner

		_, err = s.Submit(context.Background())
		assert.True(t, ierr.IsDuplicateReturn(err))
		assert.Equal(t, StateExistingReturnFound, s.State())
		assert.Equal(t, []string{"CheckReturn", "GetInvoice", "CreateReturn", "CheckReturn"}, ledger.Calls())

		snap := s.Snapshot()
		require.NotNil(t, snap.Existing)
		assert.Equal(t, "RB007", snap.Existing.ID)
		assert.Nil(t, snap.Draft)

		require.NoError(t, s.Resume(context.Background(), nil))
		assert.Equal(t, StateEditing, s.State())
		assert.Equal(t, []string{"i2"}, keys(s.ReturnSet()))

		_, err = s.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "UpdateReturn", ledger.Calls()[len(ledger.Calls())-1])
	})

	t.Run("duplicate without a readable return keeps the draft", func(t *testing.T) {
		dup := ierr.NewError("duplicate").Mark(ierr.ErrDuplicateReturn)
		ledger := newFakeLedger(threeItemInvoice())
		ledger.saveErr = dup
		s := newTestSession(ledger)
		_, err := s.Search(context.Background(), "7")
		require.NoError(t, err)

		_, err = s.Submit(context.Background())
		assert.True(t, ierr.IsDuplicateReturn(err))
		assert.Equal(t, StateEditing, s.State())
		assert.Equal(t, []string{"i1", "i2", "i3"}, keys(s.ReturnSet()))
	})

	t.Run("quantity is not capped at the invoiced amount", func(t *testing.T) {
		s := newTestSession(newFakeLedger(threeItemInvoice()))
		_, err := s.Search(context.Background(), "7")
		require.NoError(t, err)
		require.NoError(t, s.UpdateItem("i1", decimal.NewFromInt(99), decimal.NewFromInt(50)))
		_, err = s.Submit(context.Background())
		require.NoError(t, err)
	})
}

func TestHeaderEdits(t *testing.T) {
	s := newTestSession(newFakeLedger(threeItemInvoice()))
	assert.True(t, ierr.IsInvalidOperation(s.SetDate("2026-10-20")))

	_, err := s.Search(context.Background(), "7")
	require.NoError(t, err)

	require.NoError(t, s.SetClient(models.Client{Name: "Walk-in"}))
	require.NoError(t, s.SetDate("2026-10-20"))
	assert.True(t, ierr.IsValidation(s.SetDate("20/10/2026")))

	draft := s.Snapshot().Draft
	assert.Equal(t, "Walk-in", draft.Client.Name)
	assert.Equal(t, "2026-10-20", draft.Date)
}

func TestResetAndClose(t *testing.T) {
	s := newTestSession(newFakeLedger(threeItemInvoice()))
	_, err := s.Search(context.Background(), "7")
	require.NoError(t, err)

	s.Reset()
	snap := s.Snapshot()
	assert.Equal(t, StateSearching, snap.State)
	assert.Empty(t, snap.SearchKey)
	assert.Nil(t, snap.Draft)
	assert.Empty(t, snap.RestorePool)

	s.Close()
	_, err = s.Search(context.Background(), "7")
	assert.True(t, ierr.IsInvalidOperation(err))
}

// blockingLedger holds GetInvoice until release is closed.
type blockingLedger struct {
	*fakeLedger
	entered chan struct{}
	release chan struct{}
}

func (l *blockingLedger) GetInvoice(ctx context.Context, id string) (*models.Document, error) {
	close(l.entered)
	<-l.release
	return l.fakeLedger.GetInvoice(ctx, id)
}

func TestInFlightAndStaleResponses(t *testing.T) {
	ledger := &blockingLedger{
		fakeLedger: newFakeLedger(threeItemInvoice()),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	s := newTestSession(ledger)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), "7")
		errc <- err
	}()
	<-ledger.entered

	_, err := s.Search(context.Background(), "7")
	assert.True(t, ierr.IsRequestInFlight(err))

	s.Reset()
	close(ledger.release)

	err = <-errc
	assert.True(t, ierr.IsStaleResponse(err))
	assert.Equal(t, StateSearching, s.State())
	assert.Empty(t, s.ReturnSet())
}

// failingLedger fails every call.
type failingLedger struct{ err error }

func (l failingLedger) CheckReturn(context.Context, string) (storage.ReturnCheck, error) {
	return storage.ReturnCheck{}, l.err
}

func (l failingLedger) GetInvoice(context.Context, string) (*models.Document, error) {
	return nil, l.err
}

func (l failingLedger) CreateReturn(context.Context, *models.Document) error { return l.err }
func (l failingLedger) UpdateReturn(context.Context, *models.Document) error { return l.err }
