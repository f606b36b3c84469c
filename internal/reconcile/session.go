// Package reconcile runs the return workflow: find an invoice, decide which
// of its items come back, and store the result as a return note.
//
// A Session is single-owner. Its mutex is never held while the ledger is
// called; a busy flag rejects overlapping ledger requests and a generation
// counter discards responses that arrive after Reset or Close.
package reconcile

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mmynk/billdesk/internal/calculator"
	"github.com/mmynk/billdesk/internal/docid"
	ierr "github.com/mmynk/billdesk/internal/errors"
	"github.com/mmynk/billdesk/internal/models"
	"github.com/mmynk/billdesk/internal/storage"
)

// Ledger is the part of the store the workflow needs.
type Ledger interface {
	CheckReturn(ctx context.Context, invoiceID string) (storage.ReturnCheck, error)
	GetInvoice(ctx context.Context, id string) (*models.Document, error)
	CreateReturn(ctx context.Context, doc *models.Document) error
	UpdateReturn(ctx context.Context, doc *models.Document) error
}

// SearchResult is what a successful Search found.
type SearchResult struct {
	Outcome Outcome `json:"outcome"`
	// Existing is the invoice's return note when Outcome is OutcomeExistingReturn.
	Existing *models.Document `json:"existing,omitempty"`
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	ID        string `json:"id"`
	State     State  `json:"state"`
	SearchKey string `json:"searchKey,omitempty"`

	// Draft is the return note being edited, with live totals.
	Draft       *models.Document  `json:"draft,omitempty"`
	RestorePool []models.LineItem `json:"restorePool"`
	Existing    *models.Document  `json:"existing,omitempty"`
	Saved       *models.Document  `json:"saved,omitempty"`
}

// Session is one return in progress.
type Session struct {
	ID string

	ledger Ledger
	now    func() time.Time

	mu        sync.Mutex
	state     State
	searchKey string

	// draft carries the header of the return note; its items live in returnSet.
	draft     models.Document
	original  []models.LineItem
	returnSet []models.LineItem
	existing  *models.Document
	saved     *models.Document

	// stored is set once the draft exists in the ledger; Submit then updates.
	stored bool

	busy       bool
	generation uint64
	closed     bool
}

// NewSession creates a session in StateSearching.
func NewSession(id string, ledger Ledger) *Session {
	return &Session{
		ID:     id,
		ledger: ledger,
		now:    time.Now,
		state:  StateSearching,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Search looks up the invoice behind key. If the invoice already has a
// return note the session stops in StateExistingReturnFound and the invoice
// itself is never fetched. Otherwise the whole invoice becomes the draft
// return.
func (s *Session) Search(ctx context.Context, key string) (SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked("search", StateSearching, StateExistingReturnFound); err != nil {
		return SearchResult{}, err
	}
	s.state = StateSearching
	s.existing = nil

	invoiceID, err := docid.NormalizeInvoiceID(key)
	if err != nil {
		return SearchResult{}, err
	}
	s.searchKey = invoiceID

	var check storage.ReturnCheck
	err = s.await(func() error {
		var err error
		check, err = s.ledger.CheckReturn(ctx, invoiceID)
		return err
	})
	if err != nil {
		return SearchResult{}, storeFailure(err)
	}
	if check.Exists {
		s.existing = check.Return.Clone()
		s.state = StateExistingReturnFound
		return SearchResult{Outcome: OutcomeExistingReturn, Existing: check.Return.Clone()}, nil
	}

	var invoice *models.Document
	err = s.await(func() error {
		var err error
		invoice, err = s.ledger.GetInvoice(ctx, invoiceID)
		return err
	})
	if err != nil {
		return SearchResult{}, storeFailure(err)
	}

	returnID, err := docid.DeriveReturnID(invoice.ID)
	if err != nil {
		return SearchResult{}, err
	}

	// Return-by-default: everything on the invoice comes back until the
	// user removes it.
	s.enterEditingLocked(invoice, returnID, invoice.Items, false)
	return SearchResult{Outcome: OutcomeEditing}, nil
}

// Resume opens an existing return note for editing. A nil note resumes the
// one found by the last Search.
func (s *Session) Resume(ctx context.Context, note *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked("resume", StateSearching, StateExistingReturnFound); err != nil {
		return err
	}
	if note == nil {
		note = s.existing
	}
	if note == nil {
		return ierr.NewError("no return note to resume").
			WithHint("Search for a bill with a return note first.").
			Mark(ierr.ErrInvalidOperation)
	}
	note = note.Clone()

	var invoice *models.Document
	err := s.await(func() error {
		var err error
		invoice, err = s.ledger.GetInvoice(ctx, note.InvoiceID)
		return err
	})
	if err != nil {
		return storeFailure(err)
	}

	s.enterEditingLocked(invoice, note.ID, note.Items, true)
	s.draft.Client = note.Client
	s.draft.Date = note.Date
	s.draft.PaymentMode = note.PaymentMode
	s.searchKey = invoice.ID
	return nil
}

// RemoveItem takes the item out of the return set; the customer keeps it.
func (s *Session) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked("remove an item", StateEditing); err != nil {
		return err
	}
	i := s.indexLocked(key)
	if i < 0 {
		return itemNotInReturn(key)
	}
	s.returnSet = slices.Delete(s.returnSet, i, i+1)
	return nil
}

// RestoreItem moves an item from the restore pool back into the return set.
func (s *Session) RestoreItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked("restore an item", StateEditing); err != nil {
		return err
	}
	item, ok := lo.Find(s.restorePoolLocked(), func(it models.LineItem) bool {
		return it.Key() == key
	})
	if !ok {
		return ierr.NewErrorf("item %q is not restorable", key).
			WithHint("That item is not in the restore list.").
			Mark(ierr.ErrInvalidOperation)
	}
	s.returnSet = append(s.returnSet, item)
	return nil
}

// UpdateItem sets the quantity and rate of a returned item. Values are not
// checked here; Submit validates the whole set.
func (s *Session) UpdateItem(key string, quantity, rate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked("edit an item", StateEditing); err != nil {
		return err
	}
	i := s.indexLocked(key)
	if i < 0 {
		return itemNotInReturn(key)
	}
	s.returnSet[i].Quantity = quantity
	s.returnSet[i].Rate = rate
	return nil
}

// SetClient replaces the client printed on the return note.
func (s *Session) SetClient(client models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked("edit the client", StateEditing); err != nil {
		return err
	}
	s.draft.Client = client
	return nil
}

// SetDate sets the return note date, YYYY-MM-DD.
func (s *Session) SetDate(date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked("edit the date", StateEditing); err != nil {
		return err
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return ierr.NewValidation(ierr.ErrInvalidItem, "Date must look like 2026-01-31.")
	}
	s.draft.Date = date
	return nil
}

// RestorePool returns the original items that are not in the return set.
func (s *Session) RestorePool() []models.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restorePoolLocked()
}

// ReturnSet returns a copy of the items currently being returned.
func (s *Session) ReturnSet() []models.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneItems(s.returnSet)
}

// Submit validates the draft and stores it. On failure the session goes
// back to StateEditing with the draft untouched, except when another return
// note for the invoice was stored first: the session then moves to
// StateExistingReturnFound holding that note.
func (s *Session) Submit(ctx context.Context) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked("submit", StateEditing); err != nil {
		return nil, err
	}
	if len(s.returnSet) == 0 {
		return nil, ierr.NewValidation(ierr.ErrEmptyItemSet, "No items selected for return.")
	}
	if lo.ContainsBy(s.returnSet, func(it models.LineItem) bool { return !it.Quantity.IsPositive() }) {
		return nil, ierr.NewValidation(ierr.ErrNonPositiveQuantity, "Every return item must have a quantity.")
	}

	doc := s.draftLocked()
	save := s.ledger.CreateReturn
	if s.stored {
		save = s.ledger.UpdateReturn
	}

	s.state = StateSubmitting
	err := s.await(func() error { return save(ctx, doc) })
	if ierr.IsStaleResponse(err) {
		return nil, err
	}
	if ierr.IsDuplicateReturn(err) && !s.stored {
		found, checkErr := s.loadExistingLocked(ctx, doc.InvoiceID)
		if ierr.IsStaleResponse(checkErr) {
			return nil, checkErr
		}
		if found {
			return nil, err
		}
	}
	if err != nil {
		s.state = StateEditing
		return nil, storeFailure(err)
	}

	s.stored = true
	s.draft.ID = doc.ID
	s.saved = doc
	s.state = StateCompleted
	return doc.Clone(), nil
}

// Reset abandons whatever the session holds and goes back to StateSearching.
// Ledger responses still outstanding are discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Close ends the session. Every later call fails.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.closed = true
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:          s.ID,
		State:       s.state,
		SearchKey:   s.searchKey,
		RestorePool: s.restorePoolLocked(),
		Existing:    s.existing.Clone(),
		Saved:       s.saved.Clone(),
	}
	if s.state == StateEditing || s.state == StateSubmitting {
		snap.Draft = s.draftLocked()
	}
	return snap
}

// await runs a ledger call with the lock released. It returns
// ErrStaleResponse if the session was reset or closed in the meantime.
func (s *Session) await(call func() error) error {
	gen := s.generation
	s.busy = true
	s.mu.Unlock()

	err := call()

	s.mu.Lock()
	if gen != s.generation {
		slog.Debug("Discarding stale ledger response", "session_id", s.ID)
		return ierr.NewError("ledger response arrived after reset").
			WithHint("The session was reset. Start again.").
			Mark(ierr.ErrStaleResponse)
	}
	s.busy = false
	return err
}

// loadExistingLocked switches to the return note another writer stored for
// invoiceID first. It reports false, leaving the draft in place, when that
// note cannot be loaded.
func (s *Session) loadExistingLocked(ctx context.Context, invoiceID string) (bool, error) {
	var check storage.ReturnCheck
	err := s.await(func() error {
		var err error
		check, err = s.ledger.CheckReturn(ctx, invoiceID)
		return err
	})
	if err != nil {
		slog.Warn("Failed to load existing return note", "session_id", s.ID, "invoice_id", invoiceID, "error", err)
		return false, err
	}
	if !check.Exists {
		return false, nil
	}
	s.existing = check.Return.Clone()
	s.state = StateExistingReturnFound
	return true, nil
}

func (s *Session) checkLocked(action string, allowed ...State) error {
	if s.closed {
		return ierr.NewError("session closed").
			WithHint("This return session has ended.").
			Mark(ierr.ErrInvalidOperation)
	}
	if s.busy {
		return ierr.NewErrorf("cannot %s: request in flight", action).
			WithHint("Please wait for the current request to finish.").
			Mark(ierr.ErrRequestInFlight)
	}
	if !slices.Contains(allowed, s.state) {
		return ierr.NewErrorf("cannot %s in state %s", action, s.state).
			WithHintf("Cannot %s right now.", action).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

func (s *Session) enterEditingLocked(invoice *models.Document, returnID string, items []models.LineItem, stored bool) {
	s.draft = models.Document{
		Kind:        models.KindReturnNote,
		ID:          returnID,
		InvoiceID:   invoice.ID,
		Client:      invoice.Client,
		Date:        s.now().Format(models.DateLayout),
		PaymentMode: models.KindReturnNote.PaymentMode(),
	}
	s.original = models.CloneItems(invoice.Items)
	s.returnSet = models.CloneItems(items)
	s.existing = nil
	s.saved = nil
	s.stored = stored
	s.state = StateEditing
}

func (s *Session) resetLocked() {
	s.generation++
	s.busy = false
	s.state = StateSearching
	s.searchKey = ""
	s.draft = models.Document{}
	s.original = nil
	s.returnSet = nil
	s.existing = nil
	s.saved = nil
	s.stored = false
}

// draftLocked returns the return note as it would be stored now.
func (s *Session) draftLocked() *models.Document {
	doc := s.draft.Clone()
	doc.Items = models.CloneItems(s.returnSet)
	doc.Totals = calculator.ComputeTotals(doc.Items)
	return doc
}

func (s *Session) indexLocked(key string) int {
	return slices.IndexFunc(s.returnSet, func(it models.LineItem) bool {
		return it.Key() == key
	})
}

func (s *Session) restorePoolLocked() []models.LineItem {
	returning := lo.KeyBy(s.returnSet, models.LineItem.Key)
	pool := lo.Filter(s.original, func(it models.LineItem, _ int) bool {
		_, ok := returning[it.Key()]
		return !ok
	})
	return lo.UniqBy(pool, models.LineItem.Key)
}

func itemNotInReturn(key string) error {
	return ierr.NewErrorf("item %q is not in the return set", key).
		WithHint("That item is not part of this return.").
		Mark(ierr.ErrInvalidOperation)
}

// storeFailure passes domain errors through and marks everything else as
// the ledger being unavailable.
func storeFailure(err error) error {
	return ierr.Unavailable(err)
}
