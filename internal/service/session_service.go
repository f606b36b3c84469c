package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	ierr "github.com/mmynk/billdesk/internal/errors"
	"github.com/mmynk/billdesk/internal/models"
	"github.com/mmynk/billdesk/internal/reconcile"
	"github.com/mmynk/billdesk/internal/storage"
)

// ReturnSessionService implements billdesk.v1.ReturnSessionService. It
// keeps one reconcile.Session per client; sessions idle for longer than the
// TTL are closed and dropped.
type ReturnSessionService struct {
	store    storage.Store
	sessions *cache.Cache
	metrics  *Metrics
}

// NewReturnSessionService creates a new ReturnSessionService.
func NewReturnSessionService(store storage.Store, ttl time.Duration, metrics *Metrics) *ReturnSessionService {
	s := &ReturnSessionService{
		store:    store,
		sessions: cache.New(ttl, ttl),
		metrics:  metrics,
	}
	s.sessions.OnEvicted(func(id string, v any) {
		v.(*reconcile.Session).Close()
		slog.Info("Return session closed", "session_id", id)
		s.metrics.sessions(s.sessions.ItemCount())
	})
	return s
}

// Close ends every session.
func (s *ReturnSessionService) Close() {
	for id := range s.sessions.Items() {
		s.sessions.Delete(id)
	}
}

// session looks up a session and restarts its idle timer.
func (s *ReturnSessionService) session(id string) (*reconcile.Session, error) {
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, ierr.NewErrorf("session %q not found", id).
			WithHint("The return session has expired. Start a new one.").
			Mark(ierr.ErrDocumentNotFound)
	}
	s.sessions.SetDefault(id, v)
	return v.(*reconcile.Session), nil
}

func (s *ReturnSessionService) StartSession(_ context.Context, _ *Empty) (*SessionView, error) {
	sess := reconcile.NewSession(uuid.New().String(), s.store)
	s.sessions.SetDefault(sess.ID, sess)
	s.metrics.sessions(s.sessions.ItemCount())
	slog.Info("Return session started", "session_id", sess.ID)
	return newSessionView(sess.Snapshot()), nil
}

// Search looks up an invoice. An invoice that already has a return note is
// reported with OutcomeExistingReturn and the note in the session's
// Existing field.
func (s *ReturnSessionService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	res, err := sess.Search(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if res.Outcome == reconcile.OutcomeExistingReturn {
		s.metrics.duplicateHit()
		slog.Info("Existing return found", "session_id", sess.ID, "return_id", res.Existing.ID)
	}
	return &SearchResponse{Outcome: res.Outcome, Session: newSessionView(sess.Snapshot())}, nil
}

// Resume edits an existing return note.
func (s *ReturnSessionService) Resume(ctx context.Context, req *ResumeRequest) (*SessionView, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	var note *models.Document
	if req.ReturnID != "" {
		if note, err = s.store.GetReturn(ctx, canonicalID(req.ReturnID)); err != nil {
			return nil, ierr.Unavailable(err)
		}
	}
	if err := sess.Resume(ctx, note); err != nil {
		return nil, err
	}
	return newSessionView(sess.Snapshot()), nil
}

func (s *ReturnSessionService) RemoveItem(_ context.Context, req *ItemRequest) (*SessionView, error) {
	return s.edit(req.SessionID, func(sess *reconcile.Session) error {
		return sess.RemoveItem(req.Key)
	})
}

func (s *ReturnSessionService) RestoreItem(_ context.Context, req *ItemRequest) (*SessionView, error) {
	return s.edit(req.SessionID, func(sess *reconcile.Session) error {
		return sess.RestoreItem(req.Key)
	})
}

func (s *ReturnSessionService) UpdateItem(_ context.Context, req *UpdateItemRequest) (*SessionView, error) {
	return s.edit(req.SessionID, func(sess *reconcile.Session) error {
		return sess.UpdateItem(req.Key, req.Quantity, req.Rate)
	})
}

func (s *ReturnSessionService) UpdateHeader(_ context.Context, req *UpdateHeaderRequest) (*SessionView, error) {
	return s.edit(req.SessionID, func(sess *reconcile.Session) error {
		if req.Client != nil {
			if err := sess.SetClient(*req.Client); err != nil {
				return err
			}
		}
		if req.Date != "" {
			return sess.SetDate(req.Date)
		}
		return nil
	})
}

// Submit stores the draft return note.
func (s *ReturnSessionService) Submit(ctx context.Context, req *SessionRequest) (*SubmitResponse, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	doc, err := sess.Submit(ctx)
	if err != nil {
		if ierr.IsDuplicateReturn(err) {
			s.metrics.duplicateHit()
		}
		return nil, err
	}
	s.metrics.returnSaved()
	slog.Info("Return note saved",
		"session_id", sess.ID,
		"return_id", doc.ID,
		"invoice_id", doc.InvoiceID,
		"items", len(doc.Items),
		"net_amount", doc.Totals.NetAmount.StringFixed(2),
	)
	return &SubmitResponse{Return: newDocumentView(doc), Session: newSessionView(sess.Snapshot())}, nil
}

func (s *ReturnSessionService) Reset(_ context.Context, req *SessionRequest) (*SessionView, error) {
	return s.edit(req.SessionID, func(sess *reconcile.Session) error {
		sess.Reset()
		return nil
	})
}

func (s *ReturnSessionService) GetSession(_ context.Context, req *SessionRequest) (*SessionView, error) {
	return s.edit(req.SessionID, func(*reconcile.Session) error { return nil })
}

// EndSession closes a session. Ending an unknown session is not an error.
func (s *ReturnSessionService) EndSession(_ context.Context, req *SessionRequest) (*Empty, error) {
	s.sessions.Delete(req.SessionID)
	return &Empty{}, nil
}

func (s *ReturnSessionService) edit(id string, fn func(*reconcile.Session) error) (*SessionView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	return newSessionView(sess.Snapshot()), nil
}
