// Package checkout implements the persistent, namespace-scoped checkout
// progress record: wizard step, contact details, payment reference, and an
// ephemeral payment proof attachment.
package checkout

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/gramkart/commerce-core/cart"
	"github.com/gramkart/commerce-core/namespace"
	"github.com/gramkart/commerce-core/pkg/pubsub"
	"github.com/gramkart/commerce-core/state"
)

// Contact holds the buyer contact details collected by the wizard.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Record is the persisted checkout progress. The payment proof attachment is
// ephemeral and lives outside the record.
type Record struct {
	Step    int     `json:"step"`
	Contact Contact `json:"contact"`
	UTR     string  `json:"utr"`
	Notes   string  `json:"notes"`
}

// Snapshot is the observable checkout state delivered to subscribers.
type Snapshot struct {
	Namespace namespace.Namespace
	Record    Record
	// PaymentFile is the current ephemeral proof attachment, or nil.
	PaymentFile *cart.Attachment
}

// Store is a namespace-scoped single-record store following the same
// persist-then-notify discipline as the cart store.
type Store struct {
	ns      namespace.Namespace
	key     string
	backend state.Store
	lg      *zap.Logger

	mu     sync.Mutex
	record Record
	file   *cart.Attachment

	hub *pubsub.Hub[Snapshot]
}

// NewStore loads the checkout record for ns. A failed or corrupt read
// degrades to the zero record.
func NewStore(ctx context.Context, ns namespace.Namespace, backend state.Store, lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	s := &Store{
		ns:      ns,
		key:     ns.StorageKey("checkout"),
		backend: backend,
		lg:      lg.With(zap.String("namespace", string(ns))),
		hub:     pubsub.New[Snapshot](),
	}

	payload, ok, err := backend.Get(ctx, s.key)
	if err != nil {
		s.lg.Warn("Checkout state read failed, starting empty", zap.Error(err))
		return s
	}
	if !ok {
		return s
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		s.lg.Warn("Checkout state corrupt, starting empty", zap.Error(err))
		return s
	}
	s.record = rec
	return s
}

// Namespace returns the role namespace this store is bound to.
func (s *Store) Namespace() namespace.Namespace { return s.ns }

// Record returns the current checkout record.
func (s *Store) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// PaymentFile returns the ephemeral payment proof, or nil.
func (s *Store) PaymentFile() *cart.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

// Subscribe registers fn, replays the current snapshot once, and returns an
// unsubscribe function.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	unsubscribe = s.hub.Subscribe(fn)
	fn(s.currentSnapshot())
	return unsubscribe
}

// SetStep records the wizard step. Negative steps clamp to 0.
func (s *Store) SetStep(ctx context.Context, step int) error {
	return s.update(ctx, func(r *Record) {
		r.Step = max(0, step)
	})
}

// SetContact merges the non-empty fields of c into the stored contact.
func (s *Store) SetContact(ctx context.Context, c Contact) error {
	return s.update(ctx, func(r *Record) {
		if c.Name != "" {
			r.Contact.Name = c.Name
		}
		if c.Email != "" {
			r.Contact.Email = c.Email
		}
		if c.Phone != "" {
			r.Contact.Phone = c.Phone
		}
	})
}

// SetUTR records the payment transaction reference.
func (s *Store) SetUTR(ctx context.Context, utr string) error {
	return s.update(ctx, func(r *Record) {
		r.UTR = utr
	})
}

// SetNotes records free-form order notes.
func (s *Store) SetNotes(ctx context.Context, notes string) error {
	return s.update(ctx, func(r *Record) {
		r.Notes = notes
	})
}

// SetPaymentFile attaches or clears (nil) the ephemeral payment proof. Like
// the cart's file slots, this notifies without writing to the backend.
func (s *Store) SetPaymentFile(file *cart.Attachment) {
	s.mu.Lock()
	s.file = file
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Notify(snap)
}

// Reset restores the zero record and clears the ephemeral file. The order
// pipeline invokes it after a run with zero failures.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.record = Record{}
	s.file = nil
	err := s.persistLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Notify(snap)
	return err
}

func (s *Store) update(ctx context.Context, mutate func(*Record)) error {
	s.mu.Lock()
	mutate(&s.record)
	err := s.persistLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Notify(snap)
	return err
}

func (s *Store) persistLocked(ctx context.Context) error {
	payload, err := json.Marshal(s.record)
	if err != nil {
		return errors.Wrap(err, "encode checkout record")
	}
	if err := s.backend.Set(ctx, s.key, payload); err != nil {
		return errors.Wrap(err, "persist checkout")
	}
	return nil
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Namespace: s.ns, Record: s.record, PaymentFile: s.file}
}

func (s *Store) currentSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}
