package cart

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gramkart/commerce-core/namespace"
	"github.com/gramkart/commerce-core/pkg/pubsub"
	"github.com/gramkart/commerce-core/state"
)

// Sentinel errors for cart mutations.
var (
	ErrLineNotFound = errors.New("cart line not found")
	ErrMetaMismatch = errors.New("meta type does not match line type")
)

// Snapshot is the observable cart state delivered to subscribers.
type Snapshot struct {
	Namespace namespace.Namespace
	Items     []LineItem
}

// Store is a namespace-scoped cart bound to a persistence backend. All
// mutations persist the new snapshot and then notify subscribers
// synchronously. Attachments live only in memory and are stripped from
// every persisted snapshot.
type Store struct {
	ns      namespace.Namespace
	key     string
	backend state.Store
	lg      *zap.Logger

	mu    sync.Mutex
	items []LineItem
	files map[string]*Attachment

	hub *pubsub.Hub[Snapshot]
}

// NewStore loads the cart for ns from backend. A failed or corrupt read
// degrades to an empty cart: the store layer never fails out of a read path.
func NewStore(ctx context.Context, ns namespace.Namespace, backend state.Store, lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	s := &Store{
		ns:      ns,
		key:     ns.StorageKey("cart"),
		backend: backend,
		lg:      lg.With(zap.String("namespace", string(ns))),
		files:   make(map[string]*Attachment),
		hub:     pubsub.New[Snapshot](),
	}

	payload, ok, err := backend.Get(ctx, s.key)
	if err != nil {
		s.lg.Warn("Cart state read failed, starting empty", zap.Error(err))
		return s
	}
	if !ok {
		return s
	}
	items, err := decodeSnapshot(payload)
	if err != nil {
		s.lg.Warn("Cart state corrupt, starting empty", zap.Error(err))
		return s
	}
	s.items = items
	return s
}

// Namespace returns the role namespace this store is bound to.
func (s *Store) Namespace() namespace.Namespace { return s.ns }

// Items returns a copy of the current line items in cart order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyItems(s.items)
}

// File returns the ephemeral attachment for the given line key, or nil.
func (s *Store) File(key string) *Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[key]
}

// Subscribe registers fn, replays the current snapshot to it once, and
// returns an unsubscribe function. Notifications are synchronous; fn must
// not mutate the store.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	unsubscribe = s.hub.Subscribe(fn)
	fn(s.currentSnapshot())
	return unsubscribe
}

// AddItemParams holds the input for AddItem.
type AddItemParams struct {
	Type      ItemType
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Qty       int
	Meta      Meta
	File      *Attachment
}

// AddItem merges the addition into an existing line with the same computed
// key, or appends a new line. It returns the line key. Quantities below 1
// count as 1. A file, when given, is attached in memory only.
func (s *Store) AddItem(ctx context.Context, p AddItemParams) (string, error) {
	if p.Meta != nil && p.Meta.ItemType() != p.Type {
		return "", ErrMetaMismatch
	}

	key := ComputeKey(p.Type, p.ID, p.Meta)
	qty := max(1, p.Qty)
	price := p.UnitPrice
	if price.IsNegative() {
		price = decimal.Zero
	}

	s.mu.Lock()
	if existing := s.find(key); existing != nil {
		existing.Qty = max(1, existing.Qty+qty)
	} else {
		s.items = append(s.items, LineItem{
			Key:       key,
			Type:      p.Type,
			ID:        p.ID,
			Name:      p.Name,
			UnitPrice: price,
			Qty:       qty,
			Meta:      p.Meta,
		})
	}
	if p.File != nil {
		s.files[key] = p.File
	}
	err := s.persistLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Notify(snap)
	return key, err
}

// UpdateQty sets the quantity for key, clamped to at least 1.
func (s *Store) UpdateQty(ctx context.Context, key string, qty int) error {
	s.mu.Lock()
	line := s.find(key)
	if line == nil {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	line.Qty = max(1, qty)
	err := s.persistLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Notify(snap)
	return err
}

// RemoveItem removes the line and its attachment. Removing an absent key is
// a no-op, which keeps pipeline reconciliation idempotent.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	s.mu.Lock()
	removed := false
	for i, li := range s.items {
		if li.Key == key {
			s.items = append(s.items[:i], s.items[i+1:]...)
			removed = true
			break
		}
	}
	delete(s.files, key)
	if !removed {
		s.mu.Unlock()
		return nil
	}
	err := s.persistLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Notify(snap)
	return err
}

// SetItemMeta shallow-merges the non-empty fields of partial into the line's
// existing meta. The partial must carry the same meta shape as the line.
// The line key is not recomputed: merge identity is fixed at AddItem time.
func (s *Store) SetItemMeta(ctx context.Context, key string, partial Meta) error {
	if partial == nil {
		return nil
	}

	s.mu.Lock()
	line := s.find(key)
	if line == nil {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	if partial.ItemType() != line.Type {
		s.mu.Unlock()
		return ErrMetaMismatch
	}
	merged, err := mergeMeta(line.Type, line.Meta, partial)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	line.Meta = merged
	err = s.persistLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Notify(snap)
	return err
}

// SetItemUnitPrice sets the unit price for key, clamped to at least 1:
// a line must always carry a strictly positive charge.
func (s *Store) SetItemUnitPrice(ctx context.Context, key string, price decimal.Decimal) error {
	s.mu.Lock()
	line := s.find(key)
	if line == nil {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	line.UnitPrice = decimal.Max(price, decimal.NewFromInt(1))
	err := s.persistLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Notify(snap)
	return err
}

// SetItemFile attaches or clears (nil) the ephemeral file for key. File
// state is not part of the persisted snapshot, so this notifies without
// writing to the backend.
func (s *Store) SetItemFile(key string, file *Attachment) error {
	s.mu.Lock()
	if s.find(key) == nil {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	if file == nil {
		delete(s.files, key)
	} else {
		s.files[key] = file
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Notify(snap)
	return nil
}

// ClearCart empties both the persisted items and the attachment map.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	s.items = nil
	s.files = make(map[string]*Attachment)
	err := s.persistLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.hub.Notify(snap)
	return err
}

func (s *Store) find(key string) *LineItem {
	for i := range s.items {
		if s.items[i].Key == key {
			return &s.items[i]
		}
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	payload, err := encodeSnapshot(s.items)
	if err != nil {
		return errors.Wrap(err, "encode cart snapshot")
	}
	if err := s.backend.Set(ctx, s.key, payload); err != nil {
		return errors.Wrap(err, "persist cart")
	}
	return nil
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Namespace: s.ns, Items: copyItems(s.items)}
}

func (s *Store) currentSnapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func copyItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// mergeMeta overlays the fields present in partial's JSON form onto the
// existing meta and decodes the result back into the typed shape for t.
func mergeMeta(t ItemType, existing, partial Meta) (Meta, error) {
	base := make(map[string]any)
	if existing != nil {
		raw, err := json.Marshal(existing)
		if err != nil {
			return nil, errors.Wrap(err, "marshal existing meta")
		}
		if err := json.Unmarshal(raw, &base); err != nil {
			return nil, errors.Wrap(err, "decode existing meta")
		}
	}

	raw, err := json.Marshal(partial)
	if err != nil {
		return nil, errors.Wrap(err, "marshal partial meta")
	}
	overlay := make(map[string]any)
	if err := json.Unmarshal(raw, &overlay); err != nil {
		return nil, errors.Wrap(err, "decode partial meta")
	}
	for k, v := range overlay {
		base[k] = v
	}

	merged, err := json.Marshal(base)
	if err != nil {
		return nil, errors.Wrap(err, "marshal merged meta")
	}
	return decodeMeta(t, merged)
}
