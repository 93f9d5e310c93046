package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rxera/rxledger-backend/pkg/db/models"
	"github.com/rxera/rxledger-backend/pkg/logger"
)

// EventType names a committed state change worth announcing.
type EventType string

const (
	EventStockChanged          EventType = "stock.changed"
	EventItemCreated           EventType = "item.created"
	EventItemUpdated           EventType = "item.updated"
	EventItemRetired           EventType = "item.retired"
	EventPrescriptionCreated   EventType = "prescription.created"
	EventPrescriptionCompleted EventType = "prescription.completed"
	EventPatientRegistered     EventType = "patient.registered"
)

// Event is one committed change. Payload carries the type-specific detail and
// is safe to serialize for SSE delivery.
type Event struct {
	Type       EventType `json:"type"`
	ItemID     uuid.UUID `json:"item_id,omitempty"`
	ItemCode   string    `json:"item_code,omitempty"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StockChangedPayload details a single ledger mutation.
type StockChangedPayload struct {
	Kind           string     `json:"kind"`
	Quantity       int        `json:"quantity"`
	StockBefore    int        `json:"stock_before"`
	StockAfter     int        `json:"stock_after"`
	LowStock       bool       `json:"low_stock"`
	PrescriptionID *uuid.UUID `json:"prescription_id,omitempty"`
}

const defaultBuffer = 64

// Broker fans committed events out to in-process subscribers. Publishing
// never blocks; each subscriber gets every event in publish order through its
// own queue, so one slow consumer cannot stall the ledger or its peers.
type Broker struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	buffer int
	closed bool
	logg   *logger.Logger
}

// NewBroker builds a broker whose subscriber channels hold buffer events.
func NewBroker(buffer int, logg *logger.Logger) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{
		subs:   make(map[uint64]*subscriber),
		buffer: buffer,
		logg:   logg,
	}
}

// Subscribe registers a consumer. The returned cancel func detaches it and
// closes the channel; events published afterwards are not delivered.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscriber(b.buffer)
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	go sub.run()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			sub.stop()
		})
	}
	return sub.ch, cancel
}

// Publish enqueues the event for every current subscriber and returns
// immediately.
func (b *Broker) Publish(ctx context.Context, evt Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		sub.enqueue(evt)
	}
	if b.logg != nil {
		b.logg.Debug(b.logg.WithField(ctx, "event_type", string(evt.Type)), "event published")
	}
}

// Close detaches every subscriber and drops later publishes.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = map[uint64]*subscriber{}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

// StockChanged implements the ledger's event sink.
func (b *Broker) StockChanged(ctx context.Context, item models.StockItem, txn models.StockTransaction) {
	b.Publish(ctx, Event{
		Type:     EventStockChanged,
		ItemID:   item.ID,
		ItemCode: item.Code,
		Payload: StockChangedPayload{
			Kind:           string(txn.Kind),
			Quantity:       txn.Quantity,
			StockBefore:    txn.StockBefore,
			StockAfter:     txn.StockAfter,
			LowStock:       item.LowStock(),
			PrescriptionID: txn.PrescriptionID,
		},
	})
}

// ItemCreated announces a new catalog entry.
func (b *Broker) ItemCreated(ctx context.Context, item models.StockItem) {
	b.Publish(ctx, Event{Type: EventItemCreated, ItemID: item.ID, ItemCode: item.Code})
}

// ItemUpdated announces edited catalog metadata.
func (b *Broker) ItemUpdated(ctx context.Context, item models.StockItem) {
	b.Publish(ctx, Event{Type: EventItemUpdated, ItemID: item.ID, ItemCode: item.Code})
}

// ItemRetired announces a soft-retired item.
func (b *Broker) ItemRetired(ctx context.Context, item models.StockItem) {
	b.Publish(ctx, Event{Type: EventItemRetired, ItemID: item.ID, ItemCode: item.Code})
}

// PrescriptionCreated announces a committed fulfillment.
func (b *Broker) PrescriptionCreated(ctx context.Context, rx models.Prescription) {
	b.Publish(ctx, Event{Type: EventPrescriptionCreated, Payload: map[string]any{
		"prescription_id": rx.ID,
		"code":            rx.Code,
		"patient_id":      rx.PatientID,
	}})
}

// PrescriptionCompleted announces a dispensed prescription.
func (b *Broker) PrescriptionCompleted(ctx context.Context, rx models.Prescription) {
	b.Publish(ctx, Event{Type: EventPrescriptionCompleted, Payload: map[string]any{
		"prescription_id": rx.ID,
		"code":            rx.Code,
	}})
}

// PatientRegistered announces a new patient record.
func (b *Broker) PatientRegistered(ctx context.Context, patient models.Patient) {
	b.Publish(ctx, Event{Type: EventPatientRegistered, Payload: map[string]any{
		"patient_id": patient.ID,
		"code":       patient.Code,
	}})
}

// subscriber decouples publishers from one consumer. enqueue appends under
// the lock and pokes the drain goroutine, which feeds the channel in order.
type subscriber struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Event
	stopped bool
	ch      chan Event
	done    chan struct{}
}

func newSubscriber(buffer int) *subscriber {
	s := &subscriber{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscriber) enqueue(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = append(s.pending, evt)
	s.cond.Signal()
}

// run is the only closer of ch, so consumers can range over it safely.
func (s *subscriber) run() {
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped {
			s.mu.Unlock()
			close(s.ch)
			return
		}
		evt := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.ch <- evt:
		case <-s.done:
			close(s.ch)
			return
		}
	}
}

func (s *subscriber) stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.done)
	s.cond.Signal()
	s.mu.Unlock()
}
