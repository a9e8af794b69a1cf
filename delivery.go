package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types"
)

// DeliveryOutcome is what the command layer gets back from the broker.
// Only these values cross into user-facing code; transport errors never do.
type DeliveryOutcome int

const (
	DeliveredTemporary DeliveryOutcome = iota // sent, deletion scheduled
	DeliveredPermanent                        // sent, no deletion (no active access)
	SelectionExpired                          // token unknown/expired or index out of range
	ContentGone                               // title dropped from catalog after session creation
	DeliveryFailed                            // transport copy failed
)

func (o DeliveryOutcome) String() string {
	switch o {
	case DeliveredTemporary:
		return "delivered_temporary"
	case DeliveredPermanent:
		return "delivered_permanent"
	case SelectionExpired:
		return "selection_expired"
	case ContentGone:
		return "content_gone"
	case DeliveryFailed:
		return "delivery_failed"
	}
	return "unknown"
}

// --- 📬 DELIVERY RECORDS ---

// DeliveryRecords tracks message handles pending deletion per owner.
type DeliveryRecords struct {
	mu      sync.Mutex
	pending map[string]map[string]bool // owner user id -> set of message handles
}

func NewDeliveryRecords() *DeliveryRecords {
	return &DeliveryRecords{pending: make(map[string]map[string]bool)}
}

func (r *DeliveryRecords) Add(ownerID, messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[ownerID] == nil {
		r.pending[ownerID] = make(map[string]bool)
	}
	r.pending[ownerID][messageID] = true
}

func (r *DeliveryRecords) Remove(ownerID, messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.pending[ownerID]; ok {
		delete(set, messageID)
		if len(set) == 0 {
			delete(r.pending, ownerID)
		}
	}
}

func (r *DeliveryRecords) Count(ownerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending[ownerID])
}

// --- ⏲️ DEFERRED DELETION ---

// DeletionScheduler runs one timer per delivered message. Timers live only
// in RAM; on restart previously scheduled deletions are simply lost, which
// is an accepted gap since the delivered messages are copies.
type DeletionScheduler struct {
	mu        sync.Mutex
	transport Transport
	records   *DeliveryRecords
	timers    map[string]*time.Timer
	notice    string
}

func NewDeletionScheduler(transport Transport, records *DeliveryRecords) *DeletionScheduler {
	return &DeletionScheduler{
		transport: transport,
		records:   records,
		timers:    make(map[string]*time.Timer),
		notice:    "🗑 Your file was deleted automatically to avoid copyright issues.",
	}
}

func (d *DeletionScheduler) Schedule(chat types.JID, messageID, ownerID string, delay time.Duration) {
	// register under the lock before the timer can fire: fire() blocks on
	// the same lock, so even a zero delay cannot leave a dead map entry
	d.mu.Lock()
	d.timers[messageID] = time.AfterFunc(delay, func() {
		d.fire(chat, messageID, ownerID)
	})
	d.mu.Unlock()
}

func (d *DeletionScheduler) fire(chat types.JID, messageID, ownerID string) {
	d.mu.Lock()
	delete(d.timers, messageID)
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.transport.DeleteMessage(ctx, chat, messageID); err != nil {
		// the user may have deleted it themselves; log only
		fmt.Printf("⚠️ [DELETE] Could not delete %s in %s: %v\n", messageID, chat, err)
	} else {
		fmt.Printf("🗑️ [DELETE] Removed delivered message %s from %s\n", messageID, chat)
	}

	// tracking cleanup happens regardless of deletion success
	d.records.Remove(ownerID, messageID)

	if _, err := d.transport.SendText(ctx, chat, d.notice); err != nil {
		fmt.Printf("⚠️ [DELETE] Notice failed for %s: %v\n", ownerID, err)
	}
}

// CancelAll stops outstanding timers on shutdown. Pending deletions are
// abandoned, not persisted.
func (d *DeletionScheduler) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}

func (d *DeletionScheduler) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// --- 📦 DELIVERY BROKER ---

// Broker turns a (token, index) selection or an exact-match title into an
// actual content copy plus, when the requester currently has access, a
// scheduled self-deletion. Access is evaluated by the caller at delivery
// time, never at session-creation time.
type Broker struct {
	catalog   *Catalog
	sessions  *SessionStore
	transport Transport
	records   *DeliveryRecords
	deletions *DeletionScheduler
	delay     time.Duration
}

func NewBroker(catalog *Catalog, sessions *SessionStore, transport Transport, records *DeliveryRecords, deletions *DeletionScheduler, delay time.Duration) *Broker {
	return &Broker{
		catalog:   catalog,
		sessions:  sessions,
		transport: transport,
		records:   records,
		deletions: deletions,
		delay:     delay,
	}
}

func (b *Broker) Deliver(ctx context.Context, token string, index int, chat types.JID, requesterID string, hasAccess bool) DeliveryOutcome {
	title, ok := b.sessions.Resolve(token, index)
	if !ok {
		return SelectionExpired
	}
	return b.DeliverTitle(ctx, title, chat, requesterID, hasAccess)
}

// DeliverTitle is the shared tail of both the suggestion path and the
// exact-match fast path.
func (b *Broker) DeliverTitle(ctx context.Context, title string, chat types.JID, requesterID string, hasAccess bool) DeliveryOutcome {
	locator, ok := b.catalog.Get(title)
	if !ok {
		return ContentGone
	}

	handle, err := b.transport.CopyContent(ctx, chat, locator)
	if err != nil {
		fmt.Printf("❌ [DELIVER] Copy failed for '%s': %v\n", title, err)
		return DeliveryFailed
	}

	if hasAccess {
		b.records.Add(requesterID, handle)
		b.deletions.Schedule(chat, handle, requesterID, b.delay)
		return DeliveredTemporary
	}
	return DeliveredPermanent
}
