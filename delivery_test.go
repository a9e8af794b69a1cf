package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/types"
)

// fakeTransport records calls instead of talking to WhatsApp.
type fakeTransport struct {
	mu       sync.Mutex
	copied   []string
	deleted  []string
	texts    []string
	failCopy bool
	nextID   int
}

func (f *fakeTransport) CopyContent(ctx context.Context, target types.JID, locator string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCopy {
		return "", errors.New("copy refused")
	}
	f.nextID++
	f.copied = append(f.copied, locator)
	return fmt.Sprintf("SENT-%d", f.nextID), nil
}

func (f *fakeTransport) DeleteMessage(ctx context.Context, chat types.JID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTransport) SendText(ctx context.Context, chat types.JID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return "TEXT-1", nil
}

func (f *fakeTransport) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func newTestBroker(ft *fakeTransport, delay time.Duration) (*Broker, *Catalog, *SessionStore, *DeliveryRecords, *DeletionScheduler) {
	cat := NewCatalog(nil)
	sess := NewSessionStore(SessionTTL)
	rec := NewDeliveryRecords()
	sched := NewDeletionScheduler(ft, rec)
	return NewBroker(cat, sess, ft, rec, sched, delay), cat, sess, rec, sched
}

var testChat = types.NewJID("919900000001", types.DefaultUserServer)

func TestBrokerUnknownTokenIsExpired(t *testing.T) {
	ft := &fakeTransport{}
	b, _, _, _, _ := newTestBroker(ft, time.Minute)

	outcome := b.Deliver(context.Background(), "nope", 0, testChat, "u1", true)
	assert.Equal(t, SelectionExpired, outcome)
}

func TestBrokerOutOfRangeIndexIsExpired(t *testing.T) {
	ft := &fakeTransport{}
	b, cat, sess, _, _ := newTestBroker(ft, time.Minute)
	cat.Put("dune (2021)", "LOC-1")
	token := sess.Create("u1", []string{"dune (2021)"})

	outcome := b.Deliver(context.Background(), token, 5, testChat, "u1", true)
	assert.Equal(t, SelectionExpired, outcome)
}

func TestBrokerContentGoneAfterSessionCreated(t *testing.T) {
	ft := &fakeTransport{}
	b, cat, sess, _, _ := newTestBroker(ft, time.Minute)
	cat.Put("dune (2021)", "LOC-1")
	token := sess.Create("u1", []string{"dune (2021)"})

	// Catalog churns between suggestion and click.
	cat.Remove("dune (2021)")

	outcome := b.Deliver(context.Background(), token, 0, testChat, "u1", true)
	assert.Equal(t, ContentGone, outcome)
	assert.Empty(t, ft.copied)
}

func TestBrokerTransportFailure(t *testing.T) {
	ft := &fakeTransport{failCopy: true}
	b, cat, _, rec, sched := newTestBroker(ft, time.Minute)
	cat.Put("dune (2021)", "LOC-1")

	outcome := b.DeliverTitle(context.Background(), "dune (2021)", testChat, "u1", true)
	assert.Equal(t, DeliveryFailed, outcome)
	assert.Equal(t, 0, rec.Count("u1"))
	assert.Equal(t, 0, sched.PendingCount())
}

func TestBrokerWithAccessSchedulesDeletion(t *testing.T) {
	ft := &fakeTransport{}
	b, cat, _, rec, sched := newTestBroker(ft, 30*time.Millisecond)
	cat.Put("dune (2021)", "LOC-1")

	outcome := b.DeliverTitle(context.Background(), "dune (2021)", testChat, "u1", true)
	require.Equal(t, DeliveredTemporary, outcome)
	assert.Equal(t, 1, rec.Count("u1"))
	assert.Equal(t, 1, sched.PendingCount())

	// After the delay the message is revoked and the record dropped.
	assert.Eventually(t, func() bool {
		return len(ft.deletedIDs()) == 1 && rec.Count("u1") == 0 && sched.PendingCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"SENT-1"}, ft.deletedIDs())
}

func TestBrokerWithoutAccessDeliversPermanently(t *testing.T) {
	ft := &fakeTransport{}
	b, cat, _, rec, sched := newTestBroker(ft, 10*time.Millisecond)
	cat.Put("dune (2021)", "LOC-1")

	outcome := b.DeliverTitle(context.Background(), "dune (2021)", testChat, "u1", false)
	require.Equal(t, DeliveredPermanent, outcome)
	assert.Equal(t, 0, rec.Count("u1"))
	assert.Equal(t, 0, sched.PendingCount())

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, ft.deletedIDs())
}

func TestBrokerSelectionPathDelivers(t *testing.T) {
	ft := &fakeTransport{}
	b, cat, sess, _, _ := newTestBroker(ft, time.Minute)
	cat.Put("dune (2021)", "LOC-1")
	cat.Put("dune part two (2024)", "LOC-2")
	token := sess.Create("u1", []string{"dune (2021)", "dune part two (2024)"})

	outcome := b.Deliver(context.Background(), token, 1, testChat, "u1", false)
	require.Equal(t, DeliveredPermanent, outcome)
	assert.Equal(t, []string{"LOC-2"}, ft.copied)
}

func TestDeletionSchedulerZeroDelay(t *testing.T) {
	ft := &fakeTransport{}
	rec := NewDeliveryRecords()
	sched := NewDeletionScheduler(ft, rec)
	rec.Add("u1", "M1")

	// An immediate fire must still find its timer entry and clean it up.
	sched.Schedule(testChat, "M1", "u1", 0)
	assert.Eventually(t, func() bool {
		return sched.PendingCount() == 0 && rec.Count("u1") == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"M1"}, ft.deletedIDs())

	sched.CancelAll()
	assert.Equal(t, 0, sched.PendingCount())
}

func TestDeletionSchedulerCancelAll(t *testing.T) {
	ft := &fakeTransport{}
	rec := NewDeliveryRecords()
	sched := NewDeletionScheduler(ft, rec)

	sched.Schedule(testChat, "M1", "u1", 50*time.Millisecond)
	sched.Schedule(testChat, "M2", "u1", 50*time.Millisecond)
	require.Equal(t, 2, sched.PendingCount())

	sched.CancelAll()
	assert.Equal(t, 0, sched.PendingCount())

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, ft.deletedIDs())
}

func TestDeliveryRecordsAddRemove(t *testing.T) {
	rec := NewDeliveryRecords()
	rec.Add("u1", "M1")
	rec.Add("u1", "M2")
	rec.Add("u2", "M3")

	assert.Equal(t, 2, rec.Count("u1"))
	rec.Remove("u1", "M1")
	assert.Equal(t, 1, rec.Count("u1"))
	rec.Remove("u1", "M2")
	assert.Equal(t, 0, rec.Count("u1"))
	assert.Equal(t, 1, rec.Count("u2"))
}

func TestOutcomeStrings(t *testing.T) {
	assert.Equal(t, "delivered_temporary", DeliveredTemporary.String())
	assert.Equal(t, "delivered_permanent", DeliveredPermanent.String())
	assert.Equal(t, "selection_expired", SelectionExpired.String())
	assert.Equal(t, "content_gone", ContentGone.String())
	assert.Equal(t, "delivery_failed", DeliveryFailed.String())
}
