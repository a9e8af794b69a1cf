package main

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// --- 🔐 ACCESS ENTITLEMENTS ---

// AccessStore maps user ids to absolute access expiry. The delivery path
// reads this fresh at delivery time; having had access when a suggestion
// was generated counts for nothing.
type AccessStore struct {
	mu     sync.RWMutex
	expiry map[string]int64 // user id -> unix seconds
	store  Store
	now    func() time.Time
}

func NewAccessStore(store Store) *AccessStore {
	a := &AccessStore{expiry: make(map[string]int64), store: store, now: time.Now}
	if store != nil {
		if err := store.LoadMap("user_access", &a.expiry); err != nil {
			fmt.Println("⚠️ [ACCESS] Failed to load:", err.Error())
		}
		if a.expiry == nil {
			a.expiry = make(map[string]int64)
		}
	}
	return a
}

func (a *AccessStore) HasAccess(userID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.expiry[userID] > a.now().Unix()
}

func (a *AccessStore) ExpiresAt(userID string) (time.Time, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ts, ok := a.expiry[userID]
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(ts, 0), true
}

// Grant extends access by d. Still-active access stacks on top of the
// current expiry; lapsed access restarts from now. Returns the new expiry.
func (a *AccessStore) Grant(userID string, d time.Duration) time.Time {
	nowTS := a.now().Unix()
	a.mu.Lock()
	base := a.expiry[userID]
	if base < nowTS {
		base = nowTS
	}
	a.expiry[userID] = base + int64(d.Seconds())
	expiry := a.expiry[userID]
	snapshot := make(map[string]int64, len(a.expiry))
	for k, v := range a.expiry {
		snapshot[k] = v
	}
	a.mu.Unlock()
	persist(a.store, "user_access", snapshot)
	return time.Unix(expiry, 0)
}

// SetAccess overwrites the expiry to now + d. The free verify path uses
// this so repeat verifies cannot bank extra time; paid and redeem grants
// stack via Grant instead.
func (a *AccessStore) SetAccess(userID string, d time.Duration) time.Time {
	nowTS := a.now().Unix()
	a.mu.Lock()
	a.expiry[userID] = nowTS + int64(d.Seconds())
	expiry := a.expiry[userID]
	snapshot := make(map[string]int64, len(a.expiry))
	for k, v := range a.expiry {
		snapshot[k] = v
	}
	a.mu.Unlock()
	persist(a.store, "user_access", snapshot)
	return time.Unix(expiry, 0)
}

func (a *AccessStore) UserCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.expiry)
}

func (a *AccessStore) UserIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.expiry))
	for id := range a.expiry {
		ids = append(ids, id)
	}
	return ids
}

// --- ✅ VERIFIED USERS ---

// VerifiedSet records which users passed the join-the-channel check.
type VerifiedSet struct {
	mu    sync.RWMutex
	users map[string]bool
	store Store
}

func NewVerifiedSet(store Store) *VerifiedSet {
	v := &VerifiedSet{users: make(map[string]bool), store: store}
	if store != nil {
		if err := store.LoadMap("verified_users", &v.users); err != nil {
			fmt.Println("⚠️ [VERIFY] Failed to load:", err.Error())
		}
		if v.users == nil {
			v.users = make(map[string]bool)
		}
	}
	return v
}

func (v *VerifiedSet) IsVerified(userID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.users[userID]
}

func (v *VerifiedSet) Add(userID string) {
	v.mu.Lock()
	v.users[userID] = true
	snapshot := make(map[string]bool, len(v.users))
	for k := range v.users {
		snapshot[k] = true
	}
	v.mu.Unlock()
	persist(v.store, "verified_users", snapshot)
}

func (v *VerifiedSet) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.users)
}

func (v *VerifiedSet) IDs() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ids := make([]string, 0, len(v.users))
	for id := range v.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// --- 🎟️ REDEEM CODES ---

var (
	ErrInvalidCode     = errors.New("invalid code")
	ErrAlreadyRedeemed = errors.New("code already used by this user")
	ErrCodeExhausted   = errors.New("code has no uses left")
)

type RedeemBook struct {
	mu    sync.Mutex
	codes map[string]*RedeemCode
	store Store
	now   func() time.Time
}

func NewRedeemBook(store Store) *RedeemBook {
	r := &RedeemBook{codes: make(map[string]*RedeemCode), store: store, now: time.Now}
	if store != nil {
		if err := store.LoadMap("redeem_codes", &r.codes); err != nil {
			fmt.Println("⚠️ [REDEEM] Failed to load:", err.Error())
		}
		if r.codes == nil {
			r.codes = make(map[string]*RedeemCode)
		}
	}
	return r
}

func (r *RedeemBook) AddCode(code string, hours, uses int, createdBy string) {
	r.mu.Lock()
	r.codes[code] = &RedeemCode{
		Hours:     hours,
		UsesLeft:  uses,
		CreatedBy: createdBy,
		CreatedAt: r.now().Unix(),
	}
	r.persistLocked()
	r.mu.Unlock()
}

func (r *RedeemBook) Remove(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[code]; !ok {
		return false
	}
	delete(r.codes, code)
	r.persistLocked()
	return true
}

// Redeem consumes one use for this user and returns the hours granted.
// Each user may redeem a given code once.
func (r *RedeemBook) Redeem(code, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.codes[code]
	if !ok {
		return 0, ErrInvalidCode
	}
	for _, use := range entry.RedeemedBy {
		if use.UserID == userID {
			return 0, ErrAlreadyRedeemed
		}
	}
	if entry.UsesLeft <= 0 {
		return 0, ErrCodeExhausted
	}
	entry.UsesLeft--
	entry.RedeemedBy = append(entry.RedeemedBy, RedeemUse{UserID: userID, Timestamp: r.now().Unix()})
	r.persistLocked()
	return entry.Hours, nil
}

func (r *RedeemBook) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, 0, len(r.codes))
	for c := range r.codes {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func (r *RedeemBook) Describe(code string) (RedeemCode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.codes[code]
	if !ok {
		return RedeemCode{}, false
	}
	return *entry, true
}

func (r *RedeemBook) persistLocked() {
	snapshot := make(map[string]*RedeemCode, len(r.codes))
	for k, v := range r.codes {
		snapshot[k] = v
	}
	persist(r.store, "redeem_codes", snapshot)
}
