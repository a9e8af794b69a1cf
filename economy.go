package main

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// --- 🪙 WALLET ---

// Wallet holds coin balances and the per-user earn/withdraw/premium history.
// 100 coins = ₹1.
type Wallet struct {
	mu      sync.Mutex
	coins   map[string]int
	history map[string]*UserHistory
	awards  map[string][]string // IST day -> rewarded user ids, dedupe
	store   Store
	now     func() time.Time
}

func NewWallet(store Store) *Wallet {
	w := &Wallet{
		coins:   make(map[string]int),
		history: make(map[string]*UserHistory),
		awards:  make(map[string][]string),
		store:   store,
		now:     time.Now,
	}
	if store != nil {
		if err := store.LoadMap("user_coins", &w.coins); err != nil {
			fmt.Println("⚠️ [WALLET] Failed to load coins:", err)
		}
		if err := store.LoadMap("user_history", &w.history); err != nil {
			fmt.Println("⚠️ [WALLET] Failed to load history:", err)
		}
		if err := store.LoadMap("leaderboard_awards", &w.awards); err != nil {
			fmt.Println("⚠️ [WALLET] Failed to load awards:", err)
		}
		if w.coins == nil {
			w.coins = make(map[string]int)
		}
		if w.history == nil {
			w.history = make(map[string]*UserHistory)
		}
		if w.awards == nil {
			w.awards = make(map[string][]string)
		}
	}
	return w
}

func (w *Wallet) Balance(userID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.coins[userID]
}

// AddCoins credits amount and appends an earn entry with the given reason.
func (w *Wallet) AddCoins(userID string, amount int, reason string) int {
	w.mu.Lock()
	w.coins[userID] += amount
	balance := w.coins[userID]
	h := w.historyLocked(userID)
	h.Earn = append(h.Earn, EarnEntry{Timestamp: w.now().Unix(), Amount: amount, Reason: reason})
	w.persistLocked()
	w.mu.Unlock()
	return balance
}

// DeductCoins debits amount if the balance covers it.
func (w *Wallet) DeductCoins(userID string, amount int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.coins[userID] < amount {
		return false
	}
	w.coins[userID] -= amount
	w.persistLocked()
	return true
}

func (w *Wallet) RecordWithdraw(userID string, amount float64, note string) {
	w.mu.Lock()
	h := w.historyLocked(userID)
	h.Withdraw = append(h.Withdraw, WithdrawEntry{Timestamp: w.now().Unix(), Amount: amount, Note: note})
	w.persistLocked()
	w.mu.Unlock()
}

func (w *Wallet) RecordPremium(userID, plan string, paidCoins int) {
	w.mu.Lock()
	h := w.historyLocked(userID)
	h.Premium = append(h.Premium, PremiumEntry{Timestamp: w.now().Unix(), Plan: plan, PaidCoins: paidCoins})
	w.persistLocked()
	w.mu.Unlock()
}

func (w *Wallet) History(userID string) UserHistory {
	w.mu.Lock()
	defer w.mu.Unlock()
	h, ok := w.history[userID]
	if !ok {
		return UserHistory{}
	}
	out := UserHistory{
		Premium:  append([]PremiumEntry(nil), h.Premium...),
		Withdraw: append([]WithdrawEntry(nil), h.Withdraw...),
		Earn:     append([]EarnEntry(nil), h.Earn...),
	}
	return out
}

func (w *Wallet) UserCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.coins)
}

type LeaderboardRow struct {
	UserID   string
	Searches int
}

// SearchLeaderboard counts "movie search" earn entries for the given IST day
// and returns the top rows, ties broken by user id.
func (w *Wallet) SearchLeaderboard(day string, limit int) []LeaderboardRow {
	w.mu.Lock()
	counts := make(map[string]int)
	for userID, h := range w.history {
		for _, e := range h.Earn {
			if e.Reason != "movie search" {
				continue
			}
			if time.Unix(e.Timestamp, 0).In(istZone).Format("2006-01-02") == day {
				counts[userID]++
			}
		}
	}
	w.mu.Unlock()

	rows := make([]LeaderboardRow, 0, len(counts))
	for id, n := range counts {
		rows = append(rows, LeaderboardRow{UserID: id, Searches: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Searches != rows[j].Searches {
			return rows[i].Searches > rows[j].Searches
		}
		return rows[i].UserID < rows[j].UserID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// AwardLeaderboard pays every top-10 searcher of the day, once per day.
// Returns the rewarded user ids and false if the day was already awarded
// or nobody searched.
func (w *Wallet) AwardLeaderboard(day string) ([]string, bool) {
	w.mu.Lock()
	if _, done := w.awards[day]; done {
		w.mu.Unlock()
		return nil, false
	}
	w.mu.Unlock()

	rows := w.SearchLeaderboard(day, 10)
	if len(rows) == 0 {
		return nil, false
	}

	w.mu.Lock()
	winners := make([]string, 0, len(rows))
	for _, row := range rows {
		w.coins[row.UserID] += LeaderboardCoins
		h := w.historyLocked(row.UserID)
		h.Earn = append(h.Earn, EarnEntry{Timestamp: w.now().Unix(), Amount: LeaderboardCoins, Reason: "leaderboard reward"})
		winners = append(winners, row.UserID)
	}
	w.awards[day] = winners
	w.persistLocked()
	w.mu.Unlock()
	return winners, true
}

func (w *Wallet) historyLocked(userID string) *UserHistory {
	h, ok := w.history[userID]
	if !ok {
		h = &UserHistory{}
		w.history[userID] = h
	}
	return h
}

func (w *Wallet) persistLocked() {
	coins := make(map[string]int, len(w.coins))
	for k, v := range w.coins {
		coins[k] = v
	}
	hist := make(map[string]*UserHistory, len(w.history))
	for k, v := range w.history {
		hist[k] = v
	}
	awards := make(map[string][]string, len(w.awards))
	for k, v := range w.awards {
		awards[k] = v
	}
	persist(w.store, "user_coins", coins)
	persist(w.store, "user_history", hist)
	persist(w.store, "leaderboard_awards", awards)
}

// --- 🔥 STREAKS ---

// StreakTracker advances a per-user daily search streak in IST.
type StreakTracker struct {
	mu    sync.Mutex
	info  map[string]*StreakInfo
	store Store
	now   func() time.Time
}

func NewStreakTracker(store Store) *StreakTracker {
	s := &StreakTracker{info: make(map[string]*StreakInfo), store: store, now: time.Now}
	if store != nil {
		if err := store.LoadMap("user_streaks", &s.info); err != nil {
			fmt.Println("⚠️ [STREAK] Failed to load:", err)
		}
		if s.info == nil {
			s.info = make(map[string]*StreakInfo)
		}
	}
	return s
}

// Touch stamps today's search. firstToday is true only on the first search
// of the IST day, which is what gates the daily bonus and jackpot checks.
func (s *StreakTracker) Touch(userID string) (streak int, firstToday bool) {
	today := s.now().In(istZone).Format("2006-01-02")
	yesterday := s.now().In(istZone).AddDate(0, 0, -1).Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.info[userID]
	if !ok {
		info = &StreakInfo{}
		s.info[userID] = info
	}
	if info.LastSearchDay == today {
		return info.Streak, false
	}
	if info.LastSearchDay == yesterday {
		info.Streak++
	} else {
		info.Streak = 1
	}
	info.LastSearchDay = today
	snapshot := make(map[string]*StreakInfo, len(s.info))
	for k, v := range s.info {
		snapshot[k] = v
	}
	persist(s.store, "user_streaks", snapshot)
	return info.Streak, true
}

func (s *StreakTracker) Current(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.info[userID]; ok {
		return info.Streak
	}
	return 0
}

// --- 🤝 REFERRALS ---

// ReferralBook is keyed by the owner's user id; the referral link simply
// carries that id. A referred user pays out once, after their first search.
type ReferralBook struct {
	mu    sync.Mutex
	refs  map[string]*Referral
	store Store
}

func NewReferralBook(store Store) *ReferralBook {
	r := &ReferralBook{refs: make(map[string]*Referral), store: store}
	if store != nil {
		if err := store.LoadMap("referrals", &r.refs); err != nil {
			fmt.Println("⚠️ [REFERRAL] Failed to load:", err)
		}
		if r.refs == nil {
			r.refs = make(map[string]*Referral)
		}
	}
	return r
}

// Use records that newUser arrived via owner's link. Self-referrals and
// repeat uses are ignored.
func (r *ReferralBook) Use(owner, newUser string) bool {
	if owner == newUser || owner == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range r.refs {
		for _, u := range ref.UsedBy {
			if u == newUser {
				return false
			}
		}
	}
	ref, ok := r.refs[owner]
	if !ok {
		ref = &Referral{Owner: owner}
		r.refs[owner] = ref
	}
	ref.UsedBy = append(ref.UsedBy, newUser)
	r.persistLocked()
	return true
}

// CompleteFirstSearch marks the referred user's first search done and
// returns the referrer owed the reward, if any.
func (r *ReferralBook) CompleteFirstSearch(userID string) (owner string, rewarded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ownerID, ref := range r.refs {
		used := false
		for _, u := range ref.UsedBy {
			if u == userID {
				used = true
				break
			}
		}
		if !used {
			continue
		}
		for _, c := range ref.Completed {
			if c == userID {
				return "", false
			}
		}
		ref.Completed = append(ref.Completed, userID)
		r.persistLocked()
		return ownerID, true
	}
	return "", false
}

func (r *ReferralBook) Stats(owner string) (total, completed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ref, ok := r.refs[owner]; ok {
		return len(ref.UsedBy), len(ref.Completed)
	}
	return 0, 0
}

func (r *ReferralBook) persistLocked() {
	snapshot := make(map[string]*Referral, len(r.refs))
	for k, v := range r.refs {
		snapshot[k] = v
	}
	persist(r.store, "referrals", snapshot)
}

// --- 💸 WITHDRAWALS ---

type WithdrawBook struct {
	mu       sync.Mutex
	requests []WithdrawRequest
	store    Store
}

func NewWithdrawBook(store Store) *WithdrawBook {
	w := &WithdrawBook{store: store}
	if store != nil {
		wrapper := map[string][]WithdrawRequest{}
		if err := store.LoadMap("withdraw_requests", &wrapper); err != nil {
			fmt.Println("⚠️ [WITHDRAW] Failed to load:", err)
		}
		w.requests = wrapper["requests"]
	}
	return w
}

func (w *WithdrawBook) Add(req WithdrawRequest) {
	w.mu.Lock()
	w.requests = append(w.requests, req)
	w.persistLocked()
	w.mu.Unlock()
}

func (w *WithdrawBook) Pending() []WithdrawRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WithdrawRequest, 0)
	for _, req := range w.requests {
		if req.Status == "pending" {
			out = append(out, req)
		}
	}
	return out
}

func (w *WithdrawBook) All() []WithdrawRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]WithdrawRequest(nil), w.requests...)
}

// MarkPaid flips the oldest pending request of the user to paid.
func (w *WithdrawBook) MarkPaid(userID string) (WithdrawRequest, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.requests {
		if w.requests[i].UserID == userID && w.requests[i].Status == "pending" {
			w.requests[i].Status = "paid"
			w.persistLocked()
			return w.requests[i], true
		}
	}
	return WithdrawRequest{}, false
}

func (w *WithdrawBook) persistLocked() {
	persist(w.store, "withdraw_requests", map[string][]WithdrawRequest{
		"requests": append([]WithdrawRequest(nil), w.requests...),
	})
}

// --- 🏆 LEADERBOARD SCHEDULER ---

// startLeaderboardLoop pays the daily top-10 at 21:00 IST and hands the
// rewarded users to announce.
func startLeaderboardLoop(announce func(winners []string, rows []LeaderboardRow)) {
	go func() {
		for {
			now := time.Now().In(istZone)
			next := time.Date(now.Year(), now.Month(), now.Day(), LeaderboardHourIST, 0, 0, 0, istZone)
			if !next.After(now) {
				next = next.AddDate(0, 0, 1)
			}
			time.Sleep(next.Sub(now))

			day := time.Now().In(istZone).Format("2006-01-02")
			rows := wallet.SearchLeaderboard(day, 10)
			winners, ok := wallet.AwardLeaderboard(day)
			if ok {
				fmt.Printf("🏆 [LEADERBOARD] Rewarded %d users for %s\n", len(winners), day)
				if announce != nil {
					announce(winners, rows)
				}
			} else {
				fmt.Println("🏆 [LEADERBOARD] No award for", day)
			}
		}
	}()
}
