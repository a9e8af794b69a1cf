package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletAddAndDeduct(t *testing.T) {
	w := NewWallet(nil)

	assert.Equal(t, 0, w.Balance("u1"))
	assert.Equal(t, 10, w.AddCoins("u1", 10, "daily bonus"))
	assert.True(t, w.DeductCoins("u1", 4))
	assert.Equal(t, 6, w.Balance("u1"))
	assert.False(t, w.DeductCoins("u1", 7))
	assert.Equal(t, 6, w.Balance("u1"))
}

func TestWalletHistoryIsTyped(t *testing.T) {
	w := NewWallet(nil)
	w.AddCoins("u1", SearchCoin, "movie search")
	w.RecordWithdraw("u1", 75.5, "requested to x@upi")
	w.RecordPremium("u1", "Basic 1 Month - ₹25", 500)

	h := w.History("u1")
	require.Len(t, h.Earn, 1)
	assert.Equal(t, "movie search", h.Earn[0].Reason)
	require.Len(t, h.Withdraw, 1)
	assert.Equal(t, 75.5, h.Withdraw[0].Amount)
	require.Len(t, h.Premium, 1)
	assert.Equal(t, 500, h.Premium[0].PaidCoins)
}

func TestWalletPersistsAcrossRestarts(t *testing.T) {
	store := newMemStore()
	w := NewWallet(store)
	w.AddCoins("u1", 42, "movie search")

	w2 := NewWallet(store)
	assert.Equal(t, 42, w2.Balance("u1"))
	assert.Len(t, w2.History("u1").Earn, 1)
}

func TestSearchLeaderboardCountsOnlySearches(t *testing.T) {
	w := NewWallet(nil)
	w.AddCoins("u1", SearchCoin, "movie search")
	w.AddCoins("u1", SearchCoin, "movie search")
	w.AddCoins("u2", SearchCoin, "movie search")
	w.AddCoins("u2", DailyBonusCoins, "daily bonus")
	w.AddCoins("u3", ReferralCoins, "referral reward")

	rows := w.SearchLeaderboard(todayStr(), 10)
	require.Len(t, rows, 2)
	assert.Equal(t, LeaderboardRow{UserID: "u1", Searches: 2}, rows[0])
	assert.Equal(t, LeaderboardRow{UserID: "u2", Searches: 1}, rows[1])
}

func TestAwardLeaderboardPaysEveryTopSearcher(t *testing.T) {
	w := NewWallet(nil)
	w.AddCoins("u1", SearchCoin, "movie search")
	w.AddCoins("u1", SearchCoin, "movie search")
	w.AddCoins("u2", SearchCoin, "movie search")
	w.AddCoins("u3", ReferralCoins, "referral reward")
	beforeU1 := w.Balance("u1")
	beforeU2 := w.Balance("u2")
	beforeU3 := w.Balance("u3")

	winners, ok := w.AwardLeaderboard(todayStr())
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"u1", "u2"}, winners)
	assert.Equal(t, beforeU1+LeaderboardCoins, w.Balance("u1"))
	assert.Equal(t, beforeU2+LeaderboardCoins, w.Balance("u2"))
	assert.Equal(t, beforeU3, w.Balance("u3"), "non-searchers get nothing")

	h := w.History("u2")
	require.NotEmpty(t, h.Earn)
	assert.Equal(t, "leaderboard reward", h.Earn[len(h.Earn)-1].Reason)
}

func TestAwardLeaderboardOncePerDay(t *testing.T) {
	w := NewWallet(nil)
	w.AddCoins("u1", SearchCoin, "movie search")

	_, ok := w.AwardLeaderboard(todayStr())
	require.True(t, ok)

	w.AddCoins("u2", SearchCoin, "movie search")
	winners, ok := w.AwardLeaderboard(todayStr())
	assert.False(t, ok)
	assert.Empty(t, winners)
	assert.Equal(t, SearchCoin, w.Balance("u2"))
}

func TestAwardLeaderboardEmptyDay(t *testing.T) {
	w := NewWallet(nil)
	_, ok := w.AwardLeaderboard("1999-01-01")
	assert.False(t, ok)
}

func TestStreakAdvancesOncePerDay(t *testing.T) {
	s := NewStreakTracker(nil)
	day1 := time.Date(2026, 9, 1, 12, 0, 0, 0, istZone)
	s.now = func() time.Time { return day1 }

	streak, first := s.Touch("u1")
	assert.Equal(t, 1, streak)
	assert.True(t, first)

	streak, first = s.Touch("u1")
	assert.Equal(t, 1, streak)
	assert.False(t, first)

	s.now = func() time.Time { return day1.AddDate(0, 0, 1) }
	streak, first = s.Touch("u1")
	assert.Equal(t, 2, streak)
	assert.True(t, first)
}

func TestStreakResetsAfterGap(t *testing.T) {
	s := NewStreakTracker(nil)
	day1 := time.Date(2026, 9, 1, 12, 0, 0, 0, istZone)
	s.now = func() time.Time { return day1 }
	s.Touch("u1")
	s.now = func() time.Time { return day1.AddDate(0, 0, 1) }
	s.Touch("u1")

	s.now = func() time.Time { return day1.AddDate(0, 0, 5) }
	streak, first := s.Touch("u1")
	assert.Equal(t, 1, streak)
	assert.True(t, first)
}

func TestReferralLifecycle(t *testing.T) {
	r := NewReferralBook(nil)

	assert.False(t, r.Use("owner", "owner"), "self referral")
	assert.True(t, r.Use("owner", "friend"))
	assert.False(t, r.Use("owner", "friend"), "repeat use")
	assert.False(t, r.Use("other", "friend"), "already referred elsewhere")

	owner, ok := r.CompleteFirstSearch("friend")
	require.True(t, ok)
	assert.Equal(t, "owner", owner)

	_, ok = r.CompleteFirstSearch("friend")
	assert.False(t, ok, "reward only once")

	total, completed := r.Stats("owner")
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, completed)
}

func TestReferralUnknownUser(t *testing.T) {
	r := NewReferralBook(nil)
	_, ok := r.CompleteFirstSearch("stranger")
	assert.False(t, ok)
}

func TestWithdrawBookFlow(t *testing.T) {
	w := NewWithdrawBook(nil)
	w.Add(WithdrawRequest{UserID: "u1", Amount: 60, UpiID: "u1@upi", Status: "pending", Timestamp: 100})
	w.Add(WithdrawRequest{UserID: "u2", Amount: 80, UpiID: "u2@upi", Status: "pending", Timestamp: 200})

	require.Len(t, w.Pending(), 2)

	req, ok := w.MarkPaid("u1")
	require.True(t, ok)
	assert.Equal(t, 60.0, req.Amount)
	assert.Len(t, w.Pending(), 1)

	// the full ledger keeps paid entries too
	all := w.All()
	require.Len(t, all, 2)
	statuses := map[string]string{}
	for _, r := range all {
		statuses[r.UserID] = r.Status
	}
	assert.Equal(t, "paid", statuses["u1"])
	assert.Equal(t, "pending", statuses["u2"])

	_, ok = w.MarkPaid("u1")
	assert.False(t, ok)
}

func TestWithdrawBookPersists(t *testing.T) {
	store := newMemStore()
	w := NewWithdrawBook(store)
	w.Add(WithdrawRequest{UserID: "u1", Amount: 60, UpiID: "u1@upi", Status: "pending", Timestamp: 100})

	w2 := NewWithdrawBook(store)
	assert.Len(t, w2.Pending(), 1)
}

func TestCoinConversions(t *testing.T) {
	assert.Equal(t, 1.0, coinsToRupees(100))
	assert.Equal(t, 0.5, coinsToRupees(50))
	assert.Equal(t, 5000, rupeesToCoins(50))
	assert.Equal(t, rupeesToCoins(MinWithdrawRupees), 5000)
}

func TestMaskJIDHidesDigits(t *testing.T) {
	masked := maskJID("919876543210@s.whatsapp.net")
	assert.NotContains(t, masked, "876543")
	assert.Contains(t, masked, "919")
}
