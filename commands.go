package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// registerHandlers wires the event loop. Every message is handled on its own
// goroutine so a slow AI call or delivery never blocks the socket.
func registerHandlers(client *whatsmeow.Client) {
	client.AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			go func() {
				defer func() {
					if r := recover(); r != nil {
						fmt.Println("🔥 [PANIC] Recovered in handler:", r)
					}
				}()
				processMessage(client, v)
			}()
		}
	})
}

func getText(evt *events.Message) string {
	msg := evt.Message
	if msg == nil {
		return ""
	}
	if t := msg.GetConversation(); t != "" {
		return t
	}
	if t := msg.GetExtendedTextMessage().GetText(); t != "" {
		return t
	}
	if t := msg.GetImageMessage().GetCaption(); t != "" {
		return t
	}
	if t := msg.GetVideoMessage().GetCaption(); t != "" {
		return t
	}
	if t := msg.GetDocumentMessage().GetCaption(); t != "" {
		return t
	}
	return ""
}

func replyMessage(client *whatsmeow.Client, evt *events.Message, text string) {
	_, err := client.SendMessage(context.Background(), evt.Info.Chat, &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(text),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:      proto.String(evt.Info.ID),
				Participant:   proto.String(evt.Info.Sender.String()),
				QuotedMessage: evt.Message,
			},
		},
	})
	if err != nil {
		fmt.Println("⚠️ [REPLY] Failed:", err)
	}
}

func react(client *whatsmeow.Client, evt *events.Message, emoji string) {
	msg := client.BuildReaction(evt.Info.Chat, evt.Info.Sender, evt.Info.ID, emoji)
	_, _ = client.SendMessage(context.Background(), evt.Info.Chat, msg)
}

func isAdmin(sender string) bool {
	return cfg.AdminJID != "" && sender == cfg.AdminJID
}

func processMessage(client *whatsmeow.Client, evt *events.Message) {
	if evt.Info.IsFromMe {
		return
	}

	// New files posted to the source channel go straight into the catalog.
	if cfg.SourceChannel != "" && evt.Info.Chat.String() == cfg.SourceChannel {
		handleChannelPost(client, evt)
		return
	}

	// Bot only talks in DMs.
	if evt.Info.IsGroup {
		return
	}

	sender := evt.Info.Sender.ToNonAD().String()
	text := strings.TrimSpace(getText(evt))

	// Button / list picks carry the session token in the row id.
	if rowID := extractRowID(evt.Message); rowID != "" {
		handleRowSelect(client, evt, sender, rowID)
		return
	}

	// In-progress withdraw conversation eats the next messages.
	withdrawStateMutex.Lock()
	state, inWithdraw := withdrawStates[sender]
	withdrawStateMutex.Unlock()
	if inWithdraw && !strings.HasPrefix(text, ".") {
		handleWithdrawStep(client, evt, sender, state, text)
		return
	}

	if strings.HasPrefix(text, ".") {
		handleCommand(client, evt, sender, text)
		return
	}

	// Bare number replies resolve against the user's latest suggestion list.
	if n, err := strconv.Atoi(text); err == nil {
		pendingSelectMutex.Lock()
		token, ok := pendingSelect[sender]
		pendingSelectMutex.Unlock()
		if ok {
			deliverSelection(client, evt, sender, token, n-1)
			return
		}
	}

	if text == "" {
		return
	}
	handleSearch(client, evt, sender, text)
}

// --- 📥 CHANNEL INGESTION ---

func handleChannelPost(client *whatsmeow.Client, evt *events.Message) {
	caption := getText(evt)
	if caption == "" {
		return
	}
	locator := string(evt.Info.ID)
	mediaCache.Put(locator, evt.Message)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	title := normalizer.Normalize(ctx, caption)
	catalog.Put(title, locator)
	fmt.Printf("📥 [CATALOG] Indexed '%s' (%d titles total)\n", title, catalog.Len())
	broadcastWS(map[string]interface{}{"type": "catalog", "title": title, "total": catalog.Len()})
}

// --- 🔍 SEARCH ---

func handleSearch(client *whatsmeow.Client, evt *events.Message, sender, query string) {
	if !verified.IsVerified(sender) {
		replyMessage(client, evt,
			"👋 *Welcome to "+BOT_NAME+"!*\n\n"+
				"1️⃣ Join our channel: "+cfg.ChannelInviteURL+"\n"+
				"2️⃣ Then send *.verify* to unlock search.")
		return
	}

	if !access.HasAccess(sender) && !isAdmin(sender) {
		replyMessage(client, evt,
			"🔒 *Access Required*\n\n"+
				"🎁 Get 24h free access: "+cfg.FreeAccessURL+"\n"+
				"💎 Or go premium, send *.plans*\n"+
				"🎟️ Have a code? Send *.redeem <code>*")
		return
	}

	// Per-user cooldown.
	lastRequestMutex.Lock()
	last, seen := lastRequest[sender]
	now := time.Now()
	if seen && now.Sub(last) < UserCooldown {
		remaining := UserCooldown - now.Sub(last)
		lastRequestMutex.Unlock()
		replyMessage(client, evt, fmt.Sprintf("⏳ Slow down! Try again in %d seconds.", int(remaining.Seconds())+1))
		return
	}
	lastRequest[sender] = now
	lastRequestMutex.Unlock()

	react(client, evt, "🔍")
	creditSearchEconomy(client, sender)

	// Exact fast path: the query already names a catalog title.
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if _, ok := catalog.Get(query); ok {
		auditLog.LogSearch(sender, query, 1)
		outcome := broker.DeliverTitle(ctx, query, evt.Info.Chat, sender, access.HasAccess(sender))
		auditLog.LogDelivery(sender, query, outcome)
		respondOutcome(client, evt, outcome)
		return
	}

	matches := findAdvancedMatches(query, catalog.Keys(), SuggestionLimit, FuzzyScoreCutoff)
	auditLog.LogSearch(sender, query, len(matches))
	broadcastWS(map[string]interface{}{"type": "search", "query": query, "matches": len(matches)})

	if len(matches) == 0 {
		replyMessage(client, evt,
			"😔 *No results for:* "+query+"\n\n"+
				"✅ Check the spelling\n"+
				"✅ Try the movie name only, without year or quality\n\n"+
				"📩 Our team has been notified and will add it if available!")
		if cfg.AdminJID != "" {
			if adminJID, err := types.ParseJID(cfg.AdminJID); err == nil {
				sendTextTo(client, adminJID, "📭 *Missing title request*\nUser: "+sender+"\nQuery: "+query)
			}
		}
		return
	}

	token := sessions.Create(sender, matches)
	pendingSelectMutex.Lock()
	pendingSelect[sender] = token
	pendingSelectMutex.Unlock()

	if err := sendSuggestionList(client, evt, token, matches); err != nil {
		// Flow send failed, fall back to a plain numbered list.
		var b strings.Builder
		b.WriteString(fmt.Sprintf("🔍 Found *%d* matches, reply with a number:\n\n", len(matches)))
		for i, title := range matches {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, title))
		}
		replyMessage(client, evt, b.String())
	}
}

// creditSearchEconomy runs the per-search coin hooks: the search coin, the
// once-a-day bonus, the 7-day jackpot and the referral completion payout.
func creditSearchEconomy(client *whatsmeow.Client, sender string) {
	wallet.AddCoins(sender, SearchCoin, "movie search")

	streak, firstToday := streaks.Touch(sender)
	if firstToday {
		wallet.AddCoins(sender, DailyBonusCoins, "daily bonus")
		if streak > 0 && streak%7 == 0 {
			wallet.AddCoins(sender, JackpotCoins, "7-day streak jackpot")
			if jid, err := types.ParseJID(sender); err == nil {
				sendTextTo(client, jid, fmt.Sprintf("🎰 *JACKPOT!* %d-day streak, +%d coins!", streak, JackpotCoins))
			}
		}
	}

	if owner, ok := referrals.CompleteFirstSearch(sender); ok {
		wallet.AddCoins(owner, ReferralCoins, "referral reward")
		if jid, err := types.ParseJID(owner); err == nil {
			sendTextTo(client, jid, fmt.Sprintf("🤝 *Referral complete!* Your friend made their first search. +%d coins!", ReferralCoins))
		}
	}
}

// --- 🎯 SELECTION ---

func handleRowSelect(client *whatsmeow.Client, evt *events.Message, sender, rowID string) {
	parts := strings.Split(rowID, ":")
	switch parts[0] {
	case "confirm":
		if len(parts) != 3 {
			return
		}
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			return
		}
		deliverSelection(client, evt, sender, parts[1], index)
	case "plan":
		if len(parts) != 2 {
			return
		}
		handlePlanPick(client, evt, sender, parts[1])
	}
}

func deliverSelection(client *whatsmeow.Client, evt *events.Message, sender, token string, index int) {
	title, ok := sessions.Resolve(token, index)
	if !ok {
		auditLog.LogDelivery(sender, "", SelectionExpired)
		respondOutcome(client, evt, SelectionExpired)
		return
	}

	react(client, evt, "📤")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	hasAccess := access.HasAccess(sender)
	outcome := broker.DeliverTitle(ctx, title, evt.Info.Chat, sender, hasAccess)
	auditLog.LogDelivery(sender, title, outcome)
	broadcastWS(map[string]interface{}{"type": "delivery", "title": title, "outcome": outcome.String()})

	pendingSelectMutex.Lock()
	delete(pendingSelect, sender)
	pendingSelectMutex.Unlock()

	respondOutcome(client, evt, outcome)
}

func respondOutcome(client *whatsmeow.Client, evt *events.Message, outcome DeliveryOutcome) {
	switch outcome {
	case DeliveredTemporary:
		replyMessage(client, evt, fmt.Sprintf("✅ *Delivered!*\n⏰ This file self-deletes in %d minutes, save it now.", int(DeleteDelay.Minutes())))
	case DeliveredPermanent:
		replyMessage(client, evt, "✅ *Delivered!* Enjoy 🍿")
	case SelectionExpired:
		replyMessage(client, evt, "⌛ That list has expired. Search again to get fresh results.")
	case ContentGone:
		replyMessage(client, evt, "🗑️ That title was removed from our library. Search again for alternatives.")
	case DeliveryFailed:
		replyMessage(client, evt, "❌ Delivery failed, please try again in a moment.")
	}
}

// --- 💬 COMMANDS ---

func handleCommand(client *whatsmeow.Client, evt *events.Message, sender, text string) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case ".start":
		// ".start ref_<jid>" arrives from referral links.
		if len(args) == 1 && strings.HasPrefix(args[0], "ref_") {
			owner := strings.TrimPrefix(args[0], "ref_")
			if referrals.Use(owner, sender) {
				fmt.Println("🤝 [REFERRAL] New referral:", owner, "->", sender)
			}
		}
		replyMessage(client, evt,
			"🎬 *"+BOT_NAME+"*\n\n"+
				"Type any movie or series name to search!\n\n"+
				"📜 *.help* — all commands\n"+
				"✅ *.verify* — unlock search after joining the channel")

	case ".help", ".menu":
		help := "📜 *Commands*\n\n" +
			"🔍 Just type a title to search\n" +
			"✅ .verify — after joining the channel\n" +
			"💰 .balance — coins and access status\n" +
			"📊 .history — earning history\n" +
			"🔥 .streak — daily search streak\n" +
			"🏆 .leaderboard — today's top searchers\n" +
			"🤝 .refer — your referral link\n" +
			"🎟️ .redeem <code> — redeem an access code\n" +
			"💎 .plans — premium plans\n" +
			"💸 .withdraw — cash out coins\n" +
			"❌ .cancel — abort withdraw"
		if isAdmin(sender) {
			help += "\n\n👑 *Admin*\n" +
				".addcode <code> <hours> <uses>\n" +
				".delcode <code> | .codes\n" +
				".grant <jid> <hours> | .addcoins <jid> <n>\n" +
				".addmovie <title> (as media caption)\n" +
				".delmovie <title> | .listmovies | .movies\n" +
				".pending | .paid <jid> | .withdrawals | .users\n" +
				".broadcast <text> | .activity | .alive"
		}
		replyMessage(client, evt, help)

	case ".verify":
		verified.Add(sender)
		expiry := access.SetAccess(sender, FreeAccessDuration)
		replyMessage(client, evt,
			"✅ *Verified!*\n"+
				"🎁 You got *24 hours* of free access.\n"+
				"⏰ Valid till: "+expiry.In(istZone).Format("02 Jan 2006, 03:04 PM")+" IST\n\n"+
				"Now type any movie name to search! 🍿")

	case ".balance", ".wallet":
		coins := wallet.Balance(sender)
		msg := fmt.Sprintf("💰 *Your Wallet*\n\n🪙 Coins: %d (₹%.2f)\n", coins, coinsToRupees(coins))
		if expiry, ok := access.ExpiresAt(sender); ok && expiry.After(time.Now()) {
			msg += "🔓 Access till: " + expiry.In(istZone).Format("02 Jan, 03:04 PM") + " IST"
		} else {
			msg += "🔒 No active access"
		}
		replyMessage(client, evt, msg)

	case ".history":
		h := wallet.History(sender)
		var b strings.Builder
		b.WriteString("📊 *Your History*\n\n")
		n := len(h.Earn)
		if n > 10 {
			h.Earn = h.Earn[n-10:]
		}
		if len(h.Earn) == 0 {
			b.WriteString("Nothing yet, start searching! 🔍")
		}
		for _, e := range h.Earn {
			b.WriteString(fmt.Sprintf("🪙 +%d — %s (%s)\n", e.Amount, e.Reason,
				time.Unix(e.Timestamp, 0).In(istZone).Format("02 Jan")))
		}
		replyMessage(client, evt, b.String())

	case ".streak":
		streak := streaks.Current(sender)
		next := 7 - streak%7
		replyMessage(client, evt, fmt.Sprintf(
			"🔥 *Streak: %d days*\n🎰 %d more days to the %d-coin jackpot!",
			streak, next, JackpotCoins))

	case ".leaderboard", ".top":
		rows := wallet.SearchLeaderboard(todayStr(), 10)
		var b strings.Builder
		b.WriteString("🏆 *Today's Top Searchers*\n\n")
		if len(rows) == 0 {
			b.WriteString("Nobody searched yet today!")
		}
		for i, row := range rows {
			b.WriteString(fmt.Sprintf("%d. %s — %d searches\n", i+1, maskJID(row.UserID), row.Searches))
		}
		b.WriteString(fmt.Sprintf("\n🏆 Top 10 at %d:00 IST win *%d coins* each!", LeaderboardHourIST, LeaderboardCoins))
		replyMessage(client, evt, b.String())

	case ".refer", ".referral":
		total, completed := referrals.Stats(sender)
		replyMessage(client, evt, fmt.Sprintf(
			"🤝 *Referral Program*\n\n"+
				"Share this with friends:\n.start ref_%s\n\n"+
				"👥 Joined: %d | ✅ Completed: %d\n"+
				"🪙 You earn *%d coins* per friend's first search!",
			sender, total, completed, ReferralCoins))

	case ".redeem":
		if len(args) != 1 {
			replyMessage(client, evt, "Usage: .redeem <code>")
			return
		}
		hours, err := redeems.Redeem(args[0], sender)
		if err != nil {
			replyMessage(client, evt, "❌ "+err.Error())
			return
		}
		expiry := access.Grant(sender, time.Duration(hours)*time.Hour)
		replyMessage(client, evt, fmt.Sprintf(
			"🎟️ *Code redeemed!* +%d hours of access.\n⏰ Valid till: %s IST",
			hours, expiry.In(istZone).Format("02 Jan 2006, 03:04 PM")))

	case ".plans", ".premium":
		if err := sendPlanButtons(client, evt); err != nil {
			var b strings.Builder
			b.WriteString("💎 *Premium Plans*\n\n")
			for _, p := range premiumPlans {
				b.WriteString(fmt.Sprintf("• %s — %d days\n", p.Name, p.Days))
			}
			b.WriteString("\nPay to UPI: " + cfg.UpiID)
			replyMessage(client, evt, b.String())
		}

	case ".withdraw":
		coins := wallet.Balance(sender)
		if coinsToRupees(coins) < MinWithdrawRupees {
			replyMessage(client, evt, fmt.Sprintf(
				"❌ Minimum withdrawal is ₹%.0f (%d coins).\nYou have %d coins (₹%.2f). Keep searching! 🔍",
				MinWithdrawRupees, rupeesToCoins(MinWithdrawRupees), coins, coinsToRupees(coins)))
			return
		}
		withdrawStateMutex.Lock()
		withdrawStates[sender] = &WithdrawState{Step: "amount"}
		withdrawStateMutex.Unlock()
		replyMessage(client, evt, fmt.Sprintf(
			"💸 *Withdrawal*\nBalance: ₹%.2f\n\nHow much do you want to withdraw? (minimum ₹%.0f)\nSend *.cancel* to abort.",
			coinsToRupees(coins), MinWithdrawRupees))

	case ".cancel":
		withdrawStateMutex.Lock()
		_, had := withdrawStates[sender]
		delete(withdrawStates, sender)
		withdrawStateMutex.Unlock()
		if had {
			replyMessage(client, evt, "❌ Withdrawal cancelled.")
		}

	// --- 👑 admin ---
	case ".addcode":
		if !isAdmin(sender) {
			return
		}
		if len(args) != 3 {
			replyMessage(client, evt, "Usage: .addcode <code> <hours> <uses>")
			return
		}
		hours, err1 := strconv.Atoi(args[1])
		uses, err2 := strconv.Atoi(args[2])
		if err1 != nil || err2 != nil || hours <= 0 || uses <= 0 {
			replyMessage(client, evt, "❌ Hours and uses must be positive numbers.")
			return
		}
		redeems.AddCode(args[0], hours, uses, sender)
		replyMessage(client, evt, fmt.Sprintf("✅ Code *%s* created: %dh access, %d uses.", args[0], hours, uses))

	case ".delcode":
		if !isAdmin(sender) {
			return
		}
		if len(args) != 1 {
			return
		}
		if redeems.Remove(args[0]) {
			replyMessage(client, evt, "🗑️ Code removed.")
		} else {
			replyMessage(client, evt, "❌ No such code.")
		}

	case ".codes":
		if !isAdmin(sender) {
			return
		}
		var b strings.Builder
		b.WriteString("🎟️ *Active Codes*\n\n")
		for _, code := range redeems.List() {
			if info, ok := redeems.Describe(code); ok {
				b.WriteString(fmt.Sprintf("• %s — %dh, %d uses left\n", code, info.Hours, info.UsesLeft))
			}
		}
		replyMessage(client, evt, b.String())

	case ".grant":
		if !isAdmin(sender) {
			return
		}
		if len(args) != 2 {
			replyMessage(client, evt, "Usage: .grant <jid> <hours>")
			return
		}
		hours, err := strconv.Atoi(args[1])
		if err != nil || hours <= 0 {
			return
		}
		expiry := access.Grant(args[0], time.Duration(hours)*time.Hour)
		replyMessage(client, evt, "✅ Granted till "+expiry.In(istZone).Format("02 Jan 2006, 03:04 PM")+" IST")
		if jid, err := types.ParseJID(args[0]); err == nil {
			sendTextTo(client, jid, fmt.Sprintf("🎁 You were granted *%d hours* of access!", hours))
		}

	case ".addcoins":
		if !isAdmin(sender) {
			return
		}
		if len(args) != 2 {
			replyMessage(client, evt, "Usage: .addcoins <jid> <amount>")
			return
		}
		amount, err := strconv.Atoi(args[1])
		if err != nil {
			return
		}
		balance := wallet.AddCoins(args[0], amount, "admin credit")
		replyMessage(client, evt, fmt.Sprintf("✅ Done. New balance: %d coins.", balance))

	case ".addmovie":
		if !isAdmin(sender) {
			return
		}
		// Admin forwards the media with ".addmovie <title>" as the caption.
		if evt.Message.GetImageMessage() == nil && evt.Message.GetVideoMessage() == nil && evt.Message.GetDocumentMessage() == nil {
			replyMessage(client, evt, "❌ Attach the media file with the caption: .addmovie <title>")
			return
		}
		title := strings.TrimSpace(strings.TrimPrefix(text, cmd))
		if title == "" {
			replyMessage(client, evt, "Usage (as media caption): .addmovie <title>")
			return
		}
		locator := string(evt.Info.ID)
		mediaCache.Put(locator, evt.Message)
		catalog.Put(title, locator)
		replyMessage(client, evt, fmt.Sprintf("✅ Indexed *%s* (%d titles total)", title, catalog.Len()))

	case ".listmovies":
		if !isAdmin(sender) {
			return
		}
		keys := catalog.Keys()
		var b strings.Builder
		b.WriteString(fmt.Sprintf("🎬 *Catalog (%d titles)*\n\n", len(keys)))
		for i, k := range keys {
			if i >= 50 {
				b.WriteString(fmt.Sprintf("… and %d more\n", len(keys)-50))
				break
			}
			b.WriteString("• " + k + "\n")
		}
		replyMessage(client, evt, b.String())

	case ".broadcast":
		if !isAdmin(sender) {
			return
		}
		body := strings.TrimSpace(strings.TrimPrefix(text, cmd))
		if body == "" {
			replyMessage(client, evt, "Usage: .broadcast <message>")
			return
		}
		targets := verified.IDs()
		replyMessage(client, evt, fmt.Sprintf("📢 Broadcasting to %d users...", len(targets)))
		go func() {
			sent := 0
			for _, id := range targets {
				jid, err := types.ParseJID(id)
				if err != nil {
					continue
				}
				sendTextTo(client, jid, "📢 *Announcement*\n\n"+body)
				sent++
				time.Sleep(500 * time.Millisecond) // stay under rate limits
			}
			fmt.Printf("📢 [BROADCAST] Sent to %d/%d users\n", sent, len(targets))
		}()

	case ".activity":
		if !isAdmin(sender) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		recent, err := auditLog.RecentSearches(ctx, 15)
		if err != nil || len(recent) == 0 {
			replyMessage(client, evt, "📭 No recent activity recorded.")
			return
		}
		var b strings.Builder
		b.WriteString("📈 *Recent Searches*\n\n")
		for _, e := range recent {
			b.WriteString(fmt.Sprintf("🔍 %s — %q (%d hits)\n", maskJID(e.UserID), e.Query, e.Matches))
		}
		replyMessage(client, evt, b.String())

	case ".delmovie":
		if !isAdmin(sender) {
			return
		}
		title := strings.TrimSpace(strings.TrimPrefix(text, cmd))
		if title == "" {
			replyMessage(client, evt, "Usage: .delmovie <title>")
			return
		}
		if catalog.Remove(title) {
			replyMessage(client, evt, "🗑️ Removed: "+title)
		} else {
			replyMessage(client, evt, "❌ Not in catalog: "+title)
		}

	case ".movies", ".count":
		if !isAdmin(sender) {
			return
		}
		replyMessage(client, evt, fmt.Sprintf("🎬 Catalog: *%d* titles\n🗳️ Active sessions: %d\n⏳ Pending deletions: %d",
			catalog.Len(), sessions.Len(), deletions.PendingCount()))

	case ".pending":
		if !isAdmin(sender) {
			return
		}
		reqs := withdrawals.Pending()
		var b strings.Builder
		b.WriteString(fmt.Sprintf("💸 *Pending Withdrawals (%d)*\n\n", len(reqs)))
		for _, r := range reqs {
			b.WriteString(fmt.Sprintf("• %s — ₹%.2f → %s (%s)\n", r.UserID, r.Amount, r.UpiID,
				time.Unix(r.Timestamp, 0).In(istZone).Format("02 Jan")))
		}
		replyMessage(client, evt, b.String())

	case ".paid":
		if !isAdmin(sender) {
			return
		}
		if len(args) != 1 {
			replyMessage(client, evt, "Usage: .paid <jid>")
			return
		}
		req, ok := withdrawals.MarkPaid(args[0])
		if !ok {
			replyMessage(client, evt, "❌ No pending request for that user.")
			return
		}
		replyMessage(client, evt, fmt.Sprintf("✅ Marked paid: ₹%.2f to %s", req.Amount, req.UpiID))
		if jid, err := types.ParseJID(args[0]); err == nil {
			sendTextTo(client, jid, fmt.Sprintf("💸 *Payment sent!* ₹%.2f to %s. Thanks for using %s!", req.Amount, req.UpiID, BOT_NAME))
		}

	case ".users":
		if !isAdmin(sender) {
			return
		}
		active := 0
		for _, id := range access.UserIDs() {
			if access.HasAccess(id) {
				active++
			}
		}
		replyMessage(client, evt, fmt.Sprintf("👥 Wallets: %d\n✅ Verified: %d\n🔓 Access records: %d (%d active)",
			wallet.UserCount(), verified.Count(), access.UserCount(), active))

	case ".withdrawals":
		if !isAdmin(sender) {
			return
		}
		all := withdrawals.All()
		var b strings.Builder
		b.WriteString(fmt.Sprintf("📒 *Withdrawal Ledger (%d)*\n\n", len(all)))
		for _, r := range all {
			b.WriteString(fmt.Sprintf("• %s — ₹%.2f → %s [%s] %s\n", maskJID(r.UserID), r.Amount, r.UpiID, r.Status,
				time.Unix(r.Timestamp, 0).In(istZone).Format("02 Jan")))
		}
		replyMessage(client, evt, b.String())

	case ".alive", ".ping":
		uptime := time.Since(startTime).Round(time.Second)
		replyMessage(client, evt, fmt.Sprintf("🤖 *%s*\n⏳ Uptime: %s\n🎬 Titles: %d\n🧠 AI keys: %d",
			BOT_NAME, uptime, catalog.Len(), getTotalKeysCount()))
	}
}

// --- 💎 PREMIUM ---

func handlePlanPick(client *whatsmeow.Client, evt *events.Message, sender, code string) {
	plan := planByCode(code)
	if plan == nil {
		return
	}

	// Enough coins buys the plan outright, otherwise show payment details.
	if wallet.DeductCoins(sender, plan.Coins) {
		wallet.RecordPremium(sender, plan.Name, plan.Coins)
		expiry := access.Grant(sender, time.Duration(plan.Days)*24*time.Hour)
		replyMessage(client, evt, fmt.Sprintf(
			"💎 *Premium activated with coins!*\n📦 %s\n⏰ Valid till: %s IST",
			plan.Name, expiry.In(istZone).Format("02 Jan 2006")))
		return
	}

	msg := "💳 *" + plan.Name + "*\n\n" +
		"Pay via UPI: *" + cfg.UpiID + "*\n"
	if qr := plan.QRURL(); qr != "" {
		msg += "📱 QR: " + qr + "\n"
	}
	msg += "\n📸 Send the payment screenshot to the admin and your plan will be activated."
	replyMessage(client, evt, msg)
}

// --- 💸 WITHDRAW CONVERSATION ---

func handleWithdrawStep(client *whatsmeow.Client, evt *events.Message, sender string, state *WithdrawState, text string) {
	switch state.Step {
	case "amount":
		amount, err := strconv.ParseFloat(text, 64)
		if err != nil || amount < MinWithdrawRupees {
			replyMessage(client, evt, fmt.Sprintf("❌ Send a number of at least %.0f, or *.cancel* to abort.", MinWithdrawRupees))
			return
		}
		balance := coinsToRupees(wallet.Balance(sender))
		if amount > balance {
			replyMessage(client, evt, fmt.Sprintf("❌ You only have ₹%.2f. Send a smaller amount.", balance))
			return
		}
		withdrawStateMutex.Lock()
		state.Step = "upi"
		state.Amount = amount
		withdrawStateMutex.Unlock()
		replyMessage(client, evt, fmt.Sprintf("💸 Withdrawing *₹%.2f*.\nNow send your UPI ID (e.g. name@upi):", amount))

	case "upi":
		if !strings.Contains(text, "@") || len(text) < 5 {
			replyMessage(client, evt, "❌ That doesn't look like a UPI ID. Try again, or *.cancel*.")
			return
		}
		if !wallet.DeductCoins(sender, rupeesToCoins(state.Amount)) {
			replyMessage(client, evt, "❌ Balance changed, not enough coins anymore.")
		} else {
			wallet.RecordWithdraw(sender, state.Amount, "requested to "+text)
			withdrawals.Add(WithdrawRequest{
				UserID:    sender,
				Amount:    state.Amount,
				UpiID:     text,
				Status:    "pending",
				Timestamp: time.Now().Unix(),
			})
			replyMessage(client, evt, fmt.Sprintf(
				"✅ *Withdrawal requested!*\n💰 ₹%.2f → %s\n⏳ Processed within 24 hours.", state.Amount, text))
			if cfg.AdminJID != "" {
				if adminJID, err := types.ParseJID(cfg.AdminJID); err == nil {
					sendTextTo(client, adminJID, fmt.Sprintf(
						"💸 *New withdrawal*\nUser: %s\nAmount: ₹%.2f\nUPI: %s\nApprove with *.paid %s*",
						sender, state.Amount, text, sender))
				}
			}
		}
		withdrawStateMutex.Lock()
		delete(withdrawStates, sender)
		withdrawStateMutex.Unlock()
	}
}

// maskJID hides the middle digits of a phone JID for public leaderboards.
func maskJID(jid string) string {
	user := jid
	if i := strings.IndexByte(jid, '@'); i > 0 {
		user = jid[:i]
	}
	if len(user) <= 5 {
		return user + "***"
	}
	return user[:3] + "****" + user[len(user)-2:]
}
