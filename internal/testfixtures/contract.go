package testfixtures

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/spotevents/spot/internal/persistence"
)

// OpenRepositories returns an empty, ready-to-use repository bundle.
type OpenRepositories func(t *testing.T) persistence.Repositories

// RunRepositoryContract checks the behaviour every storage backend must share.
// Each subtest receives a fresh bundle from open.
func RunRepositoryContract(t *testing.T, open OpenRepositories) {
	t.Helper()

	t.Run("users", func(t *testing.T) { userContract(t, open(t)) })
	t.Run("verification", func(t *testing.T) { verificationContract(t, open(t)) })
	t.Run("events", func(t *testing.T) { eventContract(t, open(t)) })
	t.Run("tickets", func(t *testing.T) { ticketContract(t, open(t)) })
	t.Run("transactions", func(t *testing.T) { transactionContract(t, open(t)) })
	t.Run("records", func(t *testing.T) { recordContract(t, open(t)) })
}

func expectErr(t *testing.T, err, want error, op string) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("%s: expected %v, got %v", op, want, err)
	}
}

func must(t *testing.T, err error, op string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s failed: %v", op, err)
	}
}

func userContract(t *testing.T, repos persistence.Repositories) {
	ctx := context.Background()
	users := repos.Users
	base := ReferenceTime()

	ada := NewUserFixture(WithUserName("ada"), WithUserEmail("Ada@Example.com"), WithUserCreatedAt(base)).Persistence()
	ada.Interests = []string{"jazz", "tech"}
	ada.Location = &persistence.GeoPoint{Lat: 38.72, Lng: -9.14}
	must(t, users.CreateUser(ctx, ada), "CreateUser")

	grace := NewUserFixture(WithUserName("grace"), WithUserCreatedAt(base.Add(time.Hour))).Persistence()
	grace.GoogleID = "g-123"
	must(t, users.CreateUser(ctx, grace), "CreateUser second")

	fetched, err := users.GetUserByEmail(ctx, "ADA@example.com")
	must(t, err, "GetUserByEmail")
	if fetched.ID != ada.ID || fetched.Email != "ada@example.com" || fetched.PasswordHash != ada.PasswordHash {
		t.Fatalf("unexpected user %#v", fetched)
	}
	if !slices.Equal(fetched.Interests, []string{"jazz", "tech"}) || fetched.Location == nil || fetched.Location.Lat != 38.72 {
		t.Fatalf("profile fields not stored: %#v", fetched)
	}
	if !fetched.CreatedAt.Equal(base) {
		t.Fatalf("expected created_at %v, got %v", base, fetched.CreatedAt)
	}

	if got, err := users.GetUserByName(ctx, "grace"); err != nil || got.ID != grace.ID {
		t.Fatalf("GetUserByName: %#v, %v", got, err)
	}
	if got, err := users.GetUserByProvider(ctx, "google", "g-123"); err != nil || got.ID != grace.ID {
		t.Fatalf("GetUserByProvider: %#v, %v", got, err)
	}
	_, err = users.GetUserByProvider(ctx, "github", "g-123")
	expectErr(t, err, persistence.ErrNotFound, "GetUserByProvider other provider")
	_, err = users.GetUser(ctx, "missing")
	expectErr(t, err, persistence.ErrNotFound, "GetUser missing")

	dupEmail := NewUserFixture(WithUserEmail("ada@example.com")).Persistence()
	expectErr(t, users.CreateUser(ctx, dupEmail), persistence.ErrDuplicate, "CreateUser duplicate email")
	dupName := NewUserFixture(WithUserName("ada")).Persistence()
	expectErr(t, users.CreateUser(ctx, dupName), persistence.ErrDuplicate, "CreateUser duplicate name")
	dupGoogle := NewUserFixture().Persistence()
	dupGoogle.GoogleID = "g-123"
	expectErr(t, users.CreateUser(ctx, dupGoogle), persistence.ErrDuplicate, "CreateUser duplicate google id")

	// Profile updates leave role, password and refresh token alone.
	must(t, users.SetRefreshTokenHash(ctx, ada.ID, "refresh-1"), "SetRefreshTokenHash")
	update := fetched
	update.Name = "ada-l"
	update.Role = "admin"
	update.PasswordHash = "ignored"
	update.IsPremium = true
	update.UpdatedAt = base.Add(2 * time.Hour)
	must(t, users.UpdateProfile(ctx, update), "UpdateProfile")
	fetched, err = users.GetUser(ctx, ada.ID)
	must(t, err, "GetUser")
	if fetched.Name != "ada-l" || !fetched.IsPremium || fetched.Role != "user" ||
		fetched.PasswordHash != ada.PasswordHash || fetched.RefreshTokenHash != "refresh-1" {
		t.Fatalf("unexpected profile update result %#v", fetched)
	}
	update.Name = "grace"
	expectErr(t, users.UpdateProfile(ctx, update), persistence.ErrDuplicate, "UpdateProfile taken name")
	missing := update
	missing.ID = "missing"
	missing.Name = "nobody"
	missing.Email = "nobody@example.com"
	expectErr(t, users.UpdateProfile(ctx, missing), persistence.ErrNotFound, "UpdateProfile missing")

	must(t, users.ClearRefreshTokenByHash(ctx, "refresh-1"), "ClearRefreshTokenByHash")
	expectErr(t, users.ClearRefreshTokenByHash(ctx, "refresh-1"), persistence.ErrNotFound, "ClearRefreshTokenByHash twice")

	must(t, users.SetRefreshTokenHash(ctx, ada.ID, "refresh-2"), "SetRefreshTokenHash")
	must(t, users.UpdatePassword(ctx, ada.ID, "new-hash", base.Add(3*time.Hour)), "UpdatePassword")
	fetched, _ = users.GetUser(ctx, ada.ID)
	if fetched.PasswordHash != "new-hash" || fetched.RefreshTokenHash != "" {
		t.Fatalf("expected new password and revoked refresh token, got %#v", fetched)
	}
	expectErr(t, users.UpdatePassword(ctx, "missing", "x", base), persistence.ErrNotFound, "UpdatePassword missing")

	must(t, users.UpdateRole(ctx, ada.ID, "user", "organizer", base.Add(4*time.Hour)), "UpdateRole")
	expectErr(t, users.UpdateRole(ctx, ada.ID, "user", "organizer", base), persistence.ErrConflict, "UpdateRole stale")
	expectErr(t, users.UpdateRole(ctx, "missing", "user", "organizer", base), persistence.ErrNotFound, "UpdateRole missing")

	must(t, users.AddBookmark(ctx, ada.ID, "event-a"), "AddBookmark")
	must(t, users.AddBookmark(ctx, ada.ID, "event-b"), "AddBookmark")
	must(t, users.AddBookmark(ctx, ada.ID, "event-a"), "AddBookmark repeat")
	fetched, _ = users.GetUser(ctx, ada.ID)
	if !slices.Equal(fetched.Bookmarks, []string{"event-a", "event-b"}) {
		t.Fatalf("unexpected bookmarks %v", fetched.Bookmarks)
	}
	must(t, users.RemoveBookmark(ctx, ada.ID, "event-a"), "RemoveBookmark")
	must(t, users.RemoveBookmark(ctx, ada.ID, "event-a"), "RemoveBookmark repeat")
	fetched, _ = users.GetUser(ctx, ada.ID)
	if !slices.Equal(fetched.Bookmarks, []string{"event-b"}) {
		t.Fatalf("unexpected bookmarks after removal %v", fetched.Bookmarks)
	}

	list, total, err := users.ListUsers(ctx, 0, 1)
	must(t, err, "ListUsers")
	if total != 2 || len(list) != 1 || list[0].ID != grace.ID {
		t.Fatalf("expected newest user first with total 2, got %d %#v", total, list)
	}
	list, _, _ = users.ListUsers(ctx, 5, 10)
	if len(list) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(list))
	}
}

func verificationContract(t *testing.T, repos persistence.Repositories) {
	ctx := context.Background()
	base := ReferenceTime()

	pending := persistence.PendingUser{
		Email: "new@example.com", Name: "newbie", PasswordHash: "h1", Role: "user",
		Interests: []string{"art"}, CreatedAt: base, ExpiresAt: base.Add(10 * time.Minute),
	}
	must(t, repos.PendingUsers.UpsertPendingUser(ctx, pending), "UpsertPendingUser")
	pending.Name = "newbie2"
	pending.PasswordHash = "h2"
	must(t, repos.PendingUsers.UpsertPendingUser(ctx, pending), "UpsertPendingUser replace")

	got, err := repos.PendingUsers.GetPendingUser(ctx, "NEW@example.com")
	must(t, err, "GetPendingUser")
	if got.Name != "newbie2" || got.PasswordHash != "h2" || !got.ExpiresAt.Equal(base.Add(10*time.Minute)) ||
		!slices.Equal(got.Interests, []string{"art"}) {
		t.Fatalf("unexpected pending user %#v", got)
	}
	must(t, repos.PendingUsers.DeletePendingUser(ctx, "new@example.com"), "DeletePendingUser")
	_, err = repos.PendingUsers.GetPendingUser(ctx, "new@example.com")
	expectErr(t, err, persistence.ErrNotFound, "GetPendingUser after delete")
	must(t, repos.PendingUsers.DeletePendingUser(ctx, "new@example.com"), "DeletePendingUser repeat")

	otps := repos.OTPs
	for i, id := range []string{"otp-1", "otp-2"} {
		must(t, otps.CreateOTP(ctx, persistence.OTP{
			ID: id, Email: "new@example.com", Purpose: "signup", CodeHash: "hash-" + id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute), ExpiresAt: base.Add(time.Hour),
		}), "CreateOTP")
	}
	must(t, otps.CreateOTP(ctx, persistence.OTP{
		ID: "otp-3", Email: "new@example.com", Purpose: "forgot-password", CodeHash: "hash-otp-3",
		CreatedAt: base.Add(5 * time.Minute), ExpiresAt: base.Add(time.Hour),
	}), "CreateOTP other purpose")

	latest, err := otps.LatestOTP(ctx, "new@example.com", "signup")
	must(t, err, "LatestOTP")
	if latest.ID != "otp-2" || latest.CodeHash != "hash-otp-2" {
		t.Fatalf("expected newest signup code, got %#v", latest)
	}

	must(t, otps.ConsumeOTP(ctx, "otp-2"), "ConsumeOTP")
	expectErr(t, otps.ConsumeOTP(ctx, "otp-2"), persistence.ErrNotFound, "ConsumeOTP twice")

	must(t, otps.DeleteOTPs(ctx, "new@example.com", "signup"), "DeleteOTPs")
	_, err = otps.LatestOTP(ctx, "new@example.com", "signup")
	expectErr(t, err, persistence.ErrNotFound, "LatestOTP after delete")
	if got, err := otps.LatestOTP(ctx, "new@example.com", "forgot-password"); err != nil || got.ID != "otp-3" {
		t.Fatalf("expected other purpose to survive, got %#v, %v", got, err)
	}
}

func eventContract(t *testing.T, repos persistence.Repositories) {
	ctx := context.Background()
	events := repos.Events
	base := ReferenceTime()

	jazz := NewEventFixture(WithEventTitle("Late Night Jazz"), WithEventCity("Lisbon"), WithEventStart(base.Add(48*time.Hour))).Persistence()
	jazz.Location = &persistence.GeoPoint{Lat: 38.7, Lng: -9.1}
	jazz.ImageURL = "https://img.example/jazz.png"
	jazz.ImagePublicID = "spot/jazz"
	rock := NewEventFixture(WithEventTitle("Rock Night"), WithEventCity("Porto"), WithEventStart(base.Add(72*time.Hour))).Persistence()
	talk := NewEventFixture(WithEventTitle("Go Talk"), WithEventCategory("tech"), WithEventOrganizer("organizer-002"),
		WithEventStart(base.Add(24*time.Hour))).Persistence()
	draft := NewEventFixture(WithEventTitle("Draft Night"), WithEventPublished(false), WithEventStart(base.Add(96*time.Hour))).Persistence()
	for _, e := range []persistence.Event{jazz, rock, talk, draft} {
		must(t, events.CreateEvent(ctx, e), "CreateEvent")
	}

	got, err := events.GetEvent(ctx, jazz.ID)
	must(t, err, "GetEvent")
	if got.Title != jazz.Title || got.ImagePublicID != "spot/jazz" || got.Location == nil ||
		!got.StartDate.Equal(jazz.StartDate) || got.Price != jazz.Price || got.Capacity != jazz.Capacity {
		t.Fatalf("unexpected event %#v", got)
	}

	published := true
	cases := []struct {
		name   string
		filter persistence.EventFilter
		want   []string
	}{
		{"published by start desc", persistence.EventFilter{Published: &published}, []string{rock.ID, jazz.ID, talk.ID}},
		{"all", persistence.EventFilter{}, []string{draft.ID, rock.ID, jazz.ID, talk.ID}},
		{"category", persistence.EventFilter{Category: "tech"}, []string{talk.ID}},
		{"city ignores case", persistence.EventFilter{City: "lisbon", Published: &published}, []string{jazz.ID, talk.ID}},
		{"title substring", persistence.EventFilter{Query: "NIGHT", Published: &published}, []string{rock.ID, jazz.ID}},
		{"organizer", persistence.EventFilter{OrganizerID: "organizer-002"}, []string{talk.ID}},
	}
	for _, tc := range cases {
		list, total, err := events.ListEvents(ctx, tc.filter, 0, 10)
		must(t, err, "ListEvents "+tc.name)
		ids := make([]string, len(list))
		for i, e := range list {
			ids[i] = e.ID
		}
		if !slices.Equal(ids, tc.want) || total != int64(len(tc.want)) {
			t.Fatalf("%s: expected %v, got %v (total %d)", tc.name, tc.want, ids, total)
		}
	}

	page, total, err := events.ListEvents(ctx, persistence.EventFilter{Published: &published}, 1, 1)
	must(t, err, "ListEvents page")
	if total != 3 || len(page) != 1 || page[0].ID != jazz.ID {
		t.Fatalf("unexpected second page %v total %d", page, total)
	}

	got.Title = "Later Jazz"
	got.Capacity = 10
	got.ImageURL = ""
	got.ImagePublicID = ""
	got.UpdatedAt = base.Add(time.Hour)
	must(t, events.UpdateEvent(ctx, got), "UpdateEvent")
	updated, _ := events.GetEvent(ctx, jazz.ID)
	if updated.Title != "Later Jazz" || updated.Capacity != 10 || updated.ImageURL != "" || updated.OrganizerID != jazz.OrganizerID {
		t.Fatalf("unexpected updated event %#v", updated)
	}
	ghost := got
	ghost.ID = "missing"
	expectErr(t, events.UpdateEvent(ctx, ghost), persistence.ErrNotFound, "UpdateEvent missing")

	must(t, events.DeleteEvent(ctx, jazz.ID), "DeleteEvent")
	_, err = events.GetEvent(ctx, jazz.ID)
	expectErr(t, err, persistence.ErrNotFound, "GetEvent after delete")
	expectErr(t, events.DeleteEvent(ctx, jazz.ID), persistence.ErrNotFound, "DeleteEvent twice")
}

func ticketContract(t *testing.T, repos persistence.Repositories) {
	ctx := context.Background()
	tickets := repos.Tickets
	base := ReferenceTime()

	first := NewTicketFixture(WithTicketEvent("event-1"), WithTicketOwner("owner-1"), WithTicketTransaction("tx-1"),
		WithTicketCreatedAt(base)).Persistence()
	second := NewTicketFixture(WithTicketEvent("event-1"), WithTicketOwner("owner-1"), WithTicketTransaction("tx-1"),
		WithTicketCreatedAt(base.Add(time.Minute))).Persistence()
	other := NewTicketFixture(WithTicketEvent("event-2"), WithTicketOwner("owner-2"), WithTicketTransaction("tx-2"),
		WithTicketCreatedAt(base)).Persistence()
	must(t, tickets.CreateTickets(ctx, []persistence.Ticket{first, second}), "CreateTickets")
	must(t, tickets.CreateTickets(ctx, []persistence.Ticket{other}), "CreateTickets other")
	must(t, tickets.CreateTickets(ctx, nil), "CreateTickets empty")

	dupCode := NewTicketFixture(WithTicketEvent("event-1")).Persistence()
	dupCode.Code = first.Code
	expectErr(t, tickets.CreateTickets(ctx, []persistence.Ticket{dupCode}), persistence.ErrDuplicate, "CreateTickets duplicate code")

	got, err := tickets.GetTicketByCode(ctx, "event-1", first.Code)
	must(t, err, "GetTicketByCode")
	if got.ID != first.ID || got.QRPayload != first.QRPayload || got.CheckedInAt != nil {
		t.Fatalf("unexpected ticket %#v", got)
	}
	_, err = tickets.GetTicketByCode(ctx, "event-2", first.Code)
	expectErr(t, err, persistence.ErrNotFound, "GetTicketByCode other event")

	owned, err := tickets.ListTicketsByOwner(ctx, "owner-1")
	must(t, err, "ListTicketsByOwner")
	if len(owned) != 2 || owned[0].ID != second.ID || owned[1].ID != first.ID {
		t.Fatalf("expected newest first, got %#v", owned)
	}

	scanAt := base.Add(time.Hour)
	used, err := tickets.TransitionTicket(ctx, first.ID, "valid", "used", scanAt)
	must(t, err, "TransitionTicket")
	if used.Status != "used" || used.CheckedInAt == nil || !used.CheckedInAt.Equal(scanAt) {
		t.Fatalf("unexpected transitioned ticket %#v", used)
	}
	_, err = tickets.TransitionTicket(ctx, first.ID, "valid", "used", scanAt)
	expectErr(t, err, persistence.ErrConflict, "TransitionTicket twice")
	_, err = tickets.TransitionTicket(ctx, "missing", "valid", "used", scanAt)
	expectErr(t, err, persistence.ErrNotFound, "TransitionTicket missing")

	if n, err := tickets.CountTicketsByEvent(ctx, "event-1", "valid", "used"); err != nil || n != 2 {
		t.Fatalf("CountTicketsByEvent valid+used: %d, %v", n, err)
	}
	if n, err := tickets.CountTicketsByEvent(ctx, "event-1", "used"); err != nil || n != 1 {
		t.Fatalf("CountTicketsByEvent used: %d, %v", n, err)
	}

	cancelled, err := tickets.CancelTransactionTickets(ctx, "tx-1")
	must(t, err, "CancelTransactionTickets")
	if cancelled != 1 {
		t.Fatalf("expected only the valid ticket to be cancelled, got %d", cancelled)
	}
	if again, _ := tickets.CancelTransactionTickets(ctx, "tx-1"); again != 0 {
		t.Fatalf("expected repeat cancel to change nothing, got %d", again)
	}
	stillUsed, _ := tickets.GetTicket(ctx, first.ID)
	if stillUsed.Status != "used" {
		t.Fatalf("used ticket must stay used, got %s", stillUsed.Status)
	}
	if n, _ := tickets.CountTicketsByTransaction(ctx, "tx-1"); n != 2 {
		t.Fatalf("expected 2 tickets for tx-1, got %d", n)
	}
	if n, _ := tickets.CountTicketsByEvent(ctx, "event-1", "valid", "used"); n != 1 {
		t.Fatalf("expected cancelled ticket to drop out of the count, got %d", n)
	}

	// Concurrent scans of one ticket admit exactly one.
	const scanners = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tickets.TransitionTicket(ctx, other.ID, "valid", "used", scanAt)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, persistence.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	if successes != 1 || conflicts != scanners-1 {
		t.Fatalf("expected one admission, got %d successes and %d conflicts", successes, conflicts)
	}

	must(t, repos.CheckIns.CreateCheckIn(ctx, persistence.CheckIn{
		ID: "checkin-1", EventID: "event-2", TicketID: other.ID, ScannedBy: "organizer-1", CheckedInAt: scanAt,
	}), "CreateCheckIn")
}

func transactionContract(t *testing.T, repos persistence.Repositories) {
	ctx := context.Background()
	txs := repos.Transactions
	base := ReferenceTime()

	first := NewTransactionFixture(WithTransactionEvent("event-1"), WithTransactionIntent("pi_a"), WithTransactionAmount(1000)).Persistence()
	second := NewTransactionFixture(WithTransactionEvent("event-1"), WithTransactionIntent("pi_b"), WithTransactionAmount(3000)).Persistence()
	third := NewTransactionFixture(WithTransactionEvent("event-2"), WithTransactionIntent("pi_c"), WithTransactionAmount(500)).Persistence()
	for _, tx := range []persistence.Transaction{first, second, third} {
		must(t, txs.CreateTransaction(ctx, tx), "CreateTransaction")
	}

	redelivered := first
	redelivered.ID = "tx-redelivered"
	expectErr(t, txs.CreateTransaction(ctx, redelivered), persistence.ErrDuplicate, "CreateTransaction duplicate intent")

	got, err := txs.GetTransactionByIntent(ctx, "pi_a")
	must(t, err, "GetTransactionByIntent")
	if got.ID != first.ID || got.PlatformFee != 50 || got.OrganizerShare != 950 || got.RefundedAt != nil {
		t.Fatalf("unexpected transaction %#v", got)
	}

	totals, err := txs.SumTransactions(ctx, "event-1", "success")
	must(t, err, "SumTransactions")
	if totals.Count != 2 || totals.Gross != 4000 || totals.PlatformFees != 200 || totals.OrganizerShare != 3800 {
		t.Fatalf("unexpected totals %#v", totals)
	}

	refundAt := base.Add(time.Hour)
	refunded, err := txs.MarkRefunded(ctx, "pi_b", refundAt)
	must(t, err, "MarkRefunded")
	if refunded.Status != "refunded" || refunded.RefundedAt == nil || !refunded.RefundedAt.Equal(refundAt) {
		t.Fatalf("unexpected refunded transaction %#v", refunded)
	}
	_, err = txs.MarkRefunded(ctx, "pi_b", refundAt)
	expectErr(t, err, persistence.ErrConflict, "MarkRefunded twice")
	_, err = txs.MarkRefunded(ctx, "pi_missing", refundAt)
	expectErr(t, err, persistence.ErrNotFound, "MarkRefunded missing")

	totals, _ = txs.SumTransactions(ctx, "", "success")
	if totals.Count != 2 || totals.Gross != 1500 {
		t.Fatalf("unexpected platform totals %#v", totals)
	}
	totals, _ = txs.SumTransactions(ctx, "event-9", "success")
	if totals != (persistence.TransactionTotals{}) {
		t.Fatalf("expected zero totals for unknown event, got %#v", totals)
	}

	list, total, err := txs.ListTransactions(ctx, 0, 2)
	must(t, err, "ListTransactions")
	if total != 3 || len(list) != 2 || list[0].ID != third.ID {
		t.Fatalf("expected newest transaction first, got %d %#v", total, list)
	}
}

func recordContract(t *testing.T, repos persistence.Repositories) {
	ctx := context.Background()
	base := ReferenceTime()

	must(t, repos.Payouts.CreatePayout(ctx, persistence.Payout{
		ID: "payout-1", OrganizerID: "organizer-1", Amount: 9500, Status: "pending", CreatedBy: "admin-1", CreatedAt: base,
	}), "CreatePayout")

	ends := base.Add(30 * 24 * time.Hour)
	must(t, repos.Subscriptions.CreateSubscription(ctx, persistence.Subscription{
		ID: "sub-1", UserID: "user-1", Plan: "premium", Status: "active", StartedAt: base, EndsAt: &ends,
	}), "CreateSubscription")

	for i, kind := range []string{"view", "view", "click", "checkin"} {
		must(t, repos.Analytics.RecordAnalytics(ctx, persistence.AnalyticsEvent{
			ID: "a-" + string(rune('a'+i)), EventID: "event-1", Kind: kind, CreatedAt: base,
		}), "RecordAnalytics")
	}
	if n, err := repos.Analytics.CountAnalytics(ctx, "event-1", "view"); err != nil || n != 2 {
		t.Fatalf("CountAnalytics view: %d, %v", n, err)
	}
	if n, err := repos.Analytics.CountAnalytics(ctx, "event-2", "view"); err != nil || n != 0 {
		t.Fatalf("CountAnalytics other event: %d, %v", n, err)
	}
}
