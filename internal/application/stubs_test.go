package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

func sequence(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// ----------------------------------------------------------------------------

type userRepositoryStub struct {
	mu    sync.Mutex
	users map[string]UserCredentials

	createErr error
	getErr    error
}

func newUserRepositoryStub(seed ...UserCredentials) *userRepositoryStub {
	repo := &userRepositoryStub{users: make(map[string]UserCredentials)}
	for _, creds := range seed {
		creds.User.HasPassword = creds.PasswordHash != ""
		repo.users[creds.User.ID] = creds
	}
	return repo
}

func (r *userRepositoryStub) CreateUser(ctx context.Context, creds UserCredentials) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return User{}, r.createErr
	}
	for _, existing := range r.users {
		if existing.User.Email == creds.User.Email || existing.User.Name == creds.User.Name {
			return User{}, ErrAlreadyExists
		}
	}
	creds.User.HasPassword = creds.PasswordHash != ""
	r.users[creds.User.ID] = creds
	return creds.User, nil
}

func (r *userRepositoryStub) GetUser(ctx context.Context, id string) (User, error) {
	creds, err := r.GetCredentials(ctx, id)
	return creds.User, err
}

func (r *userRepositoryStub) GetCredentials(ctx context.Context, id string) (UserCredentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return UserCredentials{}, r.getErr
	}
	creds, ok := r.users[id]
	if !ok {
		return UserCredentials{}, ErrNotFound
	}
	return creds, nil
}

func (r *userRepositoryStub) find(match func(UserCredentials) bool) (UserCredentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return UserCredentials{}, r.getErr
	}
	for _, creds := range r.users {
		if match(creds) {
			return creds, nil
		}
	}
	return UserCredentials{}, ErrNotFound
}

func (r *userRepositoryStub) GetCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	return r.find(func(c UserCredentials) bool { return c.User.Email == email })
}

func (r *userRepositoryStub) GetUserByName(ctx context.Context, name string) (User, error) {
	creds, err := r.find(func(c UserCredentials) bool { return c.User.Name == name })
	return creds.User, err
}

func (r *userRepositoryStub) GetUserByProvider(ctx context.Context, provider, providerID string) (User, error) {
	creds, err := r.find(func(c UserCredentials) bool {
		switch provider {
		case "google":
			return c.User.GoogleID == providerID
		case "github":
			return c.User.GithubID == providerID
		}
		return false
	})
	return creds.User, err
}

func (r *userRepositoryStub) UpdateUser(ctx context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.users[user.ID]
	if !ok {
		return User{}, ErrNotFound
	}
	user.HasPassword = creds.PasswordHash != ""
	user.Role = creds.User.Role
	creds.User = user
	r.users[user.ID] = creds
	return user, nil
}

func (r *userRepositoryStub) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	creds.PasswordHash = hash
	creds.RefreshTokenHash = ""
	creds.User.HasPassword = true
	creds.User.UpdatedAt = at
	r.users[id] = creds
	return nil
}

func (r *userRepositoryStub) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	creds.RefreshTokenHash = hash
	r.users[id] = creds
	return nil
}

func (r *userRepositoryStub) ClearRefreshTokenByHash(ctx context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, creds := range r.users {
		if creds.RefreshTokenHash == hash {
			creds.RefreshTokenHash = ""
			r.users[id] = creds
			return nil
		}
	}
	return ErrNotFound
}

func (r *userRepositoryStub) UpdateRole(ctx context.Context, id string, from, to Role, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	if creds.User.Role != from {
		return ErrConflict
	}
	creds.User.Role = to
	creds.User.UpdatedAt = at
	r.users[id] = creds
	return nil
}

func (r *userRepositoryStub) AddBookmark(ctx context.Context, userID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	for _, id := range creds.User.Bookmarks {
		if id == eventID {
			return nil
		}
	}
	creds.User.Bookmarks = append(creds.User.Bookmarks, eventID)
	r.users[userID] = creds
	return nil
}

func (r *userRepositoryStub) RemoveBookmark(ctx context.Context, userID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	kept := creds.User.Bookmarks[:0]
	for _, id := range creds.User.Bookmarks {
		if id != eventID {
			kept = append(kept, id)
		}
	}
	creds.User.Bookmarks = kept
	r.users[userID] = creds
	return nil
}

func (r *userRepositoryStub) ListUsers(ctx context.Context, offset, limit int) ([]User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]User, 0, len(r.users))
	for _, creds := range r.users {
		users = append(users, creds.User)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	total := int64(len(users))
	return window(users, offset, limit), total, nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// ----------------------------------------------------------------------------

type pendingUserRepositoryStub struct {
	mu      sync.Mutex
	pending map[string]PendingUser
	deleted []string
}

func newPendingUserRepositoryStub() *pendingUserRepositoryStub {
	return &pendingUserRepositoryStub{pending: make(map[string]PendingUser)}
}

func (r *pendingUserRepositoryStub) UpsertPendingUser(ctx context.Context, pending PendingUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[pending.Email] = pending
	return nil
}

func (r *pendingUserRepositoryStub) GetPendingUser(ctx context.Context, email string) (PendingUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending, ok := r.pending[email]
	if !ok {
		return PendingUser{}, ErrNotFound
	}
	return pending, nil
}

func (r *pendingUserRepositoryStub) DeletePendingUser(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, email)
	if _, ok := r.pending[email]; !ok {
		return ErrNotFound
	}
	delete(r.pending, email)
	return nil
}

// ----------------------------------------------------------------------------

type otpRepositoryStub struct {
	mu   sync.Mutex
	otps map[string]OTP
}

func newOTPRepositoryStub() *otpRepositoryStub {
	return &otpRepositoryStub{otps: make(map[string]OTP)}
}

func (r *otpRepositoryStub) CreateOTP(ctx context.Context, otp OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.otps[otp.ID] = otp
	return nil
}

func (r *otpRepositoryStub) LatestOTP(ctx context.Context, email string, purpose OTPPurpose) (OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		latest OTP
		found  bool
	)
	for _, otp := range r.otps {
		if otp.Email != email || otp.Purpose != purpose {
			continue
		}
		if !found || otp.CreatedAt.After(latest.CreatedAt) {
			latest, found = otp, true
		}
	}
	if !found {
		return OTP{}, ErrNotFound
	}
	return latest, nil
}

func (r *otpRepositoryStub) DeleteOTPs(ctx context.Context, email string, purpose OTPPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, otp := range r.otps {
		if otp.Email == email && otp.Purpose == purpose {
			delete(r.otps, id)
		}
	}
	return nil
}

func (r *otpRepositoryStub) ConsumeOTP(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.otps[id]; !ok {
		return ErrNotFound
	}
	delete(r.otps, id)
	return nil
}

func (r *otpRepositoryStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.otps)
}

// ----------------------------------------------------------------------------

type eventRepositoryStub struct {
	mu        sync.Mutex
	events    map[string]Event
	updateErr error
	deleted   []string
}

func newEventRepositoryStub(seed ...Event) *eventRepositoryStub {
	repo := &eventRepositoryStub{events: make(map[string]Event)}
	for _, event := range seed {
		repo.events[event.ID] = event
	}
	return repo
}

func (r *eventRepositoryStub) CreateEvent(ctx context.Context, event Event) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = event
	return event, nil
}

func (r *eventRepositoryStub) GetEvent(ctx context.Context, id string) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return event, nil
}

func (r *eventRepositoryStub) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return Event{}, r.updateErr
	}
	if _, ok := r.events[event.ID]; !ok {
		return Event{}, ErrNotFound
	}
	r.events[event.ID] = event
	return event, nil
}

func (r *eventRepositoryStub) DeleteEvent(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return ErrNotFound
	}
	delete(r.events, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *eventRepositoryStub) ListEvents(ctx context.Context, filter EventFilter, offset, limit int) ([]Event, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, event := range r.events {
		if filter.Published != nil && event.IsPublished != *filter.Published {
			continue
		}
		if filter.OrganizerID != "" && event.OrganizerID != filter.OrganizerID {
			continue
		}
		if filter.Category != "" && event.Category != filter.Category {
			continue
		}
		if filter.City != "" && !strings.EqualFold(event.City, filter.City) {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(event.Title), strings.ToLower(filter.Query)) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return window(out, offset, limit), int64(len(out)), nil
}

// ----------------------------------------------------------------------------

type ticketRepositoryStub struct {
	mu        sync.Mutex
	tickets   map[string]Ticket
	createErr error
	creates   int
}

func newTicketRepositoryStub(seed ...Ticket) *ticketRepositoryStub {
	repo := &ticketRepositoryStub{tickets: make(map[string]Ticket)}
	for _, ticket := range seed {
		repo.tickets[ticket.ID] = ticket
	}
	return repo
}

func (r *ticketRepositoryStub) CreateTickets(ctx context.Context, tickets []Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, ticket := range tickets {
		if _, ok := r.tickets[ticket.ID]; ok {
			return ErrAlreadyExists
		}
	}
	r.creates++
	for _, ticket := range tickets {
		r.tickets[ticket.ID] = ticket
	}
	return nil
}

func (r *ticketRepositoryStub) GetTicket(ctx context.Context, id string) (Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return ticket, nil
}

func (r *ticketRepositoryStub) GetTicketByCode(ctx context.Context, eventID, code string) (Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.EventID == eventID && ticket.Code == code {
			return ticket, nil
		}
	}
	return Ticket{}, ErrNotFound
}

func (r *ticketRepositoryStub) ListTicketsByOwner(ctx context.Context, ownerID string) ([]Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Ticket
	for _, ticket := range r.tickets {
		if ticket.OwnerID == ownerID {
			out = append(out, ticket)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ticketRepositoryStub) CountTicketsByEvent(ctx context.Context, eventID string, statuses ...TicketStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, ticket := range r.tickets {
		if ticket.EventID != eventID {
			continue
		}
		for _, status := range statuses {
			if ticket.Status == status {
				n++
				break
			}
		}
	}
	return n, nil
}

func (r *ticketRepositoryStub) CountTicketsByTransaction(ctx context.Context, transactionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, ticket := range r.tickets {
		if ticket.TransactionID == transactionID {
			n++
		}
	}
	return n, nil
}

func (r *ticketRepositoryStub) TransitionTicket(ctx context.Context, id string, from, to TicketStatus, at time.Time) (Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	if ticket.Status != from {
		return Ticket{}, ErrConflict
	}
	ticket.Status = to
	if to == TicketUsed {
		ts := at
		ticket.CheckedInAt = &ts
	}
	r.tickets[id] = ticket
	return ticket, nil
}

func (r *ticketRepositoryStub) CancelTransactionTickets(ctx context.Context, transactionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, ticket := range r.tickets {
		if ticket.TransactionID == transactionID && ticket.Status == TicketValid {
			ticket.Status = TicketCancelled
			r.tickets[id] = ticket
			n++
		}
	}
	return n, nil
}

func (r *ticketRepositoryStub) byTransaction(transactionID string) []Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Ticket
	for _, ticket := range r.tickets {
		if ticket.TransactionID == transactionID {
			out = append(out, ticket)
		}
	}
	return out
}

// ----------------------------------------------------------------------------

type checkInRepositoryStub struct {
	mu       sync.Mutex
	checkIns []CheckIn
}

func (r *checkInRepositoryStub) CreateCheckIn(ctx context.Context, checkIn CheckIn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkIns = append(r.checkIns, checkIn)
	return nil
}

func (r *checkInRepositoryStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.checkIns)
}

// ----------------------------------------------------------------------------

type transactionRepositoryStub struct {
	mu  sync.Mutex
	txs map[string]Transaction
}

func newTransactionRepositoryStub(seed ...Transaction) *transactionRepositoryStub {
	repo := &transactionRepositoryStub{txs: make(map[string]Transaction)}
	for _, tx := range seed {
		repo.txs[tx.PaymentIntentID] = tx
	}
	return repo
}

func (r *transactionRepositoryStub) CreateTransaction(ctx context.Context, tx Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txs[tx.PaymentIntentID]; ok {
		return ErrAlreadyExists
	}
	r.txs[tx.PaymentIntentID] = tx
	return nil
}

func (r *transactionRepositoryStub) GetTransactionByIntent(ctx context.Context, intentID string) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[intentID]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (r *transactionRepositoryStub) MarkRefunded(ctx context.Context, intentID string, at time.Time) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[intentID]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.Status != TransactionSuccess {
		return Transaction{}, ErrConflict
	}
	tx.Status = TransactionRefunded
	ts := at
	tx.RefundedAt = &ts
	r.txs[intentID] = tx
	return tx, nil
}

func (r *transactionRepositoryStub) ListTransactions(ctx context.Context, offset, limit int) ([]Transaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transaction, 0, len(r.txs))
	for _, tx := range r.txs {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return window(out, offset, limit), int64(len(out)), nil
}

func (r *transactionRepositoryStub) SumTransactions(ctx context.Context, eventID string, status TransactionStatus) (TransactionTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var totals TransactionTotals
	for _, tx := range r.txs {
		if (eventID != "" && tx.EventID != eventID) || tx.Status != status {
			continue
		}
		totals.Count++
		totals.Gross += tx.Amount
		totals.PlatformFees += tx.PlatformFee
		totals.OrganizerShare += tx.OrganizerShare
	}
	return totals, nil
}

func (r *transactionRepositoryStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txs)
}

// ----------------------------------------------------------------------------

type payoutRepositoryStub struct{ payouts []Payout }

func (r *payoutRepositoryStub) CreatePayout(ctx context.Context, payout Payout) error {
	r.payouts = append(r.payouts, payout)
	return nil
}

type subscriptionRepositoryStub struct{ subscriptions []Subscription }

func (r *subscriptionRepositoryStub) CreateSubscription(ctx context.Context, sub Subscription) error {
	r.subscriptions = append(r.subscriptions, sub)
	return nil
}

type analyticsRepositoryStub struct {
	mu   sync.Mutex
	rows []AnalyticsEvent
}

func (r *analyticsRepositoryStub) RecordAnalytics(ctx context.Context, row AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
	return nil
}

func (r *analyticsRepositoryStub) CountAnalytics(ctx context.Context, eventID string, kind AnalyticsKind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.EventID == eventID && row.Kind == kind {
			n++
		}
	}
	return n, nil
}

// ----------------------------------------------------------------------------

type tokenIssuerStub struct {
	mu      sync.Mutex
	issued  int
	refresh map[string]string
}

func newTokenIssuerStub() *tokenIssuerStub {
	return &tokenIssuerStub{refresh: make(map[string]string)}
}

func (t *tokenIssuerStub) IssueAccessToken(userID, role string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issued++
	return fmt.Sprintf("access:%s:%s:%d", userID, role, t.issued), nil
}

func (t *tokenIssuerStub) IssueRefreshToken(userID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issued++
	token := fmt.Sprintf("refresh:%s:%d", userID, t.issued)
	t.refresh[token] = userID
	return token, nil
}

func (t *tokenIssuerStub) VerifyRefreshToken(token string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	userID, ok := t.refresh[token]
	if !ok {
		return "", errors.New("token signature is invalid")
	}
	return userID, nil
}

type sentOTP struct {
	To      string
	Code    string
	Purpose OTPPurpose
}

type mailerStub struct {
	mu   sync.Mutex
	sent []sentOTP
	err  error
}

func (m *mailerStub) SendOTP(ctx context.Context, to, code string, purpose OTPPurpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentOTP{To: to, Code: code, Purpose: purpose})
	return nil
}

func (m *mailerStub) last() sentOTP {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentOTP{}
	}
	return m.sent[len(m.sent)-1]
}

type imageStoreStub struct {
	uploads   int
	deleted   []string
	uploadErr error
}

func (s *imageStoreStub) Upload(ctx context.Context, upload Upload) (Image, error) {
	if s.uploadErr != nil {
		return Image{}, s.uploadErr
	}
	s.uploads++
	id := fmt.Sprintf("img-%d", s.uploads)
	return Image{URL: "https://cdn.example.com/" + id + ".png", PublicID: id}, nil
}

func (s *imageStoreStub) Delete(ctx context.Context, publicID string) error {
	s.deleted = append(s.deleted, publicID)
	return nil
}

type gatewayStub struct {
	mu        sync.Mutex
	intents   []PaymentIntentRequest
	createErr error
	events    map[string]WebhookEvent
}

func (g *gatewayStub) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return PaymentIntent{}, g.createErr
	}
	g.intents = append(g.intents, req)
	id := fmt.Sprintf("pi_%d", len(g.intents))
	return PaymentIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

// ParseWebhook looks the payload up by its raw bytes so tests can register events by name.
func (g *gatewayStub) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if signature == "bad" {
		return WebhookEvent{}, errors.New("signature mismatch")
	}
	event, ok := g.events[string(payload)]
	if !ok {
		return WebhookEvent{}, fmt.Errorf("%w: unknown payload", ErrInvalidWebhook)
	}
	return event, nil
}

type broadcasterStub struct {
	mu            sync.Mutex
	notifications []Notification
}

func (b *broadcasterStub) Publish(ctx context.Context, n Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = append(b.notifications, n)
	return nil
}

func (b *broadcasterStub) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.notifications))
	for _, n := range b.notifications {
		out = append(out, n.Type)
	}
	return out
}

type invalidatorStub struct {
	mu     sync.Mutex
	events []string
}

func (i *invalidatorStub) Invalidate(eventID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, eventID)
}

type qrEncoderStub struct{}

func (qrEncoderStub) EncodePNG(content string) ([]byte, error) {
	return append([]byte("PNG:"), content...), nil
}

// plainHasher keeps tests fast by skipping key derivation.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Verify(encoded, password string) error {
	if encoded != "plain:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

type plainCodeHasher struct{}

func (plainCodeHasher) Hash(code string) (string, error) { return "code:" + code, nil }

func (plainCodeHasher) Compare(hash, code string) error {
	if hash != "code:"+code {
		return ErrOTPInvalid
	}
	return nil
}
