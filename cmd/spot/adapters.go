package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spotevents/spot/internal/application"
	"github.com/spotevents/spot/internal/persistence"
)

// mapErr translates storage sentinels into the errors services branch on.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w (%w)", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w (%w)", application.ErrAlreadyExists, err)
	case errors.Is(err, persistence.ErrConflict):
		return fmt.Errorf("%w (%w)", application.ErrConflict, err)
	default:
		return err
	}
}

// applicationRepositories exposes one storage backend through the
// application's repository ports.
type applicationRepositories struct {
	Users         *userRepositoryAdapter
	PendingUsers  *pendingUserRepositoryAdapter
	OTPs          *otpRepositoryAdapter
	Events        *eventRepositoryAdapter
	Tickets       *ticketRepositoryAdapter
	CheckIns      *checkInRepositoryAdapter
	Transactions  *transactionRepositoryAdapter
	Payouts       *payoutRepositoryAdapter
	Subscriptions *subscriptionRepositoryAdapter
	Analytics     *analyticsRepositoryAdapter
}

func newApplicationRepositories(repos persistence.Repositories) applicationRepositories {
	return applicationRepositories{
		Users:         &userRepositoryAdapter{repo: repos.Users},
		PendingUsers:  &pendingUserRepositoryAdapter{repo: repos.PendingUsers},
		OTPs:          &otpRepositoryAdapter{repo: repos.OTPs},
		Events:        &eventRepositoryAdapter{repo: repos.Events},
		Tickets:       &ticketRepositoryAdapter{repo: repos.Tickets},
		CheckIns:      &checkInRepositoryAdapter{repo: repos.CheckIns},
		Transactions:  &transactionRepositoryAdapter{repo: repos.Transactions},
		Payouts:       &payoutRepositoryAdapter{repo: repos.Payouts},
		Subscriptions: &subscriptionRepositoryAdapter{repo: repos.Subscriptions},
		Analytics:     &analyticsRepositoryAdapter{repo: repos.Analytics},
	}
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, creds application.UserCredentials) (application.User, error) {
	model := toPersistenceUser(creds.User)
	model.PasswordHash = creds.PasswordHash
	model.RefreshTokenHash = creds.RefreshTokenHash
	if err := a.repo.CreateUser(ctx, model); err != nil {
		return application.User{}, mapErr(err)
	}
	return a.GetUser(ctx, creds.User.ID)
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapErr(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetCredentials(ctx context.Context, id string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.UserCredentials{}, mapErr(err)
	}
	return toCredentials(stored), nil
}

func (a *userRepositoryAdapter) GetCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, mapErr(err)
	}
	return toCredentials(stored), nil
}

func (a *userRepositoryAdapter) GetUserByName(ctx context.Context, name string) (application.User, error) {
	stored, err := a.repo.GetUserByName(ctx, name)
	if err != nil {
		return application.User{}, mapErr(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserByProvider(ctx context.Context, provider, providerID string) (application.User, error) {
	stored, err := a.repo.GetUserByProvider(ctx, provider, providerID)
	if err != nil {
		return application.User{}, mapErr(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	if err := a.repo.UpdateProfile(ctx, toPersistenceUser(user)); err != nil {
		return application.User{}, mapErr(err)
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return mapErr(a.repo.UpdatePassword(ctx, id, passwordHash, updatedAt))
}

func (a *userRepositoryAdapter) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	return mapErr(a.repo.SetRefreshTokenHash(ctx, id, hash))
}

func (a *userRepositoryAdapter) ClearRefreshTokenByHash(ctx context.Context, hash string) error {
	return mapErr(a.repo.ClearRefreshTokenByHash(ctx, hash))
}

func (a *userRepositoryAdapter) UpdateRole(ctx context.Context, id string, from, to application.Role, updatedAt time.Time) error {
	return mapErr(a.repo.UpdateRole(ctx, id, string(from), string(to), updatedAt))
}

func (a *userRepositoryAdapter) AddBookmark(ctx context.Context, userID, eventID string) error {
	return mapErr(a.repo.AddBookmark(ctx, userID, eventID))
}

func (a *userRepositoryAdapter) RemoveBookmark(ctx context.Context, userID, eventID string) error {
	return mapErr(a.repo.RemoveBookmark(ctx, userID, eventID))
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context, offset, limit int) ([]application.User, int64, error) {
	models, total, err := a.repo.ListUsers(ctx, offset, limit)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, total, nil
}

type pendingUserRepositoryAdapter struct {
	repo persistence.PendingUserRepository
}

func (a *pendingUserRepositoryAdapter) UpsertPendingUser(ctx context.Context, pending application.PendingUser) error {
	return mapErr(a.repo.UpsertPendingUser(ctx, persistence.PendingUser{
		Email:        pending.Email,
		Name:         pending.Name,
		PasswordHash: pending.PasswordHash,
		Role:         string(pending.Role),
		Interests:    append([]string(nil), pending.Interests...),
		ImageURL:     pending.ImageURL,
		CreatedAt:    pending.CreatedAt,
		ExpiresAt:    pending.ExpiresAt,
	}))
}

func (a *pendingUserRepositoryAdapter) GetPendingUser(ctx context.Context, email string) (application.PendingUser, error) {
	stored, err := a.repo.GetPendingUser(ctx, email)
	if err != nil {
		return application.PendingUser{}, mapErr(err)
	}
	return application.PendingUser{
		Email:        stored.Email,
		Name:         stored.Name,
		PasswordHash: stored.PasswordHash,
		Role:         application.Role(stored.Role),
		Interests:    append([]string(nil), stored.Interests...),
		ImageURL:     stored.ImageURL,
		CreatedAt:    stored.CreatedAt,
		ExpiresAt:    stored.ExpiresAt,
	}, nil
}

func (a *pendingUserRepositoryAdapter) DeletePendingUser(ctx context.Context, email string) error {
	return mapErr(a.repo.DeletePendingUser(ctx, email))
}

type otpRepositoryAdapter struct {
	repo persistence.OTPRepository
}

func (a *otpRepositoryAdapter) CreateOTP(ctx context.Context, otp application.OTP) error {
	return mapErr(a.repo.CreateOTP(ctx, persistence.OTP{
		ID:        otp.ID,
		Email:     otp.Email,
		Purpose:   string(otp.Purpose),
		CodeHash:  otp.CodeHash,
		CreatedAt: otp.CreatedAt,
		ExpiresAt: otp.ExpiresAt,
	}))
}

func (a *otpRepositoryAdapter) LatestOTP(ctx context.Context, email string, purpose application.OTPPurpose) (application.OTP, error) {
	stored, err := a.repo.LatestOTP(ctx, email, string(purpose))
	if err != nil {
		return application.OTP{}, mapErr(err)
	}
	return application.OTP{
		ID:        stored.ID,
		Email:     stored.Email,
		Purpose:   application.OTPPurpose(stored.Purpose),
		CodeHash:  stored.CodeHash,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

func (a *otpRepositoryAdapter) DeleteOTPs(ctx context.Context, email string, purpose application.OTPPurpose) error {
	return mapErr(a.repo.DeleteOTPs(ctx, email, string(purpose)))
}

func (a *otpRepositoryAdapter) ConsumeOTP(ctx context.Context, id string) error {
	return mapErr(a.repo.ConsumeOTP(ctx, id))
}

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.CreateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, mapErr(err)
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, mapErr(err)
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, mapErr(err)
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) DeleteEvent(ctx context.Context, id string) error {
	return mapErr(a.repo.DeleteEvent(ctx, id))
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, filter application.EventFilter, offset, limit int) ([]application.Event, int64, error) {
	models, total, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		Category:    filter.Category,
		City:        filter.City,
		Query:       filter.Query,
		OrganizerID: filter.OrganizerID,
		Published:   filter.Published,
	}, offset, limit)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events, total, nil
}

type ticketRepositoryAdapter struct {
	repo persistence.TicketRepository
}

func (a *ticketRepositoryAdapter) CreateTickets(ctx context.Context, tickets []application.Ticket) error {
	models := make([]persistence.Ticket, 0, len(tickets))
	for _, t := range tickets {
		models = append(models, toPersistenceTicket(t))
	}
	return mapErr(a.repo.CreateTickets(ctx, models))
}

func (a *ticketRepositoryAdapter) GetTicket(ctx context.Context, id string) (application.Ticket, error) {
	stored, err := a.repo.GetTicket(ctx, id)
	if err != nil {
		return application.Ticket{}, mapErr(err)
	}
	return toApplicationTicket(stored), nil
}

func (a *ticketRepositoryAdapter) GetTicketByCode(ctx context.Context, eventID, code string) (application.Ticket, error) {
	stored, err := a.repo.GetTicketByCode(ctx, eventID, code)
	if err != nil {
		return application.Ticket{}, mapErr(err)
	}
	return toApplicationTicket(stored), nil
}

func (a *ticketRepositoryAdapter) ListTicketsByOwner(ctx context.Context, ownerID string) ([]application.Ticket, error) {
	models, err := a.repo.ListTicketsByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapErr(err)
	}
	tickets := make([]application.Ticket, 0, len(models))
	for _, model := range models {
		tickets = append(tickets, toApplicationTicket(model))
	}
	return tickets, nil
}

func (a *ticketRepositoryAdapter) CountTicketsByEvent(ctx context.Context, eventID string, statuses ...application.TicketStatus) (int64, error) {
	raw := make([]string, 0, len(statuses))
	for _, s := range statuses {
		raw = append(raw, string(s))
	}
	n, err := a.repo.CountTicketsByEvent(ctx, eventID, raw...)
	return n, mapErr(err)
}

func (a *ticketRepositoryAdapter) CountTicketsByTransaction(ctx context.Context, transactionID string) (int64, error) {
	n, err := a.repo.CountTicketsByTransaction(ctx, transactionID)
	return n, mapErr(err)
}

func (a *ticketRepositoryAdapter) TransitionTicket(ctx context.Context, id string, from, to application.TicketStatus, at time.Time) (application.Ticket, error) {
	stored, err := a.repo.TransitionTicket(ctx, id, string(from), string(to), at)
	if err != nil {
		return application.Ticket{}, mapErr(err)
	}
	return toApplicationTicket(stored), nil
}

func (a *ticketRepositoryAdapter) CancelTransactionTickets(ctx context.Context, transactionID string) (int64, error) {
	n, err := a.repo.CancelTransactionTickets(ctx, transactionID)
	return n, mapErr(err)
}

type checkInRepositoryAdapter struct {
	repo persistence.CheckInRepository
}

func (a *checkInRepositoryAdapter) CreateCheckIn(ctx context.Context, c application.CheckIn) error {
	return mapErr(a.repo.CreateCheckIn(ctx, persistence.CheckIn{
		ID:          c.ID,
		EventID:     c.EventID,
		TicketID:    c.TicketID,
		ScannedBy:   c.ScannedBy,
		Location:    c.Location,
		CheckedInAt: c.CheckedInAt,
	}))
}

type transactionRepositoryAdapter struct {
	repo persistence.TransactionRepository
}

func (a *transactionRepositoryAdapter) CreateTransaction(ctx context.Context, tx application.Transaction) error {
	return mapErr(a.repo.CreateTransaction(ctx, persistence.Transaction{
		ID:              tx.ID,
		PaymentIntentID: tx.PaymentIntentID,
		EventID:         tx.EventID,
		OrganizerID:     tx.OrganizerID,
		PayerID:         tx.PayerID,
		Quantity:        tx.Quantity,
		Amount:          tx.Amount,
		PlatformFee:     tx.PlatformFee,
		OrganizerShare:  tx.OrganizerShare,
		Currency:        tx.Currency,
		Status:          string(tx.Status),
		RefundedAt:      cloneTime(tx.RefundedAt),
		CreatedAt:       tx.CreatedAt,
	}))
}

func (a *transactionRepositoryAdapter) GetTransactionByIntent(ctx context.Context, paymentIntentID string) (application.Transaction, error) {
	stored, err := a.repo.GetTransactionByIntent(ctx, paymentIntentID)
	if err != nil {
		return application.Transaction{}, mapErr(err)
	}
	return toApplicationTransaction(stored), nil
}

func (a *transactionRepositoryAdapter) MarkRefunded(ctx context.Context, paymentIntentID string, at time.Time) (application.Transaction, error) {
	stored, err := a.repo.MarkRefunded(ctx, paymentIntentID, at)
	if err != nil {
		return application.Transaction{}, mapErr(err)
	}
	return toApplicationTransaction(stored), nil
}

func (a *transactionRepositoryAdapter) ListTransactions(ctx context.Context, offset, limit int) ([]application.Transaction, int64, error) {
	models, total, err := a.repo.ListTransactions(ctx, offset, limit)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	txs := make([]application.Transaction, 0, len(models))
	for _, model := range models {
		txs = append(txs, toApplicationTransaction(model))
	}
	return txs, total, nil
}

func (a *transactionRepositoryAdapter) SumTransactions(ctx context.Context, eventID string, status application.TransactionStatus) (application.TransactionTotals, error) {
	totals, err := a.repo.SumTransactions(ctx, eventID, string(status))
	if err != nil {
		return application.TransactionTotals{}, mapErr(err)
	}
	return application.TransactionTotals{
		Count:          totals.Count,
		Gross:          totals.Gross,
		PlatformFees:   totals.PlatformFees,
		OrganizerShare: totals.OrganizerShare,
	}, nil
}

type payoutRepositoryAdapter struct {
	repo persistence.PayoutRepository
}

func (a *payoutRepositoryAdapter) CreatePayout(ctx context.Context, payout application.Payout) error {
	return mapErr(a.repo.CreatePayout(ctx, persistence.Payout{
		ID:          payout.ID,
		OrganizerID: payout.OrganizerID,
		Amount:      payout.Amount,
		Status:      payout.Status,
		Note:        payout.Note,
		CreatedBy:   payout.CreatedBy,
		CreatedAt:   payout.CreatedAt,
	}))
}

type subscriptionRepositoryAdapter struct {
	repo persistence.SubscriptionRepository
}

func (a *subscriptionRepositoryAdapter) CreateSubscription(ctx context.Context, s application.Subscription) error {
	return mapErr(a.repo.CreateSubscription(ctx, persistence.Subscription{
		ID:        s.ID,
		UserID:    s.UserID,
		Plan:      s.Plan,
		Status:    s.Status,
		StartedAt: s.StartedAt,
		EndsAt:    cloneTime(s.EndsAt),
	}))
}

type analyticsRepositoryAdapter struct {
	repo persistence.AnalyticsRepository
}

func (a *analyticsRepositoryAdapter) RecordAnalytics(ctx context.Context, event application.AnalyticsEvent) error {
	return mapErr(a.repo.RecordAnalytics(ctx, persistence.AnalyticsEvent{
		ID:        event.ID,
		EventID:   event.EventID,
		Kind:      string(event.Kind),
		UserID:    event.UserID,
		CreatedAt: event.CreatedAt,
	}))
}

func (a *analyticsRepositoryAdapter) CountAnalytics(ctx context.Context, eventID string, kind application.AnalyticsKind) (int64, error) {
	n, err := a.repo.CountAnalytics(ctx, eventID, string(kind))
	return n, mapErr(err)
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Name:        model.Name,
		Email:       model.Email,
		Role:        application.Role(model.Role),
		IsPremium:   model.IsPremium,
		Interests:   append([]string(nil), model.Interests...),
		Location:    toApplicationPoint(model.Location),
		ImageURL:    model.ImageURL,
		Bookmarks:   append([]string(nil), model.Bookmarks...),
		GoogleID:    model.GoogleID,
		GithubID:    model.GithubID,
		HasPassword: model.PasswordHash != "",
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toCredentials(model persistence.User) application.UserCredentials {
	return application.UserCredentials{
		User:             toApplicationUser(model),
		PasswordHash:     model.PasswordHash,
		RefreshTokenHash: model.RefreshTokenHash,
	}
}

func toPersistenceUser(user application.User) persistence.User {
	return persistence.User{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
		IsPremium: user.IsPremium,
		Interests: append([]string(nil), user.Interests...),
		Location:  toPersistencePoint(user.Location),
		ImageURL:  user.ImageURL,
		Bookmarks: append([]string(nil), user.Bookmarks...),
		GoogleID:  user.GoogleID,
		GithubID:  user.GithubID,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func toApplicationEvent(model persistence.Event) application.Event {
	return application.Event{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		Category:    model.Category,
		City:        model.City,
		Location:    toApplicationPoint(model.Location),
		StartDate:   model.StartDate,
		EndDate:     model.EndDate,
		Image:       application.Image{URL: model.ImageURL, PublicID: model.ImagePublicID},
		Price:       model.Price,
		Capacity:    model.Capacity,
		OrganizerID: model.OrganizerID,
		IsPublished: model.IsPublished,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:            event.ID,
		Title:         event.Title,
		Description:   event.Description,
		Category:      event.Category,
		City:          event.City,
		Location:      toPersistencePoint(event.Location),
		StartDate:     event.StartDate,
		EndDate:       event.EndDate,
		ImageURL:      event.Image.URL,
		ImagePublicID: event.Image.PublicID,
		Price:         event.Price,
		Capacity:      event.Capacity,
		OrganizerID:   event.OrganizerID,
		IsPublished:   event.IsPublished,
		CreatedAt:     event.CreatedAt,
		UpdatedAt:     event.UpdatedAt,
	}
}

func toApplicationTicket(model persistence.Ticket) application.Ticket {
	return application.Ticket{
		ID:            model.ID,
		EventID:       model.EventID,
		OwnerID:       model.OwnerID,
		TransactionID: model.TransactionID,
		Code:          model.Code,
		QRPayload:     model.QRPayload,
		Status:        application.TicketStatus(model.Status),
		CheckedInAt:   cloneTime(model.CheckedInAt),
		CreatedAt:     model.CreatedAt,
	}
}

func toPersistenceTicket(ticket application.Ticket) persistence.Ticket {
	return persistence.Ticket{
		ID:            ticket.ID,
		EventID:       ticket.EventID,
		OwnerID:       ticket.OwnerID,
		TransactionID: ticket.TransactionID,
		Code:          ticket.Code,
		QRPayload:     ticket.QRPayload,
		Status:        string(ticket.Status),
		CheckedInAt:   cloneTime(ticket.CheckedInAt),
		CreatedAt:     ticket.CreatedAt,
	}
}

func toApplicationTransaction(model persistence.Transaction) application.Transaction {
	return application.Transaction{
		ID:              model.ID,
		PaymentIntentID: model.PaymentIntentID,
		EventID:         model.EventID,
		OrganizerID:     model.OrganizerID,
		PayerID:         model.PayerID,
		Quantity:        model.Quantity,
		Amount:          model.Amount,
		PlatformFee:     model.PlatformFee,
		OrganizerShare:  model.OrganizerShare,
		Currency:        model.Currency,
		Status:          application.TransactionStatus(model.Status),
		RefundedAt:      cloneTime(model.RefundedAt),
		CreatedAt:       model.CreatedAt,
	}
}

func toApplicationPoint(p *persistence.GeoPoint) *application.GeoPoint {
	if p == nil {
		return nil
	}
	return &application.GeoPoint{Lat: p.Lat, Lng: p.Lng}
}

func toPersistencePoint(p *application.GeoPoint) *persistence.GeoPoint {
	if p == nil {
		return nil
	}
	return &persistence.GeoPoint{Lat: p.Lat, Lng: p.Lng}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
