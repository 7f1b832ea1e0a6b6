package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/upistack/upi-service/internal/domain"
	"github.com/upistack/upi-service/internal/store"
)

type recordedEvent struct {
	Exchange   string
	RoutingKey string
	Body       interface{}
}

type recordingPublisher struct {
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, exchange, routingKey string, body interface{}) error {
	p.events = append(p.events, recordedEvent{Exchange: exchange, RoutingKey: routingKey, Body: body})
	return nil
}

func (p *recordingPublisher) Close() {}

type fixedRateLimiter struct {
	count int
}

func (l *fixedRateLimiter) ConsumeRateLimit(_ context.Context, _ string, _ int, _ time.Duration) (int, int, error) {
	return l.count, 30, nil
}

type transferFixture struct {
	repo      *store.MemoryRepository
	accounts  *AccountService
	vpas      *VPAService
	transfers *TransferService
	publisher *recordingPublisher

	senderID        uuid.UUID
	receiverID      uuid.UUID
	senderAccount   uuid.UUID
	receiverAccount uuid.UUID
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()
	repo := store.NewMemoryRepository()
	publisher := &recordingPublisher{}
	accounts := NewAccountService(repo)
	vpas := NewVPAService(repo)
	transfers := NewTransferService(repo, publisher, nil, "transfer_events", 0, time.Minute)
	ctx := context.Background()

	f := &transferFixture{
		repo:       repo,
		accounts:   accounts,
		vpas:       vpas,
		transfers:  transfers,
		publisher:  publisher,
		senderID:   uuid.New(),
		receiverID: uuid.New(),
	}

	senderAccount, err := accounts.CreateAccount(ctx, f.senderID, newAccountRequest("11110000"))
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	receiverAccount, err := accounts.CreateAccount(ctx, f.receiverID, newAccountRequest("22220000"))
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	f.senderAccount = senderAccount.ID
	f.receiverAccount = receiverAccount.ID

	for _, step := range []struct {
		user    uuid.UUID
		account uuid.UUID
		name    string
	}{
		{f.senderID, senderAccount.ID, "sender"},
		{f.receiverID, receiverAccount.ID, "receiver"},
	} {
		if err := accounts.VerifyAccount(ctx, step.user, step.account); err != nil {
			t.Fatalf("VerifyAccount returned error: %v", err)
		}
		if _, err := vpas.CreateVPA(ctx, step.user, domain.CreateVPARequest{
			AccountID: step.account,
			Username:  step.name,
			Handle:    "upi",
		}); err != nil {
			t.Fatalf("CreateVPA returned error: %v", err)
		}
	}

	return f
}

func (f *transferFixture) balance(t *testing.T, userID, accountID uuid.UUID) decimal.Decimal {
	t.Helper()
	account, err := f.repo.FindAccountByUserAndID(context.Background(), userID, accountID)
	if err != nil {
		t.Fatalf("FindAccountByUserAndID returned error: %v", err)
	}
	return account.Balance
}

func transferRequest(amount int64) domain.InitiateTransferRequest {
	return domain.InitiateTransferRequest{
		SenderVPA:   "sender@upi",
		ReceiverVPA: "receiver@upi",
		Amount:      decimal.NewFromInt(amount),
		UPIPIN:      "4321",
		Description: "lunch",
	}
}

func TestInitiateTransferHappyPath(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	transfer, err := f.transfers.InitiateTransfer(ctx, f.senderID, transferRequest(250))
	if err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}

	if transfer.Status != domain.TransferStatusCompleted {
		t.Fatalf("expected status COMPLETED, got %s", transfer.Status)
	}
	if transfer.CompletedAt == nil {
		t.Fatal("expected completed_at to be stamped")
	}
	if !referenceFormat.MatchString(transfer.Reference) {
		t.Fatalf("unexpected reference format %q", transfer.Reference)
	}
	if transfer.Type != domain.TransferTypeP2P {
		t.Fatalf("expected default type P2P, got %s", transfer.Type)
	}

	senderBalance := f.balance(t, f.senderID, f.senderAccount)
	receiverBalance := f.balance(t, f.receiverID, f.receiverAccount)
	if !senderBalance.Equal(decimal.NewFromInt(9750)) {
		t.Fatalf("expected sender balance 9750, got %s", senderBalance)
	}
	if !receiverBalance.Equal(decimal.NewFromInt(10250)) {
		t.Fatalf("expected receiver balance 10250, got %s", receiverBalance)
	}
	if total := senderBalance.Add(receiverBalance); !total.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("expected money conserved at 20000, got %s", total)
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(f.publisher.events))
	}
	if f.publisher.events[0].RoutingKey != "transfer.completed" {
		t.Fatalf("expected transfer.completed event, got %s", f.publisher.events[0].RoutingKey)
	}
}

func TestInitiateTransferAmountEqualToBalance(t *testing.T) {
	f := newTransferFixture(t)

	transfer, err := f.transfers.InitiateTransfer(context.Background(), f.senderID, transferRequest(10000))
	if err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}
	if transfer.Status != domain.TransferStatusCompleted {
		t.Fatalf("expected status COMPLETED, got %s", transfer.Status)
	}
	if !f.balance(t, f.senderID, f.senderAccount).IsZero() {
		t.Fatalf("expected sender drained to zero, got %s", f.balance(t, f.senderID, f.senderAccount))
	}
}

func TestInitiateTransferInsufficientFundsLeavesNoLedgerRow(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	_, err := f.transfers.InitiateTransfer(ctx, f.senderID, transferRequest(10001))
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The pre-check fails before any ledger write, so history stays empty.
	history, err := f.transfers.ListTransfers(ctx, f.senderID, DirectionAll, domain.TransferSortCreatedAt, false, 10, 0)
	if err != nil {
		t.Fatalf("ListTransfers returned error: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d rows", len(history))
	}
	if !f.balance(t, f.senderID, f.senderAccount).Equal(decimal.NewFromInt(10000)) {
		t.Fatal("expected sender balance untouched")
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("expected no events, got %d", len(f.publisher.events))
	}
}

func TestInitiateTransferValidation(t *testing.T) {
	f := newTransferFixture(t)

	tests := []struct {
		name    string
		mutate  func(*domain.InitiateTransferRequest)
		wantErr error
	}{
		{
			name:    "amount below minimum",
			mutate:  func(r *domain.InitiateTransferRequest) { r.Amount = decimal.NewFromFloat(0.99) },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "wrong pin",
			mutate:  func(r *domain.InitiateTransferRequest) { r.UPIPIN = "9999" },
			wantErr: ErrInvalidPIN,
		},
		{
			name:    "unknown receiver",
			mutate:  func(r *domain.InitiateTransferRequest) { r.ReceiverVPA = "ghost@upi" },
			wantErr: ErrReceiverInvalid,
		},
		{
			name:    "malformed receiver",
			mutate:  func(r *domain.InitiateTransferRequest) { r.ReceiverVPA = "bad@@address" },
			wantErr: ErrReceiverInvalid,
		},
		{
			name:    "self transfer",
			mutate:  func(r *domain.InitiateTransferRequest) { r.ReceiverVPA = "sender@upi" },
			wantErr: ErrSelfTransfer,
		},
		{
			name:    "unknown transfer type",
			mutate:  func(r *domain.InitiateTransferRequest) { r.Type = "WIRE" },
			wantErr: ErrInvalidTransferType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := transferRequest(100)
			tt.mutate(&req)
			if _, err := f.transfers.InitiateTransfer(context.Background(), f.senderID, req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestInitiateTransferRejectsForeignSenderVPA(t *testing.T) {
	f := newTransferFixture(t)

	// The receiver attempts to spend from the sender's VPA.
	_, err := f.transfers.InitiateTransfer(context.Background(), f.receiverID, transferRequest(100))
	if !errors.Is(err, ErrNotResourceOwner) {
		t.Fatalf("expected ErrNotResourceOwner, got %v", err)
	}
}

func TestInitiateTransferRateLimited(t *testing.T) {
	f := newTransferFixture(t)
	limited := NewTransferService(f.repo, f.publisher, &fixedRateLimiter{count: 31}, "transfer_events", 30, time.Minute)

	_, err := limited.InitiateTransfer(context.Background(), f.senderID, transferRequest(100))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestGetByReferenceVisibility(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	transfer, err := f.transfers.InitiateTransfer(ctx, f.senderID, transferRequest(100))
	if err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}

	// Both participants can retrieve the transfer by reference.
	for _, userID := range []uuid.UUID{f.senderID, f.receiverID} {
		got, err := f.transfers.GetByReference(ctx, userID, transfer.Reference)
		if err != nil {
			t.Fatalf("GetByReference returned error for participant: %v", err)
		}
		if got.Reference != transfer.Reference {
			t.Fatalf("expected reference %s, got %s", transfer.Reference, got.Reference)
		}
	}

	// A third party cannot.
	if _, err := f.transfers.GetByReference(ctx, uuid.New(), transfer.Reference); !errors.Is(err, ErrNotResourceOwner) {
		t.Fatalf("expected ErrNotResourceOwner for third party, got %v", err)
	}

	if _, err := f.transfers.GetByReference(ctx, f.senderID, "UPI0000000000000000"); !errors.Is(err, store.ErrTransferNotFound) {
		t.Fatalf("expected ErrTransferNotFound, got %v", err)
	}
}

func TestListTransfersDirections(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	if _, err := f.transfers.InitiateTransfer(ctx, f.senderID, transferRequest(100)); err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}
	if _, err := f.transfers.InitiateTransfer(ctx, f.senderID, transferRequest(200)); err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}

	sent, err := f.transfers.ListTransfers(ctx, f.senderID, DirectionSent, domain.TransferSortCreatedAt, false, 10, 0)
	if err != nil {
		t.Fatalf("ListTransfers returned error: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("expected 2 sent transfers, got %d", len(sent))
	}

	received, err := f.transfers.ListTransfers(ctx, f.senderID, DirectionReceived, domain.TransferSortCreatedAt, false, 10, 0)
	if err != nil {
		t.Fatalf("ListTransfers returned error: %v", err)
	}
	if len(received) != 0 {
		t.Fatalf("expected 0 received transfers for sender, got %d", len(received))
	}

	receiverSide, err := f.transfers.ListTransfers(ctx, f.receiverID, DirectionReceived, domain.TransferSortCreatedAt, false, 10, 0)
	if err != nil {
		t.Fatalf("ListTransfers returned error: %v", err)
	}
	if len(receiverSide) != 2 {
		t.Fatalf("expected 2 received transfers for receiver, got %d", len(receiverSide))
	}

	byAmount, err := f.transfers.ListTransfers(ctx, f.senderID, DirectionAll, domain.TransferSortAmount, true, 10, 0)
	if err != nil {
		t.Fatalf("ListTransfers returned error: %v", err)
	}
	if len(byAmount) != 2 || !byAmount[0].Amount.LessThan(byAmount[1].Amount) {
		t.Fatal("expected ascending sort by amount")
	}
}

func TestListForAddressRequiresOwnership(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	if _, err := f.transfers.InitiateTransfer(ctx, f.senderID, transferRequest(100)); err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}

	history, err := f.transfers.ListForAddress(ctx, f.senderID, "sender@upi", 10, 0)
	if err != nil {
		t.Fatalf("ListForAddress returned error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(history))
	}

	if _, err := f.transfers.ListForAddress(ctx, f.senderID, "receiver@upi", 10, 0); !errors.Is(err, ErrNotResourceOwner) {
		t.Fatalf("expected ErrNotResourceOwner, got %v", err)
	}
}

func TestMarkReversedReturnsFunds(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	transfer, err := f.transfers.InitiateTransfer(ctx, f.senderID, transferRequest(500))
	if err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}

	reversed, err := f.transfers.MarkReversed(ctx, transfer.Reference)
	if err != nil {
		t.Fatalf("MarkReversed returned error: %v", err)
	}
	if reversed.Status != domain.TransferStatusReversed {
		t.Fatalf("expected status REVERSED, got %s", reversed.Status)
	}

	if !f.balance(t, f.senderID, f.senderAccount).Equal(decimal.NewFromInt(10000)) {
		t.Fatal("expected sender balance restored after reversal")
	}
	if !f.balance(t, f.receiverID, f.receiverAccount).Equal(decimal.NewFromInt(10000)) {
		t.Fatal("expected receiver balance restored after reversal")
	}

	// A transfer can only be reversed once.
	if _, err := f.transfers.MarkReversed(ctx, transfer.Reference); !errors.Is(err, store.ErrTransferNotCompleted) {
		t.Fatalf("expected ErrTransferNotCompleted on second reversal, got %v", err)
	}
}

func TestMarkReversedKeepsStatusWhenRefundFails(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	transfer, err := f.transfers.InitiateTransfer(ctx, f.senderID, transferRequest(500))
	if err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}

	// Drain the receiver below the refund amount before reversing.
	if err := f.repo.TransferBalances(ctx, f.receiverAccount, f.senderAccount, decimal.NewFromInt(10200)); err != nil {
		t.Fatalf("TransferBalances returned error: %v", err)
	}

	if _, err := f.transfers.MarkReversed(ctx, transfer.Reference); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	stored, err := f.repo.FindTransferByReference(ctx, transfer.Reference)
	if err != nil {
		t.Fatalf("FindTransferByReference returned error: %v", err)
	}
	if stored.Status != domain.TransferStatusCompleted {
		t.Fatalf("expected status to stay %s after rejected refund, got %s", domain.TransferStatusCompleted, stored.Status)
	}
	if !f.balance(t, f.receiverID, f.receiverAccount).Equal(decimal.NewFromInt(300)) {
		t.Fatal("expected receiver balance untouched by rejected refund")
	}

	// Once the receiver can cover the refund, the retry completes it.
	if err := f.repo.TransferBalances(ctx, f.senderAccount, f.receiverAccount, decimal.NewFromInt(10200)); err != nil {
		t.Fatalf("TransferBalances returned error: %v", err)
	}
	reversed, err := f.transfers.MarkReversed(ctx, transfer.Reference)
	if err != nil {
		t.Fatalf("MarkReversed retry returned error: %v", err)
	}
	if reversed.Status != domain.TransferStatusReversed {
		t.Fatalf("expected status REVERSED, got %s", reversed.Status)
	}
	if !f.balance(t, f.senderID, f.senderAccount).Equal(decimal.NewFromInt(10000)) {
		t.Fatal("expected sender balance restored after reversal")
	}
	if !f.balance(t, f.receiverID, f.receiverAccount).Equal(decimal.NewFromInt(10000)) {
		t.Fatal("expected receiver balance restored after reversal")
	}
}

func TestListStuckIgnoresFreshAndTerminalRows(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	if _, err := f.transfers.InitiateTransfer(ctx, f.senderID, transferRequest(100)); err != nil {
		t.Fatalf("InitiateTransfer returned error: %v", err)
	}

	stuck, err := f.transfers.ListStuck(ctx)
	if err != nil {
		t.Fatalf("ListStuck returned error: %v", err)
	}
	if len(stuck) != 0 {
		t.Fatalf("expected no stuck transfers, got %d", len(stuck))
	}
}
