/**
 * @description
 * This file contains the core business logic for VPA-to-VPA transfers.
 * The `TransferService` orchestrates the full initiation pipeline:
 * address resolution, ownership and PIN checks, amount validation, the
 * atomic balance move, and the terminal status transition. It also
 * implements the query surface over the transfer ledger and publishes
 * lifecycle events to RabbitMQ.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: Transfer identifiers.
 * - github.com/shopspring/decimal: Exact amount arithmetic.
 * - golang.org/x/crypto/bcrypt: UPI PIN verification.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/upistack/upi-service/internal/domain"
	"github.com/upistack/upi-service/internal/store"
	"github.com/upistack/upi-service/pkg/rabbitmq"
	"golang.org/x/crypto/bcrypt"
)

const (
	referenceInsertAttempts = 5
	defaultRecentLimit      = 10
	stuckTransferAge        = 15 * time.Minute
)

// minTransferAmount is the smallest accepted transfer amount.
var minTransferAmount = decimal.NewFromInt(1)

// TransferService provides the core business logic for transfers.
type TransferService struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	rateLimiter   TransferRateLimiter
	eventExchange string
	rateLimit     int
	rateWindow    time.Duration
}

// NewTransferService creates a new transfer service instance.
func NewTransferService(repo store.Repository, producer rabbitmq.Publisher, limiter TransferRateLimiter, eventExchange string, rateLimit int, rateWindow time.Duration) *TransferService {
	return &TransferService{
		repo:          repo,
		eventProducer: producer,
		rateLimiter:   limiter,
		eventExchange: eventExchange,
		rateLimit:     rateLimit,
		rateWindow:    rateWindow,
	}
}

// InitiateTransfer runs a transfer end to end. The reference is retried
// on collision before any money moves; a failed balance move leaves a
// FAILED ledger row, and an insufficient pre-check balance leaves none.
func (s *TransferService) InitiateTransfer(ctx context.Context, userID uuid.UUID, req domain.InitiateTransferRequest) (*domain.Transfer, error) {
	log.Printf("level=info component=transfer msg=\"initiating\" user_id=%s sender=%s receiver=%s", userID, req.SenderVPA, req.ReceiverVPA)

	if s.rateLimiter != nil && s.rateLimit > 0 {
		count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, userID.String(), s.rateLimit, s.rateWindow)
		if err != nil {
			log.Printf("level=warn component=transfer msg=\"rate limiter unavailable\" user_id=%s err=%q", userID, err)
		} else if count > s.rateLimit {
			log.Printf("level=warn component=transfer msg=\"rate limited\" user_id=%s retry_after=%ds", userID, retryAfter)
			return nil, ErrRateLimited
		}
	}

	// 1. Resolve the sender VPA and confirm the caller owns it.
	senderAddress := strings.ToLower(strings.TrimSpace(req.SenderVPA))
	senderVPA, err := s.repo.FindVPAByAddress(ctx, senderAddress)
	if err != nil {
		return nil, err
	}
	if senderVPA.UserID != userID {
		return nil, ErrNotResourceOwner
	}
	if !senderVPA.Active {
		return nil, ErrVPAInactive
	}

	// 2. Validate the receiver address format and existence.
	receiverAddress := strings.ToLower(strings.TrimSpace(req.ReceiverVPA))
	if !domain.ValidVPAAddress(receiverAddress) {
		return nil, ErrReceiverInvalid
	}
	if receiverAddress == senderAddress {
		return nil, ErrSelfTransfer
	}
	receiverVPA, err := s.repo.FindVPAByAddress(ctx, receiverAddress)
	if err != nil {
		if errors.Is(err, store.ErrVPANotFound) {
			return nil, ErrReceiverInvalid
		}
		return nil, err
	}
	if !receiverVPA.Active {
		return nil, ErrReceiverInvalid
	}

	// 3. Resolve the sender account and verify the UPI PIN.
	senderAccount, err := s.repo.FindAccountByUserAndID(ctx, senderVPA.UserID, senderVPA.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sender account: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(senderAccount.PINHash), []byte(req.UPIPIN)) != nil {
		return nil, ErrInvalidPIN
	}

	// 4. Validate the amount and check funds before writing anything.
	if req.Amount.LessThan(minTransferAmount) {
		return nil, ErrInvalidAmount
	}
	if senderAccount.Balance.LessThan(req.Amount) {
		return nil, store.ErrInsufficientFunds
	}

	transferType := req.Type
	if transferType == "" {
		transferType = domain.TransferTypeP2P
	}
	if !domain.ValidTransferType(transferType) {
		return nil, ErrInvalidTransferType
	}

	// 5. Record the transfer as INITIATED, retrying on reference collision.
	transfer := &domain.Transfer{
		ID:              uuid.New(),
		SenderAddress:   senderAddress,
		ReceiverAddress: receiverAddress,
		Amount:          req.Amount,
		Description:     req.Description,
		Type:            transferType,
		Status:          domain.TransferStatusInitiated,
	}
	if err := s.insertWithFreshReference(ctx, transfer); err != nil {
		return nil, err
	}

	// 6. Move the money. Any failure here marks the ledger row FAILED.
	if err := s.repo.TransferBalances(ctx, senderAccount.ID, receiverVPA.AccountID, req.Amount); err != nil {
		reason := err.Error()
		if failErr := s.repo.FailTransfer(ctx, transfer.ID, reason); failErr != nil {
			log.Printf("level=error component=transfer msg=\"fail transition failed\" reference=%s err=%q", transfer.Reference, failErr)
		}
		transfer.Status = domain.TransferStatusFailed
		transfer.FailureReason = &reason
		s.publishEvent(ctx, rabbitmq.RouteTransferFailed, transfer)
		log.Printf("level=warn component=transfer msg=\"transfer failed\" reference=%s reason=%q", transfer.Reference, reason)
		return nil, err
	}

	// 7. Stamp completion.
	completedAt := time.Now()
	if err := s.repo.CompleteTransfer(ctx, transfer.ID, completedAt); err != nil {
		return nil, fmt.Errorf("failed to complete transfer %s: %w", transfer.Reference, err)
	}
	transfer.Status = domain.TransferStatusCompleted
	transfer.CompletedAt = &completedAt
	s.publishEvent(ctx, rabbitmq.RouteTransferCompleted, transfer)
	log.Printf("level=info component=transfer msg=\"transfer completed\" reference=%s amount=%s", transfer.Reference, transfer.Amount)
	return transfer, nil
}

func (s *TransferService) insertWithFreshReference(ctx context.Context, transfer *domain.Transfer) error {
	for attempt := 0; attempt < referenceInsertAttempts; attempt++ {
		reference, err := NewTransactionReference()
		if err != nil {
			return err
		}
		transfer.Reference = reference
		err = s.repo.CreateTransfer(ctx, transfer)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrReferenceTaken) {
			return err
		}
		log.Printf("level=warn component=transfer msg=\"reference collision\" reference=%s attempt=%d", reference, attempt+1)
	}
	return fmt.Errorf("could not allocate a unique transaction reference after %d attempts", referenceInsertAttempts)
}

func (s *TransferService) publishEvent(ctx context.Context, routingKey string, transfer *domain.Transfer) {
	if s.eventProducer == nil {
		return
	}
	event := rabbitmq.TransferEvent{
		TransferID:      transfer.ID,
		Reference:       transfer.Reference,
		SenderAddress:   transfer.SenderAddress,
		ReceiverAddress: transfer.ReceiverAddress,
		Amount:          transfer.Amount.String(),
		Status:          string(transfer.Status),
		Timestamp:       time.Now(),
	}
	if transfer.FailureReason != nil {
		event.FailureReason = *transfer.FailureReason
	}
	if err := s.eventProducer.Publish(ctx, s.eventExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=transfer msg=\"event publish failed\" reference=%s routing_key=%s err=%q", transfer.Reference, routingKey, err)
	}
}

// GetByReference retrieves a transfer visible to the caller. A caller
// may see a transfer only when one of their own addresses appears on it.
func (s *TransferService) GetByReference(ctx context.Context, userID uuid.UUID, reference string) (*domain.Transfer, error) {
	transfer, err := s.repo.FindTransferByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	addresses, err := s.userAddresses(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, addr := range addresses {
		if addr == transfer.SenderAddress || addr == transfer.ReceiverAddress {
			return transfer, nil
		}
	}
	return nil, ErrNotResourceOwner
}

// TransferDirection selects which side of the ledger a history query
// matches against.
type TransferDirection string

const (
	DirectionAll      TransferDirection = "all"
	DirectionSent     TransferDirection = "sent"
	DirectionReceived TransferDirection = "received"
)

// ListTransfers returns the caller's transfer history across all of
// their addresses, filtered by direction, paginated, and sorted.
func (s *TransferService) ListTransfers(ctx context.Context, userID uuid.UUID, direction TransferDirection, sortBy domain.TransferSortKey, ascending bool, limit, offset int) ([]domain.Transfer, error) {
	addresses, err := s.userAddresses(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return []domain.Transfer{}, nil
	}

	query := domain.TransferQuery{
		Limit:     limit,
		Offset:    offset,
		SortBy:    sortBy,
		Ascending: ascending,
	}
	switch direction {
	case DirectionSent:
		query.SentBy = addresses
	case DirectionReceived:
		query.ReceivedBy = addresses
	default:
		query.SentBy = addresses
		query.ReceivedBy = addresses
	}
	return s.repo.ListTransfers(ctx, query)
}

// ListRecent returns the caller's most recent transfers in either
// direction, newest first.
func (s *TransferService) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transfer, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return s.ListTransfers(ctx, userID, DirectionAll, domain.TransferSortCreatedAt, false, limit, 0)
}

// ListForAddress returns the history of one specific address owned by
// the caller.
func (s *TransferService) ListForAddress(ctx context.Context, userID uuid.UUID, address string, limit, offset int) ([]domain.Transfer, error) {
	normalized := strings.ToLower(strings.TrimSpace(address))
	vpa, err := s.repo.FindVPAByAddress(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if vpa.UserID != userID {
		return nil, ErrNotResourceOwner
	}
	return s.repo.ListTransfers(ctx, domain.TransferQuery{
		SentBy:     []string{normalized},
		ReceivedBy: []string{normalized},
		Limit:      limit,
		Offset:     offset,
		SortBy:     domain.TransferSortCreatedAt,
	})
}

// MarkReversed moves the money back and flips a completed transfer to
// REVERSED as one unit. If the refund cannot be applied the transfer stays
// COMPLETED and the call can be retried. Reserved for operational
// correction paths.
func (s *TransferService) MarkReversed(ctx context.Context, reference string) (*domain.Transfer, error) {
	transfer, err := s.repo.FindTransferByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	senderVPA, err := s.repo.FindVPAByAddress(ctx, transfer.SenderAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sender for reversal of %s: %w", reference, err)
	}
	receiverVPA, err := s.repo.FindVPAByAddress(ctx, transfer.ReceiverAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve receiver for reversal of %s: %w", reference, err)
	}
	if err := s.repo.ReverseTransfer(ctx, transfer.ID, receiverVPA.AccountID, senderVPA.AccountID, transfer.Amount); err != nil {
		return nil, err
	}

	transfer.Status = domain.TransferStatusReversed
	s.publishEvent(ctx, rabbitmq.RouteTransferReversed, transfer)
	log.Printf("level=info component=transfer msg=\"transfer reversed\" reference=%s", reference)
	return transfer, nil
}

// ListStuck returns transfers still INITIATED past the stuck-age cutoff.
// These indicate a crash between ledger insert and balance move and are
// surfaced for reconciliation only.
func (s *TransferService) ListStuck(ctx context.Context) ([]domain.Transfer, error) {
	return s.repo.ListStuckTransfers(ctx, time.Now().Add(-stuckTransferAge))
}

func (s *TransferService) userAddresses(ctx context.Context, userID uuid.UUID) ([]string, error) {
	vpas, err := s.repo.FindVPAsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	addresses := make([]string, 0, len(vpas))
	for _, v := range vpas {
		addresses = append(addresses, v.Address)
	}
	return addresses, nil
}
