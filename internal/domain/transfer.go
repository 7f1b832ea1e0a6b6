/**
 * @description
 * This file defines the transfer domain model: the append-only ledger
 * record for one money movement attempt between two VPAs, keyed by a
 * globally unique reference code.
 *
 * @notes
 * - Sender and receiver addresses are denormalized copies so that a
 *   transfer's history survives VPA deletion.
 * - A transfer never mutates after reaching a terminal status, except the
 *   single completed-at write at the COMPLETED transition and the
 *   out-of-band COMPLETED -> REVERSED flip.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferType enumerates the supported transfer kinds.
type TransferType string

const (
	TransferTypeP2P         TransferType = "P2P"
	TransferTypeP2M         TransferType = "P2M"
	TransferTypeBillPayment TransferType = "BILL_PAYMENT"
	TransferTypeRefund      TransferType = "REFUND"
)

// ValidTransferType reports whether t is one of the supported kinds.
func ValidTransferType(t TransferType) bool {
	switch t {
	case TransferTypeP2P, TransferTypeP2M, TransferTypeBillPayment, TransferTypeRefund:
		return true
	}
	return false
}

// TransferStatus enumerates the transfer state machine. PROCESSING is
// logical only: the work between the INITIATED insert and the terminal
// status write is never persisted as its own state.
type TransferStatus string

const (
	TransferStatusInitiated TransferStatus = "INITIATED"
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusFailed    TransferStatus = "FAILED"
	TransferStatusReversed  TransferStatus = "REVERSED"
)

// Transfer represents one money movement attempt. Maps to the
// `transfers` table.
type Transfer struct {
	ID              uuid.UUID       `json:"id"`
	Reference       string          `json:"reference"`
	SenderAddress   string          `json:"sender_address"`
	ReceiverAddress string          `json:"receiver_address"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Type            TransferType    `json:"type"`
	Status          TransferStatus  `json:"status"`
	FailureReason   *string         `json:"failure_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// InitiateTransferRequest is the DTO for starting a transfer.
type InitiateTransferRequest struct {
	SenderVPA   string          `json:"sender_vpa"`
	ReceiverVPA string          `json:"receiver_vpa"`
	Amount      decimal.Decimal `json:"amount"`
	UPIPIN      string          `json:"upi_pin"`
	Description string          `json:"description"`
	Type        TransferType    `json:"type"`
}

// TransferSortKey names a sortable transfer column.
type TransferSortKey string

const (
	TransferSortCreatedAt TransferSortKey = "created_at"
	TransferSortAmount    TransferSortKey = "amount"
)

// TransferQuery selects transfers by participant address sets. A transfer
// matches when its sender address is in SentBy or its receiver address is
// in ReceivedBy; an empty side is skipped. Results are sorted by SortBy
// (created-at descending when unset) and paged by Limit/Offset.
type TransferQuery struct {
	SentBy     []string
	ReceivedBy []string
	Limit      int
	Offset     int
	SortBy     TransferSortKey
	Ascending  bool
}
