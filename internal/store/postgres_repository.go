/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. All single-primary work for a user is serialized on a
 * transaction-scoped advisory lock, the two-account balance move locks
 * both rows with `FOR UPDATE` in ascending id order, and uniqueness
 * (account pair, VPA address, transfer reference) relies on unique
 * indexes checked at insert time.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/upistack/upi-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const uniqueViolation = "23505"

// mapUniqueViolation translates a unique-index violation into the sentinel
// for the index it hit, so callers never need prior existence queries.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "account_number"):
		return ErrDuplicateBankAccount
	case strings.Contains(pgErr.ConstraintName, "address"):
		return ErrAddressTaken
	case strings.Contains(pgErr.ConstraintName, "reference"):
		return ErrReferenceTaken
	}
	return err
}

// lockUserRows serializes all primary-flag work for one user on a
// transaction-scoped advisory lock. Row locks alone cannot do this: a
// concurrent swap's statement snapshot misses rows that became primary
// after the statement started, and a user's first insert has no rows to
// lock at all.
func lockUserRows(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, userID.String())
	return err
}

const accountColumns = `id, user_id, bank_name, account_holder_name, account_number, ifsc_code,
       account_type, balance, upi_pin_hash, is_primary, is_verified, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID, &a.UserID, &a.BankName, &a.AccountHolderName, &a.AccountNumber, &a.IFSCCode,
		&a.AccountType, &a.Balance, &a.PINHash, &a.Primary, &a.Verified, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts a new account. When makePrimary is set, or the
// user owns no accounts yet, the user's current primary flag is cleared
// and the new row marked primary within the same transaction.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account, makePrimary bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockUserRows(ctx, tx, account.UserID); err != nil {
		return err
	}
	var owned int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE user_id = $1`, account.UserID).Scan(&owned); err != nil {
		return err
	}
	account.Primary = makePrimary || owned == 0
	if account.Primary {
		if _, err := tx.Exec(ctx, `UPDATE accounts SET is_primary = false, updated_at = NOW() WHERE user_id = $1 AND is_primary`, account.UserID); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO accounts (
			id, user_id, bank_name, account_holder_name, account_number, ifsc_code,
			account_type, balance, upi_pin_hash, is_primary, is_verified
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		account.ID,
		account.UserID,
		account.BankName,
		account.AccountHolderName,
		account.AccountNumber,
		account.IFSCCode,
		account.AccountType,
		account.Balance,
		account.PINHash,
		account.Primary,
		account.Verified,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return mapUniqueViolation(err)
	}

	return tx.Commit(ctx)
}

// FindAccountsByUser retrieves all accounts linked by a user.
func (r *PostgresRepository) FindAccountsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// FindAccountByUserAndID retrieves one account owned by a user.
func (r *PostgresRepository) FindAccountByUserAndID(ctx context.Context, userID, accountID uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 AND id = $2`, userID, accountID)
	return scanAccount(row)
}

// UpdateAccount persists mutable account fields, swapping the primary
// flag atomically when makePrimary is set.
func (r *PostgresRepository) UpdateAccount(ctx context.Context, account *domain.Account, makePrimary bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if makePrimary {
		if err := lockUserRows(ctx, tx, account.UserID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE accounts SET is_primary = false, updated_at = NOW() WHERE user_id = $1 AND is_primary AND id <> $2`, account.UserID, account.ID); err != nil {
			return err
		}
		account.Primary = true
	}

	query := `
		UPDATE accounts
		SET bank_name = $1, account_holder_name = $2, account_type = $3,
		    upi_pin_hash = $4, is_primary = $5, updated_at = NOW()
		WHERE user_id = $6 AND id = $7
		RETURNING updated_at
	`
	err = tx.QueryRow(ctx, query,
		account.BankName,
		account.AccountHolderName,
		account.AccountType,
		account.PINHash,
		account.Primary,
		account.UserID,
		account.ID,
	).Scan(&account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}

	return tx.Commit(ctx)
}

// DeleteAccount removes an account unless it is primary or still has VPAs
// bound to it. Both checks run inside the deleting transaction.
func (r *PostgresRepository) DeleteAccount(ctx context.Context, userID, accountID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var isPrimary bool
	err = tx.QueryRow(ctx, `SELECT is_primary FROM accounts WHERE user_id = $1 AND id = $2 FOR UPDATE`, userID, accountID).Scan(&isPrimary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}
	if isPrimary {
		return ErrAccountIsPrimary
	}

	var linked int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM vpas WHERE account_id = $1`, accountID).Scan(&linked); err != nil {
		return err
	}
	if linked > 0 {
		return ErrAccountHasVPAs
	}

	if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetPrimaryAccount clears the user's current primary account and sets
// the target as one transactional unit; no interleaving can observe zero
// or two primaries.
func (r *PostgresRepository) SetPrimaryAccount(ctx context.Context, userID, accountID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockUserRows(ctx, tx, userID); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE accounts
		SET is_primary = (id = $2), updated_at = NOW()
		WHERE user_id = $1 AND (is_primary OR id = $2)
	`, userID, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	// The target row itself must exist; the statement above also matches
	// when only the old primary was updated.
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1 AND id = $2)`, userID, accountID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}

	return tx.Commit(ctx)
}

// MarkAccountVerified flags an account as verified.
func (r *PostgresRepository) MarkAccountVerified(ctx context.Context, userID, accountID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET is_verified = true, updated_at = NOW() WHERE user_id = $1 AND id = $2`, userID, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// TransferBalances debits the sender and credits the receiver atomically.
// Both rows are locked in ascending id order so two opposite-direction
// transfers cannot deadlock each other.
func (r *PostgresRepository) TransferBalances(ctx context.Context, senderAccountID, receiverAccountID uuid.UUID, amount decimal.Decimal) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := moveBalance(ctx, tx, senderAccountID, receiverAccountID, amount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// moveBalance debits one account and credits another inside the given
// transaction, locking both rows in ascending id order.
func moveBalance(ctx context.Context, tx pgx.Tx, debitAccountID, creditAccountID uuid.UUID, amount decimal.Decimal) error {
	rows, err := tx.Query(ctx, `
		SELECT id, balance FROM accounts
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, []uuid.UUID{debitAccountID, creditAccountID})
	if err != nil {
		return err
	}

	balances := make(map[uuid.UUID]decimal.Decimal, 2)
	for rows.Next() {
		var id uuid.UUID
		var balance decimal.Decimal
		if err := rows.Scan(&id, &balance); err != nil {
			rows.Close()
			return err
		}
		balances[id] = balance
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	debitBalance, ok := balances[debitAccountID]
	if !ok {
		return ErrAccountNotFound
	}
	if _, ok := balances[creditAccountID]; !ok {
		return ErrAccountNotFound
	}

	if debitBalance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE id = $2`, amount, debitAccountID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2`, amount, creditAccountID); err != nil {
		return err
	}
	return nil
}

const vpaColumns = `id, user_id, account_id, address, is_primary, is_active, created_at, updated_at`

func scanVPA(row pgx.Row) (*domain.VPA, error) {
	var v domain.VPA
	err := row.Scan(&v.ID, &v.UserID, &v.AccountID, &v.Address, &v.Primary, &v.Active, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVPANotFound
		}
		return nil, err
	}
	return &v, nil
}

// CreateVPA inserts a new VPA; the unique index on address rejects
// duplicates anywhere in the store. Primary semantics mirror accounts.
func (r *PostgresRepository) CreateVPA(ctx context.Context, vpa *domain.VPA, makePrimary bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockUserRows(ctx, tx, vpa.UserID); err != nil {
		return err
	}
	var owned int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM vpas WHERE user_id = $1`, vpa.UserID).Scan(&owned); err != nil {
		return err
	}
	vpa.Primary = makePrimary || owned == 0
	if vpa.Primary {
		if _, err := tx.Exec(ctx, `UPDATE vpas SET is_primary = false, updated_at = NOW() WHERE user_id = $1 AND is_primary`, vpa.UserID); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO vpas (id, user_id, account_id, address, is_primary, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query, vpa.ID, vpa.UserID, vpa.AccountID, vpa.Address, vpa.Primary, vpa.Active).
		Scan(&vpa.CreatedAt, &vpa.UpdatedAt)
	if err != nil {
		return mapUniqueViolation(err)
	}

	return tx.Commit(ctx)
}

// FindVPAsByUser retrieves all VPAs registered by a user.
func (r *PostgresRepository) FindVPAsByUser(ctx context.Context, userID uuid.UUID) ([]domain.VPA, error) {
	return r.queryVPAs(ctx, `SELECT `+vpaColumns+` FROM vpas WHERE user_id = $1 ORDER BY created_at`, userID)
}

// FindVPAByUserAndID retrieves one VPA owned by a user.
func (r *PostgresRepository) FindVPAByUserAndID(ctx context.Context, userID, vpaID uuid.UUID) (*domain.VPA, error) {
	row := r.db.QueryRow(ctx, `SELECT `+vpaColumns+` FROM vpas WHERE user_id = $1 AND id = $2`, userID, vpaID)
	return scanVPA(row)
}

// FindVPAByAddress resolves a VPA by its globally unique address.
func (r *PostgresRepository) FindVPAByAddress(ctx context.Context, address string) (*domain.VPA, error) {
	row := r.db.QueryRow(ctx, `SELECT `+vpaColumns+` FROM vpas WHERE address = $1`, address)
	return scanVPA(row)
}

// FindVPAsByAccount retrieves the VPAs bound to one of the user's accounts.
func (r *PostgresRepository) FindVPAsByAccount(ctx context.Context, userID, accountID uuid.UUID) ([]domain.VPA, error) {
	return r.queryVPAs(ctx, `SELECT `+vpaColumns+` FROM vpas WHERE user_id = $1 AND account_id = $2 ORDER BY created_at`, userID, accountID)
}

func (r *PostgresRepository) queryVPAs(ctx context.Context, query string, args ...any) ([]domain.VPA, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vpas []domain.VPA
	for rows.Next() {
		v, err := scanVPA(rows)
		if err != nil {
			return nil, err
		}
		vpas = append(vpas, *v)
	}
	return vpas, rows.Err()
}

// UpdateVPA persists a re-pointed or renamed VPA. The address unique
// index re-checks uniqueness, excluding the row itself.
func (r *PostgresRepository) UpdateVPA(ctx context.Context, vpa *domain.VPA, makePrimary bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if makePrimary {
		if err := lockUserRows(ctx, tx, vpa.UserID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE vpas SET is_primary = false, updated_at = NOW() WHERE user_id = $1 AND is_primary AND id <> $2`, vpa.UserID, vpa.ID); err != nil {
			return err
		}
		vpa.Primary = true
	}

	query := `
		UPDATE vpas
		SET account_id = $1, address = $2, is_primary = $3, is_active = $4, updated_at = NOW()
		WHERE user_id = $5 AND id = $6
		RETURNING updated_at
	`
	err = tx.QueryRow(ctx, query, vpa.AccountID, vpa.Address, vpa.Primary, vpa.Active, vpa.UserID, vpa.ID).Scan(&vpa.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVPANotFound
		}
		return mapUniqueViolation(err)
	}

	return tx.Commit(ctx)
}

// DeleteVPA removes a VPA. A primary VPA is only deletable when it is the
// user's sole VPA; the count check shares the deleting transaction.
func (r *PostgresRepository) DeleteVPA(ctx context.Context, userID, vpaID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockUserRows(ctx, tx, userID); err != nil {
		return err
	}
	var isPrimary bool
	err = tx.QueryRow(ctx, `SELECT is_primary FROM vpas WHERE user_id = $1 AND id = $2 FOR UPDATE`, userID, vpaID).Scan(&isPrimary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVPANotFound
		}
		return err
	}

	if isPrimary {
		var owned int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM vpas WHERE user_id = $1`, userID).Scan(&owned); err != nil {
			return err
		}
		if owned > 1 {
			return ErrVPAIsPrimary
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM vpas WHERE id = $1`, vpaID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetPrimaryVPA clears the user's current primary VPA and sets the target
// as one transactional unit.
func (r *PostgresRepository) SetPrimaryVPA(ctx context.Context, userID, vpaID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockUserRows(ctx, tx, userID); err != nil {
		return err
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vpas WHERE user_id = $1 AND id = $2)`, userID, vpaID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrVPANotFound
	}

	if _, err := tx.Exec(ctx, `
		UPDATE vpas
		SET is_primary = (id = $2), updated_at = NOW()
		WHERE user_id = $1 AND (is_primary OR id = $2)
	`, userID, vpaID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// VPAAddressExists reports whether any VPA holds the given address.
func (r *PostgresRepository) VPAAddressExists(ctx context.Context, address string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vpas WHERE address = $1)`, address).Scan(&exists)
	return exists, err
}

const transferColumns = `id, reference, sender_address, receiver_address, amount, description,
       type, status, failure_reason, created_at, completed_at`

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var t domain.Transfer
	err := row.Scan(
		&t.ID, &t.Reference, &t.SenderAddress, &t.ReceiverAddress, &t.Amount, &t.Description,
		&t.Type, &t.Status, &t.FailureReason, &t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return &t, nil
}

// CreateTransfer inserts a new transfer row in the INITIATED state.
func (r *PostgresRepository) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	query := `
		INSERT INTO transfers (
			id, reference, sender_address, receiver_address, amount, description, type, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		transfer.ID,
		transfer.Reference,
		transfer.SenderAddress,
		transfer.ReceiverAddress,
		transfer.Amount,
		transfer.Description,
		transfer.Type,
		transfer.Status,
	).Scan(&transfer.CreatedAt)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

// CompleteTransfer transitions an INITIATED transfer to COMPLETED and
// stamps the completion time exactly once.
func (r *PostgresRepository) CompleteTransfer(ctx context.Context, transferID uuid.UUID, completedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transfers
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4
	`, domain.TransferStatusCompleted, completedAt, transferID, domain.TransferStatusInitiated)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransferNotInitiated
	}
	return nil
}

// FailTransfer transitions an INITIATED transfer to FAILED with a reason.
func (r *PostgresRepository) FailTransfer(ctx context.Context, transferID uuid.UUID, reason string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transfers
		SET status = $1, failure_reason = $2
		WHERE id = $3 AND status = $4
	`, domain.TransferStatusFailed, reason, transferID, domain.TransferStatusInitiated)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransferNotInitiated
	}
	return nil
}

// ReverseTransfer flips a COMPLETED transfer to REVERSED and returns the
// funds from the receiver to the sender in a single transaction. If the
// receiver cannot cover the refund, nothing changes and the transfer stays
// COMPLETED so the reversal can be retried. Out-of-band path only; the
// primary flow never reaches it.
func (r *PostgresRepository) ReverseTransfer(ctx context.Context, transferID, receiverAccountID, senderAccountID uuid.UUID, amount decimal.Decimal) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE transfers
		SET status = $1
		WHERE id = $2 AND status = $3
	`, domain.TransferStatusReversed, transferID, domain.TransferStatusCompleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransferNotCompleted
	}

	if err := moveBalance(ctx, tx, receiverAccountID, senderAccountID, amount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindTransferByReference retrieves a transfer by its reference code.
func (r *PostgresRepository) FindTransferByReference(ctx context.Context, reference string) (*domain.Transfer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE reference = $1`, reference)
	return scanTransfer(row)
}

// ListTransfers retrieves transfers matching the participant query with
// pagination and a whitelisted sort key.
func (r *PostgresRepository) ListTransfers(ctx context.Context, query domain.TransferQuery) ([]domain.Transfer, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	var conditions []string
	var args []any
	argPos := 1
	if len(query.SentBy) > 0 {
		conditions = append(conditions, fmt.Sprintf("sender_address = ANY($%d)", argPos))
		args = append(args, query.SentBy)
		argPos++
	}
	if len(query.ReceivedBy) > 0 {
		conditions = append(conditions, fmt.Sprintf("receiver_address = ANY($%d)", argPos))
		args = append(args, query.ReceivedBy)
		argPos++
	}
	if len(conditions) == 0 {
		return []domain.Transfer{}, nil
	}

	sortCol := "created_at"
	if query.SortBy == domain.TransferSortAmount {
		sortCol = "amount"
	}
	direction := "DESC"
	if query.Ascending {
		direction = "ASC"
	}

	sql := fmt.Sprintf(`
		SELECT %s FROM transfers
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, transferColumns, strings.Join(conditions, " OR "), sortCol, direction, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := make([]domain.Transfer, 0, limit)
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}

// ListStuckTransfers returns non-terminal rows older than the given time.
// A row stuck in INITIATED is evidence of a crash mid-transfer; it is
// surfaced for operational reconciliation, never resumed automatically.
func (r *PostgresRepository) ListStuckTransfers(ctx context.Context, olderThan time.Time) ([]domain.Transfer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transferColumns+` FROM transfers
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
	`, domain.TransferStatusInitiated, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}
