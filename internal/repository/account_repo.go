package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"accounts-api/internal/domain"
)

var (
	ErrNotFound              = errors.New("account not found")
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrDuplicateReferralCode = errors.New("referral code already assigned")
)

const (
	uniqueViolation        = "23505"
	foreignKeyViolation    = "23503"
	emailConstraint        = "accounts_email_key"
	referralCodeConstraint = "accounts_referral_code_key"
)

const accountColumns = `id, name, email, password_hash, role, referral_code, referred_by, referrals_count, referral_rewards, otp_code_hash, otp_expires_at, created_at, updated_at`

// AccountRepository define el contrato de persistencia para cuentas.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByReferralCode(ctx context.Context, code string) (domain.Account, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context) ([]domain.Account, error)
	ListReferredBy(ctx context.Context, code string) ([]domain.ReferredAccount, error)
	UpdateProfile(ctx context.Context, id, name, email string) (domain.Account, error)
	IncrementReferral(ctx context.Context, code string) (bool, error)
	Delete(ctx context.Context, id string) error
	UpdateOTP(ctx context.Context, id, otpHash string, otpExpiresAt time.Time) error
	ClearOTP(ctx context.Context, id, otpHash string) error
	SetRole(ctx context.Context, id, role string) error
	AddFavoriteProvider(ctx context.Context, accountID, providerID string) error
	ListFavoriteProviders(ctx context.Context, accountID string) ([]string, error)
}

// Pool es el subconjunto de pgxpool.Pool que usa el repositorio.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgAccountRepository implementa AccountRepository usando pgx.
type PgAccountRepository struct {
	pool Pool
}

func NewPgAccountRepository(pool Pool) *PgAccountRepository {
	return &PgAccountRepository{pool: pool}
}

func (r *PgAccountRepository) Create(ctx context.Context, a domain.Account) error {
	const query = `
		INSERT INTO accounts (id, name, email, password_hash, role, referral_code, referred_by, referrals_count, referral_rewards, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.Name,
		a.Email,
		a.PasswordHash,
		a.Role,
		a.ReferralCode,
		a.ReferredBy,
		a.ReferralsCount,
		a.ReferralRewards,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("insert account", err)
	}
	return nil
}

func (r *PgAccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return r.scanAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *PgAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.scanAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (r *PgAccountRepository) GetByReferralCode(ctx context.Context, code string) (domain.Account, error) {
	return r.scanAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE referral_code = $1`, code)
}

func (r *PgAccountRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE referral_code = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check referral code: %w", err)
	}
	return exists, nil
}

func (r *PgAccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		a, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (r *PgAccountRepository) ListReferredBy(ctx context.Context, code string) ([]domain.ReferredAccount, error) {
	const query = `
		SELECT email, created_at
		FROM accounts
		WHERE referred_by = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("list referred accounts: %w", err)
	}
	defer rows.Close()

	referred := make([]domain.ReferredAccount, 0)
	for rows.Next() {
		var ra domain.ReferredAccount
		if err := rows.Scan(&ra.Email, &ra.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan referred account: %w", err)
		}
		referred = append(referred, ra)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referred accounts: %w", err)
	}
	return referred, nil
}

func (r *PgAccountRepository) UpdateProfile(ctx context.Context, id, name, email string) (domain.Account, error) {
	query := `
		UPDATE accounts
		SET name = $1, email = $2, updated_at = $3
		WHERE id = $4
		RETURNING ` + accountColumns
	a, err := scanRow(r.pool.QueryRow(ctx, query, name, email, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrNotFound
		}
		return domain.Account{}, mapWriteError("update account", err)
	}
	return a, nil
}

// IncrementReferral suma un referido y una recompensa al dueño del código en
// una sola sentencia. Devuelve false si ningún registro tiene ese código.
func (r *PgAccountRepository) IncrementReferral(ctx context.Context, code string) (bool, error) {
	const query = `
		UPDATE accounts
		SET referrals_count = referrals_count + 1,
		    referral_rewards = referral_rewards + 1,
		    updated_at = $2
		WHERE referral_code = $1
	`
	ct, err := r.pool.Exec(ctx, query, code, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("increment referral: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PgAccountRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgAccountRepository) UpdateOTP(ctx context.Context, id, otpHash string, otpExpiresAt time.Time) error {
	const query = `
		UPDATE accounts
		SET otp_code_hash = $1, otp_expires_at = $2, updated_at = $3
		WHERE id = $4
	`
	return r.execByID(ctx, "update otp", query, otpHash, otpExpiresAt, time.Now().UTC(), id)
}

// ClearOTP borra el código solo si sigue siendo otpHash, así dos
// verificaciones simultáneas no pueden consumir el mismo código. Devuelve
// ErrNotFound si el código ya cambió.
func (r *PgAccountRepository) ClearOTP(ctx context.Context, id, otpHash string) error {
	const query = `
		UPDATE accounts
		SET otp_code_hash = '', otp_expires_at = NULL, updated_at = $1
		WHERE id = $2 AND otp_code_hash = $3 AND otp_code_hash <> ''
	`
	return r.execByID(ctx, "clear otp", query, time.Now().UTC(), id, otpHash)
}

func (r *PgAccountRepository) SetRole(ctx context.Context, id, role string) error {
	const query = `UPDATE accounts SET role = $1, updated_at = $2 WHERE id = $3`
	return r.execByID(ctx, "set role", query, role, time.Now().UTC(), id)
}

// AddFavoriteProvider es idempotente: repetir el mismo par no falla.
func (r *PgAccountRepository) AddFavoriteProvider(ctx context.Context, accountID, providerID string) error {
	const query = `
		INSERT INTO account_favorite_providers (account_id, provider_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, provider_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, accountID, providerID, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("add favorite provider: %w", err)
	}
	return nil
}

func (r *PgAccountRepository) ListFavoriteProviders(ctx context.Context, accountID string) ([]string, error) {
	const query = `
		SELECT provider_id FROM account_favorite_providers
		WHERE account_id = $1
		ORDER BY created_at, provider_id
	`
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list favorite providers: %w", err)
	}
	defer rows.Close()

	providers := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite provider: %w", err)
		}
		providers = append(providers, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorite providers: %w", err)
	}
	return providers, nil
}

func (r *PgAccountRepository) execByID(ctx context.Context, op, query string, args ...any) error {
	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgAccountRepository) scanAccount(ctx context.Context, query string, args ...any) (domain.Account, error) {
	a, err := scanRow(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

func scanRow(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.ReferralCode,
		&a.ReferredBy,
		&a.ReferralsCount,
		&a.ReferralRewards,
		&a.OtpCodeHash,
		&a.OtpExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case emailConstraint:
			return ErrDuplicateEmail
		case referralCodeConstraint:
			return ErrDuplicateReferralCode
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
