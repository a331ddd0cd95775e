package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/reconcile"
)

var log = logrus.StandardLogger()

// databaseStore implements the Storage interface for PostgreSQL.
type databaseStore struct {
	db *sql.DB
}

const uniqueViolation = "23505"

// SQL queries as constants for reusability and clarity.
const (
	createAccountsTableSQL = `
	CREATE TABLE IF NOT EXISTS trial_balance_accounts (
		id BIGSERIAL PRIMARY KEY,
		period_id INTEGER NOT NULL,
		account_number VARCHAR(100) NOT NULL,
		account_name VARCHAR(255) NOT NULL DEFAULT '',
		reconciliation_tag VARCHAR(150),
		ending_balance NUMERIC(18, 2) NOT NULL DEFAULT 0,
		UNIQUE (period_id, account_number)
	);`

	createValidationsTableSQL = `
	CREATE TABLE IF NOT EXISTS account_validations (
		id VARCHAR(36) PRIMARY KEY,
		account_id BIGINT NOT NULL REFERENCES trial_balance_accounts (id) ON DELETE CASCADE,
		reconciliation_tag VARCHAR(150) NOT NULL,
		supporting_amount NUMERIC(18, 2) NOT NULL,
		ending_balance NUMERIC(18, 2) NOT NULL,
		difference NUMERIC(18, 2) NOT NULL,
		matches_balance BOOLEAN NOT NULL,
		auto_extracted BOOLEAN NOT NULL DEFAULT FALSE,
		source_filename TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`

	upsertAccountSQL = `
	INSERT INTO trial_balance_accounts (period_id, account_number, account_name, reconciliation_tag, ending_balance)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (period_id, account_number) DO UPDATE SET
		account_name = EXCLUDED.account_name,
		reconciliation_tag = EXCLUDED.reconciliation_tag,
		ending_balance = EXCLUDED.ending_balance
	RETURNING id`

	selectAccountSQL = `
	SELECT id, period_id, account_number, account_name, COALESCE(reconciliation_tag, ''), ending_balance
	FROM trial_balance_accounts`

	insertValidationSQL = `
	INSERT INTO account_validations (id, account_id, reconciliation_tag, supporting_amount, ending_balance,
		difference, matches_balance, auto_extracted, source_filename, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	selectValidationsSQL = `
	SELECT id, account_id, reconciliation_tag, supporting_amount, ending_balance, difference,
		matches_balance, auto_extracted, COALESCE(source_filename, ''), created_at
	FROM account_validations WHERE account_id = $1 ORDER BY created_at DESC`
)

// InitializePostgresStore connects to PostgreSQL and creates the tables it needs.
func InitializePostgresStore(baseConfig SystemConfig) (Storage, error) {
	db, err := sql.Open("postgres", makeDBURL(baseConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %v", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %v", err)
	}
	log.Debug("Connected to PostgreSQL database")

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create database tables: %v", err)
	}
	return &databaseStore{db: db}, nil
}

// makeDBURL builds the connection URL from a host[:port][/database][?params] address.
// User and password are escaped.
func makeDBURL(baseConfig SystemConfig) string {
	address, rawQuery, _ := strings.Cut(baseConfig.StorageURL, "?")
	host, database, _ := strings.Cut(address, "/")

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = url.Values{}
	}
	query.Set("sslmode", baseConfig.StorageSSL)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(baseConfig.StorageUser, baseConfig.StoragePass),
		Host:     host,
		RawQuery: query.Encode(),
	}
	if database != "" {
		u.Path = "/" + database
	}
	return u.String()
}

func createTables(db *sql.DB) error {
	for _, query := range []string{
		createAccountsTableSQL,
		createValidationsTableSQL,
		`CREATE UNIQUE INDEX IF NOT EXISTS trial_balance_accounts_tag_key ON trial_balance_accounts (reconciliation_tag)`,
		`CREATE INDEX IF NOT EXISTS trial_balance_accounts_period_idx ON trial_balance_accounts (period_id)`,
		`CREATE INDEX IF NOT EXISTS account_validations_account_idx ON account_validations (account_id, created_at DESC)`,
	} {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func (s *databaseStore) Close() error {
	return s.db.Close()
}

func (s *databaseStore) UpsertAccount(ctx context.Context, account reconcile.Account) (reconcile.Account, error) {
	var tag sql.NullString
	if account.ReconciliationTag != "" {
		tag = sql.NullString{String: account.ReconciliationTag, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, upsertAccountSQL,
		account.PeriodID, account.AccountNumber, account.AccountName, tag, account.EndingBalance,
	).Scan(&account.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return reconcile.Account{}, fmt.Errorf("%w: %s", ErrDuplicateTag, account.ReconciliationTag)
		}
		return reconcile.Account{}, fmt.Errorf("failed to upsert account %s: %v", account.AccountNumber, err)
	}
	return account, nil
}

func (s *databaseStore) GetAccount(ctx context.Context, id int64) (reconcile.Account, error) {
	return s.queryAccount(ctx, selectAccountSQL+` WHERE id = $1`, id)
}

func (s *databaseStore) GetAccountByTag(ctx context.Context, tag string) (reconcile.Account, error) {
	return s.queryAccount(ctx, selectAccountSQL+` WHERE reconciliation_tag = $1`, tag)
}

func (s *databaseStore) queryAccount(ctx context.Context, query string, arg interface{}) (reconcile.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return reconcile.Account{}, ErrNotFound
	}
	if err != nil {
		return reconcile.Account{}, fmt.Errorf("failed to get account: %v", err)
	}
	return account, nil
}

func (s *databaseStore) ListAccounts(ctx context.Context, periodID int) ([]reconcile.Account, error) {
	return s.queryAccounts(ctx, selectAccountSQL+` WHERE period_id = $1 ORDER BY account_number`, periodID)
}

func (s *databaseStore) GetAccountsByTags(ctx context.Context, tags []string) ([]reconcile.Account, error) {
	if len(tags) == 0 {
		return []reconcile.Account{}, nil
	}
	return s.queryAccounts(ctx, selectAccountSQL+` WHERE reconciliation_tag = ANY($1) ORDER BY account_number`, pq.Array(tags))
}

func (s *databaseStore) queryAccounts(ctx context.Context, query string, arg interface{}) ([]reconcile.Account, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %v", err)
	}
	defer rows.Close()

	accounts := []reconcile.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %v", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (reconcile.Account, error) {
	var a reconcile.Account
	err := row.Scan(&a.ID, &a.PeriodID, &a.AccountNumber, &a.AccountName, &a.ReconciliationTag, &a.EndingBalance)
	return a, err
}

func (s *databaseStore) CreateValidations(ctx context.Context, validations []ValidationRecord) error {
	if len(validations) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertValidationSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %v", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i := range validations {
		v := &validations[i]
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		_, err := stmt.ExecContext(ctx, v.ID, v.AccountID, v.Tag, v.SupportingAmount, v.EndingBalance,
			v.Difference, v.MatchesBalance, v.AutoExtracted, v.SourceFilename, v.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert validation for %s: %v", v.Tag, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit validations: %v", err)
	}
	log.WithField("count", len(validations)).Info("stored validations")
	return nil
}

func (s *databaseStore) ListValidations(ctx context.Context, accountID int64) ([]ValidationRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectValidationsSQL, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query validations: %v", err)
	}
	defer rows.Close()

	validations := []ValidationRecord{}
	for rows.Next() {
		var v ValidationRecord
		if err := rows.Scan(&v.ID, &v.AccountID, &v.Tag, &v.SupportingAmount, &v.EndingBalance, &v.Difference,
			&v.MatchesBalance, &v.AutoExtracted, &v.SourceFilename, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan validation: %v", err)
		}
		validations = append(validations, v)
	}
	return validations, rows.Err()
}
