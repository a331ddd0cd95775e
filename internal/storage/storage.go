package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/reconcile"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateTag is returned when a reconciliation tag is already assigned to another account.
var ErrDuplicateTag = errors.New("reconciliation tag already assigned")

// Storage persists trial-balance accounts and the validations recorded against them.
type Storage interface {
	Close() error

	// Accounts
	UpsertAccount(ctx context.Context, account reconcile.Account) (reconcile.Account, error)
	GetAccount(ctx context.Context, id int64) (reconcile.Account, error)
	GetAccountByTag(ctx context.Context, tag string) (reconcile.Account, error)
	ListAccounts(ctx context.Context, periodID int) ([]reconcile.Account, error)
	GetAccountsByTags(ctx context.Context, tags []string) ([]reconcile.Account, error)

	// Validations
	CreateValidations(ctx context.Context, validations []ValidationRecord) error
	ListValidations(ctx context.Context, accountID int64) ([]ValidationRecord, error)
}

// ValidationRecord is a persisted validation of an account's ending balance.
type ValidationRecord struct {
	ID               string          `json:"id"`
	AccountID        int64           `json:"accountId"`
	Tag              string          `json:"tag"`
	SupportingAmount decimal.Decimal `json:"supportingAmount"`
	EndingBalance    decimal.Decimal `json:"endingBalance"`
	Difference       decimal.Decimal `json:"difference"`
	MatchesBalance   bool            `json:"matchesBalance"`
	AutoExtracted    bool            `json:"autoExtracted"`
	SourceFilename   string          `json:"sourceFilename"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// RecordsFromReport converts the validations of a report into records ready to store.
func RecordsFromReport(report *reconcile.Report, sourceFilename string) []ValidationRecord {
	records := make([]ValidationRecord, 0, len(report.Validations))
	for _, v := range report.Validations {
		records = append(records, ValidationRecord{
			AccountID:        v.AccountID,
			Tag:              v.Tag,
			SupportingAmount: v.SupportingAmount,
			EndingBalance:    v.EndingBalance,
			Difference:       v.Difference,
			MatchesBalance:   v.Matches,
			AutoExtracted:    true,
			SourceFilename:   sourceFilename,
		})
	}
	return records
}

// RecordFromResult converts a single-account validation into a record ready to store.
func RecordFromResult(result *reconcile.Result, sourceFilename string) ValidationRecord {
	v := result.Validation
	return ValidationRecord{
		AccountID:        v.AccountID,
		Tag:              v.Tag,
		SupportingAmount: v.SupportingAmount,
		EndingBalance:    v.EndingBalance,
		Difference:       v.Difference,
		MatchesBalance:   v.Matches,
		AutoExtracted:    result.AutoExtracted,
		SourceFilename:   sourceFilename,
	}
}

// BackendType names a storage backend selectable through STORAGE_TYPE.
type BackendType string

const (
	// BackendTypePostgres stores accounts and validations in PostgreSQL.
	BackendTypePostgres BackendType = "postgres"
)

// SystemConfig holds the storage settings read from the environment.
type SystemConfig struct {
	StorageURL  string
	StorageType BackendType
	StorageUser string
	StoragePass string
	StorageSSL  string
}

// SetStorageConfig fills c from STORAGE_TYPE, STORAGE_URL, STORAGE_SSL, STORAGE_USER and
// STORAGE_PASS. Unknown backend types are left empty and unknown SSL modes fall back to
// "disable".
func (c *SystemConfig) SetStorageConfig() {
	c.StorageType = backendTypeFromEnv(os.Getenv("STORAGE_TYPE"))
	c.StorageURL = os.Getenv("STORAGE_URL")
	c.StorageSSL = backendSSLFromEnv(os.Getenv("STORAGE_SSL"))
	c.StorageUser = os.Getenv("STORAGE_USER")
	c.StoragePass = os.Getenv("STORAGE_PASS")
}

// Validate reports the first missing setting.
func (c SystemConfig) Validate() error {
	if c.StorageType == "" {
		return fmt.Errorf("missing STORAGE_TYPE (set STORAGE_TYPE=postgres)")
	}
	if c.StorageType != BackendTypePostgres {
		return fmt.Errorf("unsupported storage type: %q", c.StorageType)
	}
	if c.StorageURL == "" {
		return fmt.Errorf("missing STORAGE_URL for postgres backend")
	}
	if c.StorageUser == "" {
		return fmt.Errorf("missing STORAGE_USER for postgres backend")
	}
	if c.StoragePass == "" {
		return fmt.Errorf("missing STORAGE_PASS for postgres backend")
	}
	return nil
}

func backendTypeFromEnv(env string) BackendType {
	switch env {
	case "postgres":
		return BackendTypePostgres
	default:
		return ""
	}
}

func backendSSLFromEnv(env string) string {
	switch env {
	case "disable", "require", "verify-full", "verify-ca":
		return env
	default:
		return "disable"
	}
}

// InitializeStorage opens the storage backend configured in the environment.
func InitializeStorage() (Storage, error) {
	baseConfig := SystemConfig{}
	baseConfig.SetStorageConfig()
	if err := baseConfig.Validate(); err != nil {
		return nil, err
	}
	return InitializePostgresStore(baseConfig)
}
