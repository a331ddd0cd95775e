package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ukaji3/reconscan-go/internal/storage"
	"github.com/ukaji3/reconscan-go/pkg/reconscan"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/reconcile"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage trial-balance accounts",
	}
	cmd.AddCommand(newAccountsImportCmd(), newAccountsListCmd(), newAccountsShowCmd())
	return cmd
}

// withStorage opens the configured backend for the duration of fn.
func withStorage(fn func(store storage.Storage) error) error {
	store, err := openStorage()
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newAccountsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <trial-balance>",
		Short: "Import the accounts of a period from a trial balance",
		Long: `import reads the first sheet of a trial balance (.xlsx, .xls or .csv) whose
header row names at least an account number and an ending balance column. Accounts
without a reconciliation tag get TB-<period>-<account number>. Existing accounts of
the period are updated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("period") {
				return fmt.Errorf("--period is required")
			}
			accounts, err := readTrialBalanceFile(args[0], periodID)
			if err != nil {
				return err
			}
			return withStorage(func(store storage.Storage) error {
				return runImportAccounts(cmd, store, args[0], accounts)
			})
		},
	}
}

func readTrialBalanceFile(path string, period int) ([]reconcile.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", reconscan.ErrFileNotFound, path)
		}
		return nil, err
	}
	wb, err := reconscan.ReadWorkbook(data, path)
	if err != nil {
		return nil, err
	}
	if len(wb.Sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", reconcile.ErrMissingColumn, filepath.Base(path))
	}

	accounts, err := reconcile.ReadTrialBalance(wb.Sheets[0], period)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	reconcile.AssignTags(accounts)
	return accounts, nil
}

type importResult struct {
	Imported int                 `json:"imported"`
	Accounts []reconcile.Account `json:"accounts"`
}

func runImportAccounts(cmd *cobra.Command, store storage.Storage, path string, accounts []reconcile.Account) error {
	ctx := commandContext(cmd)

	result := importResult{Accounts: make([]reconcile.Account, 0, len(accounts))}
	for _, account := range accounts {
		saved, err := store.UpsertAccount(ctx, account)
		if err != nil {
			return fmt.Errorf("account %s: %w", account.AccountNumber, err)
		}
		result.Accounts = append(result.Accounts, saved)
	}
	result.Imported = len(result.Accounts)

	log.WithFields(logrus.Fields{
		"file":     filepath.Base(path),
		"period":   periodID,
		"imported": result.Imported,
	}).Info("trial balance imported")

	return emitJSON(cmd.OutOrStdout(), result)
}

func newAccountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the accounts of a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("period") {
				return fmt.Errorf("--period is required")
			}
			return withStorage(func(store storage.Storage) error {
				accounts, err := store.ListAccounts(commandContext(cmd), periodID)
				if err != nil {
					return err
				}
				if accounts == nil {
					accounts = []reconcile.Account{}
				}
				return emitJSON(cmd.OutOrStdout(), accounts)
			})
		},
	}
}

func newAccountsShowCmd() *cobra.Command {
	var (
		id  int64
		tag string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one account by id or reconciliation tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			byID := cmd.Flags().Changed("id")
			if !byID && tag == "" {
				return fmt.Errorf("--id or --tag is required")
			}
			return withStorage(func(store storage.Storage) error {
				var (
					account reconcile.Account
					err     error
				)
				if byID {
					account, err = store.GetAccount(commandContext(cmd), id)
				} else {
					account, err = store.GetAccountByTag(commandContext(cmd), tag)
				}
				if err != nil {
					return err
				}
				return emitJSON(cmd.OutOrStdout(), account)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Stored account id")
	cmd.Flags().StringVar(&tag, "tag", "", "Reconciliation tag")
	cmd.MarkFlagsMutuallyExclusive("id", "tag")
	return cmd
}

func newValidationsCmd() *cobra.Command {
	var accountID int64
	cmd := &cobra.Command{
		Use:   "validations",
		Short: "List the validations recorded for an account, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("account") {
				return fmt.Errorf("--account is required")
			}
			return withStorage(func(store storage.Storage) error {
				records, err := store.ListValidations(commandContext(cmd), accountID)
				if err != nil {
					return err
				}
				if records == nil {
					records = []storage.ValidationRecord{}
				}
				return emitJSON(cmd.OutOrStdout(), records)
			})
		},
	}
	cmd.Flags().Int64Var(&accountID, "account", 0, "Stored account id")
	return cmd
}
