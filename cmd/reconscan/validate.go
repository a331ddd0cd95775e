package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ukaji3/reconscan-go/internal/storage"
	"github.com/ukaji3/reconscan-go/pkg/reconscan"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/models"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/output"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/parser"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/reconcile"
)

type validateRequest struct {
	inputPath string
	tolerance decimal.Decimal
	dryRun    bool

	// Single-account mode.
	accountID int64
	amount    *decimal.Decimal
}

func (r validateRequest) sourceFilename() string {
	if r.inputPath == "" {
		return ""
	}
	return filepath.Base(r.inputPath)
}

func newValidateCmd() *cobra.Command {
	var (
		tolerance string
		amount    string
		accountID int64
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "validate [input]",
		Short: "Validate account balances against amounts extracted from a file",
		Long: `validate extracts tagged amounts from a file, matches them against the
trial-balance accounts of a period and records one validation per matched account.

With --account only that account is validated. Its amount is taken from --amount
when given, otherwise it is extracted from the input for the account's tag.

Storage is configured with STORAGE_TYPE, STORAGE_URL, STORAGE_USER, STORAGE_PASS and STORAGE_SSL.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := validateRequest{dryRun: dryRun}
			if len(args) == 1 {
				req.inputPath = args[0]
			}

			tol, err := decimal.NewFromString(tolerance)
			if err != nil {
				return fmt.Errorf("invalid tolerance %q: %w", tolerance, err)
			}
			req.tolerance = tol

			single := cmd.Flags().Changed("account")
			if amount != "" {
				if !single {
					return fmt.Errorf("--amount requires --account")
				}
				v, ok := parser.NormalizeAmount(amount)
				if !ok {
					return fmt.Errorf("invalid amount %q", amount)
				}
				req.amount = &v
			}

			if single {
				req.accountID = accountID
				if req.inputPath == "" && req.amount == nil {
					return reconcile.ErrAmountRequired
				}
			} else {
				if req.inputPath == "" {
					return fmt.Errorf("an input file is required")
				}
				if !cmd.Flags().Changed("period") {
					return fmt.Errorf("--period is required")
				}
			}

			store, err := openStorage()
			if err != nil {
				return fmt.Errorf("storage: %w", err)
			}
			defer store.Close()

			if single {
				return runValidateAccount(cmd, store, req)
			}
			return runValidate(cmd, store, req)
		},
	}
	cmd.Flags().StringVar(&tolerance, "tolerance", reconcile.DefaultTolerance.String(), "Largest difference accepted as a match")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report without storing validations")
	cmd.Flags().Int64Var(&accountID, "account", 0, "Validate only this stored account id")
	cmd.Flags().StringVar(&amount, "amount", "", "Supporting amount entered by hand (overrides the file)")
	return cmd
}

func runValidate(cmd *cobra.Command, store storage.Storage, req validateRequest) error {
	ctx := commandContext(cmd)

	res, err := reconscan.ExtractFile(req.inputPath, reconscan.ForPeriod(periodID))
	if err != nil {
		return fmt.Errorf("%w: %s", err, req.inputPath)
	}

	accounts, err := store.GetAccountsByTags(ctx, res.SortedTags())
	if err != nil {
		return err
	}

	report := reconcile.Validate(res, accounts, reconcile.Options{
		PeriodID:  &periodID,
		Tolerance: &req.tolerance,
	})

	if !req.dryRun {
		records := storage.RecordsFromReport(report, req.sourceFilename())
		if err := store.CreateValidations(ctx, records); err != nil {
			return err
		}
	}
	log.WithFields(logrus.Fields{
		"created":   report.CreatedCount,
		"found":     report.TotalTagsFound,
		"not_found": len(report.TagsNotFound),
		"dry_run":   req.dryRun,
	}).Info("validation finished")
	if unresolved := report.Unresolved(); len(unresolved) > 0 {
		log.WithField("tags", unresolved).Warn("balances do not match supporting amounts")
	}

	jsonData, err := output.ReportToJSON(report, pretty)
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	return emit(cmd.OutOrStdout(), jsonData)
}

func runValidateAccount(cmd *cobra.Command, store storage.Storage, req validateRequest) error {
	ctx := commandContext(cmd)

	account, err := store.GetAccount(ctx, req.accountID)
	if err != nil {
		return fmt.Errorf("account %d: %w", req.accountID, err)
	}
	accounts := []reconcile.Account{account}
	reconcile.AssignTags(accounts)
	account = accounts[0]

	var res *models.ParseResult
	if req.amount == nil {
		res, err = reconscan.ExtractFile(req.inputPath, reconscan.ForPeriod(account.PeriodID))
		if err != nil {
			return fmt.Errorf("%w: %s", err, req.inputPath)
		}
	}

	result, err := reconcile.ValidateAccount(account, res, req.amount, req.tolerance)
	if err != nil {
		return err
	}

	if !req.dryRun {
		record := storage.RecordFromResult(result, req.sourceFilename())
		if err := store.CreateValidations(ctx, []storage.ValidationRecord{record}); err != nil {
			return err
		}
	}
	log.WithFields(logrus.Fields{
		"account":        account.ID,
		"tag":            result.ReconciliationTag,
		"matches":        result.Validation.Matches,
		"auto_extracted": result.AutoExtracted,
		"dry_run":        req.dryRun,
	}).Info("account validated")

	jsonData, err := output.ResultToJSON(result, pretty)
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	return emit(cmd.OutOrStdout(), jsonData)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
