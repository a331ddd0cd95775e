// Package main provides the CLI entry point for reconscan.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ukaji3/reconscan-go/internal/storage"
	"github.com/ukaji3/reconscan-go/pkg/reconscan"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/output"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/parser"
	"github.com/ukaji3/reconscan-go/pkg/reconscan/reconcile"
)

var log = logrus.StandardLogger()

var (
	outputPath string
	pretty     bool
	format     string
	periodID   int
	verbose    bool
)

// openStorage opens the backend used by the storage-backed subcommands.
var openStorage = storage.InitializeStorage

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reconscan [input.xlsx|input.xls|input.csv]",
		Short: "Extract reconciliation amounts from spreadsheets",
		Long: `reconscan scans every cell of a workbook or CSV file for reconciliation tags
(TB-<period>-<account>) and reads the amount in the cell to the left of each tag.`,
		Args: cobra.ExactArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
		RunE: run,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	rootCmd.PersistentFlags().IntVar(&periodID, "period", 0, "Only keep tags of this period id")
	rootCmd.Flags().StringVar(&format, "format", "json", "Output format: json, text")

	rootCmd.AddCommand(newValidateCmd(), newTagCmd(), newAccountsCmd(), newValidationsCmd())
	return rootCmd
}

func run(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", format)
	}

	res, err := reconscan.ExtractFile(inputPath, scanOptions(cmd))
	if err != nil {
		return fmt.Errorf("%w: %s", err, inputPath)
	}
	log.WithFields(logrus.Fields{
		"file":        filepath.Base(inputPath),
		"tags":        len(res.Tags),
		"diagnostics": len(res.Errors),
	}).Debug("extraction finished")

	if format == "text" {
		out, closeOut, err := openOutput(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeOut()
		return output.WriteText(out, res)
	}

	jsonData, err := output.ToJSON(res, pretty)
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	return emit(cmd.OutOrStdout(), jsonData)
}

func scanOptions(cmd *cobra.Command) reconscan.Options {
	if cmd.Flags().Changed("period") {
		return reconscan.ForPeriod(periodID)
	}
	return reconscan.DefaultOptions()
}

// openOutput returns the --output file, or w when no output file is set.
func openOutput(w io.Writer) (io.Writer, func(), error) {
	if outputPath == "" {
		return w, func() {}, nil
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write output: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// emit writes data and a newline to the --output file or w.
func emit(w io.Writer, data []byte) error {
	out, closeOut, err := openOutput(w)
	if err != nil {
		return err
	}
	defer closeOut()
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func emitJSON(w io.Writer, v interface{}) error {
	data, err := output.Marshal(v, pretty)
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	return emit(w, data)
}

func newTagCmd() *cobra.Command {
	var (
		account   string
		accountID int64
	)
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Print the reconciliation tag of an account",
		Long: `tag prints the tag to place next to an account's supporting amount.
With --period and --account the tag is derived from the account number. With
--account-id the account is loaded from storage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("account-id") {
				return withStorage(func(store storage.Storage) error {
					return runAccountTag(cmd, store, accountID)
				})
			}

			if account == "" {
				return fmt.Errorf("--account or --account-id is required")
			}
			if !cmd.Flags().Changed("period") {
				return fmt.Errorf("--period is required")
			}
			tag := parser.FormatTag(periodID, account)
			if _, _, ok := parser.ParseTag(tag); !ok {
				return fmt.Errorf("invalid account number: %q", account)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), tag)
			return err
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Account number")
	cmd.Flags().Int64Var(&accountID, "account-id", 0, "Stored account id")
	cmd.MarkFlagsMutuallyExclusive("account", "account-id")
	return cmd
}

type accountTag struct {
	AccountID         int64  `json:"account_id"`
	AccountNumber     string `json:"account_number"`
	ReconciliationTag string `json:"reconciliation_tag"`
	Instructions      string `json:"instructions"`
}

func runAccountTag(cmd *cobra.Command, store storage.Storage, id int64) error {
	account, err := store.GetAccount(commandContext(cmd), id)
	if err != nil {
		return fmt.Errorf("account %d: %w", id, err)
	}
	accounts := []reconcile.Account{account}
	reconcile.AssignTags(accounts)
	account = accounts[0]
	if account.ReconciliationTag == "" {
		return fmt.Errorf("account %d: %w", id, reconcile.ErrNoTag)
	}

	return emitJSON(cmd.OutOrStdout(), accountTag{
		AccountID:         account.ID,
		AccountNumber:     account.AccountNumber,
		ReconciliationTag: account.ReconciliationTag,
		Instructions: fmt.Sprintf("Place %s in the cell immediately to the right of the supporting amount.",
			account.ReconciliationTag),
	})
}
