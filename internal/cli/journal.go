package cli

import (
	"github.com/spf13/cobra"

	"github.com/tuncanbit/qrpay/internal/domain"
)

type JournalOptions struct {
	*RootOptions
	Limit         int
	TransactionID string
}

func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the local payment journal",
		Long: `List what this client did with payments: reservations, confirmations and
final statuses, newest first. With --tx the entries of one payment are
listed oldest first.

Examples:
  walletctl journal --limit 20
  walletctl journal --tx 1042 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, opts.RootOptions, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			var entries []domain.JournalEntry
			if opts.TransactionID != "" {
				entries, err = rt.journal.ListByTransaction(cmd.Context(), domain.TxID(opts.TransactionID))
			} else {
				entries, err = rt.journal.List(cmd.Context(), opts.Limit)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read journal", err)
			}
			if entries == nil {
				entries = []domain.JournalEntry{}
			}
			return rt.out.print(entries, rt.view.Journal(entries))
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "maximum number of entries")
	cmd.Flags().StringVar(&opts.TransactionID, "tx", "", "only entries of this transaction")
	return cmd
}
