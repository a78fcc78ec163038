package cli

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tuncanbit/qrpay/internal/application/walletservice"
	"github.com/tuncanbit/qrpay/internal/domain"
)

// walletCommand builds a command whose body only needs a runtime.
func walletCommand(rootOpts *RootOptions, use, short string, args cobra.PositionalArgs, run func(cmd *cobra.Command, rt *runtime, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, a []string) error {
			rt, err := newRuntime(cmd, rootOpts, nil)
			if err != nil {
				return err
			}
			defer rt.Close()
			return run(cmd, rt, a)
		},
	}
}

func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return walletCommand(rootOpts, "balance", "Show the signed-in user and balance", cobra.NoArgs,
		func(cmd *cobra.Command, rt *runtime, _ []string) error {
			user, err := rt.app.Refresh(cmd.Context())
			if err != nil {
				return fail(err)
			}
			return rt.out.print(user, rt.view.User(user))
		})
}

func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return walletCommand(rootOpts, "history", "List recent transactions", cobra.NoArgs,
		func(cmd *cobra.Command, rt *runtime, _ []string) error {
			txs, err := rt.wallet.Transactions(cmd.Context())
			if err != nil {
				return fail(err)
			}
			if txs == nil {
				txs = []domain.Transaction{}
			}
			return rt.out.print(txs, rt.view.Transactions(txs))
		})
}

func NewDepositCommand(rootOpts *RootOptions) *cobra.Command {
	return walletCommand(rootOpts, "deposit", "Show the deposit address", cobra.NoArgs,
		func(cmd *cobra.Command, rt *runtime, _ []string) error {
			addr, err := rt.wallet.DepositAddress(cmd.Context())
			if err != nil {
				return fail(err)
			}
			return rt.out.print(addr, rt.view.Deposit(addr))
		})
}

func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	return walletCommand(rootOpts, "refresh", "Resync the balance with the blockchain", cobra.NoArgs,
		func(cmd *cobra.Command, rt *runtime, _ []string) error {
			// the CSRF cookie arrives with the first authenticated request
			if _, err := rt.wallet.LoadUser(cmd.Context()); err != nil {
				return fail(err)
			}
			res, err := rt.wallet.RefreshBalance(cmd.Context())
			if err != nil {
				return fail(err)
			}
			message := res.Message
			if message == "" {
				message = walletservice.MsgBalanceRefreshed
			}
			return rt.out.print(res, message+"\n"+rt.view.Balance(rt.state.Balance()))
		})
}

func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := walletCommand(rootOpts, "withdraw <amount-sol> <address>", "Withdraw SOL to an external wallet", cobra.ExactArgs(2),
		func(cmd *cobra.Command, rt *runtime, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return NewExitError(ExitCommandError, "invalid amount "+args[0])
			}
			if _, err := rt.wallet.LoadUser(cmd.Context()); err != nil {
				return fail(err)
			}
			res, err := rt.wallet.RequestWithdrawal(cmd.Context(), amount.InexactFloat64(), args[1])
			if err != nil {
				return fail(err)
			}
			return rt.out.print(res, rt.view.Withdrawal(res))
		})
	cmd.Example = "  walletctl withdraw 0.5 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	return cmd
}

func NewRatesCommand(rootOpts *RootOptions) *cobra.Command {
	return walletCommand(rootOpts, "rates", "Show the exchange rate used by the backend", cobra.NoArgs,
		func(cmd *cobra.Command, rt *runtime, _ []string) error {
			rates, err := rt.wallet.ExchangeRates(cmd.Context())
			if err != nil {
				return fail(err)
			}
			return rt.out.print(rates, rt.view.Rates(rates))
		})
}
