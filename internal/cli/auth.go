package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tuncanbit/qrpay/internal/domain"
)

type AuthOptions struct {
	*RootOptions
	Code string
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	return newAuthCommand(rootOpts, domain.AuthKindLogin, "login", "Sign in through the Telegram bot")
}

func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	return newAuthCommand(rootOpts, domain.AuthKindRegister, "register", "Create an account through the Telegram bot")
}

func newAuthCommand(rootOpts *RootOptions, kind domain.AuthKind, use, short string) *cobra.Command {
	opts := &AuthOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: fmt.Sprintf(`Without --code, request a bot link. Open it in Telegram and the bot
replies with a 6-character code. Then run the command again with --code.

Examples:
  walletctl %[1]s
  walletctl %[1]s --code AB12CD`, use),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd, opts, kind)
		},
	}

	cmd.Flags().StringVar(&opts.Code, "code", "", "code sent by the bot")
	return cmd
}

func runAuth(cmd *cobra.Command, opts *AuthOptions, kind domain.AuthKind) error {
	rt, err := newRuntime(cmd, opts.RootOptions, nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()

	if opts.Code == "" {
		session, err := rt.auth.GenerateSession(ctx, kind)
		if err != nil {
			return fail(err)
		}
		text := fmt.Sprintf("Откройте ссылку в Telegram:\n%s\nЗатем введите код: walletctl %s --code <код>", session.BotURL, cmd.Name())
		return rt.out.print(session, text)
	}

	if _, err := rt.auth.SubmitCode(ctx, kind, opts.Code); err != nil {
		return fail(err)
	}
	user, err := rt.app.Refresh(ctx)
	if err != nil {
		return fail(err)
	}
	return rt.out.print(user, rt.view.User(user))
}

func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored cookie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, rootOpts, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.auth.Logout(cmd.Context()); err != nil {
				rt.logger.Warn().Err(err).Msg("Backend logout failed, local session cleared")
			}
			return rt.out.print(map[string]bool{"success": true}, "Вы вышли из аккаунта")
		},
	}
}
