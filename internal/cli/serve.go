package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tuncanbit/qrpay/internal/server"
	"github.com/tuncanbit/qrpay/internal/server/websocket"
)

type ServeOptions struct {
	PayOptions
	Host string
	Port string
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{PayOptions: PayOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local companion server for a UI",
		Long: `Serve the REST control API and the event websocket on the configured
address. A bearer token for the UI is printed at startup; when jwt.secret is
empty a random secret is generated, so tokens do not survive a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	addDeviceFlags(cmd, &opts.PayOptions)
	cmd.Flags().StringVar(&opts.Host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().StringVar(&opts.Port, "port", "", "listen port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	device, err := deviceFromFlags(&opts.PayOptions)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cmd, opts.RootOptions, device)
	if err != nil {
		return err
	}
	defer rt.Close()

	if opts.Host != "" {
		rt.cfg.Server.Host = opts.Host
	}
	if opts.Port != "" {
		rt.cfg.Server.Port = opts.Port
	}
	if rt.cfg.JWT.Secret == "" {
		rt.cfg.JWT.Secret = uuid.NewString()
		rt.logger.Warn().Msg("jwt.secret is not set, using a random secret for this run")
	}

	wsManager := websocket.NewManager(rt.cfg.WebSocket, rt.logger)
	unsubscribe := rt.app.Subscribe(wsManager)
	defer unsubscribe()

	token, err := rt.auth.GenerateUIToken(cmd.Context(), uuid.New(), "walletctl")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to issue UI token", err)
	}
	if err := rt.out.print(map[string]string{"token": token}, fmt.Sprintf("UI token: %s", token)); err != nil {
		return err
	}

	if _, err := rt.app.Refresh(cmd.Context()); err != nil {
		rt.logger.Warn().Err(err).Msg("Not signed in, wallet endpoints will return 401 until login")
	}

	srv := server.New(rt.cfg, rt.app, rt.auth, rt.logger, wsManager)
	srv.OnShutdown(rt.app)
	if err := srv.Start(cmd.Context()); err != nil {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	return nil
}
