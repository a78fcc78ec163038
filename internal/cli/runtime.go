package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tuncanbit/qrpay/internal/application/app"
	"github.com/tuncanbit/qrpay/internal/application/appstate"
	"github.com/tuncanbit/qrpay/internal/application/authservice"
	"github.com/tuncanbit/qrpay/internal/application/paymentservice"
	"github.com/tuncanbit/qrpay/internal/application/walletservice"
	"github.com/tuncanbit/qrpay/internal/camera"
	"github.com/tuncanbit/qrpay/internal/infrastructure/database"
	"github.com/tuncanbit/qrpay/internal/infrastructure/http/clients"
	journalrepository "github.com/tuncanbit/qrpay/internal/repositories/journalrepo"
	"github.com/tuncanbit/qrpay/internal/scanner"
	"github.com/tuncanbit/qrpay/internal/task"
	"github.com/tuncanbit/qrpay/internal/view"
	"github.com/tuncanbit/qrpay/pkg/config"
	"github.com/tuncanbit/qrpay/pkg/currency"
	"github.com/tuncanbit/qrpay/pkg/logger"
)

// runtime is the object graph one command invocation works with.
type runtime struct {
	cfg     *config.Config
	logger  zerolog.Logger
	state   *appstate.State
	auth    authservice.IAuthService
	wallet  walletservice.IWalletService
	journal journalrepository.IJournalRepository
	app     *app.App
	view    *view.Renderer
	out     *printer
	closers []func()
}

// newRuntime loads config and builds the services. device may be nil for
// commands that never open the camera.
func newRuntime(cmd *cobra.Command, opts *RootOptions, device camera.Device) (*runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	logCfg := logger.Config{
		Level:  cfg.Logger.Level,
		Pretty: cfg.Logger.Pretty,
		Output: cmd.ErrOrStderr(),
	}
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	log := logger.NewWithConfig(logCfg)

	rt := &runtime{
		cfg:    cfg,
		logger: log,
		out:    &printer{format: opts.Format, w: cmd.OutOrStdout()},
	}

	api, err := clients.NewWalletAPIClient(cfg.API, log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create API client", err)
	}

	rt.journal = openJournal(rt, log)

	sched := task.NewRealScheduler()
	rt.state = appstate.New()
	converter := currency.NewConverter(cfg.Payment.DisplayRate, cfg.Payment.CommissionPercent)
	rt.view = view.New(converter)
	decoder := scanner.NewZXingDecoder(log)

	var session *scanner.Session
	if device != nil {
		session = scanner.NewSession(device, camera.NewVideoSink(), decoder, sched, scanner.OptionsFromConfig(cfg.Scanner), log)
	}

	poller := paymentservice.NewStatusPoller(api, sched, paymentservice.PollerOptions{
		Interval:      cfg.Payment.PollInterval,
		Deadline:      cfg.Payment.Deadline,
		StatusTimeout: cfg.Payment.StatusTimeout,
	}, log)

	rt.auth = authservice.NewAuthService(cfg, api, rt.state, log)
	rt.wallet = walletservice.NewWalletService(api, rt.state, log)
	rt.app = app.New(app.Deps{
		Session:  session,
		Files:    scanner.NewImageFileScanner(decoder, log),
		Payments: paymentservice.NewPaymentService(api, rt.state, rt.journal, poller, converter, log),
		Wallet:   rt.wallet,
		Auth:     rt.auth,
		State:    rt.state,
		Sched:    sched,
	}, app.Options{RestartDelay: cfg.Scanner.RestartDelay}, log)

	return rt, nil
}

// openJournal falls back to a no-op journal so a broken local database never
// blocks a payment.
func openJournal(rt *runtime, log zerolog.Logger) journalrepository.IJournalRepository {
	db, err := database.New(&rt.cfg.Journal)
	if err != nil {
		log.Warn().Err(err).Str("driver", rt.cfg.Journal.Driver).Msg("Payment journal disabled")
		return journalrepository.NopJournal{}
	}
	rt.closers = append(rt.closers, db.ShutDown)
	return journalrepository.New(db, log)
}

func (rt *runtime) Close() {
	rt.app.Shutdown()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}
