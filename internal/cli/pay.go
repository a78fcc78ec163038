package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuncanbit/qrpay/internal/camera"
	"github.com/tuncanbit/qrpay/internal/domain"
)

type PayOptions struct {
	*RootOptions
	Yes     bool
	NoWait  bool
	Replay  string
	Loop    bool
	Payload string
	Timeout time.Duration
}

func addConfirmFlags(cmd *cobra.Command, opts *PayOptions) {
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "confirm without asking")
	cmd.Flags().BoolVar(&opts.NoWait, "no-wait", false, "do not wait for the final payment status")
}

func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a payment QR code from an image or a camera",
	}
	cmd.AddCommand(newScanFileCommand(rootOpts))
	cmd.AddCommand(newScanCameraCommand(rootOpts))
	return cmd
}

func newScanFileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PayOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "file <image>",
		Short: "Decode a QR code from an image file and pay it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, rootOpts, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			reservation, err := rt.app.ScanFile(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			return confirmFlow(cmd, rt, opts, reservation)
		},
	}
	addConfirmFlags(cmd, opts)
	return cmd
}

func newScanCameraCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PayOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Scan with a camera until a payment is reserved",
		Long: `Frames come from a directory of images (--replay) or from a generated
QR code (--simulate). The camera keeps scanning after a rejected code and
stops once the backend reserves a payment.

Examples:
  walletctl scan camera --replay ./frames
  walletctl scan camera --simulate "ST00012|Name=Shop|Sum=10000" --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := deviceFromFlags(opts)
			if err != nil {
				return err
			}
			return runScanCamera(cmd, opts, device)
		},
	}
	addDeviceFlags(cmd, opts)
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", time.Minute, "give up when nothing is reserved in time")
	addConfirmFlags(cmd, opts)
	return cmd
}

func addDeviceFlags(cmd *cobra.Command, opts *PayOptions) {
	cmd.Flags().StringVar(&opts.Replay, "replay", "", "directory of frames to use as the camera")
	cmd.Flags().BoolVar(&opts.Loop, "loop", true, "loop replayed frames")
	cmd.Flags().StringVar(&opts.Payload, "simulate", "", "simulate a camera showing a QR code with this payload")
}

// deviceFromFlags returns nil when no camera source was given.
func deviceFromFlags(opts *PayOptions) (camera.Device, error) {
	switch {
	case opts.Replay != "" && opts.Payload != "":
		return nil, NewExitError(ExitCommandError, "--replay and --simulate are mutually exclusive")
	case opts.Replay != "":
		device, err := camera.NewReplayDeviceFromDir(opts.Replay, opts.Loop)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load frames", err)
		}
		return device, nil
	case opts.Payload != "":
		return &camera.SimulatedDevice{Payload: opts.Payload, BlankFrames: 3}, nil
	default:
		return nil, nil
	}
}

func runScanCamera(cmd *cobra.Command, opts *PayOptions, device camera.Device) error {
	if device == nil {
		return NewExitError(ExitCommandError, "no camera source: use --replay or --simulate")
	}
	rt, err := newRuntime(cmd, opts.RootOptions, device)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	events, unsubscribe := subscribe(rt)
	defer unsubscribe()

	if err := rt.app.StartCamera(ctx); err != nil {
		return fail(err)
	}
	rt.out.line("Наведите камеру на QR-код")

	for {
		select {
		case <-ctx.Done():
			rt.app.StopCamera()
			return NewExitError(ExitFailure, "no payment was reserved before the timeout")
		case e := <-events:
			if e.Type == domain.EventReservation {
				rt.app.StopCamera()
				return confirmFlow(cmd, rt, opts, e.Reservation)
			}
			if e.Type != domain.EventScannerState {
				rt.out.line(rt.view.Event(e))
			}
		}
	}
}

func NewPayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PayOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "pay <qr-payload>",
		Short: "Submit an already decoded QR payload and confirm the payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, rootOpts, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			reservation, err := rt.app.SubmitPayload(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			return confirmFlow(cmd, rt, opts, reservation)
		},
	}
	addConfirmFlags(cmd, opts)
	return cmd
}

// confirmFlow shows the confirmation card, asks the user and then follows
// the payment to its final status.
func confirmFlow(cmd *cobra.Command, rt *runtime, opts *PayOptions, reservation *domain.Reservation) error {
	ctx := cmd.Context()
	rt.out.line(strings.TrimRight(rt.view.Confirmation(reservation), "\n"))

	if !opts.Yes {
		ok, err := ask(cmd.InOrStdin(), cmd.OutOrStdout(), "Подтвердить платеж? [y/N] ")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read answer", err)
		}
		if !ok {
			if err := rt.app.CancelPayment(ctx); err != nil {
				return fail(err)
			}
			return rt.out.print(map[string]string{"status": "cancelled"}, domain.MsgPaymentCancelled)
		}
	}

	events, unsubscribe := subscribe(rt)
	defer unsubscribe()

	// the CSRF cookie comes with the user request
	if _, err := rt.wallet.LoadUser(ctx); err != nil {
		return fail(err)
	}
	confirmation, err := rt.app.ConfirmPayment(ctx)
	if err != nil {
		return fail(err)
	}
	if opts.NoWait {
		return rt.out.print(confirmation, fmt.Sprintf("%s (#%s)", domain.MsgPaymentProcessing, confirmation.TransactionID))
	}
	rt.out.line(fmt.Sprintf("%s (#%s)", domain.MsgPaymentProcessing, confirmation.TransactionID))
	return waitForPayment(ctx, rt, events)
}

// waitForPayment prints countdown ticks until the poller reaches a final state.
func waitForPayment(ctx context.Context, rt *runtime, events <-chan domain.Event) error {
	for {
		select {
		case <-ctx.Done():
			return WrapExitError(ExitCommandError, "interrupted", ctx.Err())
		case e := <-events:
			if e.Type != domain.EventPaymentStatus || e.Payment == nil {
				continue
			}
			update := *e.Payment
			if !update.State.IsTerminal() {
				rt.out.line(rt.view.PaymentStatus(update))
				continue
			}
			if err := rt.out.print(update, rt.view.PaymentStatus(update)); err != nil {
				return err
			}
			if update.State != domain.PollStateCompleted {
				return NewExitError(ExitFailure, update.Message)
			}
			return nil
		}
	}
}

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <transaction-id>",
		Short: "Follow a payment until it completes, fails or times out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.TxID(strings.TrimSpace(args[0]))
			if id.IsZero() {
				return NewExitError(ExitCommandError, "transaction id is required")
			}
			rt, err := newRuntime(cmd, rootOpts, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			events, unsubscribe := subscribe(rt)
			defer unsubscribe()

			rt.app.TrackPayment(id)
			return waitForPayment(cmd.Context(), rt, events)
		},
	}
}

// subscribe buffers app events for the command loop. Events beyond the
// buffer are dropped rather than blocking the publisher.
func subscribe(rt *runtime) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 64)
	unsubscribe := rt.app.Subscribe(domain.EventFunc(func(e domain.Event) {
		select {
		case ch <- e:
		default:
			rt.logger.Debug().Str("type", string(e.Type)).Msg("Dropped event, command loop is behind")
		}
	}))
	return ch, unsubscribe
}

func ask(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "д", "да":
		return true, nil
	default:
		return false, nil
	}
}
