package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/agentclick/internal/gateway"
	"github.com/soyeahso/agentclick/internal/hotkey"
	"github.com/soyeahso/agentclick/internal/tui"
)

func newRunCmd() *cobra.Command {
	var (
		port      int
		bind      string
		noGateway bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the hotkey daemon (catalog watch, dispatcher, gateway, signals)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			return runDaemon(cmd.Context(), !noGateway, false)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")
	cmd.Flags().BoolVar(&noGateway, "no-gateway", false, "do not start the gateway server")
	return cmd
}

func newTUICmd() *cobra.Command {
	var withGateway bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Show the mini-popup and drive the daemon from the keyboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), withGateway, true)
		},
	}

	cmd.Flags().BoolVar(&withGateway, "gateway", false, "also start the gateway server")
	return cmd
}

// runDaemon runs every trigger surface until SIGINT/SIGTERM, or until the
// popup is closed when withTUI is set.
func runDaemon(parent context.Context, withGateway, withTUI bool) error {
	var (
		opts     appOptions
		prompter *tui.Prompter
	)
	if withTUI {
		prompter = tui.NewPrompter()
		opts.Prompter = prompter
	}
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.catalog.Watch(ctx, cfg.Catalog.PollInterval)

	a.dispatcher.OnResult(func(r hotkey.Result) {
		if r.Err != nil {
			log.Debug().Err(r.Err).Str("action", string(r.Action)).Msg("hotkey result")
		}
	})
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.dispatcher.Run(ctx)
	}()

	sources := hotkey.NewRegistry(log)
	sources.Register(hotkey.NewSignalSource(hotkey.DefaultSignalBindings()))
	sources.StartAll(ctx, a.dispatcher)
	defer sources.StopAll(context.Background())

	errCh := make(chan error, 1)
	if withGateway && cfg.Gateway.IsEnabled() {
		srv := gateway.New(cfg.Gateway, log,
			gateway.WithSession(a.session),
			gateway.WithPipeline(a.pipeline),
			gateway.WithDispatcher(a.dispatcher),
			gateway.WithCatalog(a.catalog),
			gateway.WithHooks(a.hooks),
		)
		go func() {
			if err := srv.Start(ctx); err != nil {
				errCh <- fmt.Errorf("gateway: %w", err)
			}
		}()
	}

	ws, ref, ok := a.session.CurrentAgent()
	ev := log.Info().Str("workspace", ws.ID).Strs("sources", sources.List())
	if ok {
		ev = ev.Str("agent", ref.ID)
	}
	ev.Msg("agentclick running")

	if withTUI {
		go func() {
			errCh <- tui.Run(ctx, tui.Options{
				Session:    a.session,
				Catalog:    a.catalog,
				Dispatcher: a.dispatcher,
				Hooks:      a.hooks,
				Prompter:   prompter,
			})
		}()
	}

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	cancel()
	<-dispatchDone
	log.Info().Msg("agentclick stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
