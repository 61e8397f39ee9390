// listener connects to the gateway as a staff member or an order tracker and
// prints every notification it receives. It reconnects on its own and replays
// its rooms after every reconnect.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	"github.com/hellodits/dee-POS-sub002/internal/infrastructure/logging"
	"github.com/hellodits/dee-POS-sub002/internal/session"
	"github.com/hellodits/dee-POS-sub002/internal/session/wsclient"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		url        string
		token      string
		role       string
		order      string
		attempts   int
		delay      time.Duration
		multiplier float64
		logLevel   string
	)

	flagSet := pflag.NewFlagSet("listener", pflag.ContinueOnError)
	flagSet.StringVar(&url, "url", "ws://localhost:8080/ws", "gateway websocket URL")
	flagSet.StringVar(&token, "token", "", "staff access token")
	flagSet.StringVar(&role, "role", "", "staff role to join with (required with --token)")
	flagSet.StringVar(&order, "order", "", "order number to track")
	flagSet.IntVar(&attempts, "attempts", 5, "connection attempts per outage")
	flagSet.DurationVar(&delay, "delay", time.Second, "delay between attempts")
	flagSet.Float64Var(&multiplier, "multiplier", 1, "delay growth per failed attempt")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	intent, err := intentFromFlags(token, role, order)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{
		Level:       logLevel,
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "pos-listener",
	})

	wsCfg := wsclient.DefaultConfig()
	wsCfg.URL = url
	wsCfg.Token = token
	if token == "" {
		wsCfg.OrderNumber = order
	}

	controller := session.NewController(wsclient.NewDialer(wsCfg), session.Config{
		Attempts:   attempts,
		Delay:      delay,
		Multiplier: multiplier,
		Logger:     logger,
	})

	kinds := []domain.EventKind{
		domain.EventOrderStatusUpdated,
		domain.EventOrderReady,
		domain.EventNewOrder,
		domain.EventKitchenUpdate,
		domain.EventNewReservation,
		domain.EventTableStatusUpdated,
	}
	for _, kind := range kinds {
		controller.On(kind, func(msg domain.OutboundMessage) {
			fmt.Printf("%s %s %s\n", time.Now().Format(time.TimeOnly), msg.Kind, msg.Payload)
		})
	}
	controller.OnStateChange(func(ev session.StateEvent) {
		logger.Info("state changed", "from", ev.OldState.String(), "to", ev.NewState.String())
	})
	controller.OnReconnected(func() {
		logger.Warn("reconnected, notifications during the gap were missed; re-fetch current state")
	})
	controller.OnError(func(err error) {
		logger.Warn("gateway error", "error", err)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := controller.Join(ctx, intent); err != nil {
		return err
	}
	if err := controller.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			controller.Disconnect()
			return nil
		case <-ticker.C:
			if controller.Offline() {
				return errors.New("gateway unreachable, giving up")
			}
		}
	}
}

func intentFromFlags(token, role, order string) (session.Intent, error) {
	switch {
	case token != "" && order != "":
		return session.Intent{}, errors.New("--token and --order are mutually exclusive")
	case token != "":
		r := domain.Role(role)
		if !r.IsValid() {
			return session.Intent{}, fmt.Errorf("--role %q is not a staff role", role)
		}
		return session.StaffIntent(r), nil
	case order != "":
		if err := domain.ValidateOrderNumber(order); err != nil {
			return session.Intent{}, fmt.Errorf("--order: %w", err)
		}
		return session.OrderIntent(order), nil
	default:
		return session.Intent{}, errors.New("one of --token or --order is required")
	}
}
