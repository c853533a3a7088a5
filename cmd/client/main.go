package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"salon-sync/auth"
	"salon-sync/domain/event"
	"salon-sync/infrastructure/rest"
	"salon-sync/infrastructure/stomp"
	"salon-sync/internal"
	"salon-sync/runtime"
	"salon-sync/runtime/workers"
	"salon-sync/services"
	"syscall"

	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires one session for the identity of ACCESS_TOKEN, prints every bus
// event and reads commands from stdin until interrupted.
func run() error {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	identity, err := auth.IdentityFromToken(config.AccessToken, []byte(config.TokenSecret))
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}

	// 2. Backend collaborators
	api, err := rest.NewClient(log, config.APIBaseURL, config.RequestTimeout)
	if err != nil {
		return err
	}
	api.SetToken(identity.Token)
	dialer, err := stomp.NewDialer(log, config.BrokerURL, config.HeartbeatInterval, config.HandshakeTimeout)
	if err != nil {
		return err
	}

	session := services.NewSession(log, services.Dependencies{
		Dialer:        dialer,
		Chat:          api,
		Uploader:      api,
		Translator:    api,
		Locales:       api,
		Notifications: api,
		Settings:      api,
	}, config.SessionConfig())

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Terminal output, off the broker read loop
	fanout := workers.NewEventFanout(log, config.FanoutBufferSize, newConsole(os.Stdout))
	for _, name := range []event.Name{
		event.ConnectionName, event.TimelineName, event.UnreadName, event.MarkReadFailedName,
		event.TranslationName, event.AlertRaisedName, event.AlertDismissedName,
		event.NavigationName, event.NotificationsName,
	} {
		session.Bus().On(name, runtime.ListenerFunc(fanout.Handle))
	}
	sup := workers.NewSupervisor(log, config.ReconnectDelay)
	sup.Add(fanout)
	go sup.Run(ctx)

	// 5. Start the session
	if err := session.Start(ctx, identity); err != nil {
		return fmt.Errorf("session failed to start: %w", err)
	}
	defer session.Stop()
	log.Info("Client ready", "identity", identity.String())
	fmt.Println(usage)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := execute(ctx, session, line); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		}
	}
}
