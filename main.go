package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"gosip/chat"
	"gosip/config"
	"gosip/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("startup failed while loading config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	channel, cleanup, err := openChannel(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("url", cfg.ServerURL).Msg("startup failed while connecting")
	}
	defer cleanup()

	client, err := chat.New(chat.Options{
		Channel:               channel,
		Logger:                logger,
		SelfID:                cfg.SelfID,
		SelfName:              cfg.SelfName,
		TypingQuietInterval:   cfg.TypingQuietInterval,
		TypingIndicatorExpiry: cfg.TypingIndicatorExpiry,
		NearBottomThreshold:   cfg.NearBottomThreshold,
		AckTimeout:            cfg.AckTimeout,
		CloseChannel:          true,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed while building the chat client")
	}
	defer client.Close()

	if err := client.Start(); err != nil {
		logger.Fatal().Err(err).Msg("startup failed while joining the session")
	}

	go func() {
		for err := range client.Errors() {
			logger.Warn().Err(err).Msg("engine error")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("running (press Ctrl+C to stop)")
	<-ctx.Done()
	logger.Info().Msg("shutting down")
}

// openChannel dials the configured server, or falls back to a loopback pipe
// so the engine can be exercised without one.
func openChannel(cfg *config.Config, logger zerolog.Logger) (transport.Channel, func(), error) {
	if cfg.ServerURL == "" {
		logger.Info().Msg("no server configured, using loopback channel")
		local, remote := transport.NewPipe()
		return local, func() { _ = remote.Close() }, nil
	}

	ws, err := transport.DialWebsocket(cfg.ServerURL, cfg.Origin)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("url", cfg.ServerURL).Msg("connected")
	go func() {
		for err := range ws.Errors() {
			logger.Warn().Err(err).Msg("transport error")
		}
	}()
	return ws, func() {}, nil
}
