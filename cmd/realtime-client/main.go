// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Command realtime-client is a reference entrypoint: it loads config, dials
// the realtime websocket endpoint, wires a headless audio device, and runs
// one conversation session until interrupted.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rapidaai/realtime-client/internal/config"
	"github.com/rapidaai/realtime-client/internal/device"
	"github.com/rapidaai/realtime-client/internal/session"
	"github.com/rapidaai/realtime-client/internal/transport"
	"github.com/rapidaai/realtime-client/pkg/commons"
)

func main() {
	vConfig, err := config.InitConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		log.Fatalf("validating config: %v", err)
	}

	logger, err := commons.NewApplicationLogger(commons.LoggerOptions{
		Level:    cfg.LogLevel,
		FilePath: cfg.LogPath,
	})
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Errorf("realtime-client exited with error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger commons.Logger, cfg *config.AppConfig) error {
	conn, err := transport.Dial(ctx, logger, transport.Options{
		URL:     cfg.WebsocketURL,
		Headers: cfg.WebsocketHeaders,
		Query:   cfg.WebsocketQuery,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	sess, err := session.New(session.Options{
		Logger:          logger,
		Transport:       conn,
		Backend:         device.NewNull(),
		InputDeviceIdx:  cfg.InputDeviceIndex,
		OutputDeviceIdx: cfg.OutputDeviceIndex,
	})
	if err != nil {
		return err
	}

	return sess.Run(ctx)
}
