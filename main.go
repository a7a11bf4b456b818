package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rentcheck/internal/bank"
	"rentcheck/internal/config"
	"rentcheck/internal/database"
	"rentcheck/internal/logger"
	"rentcheck/internal/notify"
	"rentcheck/internal/router"
	"rentcheck/internal/store"
	"rentcheck/internal/syncer"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level)

	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("init database")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	st := store.New(db)

	var bankClient bank.Client
	if cfg.Bank.Mock {
		log.Warn().Msg("using mock bank feed; no real transactions will be fetched")
		bankClient = bank.NewMockClient()
	} else {
		bankClient = bank.NewAkahuClient(cfg.Bank.BaseURL, cfg.Bank.AppToken, cfg.Bank.AppSecret, cfg.Sync.Timeout())
	}

	var sender notify.Sender
	if cfg.Mail.Enabled() {
		sender = notify.NewSMTPSender(cfg.Mail, log)
	} else {
		log.Info().Msg("mail not configured; notifications are recorded and logged only")
		sender = notify.NewLogSender(log)
	}

	orch := syncer.New(st, bankClient, sender, syncer.Config{
		PollLead: cfg.Sync.PollLead(),
		Grace:    cfg.Sync.Grace(),
		FetchPad: cfg.Sync.FetchPad(),
		Timeout:  cfg.Sync.Timeout(),
	}, cfg.Security.EncryptionKey, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go orch.Run(ctx, cfg.Sync.Tick())

	r := router.SetupRouter(cfg, db, st, bankClient, orch, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("server listening")
	if err := r.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("run server")
	}
}
