package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"example.com/blacket/internal/archive"
	"example.com/blacket/internal/bot"
	"example.com/blacket/internal/config"
	"example.com/blacket/internal/inspect"
	"example.com/blacket/internal/logger"
	"example.com/blacket/pkg/blacket"
)

func main() {
	configPath := flag.String("config", "conf/blacket.yaml", "path to YAML config")
	printSchema := flag.Bool("schema", false, "print config JSON schema and exit")
	flag.Parse()

	if *printSchema {
		b, err := json.MarshalIndent(config.Schema(), "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(b))
		return
	}

	path := *configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// без файла: только умолчания и переменные окружения
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(logger.Level(cfg.Logging.Level), cfg.Logging.Format)
	if err != nil {
		log.Fatal(err)
	}
	defer lg.Sync()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("blacketbot failed", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg.Info("starting", zap.Stringer("config", cfg))

	token := cfg.Token
	if token == "" {
		login := blacket.Login{BaseURL: cfg.BaseURL, Username: cfg.Username, Password: cfg.Password, OTP: cfg.OTP}
		t, err := login.Token(ctx)
		if err != nil {
			return err
		}
		token = t
		lg.Info("logged in with password", zap.String("username", cfg.Username))
	}

	opts := cfg.Options(token)
	opts.Logger = lg.Named("blacket")
	c, err := blacket.New(opts)
	if err != nil {
		return err
	}
	defer c.Close()

	c.OnError(func(err error) { lg.Warn("client error", zap.Error(err)) })
	c.OnClose(func() { lg.Info("socket closed") })

	var store archive.Store
	if cfg.Archive.DSN != "" {
		store, err = archive.Open(cfg.Archive.Driver, cfg.Archive.DSN)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer store.Close()
	}

	// фоновые части гасятся раньше, чем закрывается архив
	var wg sync.WaitGroup
	defer func() {
		stop()
		wg.Wait()
	}()

	if store != nil {
		rec := archive.NewRecorder(store, lg.Named("archive"))
		rec.Attach(c)
		defer rec.Detach()
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Run(ctx)
		}()
	}

	if cfg.Inspect.Address != "" {
		srv := inspect.New(c, store, lg.Named("inspect"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, cfg.Inspect.Address); err != nil {
				lg.Error("inspect server stopped", zap.Error(err))
			}
		}()
	}

	b, err := bot.New(c, bot.Config{
		Prefix:        cfg.Bot.Prefix,
		Room:          cfg.Bot.Room,
		WatchInterval: cfg.Bot.WatchInterval,
		WatchFile:     cfg.Bot.WatchFile,
		Watch:         cfg.Bot.Watch,
	}, lg.Named("bot"))
	if err != nil {
		return err
	}
	if err := b.Start(); err != nil {
		return err
	}
	defer b.Stop()

	if err := c.Connect(ctx); err != nil {
		return err
	}
	lg.Info("running… press Ctrl+C to stop")

	if err := c.Wait(ctx); err != nil && ctx.Err() != nil {
		lg.Info("shutting down")
		return nil
	}
	return errors.New("connection closed and not reconnecting")
}
