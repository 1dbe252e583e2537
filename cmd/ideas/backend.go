package main

import (
	"context"
	"fmt"

	"github.com/letieu/idea-store/config"
	"github.com/letieu/idea-store/internal/database"
	"github.com/letieu/idea-store/internal/ideas"
)

var loadConfig = config.Load

type backend struct {
	ideas ideas.Table
	ping  func(ctx context.Context) error
	close func() error
}

func openBackend() (*backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.Backend.Type == config.BackendLibSQL {
		db, err := database.NewDB(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		return &backend{ideas: db.Ideas(), ping: db.Ping, close: db.Close}, nil
	}

	hc, err := database.NewHTTPClient(cfg.HTTP.TimeoutSecs, cfg.HTTP.ClientProfile)
	if err != nil {
		return nil, err
	}
	client, err := database.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey, database.WithHTTPClient(hc))
	if err != nil {
		return nil, err
	}
	return &backend{
		ideas: client.Ideas(),
		ping:  client.Ping,
		close: func() error {
			hc.CloseIdleConnections()
			return nil
		},
	}, nil
}
