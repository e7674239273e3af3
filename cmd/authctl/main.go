package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/deliveroo/internal/authctl"
	"github.com/dmitrijs2005/deliveroo/internal/logging"
	"github.com/dmitrijs2005/deliveroo/internal/server"
	"github.com/dmitrijs2005/deliveroo/internal/server/config"
	"github.com/dmitrijs2005/deliveroo/internal/server/services"
)

func open(ctx context.Context) (authctl.AdminCreator, func(), error) {
	cfg, err := config.Load(os.Args[2:])
	if err != nil {
		return nil, nil, err
	}

	db, rm, err := server.OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(cfg.Env, os.Stderr)
	tokens := server.NewTokenService(cfg, db, rm)
	// create-admin sends no mail
	svc := services.NewAuthService(db, rm, tokens, nil, cfg, logger)

	return svc, func() { _ = db.Close() }, nil
}

func main() {
	os.Exit(authctl.Run(context.Background(), os.Args[1:], open, os.Stdin, os.Stdout, os.Stderr))
}
