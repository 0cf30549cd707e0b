package main

import (
	"context"
	"log"

	"github.com/Omoju-Mayowa/blogauth/internal/server"
	"github.com/Omoju-Mayowa/blogauth/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
