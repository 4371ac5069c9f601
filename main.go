package main

import (
	"context"
	"log"

	"github.com/pliu/dmchat/internal/app"
	"github.com/pliu/dmchat/internal/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	a.Run(ctx)
}
