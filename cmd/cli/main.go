package main

import (
	"context"
	"log"
	"os"

	"github.com/akaplins/paperkeep/internal/buildinfo"
	"github.com/akaplins/paperkeep/internal/cli"
	"github.com/akaplins/paperkeep/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
