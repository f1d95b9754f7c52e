package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Debug   bool             `help:"Enable debug logging"`
	Serve   ServeCmd         `cmd:"" default:"1" help:"Run the game server"`
	Migrate MigrateCmd       `cmd:"" help:"Create or update the postgres ledger tables"`
	Token   TokenCmd         `cmd:"" help:"Print a session link token for a user"`
}

func setupLogger(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("luckyclick"),
		kong.Description("Minority-wins betting rooms"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	// Initialize the global logger early so config.Load can use it.
	setupLogger(cli.Debug)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
