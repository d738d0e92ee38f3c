package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/tableside/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Dev     bool `help:"Enable development mode (console logs, debug level)." env:"TABLESIDE_DEV"`
		Version kong.VersionFlag
		Serve   commands.ServeCmd   `cmd:"" help:"Start the API and realtime server"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply PostgreSQL migrations"`
		Token   commands.TokenCmd   `cmd:"" help:"Mint a signed access token"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("tableside-server"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Dev: cli.Dev, Version: version})
	cmd.FatalIfErrorf(err)
}
