package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/tableside/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Client commands.ClientFlags `embed:""`

		Menu    commands.MenuCmd  `cmd:"" help:"Show a tenant's menu"`
		Order   commands.OrderCmd `cmd:"" help:"Place and manage orders"`
		Watch   commands.WatchCmd `cmd:"" help:"Stream realtime order events"`
		Debug   bool              `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("tableside"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Client: cli.Client})
	cmd.FatalIfErrorf(err)
}
