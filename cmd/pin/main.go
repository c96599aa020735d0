// pin is a command line client for the Matenet pin backend.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	// set by the linker
	version = "dev"
	app     = &cli.App{
		Name:    filepath.Base(os.Args[0]),
		Usage:   "Matenet pin client",
		Version: version,
		Writer:  os.Stdout,
	}
)

func init() {
	app.Flags = append(app.Flags, configFlags...)
	app.Flags = append(app.Flags, walletFlags...)
	app.Before = func(ctx *cli.Context) error {
		// a missing .env is fine, the environment may be set already
		if err := godotenv.Load(ctx.String(envFileFlag.Name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", ctx.String(envFileFlag.Name), err)
		}
		return nil
	}
	app.CommandNotFound = func(ctx *cli.Context, cmd string) {
		fmt.Fprintf(os.Stderr, "No such command: %s\n", cmd)
		os.Exit(1)
	}
	app.Commands = []*cli.Command{
		loginCommand,
		logoutCommand,
		whoamiCommand,
		registerCommand,
		profileCommand,
		userCommand,
		updateCommand,
		avatarCommand,
		friendsCommand,
		pinCommand,
		qrCommand,
		supportsCommand,
	}
}

func main() {
	exit(app.Run(os.Args))
}

func exit(err interface{}) {
	if err == nil {
		os.Exit(0)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
