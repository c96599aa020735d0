package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matenet/pin"
	"github.com/matenet/pin/adapters/nfc"
	"github.com/matenet/pin/adapters/qr"
	"github.com/matenet/pin/core"
	"github.com/urfave/cli/v2"
)

var (
	loginCommand = &cli.Command{
		Name:   "login",
		Usage:  "Signs in with the wallet (SIWE)",
		Action: login,
	}
	logoutCommand = &cli.Command{
		Name:   "logout",
		Usage:  "Clears the stored session",
		Action: logout,
	}
	whoamiCommand = &cli.Command{
		Name:   "whoami",
		Usage:  "Shows the stored session",
		Action: whoami,
	}
	registerCommand = &cli.Command{
		Name:      "register",
		Usage:     "Creates a user for the connected account",
		ArgsUsage: "username",
		Action:    register,
	}
	profileCommand = &cli.Command{
		Name:   "profile",
		Usage:  "Shows your profile",
		Action: profile,
	}
	userCommand = &cli.Command{
		Name:      "user",
		Usage:     "Shows another user",
		ArgsUsage: "id",
		Action:    showUser,
	}
	updateCommand = &cli.Command{
		Name:   "update",
		Usage:  "Updates profile fields, unset flags keep their value",
		Action: update,
		Flags:  []cli.Flag{fullNameFlag, usernameFlag, emailFlag, bioFlag},
	}
	avatarCommand = &cli.Command{
		Name:      "avatar",
		Usage:     "Uploads a profile picture",
		ArgsUsage: "image",
		Action:    avatar,
	}
	supportsCommand = &cli.Command{
		Name:   "supports",
		Usage:  "Lists the device capabilities of this client",
		Action: supports,
	}
)

var (
	fullNameFlag = &cli.StringFlag{Name: "full-name", Usage: "Full name"}
	usernameFlag = &cli.StringFlag{Name: "username", Usage: "Username"}
	emailFlag    = &cli.StringFlag{Name: "email", Usage: "Email address"}
	bioFlag      = &cli.StringFlag{Name: "bio", Usage: "Short bio"}
)

// getArg handles the common case of a single required argument
func getArg(ctx *cli.Context, name string) (string, error) {
	if ctx.NArg() < 1 {
		return "", fmt.Errorf("missing %s as command-line argument", name)
	}
	return ctx.Args().First(), nil
}

func login(ctx *cli.Context) error {
	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		if err := client.SignIn(c); err != nil {
			return err
		}
		info, err := client.Session(c)
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s\n", info.Subject)
		return nil
	})
}

func logout(ctx *cli.Context) error {
	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		return client.Logout(c)
	})
}

func whoami(ctx *cli.Context) error {
	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		info, err := client.Session(c)
		if err != nil {
			return err
		}
		if info.Subject != "" {
			fmt.Println("Account:", info.Subject)
		}
		if info.Expires() {
			fmt.Println("Expires:", info.ExpiresAt.Local())
		}
		return nil
	})
}

func register(ctx *cli.Context) error {
	username, err := getArg(ctx, "username")
	if err != nil {
		return err
	}
	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		u, err := client.Register(c, username)
		if err != nil {
			return err
		}
		return printJSON(u)
	})
}

func profile(ctx *cli.Context) error {
	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		u, err := client.Profile(c)
		if err != nil {
			return err
		}
		return printJSON(u)
	})
}

func showUser(ctx *cli.Context) error {
	id, err := getArg(ctx, "user id")
	if err != nil {
		return err
	}
	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		u, err := client.User(c, id)
		if err != nil {
			return err
		}
		return printJSON(u)
	})
}

func update(ctx *cli.Context) error {
	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		me, err := client.Profile(c)
		if err != nil {
			return err
		}
		upd := core.ProfileUpdate{
			WalletAddress: me.WalletAddress,
			FullName:      me.FullName,
			Username:      me.Username,
			Email:         me.Email,
			Bio:           me.Bio,
		}
		if ctx.IsSet(fullNameFlag.Name) {
			upd.FullName = ctx.String(fullNameFlag.Name)
		}
		if ctx.IsSet(usernameFlag.Name) {
			upd.Username = ctx.String(usernameFlag.Name)
		}
		if ctx.IsSet(emailFlag.Name) {
			upd.Email = ctx.String(emailFlag.Name)
		}
		if ctx.IsSet(bioFlag.Name) {
			upd.Bio = ctx.String(bioFlag.Name)
		}
		u, err := client.UpdateProfile(c, upd)
		if err != nil {
			return err
		}
		return printJSON(u)
	})
}

func avatar(ctx *cli.Context) error {
	path, err := getArg(ctx, "image")
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		url, err := client.UploadAvatar(c, filepath.Base(path), f)
		if err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	})
}

func supports(ctx *cli.Context) error {
	opts := pin.Options{NFC: nfc.NewEmulator(), Camera: qr.NewFileSource()}
	return withClient(ctx, opts, func(c context.Context, client *pin.Client) error {
		for _, capability := range []core.Capability{core.CapabilityWallet, core.CapabilityNFC, core.CapabilityCamera} {
			fmt.Printf("%-16s %t\n", capability, client.Supports(capability))
		}
		return nil
	})
}
