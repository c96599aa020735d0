package main

import (
	"context"
	"fmt"

	"github.com/matenet/pin"
	"github.com/matenet/pin/adapters/nfc"
	"github.com/matenet/pin/adapters/qr"
	"github.com/urfave/cli/v2"
)

var (
	friendsCommand = &cli.Command{
		Name:  "friends",
		Usage: "Friends and friend requests",
		Subcommands: []*cli.Command{
			friendsListCommand,
			friendsRequestsCommand,
			friendsAcceptCommand,
			friendsAddCommand,
			friendsTapCommand,
		},
	}
	friendsListCommand = &cli.Command{
		Name:   "list",
		Usage:  "Lists your friends",
		Action: listFriends,
	}
	friendsRequestsCommand = &cli.Command{
		Name:   "requests",
		Usage:  "Lists pending friend requests",
		Action: friendRequests,
	}
	friendsAcceptCommand = &cli.Command{
		Name:      "accept",
		Usage:     "Accepts a friend request",
		ArgsUsage: "sender-id",
		Action:    acceptFriend,
	}
	friendsAddCommand = &cli.Command{
		Name:      "add",
		Usage:     "Sends a friend request to the owner of a pin",
		ArgsUsage: "nfc-id",
		Action:    addFriend,
	}
	friendsTapCommand = &cli.Command{
		Name:   "tap",
		Usage:  "Reads a friend's pin and sends them a request",
		Action: tapFriend,
	}

	pinCommand = &cli.Command{
		Name:  "pin",
		Usage: "NFC pins",
		Subcommands: []*cli.Command{
			pinPairCommand,
			pinRegisterCommand,
		},
	}
	pinPairCommand = &cli.Command{
		Name:   "pair",
		Usage:  "Writes a new id onto a pin and links it to you",
		Action: pairPin,
	}
	pinRegisterCommand = &cli.Command{
		Name:      "register",
		Usage:     "Links an existing pin id to you",
		ArgsUsage: "nfc-id",
		Action:    registerPin,
	}

	qrCommand = &cli.Command{
		Name:  "qr",
		Usage: "QR codes",
		Subcommands: []*cli.Command{
			qrDecodeCommand,
			qrScanCommand,
		},
	}
	qrDecodeCommand = &cli.Command{
		Name:      "decode",
		Usage:     "Decodes the QR code of every image",
		ArgsUsage: "image...",
		Action:    decodeQR,
	}
	qrScanCommand = &cli.Command{
		Name:      "scan",
		Usage:     "Feeds images to the scanner until one decodes",
		ArgsUsage: "image...",
		Action:    scanQR,
	}
)

func listFriends(ctx *cli.Context) error {
	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		friends, err := client.Friends(c)
		if err != nil {
			return err
		}
		return printJSON(friends)
	})
}

func friendRequests(ctx *cli.Context) error {
	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		requests, err := client.FriendRequests(c)
		if err != nil {
			return err
		}
		return printJSON(requests)
	})
}

func acceptFriend(ctx *cli.Context) error {
	sender, err := getArg(ctx, "sender id")
	if err != nil {
		return err
	}
	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		return client.AcceptFriend(c, sender)
	})
}

func addFriend(ctx *cli.Context) error {
	id, err := getArg(ctx, "nfc id")
	if err != nil {
		return err
	}
	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		if err := client.AddFriend(c, id); err != nil {
			return err
		}
		fmt.Println("Friend request sent")
		return nil
	})
}

func tapFriend(ctx *cli.Context) error {
	dev := nfc.NewEmulator()
	return withClient(ctx, pin.Options{NFC: dev}, func(c context.Context, client *pin.Client) error {
		tctx, cancel := context.WithCancel(c)
		defer cancel()
		go tapFromTerminal(tctx, dev, "Tap your friend's pin (type its id): ")

		id, err := client.AddFriendByTap(c)
		if err != nil {
			return err
		}
		fmt.Printf("Friend request sent to the owner of %s\n", id)
		return nil
	})
}

func pairPin(ctx *cli.Context) error {
	dev := nfc.NewEmulator()
	return withClient(ctx, pin.Options{NFC: dev}, func(c context.Context, client *pin.Client) error {
		tctx, cancel := context.WithCancel(c)
		defer cancel()
		go tapFromTerminal(tctx, dev, "Tap your pin (type its serial): ")

		id, err := client.PairPin(c)
		if err != nil {
			return err
		}
		fmt.Printf("Pin paired, id %s\n", id)
		return nil
	})
}

func registerPin(ctx *cli.Context) error {
	id, err := getArg(ctx, "nfc id")
	if err != nil {
		return err
	}
	return withClient(ctx, pin.Options{}, func(c context.Context, client *pin.Client) error {
		return client.RegisterPin(c, id)
	})
}

func decodeQR(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("missing image as command-line argument")
	}
	for _, path := range ctx.Args().Slice() {
		img, err := qr.LoadImage(path)
		if err != nil {
			return err
		}
		text, err := qr.Decode(img)
		if err != nil {
			fmt.Printf("%s: no code found\n", path)
			continue
		}
		fmt.Printf("%s: %s\n", path, text)
	}
	return nil
}

func scanQR(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("missing image as command-line argument")
	}
	opts := pin.Options{Camera: qr.NewFileSource(ctx.Args().Slice()...)}
	return withClient(ctx, opts, func(c context.Context, client *pin.Client) error {
		text, err := client.ScanQR(c)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	})
}
