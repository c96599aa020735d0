package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/matenet/pin/adapters/nfc"
	"github.com/matenet/pin/adapters/wallet"
	"github.com/matenet/pin/core"
)

var stdin = bufio.NewReader(os.Stdin)

func readLine() (string, error) {
	line, err := stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// terminalApprover asks on the terminal before connecting or signing
func terminalApprover(yes bool) wallet.Approver {
	if yes {
		return wallet.AutoApprove
	}
	return func(ctx context.Context, p wallet.Prompt) error {
		switch p.Kind {
		case wallet.PromptConnect:
			fmt.Fprintf(os.Stderr, "Connect account %s? [y/N] ", p.Account)
		case wallet.PromptSign:
			fmt.Fprintf(os.Stderr, "\n%s\n\nSign this message with %s? [y/N] ", p.Text, p.Account)
		}
		answer, err := readLine()
		if err != nil {
			return err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return nil
		}
		return errors.New("declined on the terminal")
	}
}

// tapFromTerminal waits until dev has a reader or a write waiting, then
// presents the tag typed on the terminal. The typed text is both the tag
// serial and its id record.
func tapFromTerminal(ctx context.Context, dev *nfc.Emulator, prompt string) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for dev.Readers() == 0 && dev.WaitingWrites() == 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	fmt.Fprint(os.Stderr, prompt)
	id, err := readLine()
	if err != nil {
		dev.Fail(err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	scan := core.NFCScan{SerialNumber: id}
	if dev.Readers() > 0 {
		scan.Records = []core.NFCRecord{nfc.TextRecord(id)}
	}
	dev.Tap(scan)
}
