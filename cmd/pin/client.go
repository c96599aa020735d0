package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/matenet/pin"
	"github.com/matenet/pin/adapters/wallet"
	"github.com/matenet/pin/config"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/internal/logging"
	"github.com/matenet/pin/ports"
	"github.com/urfave/cli/v2"
)

var (
	envFileFlag = &cli.StringFlag{
		Name:  "env-file",
		Usage: "File with environment variables",
		Value: ".env",
	}
	serverFlag = &cli.StringFlag{
		Name:    "server",
		Usage:   "Backend base URL",
		EnvVars: []string{"PIN_SERVER_URL"},
	}
	originFlag = &cli.StringFlag{
		Name:    "origin",
		Usage:   "Origin the sign-in message is issued for",
		EnvVars: []string{"PIN_ORIGIN"},
	}
	chainIDFlag = &cli.Int64Flag{
		Name:    "chain-id",
		Usage:   "Chain id of the sign-in message",
		EnvVars: []string{"PIN_CHAIN_ID"},
	}
	dataDirFlag = &cli.StringFlag{
		Name:    "datadir",
		Usage:   "Directory of the local session store",
		EnvVars: []string{"PIN_DATA_DIR"},
	}
	redisFlag = &cli.StringFlag{
		Name:    "redis",
		Usage:   "Redis URL, keeps the session and events in redis",
		EnvVars: []string{"REDIS_URL"},
	}
	timeoutFlag = &cli.DurationFlag{
		Name:    "timeout",
		Usage:   "Request timeout",
		EnvVars: []string{"PIN_REQUEST_TIMEOUT"},
	}
	logLevelFlag = &cli.StringFlag{
		Name:    "log.level",
		Usage:   "Log level (trace, debug, info, warn, error)",
		EnvVars: []string{"LOG_LEVEL"},
	}
	logFormatFlag = &cli.StringFlag{
		Name:    "log.format",
		Usage:   "Log format (terminal, json)",
		EnvVars: []string{"LOG_FORMAT"},
	}

	configFlags = []cli.Flag{
		envFileFlag,
		serverFlag,
		originFlag,
		chainIDFlag,
		dataDirFlag,
		redisFlag,
		timeoutFlag,
		logLevelFlag,
		logFormatFlag,
	}
)

var (
	keyFileFlag = &cli.StringFlag{
		Name:    "keyfile",
		Usage:   "Encrypted keystore file to sign in with",
		EnvVars: []string{"PIN_KEYFILE"},
	}
	passwordFlag = &cli.StringFlag{
		Name:    "password",
		Usage:   "Password of the keystore file",
		EnvVars: []string{"PIN_KEY_PASSWORD"},
	}
	privateKeyFlag = &cli.StringFlag{
		Name:    "private-key",
		Usage:   "Hex private key to sign in with",
		EnvVars: []string{"PIN_PRIVATE_KEY"},
	}
	rpcFlag = &cli.StringFlag{
		Name:    "rpc",
		Usage:   "JSON-RPC endpoint of an external wallet",
		EnvVars: []string{"PIN_WALLET_RPC"},
	}
	yesFlag = &cli.BoolFlag{
		Name:  "yes",
		Usage: "Approve wallet prompts without asking",
	}

	walletFlags = []cli.Flag{
		keyFileFlag,
		passwordFlag,
		privateKeyFlag,
		rpcFlag,
		yesFlag,
	}
)

// loadConfig reads the environment and applies flag overrides
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	if ctx.IsSet(serverFlag.Name) {
		cfg.ServerURL = ctx.String(serverFlag.Name)
	}
	if ctx.IsSet(originFlag.Name) {
		cfg.Origin = ctx.String(originFlag.Name)
	}
	if ctx.IsSet(chainIDFlag.Name) {
		cfg.ChainID = ctx.Int64(chainIDFlag.Name)
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(redisFlag.Name) {
		cfg.RedisURL = ctx.String(redisFlag.Name)
	}
	if ctx.IsSet(timeoutFlag.Name) {
		cfg.RequestTimeout = ctx.Duration(timeoutFlag.Name)
	}
	if ctx.IsSet(logLevelFlag.Name) {
		cfg.LogLevel = ctx.String(logLevelFlag.Name)
	}
	if ctx.IsSet(logFormatFlag.Name) {
		cfg.LogFormat = ctx.String(logFormatFlag.Name)
	}
	return cfg, cfg.Validate()
}

// openWallet picks the wallet named by the flags. Without one the client
// can only use a stored session.
func openWallet(ctx *cli.Context, logger log.Logger) (ports.WalletProvider, func(), error) {
	approve := terminalApprover(ctx.Bool(yesFlag.Name))
	switch {
	case ctx.IsSet(rpcFlag.Name):
		w, err := wallet.DialRPCWallet(ctx.Context, ctx.String(rpcFlag.Name), 0, logger)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	case ctx.IsSet(keyFileFlag.Name):
		key, err := wallet.LoadKeyFile(ctx.String(keyFileFlag.Name), ctx.String(passwordFlag.Name))
		if err != nil {
			return nil, nil, err
		}
		return wallet.NewKeyWallet(approve, key), func() {}, nil
	case ctx.IsSet(privateKeyFlag.Name):
		key, err := wallet.ParseHexKey(ctx.String(privateKeyFlag.Name))
		if err != nil {
			return nil, nil, err
		}
		return wallet.NewKeyWallet(approve, key), func() {}, nil
	}
	return nil, func() {}, nil
}

// withClient runs fn with a client built from the flags. opts may carry
// devices, the rest is filled in here.
func withClient(ctx *cli.Context, opts pin.Options, fn func(context.Context, *pin.Client) error) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.JSONLogs())
	log.SetDefault(logger)

	w, closeWallet, err := openWallet(ctx, logger)
	if err != nil {
		return err
	}
	defer closeWallet()

	opts.Config = cfg
	opts.Wallet = w
	opts.Logger = logger
	client, err := pin.New(ctx.Context, opts)
	if err != nil {
		return err
	}
	defer client.Close()

	return userError(logger, fn(ctx.Context, client))
}

// userError turns flow failures into their user message. Other errors are
// shown as is.
func userError(logger log.Logger, err error) error {
	if err == nil {
		return nil
	}
	var fe *core.FlowError
	if !errors.As(err, &fe) {
		return err
	}
	logger.Debug("Command failed", "kind", fe.Kind, "err", err)
	return errors.New(pin.Message(err))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
