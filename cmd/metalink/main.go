package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var version = "dev"

// errRunFailed ends the process with status 1 after the linker has
// already reported the failure
var errRunFailed = errors.New("link run did not succeed")

// flags
var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "path to a YAML, JSON or TOML config file",
		EnvVars: []string{"METALINK_CONFIG"},
	}
	profileFlag = &cli.StringFlag{
		Name:  "profile",
		Usage: "built-in profile to start from (togi, yogi, none)",
	}
	keypairFlag = &cli.StringFlag{
		Name:  "keypair",
		Usage: "path to the wallet key file",
	}
	mintFlag = &cli.StringFlag{
		Name:  "mint",
		Usage: "mint address whose metadata is linked",
	}
	clusterFlag = &cli.StringFlag{
		Name:  "cluster",
		Usage: "devnet, testnet, mainnet-beta or localnet",
	}
	rpcURLFlag = &cli.StringFlag{
		Name:  "rpc-url",
		Usage: "JSON-RPC endpoint, comma separated for failover",
	}
	wsURLFlag = &cli.StringFlag{
		Name:  "ws-url",
		Usage: "websocket endpoint for confirmations, or none",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "panic, fatal, error, warn, info, debug or trace",
	}
	logFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "text or json",
	}
)

func main() {
	app := cli.NewApp()

	app.Version = version
	app.Name = "metalink"
	app.Usage = "Link Metaplex token metadata to an SPL mint"
	app.Flags = []cli.Flag{
		configFlag,
		profileFlag,
		keypairFlag,
		mintFlag,
		clusterFlag,
		rpcURLFlag,
		wsURLFlag,
		logLevelFlag,
		logFormatFlag,
	}
	app.Commands = append(app.Commands,
		linkCommand,
		watchCommand,
		inspectCommand,
		profilesCommand,
		eventsCommand,
	)
	app.Action = linkAction

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		stop()
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
			log.WithError(err).Debug("metalink exited with error")
		}
		os.Exit(1)
	}
}
