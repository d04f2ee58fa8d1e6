// Command contractsync tracks contracts against a UTXO provider and prints
// the synced registry.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/zanwyyy/contractsync/app"
	"github.com/zanwyyy/contractsync/config"
	"github.com/zanwyyy/contractsync/logger"
	"github.com/zanwyyy/contractsync/model"
	"github.com/zanwyyy/contractsync/provider"
)

// sampleBytecode stands in for a compiled TransferWithTimeout contract.
var sampleBytecode = []byte{
	0x52, 0x79, 0x00, 0x9c, 0x63, 0x7c, 0xad, 0x7c, 0xac, 0x67, 0x52, 0x79,
	0x51, 0x9d, 0x7c, 0xad, 0x7c, 0xb1, 0x75, 0x51, 0x68,
}

func main() {
	cliApp := &cli.App{
		Name:  "contractsync",
		Usage: "keep a registry of tracked contracts in sync with their unspent outputs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				Value:   "contractsync.yaml",
				EnvVars: []string{"CONTRACTSYNC_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "demo",
				Usage:  "seed the simulated chain, track a sample contract and walk through refreshes",
				Action: demo,
			},
			{
				Name:      "sync",
				Usage:     "track the given contracts, run one bulk refresh and print the registry",
				ArgsUsage: "name:bytecodeHex ...",
				Action:    syncOnce,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "contractsync:", err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) (config.Config, zerolog.Logger, *app.Runtime, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, zerolog.Nop(), nil, err
	}
	log := logger.New(cfg.Service, logger.WithLevel(cfg.LogLevel), logger.WithPretty(cfg.PrettyLogs))

	rt, err := app.Bootstrap(cfg, log)
	if err != nil {
		return cfg, log, nil, err
	}
	return cfg, log, rt, nil
}

func demo(c *cli.Context) error {
	cfg, log, rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := c.Context

	// Demo always starts on the simulated chain.
	configured := rt.App.Provider()
	if err := rt.App.SwitchProvider(ctx, rt.SimProvider); err != nil {
		return err
	}

	addr := model.ContractAddress(sampleBytecode, cfg.Network)
	funding := model.UTXO{Txid: strings.Repeat("ab", 32), Vout: 0, Satoshis: 10_000}
	if err := rt.Simulated.Add(addr, funding); err != nil {
		return err
	}

	contract, err := rt.App.AddContract(ctx, "TransferWithTimeout", "TransferWithTimeout", sampleBytecode)
	if err != nil {
		return err
	}
	log.Info().
		Str("address", contract.Address).
		Str("locking_script", model.LockingScript(sampleBytecode)).
		Int64("balance", contract.Balance()).
		Msg("sample contract tracked")

	// Spend the funding output and pay change back to the contract.
	if err := rt.Simulated.Spend(addr, funding.Txid, funding.Vout); err != nil {
		return err
	}
	change := model.UTXO{Txid: strings.Repeat("cd", 32), Vout: 1, Satoshis: 6_500}
	if err := rt.Simulated.Add(addr, change); err != nil {
		return err
	}
	if err := rt.App.NotifyContractChanged(ctx, contract.Name); err != nil {
		return err
	}

	if configured != rt.SimProvider {
		// A local badger chain gets the same history so the switch is visible.
		if db, ok := provider.Base(configured).(*provider.Badger); ok {
			if err := db.Put(addr, change); err != nil {
				return err
			}
		}
		if err := rt.App.SwitchProvider(ctx, configured); err != nil {
			log.Warn().Err(err).Msg("configured provider unavailable, registry left as is")
		}
	}

	return printRegistry(rt.App.Contracts())
}

func syncOnce(c *cli.Context) error {
	_, log, rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := c.Context

	for _, arg := range c.Args().Slice() {
		name, code, err := parseContractArg(arg)
		if err != nil {
			return err
		}
		if _, err := rt.App.AddContract(ctx, name, name, code); err != nil {
			log.Warn().Err(err).Str("contract", name).Msg("initial sync failed")
		}
	}

	if err := rt.App.Start(ctx); err != nil {
		return err
	}
	return printRegistry(rt.App.Contracts())
}

func parseContractArg(arg string) (string, []byte, error) {
	name, codeHex, ok := strings.Cut(arg, ":")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("contract %q: want name:bytecodeHex", arg)
	}
	code, err := hex.DecodeString(codeHex)
	if err != nil || len(code) == 0 {
		return "", nil, fmt.Errorf("contract %q: bad bytecode hex", arg)
	}
	return name, code, nil
}

func printRegistry(r model.Registry) error {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
