// kakarot executes EVM transactions against a persistent account store.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/oksanaphmn/kakarot/bridge"
	"github.com/oksanaphmn/kakarot/core"
	"github.com/oksanaphmn/kakarot/core/state"
	"github.com/oksanaphmn/kakarot/core/types"
	"github.com/oksanaphmn/kakarot/log"
)

var (
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "directory for the account and config store",
		Value: "kakarot-data",
	}
	ownerFlag = &cli.StringFlag{
		Name:  "owner",
		Usage: "admin address (hex) recorded as owner on first run",
		Value: "0x0000000000000000000000000000000000000001",
	}
	classHashFlag = &cli.StringFlag{
		Name:  "class-hash",
		Usage: "deployment class hash (hex) used to derive backend account ids",
		Value: "0x01",
	}
	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "enable debug logging",
	}
)

func main() {
	app := &cli.App{
		Name:  "kakarot",
		Usage: "EVM execution engine over a foreign account backend",
		Flags: []cli.Flag{dataDirFlag, ownerFlag, classHashFlag, verboseFlag},
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "initialize the chain id and block parameters",
				ArgsUsage: "<chain-id> <block-gas-limit> <base-fee>",
				Action:    runInit,
			},
			{
				Name:      "send",
				Usage:     "execute a raw signed transaction (hex)",
				ArgsUsage: "<raw-tx-hex>",
				Action:    runSend,
			},
			{
				Name:      "call",
				Usage:     "simulate a message without fee accounting",
				ArgsUsage: "<from-hex> <to-hex|create> <calldata-hex>",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "gas", Value: 30_000_000},
				},
				Action: runCall,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) (*core.Executor, *core.Settings, func(), error) {
	if c.Bool(verboseFlag.Name) {
		log.SetDefault(log.New(slog.LevelDebug))
	}

	directory := bridge.NewAccountDirectory(
		types.HexToHash(c.String(classHashFlag.Name)),
		types.Hash{},
	)
	store, err := state.NewStore(c.String(dataDirFlag.Name), directory)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}

	settings := core.NewSettings(store, types.HexToAddress(c.String(ownerFlag.Name)))
	statedb := state.New(store)
	executor := core.NewExecutor(settings, statedb, directory)
	return executor, settings, func() { store.Close() }, nil
}

func runInit(c *cli.Context) error {
	if c.Args().Len() != 3 {
		return fmt.Errorf("expected <chain-id> <block-gas-limit> <base-fee>")
	}
	_, settings, closeStore, err := setup(c)
	if err != nil {
		return err
	}
	defer closeStore()

	owner := settings.Owner()
	chainID, ok := new(big.Int).SetString(c.Args().Get(0), 10)
	if !ok {
		return fmt.Errorf("invalid chain id %q", c.Args().Get(0))
	}
	var gasLimit uint64
	if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &gasLimit); err != nil {
		return fmt.Errorf("invalid block gas limit: %w", err)
	}
	baseFee, ok := new(big.Int).SetString(c.Args().Get(2), 10)
	if !ok {
		return fmt.Errorf("invalid base fee %q", c.Args().Get(2))
	}

	if err := settings.InitializeChainID(owner, chainID); err != nil {
		return err
	}
	if err := settings.SetBlockGasLimit(owner, gasLimit); err != nil {
		return err
	}
	if err := settings.SetBaseFee(owner, baseFee); err != nil {
		return err
	}
	log.Info("chain initialized", "chainId", chainID, "blockGasLimit", gasLimit)
	return nil
}

func runSend(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected <raw-tx-hex>")
	}
	raw, err := decodeHexArg(c.Args().Get(0))
	if err != nil {
		return err
	}

	executor, _, closeStore, err := setup(c)
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := executor.SendRawTransaction(raw)
	if err != nil {
		return err
	}
	return printResult(result)
}

func runCall(c *cli.Context) error {
	if c.Args().Len() != 3 {
		return fmt.Errorf("expected <from-hex> <to-hex|create> <calldata-hex>")
	}
	data, err := decodeHexArg(c.Args().Get(2))
	if err != nil {
		return err
	}

	executor, _, closeStore, err := setup(c)
	if err != nil {
		return err
	}
	defer closeStore()

	msg := core.Message{
		From:     types.HexToAddress(c.Args().Get(0)),
		Data:     data,
		GasLimit: c.Uint64("gas"),
	}
	if arg := c.Args().Get(1); arg != "create" {
		to := types.HexToAddress(arg)
		msg.To = &to
	}

	result, err := executor.Call(msg)
	if err != nil {
		return err
	}
	return printResult(result)
}

func printResult(result *core.ExecutionResult) error {
	out := map[string]any{
		"gasUsed":    result.UsedGas,
		"reverted":   result.Failed(),
		"returnData": "0x" + hex.EncodeToString(result.ReturnData),
	}
	if result.Err != nil {
		out["error"] = result.Err.Error()
	}
	if !result.ContractAddress.IsZero() {
		out["contractAddress"] = result.ContractAddress.Hex()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func decodeHexArg(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex argument: %w", err)
	}
	return raw, nil
}
