package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"rpcprovider/internal/config"
	"rpcprovider/internal/ethereum"
	"rpcprovider/internal/jsonrpc"
	"rpcprovider/internal/provider"
	"rpcprovider/internal/target"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// newRootCmd builds the command tree; results are written to out
func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "rpcprovider",
		Short: "Send JSON-RPC calls and batches to an Ethereum node",
		Long: `rpcprovider sends single JSON-RPC calls or batches of calls to an
Ethereum node. Large batches can be split into chunks that are sent
concurrently; the result keeps the order of the calls.

Settings come from an optional JSON or YAML file (--config) and the
RPCPROVIDER_ENDPOINT, RPCPROVIDER_LOG_LEVEL, RPCPROVIDER_CHUNK_SIZE and
RPCPROVIDER_AUTH_TOKEN environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (.json, .yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		newCallCmd(opts),
		newBatchCmd(opts),
		newEthCmd(opts),
	)
	return root
}

// withApp loads config, wires the provider and runs fn
func withApp(opts *rootOptions, fn func(a *app) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logger, closer := setupLogger(cfg.LogLevel, cfg.LogFile)
	defer closer.Close()

	logger.Debug().
		Str("config", opts.configPath).
		Str("endpoint", cfg.Endpoint).
		Str("transport", cfg.Transport).
		Msg("starting rpcprovider")

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.logStats()

	return fn(a)
}

func newCallCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [param...]",
		Short: "Send a single JSON-RPC call and print its result",
		Long: `Send a single JSON-RPC call. Each param that parses as JSON is sent
as that value, anything else as a string.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				call := ethereum.Custom{Name: args[0], Args: parseParams(args[1:])}
				resp, err := a.provider.Call(cmd.Context(), call)
				if err != nil {
					return err
				}
				if resp.HasError() {
					return fmt.Errorf("%s: %d %s", call.Name, resp.Error.Code, resp.Error.Message)
				}
				return printJSON(cmd.OutOrStdout(), resp.Result)
			})
		},
	}
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var chunkSize int

	cmd := &cobra.Command{
		Use:   "batch <method[:param,...]>...",
		Short: "Send calls as a JSON-RPC batch and print each result",
		Example: `  rpcprovider batch eth_chainId eth_gasPrice eth_blockNumber
  rpcprovider batch --chunk-size 2 eth_getBalance:0xee5f5c53ce2159fc6dd4b0571e86a4a390d04846,latest eth_chainId`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				calls := make([]target.JSONRPCTarget, len(args))
				for i, arg := range args {
					calls[i] = parseCall(arg)
				}

				size := a.cfg.ChunkSize
				if cmd.Flags().Changed("chunk-size") {
					size = chunkSize
				}

				var (
					results []jsonrpc.Result[json.RawMessage]
					err     error
				)
				if size > 0 {
					results, err = provider.BatchChunkBy[json.RawMessage](cmd.Context(), a.provider, calls, size)
				} else {
					results, err = provider.Batch[json.RawMessage](cmd.Context(), a.provider, calls)
				}
				if err != nil {
					return err
				}
				return printResults(cmd.OutOrStdout(), results)
			})
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "calls per batch; 0 sends a single batch (default from config)")
	return cmd
}

type labeledCall struct {
	label string
	call  ethereum.Call
}

func newEthCmd(opts *rootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "eth",
		Short: "Query chain id, gas price, block number and an optional balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				w := cmd.OutOrStdout()

				singles := []labeledCall{
					{"chainId", ethereum.ChainID{}},
					{"gasPrice", ethereum.GasPrice{}},
					{"blockNumber", ethereum.BlockNumber{}},
				}

				if address != "" {
					checksummed, err := ethereum.ChecksumAddress(address)
					if err != nil {
						return fmt.Errorf("--address: %w", err)
					}
					singles = append(singles, labeledCall{"balance", ethereum.GetBalance{Address: checksummed}})
				}

				for _, s := range singles {
					resp, err := a.provider.Call(ctx, s.call)
					if err != nil {
						return fmt.Errorf("%s: %w", s.label, err)
					}
					if resp.HasError() {
						return fmt.Errorf("%s: %d %w", s.label, resp.Error.Code, resp.Error)
					}
					var value string
					if err := resp.GetResultAs(&value); err != nil {
						return fmt.Errorf("%s: %w", s.label, err)
					}
					fmt.Fprintf(w, "%s: %s\n", s.label, value)
				}

				calls := []target.JSONRPCTarget{ethereum.ChainID{}, ethereum.GasPrice{}, ethereum.BlockNumber{}}
				results, err := provider.BatchChunkBy[string](ctx, a.provider, calls, 2)
				if err != nil {
					return fmt.Errorf("batch: %w", err)
				}
				for _, r := range results {
					if r.IsError() {
						fmt.Fprintf(w, "batch %s: error %d %s\n", r.ID, r.Error.Code, r.Error.Message)
						continue
					}
					fmt.Fprintf(w, "batch %s: %s\n", r.ID, r.Value)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "also query the balance of this address")
	return cmd
}

// parseCall turns "method" or "method:p1,p2" into a call
func parseCall(arg string) ethereum.Custom {
	method, rest, found := strings.Cut(arg, ":")
	if !found || rest == "" {
		return ethereum.Custom{Name: method}
	}
	return ethereum.Custom{Name: method, Args: parseParams(strings.Split(rest, ","))}
}

// parseParams decodes each arg as JSON when possible, keeping numbers exact
func parseParams(args []string) []interface{} {
	params := make([]interface{}, len(args))
	for i, arg := range args {
		params[i] = parseParam(arg)
	}
	return params
}

func parseParam(arg string) interface{} {
	dec := json.NewDecoder(strings.NewReader(arg))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil || dec.More() {
		return arg
	}
	return v
}

func printResults(w io.Writer, results []jsonrpc.Result[json.RawMessage]) error {
	for _, r := range results {
		if r.IsError() {
			fmt.Fprintf(w, "%s\terror %d %s\n", r.ID, r.Error.Code, r.Error.Message)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", r.ID, compact(r.Value))
	}
	return nil
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return errors.New("result is not valid JSON")
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
