package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/brtgate/client"
	"github.com/brojonat/brtgate/service/brt"
	"github.com/brojonat/brtgate/service/keys"
)

// newServerClient returns a brtd client for the --server-url flag.
func newServerClient(c *cli.Context) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	return client.NewClient(serverURL, nil, cliLogger()), nil
}

// newNodeClient returns a direct ledger client for the --rpc-url flag.
// The caller closes the returned gateway.
func newNodeClient(c *cli.Context) (*brt.Client, *brt.RPCGateway, error) {
	rpcURL := c.String("rpc-url")
	if rpcURL == "" {
		return nil, nil, fmt.Errorf("rpc-url is required (set BRT_RPC_URL env var or use --rpc-url)")
	}
	gw := brt.NewGateway(rpcURL, brt.GatewayOptions{
		HTTPClient: &http.Client{},
		User:       c.String("rpc-user"),
		Password:   c.String("rpc-password"),
	})
	return brt.NewClient(gw, keys.NewProvider(), keys.NewSigner(), brt.EndpointLabel(rpcURL), nil, cliLogger()), gw, nil
}

func cliLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
}

// printResult writes v as JSON when --json or --jq is set, otherwise calls
// human to render it.
func printResult(c *cli.Context, v interface{}, human func(w io.Writer)) error {
	w := c.App.Writer
	if filter := c.String("jq"); filter != "" {
		return runJQ(w, filter, v)
	}
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(w)
	return nil
}

// runJQ applies filter to the JSON form of v and prints every result.
// String results are printed raw, like jq -r.
func runJQ(w io.Writer, filter string, v interface{}) error {
	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	// gojq only accepts the generic JSON value types
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to unmarshal output: %w", err)
	}

	iter := code.RunWithContext(context.Background(), input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := result.(error); isErr {
			return fmt.Errorf("jq filter failed: %w", err)
		}
		if s, isString := result.(string); isString {
			fmt.Fprintln(w, s)
			continue
		}
		out, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal jq result: %w", err)
		}
		fmt.Fprintln(w, string(out))
	}
}

// printTransaction renders a payment for humans.
func printTransaction(w io.Writer, tx *brt.Transaction) {
	fmt.Fprintf(w, "Transaction %s\n", tx.Hash)
	fmt.Fprintf(w, "  Block:         %d (%d confirmations)\n", tx.Block, tx.Confirmations)
	fmt.Fprintf(w, "  Time:          %s\n", tx.Time.Format("2006-01-02 15:04:05 MST"))
	for _, from := range tx.From {
		fmt.Fprintf(w, "  From:          %s\n", from)
	}
	for _, to := range tx.To {
		fmt.Fprintf(w, "  To:            %s (%s drops)\n", to.Address, to.Value)
	}
	fmt.Fprintf(w, "  Value:         %s drops\n", tx.Value)
	fmt.Fprintf(w, "  Fee:           %s drops\n", tx.Fee)
	if tx.Account != nil {
		fmt.Fprintf(w, "  Balance (%s): %s drops\n", *tx.Account, tx.Balance)
	}
}
