package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/brtgate/client"
	"github.com/brojonat/brtgate/service/brt"
)

func getTransactionCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a payment",
		ArgsUsage: "<hash>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("transaction hash is required")
			}
			cl, err := newServerClient(c)
			if err != nil {
				return err
			}
			tx, err := cl.Transaction(c.Context, c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to get transaction: %w", err)
			}
			return printResult(c, tx, func(w io.Writer) {
				printTransaction(w, tx)
			})
		},
	}
}

func waitTransactionCommand() *cli.Command {
	return &cli.Command{
		Name:      "wait",
		Usage:     "Wait until a payment is in a validated ledger",
		ArgsUsage: "<hash>",
		Description: `Polls the ledger node with exponential backoff. Requires --rpc-url.

Example:
  brt --rpc-url http://localhost:5005 tx wait E08D6E97... --timeout 1m`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait",
				Value: 2 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("transaction hash is required")
			}
			hash := c.Args().Get(0)
			if !brt.IsTransactionIDValid(hash) {
				return fmt.Errorf("invalid transaction hash %q", hash)
			}
			tx, err := waitForTransaction(c, hash)
			if err != nil {
				return err
			}
			return printResult(c, tx, func(w io.Writer) {
				printTransaction(w, tx)
			})
		},
	}
}

func waitForTransaction(c *cli.Context, hash string) (*brt.Transaction, error) {
	node, gw, err := newNodeClient(c)
	if err != nil {
		return nil, err
	}
	defer gw.Close()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	tx, err := node.WaitTransaction(ctx, hash, brt.WaitOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s: %w", hash, err)
	}
	return tx, nil
}

func validTransactionCommand() *cli.Command {
	return &cli.Command{
		Name:      "valid",
		Usage:     "Check whether a transaction hash is well formed",
		ArgsUsage: "<hash>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("transaction hash is required")
			}
			hash := c.Args().Get(0)
			valid := brt.IsTransactionIDValid(hash)
			return printResult(c, map[string]interface{}{"hash": hash, "valid": valid}, func(w io.Writer) {
				fmt.Fprintln(w, valid)
			})
		},
	}
}

func paymentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "from",
			Usage:    "Sending address",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "seed",
			Usage:    "Seed of the sending address",
			EnvVars:  []string{"BRT_SEED"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "Destination address",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "value",
			Usage:    "Amount in drops",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "fee",
			Usage: "Fee in drops (defaults to the network minimum fee)",
		},
	}
}

func signFromFlags(c *cli.Context, cl *client.Client) (*brt.SignedTransaction, error) {
	value, err := brt.ParseDrops(c.String("value"))
	if err != nil || !value.IsPositive() {
		return nil, fmt.Errorf("--value must be a positive integer amount of drops")
	}
	if fee := c.String("fee"); fee != "" {
		if _, err := brt.ParseDrops(fee); err != nil {
			return nil, fmt.Errorf("--fee must be a non-negative integer amount of drops")
		}
	}

	signed, err := cl.Sign(c.Context, client.SignRequest{
		From:  c.String("from"),
		Seed:  c.String("seed"),
		To:    c.String("to"),
		Value: value,
		Fee:   c.String("fee"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

func signCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Build and sign a payment without submitting it",
		Flags: paymentFlags(),
		Action: func(c *cli.Context) error {
			cl, err := newServerClient(c)
			if err != nil {
				return err
			}
			signed, err := signFromFlags(c, cl)
			if err != nil {
				return err
			}
			return printResult(c, signed, func(w io.Writer) {
				fmt.Fprintf(w, "ID:  %s\n", signed.ID)
				fmt.Fprintf(w, "Raw: %s\n", signed.Raw)
			})
		},
	}
}

// submitResult is the CLI view of a submission outcome.
type submitResult struct {
	ID    string `json:"id"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Submit a signed transaction blob",
		ArgsUsage: "<raw> [id]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("signed transaction blob is required")
			}
			cl, err := newServerClient(c)
			if err != nil {
				return err
			}
			signed := &brt.SignedTransaction{Raw: c.Args().Get(0), ID: c.Args().Get(1)}
			return submitAndPrint(c, cl, signed)
		},
	}
}

func submitAndPrint(c *cli.Context, cl *client.Client, signed *brt.SignedTransaction) error {
	id, err := cl.Submit(c.Context, signed)
	if err != nil {
		out := submitResult{ID: id, Error: err.Error()}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			out.Code = apiErr.Code
		}
		if printErr := printResult(c, out, func(w io.Writer) {
			fmt.Fprintf(w, "ID: %s\n", id)
		}); printErr != nil {
			return printErr
		}
		return fmt.Errorf("submission failed: %w", err)
	}
	return printResult(c, submitResult{ID: id}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Submitted %s\n", id)
	})
}

func sendCommand() *cli.Command {
	flags := append(paymentFlags(),
		&cli.BoolFlag{
			Name:  "wait",
			Usage: "Wait for the payment to be validated (requires --rpc-url)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to wait with --wait",
			Value: 2 * time.Minute,
		},
	)
	return &cli.Command{
		Name:  "send",
		Usage: "Sign and submit a payment",
		Flags: flags,
		Action: func(c *cli.Context) error {
			cl, err := newServerClient(c)
			if err != nil {
				return err
			}
			signed, err := signFromFlags(c, cl)
			if err != nil {
				return err
			}
			if !c.Bool("wait") {
				return submitAndPrint(c, cl, signed)
			}

			id, err := cl.Submit(c.Context, signed)
			if err != nil {
				return fmt.Errorf("submission of %s failed: %w", id, err)
			}
			tx, err := waitForTransaction(c, id)
			if err != nil {
				return err
			}
			return printResult(c, tx, func(w io.Writer) {
				printTransaction(w, tx)
			})
		},
	}
}
