package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli/v2"
)

func heightCommand() *cli.Command {
	return &cli.Command{
		Name:  "height",
		Usage: "Show the latest closed ledger index",
		Action: func(c *cli.Context) error {
			cl, err := newServerClient(c)
			if err != nil {
				return err
			}
			height, err := cl.Height(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get height: %w", err)
			}
			return printResult(c, map[string]uint64{"height": height}, func(w io.Writer) {
				fmt.Fprintln(w, height)
			})
		},
	}
}

func feeCommand() *cli.Command {
	return &cli.Command{
		Name:  "fee",
		Usage: "Show the network minimum fee in drops",
		Action: func(c *cli.Context) error {
			cl, err := newServerClient(c)
			if err != nil {
				return err
			}
			fee, err := cl.NetworkFee(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get fee: %w", err)
			}
			return printResult(c, map[string]string{"minimum_fee": fee.String()}, func(w io.Writer) {
				fmt.Fprintf(w, "%s drops\n", fee)
			})
		},
	}
}

func supplyCommand() *cli.Command {
	return &cli.Command{
		Name:  "supply",
		Usage: "Show the total coin supply in drops",
		Action: func(c *cli.Context) error {
			cl, err := newServerClient(c)
			if err != nil {
				return err
			}
			supply, err := cl.TotalSupply(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get supply: %w", err)
			}
			return printResult(c, map[string]string{"total_supply": supply}, func(w io.Writer) {
				fmt.Fprintf(w, "%s drops\n", supply)
			})
		},
	}
}

func blockCommand() *cli.Command {
	return &cli.Command{
		Name:      "block",
		Usage:     "Show a closed ledger",
		ArgsUsage: "<index>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "expand",
				Aliases: []string{"e"},
				Usage:   "Include adapted payments instead of transaction ids",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("block index is required")
			}
			index, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid block index %q: %w", c.Args().Get(0), err)
			}

			cl, err := newServerClient(c)
			if err != nil {
				return err
			}
			block, err := cl.Block(c.Context, index, c.Bool("expand"))
			if err != nil {
				return fmt.Errorf("failed to get block: %w", err)
			}

			return printResult(c, block, func(w io.Writer) {
				fmt.Fprintf(w, "Ledger %d\n", block.Index)
				fmt.Fprintf(w, "  Hash:          %s\n", block.Hash)
				fmt.Fprintf(w, "  Closed:        %s\n", block.Time.Format("2006-01-02 15:04:05 MST"))
				fmt.Fprintf(w, "  Confirmations: %d\n", block.Confirmations)
				if c.Bool("expand") {
					fmt.Fprintf(w, "  Payments:      %d\n", len(block.Transactions))
					for _, tx := range block.Transactions {
						fmt.Fprintf(w, "    %s  %s drops\n", tx.Hash, tx.Value)
					}
					return
				}
				fmt.Fprintf(w, "  Transactions:  %d\n", len(block.TransactionIDs))
				for _, id := range block.TransactionIDs {
					fmt.Fprintf(w, "    %s\n", id)
				}
			})
		},
	}
}
