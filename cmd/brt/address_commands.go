package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/urfave/cli/v2"
)

func newAddressCommand() *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Generate a new address and keypair",
		Description: `The account exists on the ledger only once it receives its reserve.
Keep the seed: it is the only way to sign for the address.`,
		Action: func(c *cli.Context) error {
			cl, err := newServerClient(c)
			if err != nil {
				return err
			}
			address, keypair, err := cl.GenerateAddress(c.Context)
			if err != nil {
				return fmt.Errorf("failed to generate address: %w", err)
			}
			out := map[string]interface{}{
				"address": address,
				"keypair": keypair,
			}
			return printResult(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "Address:    %s\n", address)
				fmt.Fprintf(w, "Seed:       %s\n", keypair.Seed)
				fmt.Fprintf(w, "Public key: %s\n", keypair.PublicKey)
			})
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show an address balance in drops",
		ArgsUsage: "<address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("address is required")
			}
			address := c.Args().Get(0)

			cl, err := newServerClient(c)
			if err != nil {
				return err
			}
			balance, err := cl.Balance(c.Context, address)
			if err != nil {
				return fmt.Errorf("failed to get balance: %w", err)
			}
			out := map[string]string{"address": address, "balance": balance}
			return printResult(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "%s drops\n", balance)
			})
		},
	}
}

func addressTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "txs",
		Usage:     "List the payments of an address",
		ArgsUsage: "<address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("address is required")
			}
			address := c.Args().Get(0)

			cl, err := newServerClient(c)
			if err != nil {
				return err
			}
			txs, err := cl.AddressTransactions(c.Context, address)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			return printResult(c, txs, func(w io.Writer) {
				if len(txs) == 0 {
					fmt.Fprintln(w, "No payments found.")
					return
				}
				hashes := make([]string, 0, len(txs))
				for hash := range txs {
					hashes = append(hashes, hash)
				}
				// Newest first
				sort.Slice(hashes, func(i, j int) bool {
					return txs[hashes[i]].Block > txs[hashes[j]].Block
				})
				fmt.Fprintf(w, "%-64s  %10s  %s\n", "HASH", "BLOCK", "BALANCE")
				for _, hash := range hashes {
					tx := txs[hash]
					fmt.Fprintf(w, "%-64s  %10d  %s\n", hash, tx.Block, tx.Balance)
				}
			})
		},
	}
}

func validAddressCommand() *cli.Command {
	return &cli.Command{
		Name:      "valid",
		Usage:     "Check whether an address is well formed",
		ArgsUsage: "<address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("address is required")
			}
			address := c.Args().Get(0)

			cl, err := newServerClient(c)
			if err != nil {
				return err
			}
			valid, err := cl.IsAddressValid(c.Context, address)
			if err != nil {
				return fmt.Errorf("failed to validate address: %w", err)
			}
			out := map[string]interface{}{"address": address, "valid": valid}
			return printResult(c, out, func(w io.Writer) {
				fmt.Fprintln(w, valid)
			})
		},
	}
}
