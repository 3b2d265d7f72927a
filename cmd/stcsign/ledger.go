package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/stellar/go/strkey"
	"github.com/xdrpp/stcsign/apdu"
	"github.com/xdrpp/stcsign/ledger"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Query a Ledger hardware wallet or the Speculos emulator",
	}
	cmd.AddCommand(newLedgerAddressCmd(), newLedgerConfigCmd())
	return cmd
}

func withDevice(fn func(cmd *cobra.Command, d *ledger.Device,
	args []string) error) func(*cobra.Command, []string) error {
	return withEnv(func(cmd *cobra.Command, e *env, args []string) error {
		t, err := e.transport()
		if err != nil {
			return err
		}
		if c, ok := t.(io.Closer); ok {
			defer c.Close()
		}
		return fn(cmd, ledger.NewDevice(t, e.Log), args)
	})
}

func newLedgerAddressCmd() *cobra.Command {
	var index uint32
	var path string
	var display bool
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the account address at a derivation path",
		Args:  cobra.NoArgs,
		RunE: withDevice(func(cmd *cobra.Command, d *ledger.Device,
			args []string) error {
			p := apdu.StellarPath(index)
			if path != "" {
				var err error
				if p, err = apdu.ParsePath(path); err != nil {
					return err
				}
			}
			pk, err := d.PublicKey(cmd.Context(), p, display)
			if err != nil {
				return err
			}
			addr, err := strkey.Encode(strkey.VersionByteAccountID, pk[:])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr)
			return nil
		}),
	}
	cmd.Flags().Uint32Var(&index, "hd-path", 0, "account index in m/44'/148'/<index>'")
	cmd.Flags().StringVar(&path, "path", "", "full derivation path, e.g. m/44'/148'/0'")
	cmd.Flags().BoolVar(&display, "display", false, "show the address on the device")
	return cmd
}

func newLedgerConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the Stellar app version and settings",
		Args:  cobra.NoArgs,
		RunE: withDevice(func(cmd *cobra.Command, d *ledger.Device,
			args []string) error {
			c, err := d.AppConfiguration(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version: %s\nhash signing: %t\n",
				c.Version, c.HashSigningEnabled)
			return nil
		}),
	}
}
