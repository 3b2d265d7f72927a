package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stellar/go/xdr"
	"github.com/xdrpp/stcsign"
	"github.com/xdrpp/stcsign/rpc"
)

func newSignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign transactions and authorization entries",
	}
	cmd.AddCommand(newSignTxCmd(), newSignAuthCmd())
	return cmd
}

// Reads a base64 transaction envelope from a file, or standard input
// for "-".
func readEnvelope(cmd *cobra.Command, file string) (*xdr.TransactionEnvelope, error) {
	var r io.Reader
	if file == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	input, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var e xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(strings.TrimSpace(string(input)), &e); err != nil {
		return nil, errors.Wrap(err, "decoding transaction envelope")
	}
	return &e, nil
}

func writeEnvelope(cmd *cobra.Command, e *xdr.TransactionEnvelope) error {
	out, err := xdr.MarshalBase64(e)
	if err != nil {
		return errors.Wrap(err, "encoding transaction envelope")
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func (e *env) signers(cmd *cobra.Command, names []string) ([]*stcsign.Signer, error) {
	ret := make([]*stcsign.Signer, 0, len(names))
	for _, name := range names {
		s, err := e.signer(cmd.Context(), name)
		if err != nil {
			return nil, err
		}
		ret = append(ret, s)
	}
	return ret, nil
}

func newSignTxCmd() *cobra.Command {
	var identities []string
	cmd := &cobra.Command{
		Use:   "tx <file|->",
		Short: "Add signatures to a base64 transaction envelope",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			net, err := e.network()
			if err != nil {
				return err
			}
			txe, err := readEnvelope(cmd, args[0])
			if err != nil {
				return err
			}
			signers, err := e.signers(cmd, identities)
			if err != nil {
				return err
			}
			for _, s := range signers {
				signed, err := net.SignTx(cmd.Context(), s, txe)
				if err != nil {
					return err
				}
				txe = &signed
			}
			return writeEnvelope(cmd, txe)
		}),
	}
	cmd.Flags().StringSliceVarP(&identities, "identity", "i", nil, "identities to sign with, in order")
	cmd.MarkFlagRequired("identity")
	return cmd
}

func newSignAuthCmd() *cobra.Command {
	var identities []string
	var plugins map[string]string
	var expiration uint32
	cmd := &cobra.Command{
		Use:   "auth <file|->",
		Short: "Simulate a contract invocation and sign its authorization entries",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			net, err := e.network()
			if err != nil {
				return err
			}
			if net.RPCURL == "" {
				return errors.Errorf("network %s has no rpc_url", net.Name)
			}
			txe, err := readEnvelope(cmd, args[0])
			if err != nil {
				return err
			}
			if txe.Type != xdr.EnvelopeTypeEnvelopeTypeTx {
				return stcsign.ErrUnsupportedEnvelopeType
			}
			signers, err := e.signers(cmd, identities)
			if err != nil {
				return err
			}
			var ps []*stcsign.Plugin
			for name, address := range plugins {
				addr, err := stcsign.ParseAddress(address)
				if err != nil {
					return err
				}
				p, err := stcsign.FindPlugin(name, addr, nil, e.Log)
				if err != nil {
					return err
				}
				ps = append(ps, p)
			}

			client := rpc.NewClient(net.RPCURL, e.Log)
			defer client.Close()
			r := &stcsign.Resigner{
				RPC:        client,
				Network:    net,
				Signers:    signers,
				Plugins:    ps,
				Expiration: expiration,
				Log:        e.Log,
			}
			tx, err := r.Resign(cmd.Context(), txe.V1.Tx)
			if err != nil {
				return err
			}
			// Earlier signatures no longer cover the assembled tx.
			out := xdr.TransactionEnvelope{
				Type: xdr.EnvelopeTypeEnvelopeTypeTx,
				V1:   &xdr.TransactionV1Envelope{Tx: tx},
			}
			return writeEnvelope(cmd, &out)
		}),
	}
	cmd.Flags().StringSliceVarP(&identities, "identity", "i", nil, "identities that may sign entries")
	cmd.Flags().StringToStringVar(&plugins, "plugin", nil, "name=ADDRESS: sign entries for ADDRESS with stellar-signer-<name>")
	cmd.Flags().Uint32Var(&expiration, "expiration-ledger", 0, "signature expiration ledger (default latest + 60)")
	return cmd
}
