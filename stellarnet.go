package stcsign

import (
	"context"
	"strings"

	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
	"github.com/xdrpp/stcsign/stcdetail"
)

type Network struct {
	// Short name for network (used only in error messages).
	Name string `toml:"-"`

	// Soroban RPC endpoint.
	RPCURL string `toml:"rpc_url"`

	// Network passphrase used for hashing and signing transactions.
	NetworkPassphrase string `toml:"network_passphrase"`
}

// Networks every configuration knows about without a network file.
var BuiltinNetworks = map[string]Network{
	"testnet": {
		Name:              "testnet",
		RPCURL:            "https://soroban-testnet.stellar.org",
		NetworkPassphrase: network.TestNetworkPassphrase,
	},
	"futurenet": {
		Name:              "futurenet",
		RPCURL:            "https://rpc-futurenet.stellar.org:443",
		NetworkPassphrase: "Test SDF Future Network ; October 2022",
	},
	"mainnet": {
		Name:              "mainnet",
		NetworkPassphrase: network.PublicNetworkPassphrase,
	},
	"local": {
		Name:              "local",
		RPCURL:            "http://localhost:8000/rpc",
		NetworkPassphrase: "Standalone Network ; February 2017",
	},
}

func ValidNetName(name string) bool {
	return len(name) > 0 && name[0] != '.' && !strings.ContainsAny(name, "/\\")
}

// ID returns the network id, the hash of the passphrase.
func (net *Network) ID() xdr.Hash {
	return stcdetail.NetworkID(net.NetworkPassphrase)
}

// Return the hash that signatures on e must cover on this network.
// V0 envelopes fail with ErrUnsupportedEnvelopeType.
func (net *Network) HashTx(e *xdr.TransactionEnvelope) (xdr.Hash, error) {
	return stcdetail.EnvelopeHash(net.ID(), e)
}

// Sign a transaction envelope with s and return the envelope with the
// new signature appended.
func (net *Network) SignTx(ctx context.Context, s *Signer,
	e *xdr.TransactionEnvelope) (xdr.TransactionEnvelope, error) {
	return s.SignTx(ctx, e, net.NetworkPassphrase)
}
