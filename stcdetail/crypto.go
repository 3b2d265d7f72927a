package stcdetail

import (
	"crypto/sha256"

	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"
)

// NetworkID returns the SHA-256 hash of a network passphrase, which
// prefixes everything signed on that network.
func NetworkID(passphrase string) xdr.Hash {
	return xdr.Hash(sha256.Sum256([]byte(passphrase)))
}

// Computes the SHA-256 hash of the canonical XDR encoding of one or
// more values.
func XdrSHA256(vs ...interface{}) (ret xdr.Hash, err error) {
	sha := sha256.New()
	for _, v := range vs {
		if _, err = xdr.Marshal(sha, v); err != nil {
			return ret, errors.Wrap(err, "xdr encoding")
		}
	}
	copy(ret[:], sha.Sum(nil))
	return
}

// Returns the hash a signer must sign to authorize tx on the network
// identified by networkID.  The payload is the network id followed by
// the transaction tagged with ENVELOPE_TYPE_TX.
func TxPayloadHash(networkID xdr.Hash, tx xdr.Transaction) (xdr.Hash, error) {
	return XdrSHA256(&xdr.TransactionSignaturePayload{
		NetworkId: networkID,
		TaggedTransaction: xdr.TransactionSignaturePayloadTaggedTransaction{
			Type: xdr.EnvelopeTypeEnvelopeTypeTx,
			Tx:   &tx,
		},
	})
}

// Like TxPayloadHash, for the outer transaction of a fee bump.
func FeeBumpPayloadHash(networkID xdr.Hash,
	tx xdr.FeeBumpTransaction) (xdr.Hash, error) {
	return XdrSHA256(&xdr.TransactionSignaturePayload{
		NetworkId: networkID,
		TaggedTransaction: xdr.TransactionSignaturePayloadTaggedTransaction{
			Type:    xdr.EnvelopeTypeEnvelopeTypeTxFeeBump,
			FeeBump: &tx,
		},
	})
}

// TxSignaturePayload returns the unhashed payload for tx, which is
// what a hardware wallet parses when it displays a transaction.
func TxSignaturePayload(networkID xdr.Hash, tx xdr.Transaction) ([]byte, error) {
	payload := xdr.TransactionSignaturePayload{
		NetworkId: networkID,
		TaggedTransaction: xdr.TransactionSignaturePayloadTaggedTransaction{
			Type: xdr.EnvelopeTypeEnvelopeTypeTx,
			Tx:   &tx,
		},
	}
	b, err := payload.MarshalBinary()
	return b, errors.Wrap(err, "xdr encoding")
}

// Returns the hash signed by an address authorizing a Soroban
// invocation tree.
func AuthPayloadHash(networkID xdr.Hash,
	invocation xdr.SorobanAuthorizedInvocation,
	nonce int64, expirationLedger uint32) (xdr.Hash, error) {
	return XdrSHA256(&xdr.HashIdPreimage{
		Type: xdr.EnvelopeTypeEnvelopeTypeSorobanAuthorization,
		SorobanAuthorization: &xdr.HashIdPreimageSorobanAuthorization{
			NetworkId:                 networkID,
			Nonce:                     xdr.Int64(nonce),
			SignatureExpirationLedger: xdr.Uint32(expirationLedger),
			Invocation:                invocation,
		},
	})
}
