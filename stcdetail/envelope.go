package stcdetail

import (
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"
)

var ErrUnsupportedEnvelopeType = errors.New(
	"unsupported transaction envelope type")

// Hint returns the last four bytes of a raw public key, which
// accompany a signature made with that key.
func Hint(pk xdr.Uint256) (h xdr.SignatureHint) {
	copy(h[:], pk[len(pk)-len(h):])
	return
}

// FinishEnvelope wraps tx and one signature in a V1 envelope.
func FinishEnvelope(tx xdr.Transaction,
	sig xdr.DecoratedSignature) xdr.TransactionEnvelope {
	return xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1: &xdr.TransactionV1Envelope{
			Tx:         tx,
			Signatures: []xdr.DecoratedSignature{sig},
		},
	}
}

// Signatures returns a pointer to the signature list of a V1 or fee
// bump envelope.  Legacy V0 envelopes are rejected.
func Signatures(e *xdr.TransactionEnvelope) (*[]xdr.DecoratedSignature, error) {
	switch e.Type {
	case xdr.EnvelopeTypeEnvelopeTypeTx:
		if e.V1 != nil {
			return &e.V1.Signatures, nil
		}
	case xdr.EnvelopeTypeEnvelopeTypeTxFeeBump:
		if e.FeeBump != nil {
			return &e.FeeBump.Signatures, nil
		}
	}
	return nil, errors.Wrapf(ErrUnsupportedEnvelopeType, "%s", e.Type)
}

// AppendSignature appends sig to the envelope's signature list,
// preserving the order of the signatures already present.
func AppendSignature(e *xdr.TransactionEnvelope,
	sig xdr.DecoratedSignature) error {
	sigs, err := Signatures(e)
	if err != nil {
		return err
	}
	*sigs = append(*sigs, sig)
	return nil
}

// EnvelopeHash returns the hash that signatures on e must cover.
func EnvelopeHash(networkID xdr.Hash, e *xdr.TransactionEnvelope) (xdr.Hash, error) {
	switch e.Type {
	case xdr.EnvelopeTypeEnvelopeTypeTx:
		if e.V1 != nil {
			return TxPayloadHash(networkID, e.V1.Tx)
		}
	case xdr.EnvelopeTypeEnvelopeTypeTxFeeBump:
		if e.FeeBump != nil {
			return FeeBumpPayloadHash(networkID, e.FeeBump.Tx)
		}
	}
	return xdr.Hash{}, errors.Wrapf(ErrUnsupportedEnvelopeType, "%s", e.Type)
}
