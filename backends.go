package stcsign

import (
	"context"

	"github.com/stellar/go/xdr"
	"github.com/xdrpp/stcsign/apdu"
	"github.com/xdrpp/stcsign/ledger"
	"github.com/xdrpp/stcsign/threshold"
)

// One key on a hardware wallet.
type LedgerKey struct {
	Device *ledger.Device
	Path   apdu.HDPath

	// Stream the whole transaction to the device so it can be
	// displayed, instead of signing only its hash.
	ClearSign bool
}

func NewLedgerKey(d *ledger.Device, index uint32) *LedgerKey {
	return &LedgerKey{Device: d, Path: apdu.StellarPath(index)}
}

func (k *LedgerKey) PublicKey(ctx context.Context) (xdr.Uint256, error) {
	return k.Device.PublicKey(ctx, k.Path, false)
}

func (k *LedgerKey) SignHash(ctx context.Context,
	hash xdr.Hash) ([]byte, xdr.Uint256, error) {
	pk, err := k.Device.PublicKey(ctx, k.Path, false)
	if err != nil {
		return nil, pk, err
	}
	sig, err := k.Device.SignHashRaw(ctx, k.Path, hash)
	return sig, pk, err
}

// SignHashAs signs with a public key the caller fetched moments ago,
// skipping the key request.
func (k *LedgerKey) SignHashAs(ctx context.Context, hash xdr.Hash,
	pk xdr.Uint256) ([]byte, xdr.Uint256, error) {
	sig, err := k.Device.SignHashRaw(ctx, k.Path, hash)
	return sig, pk, err
}

func (k *LedgerKey) SignTransactionPayload(ctx context.Context,
	tx xdr.Transaction, passphrase string) (xdr.DecoratedSignature, error) {
	return k.Device.SignTransactionPayload(ctx, k.Path, tx, passphrase)
}

// A group key whose signatures come from a threshold of share
// holders.
type ThresholdKey struct {
	Coordinator *threshold.Coordinator
}

func (k *ThresholdKey) PublicKey() xdr.Uint256 {
	return xdr.Uint256(k.Coordinator.GroupKey)
}

func (k *ThresholdKey) Sign(ctx context.Context, msg []byte) ([]byte, error) {
	return k.Coordinator.Sign(ctx, msg)
}
