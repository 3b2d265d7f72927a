package ledger

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/xdr"
	"github.com/xdrpp/stcsign/apdu"
	"github.com/xdrpp/stcsign/stcdetail"
)

// Device issues Stellar application requests over a Transport.  It
// holds no session state between calls.
type Device struct {
	t   Transport
	log *log.Entry
}

// Configuration reported by the Stellar application.
type AppConfig struct {
	HashSigningEnabled bool
	Version            string
}

func NewDevice(t Transport, logger *log.Entry) *Device {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Device{t: t, log: logger.WithField("backend", "ledger")}
}

func (d *Device) send(ctx context.Context, op string,
	cmd apdu.Command) ([]byte, error) {
	ans, err := d.t.Exchange(ctx, cmd)
	if err != nil {
		return nil, errors.Wrapf(err, "ledger %s", op)
	}
	if !ans.OK() {
		d.log.WithFields(log.F{"op": op, "retcode": ans.ReturnCode}).
			Warn("device returned error status")
		return nil, &APDUExchangeError{Op: op, Code: ans.ReturnCode}
	}
	return ans.Data, nil
}

// PublicKey returns the raw Ed25519 key at path.  With display set,
// the device shows the key and the call blocks until the user
// approves or rejects it.
func (d *Device) PublicKey(ctx context.Context, path apdu.HDPath,
	display bool) (pk xdr.Uint256, err error) {
	data, err := d.send(ctx, "get public key", apdu.GetPublicKey(path, display))
	if err != nil {
		return
	}
	if len(data) != len(pk) {
		return pk, fmt.Errorf("ledger: public key is %d bytes, want %d",
			len(data), len(pk))
	}
	copy(pk[:], data)
	return
}

// SignHash has the device sign a 32-byte transaction hash.  The
// device's public key is fetched on every call to build the hint.
func (d *Device) SignHash(ctx context.Context, path apdu.HDPath,
	hash xdr.Hash) (xdr.DecoratedSignature, error) {
	pk, err := d.PublicKey(ctx, path, false)
	if err != nil {
		return xdr.DecoratedSignature{}, err
	}
	sig, err := d.SignHashRaw(ctx, path, hash)
	if err != nil {
		return xdr.DecoratedSignature{}, err
	}
	return decorate(pk, sig)
}

// SignHashRaw sends only the signing request and returns the bare
// signature.  The caller must already know which key is at path.
func (d *Device) SignHashRaw(ctx context.Context, path apdu.HDPath,
	hash xdr.Hash) ([]byte, error) {
	return d.send(ctx, "sign hash", apdu.SignTxHash(path, hash))
}

// SignTransaction hashes tx for the network and signs the hash,
// returning a V1 envelope carrying the one signature.
func (d *Device) SignTransaction(ctx context.Context, path apdu.HDPath,
	tx xdr.Transaction, passphrase string) (xdr.TransactionEnvelope, error) {
	hash, err := stcdetail.TxPayloadHash(stcdetail.NetworkID(passphrase), tx)
	if err != nil {
		return xdr.TransactionEnvelope{}, err
	}
	sig, err := d.SignHash(ctx, path, hash)
	if err != nil {
		return xdr.TransactionEnvelope{}, err
	}
	return stcdetail.FinishEnvelope(tx, sig), nil
}

// SignTransactionPayload streams the full signature payload to the
// device so it can display the transaction before signing.  Works
// without hash signing enabled in the app settings.
func (d *Device) SignTransactionPayload(ctx context.Context,
	path apdu.HDPath, tx xdr.Transaction,
	passphrase string) (xdr.DecoratedSignature, error) {
	pk, err := d.PublicKey(ctx, path, false)
	if err != nil {
		return xdr.DecoratedSignature{}, err
	}
	payload, err := stcdetail.TxSignaturePayload(
		stcdetail.NetworkID(passphrase), tx)
	if err != nil {
		return xdr.DecoratedSignature{}, err
	}
	var sig []byte
	for _, cmd := range apdu.SignTx(path, payload) {
		if sig, err = d.send(ctx, "sign transaction", cmd); err != nil {
			return xdr.DecoratedSignature{}, err
		}
	}
	return decorate(pk, sig)
}

func (d *Device) AppConfiguration(ctx context.Context) (AppConfig, error) {
	data, err := d.send(ctx, "get app configuration", apdu.GetAppConfiguration())
	if err != nil {
		return AppConfig{}, err
	}
	if len(data) < 4 {
		return AppConfig{}, fmt.Errorf(
			"ledger: app configuration is %d bytes, want 4", len(data))
	}
	return AppConfig{
		HashSigningEnabled: data[0]&1 != 0,
		Version:            fmt.Sprintf("%d.%d.%d", data[1], data[2], data[3]),
	}, nil
}

func decorate(pk xdr.Uint256, sig []byte) (xdr.DecoratedSignature, error) {
	if len(sig) != 64 {
		return xdr.DecoratedSignature{}, fmt.Errorf(
			"ledger: signature is %d bytes, want 64", len(sig))
	}
	return xdr.DecoratedSignature{
		Hint:      stcdetail.Hint(pk),
		Signature: xdr.Signature(sig),
	}, nil
}
