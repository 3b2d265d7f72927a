package stcsign

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/xdr"
	"github.com/xdrpp/stcsign/keystore"
	"github.com/xdrpp/stcsign/stcdetail"
)

// Kind names a signing backend.
type Kind int

const (
	KindLocal Kind = iota
	KindSecureStore
	KindLedger
	KindThreshold
	KindPlugin
)

var kindNames = [...]string{
	KindLocal:       "local",
	KindSecureStore: "secure_store",
	KindLedger:      "ledger",
	KindThreshold:   "threshold",
	KindPlugin:      "plugin",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// A Signer is bound to exactly one backend.  Kind selects the arm;
// the field for that arm holds the backend and all others are nil.
// A Signer whose selected arm is nil stands for a backend that is not
// available here, and every operation on it fails with
// *FeatureNotEnabledError.
//
// A Signer keeps no connection or key material of its own between
// calls, and the signature hint is derived from the backend's public
// key on every call.
type Signer struct {
	Kind        Kind
	Local       *LocalKey
	SecureStore *keystore.Entry
	Ledger      *LedgerKey
	Threshold   *ThresholdKey
	Plugin      *Plugin

	Log *log.Entry
}

func NewLocalSigner(k *LocalKey) *Signer {
	return &Signer{Kind: KindLocal, Local: k}
}

func NewSecureStoreSigner(e *keystore.Entry) *Signer {
	return &Signer{Kind: KindSecureStore, SecureStore: e}
}

func NewLedgerSigner(k *LedgerKey) *Signer {
	return &Signer{Kind: KindLedger, Ledger: k}
}

func NewThresholdSigner(k *ThresholdKey) *Signer {
	return &Signer{Kind: KindThreshold, Threshold: k}
}

func NewPluginSigner(p *Plugin) *Signer {
	return &Signer{Kind: KindPlugin, Plugin: p}
}

func (s *Signer) logger() *log.Entry {
	if s.Log == nil {
		return log.DefaultLogger.WithField("backend", s.Kind.String())
	}
	return s.Log.WithField("backend", s.Kind.String())
}

func (s *Signer) disabled() error {
	return &FeatureNotEnabledError{Backend: s.Kind}
}

// PublicKey returns the raw Ed25519 public key of the signer.
// Plugins mapped to an account address report that account's key.
func (s *Signer) PublicKey(ctx context.Context) (pk xdr.Uint256, err error) {
	switch s.Kind {
	case KindLocal:
		if s.Local == nil {
			return pk, s.disabled()
		}
		return s.Local.PublicKey(), nil
	case KindSecureStore:
		if s.SecureStore == nil {
			return pk, s.disabled()
		}
		return s.SecureStore.PublicKey()
	case KindLedger:
		if s.Ledger == nil {
			return pk, s.disabled()
		}
		return s.Ledger.PublicKey(ctx)
	case KindThreshold:
		if s.Threshold == nil {
			return pk, s.disabled()
		}
		return s.Threshold.PublicKey(), nil
	case KindPlugin:
		if s.Plugin == nil {
			return pk, s.disabled()
		}
		return s.Plugin.PublicKey()
	}
	return pk, s.disabled()
}

// Address returns the address the signer authorizes for.
func (s *Signer) Address(ctx context.Context) (xdr.ScAddress, error) {
	if s.Kind == KindPlugin && s.Plugin != nil {
		return s.Plugin.Address, nil
	}
	pk, err := s.PublicKey(ctx)
	if err != nil {
		return xdr.ScAddress{}, err
	}
	return AccountAddress(pk), nil
}

// signPayload signs a 32-byte payload and returns the raw signature
// with the public key that made it.  A non-nil known saves a hardware
// signer from asking the device for its key again.
func (s *Signer) signPayload(ctx context.Context, payload xdr.Hash,
	known *xdr.Uint256) (sig []byte, pk xdr.Uint256, err error) {
	switch s.Kind {
	case KindLocal:
		if s.Local == nil {
			return nil, pk, s.disabled()
		}
		sig, err = s.Local.Sign(payload[:])
		return sig, s.Local.PublicKey(), err
	case KindSecureStore:
		if s.SecureStore == nil {
			return nil, pk, s.disabled()
		}
		return s.SecureStore.Sign(payload[:])
	case KindLedger:
		if s.Ledger == nil {
			return nil, pk, s.disabled()
		}
		if known != nil {
			return s.Ledger.SignHashAs(ctx, payload, *known)
		}
		return s.Ledger.SignHash(ctx, payload)
	case KindThreshold:
		if s.Threshold == nil {
			return nil, pk, s.disabled()
		}
		sig, err = s.Threshold.Sign(ctx, payload[:])
		return sig, s.Threshold.PublicKey(), err
	case KindPlugin:
		if s.Plugin == nil {
			return nil, pk, s.disabled()
		}
		return nil, pk, &PluginError{Plugin: s.Plugin.Name,
			Err: errors.New("plugins do not sign bare payloads")}
	}
	return nil, pk, s.disabled()
}

// SignTxHash signs a transaction hash and returns the decorated
// signature.
func (s *Signer) SignTxHash(ctx context.Context,
	hash xdr.Hash) (xdr.DecoratedSignature, error) {
	sig, pk, err := s.signPayload(ctx, hash, nil)
	if err != nil {
		return xdr.DecoratedSignature{}, err
	}
	return xdr.DecoratedSignature{
		Hint:      stcdetail.Hint(pk),
		Signature: xdr.Signature(sig),
	}, nil
}

// SignTx signs a V1 or fee-bump envelope for the network named by
// passphrase and returns a copy of e with the signature appended
// after any already present.  e itself is not modified.
func (s *Signer) SignTx(ctx context.Context, e *xdr.TransactionEnvelope,
	passphrase string) (xdr.TransactionEnvelope, error) {
	hash, err := stcdetail.EnvelopeHash(stcdetail.NetworkID(passphrase), e)
	if err != nil {
		return xdr.TransactionEnvelope{}, err
	}
	l := s.logger().WithField("tx_hash", fmt.Sprintf("%x", hash[:]))

	var sigs []xdr.DecoratedSignature
	switch {
	case s.Kind == KindLocal && s.Local != nil && s.Local.Prompt:
		if !stcdetail.Confirm(fmt.Sprintf(
			"Sign transaction %x? [y/N] ", hash[:])) {
			l.Info("signing declined")
			return xdr.TransactionEnvelope{}, ErrUserCancelledSigning
		}
	case s.Kind == KindPlugin && s.Plugin != nil:
		sigs, err = s.Plugin.SignTx(ctx, e, hash, passphrase)
	case s.Kind == KindLedger && s.Ledger != nil && s.Ledger.ClearSign &&
		e.Type == xdr.EnvelopeTypeEnvelopeTypeTx:
		var sig xdr.DecoratedSignature
		sig, err = s.Ledger.SignTransactionPayload(ctx, e.V1.Tx, passphrase)
		sigs = append(sigs, sig)
	}
	if err != nil {
		return xdr.TransactionEnvelope{}, err
	}
	if sigs == nil {
		sig, err := s.SignTxHash(ctx, hash)
		if err != nil {
			return xdr.TransactionEnvelope{}, err
		}
		sigs = append(sigs, sig)
	}

	out := copyEnvelope(e)
	for _, sig := range sigs {
		if err := stcdetail.AppendSignature(&out, sig); err != nil {
			return xdr.TransactionEnvelope{}, err
		}
	}
	l.Info("signed transaction")
	return out, nil
}

// SignTransaction signs tx and returns a V1 envelope holding it and
// the one new signature.
func (s *Signer) SignTransaction(ctx context.Context, tx xdr.Transaction,
	passphrase string) (xdr.TransactionEnvelope, error) {
	e := xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1:   &xdr.TransactionV1Envelope{Tx: tx},
	}
	return s.SignTx(ctx, &e, passphrase)
}

// Shallow copy of e with its own signature list.
func copyEnvelope(e *xdr.TransactionEnvelope) xdr.TransactionEnvelope {
	out := *e
	switch e.Type {
	case xdr.EnvelopeTypeEnvelopeTypeTx:
		v1 := *e.V1
		v1.Signatures = append([]xdr.DecoratedSignature(nil), v1.Signatures...)
		out.V1 = &v1
	case xdr.EnvelopeTypeEnvelopeTypeTxFeeBump:
		fb := *e.FeeBump
		fb.Signatures = append([]xdr.DecoratedSignature(nil), fb.Signatures...)
		out.FeeBump = &fb
	}
	return out
}
