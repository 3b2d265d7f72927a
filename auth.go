package stcsign

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
	"github.com/xdrpp/stcsign/stcdetail"
)

// AccountAddress returns the account address of a raw public key.
func AccountAddress(pk xdr.Uint256) xdr.ScAddress {
	return xdr.ScAddress{
		Type: xdr.ScAddressTypeScAddressTypeAccount,
		AccountId: &xdr.AccountId{
			Type:    xdr.PublicKeyTypePublicKeyTypeEd25519,
			Ed25519: &pk,
		},
	}
}

// ParseAddress parses an account (G...) or contract (C...) strkey.
func ParseAddress(s string) (xdr.ScAddress, error) {
	switch v, err := strkey.Version(s); {
	case err != nil:
		return xdr.ScAddress{}, errors.Wrapf(err, "address %q", s)
	case v == strkey.VersionByteAccountID:
		var pk xdr.Uint256
		copy(pk[:], strkey.MustDecode(v, s))
		return AccountAddress(pk), nil
	case v == strkey.VersionByteContract:
		var id xdr.Hash
		copy(id[:], strkey.MustDecode(v, s))
		return xdr.ScAddress{
			Type:       xdr.ScAddressTypeScAddressTypeContract,
			ContractId: &id,
		}, nil
	}
	return xdr.ScAddress{}, fmt.Errorf("address %q is not an account or contract", s)
}

// AddressString renders an address in strkey format.
func AddressString(a xdr.ScAddress) string {
	switch {
	case a.Type == xdr.ScAddressTypeScAddressTypeAccount &&
		a.AccountId != nil && a.AccountId.Ed25519 != nil:
		return strkey.MustEncode(strkey.VersionByteAccountID, a.AccountId.Ed25519[:])
	case a.Type == xdr.ScAddressTypeScAddressTypeContract && a.ContractId != nil:
		return strkey.MustEncode(strkey.VersionByteContract, a.ContractId[:])
	}
	return fmt.Sprintf("%v", a.Type)
}

func sameAddress(a, b xdr.ScAddress) bool {
	ab, err1 := a.MarshalBinary()
	bb, err2 := b.MarshalBinary()
	return err1 == nil && err2 == nil && bytes.Equal(ab, bb)
}

func accountKey(a xdr.ScAddress) (xdr.Uint256, bool) {
	if a.Type != xdr.ScAddressTypeScAddressTypeAccount || a.AccountId == nil ||
		a.AccountId.Ed25519 == nil {
		return xdr.Uint256{}, false
	}
	return *a.AccountId.Ed25519, true
}

func symbol(s string) xdr.ScVal {
	sym := xdr.ScSymbol(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}
}

func scBytes(b []byte) xdr.ScVal {
	v := xdr.ScBytes(b)
	return xdr.ScVal{Type: xdr.ScValTypeScvBytes, Bytes: &v}
}

// AuthSignature builds the credential an account contract expects:
// a vector holding one map from "public_key" and "signature" to
// their bytes.
func AuthSignature(pk xdr.Uint256, sig []byte) xdr.ScVal {
	m := &xdr.ScMap{
		{Key: symbol("public_key"), Val: scBytes(pk[:])},
		{Key: symbol("signature"), Val: scBytes(sig)},
	}
	vec := &xdr.ScVec{{Type: xdr.ScValTypeScvMap, Map: &m}}
	return xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &vec}
}

// Signs one address-credentialed entry unconditionally.
func (s *Signer) signEntry(ctx context.Context,
	entry xdr.SorobanAuthorizationEntry, passphrase string,
	expiration uint32) (xdr.SorobanAuthorizationEntry, error) {
	creds := *entry.Credentials.Address
	hash, err := stcdetail.AuthPayloadHash(stcdetail.NetworkID(passphrase),
		entry.RootInvocation, int64(creds.Nonce), expiration)
	if err != nil {
		return entry, err
	}
	if s.Kind == KindPlugin && s.Plugin != nil {
		creds.Signature, err = s.Plugin.SignAuthEntry(ctx, hash,
			entry.RootInvocation, int64(creds.Nonce), expiration, passphrase)
	} else {
		// Callers matched this signer to the account already.
		var known *xdr.Uint256
		if pk, ok := accountKey(creds.Address); ok {
			known = &pk
		}
		var sig []byte
		var pk xdr.Uint256
		if sig, pk, err = s.signPayload(ctx, hash, known); err == nil {
			creds.Signature = AuthSignature(pk, sig)
		}
	}
	if err != nil {
		return entry, err
	}
	creds.SignatureExpirationLedger = xdr.Uint32(expiration)
	entry.Credentials.Address = &creds
	s.logger().WithField("address", AddressString(creds.Address)).
		Debug("signed authorization entry")
	return entry, nil
}

// SignAuthEntry signs entry if its credentials name this signer's
// address, setting the signature and its expiration ledger.  Entries
// with source-account credentials and entries for other accounts are
// returned unchanged.  Entries for contracts fail with
// *CannotSignError unless this signer is a plugin mapped to that
// contract.
func (s *Signer) SignAuthEntry(ctx context.Context,
	entry xdr.SorobanAuthorizationEntry, passphrase string,
	expiration uint32) (xdr.SorobanAuthorizationEntry, error) {
	if entry.Credentials.Type != xdr.SorobanCredentialsTypeSorobanCredentialsAddress ||
		entry.Credentials.Address == nil {
		return entry, nil
	}
	addr := entry.Credentials.Address.Address
	mine, err := s.Address(ctx)
	if err != nil {
		return entry, err
	}
	if sameAddress(addr, mine) {
		return s.signEntry(ctx, entry, passphrase, expiration)
	}
	if _, ok := accountKey(addr); !ok {
		return entry, &CannotSignError{Address: AddressString(addr)}
	}
	return entry, nil
}

// Returns the auth list of a transaction's single host function
// invocation, or nil if tx is not one.
func invokeOp(tx *xdr.Transaction) *xdr.InvokeHostFunctionOp {
	if len(tx.Operations) != 1 ||
		tx.Operations[0].Body.Type != xdr.OperationTypeInvokeHostFunction {
		return nil
	}
	return tx.Operations[0].Body.InvokeHostFunctionOp
}

// SignSorobanAuthorizations signs every address-credentialed
// authorization entry of tx.  For each entry a plugin mapped to the
// address is used if there is one, otherwise the signer whose public
// key matches the account.  A contract with no plugin fails with
// *CannotSignError and an account with no signer with
// *MissingSignerForAddressError.
//
// It returns nil if tx has no entries to sign.  Otherwise the result
// is a copy of tx; tx itself is not modified.
func SignSorobanAuthorizations(ctx context.Context, tx xdr.Transaction,
	signers []*Signer, plugins []*Plugin, expiration uint32,
	passphrase string) (*xdr.Transaction, error) {
	op := invokeOp(&tx)
	if op == nil {
		return nil, nil
	}

	signed := make([]xdr.SorobanAuthorizationEntry, len(op.Auth))
	changed := false
	for i, entry := range op.Auth {
		signed[i] = entry
		if entry.Credentials.Type != xdr.SorobanCredentialsTypeSorobanCredentialsAddress ||
			entry.Credentials.Address == nil {
			continue
		}
		addr := entry.Credentials.Address.Address
		signer, err := findSigner(ctx, addr, signers, plugins)
		if err != nil {
			return nil, err
		}
		if signed[i], err = signer.signEntry(ctx, entry, passphrase,
			expiration); err != nil {
			return nil, err
		}
		changed = true
	}
	if !changed {
		return nil, nil
	}

	newOp := *op
	newOp.Auth = signed
	out := tx
	out.Operations = []xdr.Operation{tx.Operations[0]}
	out.Operations[0].Body.InvokeHostFunctionOp = &newOp
	return &out, nil
}

func findSigner(ctx context.Context, addr xdr.ScAddress, signers []*Signer,
	plugins []*Plugin) (*Signer, error) {
	for _, p := range plugins {
		if sameAddress(p.Address, addr) {
			return NewPluginSigner(p), nil
		}
	}
	needle, ok := accountKey(addr)
	if !ok {
		return nil, &CannotSignError{Address: AddressString(addr)}
	}
	for _, s := range signers {
		if pk, err := s.PublicKey(ctx); err == nil && pk == needle {
			return s, nil
		}
	}
	return nil, &MissingSignerForAddressError{Address: AddressString(addr)}
}
