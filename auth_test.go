package stcsign

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xdrpp/stcsign/stcdetail"
)

func testInvocation() xdr.SorobanAuthorizedInvocation {
	var contract xdr.Hash
	contract[0] = 7
	return xdr.SorobanAuthorizedInvocation{
		Function: xdr.SorobanAuthorizedFunction{
			Type: xdr.SorobanAuthorizedFunctionTypeSorobanAuthorizedFunctionTypeContractFn,
			ContractFn: &xdr.InvokeContractArgs{
				ContractAddress: xdr.ScAddress{
					Type:       xdr.ScAddressTypeScAddressTypeContract,
					ContractId: &contract,
				},
				FunctionName: "transfer",
				Args:         []xdr.ScVal{},
			},
		},
		SubInvocations: []xdr.SorobanAuthorizedInvocation{},
	}
}

func addressEntry(addr xdr.ScAddress, nonce int64) xdr.SorobanAuthorizationEntry {
	return xdr.SorobanAuthorizationEntry{
		Credentials: xdr.SorobanCredentials{
			Type: xdr.SorobanCredentialsTypeSorobanCredentialsAddress,
			Address: &xdr.SorobanAddressCredentials{
				Address:   addr,
				Nonce:     xdr.Int64(nonce),
				Signature: xdr.ScVal{Type: xdr.ScValTypeScvVoid},
			},
		},
		RootInvocation: testInvocation(),
	}
}

func sourceEntry() xdr.SorobanAuthorizationEntry {
	return xdr.SorobanAuthorizationEntry{
		Credentials: xdr.SorobanCredentials{
			Type: xdr.SorobanCredentialsTypeSorobanCredentialsSourceAccount,
		},
		RootInvocation: testInvocation(),
	}
}

func contractAddress(b byte) xdr.ScAddress {
	var id xdr.Hash
	id[31] = b
	return xdr.ScAddress{
		Type:       xdr.ScAddressTypeScAddressTypeContract,
		ContractId: &id,
	}
}

func invokeTx(src string, auth ...xdr.SorobanAuthorizationEntry) xdr.Transaction {
	tx := paymentTx(src)
	tx.Operations = []xdr.Operation{{Body: xdr.OperationBody{
		Type: xdr.OperationTypeInvokeHostFunction,
		InvokeHostFunctionOp: &xdr.InvokeHostFunctionOp{
			HostFunction: xdr.HostFunction{
				Type:           xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
				InvokeContract: testInvocation().Function.ContractFn,
			},
			Auth: auth,
		},
	}}}
	return tx
}

// Checks that v is the account credential for pk over the entry's
// payload.
func checkAuthSignature(t *testing.T, pk xdr.Uint256,
	entry xdr.SorobanAuthorizationEntry, expiration uint32) {
	t.Helper()
	creds := entry.Credentials.Address
	require.NotNil(t, creds)
	assert.Equal(t, xdr.Uint32(expiration), creds.SignatureExpirationLedger)

	v := creds.Signature
	require.Equal(t, xdr.ScValTypeScvVec, v.Type)
	vec := **v.Vec
	require.Len(t, vec, 1)
	require.Equal(t, xdr.ScValTypeScvMap, vec[0].Type)
	m := **vec[0].Map
	require.Len(t, m, 2)
	assert.Equal(t, xdr.ScSymbol("public_key"), *m[0].Key.Sym)
	assert.Equal(t, xdr.ScSymbol("signature"), *m[1].Key.Sym)
	assert.Equal(t, pk[:], []byte(*m[0].Val.Bytes))

	hash, err := stcdetail.AuthPayloadHash(stcdetail.NetworkID(testPassphrase),
		entry.RootInvocation, int64(creds.Nonce), expiration)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pk[:], hash[:], *m[1].Val.Bytes),
		"bad auth signature")
}

// Compares XDR values by encoding, since decoding yields empty
// slices where a constructed value has nil.
func assertSameXDR(t *testing.T, want, got interface{}) {
	t.Helper()
	wb, err := xdr.MarshalBase64(want)
	require.NoError(t, err)
	gb, err := xdr.MarshalBase64(got)
	require.NoError(t, err)
	assert.Equal(t, wb, gb)
}

func TestAuthSignature(t *testing.T) {
	k := testKey(t, "alice")
	sig, err := k.Sign([]byte("x"))
	require.NoError(t, err)
	v := AuthSignature(k.PublicKey(), sig)
	b64, err := xdr.MarshalBase64(v)
	require.NoError(t, err)
	var back xdr.ScVal
	require.NoError(t, xdr.SafeUnmarshalBase64(b64, &back))
	assertSameXDR(t, v, back)
}

func TestParseAddress(t *testing.T) {
	k := testKey(t, "alice")
	a, err := ParseAddress(k.Address())
	require.NoError(t, err)
	assert.Equal(t, AccountAddress(k.PublicKey()), a)
	assert.Equal(t, k.Address(), AddressString(a))

	c := contractAddress(9)
	back, err := ParseAddress(AddressString(c))
	require.NoError(t, err)
	assert.True(t, sameAddress(c, back))

	_, err = ParseAddress("not an address")
	assert.Error(t, err)
	_, err = ParseAddress(k.String())
	assert.Error(t, err)
}

func TestSignAuthEntry(t *testing.T) {
	ctx := context.Background()
	alice, bob := testKey(t, "alice"), testKey(t, "bob")
	s := NewLocalSigner(alice)

	own := addressEntry(AccountAddress(alice.PublicKey()), 11)
	signed, err := s.SignAuthEntry(ctx, own, testPassphrase, 500)
	require.NoError(t, err)
	checkAuthSignature(t, alice.PublicKey(), signed, 500)
	assert.Equal(t, xdr.ScValTypeScvVoid, own.Credentials.Address.Signature.Type,
		"input entry modified")

	other := addressEntry(AccountAddress(bob.PublicKey()), 12)
	out, err := s.SignAuthEntry(ctx, other, testPassphrase, 500)
	require.NoError(t, err)
	assert.Equal(t, other, out)

	src := sourceEntry()
	out, err = s.SignAuthEntry(ctx, src, testPassphrase, 500)
	require.NoError(t, err)
	assert.Equal(t, src, out)

	_, err = s.SignAuthEntry(ctx, addressEntry(contractAddress(1), 13),
		testPassphrase, 500)
	var cse *CannotSignError
	require.True(t, errors.As(err, &cse))
	assert.Equal(t, AddressString(contractAddress(1)), cse.Address)
}

func TestSignSorobanAuthorizations(t *testing.T) {
	ctx := context.Background()
	alice, bob := testKey(t, "alice"), testKey(t, "bob")
	signers := []*Signer{NewLocalSigner(alice), NewLocalSigner(bob)}

	tx := invokeTx(alice.Address(),
		sourceEntry(),
		addressEntry(AccountAddress(bob.PublicKey()), 1),
		addressEntry(AccountAddress(alice.PublicKey()), 2))
	out, err := SignSorobanAuthorizations(ctx, tx, signers, nil, 1000,
		testPassphrase)
	require.NoError(t, err)
	require.NotNil(t, out)

	auth := out.Operations[0].Body.InvokeHostFunctionOp.Auth
	require.Len(t, auth, 3)
	assert.Equal(t, sourceEntry(), auth[0])
	checkAuthSignature(t, bob.PublicKey(), auth[1], 1000)
	checkAuthSignature(t, alice.PublicKey(), auth[2], 1000)

	orig := tx.Operations[0].Body.InvokeHostFunctionOp.Auth
	assert.Equal(t, xdr.ScValTypeScvVoid, orig[1].Credentials.Address.Signature.Type,
		"input transaction modified")
}

func TestSignSorobanAuthorizationsNothingToDo(t *testing.T) {
	ctx := context.Background()
	alice := testKey(t, "alice")
	signers := []*Signer{NewLocalSigner(alice)}

	out, err := SignSorobanAuthorizations(ctx, paymentTx(alice.Address()),
		signers, nil, 10, testPassphrase)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = SignSorobanAuthorizations(ctx,
		invokeTx(alice.Address(), sourceEntry()), signers, nil, 10,
		testPassphrase)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = SignSorobanAuthorizations(ctx, invokeTx(alice.Address()),
		signers, nil, 10, testPassphrase)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestSignSorobanAuthorizationsMissing(t *testing.T) {
	ctx := context.Background()
	alice, carol := testKey(t, "alice"), testKey(t, "carol")
	signers := []*Signer{NewLocalSigner(alice)}

	_, err := SignSorobanAuthorizations(ctx,
		invokeTx(alice.Address(),
			addressEntry(AccountAddress(alice.PublicKey()), 1),
			addressEntry(AccountAddress(carol.PublicKey()), 2)),
		signers, nil, 10, testPassphrase)
	var mse *MissingSignerForAddressError
	require.True(t, errors.As(err, &mse))
	assert.Equal(t, carol.Address(), mse.Address)

	_, err = SignSorobanAuthorizations(ctx,
		invokeTx(alice.Address(), addressEntry(contractAddress(3), 1)),
		signers, nil, 10, testPassphrase)
	var cse *CannotSignError
	assert.True(t, errors.As(err, &cse))
}
