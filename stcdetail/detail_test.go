package stcdetail_test

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	. "github.com/xdrpp/stcsign/stcdetail"
)

func testTx(t *testing.T) xdr.Transaction {
	kp := keypair.MustRandom()
	return xdr.Transaction{
		SourceAccount: xdr.MustMuxedAddress(kp.Address()),
		Fee:           100,
		SeqNum:        42,
		Cond:          xdr.Preconditions{Type: xdr.PreconditionTypePrecondNone},
		Memo:          xdr.Memo{Type: xdr.MemoTypeMemoNone},
	}
}

func TestNetworkID(t *testing.T) {
	id := NetworkID(network.TestNetworkPassphrase)
	assert.Equal(t,
		"cee0302d59844d32bdca915c8203dd44b33fbb7edc19051ea37abedf28ecd472",
		hex.EncodeToString(id[:]))
	assert.Equal(t, network.ID(network.PublicNetworkPassphrase),
		[32]byte(NetworkID(network.PublicNetworkPassphrase)))
}

func TestTxPayloadHash(t *testing.T) {
	tx := testTx(t)
	h1, err := TxPayloadHash(NetworkID(network.TestNetworkPassphrase), tx)
	require.NoError(t, err)
	h2, err := TxPayloadHash(NetworkID(network.TestNetworkPassphrase), tx)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	want, err := network.HashTransaction(tx, network.TestNetworkPassphrase)
	require.NoError(t, err)
	assert.Equal(t, want, [32]byte(h1))

	other, err := TxPayloadHash(NetworkID(network.PublicNetworkPassphrase), tx)
	require.NoError(t, err)
	assert.NotEqual(t, h1, other)
}

func TestFeeBumpPayloadHash(t *testing.T) {
	tx := testTx(t)
	fb := xdr.FeeBumpTransaction{
		FeeSource: tx.SourceAccount,
		Fee:       400,
		InnerTx: xdr.FeeBumpTransactionInnerTx{
			Type: xdr.EnvelopeTypeEnvelopeTypeTx,
			V1:   &xdr.TransactionV1Envelope{Tx: tx},
		},
	}
	h, err := FeeBumpPayloadHash(NetworkID(network.TestNetworkPassphrase), fb)
	require.NoError(t, err)
	want, err := network.HashFeeBumpTransaction(fb, network.TestNetworkPassphrase)
	require.NoError(t, err)
	assert.Equal(t, want, [32]byte(h))
}

func TestTxSignaturePayload(t *testing.T) {
	tx := testTx(t)
	id := NetworkID(network.TestNetworkPassphrase)
	payload, err := TxSignaturePayload(id, tx)
	require.NoError(t, err)
	assert.Equal(t, id[:], payload[:32])
	h, err := TxPayloadHash(id, tx)
	require.NoError(t, err)
	sum, err := XdrSHA256(&xdr.TransactionSignaturePayload{
		NetworkId: id,
		TaggedTransaction: xdr.TransactionSignaturePayloadTaggedTransaction{
			Type: xdr.EnvelopeTypeEnvelopeTypeTx,
			Tx:   &tx,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, h, sum)
}

func TestAuthPayloadHash(t *testing.T) {
	inv := xdr.SorobanAuthorizedInvocation{
		Function: xdr.SorobanAuthorizedFunction{
			Type: xdr.SorobanAuthorizedFunctionTypeSorobanAuthorizedFunctionTypeContractFn,
			ContractFn: &xdr.InvokeContractArgs{
				ContractAddress: xdr.ScAddress{
					Type:       xdr.ScAddressTypeScAddressTypeContract,
					ContractId: &xdr.Hash{1, 2, 3},
				},
				FunctionName: "transfer",
			},
		},
	}
	id := NetworkID(network.TestNetworkPassphrase)
	h1, err := AuthPayloadHash(id, inv, 7, 1000)
	require.NoError(t, err)
	h2, err := AuthPayloadHash(id, inv, 8, 1000)
	require.NoError(t, err)
	h3, err := AuthPayloadHash(id, inv, 7, 1001)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.NotEqual(t, h1, h3)

	again, err := AuthPayloadHash(id, inv, 7, 1000)
	require.NoError(t, err)
	assert.Equal(t, h1, again)
}

func TestGather(t *testing.T) {
	out, err := Gather(5, func(i int) (int, error) { return i * i, nil })
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 4, 9, 16}, out)

	_, err = Gather(4, func(i int) (int, error) {
		if i%2 == 1 {
			return 0, fmt.Errorf("odd")
		}
		return i, nil
	})
	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.Len(t, errs, 2)
	assert.Equal(t, "1: odd\n3: odd", err.Error())
}

func TestSafeWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "x.toml")
	require.NoError(t, SafeWriteFile(path, []byte("one"), 0600))
	require.NoError(t, SafeWriteFile(path, []byte("two"), 0600))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))
	b, err = os.ReadFile(path + "~")
	require.NoError(t, err)
	assert.Equal(t, "one", string(b))
	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))

	err = SafeCreateFile(path, []byte("three"), 0600)
	assert.True(t, errors.Is(err, os.ErrExist))

	err = UpdateFile(path, 0600, func(*os.File) error {
		return io.ErrUnexpectedEOF
	})
	assert.Equal(t, io.ErrUnexpectedEOF, err)
	b, _ = os.ReadFile(path)
	assert.Equal(t, "two", string(b))

	assert.Equal(t, ErrIsDirectory(dir), SafeWriteFile(dir, nil, 0600))
}

func TestZero(t *testing.T) {
	b := []byte("secret")
	Zero(b)
	assert.Equal(t, make([]byte, 6), b)
	Zero(nil)

	var seed [32]byte
	seed[3] = 9
	Zero32(&seed)
	assert.Equal(t, [32]byte{}, seed)
}

func TestConfirm(t *testing.T) {
	defer func(r io.Reader, w io.Writer) {
		PassphraseFile, PassphrasePrompt = r, w
	}(PassphraseFile, PassphrasePrompt)
	PassphrasePrompt = io.Discard

	for in, want := range map[string]bool{
		"y\n":     true,
		"YES\r\n": true,
		"n\n":     false,
		"\n":      false,
		"":        false,
		"sure\n":  false,
		"yeah\n":  false,
	} {
		PassphraseFile = strings.NewReader(in)
		assert.Equal(t, want, Confirm("ok? "), "%q", in)
	}
}

func TestGetPass(t *testing.T) {
	defer func(r io.Reader) { PassphraseFile = r }(PassphraseFile)
	PassphraseFile = strings.NewReader("hunter2\nnext\n")
	assert.Equal(t, []byte("hunter2"), GetPass("pw: "))
	assert.Equal(t, []byte("next"), GetPass2("pw: "))
}
