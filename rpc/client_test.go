package rpc

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"testing"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/pkg/errors"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, methods handler.Map) *Client {
	bridge := jhttp.NewBridge(methods, &jhttp.BridgeOptions{})
	srv := httptest.NewServer(bridge)
	t.Cleanup(func() {
		srv.Close()
		bridge.Close()
	})
	c := NewClient(srv.URL, nil)
	t.Cleanup(func() { c.Close() })
	return c
}

func testEnvelope() xdr.TransactionEnvelope {
	src := keypair.MustRandom()
	return xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1: &xdr.TransactionV1Envelope{
			Tx: xdr.Transaction{
				SourceAccount: xdr.MustMuxedAddress(src.Address()),
				Fee:           100,
				SeqNum:        1,
				Cond:          xdr.Preconditions{Type: xdr.PreconditionTypePrecondNone},
				Operations: []xdr.Operation{{Body: xdr.OperationBody{
					Type: xdr.OperationTypeInvokeHostFunction,
					InvokeHostFunctionOp: &xdr.InvokeHostFunctionOp{
						HostFunction: xdr.HostFunction{
							Type: xdr.HostFunctionTypeHostFunctionTypeUploadContractWasm,
							Wasm: &[]byte{0, 0x61, 0x73, 0x6d},
						},
					},
				}}},
			},
		},
	}
}

func testAuthEntry() xdr.SorobanAuthorizationEntry {
	return xdr.SorobanAuthorizationEntry{
		Credentials: xdr.SorobanCredentials{
			Type: xdr.SorobanCredentialsTypeSorobanCredentialsSourceAccount,
		},
		RootInvocation: xdr.SorobanAuthorizedInvocation{
			Function: xdr.SorobanAuthorizedFunction{
				Type: xdr.SorobanAuthorizedFunctionTypeSorobanAuthorizedFunctionTypeContractFn,
				ContractFn: &xdr.InvokeContractArgs{
					ContractAddress: xdr.ScAddress{
						Type:       xdr.ScAddressTypeScAddressTypeContract,
						ContractId: &xdr.Hash{1, 2, 3},
					},
					FunctionName: "hello",
					Args:         []xdr.ScVal{},
				},
			},
			SubInvocations: []xdr.SorobanAuthorizedInvocation{},
		},
	}
}

func TestGetLatestLedger(t *testing.T) {
	c := newServer(t, handler.Map{
		"getLatestLedger": handler.New(func(ctx context.Context) (GetLatestLedgerResponse, error) {
			return GetLatestLedgerResponse{Hash: "ab", ProtocolVersion: 20,
				Sequence: 4242}, nil
		}),
	})
	res, err := c.GetLatestLedger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(4242), res.Sequence)
	assert.Equal(t, uint32(20), res.ProtocolVersion)
	assert.Equal(t, "ledger 4242 (protocol 20)", res.String())
}

func TestGetNetwork(t *testing.T) {
	c := newServer(t, handler.Map{
		"getNetwork": handler.New(func(ctx context.Context) (GetNetworkResponse, error) {
			return GetNetworkResponse{Passphrase: "Test SDF Network ; September 2015",
				ProtocolVersion: 20}, nil
		}),
	})
	res, err := c.GetNetwork(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Test SDF Network ; September 2015", res.Passphrase)
}

func TestSimulateTransaction(t *testing.T) {
	env := testEnvelope()
	entry := testAuthEntry()
	entryB64, err := xdr.MarshalBase64(entry)
	require.NoError(t, err)
	data := xdr.SorobanTransactionData{ResourceFee: 1234}
	dataB64, err := xdr.MarshalBase64(data)
	require.NoError(t, err)

	var got SimulateTransactionRequest
	c := newServer(t, handler.Map{
		"simulateTransaction": handler.New(func(ctx context.Context,
			req SimulateTransactionRequest) (SimulateTransactionResponse, error) {
			got = req
			return SimulateTransactionResponse{
				TransactionData: dataB64,
				MinResourceFee:  99,
				Results: []SimulateHostFunctionResult{
					{Auth: []string{entryB64}, XDR: "AAAAAQ=="},
				},
				LatestLedger: 77,
			}, nil
		}),
	})

	res, err := c.SimulateTransaction(context.Background(), &env)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(got.Transaction)
	require.NoError(t, err)
	want, err := env.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, want, raw)

	assert.Equal(t, int64(77), res.LatestLedger)
	assert.Equal(t, int64(99), res.MinResourceFee)
	auth, err := res.Auth()
	require.NoError(t, err)
	require.Len(t, auth, 1)
	assert.Equal(t, xdr.ScSymbol("hello"),
		auth[0].RootInvocation.Function.ContractFn.FunctionName)
	d, err := res.Data()
	require.NoError(t, err)
	assert.Equal(t, xdr.Int64(1234), d.ResourceFee)
}

func TestSimulateTransactionError(t *testing.T) {
	env := testEnvelope()
	c := newServer(t, handler.Map{
		"simulateTransaction": handler.New(func(ctx context.Context,
			req SimulateTransactionRequest) (SimulateTransactionResponse, error) {
			return SimulateTransactionResponse{Error: "host invocation failed"}, nil
		}),
	})
	_, err := c.SimulateTransaction(context.Background(), &env)
	var simErr *SimulationError
	require.True(t, errors.As(err, &simErr))
	assert.Equal(t, "host invocation failed", simErr.Message)
}

func TestRPCError(t *testing.T) {
	c := newServer(t, handler.Map{
		"getLatestLedger": handler.New(func(ctx context.Context) (GetLatestLedgerResponse, error) {
			return GetLatestLedgerResponse{}, &jrpc2.Error{
				Code:    jrpc2.InternalError,
				Message: "could not get latest ledger",
			}
		}),
	})
	_, err := c.GetLatestLedger(context.Background())
	require.Error(t, err)
	var rpcErr *jrpc2.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, jrpc2.InternalError, rpcErr.Code)
	assert.Contains(t, err.Error(), "rpc getLatestLedger")
}

func TestBadAuthEntry(t *testing.T) {
	res := SimulateTransactionResponse{
		Results: []SimulateHostFunctionResult{{Auth: []string{"!!"}}},
	}
	_, err := res.Auth()
	assert.Error(t, err)
	d, err := res.Data()
	assert.NoError(t, err)
	assert.Nil(t, d)
}
