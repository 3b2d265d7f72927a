// Package rpc is a small JSON-RPC client for the Soroban RPC methods
// the signing flows depend on.
package rpc

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/pkg/errors"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/xdr"
)

type GetLatestLedgerResponse struct {
	// Hex-encoded ledger hash.
	Hash            string `json:"id"`
	ProtocolVersion uint32 `json:"protocolVersion,string"`
	Sequence        uint32 `json:"sequence"`
}

type GetNetworkResponse struct {
	FriendbotURL    string `json:"friendbotUrl,omitempty"`
	Passphrase      string `json:"passphrase"`
	ProtocolVersion int    `json:"protocolVersion,string"`
}

type SimulateTransactionRequest struct {
	Transaction string `json:"transaction"`
}

type SimulateTransactionCost struct {
	CPUInstructions uint64 `json:"cpuInsns,string"`
	MemoryBytes     uint64 `json:"memBytes,string"`
}

// Result of one host function.  Auth holds base64
// SorobanAuthorizationEntry values.
type SimulateHostFunctionResult struct {
	Auth []string `json:"auth"`
	XDR  string   `json:"xdr"`
}

type RestorePreamble struct {
	TransactionData string `json:"transactionData"`
	MinResourceFee  int64  `json:"minResourceFee,string"`
}

type SimulateTransactionResponse struct {
	Error           string                       `json:"error,omitempty"`
	TransactionData string                       `json:"transactionData,omitempty"`
	MinResourceFee  int64                        `json:"minResourceFee,string,omitempty"`
	Events          []string                     `json:"events,omitempty"`
	Results         []SimulateHostFunctionResult `json:"results,omitempty"`
	Cost            SimulateTransactionCost      `json:"cost,omitempty"`
	RestorePreamble *RestorePreamble             `json:"restorePreamble,omitempty"`
	LatestLedger    int64                        `json:"latestLedger,string"`
}

// SimulationError is returned when the server simulated the
// transaction and reported a failure.
type SimulationError struct {
	Message string
}

func (e *SimulationError) Error() string {
	return "transaction simulation failed: " + e.Message
}

// Auth decodes the authorization entries of every result in order.
func (r *SimulateTransactionResponse) Auth() ([]xdr.SorobanAuthorizationEntry, error) {
	var ret []xdr.SorobanAuthorizationEntry
	for i := range r.Results {
		for j, b64 := range r.Results[i].Auth {
			var entry xdr.SorobanAuthorizationEntry
			if err := xdr.SafeUnmarshalBase64(b64, &entry); err != nil {
				return nil, errors.Wrapf(err, "result %d auth %d", i, j)
			}
			ret = append(ret, entry)
		}
	}
	return ret, nil
}

// Data decodes the transaction resource data, if any.
func (r *SimulateTransactionResponse) Data() (*xdr.SorobanTransactionData, error) {
	if r.TransactionData == "" {
		return nil, nil
	}
	var data xdr.SorobanTransactionData
	if err := xdr.SafeUnmarshalBase64(r.TransactionData, &data); err != nil {
		return nil, errors.Wrap(err, "transaction data")
	}
	return &data, nil
}

type Client struct {
	URL    string
	client *jrpc2.Client
	log    *log.Entry
}

// NewClient connects to the Soroban RPC server at url.  No request
// is made until a method is called.
func NewClient(url string, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.DefaultLogger
	}
	ch := jhttp.NewChannel(url, nil)
	return &Client{
		URL:    url,
		client: jrpc2.NewClient(ch, nil),
		log:    logger.WithField("rpc_url", url),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) call(ctx context.Context, method string,
	req, res interface{}) error {
	c.log.WithField("method", method).Debug("rpc request")
	if err := c.client.CallResult(ctx, method, req, res); err != nil {
		return errors.Wrapf(err, "rpc %s", method)
	}
	return nil
}

func (c *Client) GetLatestLedger(ctx context.Context) (*GetLatestLedgerResponse, error) {
	var res GetLatestLedgerResponse
	if err := c.call(ctx, "getLatestLedger", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetNetwork(ctx context.Context) (*GetNetworkResponse, error) {
	var res GetNetworkResponse
	if err := c.call(ctx, "getNetwork", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SimulateTransaction runs a preflight of e.  A response that
// carries an error message is returned as *SimulationError.
func (c *Client) SimulateTransaction(ctx context.Context,
	e *xdr.TransactionEnvelope) (*SimulateTransactionResponse, error) {
	raw, err := e.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "encoding transaction")
	}
	req := SimulateTransactionRequest{
		Transaction: base64.StdEncoding.EncodeToString(raw),
	}
	var res SimulateTransactionResponse
	if err := c.call(ctx, "simulateTransaction", req, &res); err != nil {
		return nil, err
	}
	if res.Error != "" {
		c.log.WithField("error", res.Error).Info("simulation failed")
		return nil, &SimulationError{Message: res.Error}
	}
	return &res, nil
}

func (r *GetLatestLedgerResponse) String() string {
	return fmt.Sprintf("ledger %d (protocol %d)", r.Sequence, r.ProtocolVersion)
}
