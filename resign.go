package stcsign

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/xdr"
	"github.com/xdrpp/stcsign/rpc"
)

// Ledgers an authorization signature stays valid for by default.
const DefaultAuthValidity = 60

// The RPC methods a Resigner needs.  *rpc.Client implements it.
type Simulator interface {
	SimulateTransaction(ctx context.Context,
		e *xdr.TransactionEnvelope) (*rpc.SimulateTransactionResponse, error)
	GetLatestLedger(ctx context.Context) (*rpc.GetLatestLedgerResponse, error)
}

// A Resigner refreshes the authorization entries of a host function
// invocation from simulation and signs the ones it has keys for.
type Resigner struct {
	RPC     Simulator
	Network Network
	Signers []*Signer
	Plugins []*Plugin

	// Absolute expiration ledger for signatures.  Zero means the
	// latest ledger plus DefaultAuthValidity.
	Expiration uint32

	Log *log.Entry
}

func (r *Resigner) logger() *log.Entry {
	if r.Log == nil {
		return log.DefaultLogger
	}
	return r.Log
}

// Base fee of the invocation operation, paid on top of the resource
// fee.
const BaseFee = 100

// Assemble installs the results of a simulation into tx: the
// authorization entries, the resource data, and the resource fee.
// Only a transaction with a single host function invocation is
// changed.  The fee becomes BaseFee plus the simulated minimum
// resource fee unless tx already offers more, so assembling an
// assembled transaction again leaves the fee alone.  A fee above
// 32 bits fails with *LargeFeeError.
func Assemble(tx xdr.Transaction,
	sim *rpc.SimulateTransactionResponse) (xdr.Transaction, error) {
	op := invokeOp(&tx)
	if op == nil {
		return tx, nil
	}
	auth, err := sim.Auth()
	if err != nil {
		return tx, err
	}
	data, err := sim.Data()
	if err != nil {
		return tx, err
	}

	fee := uint64(tx.Fee)
	if data != nil {
		if sim.MinResourceFee < 0 {
			return tx, errors.Errorf("negative minimum resource fee %d",
				sim.MinResourceFee)
		}
		if need := BaseFee + uint64(sim.MinResourceFee); need > fee {
			fee = need
		}
		if fee > math.MaxUint32 {
			return tx, &LargeFeeError{Fee: fee}
		}
	}

	newOp := *op
	if len(op.Auth) == 0 {
		newOp.Auth = auth
	}
	out := tx
	out.Operations = []xdr.Operation{tx.Operations[0]}
	out.Operations[0].Body.InvokeHostFunctionOp = &newOp
	if data != nil {
		out.Ext = xdr.TransactionExt{V: 1, SorobanData: data}
		out.Fee = xdr.Uint32(fee)
	}
	return out, nil
}

// Resign simulates tx, assembles the result, and signs every
// address-credentialed authorization entry.  Entries for which no
// signer or plugin exists make the call fail.
func (r *Resigner) Resign(ctx context.Context,
	tx xdr.Transaction) (xdr.Transaction, error) {
	l := r.logger().WithField("network", r.Network.Name)
	e := xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1:   &xdr.TransactionV1Envelope{Tx: tx},
	}
	sim, err := r.RPC.SimulateTransaction(ctx, &e)
	if err != nil {
		return tx, err
	}
	assembled, err := Assemble(tx, sim)
	if err != nil {
		return tx, errors.Wrap(err, "assembling simulated transaction")
	}

	expiration := r.Expiration
	if expiration == 0 {
		latest, err := r.RPC.GetLatestLedger(ctx)
		if err != nil {
			return tx, err
		}
		expiration = latest.Sequence + DefaultAuthValidity
	}
	l.WithField("expiration_ledger", expiration).Debug("signing authorizations")

	signed, err := SignSorobanAuthorizations(ctx, assembled, r.Signers,
		r.Plugins, expiration, r.Network.NetworkPassphrase)
	if err != nil {
		return tx, err
	}
	if signed == nil {
		return assembled, nil
	}
	return *signed, nil
}
