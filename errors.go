package stcsign

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/xdrpp/stcsign/stcdetail"
)

var ErrUnsupportedEnvelopeType = stcdetail.ErrUnsupportedEnvelopeType
var ErrUserCancelledSigning = errors.New("user cancelled signing")

// No configured signer owns the address an authorization entry
// requires.
type MissingSignerForAddressError struct {
	Address string
}

func (e *MissingSignerForAddressError) Error() string {
	return fmt.Sprintf("missing signing key for account %s", e.Address)
}

// The entry belongs to a contract, which only the contract's own
// logic can authorize.
type CannotSignError struct {
	Address string
}

func (e *CannotSignError) Error() string {
	return fmt.Sprintf("cannot sign for contract address %s", e.Address)
}

// The backend is not available in this process.
type FeatureNotEnabledError struct {
	Backend Kind
}

func (e *FeatureNotEnabledError) Error() string {
	return fmt.Sprintf("signing backend %s is not enabled", e.Backend)
}

// Failure running or interpreting a signer plugin.
type PluginError struct {
	Plugin string
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("signing plugin %q: %s", e.Plugin, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// The assembled fee does not fit in a transaction's 32-bit fee field.
type LargeFeeError struct {
	Fee uint64
}

func (e *LargeFeeError) Error() string {
	return fmt.Sprintf("assembled transaction fee %d exceeds %d",
		e.Fee, uint64(math.MaxUint32))
}
