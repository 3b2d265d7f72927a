// Package ledger talks to the Stellar application on a Ledger
// hardware wallet, either over USB HID or through the HTTP interface
// of a device emulator.
package ledger

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xdrpp/stcsign/apdu"
)

// A Transport carries one APDU command to a device and returns the
// device's answer.  A non-nil error means the exchange itself failed;
// an answer whose return code is not apdu.StatusOK is still a
// successful exchange.  Transports never retry.
type Transport interface {
	Exchange(ctx context.Context, cmd apdu.Command) (apdu.Answer, error)
}

var ErrDeviceNotFound = errors.New("ledger: no device connected")
var ErrTransportClosed = errors.New("ledger: transport closed")

// Failure talking to the USB HID layer.
type HIDError struct {
	Op  string
	Err error
}

func (e *HIDError) Error() string {
	return fmt.Sprintf("ledger: hid %s: %s", e.Op, e.Err)
}

func (e *HIDError) Unwrap() error {
	return e.Err
}

// Failure talking to a device emulator: a non-2xx status, a reply
// carrying an error, or a reply that could not be parsed.
type ResponseError struct {
	URL     string
	Status  int
	Message string
	Err     error
}

func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("ledger: emulator %s", e.URL)
	if e.Status != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// Sentinels matched by errors.Is against an APDUExchangeError.
var (
	ErrUserRejected          = errors.New("ledger: request rejected on device")
	ErrHashSigningNotEnabled = errors.New(
		"ledger: hash signing is not enabled in the Stellar app settings")
	ErrAppNotOpen = errors.New("ledger: Stellar app is not open")
)

// The device answered a command with a status other than 0x9000.
type APDUExchangeError struct {
	Op   string
	Code uint16
}

func (e *APDUExchangeError) Error() string {
	msg := fmt.Sprintf("ledger: %s failed with status 0x%04X", e.Op, e.Code)
	if s := e.sentinel(); s != nil {
		msg += " (" + s.Error()[len("ledger: "):] + ")"
	}
	return msg
}

func (e *APDUExchangeError) sentinel() error {
	switch e.Code {
	case apdu.StatusUserRejected:
		return ErrUserRejected
	case apdu.StatusHashSigningOff:
		return ErrHashSigningNotEnabled
	case apdu.StatusAppNotOpen:
		return ErrAppNotOpen
	}
	return nil
}

func (e *APDUExchangeError) Is(target error) bool {
	return target != nil && e.sentinel() == target
}
