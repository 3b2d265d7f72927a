// Package apdu encodes commands for, and decodes answers from, the
// Stellar application running on a Ledger hardware wallet.  Nothing
// in this package performs I/O.
package apdu

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
)

// Maximum number of data bytes a single command may carry.  The
// length prefix on the wire is one byte.
const MaxDataLen = 255

// Status word returned by the device when a command succeeded.
const StatusOK uint16 = 0x9000

var ErrAnswerTooShort = errors.New("apdu: answer shorter than status word")
var ErrDataTooLong = errors.New("apdu: command data exceeds 255 bytes")

// A command sent to the device.  Commands are values and are never
// modified after construction.
type Command struct {
	Class       byte
	Instruction byte
	P1          byte
	P2          byte
	Data        []byte
}

// Encode returns CLA || INS || P1 || P2 || LEN || DATA.  Commands
// whose data does not fit an 8-bit length fail with ErrDataTooLong;
// callers that need to send more must chunk the payload themselves.
func (c Command) Encode() ([]byte, error) {
	if len(c.Data) > MaxDataLen {
		return nil, errors.Wrapf(ErrDataTooLong, "%d bytes", len(c.Data))
	}
	out := make([]byte, 5, 5+len(c.Data))
	out[0] = c.Class
	out[1] = c.Instruction
	out[2] = c.P1
	out[3] = c.P2
	out[4] = byte(len(c.Data))
	return append(out, c.Data...), nil
}

// MustEncode is like Encode but panics on oversized data.  Use it
// only for commands whose size is fixed by construction.
func (c Command) MustEncode() []byte {
	b, err := c.Encode()
	if err != nil {
		panic(err)
	}
	return b
}

func (c Command) String() string {
	return fmt.Sprintf("%02x%02x%02x%02x:%s", c.Class, c.Instruction,
		c.P1, c.P2, hex.EncodeToString(c.Data))
}

// The device's reply to a Command.  A ReturnCode other than StatusOK
// is an application-level failure reported by the device, not a
// transport failure.
type Answer struct {
	Data       []byte
	ReturnCode uint16
}

// Decode splits a raw reply into its payload and trailing big-endian
// status word.
func Decode(raw []byte) (Answer, error) {
	if len(raw) < 2 {
		return Answer{}, ErrAnswerTooShort
	}
	n := len(raw) - 2
	data := make([]byte, n)
	copy(data, raw[:n])
	return Answer{
		Data:       data,
		ReturnCode: binary.BigEndian.Uint16(raw[n:]),
	}, nil
}

// DecodeHex is Decode applied to a hex string, as produced by the
// emulator's HTTP interface.
func DecodeHex(s string) (Answer, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Answer{}, errors.Wrap(err, "apdu: bad hex answer")
	}
	return Decode(raw)
}

func (a Answer) OK() bool {
	return a.ReturnCode == StatusOK
}

func (a Answer) String() string {
	return fmt.Sprintf("%s:%04x", hex.EncodeToString(a.Data), a.ReturnCode)
}
