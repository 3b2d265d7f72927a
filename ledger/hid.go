package ledger

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"io"
	"runtime"
	"sync"

	"github.com/karalabe/hid"
	"github.com/pkg/errors"
	"github.com/stellar/go/support/log"
	"github.com/xdrpp/stcsign/apdu"
)

// USB vendor id of Ledger devices.
const VendorID = 0x2c97

const (
	usagePage  = 0xffa0
	reportSize = 64
	tagAPDU    = 0x05
)

var errBadHeader = errors.New("invalid reply frame header")

// HIDTransport talks to a Ledger over USB HID.  The device driver is
// synchronous, so every exchange runs on one dedicated goroutine
// pinned to an OS thread; callers queue behind it and block until
// their exchange finishes.  This also serializes concurrent callers
// sharing a transport.  An exchange that has started cannot be
// cancelled, since the device may be waiting for the user to press a
// button.
type HIDTransport struct {
	dev  io.ReadWriteCloser
	log  *log.Entry
	reqs chan hidRequest
	done chan struct{}
	once sync.Once
}

type hidRequest struct {
	raw   []byte
	reply chan hidReply
}

type hidReply struct {
	raw []byte
	err error
}

// HIDSupported reports whether USB HID access is compiled in for
// this platform.
func HIDSupported() bool {
	return hid.Supported()
}

// OpenHID opens the first attached Ledger.  logger may be nil.
func OpenHID(logger *log.Entry) (*HIDTransport, error) {
	if !hid.Supported() {
		return nil, &HIDError{Op: "init",
			Err: errors.New("USB HID is not supported on this platform")}
	}
	for _, info := range hid.Enumerate(VendorID, 0) {
		if info.UsagePage != usagePage && info.Interface != 0 {
			continue
		}
		dev, err := info.Open()
		if err != nil {
			return nil, &HIDError{Op: "open", Err: err}
		}
		return NewHIDTransport(dev, logger), nil
	}
	return nil, ErrDeviceNotFound
}

// NewHIDTransport drives an already opened device.  The transport
// owns dev from here on.
func NewHIDTransport(dev io.ReadWriteCloser, logger *log.Entry) *HIDTransport {
	if logger == nil {
		logger = log.DefaultLogger
	}
	t := &HIDTransport{
		dev:  dev,
		log:  logger.WithField("transport", "hid"),
		reqs: make(chan hidRequest),
		done: make(chan struct{}),
	}
	go t.serve()
	return t
}

func (t *HIDTransport) serve() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for {
		select {
		case req := <-t.reqs:
			raw, err := t.roundTrip(req.raw)
			req.reply <- hidReply{raw, err}
		case <-t.done:
			return
		}
	}
}

func (t *HIDTransport) roundTrip(raw []byte) ([]byte, error) {
	if err := writeFrames(t.dev, raw); err != nil {
		return nil, &HIDError{Op: "write", Err: err}
	}
	reply, err := readFrames(t.dev)
	if err != nil {
		return nil, &HIDError{Op: "read", Err: err}
	}
	return reply, nil
}

func (t *HIDTransport) Exchange(ctx context.Context,
	cmd apdu.Command) (apdu.Answer, error) {
	raw, err := cmd.Encode()
	if err != nil {
		return apdu.Answer{}, err
	}
	req := hidRequest{raw: raw, reply: make(chan hidReply, 1)}
	select {
	case t.reqs <- req:
	case <-ctx.Done():
		return apdu.Answer{}, ctx.Err()
	case <-t.done:
		return apdu.Answer{}, ErrTransportClosed
	}
	t.log.WithField("apdu_in", hex.EncodeToString(raw)).Debug("apdu sent")
	rep := <-req.reply
	if rep.err != nil {
		return apdu.Answer{}, rep.err
	}
	ans, err := apdu.Decode(rep.raw)
	if err != nil {
		return apdu.Answer{}, &HIDError{Op: "read", Err: err}
	}
	t.log.WithFields(log.F{
		"apdu_out": hex.EncodeToString(ans.Data),
		"retcode":  ans.ReturnCode,
	}).Debug("apdu received")
	return ans, nil
}

// Close stops the exchange goroutine and releases the device.
func (t *HIDTransport) Close() (err error) {
	err = ErrTransportClosed
	t.once.Do(func() {
		close(t.done)
		err = t.dev.Close()
	})
	return
}

// Frames a raw APDU into 64-byte HID reports.  Each report starts
// with channel 0x0101, tag 0x05 and a big-endian sequence number;
// the first report's payload is prefixed with the APDU length.
func writeFrames(w io.Writer, raw []byte) error {
	msg := make([]byte, 2, 2+len(raw))
	binary.BigEndian.PutUint16(msg, uint16(len(raw)))
	msg = append(msg, raw...)

	frame := make([]byte, reportSize)
	for seq := 0; len(msg) > 0; seq++ {
		for i := range frame {
			frame[i] = 0
		}
		frame[0], frame[1], frame[2] = 0x01, 0x01, tagAPDU
		binary.BigEndian.PutUint16(frame[3:5], uint16(seq))
		n := copy(frame[5:], msg)
		msg = msg[n:]
		if _, err := w.Write(frame); err != nil {
			return err
		}
	}
	return nil
}

// Reassembles a reply written by the device in the framing of
// writeFrames.  The result still ends with the status word.
func readFrames(r io.Reader) ([]byte, error) {
	frame := make([]byte, reportSize)
	var reply []byte
	want := -1
	for seq := 0; want < 0 || len(reply) < want; seq++ {
		if _, err := io.ReadFull(r, frame); err != nil {
			return nil, err
		}
		if frame[0] != 0x01 || frame[1] != 0x01 || frame[2] != tagAPDU ||
			int(binary.BigEndian.Uint16(frame[3:5])) != seq {
			return nil, errBadHeader
		}
		payload := frame[5:]
		if seq == 0 {
			want = int(binary.BigEndian.Uint16(payload[:2]))
			payload = payload[2:]
			reply = make([]byte, 0, want)
		}
		if left := want - len(reply); left < len(payload) {
			payload = payload[:left]
		}
		reply = append(reply, payload...)
	}
	return reply, nil
}
