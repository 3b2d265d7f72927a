// Package ledgertest provides an in-memory stand-in for the Stellar
// application on a Ledger, usable as a ledger.Transport, as the HTTP
// endpoint of an emulator, or behind a raw HID frame stream.
package ledgertest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/xdrpp/stcsign/apdu"
)

// App answers APDU commands the way the Stellar application does.
// Keys are derived deterministically from Seed and the request path.
type App struct {
	Seed        [32]byte
	HashSigning bool
	Version     [3]byte

	// If set, every signing request is answered with 0x6985.
	Reject bool

	mu      sync.Mutex
	pending []byte
	cmds    []apdu.Command
}

func NewApp() *App {
	return &App{
		Seed:        sha256.Sum256([]byte("ledgertest")),
		HashSigning: true,
		Version:     [3]byte{5, 0, 3},
	}
}

// Key returns the key pair the app uses for path.
func (a *App) Key(path apdu.HDPath) *keypair.Full {
	kp, err := keypair.FromRawSeed(sha256.Sum256(
		append(a.Seed[:], path.Bytes()...)))
	if err != nil {
		panic(err)
	}
	return kp
}

// PublicKey returns the raw 32-byte key for path.
func (a *App) PublicKey(path apdu.HDPath) []byte {
	return strkey.MustDecode(strkey.VersionByteAccountID, a.Key(path).Address())
}

// Commands returns every command received so far.
func (a *App) Commands() []apdu.Command {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]apdu.Command(nil), a.cmds...)
}

func (a *App) Exchange(_ context.Context, cmd apdu.Command) (apdu.Answer, error) {
	return apdu.Decode(a.Handle(cmd.MustEncode()))
}

func status(code uint16, data ...byte) []byte {
	var sw [2]byte
	binary.BigEndian.PutUint16(sw[:], code)
	return append(data, sw[:]...)
}

func parsePath(data []byte) (apdu.HDPath, []byte, bool) {
	if len(data) < 1 || len(data) < 1+4*int(data[0]) {
		return nil, nil, false
	}
	n := int(data[0])
	path := make(apdu.HDPath, n)
	for i := range path {
		path[i] = binary.BigEndian.Uint32(data[1+4*i:])
	}
	return path, data[1+4*n:], true
}

// Handle answers one raw command with a raw reply (data || status).
func (a *App) Handle(raw []byte) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(raw) < 5 || int(raw[4]) != len(raw)-5 {
		return status(apdu.StatusInvalidParameter)
	}
	cmd := apdu.Command{Class: raw[0], Instruction: raw[1], P1: raw[2],
		P2: raw[3], Data: append([]byte(nil), raw[5:]...)}
	a.cmds = append(a.cmds, cmd)
	if cmd.Class != apdu.CLA {
		return status(0x6E00)
	}

	switch cmd.Instruction {
	case apdu.InsGetPublicKey:
		path, rest, ok := parsePath(cmd.Data)
		if !ok || len(rest) != 0 {
			return status(apdu.StatusInvalidParameter)
		}
		if cmd.P2 == apdu.P2GetPublicKeyDisplay && a.Reject {
			return status(apdu.StatusUserRejected)
		}
		return status(apdu.StatusOK, a.PublicKey(path)...)
	case apdu.InsGetAppConfiguration:
		var flags byte
		if a.HashSigning {
			flags = 1
		}
		return status(apdu.StatusOK, flags, a.Version[0], a.Version[1],
			a.Version[2])
	case apdu.InsSignTxHash:
		path, hash, ok := parsePath(cmd.Data)
		if !ok || len(hash) != 32 {
			return status(apdu.StatusInvalidParameter)
		}
		if !a.HashSigning {
			return status(apdu.StatusHashSigningOff)
		}
		return a.sign(path, hash)
	case apdu.InsSignTx:
		if cmd.P1 == apdu.P1SignTxFirst {
			a.pending = nil
		}
		a.pending = append(a.pending, cmd.Data...)
		if cmd.P2 == apdu.P2SignTxMore {
			return status(apdu.StatusOK)
		}
		path, payload, ok := parsePath(a.pending)
		a.pending = nil
		if !ok {
			return status(apdu.StatusInvalidParameter)
		}
		hash := sha256.Sum256(payload)
		return a.sign(path, hash[:])
	}
	return status(0x6D00)
}

func (a *App) sign(path apdu.HDPath, msg []byte) []byte {
	if a.Reject {
		return status(apdu.StatusUserRejected)
	}
	sig, err := a.Key(path).Sign(msg)
	if err != nil {
		return status(0x6F00)
	}
	return status(apdu.StatusOK, sig...)
}

// ServeHTTP speaks the emulator protocol: a JSON body carrying
// apduHex, answered with the hex reply in data.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APDUHex string `json:"apduHex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	raw, err := hex.DecodeString(req.APDUHex)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":  hex.EncodeToString(a.Handle(raw)),
		"error": nil,
	})
}
