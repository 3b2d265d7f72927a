package stcdetail

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"github.com/xdrpp/stcsign/apdu"
)

var ErrInvalidSeedPhrase = errors.New("invalid seed phrase")

// NormalizeSeedPhrase collapses runs of whitespace to single spaces.
func NormalizeSeedPhrase(phrase string) string {
	return strings.Join(strings.Fields(phrase), " ")
}

// Ed25519 child key derivation as in SLIP-0010.  Only hardened
// indices exist for ed25519.
func slip10(seed []byte, path apdu.HDPath) (key [32]byte) {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	I := mac.Sum(nil)
	for _, idx := range path {
		var data [37]byte
		copy(data[1:33], I[:32])
		binary.BigEndian.PutUint32(data[33:], idx|apdu.Hardened)
		mac = hmac.New(sha512.New, I[32:])
		mac.Write(data[:])
		Zero(I)
		Zero(data[:])
		I = mac.Sum(nil)
	}
	copy(key[:], I[:32])
	Zero(I)
	return
}

// SeedPhraseSeed returns the raw ed25519 seed at path under a BIP-39
// mnemonic with an empty passphrase.  The caller should Zero32 it.
func SeedPhraseSeed(phrase string, path apdu.HDPath) (raw [32]byte, err error) {
	seed, err := bip39.NewSeedWithErrorChecking(NormalizeSeedPhrase(phrase), "")
	if err != nil {
		return raw, errors.Wrap(ErrInvalidSeedPhrase, err.Error())
	}
	defer Zero(seed)
	return slip10(seed, path), nil
}
