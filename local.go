package stcsign

import (
	"github.com/pkg/errors"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
	"github.com/xdrpp/stcsign/stcdetail"
)

var ErrInvalidSecretKey = errors.New("invalid secret key")

// An Ed25519 key pair held in memory.
type LocalKey struct {
	kp *keypair.Full

	// Ask on the terminal before signing a transaction.
	Prompt bool
}

func NewLocalKey(kp *keypair.Full) *LocalKey {
	return &LocalKey{kp: kp}
}

// ParseLocalKey accepts a secret seed in strkey (S...) format.
func ParseLocalKey(secret string) (*LocalKey, error) {
	kp, err := keypair.ParseFull(secret)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSecretKey, err.Error())
	}
	return &LocalKey{kp: kp}, nil
}

// Generates a new random key pair.
func GenerateLocalKey() (*LocalKey, error) {
	kp, err := keypair.Random()
	if err != nil {
		return nil, err
	}
	return &LocalKey{kp: kp}, nil
}

func (k *LocalKey) PublicKey() (pk xdr.Uint256) {
	copy(pk[:], strkey.MustDecode(strkey.VersionByteAccountID, k.kp.Address()))
	return
}

// The account address, G...
func (k *LocalKey) Address() string {
	return k.kp.Address()
}

// The secret seed, S...
func (k *LocalKey) String() string {
	return k.kp.Seed()
}

func (k *LocalKey) Sign(msg []byte) ([]byte, error) {
	return k.kp.Sign(msg)
}

// RawSeed returns the 32-byte Ed25519 seed.  Callers should zero it.
func (k *LocalKey) RawSeed() (seed [32]byte) {
	raw := strkey.MustDecode(strkey.VersionByteSeed, k.kp.Seed())
	copy(seed[:], raw)
	stcdetail.Zero(raw)
	return
}
