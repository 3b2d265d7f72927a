// Package keystore keeps Stellar signing seeds in the operating
// system's credential manager and signs with them without holding
// the secret longer than one call.
package keystore

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os/user"
	"strings"

	"github.com/pkg/errors"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/xdr"
	"github.com/tyler-smith/go-bip39"
	"github.com/xdrpp/stcsign/apdu"
	"github.com/xdrpp/stcsign/stcdetail"
	"github.com/zalando/go-keyring"
)

// Prefix of the service name under which identities are stored.
const ServicePrefix = "org.stellar.cli."

var ErrNotFound = errors.New("keystore: entry not found")
var ErrBadSecret = errors.New("keystore: stored secret is not a seed or seed phrase")

// Entry addresses one credential: the service is derived from the
// identity name, the account from the current OS user.  The secret is
// either a raw seed or a BIP-39 seed phrase; for a phrase the key at
// m/44'/148'/HDPath' is used.
type Entry struct {
	Name    string
	Service string
	User    string
	HDPath  uint32
	log     *log.Entry
}

// New returns the entry for identity name.  logger may be nil.
func New(name string, logger *log.Entry) (*Entry, error) {
	u, err := user.Current()
	if err != nil {
		return nil, errors.Wrap(err, "keystore: current user")
	}
	return NewForUser(name, u.Username, logger), nil
}

func NewForUser(name, username string, logger *log.Entry) *Entry {
	if logger == nil {
		logger = log.DefaultLogger
	}
	e := &Entry{
		Name:    name,
		Service: ServicePrefix + name,
		User:    username,
	}
	e.log = logger.WithFields(log.F{"backend": "secure_store",
		"service": e.Service})
	return e
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s (%s)", e.Service, e.User)
}

func (e *Entry) wrap(err error, op string) error {
	if errors.Is(err, keyring.ErrNotFound) {
		return errors.Wrapf(ErrNotFound, "%s %s", op, e)
	}
	return errors.Wrapf(err, "keystore: %s %s", op, e)
}

// Set stores seed under the entry, replacing any previous value.
func (e *Entry) Set(seed *[32]byte) error {
	if err := keyring.Set(e.Service, e.User,
		base64.StdEncoding.EncodeToString(seed[:])); err != nil {
		return e.wrap(err, "set")
	}
	e.log.Info("stored secret")
	return nil
}

// SetSeedPhrase stores a BIP-39 mnemonic under the entry, replacing
// any previous value.
func (e *Entry) SetSeedPhrase(phrase string) error {
	phrase = stcdetail.NormalizeSeedPhrase(phrase)
	if !bip39.IsMnemonicValid(phrase) {
		return stcdetail.ErrInvalidSeedPhrase
	}
	if err := keyring.Set(e.Service, e.User, phrase); err != nil {
		return e.wrap(err, "set")
	}
	e.log.Info("stored seed phrase")
	return nil
}

func (e *Entry) Exists() (bool, error) {
	_, err := keyring.Get(e.Service, e.User)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, keyring.ErrNotFound):
		return false, nil
	}
	return false, e.wrap(err, "get")
}

func (e *Entry) Delete() error {
	if err := keyring.Delete(e.Service, e.User); err != nil {
		return e.wrap(err, "delete")
	}
	e.log.Info("deleted secret")
	return nil
}

// use fetches the seed, expands it into a private key, and passes
// the key to fn.  Every copy of the secret made here is zeroed
// before use returns, whatever fn does.
func (e *Entry) use(fn func(ed25519.PrivateKey) error) error {
	encoded, err := keyring.Get(e.Service, e.User)
	if err != nil {
		return e.wrap(err, "get")
	}
	var raw []byte
	if strings.Contains(encoded, " ") {
		seed, err := stcdetail.SeedPhraseSeed(encoded,
			apdu.StellarPath(e.HDPath))
		if err != nil {
			return errors.Wrapf(ErrBadSecret, "%s: %s", e, err)
		}
		raw = append([]byte(nil), seed[:]...)
		stcdetail.Zero32(&seed)
	} else {
		raw, err = base64.StdEncoding.DecodeString(encoded)
	}
	defer stcdetail.Zero(raw)
	if err != nil || len(raw) != ed25519.SeedSize {
		return errors.Wrapf(ErrBadSecret, "%s", e)
	}
	priv := ed25519.NewKeyFromSeed(raw)
	defer stcdetail.Zero(priv)
	return fn(priv)
}

// PublicKey returns the raw public key of the stored seed.
func (e *Entry) PublicKey() (pk xdr.Uint256, err error) {
	err = e.use(func(priv ed25519.PrivateKey) error {
		copy(pk[:], priv.Public().(ed25519.PublicKey))
		return nil
	})
	return
}

// Sign signs msg and returns the signature with the public key that
// produced it, both taken from a single retrieval of the secret.
func (e *Entry) Sign(msg []byte) (sig []byte, pk xdr.Uint256, err error) {
	err = e.use(func(priv ed25519.PrivateKey) error {
		copy(pk[:], priv.Public().(ed25519.PublicKey))
		sig = ed25519.Sign(priv, msg)
		return nil
	})
	if err == nil {
		e.log.Debug("signed with secure store key")
	}
	return
}
