package stcsign

import (
	"github.com/stellar/go/keypair"
	"github.com/tyler-smith/go-bip39"
	"github.com/xdrpp/stcsign/apdu"
	"github.com/xdrpp/stcsign/stcdetail"
)

var ErrInvalidSeedPhrase = stcdetail.ErrInvalidSeedPhrase

// GenerateSeedPhrase returns a new 24-word BIP-39 mnemonic.
func GenerateSeedPhrase() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	defer stcdetail.Zero(entropy)
	return bip39.NewMnemonic(entropy)
}

// SeedPhraseKey derives the key at m/44'/148'/index' from a BIP-39
// mnemonic, as wallets following SEP-5 do.
func SeedPhraseKey(phrase string, index uint32) (*LocalKey, error) {
	raw, err := stcdetail.SeedPhraseSeed(phrase, apdu.StellarPath(index))
	if err != nil {
		return nil, err
	}
	defer stcdetail.Zero32(&raw)
	kp, err := keypair.FromRawSeed(raw)
	if err != nil {
		return nil, err
	}
	return NewLocalKey(kp), nil
}
