package stcsign

import (
	"github.com/pkg/errors"
	"github.com/stellar/go/strkey"
)

// An Identity names one signing key and says where it lives.  Exactly
// one source is set.
type Identity struct {
	Name string `toml:"-"`

	SecretKey  string `toml:"secret_key,omitempty"`
	SeedPhrase string `toml:"seed_phrase,omitempty"`
	KeyFile    string `toml:"key_file,omitempty"`

	SecureStore bool `toml:"secure_store,omitempty"`
	Ledger      bool `toml:"ledger,omitempty"`

	// Account index for seed phrases, in a file or the secure store,
	// and for hardware wallets.
	HDPath uint32 `toml:"hd_path,omitempty"`

	// Hardware wallets only: display the whole transaction.
	ClearSign bool `toml:"clear_sign,omitempty"`

	// Local keys only: confirm on the terminal before signing.
	Prompt bool `toml:"prompt,omitempty"`

	Threshold *ThresholdIdentity `toml:"threshold,omitempty"`
	Plugin    *PluginIdentity    `toml:"plugin,omitempty"`
}

type ThresholdIdentity struct {
	GroupKey  string   `toml:"group_key"`
	Threshold int      `toml:"threshold"`
	Shares    []string `toml:"shares"`
}

type PluginIdentity struct {
	Name    string            `toml:"name"`
	Address string            `toml:"address"`
	Args    map[string]string `toml:"args,omitempty"`
}

// Kind returns the backend that serves the identity.
func (id *Identity) Kind() (Kind, error) {
	var kinds []Kind
	if id.SecretKey != "" || id.SeedPhrase != "" || id.KeyFile != "" {
		kinds = append(kinds, KindLocal)
	}
	if id.SecureStore {
		kinds = append(kinds, KindSecureStore)
	}
	if id.Ledger {
		kinds = append(kinds, KindLedger)
	}
	if id.Threshold != nil {
		kinds = append(kinds, KindThreshold)
	}
	if id.Plugin != nil {
		kinds = append(kinds, KindPlugin)
	}
	n := 0
	for _, s := range []string{id.SecretKey, id.SeedPhrase, id.KeyFile} {
		if s != "" {
			n++
		}
	}
	switch {
	case len(kinds) == 0:
		return 0, errors.Errorf("identity %s has no key source", id.Name)
	case len(kinds) > 1 || n > 1:
		return 0, errors.Errorf("identity %s has more than one key source", id.Name)
	}
	if id.Threshold != nil {
		if _, err := strkey.Decode(strkey.VersionByteAccountID,
			id.Threshold.GroupKey); err != nil {
			return 0, errors.Wrapf(err, "identity %s group_key", id.Name)
		}
	}
	return kinds[0], nil
}
