package stcsign

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stellar/go/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STELLAR_CONFIG_HOME", dir)
	assert.Equal(t, dir, ConfigDir())

	t.Setenv("STELLAR_CONFIG_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "stellar"), ConfigDir())

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", dir)
	assert.Equal(t, filepath.Join(dir, ".config", "stellar"), ConfigDir())
}

func TestIdentities(t *testing.T) {
	c := NewConfig(t.TempDir(), nil)
	alice := testKey(t, "alice")

	require.NoError(t, c.SaveIdentity(&Identity{Name: "alice",
		SecretKey: alice.String(), Prompt: true}))
	require.NoError(t, c.SaveIdentity(&Identity{Name: "hw", Ledger: true,
		HDPath: 2, ClearSign: true}))
	require.NoError(t, c.SaveIdentity(thresholdIdentity(t, "group", 2, 3)))
	require.NoError(t, c.SaveIdentity(&Identity{Name: "multisig",
		Plugin: &PluginIdentity{Name: "multisig",
			Address: AddressString(contractAddress(4)),
			Args:    map[string]string{"policy": "2of3"}}}))

	names, err := c.Identities()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "group", "hw", "multisig"}, names)

	id, err := c.LoadIdentity("alice")
	require.NoError(t, err)
	assert.Equal(t, &Identity{Name: "alice", SecretKey: alice.String(),
		Prompt: true}, id)

	fi, err := os.Stat(filepath.Join(c.Dir, "identity", "alice.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())

	id, err = c.LoadIdentity("hw")
	require.NoError(t, err)
	assert.Equal(t, &Identity{Name: "hw", Ledger: true, HDPath: 2,
		ClearSign: true}, id)

	id, err = c.LoadIdentity("group")
	require.NoError(t, err)
	assert.Equal(t, thresholdIdentity(t, "group", 2, 3).Threshold.GroupKey,
		id.Threshold.GroupKey)
	assert.Len(t, id.Threshold.Shares, 3)

	id, err = c.LoadIdentity("multisig")
	require.NoError(t, err)
	assert.Equal(t, "2of3", id.Plugin.Args["policy"])

	require.NoError(t, c.RemoveIdentity("hw"))
	_, err = c.LoadIdentity("hw")
	assert.True(t, errors.Is(err, ErrIdentityNotFound))
	assert.True(t, errors.Is(c.RemoveIdentity("hw"), ErrIdentityNotFound))

	_, err = c.LoadIdentity("../escape")
	assert.Error(t, err)
}

func TestIdentityKind(t *testing.T) {
	for _, c := range []struct {
		id   Identity
		kind Kind
		ok   bool
	}{
		{Identity{SecretKey: "S"}, KindLocal, true},
		{Identity{KeyFile: "f"}, KindLocal, true},
		{Identity{SecureStore: true}, KindSecureStore, true},
		{Identity{Ledger: true}, KindLedger, true},
		{Identity{Plugin: &PluginIdentity{}}, KindPlugin, true},
		{Identity{}, 0, false},
		{Identity{SecretKey: "S", Ledger: true}, 0, false},
		{Identity{SecretKey: "S", KeyFile: "f"}, 0, false},
		{Identity{Threshold: &ThresholdIdentity{GroupKey: "bogus"}}, 0, false},
	} {
		k, err := c.id.Kind()
		if c.ok {
			assert.NoError(t, err)
			assert.Equal(t, c.kind, k)
		} else {
			assert.Error(t, err, "%+v", c.id)
		}
	}
}

func TestNetworks(t *testing.T) {
	c := NewConfig(t.TempDir(), nil)

	net, err := c.LoadNetwork("testnet")
	require.NoError(t, err)
	assert.Equal(t, network.TestNetworkPassphrase, net.NetworkPassphrase)

	_, err = c.LoadNetwork("nowhere")
	assert.True(t, errors.Is(err, ErrNetworkNotFound))

	require.NoError(t, c.SaveNetwork(&Network{Name: "testnet",
		RPCURL: "http://localhost:1234", NetworkPassphrase: "custom"}))
	require.NoError(t, c.SaveNetwork(&Network{Name: "mine",
		RPCURL: "http://localhost:1", NetworkPassphrase: "mine"}))

	net, err = c.LoadNetwork("testnet")
	require.NoError(t, err)
	assert.Equal(t, &Network{Name: "testnet", RPCURL: "http://localhost:1234",
		NetworkPassphrase: "custom"}, net)
	assert.Equal(t, network.TestNetworkPassphrase,
		BuiltinNetworks["testnet"].NetworkPassphrase, "builtin modified")

	names, err := c.Networks()
	require.NoError(t, err)
	assert.Equal(t, []string{"futurenet", "local", "mainnet", "mine", "testnet"},
		names)
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	r := DefaultRegistry(RegistryOptions{})
	defer r.Close()

	id := thresholdIdentity(t, "group", 2, 3)
	_, err := r.Open(ctx, id)
	var fne *FeatureNotEnabledError
	require.True(t, errors.As(err, &fne))
	assert.Equal(t, KindThreshold, fne.Backend)
	assert.False(t, r.Enabled(KindThreshold))

	r = DefaultRegistry(RegistryOptions{Threshold: true})
	s, err := r.Open(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, KindThreshold, s.Kind)
	assert.NotNil(t, s.Log)

	alice := testKey(t, "alice")
	s, err = r.Open(ctx, &Identity{Name: "alice", SecretKey: alice.String()})
	require.NoError(t, err)
	pk, err := s.PublicKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice.PublicKey(), pk)

	_, err = r.Open(ctx, &Identity{Name: "bad", SecretKey: "SNOTAKEY"})
	assert.True(t, errors.Is(err, ErrInvalidSecretKey))

	r.Unregister(KindLocal)
	_, err = r.Open(ctx, &Identity{Name: "alice", SecretKey: alice.String()})
	assert.True(t, errors.As(err, &fne))
	assert.Equal(t, KindLocal, fne.Backend)

	r.Register(KindLocal, OpenLocal)
	assert.Contains(t, r.Kinds(), KindLocal)
}
