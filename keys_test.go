package stcsign

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xdrpp/stcsign/stcdetail"
)

const sep5Phrase = "illness spike retreat truth genius clock brain pass fit cave bargain toe"

func TestSeedPhraseKey(t *testing.T) {
	k, err := SeedPhraseKey(sep5Phrase, 0)
	require.NoError(t, err)
	assert.Equal(t, "GDRXE2BQUC3AZNPVFSCEZ76NJ3WWL25FYFK6RGZGIEKWE4SOOHSUJUJ6",
		k.Address())
	assert.Equal(t, "SBGWSG6BTNCKCOB3DIFBGCVMUPQFYPA2G4O34RMTB343OYPXU5DJDVMN",
		k.String())

	// Whitespace is not significant.
	k2, err := SeedPhraseKey("  "+strings.ReplaceAll(sep5Phrase, " ", "\n  "), 0)
	require.NoError(t, err)
	assert.Equal(t, k.Address(), k2.Address())

	k1, err := SeedPhraseKey(sep5Phrase, 1)
	require.NoError(t, err)
	assert.NotEqual(t, k.Address(), k1.Address())

	_, err = SeedPhraseKey("illness spike retreat", 0)
	assert.True(t, errors.Is(err, ErrInvalidSeedPhrase))
}

func TestGenerateSeedPhrase(t *testing.T) {
	phrase, err := GenerateSeedPhrase()
	require.NoError(t, err)
	assert.Len(t, strings.Fields(phrase), 24)
	_, err = SeedPhraseKey(phrase, 0)
	assert.NoError(t, err)
}

func TestParseLocalKey(t *testing.T) {
	k := testKey(t, "alice")
	k2, err := ParseLocalKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k.PublicKey(), k2.PublicKey())

	_, err = ParseLocalKey(k.Address())
	assert.True(t, errors.Is(err, ErrInvalidSecretKey))
}

func withPassphrase(t *testing.T, input string) {
	r, w := stcdetail.PassphraseFile, stcdetail.PassphrasePrompt
	t.Cleanup(func() {
		stcdetail.PassphraseFile, stcdetail.PassphrasePrompt = r, w
	})
	stcdetail.PassphraseFile = strings.NewReader(input)
	stcdetail.PassphrasePrompt = io.Discard
}

func TestKeyFilePlain(t *testing.T) {
	k := testKey(t, "alice")
	file := filepath.Join(t.TempDir(), "alice.key")
	require.NoError(t, k.Save(file, nil))

	fi, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0400), fi.Mode().Perm())

	k2, err := LoadKeyFile(file)
	require.NoError(t, err)
	assert.Equal(t, k.String(), k2.String())

	err = k.Save(file, nil)
	assert.True(t, os.IsExist(err), "%v", err)
}

func TestKeyFileEncrypted(t *testing.T) {
	k := testKey(t, "alice")
	file := filepath.Join(t.TempDir(), "alice.key")
	require.NoError(t, k.Save(file, []byte("hunter2")))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN PGP MESSAGE")
	assert.NotContains(t, string(data), k.String())

	withPassphrase(t, "hunter2\n")
	k2, err := LoadKeyFile(file)
	require.NoError(t, err)
	assert.Equal(t, k.String(), k2.String())

	withPassphrase(t, "wrong\n")
	_, err = LoadKeyFile(file)
	assert.Error(t, err)

	withPassphrase(t, "")
	_, err = LoadKeyFile(file)
	assert.Error(t, err)
}

func TestKeyFileGarbage(t *testing.T) {
	file := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(file, []byte("hello world\n"), 0600))
	_, err := LoadKeyFile(file)
	assert.True(t, errors.Is(err, ErrInvalidKeyFile))
}

func TestOpenLocal(t *testing.T) {
	k := testKey(t, "alice")
	s, err := OpenLocal(context.Background(), &Identity{Name: "a", SecretKey: k.String(),
		Prompt: true})
	require.NoError(t, err)
	assert.Equal(t, KindLocal, s.Kind)
	assert.True(t, s.Local.Prompt)
	assert.Equal(t, k.PublicKey(), s.Local.PublicKey())

	s, err = OpenLocal(context.Background(), &Identity{Name: "b", SeedPhrase: sep5Phrase})
	require.NoError(t, err)
	assert.Equal(t, "GDRXE2BQUC3AZNPVFSCEZ76NJ3WWL25FYFK6RGZGIEKWE4SOOHSUJUJ6",
		s.Local.Address())

	file := filepath.Join(t.TempDir(), "c.key")
	require.NoError(t, k.Save(file, nil))
	s, err = OpenLocal(context.Background(), &Identity{Name: "c", KeyFile: file})
	require.NoError(t, err)
	assert.Equal(t, k.Address(), s.Local.Address())
}
