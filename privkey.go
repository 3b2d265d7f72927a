package stcsign

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/xdrpp/stcsign/stcdetail"
	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/packet"
)

var ErrInvalidPassphrase = errors.New("invalid passphrase")
var ErrInvalidKeyFile = errors.New("invalid private key file")

// Writes the key to a file in strkey format.  If passphrase has
// non-zero length, then the key is symmetrically encrypted in
// ASCII-armored GPG format.  Fails if the file already exists.
func (k *LocalKey) Save(file string, passphrase []byte) error {
	out := &strings.Builder{}
	if len(passphrase) == 0 {
		fmt.Fprintln(out, k.String())
	} else {
		w0, err := armor.Encode(out, "PGP MESSAGE", nil)
		if err != nil {
			return err
		}
		w, err := openpgp.SymmetricallyEncrypt(w0, passphrase, nil,
			&packet.Config{
				DefaultCipher:          packet.CipherAES256,
				DefaultCompressionAlgo: packet.CompressionNone,
				S2KCount:               65011712,
			})
		if err != nil {
			w0.Close()
			return err
		}
		fmt.Fprintln(w, k.String())
		w.Close()
		w0.Close()
		out.WriteString("\n")
	}
	return stcdetail.SafeCreateFile(file, []byte(out.String()), 0400)
}

func parseKeyText(text []byte) (*LocalKey, error) {
	line := strings.TrimSpace(string(text))
	if i := strings.IndexAny(line, " \t\r\n"); i >= 0 {
		line = line[:i]
	}
	return ParseLocalKey(line)
}

// Reads a private key from a file, prompting for a passphrase if the
// key is in ASCII-armored symmetrically-encrypted GPG format.
func LoadKeyFile(file string) (*LocalKey, error) {
	input, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	defer stcdetail.Zero(input)
	if k, err := parseKeyText(input); err == nil {
		return k, nil
	}

	block, err := armor.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKeyFile, file)
	}
	tried := false
	md, err := openpgp.ReadMessage(block.Body, nil,
		func(keys []openpgp.Key, symmetric bool) ([]byte, error) {
			if tried {
				return nil, ErrInvalidPassphrase
			}
			tried = true
			passphrase :=
				stcdetail.GetPass(fmt.Sprintf("Passphrase for %s: ", file))
			if len(passphrase) > 0 {
				return passphrase, nil
			}
			return nil, ErrInvalidPassphrase
		}, nil)
	if err != nil {
		return nil, err
	}
	plain, err := io.ReadAll(md.UnverifiedBody)
	defer stcdetail.Zero(plain)
	if err != nil {
		return nil, err
	} else if md.SignatureError != nil {
		return nil, md.SignatureError
	}
	k, err := parseKeyText(plain)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidKeyFile, file)
	}
	return k, nil
}

// Reads a private key from standard input.  If standard input is a
// terminal, disables echo and prints prompt to standard error.
func InputPrivateKey(prompt string) (*LocalKey, error) {
	key := stcdetail.GetPass(prompt)
	defer stcdetail.Zero(key)
	return parseKeyText(key)
}
