package stcsign

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/xdr"
)

// Executable name prefixes searched on PATH, in order.
var PluginPrefixes = []string{"stellar-signer-", "soroban-signer-"}

var ErrPluginNotFound = errors.New("not found on PATH")

// A Plugin is an external program that signs for one address.  It
// reads a JSON request on standard input and writes its answer on
// standard output; standard error goes to the user so the program can
// prompt.
type Plugin struct {
	Name    string
	Path    string
	Address xdr.ScAddress
	// Forwarded to the program as the "args" object.
	Args map[string]string

	Stderr io.Writer
	log    *log.Entry
}

// FindPlugin resolves the program for plugin name on PATH and maps
// it to address.
func FindPlugin(name string, address xdr.ScAddress, args map[string]string,
	logger *log.Entry) (*Plugin, error) {
	if logger == nil {
		logger = log.DefaultLogger
	}
	for _, prefix := range PluginPrefixes {
		if path, err := exec.LookPath(prefix + name); err == nil {
			return &Plugin{
				Name:    name,
				Path:    path,
				Address: address,
				Args:    args,
				Stderr:  os.Stderr,
				log: logger.WithFields(log.F{"backend": "plugin",
					"plugin": name, "address": AddressString(address)}),
			}, nil
		}
	}
	return nil, &PluginError{Plugin: name, Err: ErrPluginNotFound}
}

func (p *Plugin) fail(format string, args ...interface{}) error {
	return &PluginError{Plugin: p.Name, Err: errors.Errorf(format, args...)}
}

// PublicKey is only defined for plugins mapped to an account.
func (p *Plugin) PublicKey() (xdr.Uint256, error) {
	if pk, ok := accountKey(p.Address); ok {
		return pk, nil
	}
	return xdr.Uint256{}, p.fail("plugins do not expose a public key directly")
}

func (p *Plugin) args() map[string]string {
	if p.Args == nil {
		return map[string]string{}
	}
	return p.Args
}

func (p *Plugin) invoke(ctx context.Context, req interface{}) ([]byte, error) {
	input, err := json.Marshal(req)
	if err != nil {
		return nil, &PluginError{Plugin: p.Name, Err: err}
	}
	cmd := exec.CommandContext(ctx, p.Path)
	cmd.Stdin = bytes.NewReader(input)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = p.Stderr
	if p.log != nil {
		p.log.WithField("path", p.Path).Debug("running signer plugin")
	}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, p.fail("failed with exit code %d", exitErr.ExitCode())
		}
		return nil, &PluginError{Plugin: p.Name, Err: err}
	}
	if len(bytes.TrimSpace(out.Bytes())) == 0 {
		return nil, p.fail("no output")
	}
	return out.Bytes(), nil
}

type authRequest struct {
	Mode              string            `json:"mode"`
	Payload           string            `json:"payload"`
	NetworkPassphrase string            `json:"network_passphrase"`
	Address           string            `json:"address"`
	Nonce             int64             `json:"nonce"`
	Expiration        uint32            `json:"signature_expiration_ledger"`
	RootInvocation    string            `json:"root_invocation"`
	Args              map[string]string `json:"args"`
}

type txRequest struct {
	Mode              string            `json:"mode"`
	TxEnvelope        string            `json:"tx_env_xdr"`
	TxHash            string            `json:"tx_hash"`
	NetworkPassphrase string            `json:"network_passphrase"`
	Args              map[string]string `json:"args"`
}

// SignAuthEntry asks the plugin for the credential of one
// authorization entry whose preimage hashes to payload.
func (p *Plugin) SignAuthEntry(ctx context.Context, payload xdr.Hash,
	invocation xdr.SorobanAuthorizedInvocation, nonce int64,
	expiration uint32, passphrase string) (xdr.ScVal, error) {
	var ret xdr.ScVal
	addr, err := xdr.MarshalBase64(p.Address)
	if err != nil {
		return ret, errors.Wrap(err, "encoding address")
	}
	inv, err := xdr.MarshalBase64(invocation)
	if err != nil {
		return ret, errors.Wrap(err, "encoding invocation")
	}
	out, err := p.invoke(ctx, authRequest{
		Mode:              "sign_auth",
		Payload:           hex.EncodeToString(payload[:]),
		NetworkPassphrase: passphrase,
		Address:           addr,
		Nonce:             nonce,
		Expiration:        expiration,
		RootInvocation:    inv,
		Args:              p.args(),
	})
	if err != nil {
		return ret, err
	}
	if err := xdr.SafeUnmarshalBase64(strings.TrimSpace(string(out)), &ret); err != nil {
		return ret, p.fail("invalid credential: %s", err)
	}
	return ret, nil
}

// SignTx asks the plugin for signatures on an envelope whose hash is
// hash.  The plugin may return any number of signatures.
func (p *Plugin) SignTx(ctx context.Context, e *xdr.TransactionEnvelope,
	hash xdr.Hash, passphrase string) ([]xdr.DecoratedSignature, error) {
	env, err := xdr.MarshalBase64(e)
	if err != nil {
		return nil, errors.Wrap(err, "encoding transaction")
	}
	out, err := p.invoke(ctx, txRequest{
		Mode:              "sign_tx",
		TxEnvelope:        env,
		TxHash:            hex.EncodeToString(hash[:]),
		NetworkPassphrase: passphrase,
		Args:              p.args(),
	})
	if err != nil {
		return nil, err
	}
	var encoded []string
	if err := json.Unmarshal(out, &encoded); err != nil {
		return nil, p.fail(
			"expected JSON array of base64 DecoratedSignature: %s", err)
	}
	sigs := make([]xdr.DecoratedSignature, len(encoded))
	for i, s := range encoded {
		if err := xdr.SafeUnmarshalBase64(strings.TrimSpace(s), &sigs[i]); err != nil {
			return nil, p.fail("invalid signature %d: %s", i, err)
		}
	}
	return sigs, nil
}
