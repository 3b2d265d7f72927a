package stcsign

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/stellar/go/support/log"
	"github.com/xdrpp/stcsign/stcdetail"
)

var ErrIdentityNotFound = errors.New("identity not found")
var ErrNetworkNotFound = errors.New("network not found")

// ConfigDir returns the user's configuration directory.  From highest
// to lowest precedence it tries $STELLAR_CONFIG_HOME,
// $XDG_CONFIG_HOME/stellar, $HOME/.config/stellar, or ./.stellar,
// using the first one for which the environment variable exists.
func ConfigDir() string {
	var dir string
	if d, ok := os.LookupEnv("STELLAR_CONFIG_HOME"); ok && d != "" {
		dir = d
	} else if d, ok = os.LookupEnv("XDG_CONFIG_HOME"); ok && d != "" {
		dir = filepath.Join(d, "stellar")
	} else if d, ok = os.LookupEnv("HOME"); ok && d != "" {
		dir = filepath.Join(d, ".config", "stellar")
	} else {
		dir = ".stellar"
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return dir
}

// Identities and networks stored under one directory.  Files are
// written through stcdetail.UpdateFile, so a crash never leaves a
// partial file behind.
type Config struct {
	Dir string
	Log *log.Entry
}

// NewConfig uses dir, or ConfigDir() if dir is empty.
func NewConfig(dir string, logger *log.Entry) *Config {
	if dir == "" {
		dir = ConfigDir()
	}
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Config{Dir: dir, Log: logger.WithField("config_dir", dir)}
}

func (c *Config) path(kind, name string) string {
	return filepath.Join(c.Dir, kind, name+".toml")
}

func (c *Config) list(kind string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(c.Dir, kind, "*.toml"))
	if err != nil {
		return nil, err
	}
	ret := make([]string, 0, len(files))
	for _, f := range files {
		ret = append(ret, strings.TrimSuffix(filepath.Base(f), ".toml"))
	}
	sort.Strings(ret)
	return ret, nil
}

func (c *Config) write(path string, v interface{}) error {
	data, err := toml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding toml")
	}
	return stcdetail.SafeWriteFile(path, data, 0600)
}

func (c *Config) LoadIdentity(name string) (*Identity, error) {
	if !ValidNetName(name) {
		return nil, errors.Errorf("invalid identity name %q", name)
	}
	data, err := os.ReadFile(c.path("identity", name))
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrIdentityNotFound, name)
	} else if err != nil {
		return nil, err
	}
	defer stcdetail.Zero(data)
	id := &Identity{}
	if err := toml.Unmarshal(data, id); err != nil {
		return nil, errors.Wrapf(err, "identity %s", name)
	}
	id.Name = name
	if _, err := id.Kind(); err != nil {
		return nil, err
	}
	return id, nil
}

func (c *Config) SaveIdentity(id *Identity) error {
	if !ValidNetName(id.Name) {
		return errors.Errorf("invalid identity name %q", id.Name)
	}
	if _, err := id.Kind(); err != nil {
		return err
	}
	if err := c.write(c.path("identity", id.Name), id); err != nil {
		return err
	}
	c.Log.WithField("identity", id.Name).Info("saved identity")
	return nil
}

func (c *Config) RemoveIdentity(name string) error {
	if !ValidNetName(name) {
		return errors.Errorf("invalid identity name %q", name)
	}
	err := os.Remove(c.path("identity", name))
	if os.IsNotExist(err) {
		return errors.Wrap(ErrIdentityNotFound, name)
	}
	return err
}

func (c *Config) Identities() ([]string, error) {
	return c.list("identity")
}

// LoadNetwork reads a network file, falling back to BuiltinNetworks.
func (c *Config) LoadNetwork(name string) (*Network, error) {
	if !ValidNetName(name) {
		return nil, errors.Errorf("invalid network name %q", name)
	}
	data, err := os.ReadFile(c.path("network", name))
	if os.IsNotExist(err) {
		if net, ok := BuiltinNetworks[name]; ok {
			return &net, nil
		}
		return nil, errors.Wrap(ErrNetworkNotFound, name)
	} else if err != nil {
		return nil, err
	}
	net := &Network{}
	if err := toml.Unmarshal(data, net); err != nil {
		return nil, errors.Wrapf(err, "network %s", name)
	}
	net.Name = name
	if net.NetworkPassphrase == "" {
		return nil, errors.Errorf("network %s has no network_passphrase", name)
	}
	return net, nil
}

func (c *Config) SaveNetwork(net *Network) error {
	if !ValidNetName(net.Name) {
		return errors.Errorf("invalid network name %q", net.Name)
	}
	return c.write(c.path("network", net.Name), net)
}

func (c *Config) Networks() ([]string, error) {
	names, err := c.list("network")
	if err != nil {
		return nil, err
	}
	for name := range BuiltinNetworks {
		i := sort.SearchStrings(names, name)
		if i == len(names) || names[i] != name {
			names = append(names[:i], append([]string{name}, names[i:]...)...)
		}
	}
	return names, nil
}
