// Command stcsign manages signing identities and signs Stellar
// transactions and Soroban authorization entries with them.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stellar/go/support/log"
	"github.com/xdrpp/stcsign"
	"github.com/xdrpp/stcsign/ledger"
)

// Process-wide settings, resolved from flags and the environment.
type settings struct {
	ConfigDir         string
	Network           string
	RPCURL            string
	NetworkPassphrase string
	LogLevel          string
	SpeculosHost      string
	SpeculosPort      uint16
	Threshold         bool
}

func loadSettings() settings {
	return settings{
		ConfigDir:         viper.GetString("config-home"),
		Network:           viper.GetString("network"),
		RPCURL:            viper.GetString("rpc-url"),
		NetworkPassphrase: viper.GetString("network-passphrase"),
		LogLevel:          viper.GetString("log-level"),
		SpeculosHost:      viper.GetString("speculos-host"),
		SpeculosPort:      uint16(viper.GetUint("speculos-port")),
		Threshold:         viper.GetBool("threshold"),
	}
}

// An invocation's configuration, registry and logger.
type env struct {
	settings
	Log      *log.Entry
	Config   *stcsign.Config
	Registry *stcsign.Registry
}

func newEnv() (*env, error) {
	s := loadSettings()
	logger := log.DefaultLogger
	ll, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, errors.Errorf("could not parse log-level: %v", s.LogLevel)
	}
	logger.SetLevel(ll)
	return &env{
		settings: s,
		Log:      logger,
		Config:   stcsign.NewConfig(s.ConfigDir, logger),
		Registry: stcsign.DefaultRegistry(stcsign.RegistryOptions{
			Log:          logger,
			EmulatorHost: s.SpeculosHost,
			EmulatorPort: s.SpeculosPort,
			Threshold:    s.Threshold,
		}),
	}, nil
}

func (e *env) Close() error {
	return e.Registry.Close()
}

// network resolves the named network, then applies any explicit
// passphrase or RPC URL.
func (e *env) network() (stcsign.Network, error) {
	var net stcsign.Network
	if e.Network != "" {
		n, err := e.Config.LoadNetwork(e.Network)
		if err != nil && (e.NetworkPassphrase == "" ||
			errors.Cause(err) != stcsign.ErrNetworkNotFound) {
			return net, err
		} else if err == nil {
			net = *n
		}
	}
	if e.NetworkPassphrase != "" {
		net.NetworkPassphrase = e.NetworkPassphrase
	}
	if e.RPCURL != "" {
		net.RPCURL = e.RPCURL
	}
	if net.NetworkPassphrase == "" {
		return net, errors.New("no network passphrase; use --network or " +
			"--network-passphrase")
	}
	return net, nil
}

// signer opens the named identity.
func (e *env) signer(ctx context.Context, name string) (*stcsign.Signer, error) {
	id, err := e.Config.LoadIdentity(name)
	if err != nil {
		return nil, err
	}
	return e.Registry.Open(ctx, id)
}

// transport opens a hardware transport for the ledger commands.
func (e *env) transport() (ledger.Transport, error) {
	if e.SpeculosPort != 0 {
		return ledger.NewEmulatorTransport(e.SpeculosHost, e.SpeculosPort,
			e.Log), nil
	}
	return ledger.OpenHID(e.Log)
}

// withEnv adapts a command body that needs an env.
func withEnv(fn func(cmd *cobra.Command, e *env, args []string) error) func(
	*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd, e, args)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stcsign",
		Short: "Sign Stellar transactions and Soroban authorizations",
		Long: `stcsign signs Stellar transactions and Soroban authorization
entries with keys held in memory, in the OS keychain, on a Ledger
hardware wallet, split among threshold share holders, or behind an
external signer plugin.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config-home", "", "configuration directory (default $XDG_CONFIG_HOME/stellar)")
	flags.StringP("network", "n", "testnet", "name of the network to sign for")
	flags.String("rpc-url", "", "RPC server endpoint, overriding the network's")
	flags.String("network-passphrase", "", "network passphrase, overriding the network's")
	flags.String("log-level", "warn", "minimum log severity (debug, info, warn, error)")
	flags.Bool("threshold", false, "enable the threshold signing backend")

	viper.SetEnvPrefix("STELLAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"config-home", "network", "rpc-url",
		"network-passphrase", "log-level", "threshold"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
	viper.BindEnv("speculos-port", "SPECULOS_PORT")
	viper.BindEnv("speculos-host", "SPECULOS_HOST")
	viper.SetDefault("speculos-host", "localhost")

	cmd.AddCommand(newKeysCmd(), newLedgerCmd(), newSignCmd(),
		newThresholdCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
