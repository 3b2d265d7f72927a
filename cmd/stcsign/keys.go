package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/xdrpp/stcsign"
	"github.com/xdrpp/stcsign/keystore"
	"github.com/xdrpp/stcsign/stcdetail"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage signing identities",
	}
	cmd.AddCommand(newKeysGenerateCmd(), newKeysAddCmd(), newKeysAddressCmd(),
		newKeysLsCmd(), newKeysRmCmd())
	return cmd
}

func newKeysGenerateCmd() *cobra.Command {
	var seedPhrase, secureStore, encrypt, prompt bool
	var keyFile string
	var hdPath uint32
	cmd := &cobra.Command{
		Use:   "generate <name>",
		Short: "Generate a new identity",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			id := &stcsign.Identity{Name: args[0], Prompt: prompt}
			var k *stcsign.LocalKey
			var err error
			if seedPhrase {
				if id.SeedPhrase, err = stcsign.GenerateSeedPhrase(); err != nil {
					return err
				}
				id.HDPath = hdPath
				k, err = stcsign.SeedPhraseKey(id.SeedPhrase, hdPath)
			} else {
				k, err = stcsign.GenerateLocalKey()
			}
			if err != nil {
				return err
			}

			switch {
			case secureStore:
				ent, err := keystore.New(id.Name, e.Log)
				if err != nil {
					return err
				}
				if id.SeedPhrase != "" {
					err = ent.SetSeedPhrase(id.SeedPhrase)
				} else {
					seed := k.RawSeed()
					err = ent.Set(&seed)
					stcdetail.Zero32(&seed)
				}
				if err != nil {
					return err
				}
				id.SeedPhrase, id.SecureStore = "", true
			case keyFile != "":
				var pass []byte
				if encrypt {
					pass = stcdetail.GetPass2("Passphrase: ")
					defer stcdetail.Zero(pass)
				}
				if err := k.Save(keyFile, pass); err != nil {
					return err
				}
				id.SeedPhrase, id.KeyFile = "", keyFile
			case id.SeedPhrase == "":
				id.SecretKey = k.String()
			}
			if err := e.Config.SaveIdentity(id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), k.Address())
			return nil
		}),
	}
	cmd.Flags().BoolVar(&seedPhrase, "seed-phrase", false, "store a BIP-39 seed phrase instead of a secret key")
	cmd.Flags().BoolVar(&secureStore, "secure-store", false, "keep the key or seed phrase in the OS keychain")
	cmd.Flags().Uint32Var(&hdPath, "hd-path", 0, "account index derived from the seed phrase")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "write the key to this file")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "encrypt the key file with a passphrase")
	cmd.Flags().BoolVar(&prompt, "prompt", false, "confirm on the terminal before each signature")
	return cmd
}

func newKeysAddCmd() *cobra.Command {
	var secret, seedPhrase, useLedger, clearSign, prompt bool
	var keyFile, plugin, address string
	var hdPath uint32
	var pluginArgs map[string]string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an existing key as an identity",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			id := &stcsign.Identity{Name: args[0], HDPath: hdPath,
				Prompt: prompt}
			switch {
			case secret:
				k, err := stcsign.InputPrivateKey("Secret key: ")
				if err != nil {
					return err
				}
				id.SecretKey = k.String()
			case seedPhrase:
				phrase := stcdetail.GetPass("Seed phrase: ")
				defer stcdetail.Zero(phrase)
				id.SeedPhrase = strings.Join(strings.Fields(string(phrase)), " ")
				if _, err := stcsign.SeedPhraseKey(id.SeedPhrase, hdPath); err != nil {
					return err
				}
			case keyFile != "":
				id.KeyFile = keyFile
			case useLedger:
				id.Ledger, id.ClearSign = true, clearSign
			case plugin != "":
				if _, err := stcsign.ParseAddress(address); err != nil {
					return err
				}
				id.Plugin = &stcsign.PluginIdentity{Name: plugin,
					Address: address, Args: pluginArgs}
			default:
				return errors.New("one of --secret-key, --seed-phrase, " +
					"--key-file, --ledger or --plugin is required")
			}
			return e.Config.SaveIdentity(id)
		}),
	}
	f := cmd.Flags()
	f.BoolVar(&secret, "secret-key", false, "read a secret key (S...) from the terminal")
	f.BoolVar(&seedPhrase, "seed-phrase", false, "read a BIP-39 seed phrase from the terminal")
	f.StringVar(&keyFile, "key-file", "", "use a plain or encrypted key file")
	f.BoolVar(&useLedger, "ledger", false, "use a Ledger hardware wallet")
	f.BoolVar(&clearSign, "clear-sign", false, "show whole transactions on the Ledger")
	f.Uint32Var(&hdPath, "hd-path", 0, "account index for seed phrases and Ledger")
	f.StringVar(&plugin, "plugin", "", "signer plugin name (stellar-signer-<name>)")
	f.StringVar(&address, "address", "", "address the plugin signs for")
	f.StringToStringVar(&pluginArgs, "plugin-arg", nil, "key=value passed to the plugin")
	f.BoolVar(&prompt, "prompt", false, "confirm on the terminal before each signature")
	return cmd
}

func newKeysAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address <name>",
		Short: "Print the address of an identity",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			s, err := e.signer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			addr, err := s.Address(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stcsign.AddressString(addr))
			return nil
		}),
	}
}

func newKeysLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List identities",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			names, err := e.Config.Identities()
			if err != nil {
				return err
			}
			for _, name := range names {
				id, err := e.Config.LoadIdentity(name)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t(%s)\n", name, err)
					continue
				}
				k, _ := id.Kind()
				status := ""
				if !e.Registry.Enabled(k) {
					status = " (not enabled)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s%s\n", name, k, status)
			}
			return nil
		}),
	}
}

func newKeysRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove an identity",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			id, err := e.Config.LoadIdentity(args[0])
			if err != nil {
				return err
			}
			if id.SecureStore {
				ent, err := keystore.New(id.Name, e.Log)
				if err != nil {
					return err
				}
				if err := ent.Delete(); err != nil &&
					errors.Cause(err) != keystore.ErrNotFound {
					return err
				}
			}
			return e.Config.RemoveIdentity(id.Name)
		}),
	}
}
