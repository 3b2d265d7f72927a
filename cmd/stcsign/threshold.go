package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stellar/go/strkey"
	"github.com/xdrpp/stcsign"
	"github.com/xdrpp/stcsign/stcdetail"
	"github.com/xdrpp/stcsign/threshold"
)

func newThresholdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threshold",
		Short: "Manage threshold signing identities",
	}
	cmd.AddCommand(newThresholdSplitCmd())
	return cmd
}

func newThresholdSplitCmd() *cobra.Command {
	var t, n int
	cmd := &cobra.Command{
		Use:   "split <identity> <new-identity>",
		Short: "Split a local key into shares held by a threshold identity",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			id, err := e.Config.LoadIdentity(args[0])
			if err != nil {
				return err
			}
			if k, _ := id.Kind(); k != stcsign.KindLocal {
				return errors.Errorf("identity %s is %s, not a local key", id.Name, k)
			}
			s, err := stcsign.OpenLocal(cmd.Context(), id)
			if err != nil {
				return err
			}
			seed := s.Local.RawSeed()
			ks, err := threshold.Split(seed[:], t, n)
			stcdetail.Zero32(&seed)
			if err != nil {
				return err
			}

			group, err := strkey.Encode(strkey.VersionByteAccountID, ks.GroupKey[:])
			if err != nil {
				return err
			}
			tid := &stcsign.Identity{Name: args[1],
				Threshold: &stcsign.ThresholdIdentity{
					GroupKey:  group,
					Threshold: ks.Threshold,
				}}
			for _, sh := range ks.Shares {
				tid.Threshold.Shares = append(tid.Threshold.Shares, sh.String())
			}
			if err := e.Config.SaveIdentity(tid); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), group)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&t, "threshold", "t", 2, "shares needed to sign")
	cmd.Flags().IntVarP(&n, "shares", "s", 3, "shares to create")
	return cmd
}
