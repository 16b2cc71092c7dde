package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/microsoft/TSS.MSR-sub003/tpm2"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport"
)

func newStartupCmd(root *cobra.Command, a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "startup",
		Args:  cobra.NoArgs,
		Short: "Run TPM2_Startup, optionally after a power cycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := cmd.Flags().GetString("type")
			if err != nil {
				return err
			}
			var su tpm2.TPMSU
			switch kind {
			case "clear":
				su = tpm2.TPMSUClear
			case "state":
				su = tpm2.TPMSUState
			default:
				return fmt.Errorf("unknown startup type %q", kind)
			}

			tpm, err := a.openTPM()
			if err != nil {
				return err
			}
			defer tpm.Close()

			if cmd.Flag("power-cycle").Changed {
				if err := transport.Power(tpm.Device()).PowerCycle(); err != nil {
					return fmt.Errorf("power cycle: %w", err)
				}
			}
			res, err := tpm2.Startup{StartupType: su}.Execute(cmd.Context(), tpm,
				tpm2.AllowErrors(tpm2.TPMRCSuccess, tpm2.TPMRCInitialize))
			if err != nil {
				return err
			}
			if res.Code == tpm2.TPMRCInitialize {
				fmt.Fprintln(cmd.OutOrStdout(), "TPM already started")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "TPM started")
			return nil
		},
	}
	c.Flags().String("type", "clear", "Startup type: clear or state")
	c.Flags().Bool("power-cycle", false, "Power cycle the TPM first")
	root.AddCommand(c)
	return c
}
