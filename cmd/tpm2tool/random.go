package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/microsoft/TSS.MSR-sub003/tpm2"
)

func newRandomCmd(root *cobra.Command, a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "random",
		Args:  cobra.NoArgs,
		Short: "Print random bytes from the TPM as hex",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := cmd.Flags().GetUint16("bytes")
			if err != nil {
				return err
			}
			tpm, err := a.openTPM()
			if err != nil {
				return err
			}
			defer tpm.Close()

			rsp, err := tpm2.GetRandom{BytesRequested: n}.Execute(cmd.Context(), tpm)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(rsp.RandomBytes.Buffer))
			return nil
		},
	}
	c.Flags().Uint16("bytes", 16, "Number of bytes to request")
	root.AddCommand(c)
	return c
}
