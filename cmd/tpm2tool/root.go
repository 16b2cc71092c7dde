package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/microsoft/TSS.MSR-sub003/internal/config"
)

// app holds the state shared by the subcommands of one root command.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log *logrus.Logger
}

// NewRootCmd returns the tpm2tool command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	cmd := &cobra.Command{
		Use:          "tpm2tool",
		Short:        "TPM 2.0 client tool",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			if a.cfg, err = config.Load(a.v, path); err != nil {
				return err
			}
			a.log = a.cfg.Logger()
			a.log.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}
	config.AddFlags(a.v, cmd.PersistentFlags())

	newRandomCmd(cmd, a)
	newStartupCmd(cmd, a)
	newMakeCredentialCmd(cmd, a)
	newDuplicateCmd(cmd, a)
	return cmd
}
