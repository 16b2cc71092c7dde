package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/microsoft/TSS.MSR-sub003/tpm2"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/credactivation"
)

// credentialFile is the YAML form of a generated credential. Byte fields
// are hex encoded; CredentialBlob and EncryptedSecret are the TPM2B
// encodings passed to TPM2_ActivateCredential.
type credentialFile struct {
	Name            string `yaml:"name"`
	Secret          string `yaml:"secret"`
	CredentialBlob  string `yaml:"credentialBlob"`
	EncryptedSecret string `yaml:"encryptedSecret"`
}

func newMakeCredentialCmd(root *cobra.Command, a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "make-credential",
		Args:  cobra.NoArgs,
		Short: "Protect a secret for TPM2_ActivateCredential on the TPM holding an RSA EK",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ekPath, _ := cmd.Flags().GetString("ek")
			nameHex, _ := cmd.Flags().GetString("name")
			secretHex, _ := cmd.Flags().GetString("secret")
			out, _ := cmd.Flags().GetString("out")

			ek, err := readRSAPublic(ekPath)
			if err != nil {
				return fmt.Errorf("reading EK: %w", err)
			}
			pub, err := publicArea(tpm2.RSAEKTemplate, ek)
			if err != nil {
				return err
			}
			name, err := hex.DecodeString(nameHex)
			if err != nil {
				return fmt.Errorf("decoding --name: %w", err)
			}
			secret, err := hex.DecodeString(secretHex)
			if err != nil {
				return fmt.Errorf("decoding --secret: %w", err)
			}
			if len(secret) == 0 {
				secret = make([]byte, 32)
				if _, err := io.ReadFull(rand.Reader, secret); err != nil {
					return err
				}
			}

			cred, err := credactivation.Generate(pub, tpm2.TPM2BName{Buffer: name}, secret)
			if err != nil {
				return err
			}
			idObject, encSecret, err := cred.Marshal()
			if err != nil {
				return err
			}
			a.log.WithField("name", nameHex).Info("generated credential")
			return writeYAML(cmd.OutOrStdout(), out, credentialFile{
				Name:            nameHex,
				Secret:          hex.EncodeToString(secret),
				CredentialBlob:  hex.EncodeToString(idObject),
				EncryptedSecret: hex.EncodeToString(encSecret),
			})
		},
	}
	c.Flags().String("ek", "", "PEM file holding the RSA endorsement public key")
	c.Flags().String("name", "", "Hex encoded name of the object to activate")
	c.Flags().String("secret", "", "Hex encoded secret (default 32 random bytes)")
	c.Flags().String("out", "", "Output file (default stdout)")
	_ = c.MarkFlagRequired("ek")
	_ = c.MarkFlagRequired("name")
	root.AddCommand(c)
	return c
}
