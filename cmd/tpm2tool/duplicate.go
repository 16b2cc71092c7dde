package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/microsoft/TSS.MSR-sub003/tpm2"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/duplication"
	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

// duplicateFile is the YAML form of a duplication blob. Byte fields hold
// hex encoded TPM2B encodings, as passed to TPM2_Import.
type duplicateFile struct {
	Public        string `yaml:"public"`
	Duplicate     string `yaml:"duplicate"`
	EncryptedSeed string `yaml:"encryptedSeed"`
	EncryptionKey string `yaml:"encryptionKey,omitempty"`
	Symmetric     string `yaml:"symmetric"`
}

func newDuplicateCmd(root *cobra.Command, a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "duplicate",
		Args:  cobra.NoArgs,
		Short: "Wrap an RSA private key for TPM2_Import under an RSA storage parent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			parentPath, _ := cmd.Flags().GetString("parent")
			keyPath, _ := cmd.Flags().GetString("key")
			auth, _ := cmd.Flags().GetString("auth")
			inner, _ := cmd.Flags().GetBool("inner-wrapper")
			out, _ := cmd.Flags().GetString("out")

			parentKey, err := readRSAPublic(parentPath)
			if err != nil {
				return fmt.Errorf("reading parent: %w", err)
			}
			parent, err := publicArea(tpm2.RSASRKTemplate, parentKey)
			if err != nil {
				return err
			}
			key, err := readRSAPrivate(keyPath)
			if err != nil {
				return fmt.Errorf("reading key: %w", err)
			}

			var opts []duplication.Option
			if inner {
				opts = append(opts, duplication.WithInnerWrapper(tpm2.TPMTSymDef{
					Algorithm: tpm2.TPMAlgAES,
					KeyBits:   128,
					Mode:      tpm2.TPMAlgCFB,
				}))
			}
			pub, sens := duplication.FromRSAKey(key, []byte(auth))
			blob, err := duplication.Create(parent, pub, sens, opts...)
			if err != nil {
				return err
			}

			f := duplicateFile{Symmetric: blob.Symmetric.Algorithm.String()}
			for _, field := range []struct {
				dst *string
				m   tpmutil.Marshaler
			}{
				{&f.Public, tpm2.New2BPublic(pub)},
				{&f.Duplicate, blob.Duplicate},
				{&f.EncryptedSeed, blob.EncryptedSeed},
			} {
				b, err := tpmutil.Marshal(field.m)
				if err != nil {
					return err
				}
				*field.dst = hex.EncodeToString(b)
			}
			if inner {
				f.EncryptionKey = hex.EncodeToString(blob.InnerWrapperKey.Buffer)
			}
			a.log.WithField("symmetric", f.Symmetric).Info("generated duplication blob")
			return writeYAML(cmd.OutOrStdout(), out, f)
		},
	}
	c.Flags().String("parent", "", "PEM file holding the RSA public key of the new parent")
	c.Flags().String("key", "", "PEM file holding the RSA private key to duplicate")
	c.Flags().String("auth", "", "Authorization value of the imported key")
	c.Flags().Bool("inner-wrapper", false, "Apply an AES-128-CFB inner wrapper")
	c.Flags().String("out", "", "Output file (default stdout)")
	_ = c.MarkFlagRequired("parent")
	_ = c.MarkFlagRequired("key")
	root.AddCommand(c)
	return c
}
