// Command tpm2tool talks to a TPM 2.0 and prepares credential activation and
// duplication blobs offline.
package main

import "os"

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
