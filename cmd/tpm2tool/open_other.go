//go:build !linux

package main

import (
	"fmt"

	"github.com/microsoft/TSS.MSR-sub003/internal/config"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport"
)

func openLocal(kind, _ string) (transport.Device, error) {
	return nil, fmt.Errorf("%w: transport %q is only available on Linux", config.ErrInvalid, kind)
}
