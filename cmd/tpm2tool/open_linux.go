//go:build linux

package main

import (
	"fmt"

	"github.com/microsoft/TSS.MSR-sub003/internal/config"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport/linuxtpm"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport/linuxudstpm"
)

func openLocal(kind, path string) (transport.Device, error) {
	switch kind {
	case config.TransportDevice:
		return linuxtpm.Open(path)
	case config.TransportUDS:
		return linuxudstpm.Open(path)
	}
	return nil, fmt.Errorf("%w: unknown transport %q", config.ErrInvalid, kind)
}
