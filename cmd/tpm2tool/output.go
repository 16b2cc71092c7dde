package main

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// writeYAML encodes v to path, or to w when path is empty.
func writeYAML(w io.Writer, path string, v interface{}) error {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
