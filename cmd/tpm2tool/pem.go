package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/microsoft/TSS.MSR-sub003/tpm2"
)

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}
	return block, nil
}

// readRSAPublic reads a PKIX or PKCS#1 RSA public key.
func readRSAPublic(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}
	if block.Type == "RSA PUBLIC KEY" {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s: %T is not an RSA public key", path, key)
	}
	return pub, nil
}

// readRSAPrivate reads a PKCS#8 or PKCS#1 RSA private key.
func readRSAPrivate(path string) (*rsa.PrivateKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}
	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: %T is not an RSA private key", path, key)
	}
	return priv, nil
}

// publicArea returns template with its RSA key size and unique field set to
// those of pub.
func publicArea(template tpm2.TPMTPublic, pub *rsa.PublicKey) (*tpm2.TPMTPublic, error) {
	parms, err := template.Parameters.RSADetail()
	if err != nil {
		return nil, err
	}
	p := *parms
	p.KeyBits = uint16(pub.N.BitLen())
	if pub.E != 65537 {
		p.Exponent = uint32(pub.E)
	}
	template.Parameters = tpm2.NewTPMUPublicParms(tpm2.TPMAlgRSA, &p)
	template.Unique = tpm2.NewTPMUPublicID(tpm2.TPMAlgRSA, &tpm2.TPM2BPublicKeyRSA{Buffer: pub.N.Bytes()})
	return &template, nil
}
