package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// DefaultKeyBits is the RSA modulus size keygen uses.
const DefaultKeyBits = 2048

var ErrNoPEMBlock = errors.New("no PEM block found")

func GenerateKey(bits int) (*rsa.PrivateKey, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	return rsa.GenerateKey(rand.Reader, bits)
}

func ParsePrivateKey(bb []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(bb)
	if block == nil {
		return nil, ErrNoPEMBlock
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}

		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("unsupported private key type %T", key)
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

func ParsePublicKey(bb []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(bb)
	if block == nil {
		return nil, ErrNoPEMBlock
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}

		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("unsupported public key type %T", key)
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	bb, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	key, err := ParsePrivateKey(bb)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %q: %w", path, err)
	}
	return key, nil
}

func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	bb, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	key, err := ParsePublicKey(bb)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key %q: %w", path, err)
	}
	return key, nil
}

func MarshalPrivateKey(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	}), nil
}

func MarshalPublicKey(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	}), nil
}

// WriteKeyPair writes key and its public half as PEM files.
// It refuses to overwrite an existing private key.
func WriteKeyPair(privPath, pubPath string, key *rsa.PrivateKey) error {
	privPEM, err := MarshalPrivateKey(key)
	if err != nil {
		return err
	}

	pubPEM, err := MarshalPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(privPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}

	if _, err := f.Write(privPEM); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.WriteFile(pubPath, pubPEM, 0644)
}
