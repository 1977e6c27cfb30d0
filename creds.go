// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

// CredentialStore resolves an opaque security tag into a TLS configuration
// for the secure transport. Tags reference credential sets provisioned out
// of band; the bridge never sees raw key material outside the store.
type CredentialStore interface {
	TLSConfig(tag string) (*tls.Config, error)
}

// FileCredentialStore resolves security tags against a directory of PEM
// files: <tag>.ca.pem is the required trust anchor, and <tag>.crt.pem plus
// <tag>.key.pem form an optional client certificate. Private keys may be
// password-encrypted with PBKDF2 and AES-GCM.
//
// Peer verification is always required; the returned configuration never
// skips it.
type FileCredentialStore struct {
	// Dir is the credential directory.
	Dir string

	// KeyPassword decrypts encrypted private keys. Ignored for plaintext
	// keys.
	KeyPassword string
}

func (s *FileCredentialStore) TLSConfig(tag string) (*tls.Config, error) {
	if tag == "" || tag != filepath.Base(tag) {
		return nil, fmt.Errorf("invalid security tag %q", tag)
	}

	caPool, err := loadCACertPool(filepath.Join(s.Dir, tag+".ca.pem"))
	if err != nil {
		return nil, fmt.Errorf("security tag %q: %w", tag, err)
	}

	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    caPool,
	}

	certFile := filepath.Join(s.Dir, tag+".crt.pem")
	keyFile := filepath.Join(s.Dir, tag+".key.pem")
	if _, err := os.Stat(certFile); errors.Is(err, os.ErrNotExist) {
		// Server-authentication only.
		return cfg, nil
	}

	var cert tls.Certificate
	if s.KeyPassword != "" {
		cert, err = loadX509KeyPairWithPassword(
			certFile,
			keyFile,
			s.KeyPassword,
		)
	} else {
		cert, err = tls.LoadX509KeyPair(certFile, keyFile)
	}
	if err != nil {
		return nil, fmt.Errorf("security tag %q: %w", tag, err)
	}

	cfg.Certificates = []tls.Certificate{cert}
	return cfg, nil
}

// loadCACertPool loads a CA certificate pool from the specified file.
func loadCACertPool(caFile string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("no CA certificates in %s", caFile)
	}
	return caCertPool, nil
}

const aesGCMNonceSize = 12

// decryptPEMBlock decrypts a PEM block using PBKDF2 and AES-GCM.
func decryptPEMBlock(block *pem.Block, password []byte) ([]byte, error) {
	if block == nil {
		return nil, errors.New("PEM block is nil")
	}
	if len(block.Bytes) < 8 {
		return nil, errors.New("PEM block is too short to carry a salt")
	}

	// Extract the salt (first 8 bytes).
	salt := block.Bytes[:8]

	// Derive key using PBKDF2.
	key := pbkdf2.Key(password, salt, 10000, 32, sha3.New256)

	// Decrypt the block using AES-GCM.
	return aesGCMDecrypt(block.Bytes[8:], key)
}

// aesGCMDecrypt decrypts data using AES-GCM mode.
func aesGCMDecrypt(encrypted, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	if len(encrypted) < aesGCMNonceSize {
		return nil, errors.New("ciphertext in PEM block is too short")
	}

	nonce, ciphertext := encrypted[:aesGCMNonceSize], encrypted[aesGCMNonceSize:]

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return gcm.Open(nil, nonce, ciphertext, nil)
}

// loadX509KeyPairWithPassword loads a key pair whose private key file is
// encrypted.
func loadX509KeyPairWithPassword(
	certFile,
	keyFile,
	password string,
) (tls.Certificate, error) {
	certPEMBlock, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyPEMBlock, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyDERBlock, _ := pem.Decode(keyPEMBlock)
	if keyDERBlock == nil {
		return tls.Certificate{}, errors.New(
			"failed to decode PEM block containing private key",
		)
	}

	// x509.DecryptPEMBlock is deprecated due to insecurity,
	// and the x509 library doesn't want to support it:
	// https://github.com/golang/go/issues/8860
	decryptedDERBlock, err := decryptPEMBlock(keyDERBlock, []byte(password))
	if err != nil {
		return tls.Certificate{}, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  keyDERBlock.Type,
		Bytes: decryptedDERBlock,
	})

	cert, err := tls.X509KeyPair(certPEMBlock, keyPEM)
	if err != nil {
		return tls.Certificate{}, err
	}

	return cert, nil
}
