// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package walletcrypto encrypts a private key scalar under a
// passphrase-derived key before it is handed to walletdb for storage,
// and decrypts it back on demand.
package walletcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/pbkdf2"

	"github.com/btcspv/spvnode/errs"
)

const (
	saltLen    = 16
	pbkdf2Iter = 150_000
	keyLen     = 32
)

var errShortEnvelope = errors.New("encrypted key envelope too short")

// DeriveKey stretches passphrase into a 32-byte AES-256 key using
// PBKDF2-HMAC-SHA256 with the given salt.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iter, keyLen, sha256.New)
}

// Seal encrypts a 32-byte secp256k1 private scalar under passphrase,
// returning salt || nonce || ciphertext (AES-256-GCM, authenticated).
func Seal(priv []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, &errs.Key{Reason: err.Error()}
	}

	block, err := aes.NewCipher(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, &errs.Key{Reason: err.Error()}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &errs.Key{Reason: err.Error()}
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, &errs.Key{Reason: err.Error()}
	}

	out := make([]byte, 0, saltLen+len(nonce)+len(priv)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, priv, nil)
	return out, nil
}

// Open reverses Seal, returning the original private scalar. A wrong
// passphrase or a tampered envelope both surface as *errs.Key, never a
// silently wrong key.
func Open(envelope []byte, passphrase string) ([]byte, error) {
	if len(envelope) < saltLen+12 {
		return nil, &errs.Key{Reason: errShortEnvelope.Error()}
	}
	salt := envelope[:saltLen]
	rest := envelope[saltLen:]

	block, err := aes.NewCipher(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, &errs.Key{Reason: err.Error()}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &errs.Key{Reason: err.Error()}
	}
	if len(rest) < gcm.NonceSize() {
		return nil, &errs.Key{Reason: errShortEnvelope.Error()}
	}

	nonce := rest[:gcm.NonceSize()]
	ciphertext := rest[gcm.NonceSize():]
	priv, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &errs.Key{Reason: "incorrect passphrase or corrupted key"}
	}
	return priv, nil
}
