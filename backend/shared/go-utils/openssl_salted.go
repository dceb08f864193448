package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// The format matches
//
//	openssl enc -aes-256-cbc -salt -pbkdf2 -base64 -pass pass:...
//
// i.e. base64("Salted__" + 8-byte salt + AES-256-CBC ciphertext), with key and
// IV derived by PBKDF2-SHA256 over 10000 iterations.
const (
	opensslMagic      = "Salted__"
	opensslSaltLen    = 8
	opensslIterations = 10000
)

func opensslKeyIV(passphrase, salt []byte) (key, iv []byte) {
	derived := pbkdf2.Key(passphrase, salt, opensslIterations, 48, sha256.New)
	return derived[:32], derived[32:]
}

// EncryptOpenSSLSalted is the inverse of DecryptOpenSSLSalted.
func EncryptOpenSSLSalted(passphrase []byte, text string) (string, error) {
	if len(passphrase) == 0 {
		return "", errors.New("passphrase cannot be empty")
	}
	salt := make([]byte, opensslSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key, iv := opensslKeyIV(passphrase, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	pad := block.BlockSize() - len(text)%block.BlockSize()
	plaintext := append([]byte(text), bytes.Repeat([]byte{byte(pad)}, pad)...)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)

	out := make([]byte, 0, len(opensslMagic)+opensslSaltLen+len(ciphertext))
	out = append(out, opensslMagic...)
	out = append(out, salt...)
	out = append(out, ciphertext...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptOpenSSLSalted decrypts a standard-base64 OpenSSL salted blob.
func DecryptOpenSSLSalted(passphrase []byte, b64Cipher string) (string, error) {
	if len(passphrase) == 0 {
		return "", errors.New("passphrase cannot be empty")
	}
	if b64Cipher == "" {
		return "", errors.New("ciphertext cannot be empty")
	}
	raw, err := base64.StdEncoding.DecodeString(b64Cipher)
	if err != nil {
		return "", err
	}
	if len(raw) < len(opensslMagic)+opensslSaltLen {
		return "", errors.New("invalid data: missing 'Salted__' header or salt")
	}
	if string(raw[:len(opensslMagic)]) != opensslMagic {
		return "", errors.New("data does not begin with 'Salted__'")
	}
	salt := raw[len(opensslMagic) : len(opensslMagic)+opensslSaltLen]
	ciphertext := raw[len(opensslMagic)+opensslSaltLen:]
	if len(ciphertext) == 0 {
		return "", errors.New("no ciphertext data")
	}

	key, iv := opensslKeyIV(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	if len(ciphertext)%block.BlockSize() != 0 {
		return "", errors.New("ciphertext not multiple of block size")
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	pad := int(plaintext[len(plaintext)-1])
	if pad < 1 || pad > block.BlockSize() {
		return "", errors.New("invalid padding length")
	}
	return string(plaintext[:len(plaintext)-pad]), nil
}
