package crypto

import (
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// Параметры деривации ключа.
// Итерации по рекомендации OWASP для PBKDF2-SHA256.
const (
	keyIterations = 600000
	keyLength     = 32
)

// ErrEmptyPassphrase возвращается при пустой master-фразе
var ErrEmptyPassphrase = errors.New("encryption passphrase cannot be empty")

// ErrSaltTooShort возвращается при соли короче 16 байт
var ErrSaltTooShort = errors.New("salt must be at least 16 bytes")

// DeriveKey выводит 32-байтный ключ AES-256 из master-фразы конфигурации.
//
// Позволяет задавать в окружении фразу произвольной длины вместо
// ровно 32 байт сырого ключа. Соль фиксируется на установку
// (хранится рядом с конфигурацией, секретом не является).
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if len(salt) < 16 {
		return nil, ErrSaltTooShort
	}
	return pbkdf2.Key([]byte(passphrase), salt, keyIterations, keyLength, sha256.New), nil
}
