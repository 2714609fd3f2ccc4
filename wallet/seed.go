package wallet

import (
	"errors"

	"github.com/tyler-smith/go-bip39"
)

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// GenerateMnemonic returns a fresh BIP-39 mnemonic. entropyBits must be a
// multiple of 32 in [128, 256]; 128 yields a 12-word mnemonic, 256 a 24-word
// one.
func GenerateMnemonic(entropyBits int) (string, error) {
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// SeedFromMnemonic derives the BIP-39 seed for mnemonic and passphrase. It
// does not validate the mnemonic's checksum; call ValidateMnemonic first.
func SeedFromMnemonic(mnemonic, passphrase string) []byte {
	return bip39.NewSeed(mnemonic, passphrase)
}

func ValidateMnemonic(mnemonic string) error {
	if !bip39.IsMnemonicValid(mnemonic) {
		return ErrInvalidMnemonic
	}
	return nil
}
