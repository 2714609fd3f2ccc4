package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/nutvault/walletcore/cashu/nuts/nut13"
	"github.com/nutvault/walletcore/crypto"
)

// hashToCurveHex returns the hex-encoded Y point used to key a proof in
// check_state requests and in the pending-proofs bucket.
func hashToCurveHex(secret string) (string, error) {
	Y, err := crypto.HashToCurve([]byte(secret))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(Y.SerializeCompressed()), nil
}

// masterKeyFromSeed builds the BIP-32 master extended key the wallet derives
// every per-keyset path from. chaincfg.MainNetParams is used only to pick
// the HD version bytes; no chain-specific behavior depends on it.
func masterKeyFromSeed(seed []byte) (*hdkeychain.ExtendedKey, error) {
	return hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
}

// generateDeterministicSecret derives the secret and blinding factor for the
// given keyset and counter index from master, per NUT-13.
func generateDeterministicSecret(master *hdkeychain.ExtendedKey, keysetId string, counter uint32) (string, *secp256k1.PrivateKey, error) {
	keysetPath, err := nut13.DeriveKeysetPath(master, keysetId)
	if err != nil {
		return "", nil, fmt.Errorf("nut13.DeriveKeysetPath: %v", err)
	}

	secret, err := nut13.DeriveSecret(keysetPath, counter)
	if err != nil {
		return "", nil, fmt.Errorf("nut13.DeriveSecret: %v", err)
	}

	r, err := nut13.DeriveBlindingFactor(keysetPath, counter)
	if err != nil {
		return "", nil, fmt.Errorf("nut13.DeriveBlindingFactor: %v", err)
	}

	return secret, r, nil
}
