package wallet

import (
	"github.com/nutvault/walletcore/cashu"
	"github.com/nutvault/walletcore/wallet/storage"
)

// ProofStore layers the named proof lifecycle operations over a WalletDB:
// Available, PendingSpent and Spent as described by the wallet's proof state
// machine. Spent proofs are not retained; finalizing a pending proof simply
// removes it, matching the db's own two-bucket (available/pending) layout.
type ProofStore struct {
	db storage.WalletDB
}

func NewProofStore(db storage.WalletDB) *ProofStore {
	return &ProofStore{db: db}
}

// AddProofs validates proofs are well-formed and not already known (by
// secret and C), then inserts them as Available. The whole batch is rejected
// if any proof in it is malformed or duplicated; no partial insert happens.
func (ps *ProofStore) AddProofs(proofs cashu.Proofs) error {
	if len(proofs) == 0 {
		return nil
	}

	existing := make(map[string]struct{}, len(proofs))
	for _, proof := range ps.db.GetProofs() {
		existing[proof.Secret+proof.C] = struct{}{}
	}

	for _, proof := range proofs {
		if proof.Amount == 0 {
			return ErrInvalidProofSet("proof has zero amount")
		}
		if proof.Secret == "" || proof.C == "" {
			return ErrInvalidProofSet("proof missing secret or C")
		}
		key := proof.Secret + proof.C
		if _, ok := existing[key]; ok {
			return ErrInvalidProofSet("duplicate proof")
		}
		existing[key] = struct{}{}
	}

	if err := ps.db.SaveProofs(proofs); err != nil {
		return ErrStoreFailed("add proofs", err)
	}
	return nil
}

// AvailableByKeyset returns all Available proofs, optionally restricted to a
// single keyset id. Pending and removed proofs are never included, since the
// underlying store keeps them in a separate bucket.
func (ps *ProofStore) AvailableByKeyset(keysetId string) cashu.Proofs {
	if keysetId == "" {
		return ps.db.GetProofs()
	}
	return ps.db.GetProofsByKeysetId(keysetId)
}

// MarkPending moves proofs from Available to PendingSpent ahead of a spend
// attempt. It fails, leaving storage untouched, if any proof is not
// currently Available.
func (ps *ProofStore) MarkPending(proofs cashu.Proofs) error {
	if len(proofs) == 0 {
		return nil
	}

	available := make(map[string]struct{})
	for _, proof := range ps.db.GetProofs() {
		available[proof.Secret+proof.C] = struct{}{}
	}
	for _, proof := range proofs {
		if _, ok := available[proof.Secret+proof.C]; !ok {
			return ErrInvalidState("proof is not available")
		}
	}

	if err := ps.db.AddPendingProofs(proofs); err != nil {
		return ErrStoreFailed("mark proofs pending", err)
	}
	for _, proof := range proofs {
		if err := ps.db.DeleteProof(proof.Secret); err != nil {
			return ErrStoreFailed("mark proofs pending", err)
		}
	}
	return nil
}

// FinalizePending transitions pending proofs to Spent by removing them.
// Idempotent: proofs no longer pending are silently skipped.
func (ps *ProofStore) FinalizePending(proofs cashu.Proofs) error {
	secrets := secretsOf(proofs)
	ys, err := secretsToYs(secrets)
	if err != nil {
		return ErrStoreFailed("finalize pending proofs", err)
	}
	if err := ps.db.DeletePendingProofs(ys); err != nil {
		return ErrStoreFailed("finalize pending proofs", err)
	}
	return nil
}

// RollbackPending transitions pending proofs back to Available. Idempotent.
func (ps *ProofStore) RollbackPending(proofs cashu.Proofs) error {
	if len(proofs) == 0 {
		return nil
	}
	secrets := secretsOf(proofs)
	ys, err := secretsToYs(secrets)
	if err != nil {
		return ErrStoreFailed("rollback pending proofs", err)
	}
	if err := ps.db.SaveProofs(proofs); err != nil {
		return ErrStoreFailed("rollback pending proofs", err)
	}
	if err := ps.db.DeletePendingProofs(ys); err != nil {
		return ErrStoreFailed("rollback pending proofs", err)
	}
	return nil
}

// Remove unconditionally deletes proofs from Available storage.
func (ps *ProofStore) Remove(proofs cashu.Proofs) error {
	for _, proof := range proofs {
		if err := ps.db.DeleteProof(proof.Secret); err != nil {
			return ErrStoreFailed("remove proofs", err)
		}
	}
	return nil
}

// Pending returns every proof currently in PendingSpent, for crash recovery:
// the caller should resolve each via check_state against the mint and either
// FinalizePending or RollbackPending it.
func (ps *ProofStore) Pending() []storage.DBProof {
	return ps.db.GetPendingProofs()
}

func secretsOf(proofs cashu.Proofs) []string {
	secrets := make([]string, len(proofs))
	for i, proof := range proofs {
		secrets[i] = proof.Secret
	}
	return secrets
}

func secretsToYs(secrets []string) ([]string, error) {
	ys := make([]string, len(secrets))
	for i, secret := range secrets {
		y, err := hashToCurveHex(secret)
		if err != nil {
			return nil, err
		}
		ys[i] = y
	}
	return ys, nil
}
