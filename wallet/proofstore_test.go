package wallet

import (
	"os"
	"testing"

	"github.com/nutvault/walletcore/cashu"
	"github.com/nutvault/walletcore/wallet/storage"
)

func newTestProofStore(t *testing.T) *ProofStore {
	t.Helper()
	dir, err := os.MkdirTemp("", "proofstore-test-*")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := storage.InitBolt(dir)
	if err != nil {
		t.Fatalf("init bolt: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewProofStore(db)
}

func testProof(secret, c string, amount uint64) cashu.Proof {
	return cashu.Proof{Amount: amount, Id: "00deadbeef00", Secret: secret, C: c}
}

func TestAddProofsRejectsDuplicate(t *testing.T) {
	ps := newTestProofStore(t)
	p := testProof("s1", "c1", 4)

	if err := ps.AddProofs(cashu.Proofs{p}); err != nil {
		t.Fatalf("unexpected error adding proof: %v", err)
	}
	if err := ps.AddProofs(cashu.Proofs{p}); err == nil {
		t.Fatal("expected error re-adding a proof with the same secret and C")
	}
}

func TestAddProofsRejectsMalformed(t *testing.T) {
	ps := newTestProofStore(t)
	if err := ps.AddProofs(cashu.Proofs{testProof("", "c1", 4)}); err == nil {
		t.Fatal("expected error for proof missing secret")
	}
	if err := ps.AddProofs(cashu.Proofs{testProof("s1", "c1", 0)}); err == nil {
		t.Fatal("expected error for zero-amount proof")
	}
}

func TestProofLifecycleNoResurrection(t *testing.T) {
	ps := newTestProofStore(t)
	p := testProof("s1", "c1", 8)

	if err := ps.AddProofs(cashu.Proofs{p}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := ps.MarkPending(cashu.Proofs{p}); err != nil {
		t.Fatalf("mark pending: %v", err)
	}

	if avail := ps.AvailableByKeyset(""); len(avail) != 0 {
		t.Fatalf("expected proof to leave Available once pending, got %v", avail)
	}
	if pending := ps.Pending(); len(pending) != 1 {
		t.Fatalf("expected 1 pending proof, got %v", len(pending))
	}

	if err := ps.FinalizePending(cashu.Proofs{p}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if pending := ps.Pending(); len(pending) != 0 {
		t.Fatalf("expected no pending proofs after finalize, got %v", len(pending))
	}
	if avail := ps.AvailableByKeyset(""); len(avail) != 0 {
		t.Fatalf("a finalized (spent) proof must never resurrect into Available, got %v", avail)
	}
}

func TestRollbackPendingReturnsToAvailable(t *testing.T) {
	ps := newTestProofStore(t)
	p := testProof("s2", "c2", 2)

	if err := ps.AddProofs(cashu.Proofs{p}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := ps.MarkPending(cashu.Proofs{p}); err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	if err := ps.RollbackPending(cashu.Proofs{p}); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	avail := ps.AvailableByKeyset("")
	if len(avail) != 1 || avail[0].Secret != "s2" {
		t.Fatalf("expected proof back in Available after rollback, got %v", avail)
	}
	if pending := ps.Pending(); len(pending) != 0 {
		t.Fatalf("expected no pending proofs after rollback, got %v", len(pending))
	}
}

func TestMarkPendingRejectsUnavailableProof(t *testing.T) {
	ps := newTestProofStore(t)
	p := testProof("never-added", "c", 4)
	if err := ps.MarkPending(cashu.Proofs{p}); err == nil {
		t.Fatal("expected error marking a proof pending that was never Available")
	}
}
