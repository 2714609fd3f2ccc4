package crypto

import (
	"bytes"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func TestHashToCurveDeterministic(t *testing.T) {
	secret := []byte("test_secret_x")

	Y1, err := HashToCurve(secret)
	if err != nil {
		t.Fatalf("HashToCurve: %v", err)
	}
	Y2, err := HashToCurve(secret)
	if err != nil {
		t.Fatalf("HashToCurve: %v", err)
	}

	if !bytes.Equal(Y1.SerializeCompressed(), Y2.SerializeCompressed()) {
		t.Fatal("HashToCurve is not deterministic for the same secret")
	}
}

func TestHashToCurveDiffersPerSecret(t *testing.T) {
	Y1, err := HashToCurve([]byte("secret one"))
	if err != nil {
		t.Fatalf("HashToCurve: %v", err)
	}
	Y2, err := HashToCurve([]byte("secret two"))
	if err != nil {
		t.Fatalf("HashToCurve: %v", err)
	}

	if bytes.Equal(Y1.SerializeCompressed(), Y2.SerializeCompressed()) {
		t.Fatal("different secrets hashed to the same point")
	}
}

func TestHashToCurveOnCurve(t *testing.T) {
	for _, secret := range [][]byte{[]byte("a"), []byte("b"), []byte("longer secret value here")} {
		Y, err := HashToCurve(secret)
		if err != nil {
			t.Fatalf("HashToCurve(%q): %v", secret, err)
		}
		if _, err := secp256k1.ParsePubKey(Y.SerializeCompressed()); err != nil {
			t.Fatalf("resulting point does not parse as valid pubkey: %v", err)
		}
	}
}

func TestBlindUnblindRoundTrip(t *testing.T) {
	secret := "deterministic-secret"

	B_, r, err := BlindMessage(secret, nil)
	if err != nil {
		t.Fatalf("BlindMessage: %v", err)
	}

	mintKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}

	C_ := SignBlindedMessage(B_, mintKey)

	C, err := UnblindSignature(C_, r, mintKey.PubKey())
	if err != nil {
		t.Fatalf("UnblindSignature: %v", err)
	}

	Y, err := HashToCurve([]byte(secret))
	if err != nil {
		t.Fatalf("HashToCurve: %v", err)
	}

	var yPoint secp256k1.JacobianPoint
	Y.AsJacobian(&yPoint)
	var expected secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&mintKey.Key, &yPoint, &expected)
	expected.ToAffine()
	expectedKey := secp256k1.NewPublicKey(&expected.X, &expected.Y)

	if !bytes.Equal(C.SerializeCompressed(), expectedKey.SerializeCompressed()) {
		t.Fatal("unblinded signature does not equal k*hashToCurve(secret)")
	}
}

func TestBlindMessageReusesSuppliedFactor(t *testing.T) {
	r, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}

	_, rOut, err := BlindMessage("some secret", r)
	if err != nil {
		t.Fatalf("BlindMessage: %v", err)
	}

	if rOut != r {
		t.Fatal("BlindMessage did not reuse the supplied blinding factor")
	}
}

func TestVerifyDLEQAcceptsValidProof(t *testing.T) {
	secret := "dleq-secret"

	B_, _, err := BlindMessage(secret, nil)
	if err != nil {
		t.Fatalf("BlindMessage: %v", err)
	}

	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	A := k.PubKey()
	C_ := SignBlindedMessage(B_, k)

	e, s := fakeDLEQProof(t, k, B_, C_)

	if !VerifyDLEQ(e, s, A, B_, C_) {
		t.Fatal("valid DLEQ proof rejected")
	}
}

func TestVerifyDLEQRejectsTamperedProof(t *testing.T) {
	secret := "dleq-secret-2"

	B_, _, err := BlindMessage(secret, nil)
	if err != nil {
		t.Fatalf("BlindMessage: %v", err)
	}

	k, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	A := k.PubKey()
	C_ := SignBlindedMessage(B_, k)

	e, s := fakeDLEQProof(t, k, B_, C_)

	otherKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}

	if VerifyDLEQ(e, s, otherKey.PubKey(), B_, C_) {
		t.Fatal("DLEQ proof verified against the wrong public key")
	}
}

// fakeDLEQProof builds a valid (e, s) proof for A=k*G, C_=k*B_, mirroring
// the mint-side proving steps so the verifier can be exercised without a
// live mint.
func fakeDLEQProof(t *testing.T, k *secp256k1.PrivateKey, B_, C_ *secp256k1.PublicKey) (*secp256k1.PrivateKey, *secp256k1.PrivateKey) {
	t.Helper()

	r, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}

	var rG, rB secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&r.Key, &rG)
	rG.ToAffine()
	R1 := secp256k1.NewPublicKey(&rG.X, &rG.Y)

	var bPoint secp256k1.JacobianPoint
	B_.AsJacobian(&bPoint)
	secp256k1.ScalarMultNonConst(&r.Key, &bPoint, &rB)
	rB.ToAffine()
	R2 := secp256k1.NewPublicKey(&rB.X, &rB.Y)

	A := k.PubKey()
	e := dleqChallenge(R1, R2, A, C_)

	var s secp256k1.ModNScalar
	s.Mul2(&e.Key, &k.Key).Add(&r.Key)
	return e, secp256k1.NewPrivateKey(&s)
}
