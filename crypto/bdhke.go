package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// DOMAIN_SEPARATOR is prepended to the secret before hashing to curve, per
// NUT-00, so that hashToCurve outputs cannot collide with unrelated uses of
// sha256(secret).
var DOMAIN_SEPARATOR = []byte("Secp256k1_HashToCurve_Cashu_")

// maxHashToCurveAttempts bounds the counter-retry loop. Each step succeeds
// with probability ~1/2 so this is never reached in practice.
const maxHashToCurveAttempts = 1_000_000

var (
	ErrHashToCurveExhausted = errors.New("hash to curve: exhausted retry counter")
	ErrInvalidPoint         = errors.New("invalid secp256k1 point")
	ErrInvalidScalar        = errors.New("invalid secp256k1 scalar")
	ErrDLEQFailed           = errors.New("dleq verification failed")
)

// HashToCurve deterministically maps secret to a point Y on secp256k1.
// It computes msg_hash = sha256(DOMAIN_SEPARATOR || secret), then iterates a
// little-endian uint32 counter starting at 0, computing
// sha256(msg_hash || counter) and interpreting 0x02||hash as a compressed
// point, retrying on the next counter until one lands on the curve.
func HashToCurve(secret []byte) (*secp256k1.PublicKey, error) {
	msg := make([]byte, 0, len(DOMAIN_SEPARATOR)+len(secret))
	msg = append(msg, DOMAIN_SEPARATOR...)
	msg = append(msg, secret...)
	msgHash := sha256.Sum256(msg)

	counterBytes := make([]byte, 4)
	for counter := uint32(0); counter < maxHashToCurveAttempts; counter++ {
		binary.LittleEndian.PutUint32(counterBytes, counter)
		h := sha256.Sum256(append(msgHash[:], counterBytes...))

		candidate := make([]byte, 0, 33)
		candidate = append(candidate, 0x02)
		candidate = append(candidate, h[:]...)

		if point, err := secp256k1.ParsePubKey(candidate); err == nil {
			return point, nil
		}
	}
	return nil, ErrHashToCurveExhausted
}

// BlindMessage computes B_ = hashToCurve(secret) + r*G. If blindingFactor is
// nil a fresh random scalar is generated; otherwise the supplied scalar is
// used verbatim (the DLEQ-recomputation call site needs this).
func BlindMessage(secret string, blindingFactor *secp256k1.PrivateKey) (*secp256k1.PublicKey, *secp256k1.PrivateKey, error) {
	Y, err := HashToCurve([]byte(secret))
	if err != nil {
		return nil, nil, err
	}

	r := blindingFactor
	if r == nil {
		r, err = secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, nil, err
		}
	}

	var yPoint, rPoint, sumPoint secp256k1.JacobianPoint
	Y.AsJacobian(&yPoint)
	r.PubKey().AsJacobian(&rPoint)
	secp256k1.AddNonConst(&yPoint, &rPoint, &sumPoint)
	sumPoint.ToAffine()

	B_ := secp256k1.NewPublicKey(&sumPoint.X, &sumPoint.Y)
	return B_, r, nil
}

// UnblindSignature computes C = C_ - r*K for mint public key K of the
// proof's amount.
func UnblindSignature(C_ *secp256k1.PublicKey, r *secp256k1.PrivateKey, K *secp256k1.PublicKey) (*secp256k1.PublicKey, error) {
	var kPoint, rKPoint, cPoint, resultPoint secp256k1.JacobianPoint
	K.AsJacobian(&kPoint)

	var rNeg secp256k1.ModNScalar
	rNeg.NegateVal(&r.Key)
	secp256k1.ScalarMultNonConst(&rNeg, &kPoint, &rKPoint)

	C_.AsJacobian(&cPoint)
	secp256k1.AddNonConst(&cPoint, &rKPoint, &resultPoint)
	resultPoint.ToAffine()

	return secp256k1.NewPublicKey(&resultPoint.X, &resultPoint.Y), nil
}

// SignBlindedMessage computes C_ = k*B_. This is mint-side math; kept here
// only so this repo's own tests can stand up a deterministic fake mint
// without depending on a real mint implementation.
func SignBlindedMessage(B_ *secp256k1.PublicKey, k *secp256k1.PrivateKey) *secp256k1.PublicKey {
	var bPoint, resultPoint secp256k1.JacobianPoint
	B_.AsJacobian(&bPoint)
	secp256k1.ScalarMultNonConst(&k.Key, &bPoint, &resultPoint)
	resultPoint.ToAffine()
	return secp256k1.NewPublicKey(&resultPoint.X, &resultPoint.Y)
}

// dleqChallenge hashes the four DLEQ points into a scalar, per NUT-12: the
// sha256 of the concatenated hex encodings of the uncompressed points.
func dleqChallenge(R1, R2, A, C_ *secp256k1.PublicKey) *secp256k1.PrivateKey {
	var e string
	for _, p := range []*secp256k1.PublicKey{R1, R2, A, C_} {
		e += hex.EncodeToString(p.SerializeUncompressed())
	}
	sum := sha256.Sum256([]byte(e))

	var scalar secp256k1.ModNScalar
	scalar.SetByteSlice(sum[:])
	return secp256k1.NewPrivateKey(&scalar)
}

// VerifyDLEQ verifies a DLEQ proof (e, s) that A=k*G and C_=k*B_ share
// discrete log k, per NUT-12: R1 = s*G - e*A, R2 = s*B_ - e*C_, accept iff
// hash(R1, R2, A, C_) == e.
func VerifyDLEQ(e, s *secp256k1.PrivateKey, A, B_, C_ *secp256k1.PublicKey) bool {
	var sG, eA, r1Point secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&s.Key, &sG)

	var aPoint secp256k1.JacobianPoint
	A.AsJacobian(&aPoint)
	var eNeg secp256k1.ModNScalar
	eNeg.NegateVal(&e.Key)
	secp256k1.ScalarMultNonConst(&eNeg, &aPoint, &eA)
	secp256k1.AddNonConst(&sG, &eA, &r1Point)
	r1Point.ToAffine()
	R1 := secp256k1.NewPublicKey(&r1Point.X, &r1Point.Y)

	var sB, eC, r2Point secp256k1.JacobianPoint
	var bPoint secp256k1.JacobianPoint
	B_.AsJacobian(&bPoint)
	secp256k1.ScalarMultNonConst(&s.Key, &bPoint, &sB)

	var cPoint secp256k1.JacobianPoint
	C_.AsJacobian(&cPoint)
	secp256k1.ScalarMultNonConst(&eNeg, &cPoint, &eC)
	secp256k1.AddNonConst(&sB, &eC, &r2Point)
	r2Point.ToAffine()
	R2 := secp256k1.NewPublicKey(&r2Point.X, &r2Point.Y)

	computed := dleqChallenge(R1, R2, A, C_)
	return ConstantTimeEq(computed.Serialize(), e.Serialize())
}
