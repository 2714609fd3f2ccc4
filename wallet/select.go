package wallet

import (
	"sort"

	"github.com/nutvault/walletcore/cashu"
)

// Fee returns the fee, in the keyset's unit, charged by the mint for
// spending n inputs against a keyset with the given fee_ppk (fee parts per
// thousand inputs). It rounds up, matching the mint's own accounting:
// ceil(n * feePpk / 1000).
func Fee(n int, feePpk uint) uint64 {
	if n <= 0 || feePpk == 0 {
		return 0
	}
	total := uint64(n) * uint64(feePpk)
	return (total + 999) / 1000
}

// SelectProofs picks a subset of proofs whose sum covers target, preferring
// an exact single-proof match and otherwise an ascending greedy selection
// topped off with the smallest proof that covers the shortfall. proofs is
// not mutated; it is assumed to already be in the wallet's stable storage
// iteration order restricted to the proofs under consideration.
//
// Returns ErrBalanceInsufficient if no combination of proofs reaches target.
func SelectProofs(proofs cashu.Proofs, target uint64) (cashu.Proofs, error) {
	for _, proof := range proofs {
		if proof.Amount == target {
			return cashu.Proofs{proof}, nil
		}
	}

	sorted := make(cashu.Proofs, len(proofs))
	copy(sorted, proofs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount < sorted[j].Amount
	})

	var selected cashu.Proofs
	var sum uint64
	used := make([]bool, len(sorted))
	for i, proof := range sorted {
		if sum >= target {
			break
		}
		selected = append(selected, proof)
		used[i] = true
		sum += proof.Amount
	}

	if sum >= target {
		return selected, nil
	}

	shortfall := target - sum
	for i, proof := range sorted {
		if used[i] {
			continue
		}
		if proof.Amount >= shortfall {
			selected = append(selected, proof)
			sum += proof.Amount
			return selected, nil
		}
	}

	return nil, ErrBalanceInsufficient("requested amount exceeds available proof balance")
}

// PrepareSendChangeSplit computes the output denominations a swap should
// request when sending target from input proofs summing to inputSum, after
// the mint's fee for spending the given number of inputs. The first
// len(split_amount(target)) denominations are the send outputs; the rest are
// change. sum(denominations) == inputSum - fee.
func PrepareSendChangeSplit(target, inputSum uint64, fee uint64) []uint64 {
	remainder := inputSum - target - fee
	sendAmounts := cashu.AmountSplit(target)
	changeAmounts := cashu.AmountSplit(remainder)
	return append(sendAmounts, changeAmounts...)
}

// SplitSwapOutputs partitions blind-signed proofs returned from a swap into
// the send subset (matching sendTarget exactly, by amount multiset) and the
// remaining change proofs. It fails if no subset of outputs sums to
// sendTarget using the expected denomination shape, which indicates the mint
// returned outputs in an order or shape other than what was requested.
func SplitSwapOutputs(outputs cashu.Proofs, sendTarget uint64) (send cashu.Proofs, change cashu.Proofs, err error) {
	wantSend := cashu.AmountSplit(sendTarget)
	need := make(map[uint64]int, len(wantSend))
	for _, amt := range wantSend {
		need[amt]++
	}

	var sendSum uint64
	remaining := make(cashu.Proofs, 0, len(outputs))
	for _, proof := range outputs {
		if need[proof.Amount] > 0 {
			send = append(send, proof)
			sendSum += proof.Amount
			need[proof.Amount]--
			continue
		}
		remaining = append(remaining, proof)
	}

	if sendSum != sendTarget {
		return nil, nil, ErrInvalidProofSet("mint swap outputs do not match requested send denominations")
	}
	for _, left := range need {
		if left != 0 {
			return nil, nil, ErrInvalidProofSet("mint swap outputs do not match requested send denominations")
		}
	}

	change = remaining
	return send, change, nil
}

// NeedsRecombination reports whether a proof multiset summing to V should be
// recombined: true when its current denomination shape differs from the
// minimal Hamming-weight shape split_amount(V) would produce.
func NeedsRecombination(proofs cashu.Proofs) bool {
	target := cashu.AmountSplit(proofs.Amount())
	if len(proofs) != len(target) {
		return true
	}

	counts := make(map[uint64]int, len(proofs))
	for _, proof := range proofs {
		counts[proof.Amount]++
	}
	for _, amt := range target {
		counts[amt]--
	}
	for _, c := range counts {
		if c != 0 {
			return true
		}
	}
	return false
}
