package wallet

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"
	"github.com/nutvault/walletcore/cashu"
	"github.com/nutvault/walletcore/cashu/nuts/nut01"
	"github.com/nutvault/walletcore/cashu/nuts/nut02"
	"github.com/nutvault/walletcore/cashu/nuts/nut03"
	"github.com/nutvault/walletcore/cashu/nuts/nut04"
	"github.com/nutvault/walletcore/cashu/nuts/nut05"
	"github.com/nutvault/walletcore/cashu/nuts/nut06"
	"github.com/nutvault/walletcore/cashu/nuts/nut07"
	"github.com/nutvault/walletcore/cashu/nuts/nut09"
	"github.com/nutvault/walletcore/crypto"
)

// fakeMint is a deterministic, in-process stand-in for a NUT REST API,
// signed with keys from crypto.GenerateKeyset / crypto.SignBlindedMessage.
// It exists only so the wallet orchestrator's network-facing operations
// (Mint, Send, Receive, Melt, CheckState, Restore) can be exercised end to
// end without a real mint, per the mint-side test helpers added to the
// crypto package.
type fakeMint struct {
	t      *testing.T
	server *httptest.Server
	keyset *crypto.MintKeyset

	mu             sync.Mutex
	mintQuotes     map[string]*fakeMintQuote
	meltQuotes     map[string]*fakeMeltQuote
	spentY         map[string]bool
	pendingY       map[string]bool
	issuedOutputs  map[string]issuedOutput
	failNextSwap   bool
	failNextMint   bool
}

type fakeMintQuote struct {
	amount  uint64
	request string
	state   nut04.State
}

type fakeMeltQuote struct {
	amount     uint64
	feeReserve uint64
	state      nut05.State
}

type issuedOutput struct {
	blindedMessage cashu.BlindedMessage
	signature      cashu.BlindedSignature
}

// newFakeMint stands up an httptest.Server backed by a single freshly
// generated keyset. wallet/client accepts plain http for loopback hosts, so
// the httptest.Server URL (on 127.0.0.1) works as a mint URL unmodified.
func newFakeMint(t *testing.T) *fakeMint {
	t.Helper()

	seed, err := hdkeychain.GenerateSeed(32)
	if err != nil {
		t.Fatalf("GenerateSeed: %v", err)
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	keyset, err := crypto.GenerateKeyset(master, 0, 0)
	if err != nil {
		t.Fatalf("GenerateKeyset: %v", err)
	}

	fm := &fakeMint{
		t:             t,
		keyset:        keyset,
		mintQuotes:    make(map[string]*fakeMintQuote),
		meltQuotes:    make(map[string]*fakeMeltQuote),
		spentY:        make(map[string]bool),
		pendingY:      make(map[string]bool),
		issuedOutputs: make(map[string]issuedOutput),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/info", fm.handleInfo)
	mux.HandleFunc("/v1/keys", fm.handleKeys)
	mux.HandleFunc("/v1/keysets", fm.handleKeysets)
	mux.HandleFunc("/v1/keys/", fm.handleKeysById)
	mux.HandleFunc("/v1/mint/quote/bolt11", fm.handlePostMintQuote)
	mux.HandleFunc("/v1/mint/quote/bolt11/", fm.handleGetMintQuote)
	mux.HandleFunc("/v1/mint/bolt11", fm.handlePostMint)
	mux.HandleFunc("/v1/swap", fm.handlePostSwap)
	mux.HandleFunc("/v1/melt/quote/bolt11", fm.handlePostMeltQuote)
	mux.HandleFunc("/v1/melt/bolt11", fm.handlePostMelt)
	mux.HandleFunc("/v1/checkstate", fm.handlePostCheckState)
	mux.HandleFunc("/v1/restore", fm.handlePostRestore)

	fm.server = httptest.NewServer(mux)
	t.Cleanup(fm.server.Close)
	return fm
}

func (fm *fakeMint) URL() string { return fm.server.URL }

// payMintQuote simulates a lightning payment landing, flipping a mint quote
// from Unpaid to Paid so Wallet.Mint is willing to proceed.
func (fm *fakeMint) payMintQuote(quoteId string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if q, ok := fm.mintQuotes[quoteId]; ok {
		q.state = nut04.Paid
	}
}

// forceNextSwapFailure makes the next /v1/swap request fail with a 500, to
// exercise the wallet's pending-proof rollback path.
func (fm *fakeMint) forceNextSwapFailure() {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.failNextSwap = true
}

func (fm *fakeMint) signOutput(msg cashu.BlindedMessage) (cashu.BlindedSignature, error) {
	kp, ok := fm.keyset.Keys[msg.Amount]
	if !ok {
		return cashu.BlindedSignature{}, fmt.Errorf("fake mint has no key for amount %d", msg.Amount)
	}
	B_bytes, err := hex.DecodeString(msg.B_)
	if err != nil {
		return cashu.BlindedSignature{}, err
	}
	B_, err := secp256k1.ParsePubKey(B_bytes)
	if err != nil {
		return cashu.BlindedSignature{}, err
	}
	C_ := crypto.SignBlindedMessage(B_, kp.PrivateKey)
	sig := cashu.BlindedSignature{
		Amount: msg.Amount,
		Id:     fm.keyset.Id,
		C_:     hex.EncodeToString(C_.SerializeCompressed()),
	}
	fm.issuedOutputs[msg.B_] = issuedOutput{blindedMessage: msg, signature: sig}
	return sig, nil
}

func (fm *fakeMint) signOutputs(msgs cashu.BlindedMessages) (cashu.BlindedSignatures, error) {
	sigs := make(cashu.BlindedSignatures, len(msgs))
	for i, msg := range msgs {
		sig, err := fm.signOutput(msg)
		if err != nil {
			return nil, err
		}
		sigs[i] = sig
	}
	return sigs, nil
}

func (fm *fakeMint) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := nut06.MintInfo{
		Name:    "fake mint",
		Pubkey:  "",
		Version: "fakemint/0.0.0",
		Nuts: nut06.NutsMap{
			4: map[string]any{"methods": []map[string]any{{"method": "bolt11", "unit": "sat"}}},
			5: map[string]any{"methods": []map[string]any{{"method": "bolt11", "unit": "sat"}}},
			7: map[string]any{"supported": true},
			9: map[string]any{"supported": true},
		},
	}
	writeJSON(w, info)
}

func (fm *fakeMint) handleKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, nut01.GetKeysResponse{
		Keysets: []nut01.Keyset{
			{Id: fm.keyset.Id, Unit: fm.keyset.Unit, Keys: fm.keyset.PublicKeys()},
		},
	})
}

func (fm *fakeMint) handleKeysById(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/keys/")
	if id != fm.keyset.Id {
		writeJSON(w, nut01.GetKeysResponse{})
		return
	}
	writeJSON(w, nut01.GetKeysResponse{
		Keysets: []nut01.Keyset{
			{Id: fm.keyset.Id, Unit: fm.keyset.Unit, Keys: fm.keyset.PublicKeys()},
		},
	})
}

func (fm *fakeMint) handleKeysets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, nut02.GetKeysetsResponse{
		Keysets: []nut02.Keyset{
			{Id: fm.keyset.Id, Unit: fm.keyset.Unit, Active: true, InputFeePpk: fm.keyset.InputFeePpk},
		},
	})
}

// mintQuoteWire mirrors what a real mint sends on the wire: nut04's
// response type tags State with json:"-" because the wallet decodes it
// through a custom UnmarshalJSON, so the server side has to spell the
// "state" key out by hand.
type mintQuoteWire struct {
	Quote   string `json:"quote"`
	Request string `json:"request"`
	Paid    bool   `json:"paid"`
	State   string `json:"state"`
	Expiry  int64  `json:"expiry"`
}

func (fm *fakeMint) handlePostMintQuote(w http.ResponseWriter, r *http.Request) {
	var req nut04.PostMintQuoteBolt11Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	fm.mu.Lock()
	quoteId := uuid.NewString()
	fm.mintQuotes[quoteId] = &fakeMintQuote{amount: req.Amount, request: "lnbc-fake-" + quoteId, state: nut04.Unpaid}
	quote := fm.mintQuotes[quoteId]
	fm.mu.Unlock()

	writeJSON(w, mintQuoteWire{Quote: quoteId, Request: quote.request, Paid: false, State: quote.state.String(), Expiry: 0})
}

func (fm *fakeMint) handleGetMintQuote(w http.ResponseWriter, r *http.Request) {
	quoteId := strings.TrimPrefix(r.URL.Path, "/v1/mint/quote/bolt11/")

	fm.mu.Lock()
	quote, ok := fm.mintQuotes[quoteId]
	fm.mu.Unlock()
	if !ok {
		writeBadRequest(w, "quote not found")
		return
	}

	writeJSON(w, mintQuoteWire{
		Quote:   quoteId,
		Request: quote.request,
		Paid:    quote.state != nut04.Unpaid,
		State:   quote.state.String(),
	})
}

func (fm *fakeMint) handlePostMint(w http.ResponseWriter, r *http.Request) {
	var req nut04.PostMintBolt11Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	fm.mu.Lock()
	if fm.failNextMint {
		fm.failNextMint = false
		fm.mu.Unlock()
		http.Error(w, "simulated mint backend failure", http.StatusInternalServerError)
		return
	}
	quote, ok := fm.mintQuotes[req.Quote]
	if !ok || quote.state != nut04.Paid {
		fm.mu.Unlock()
		writeBadRequest(w, "quote not payable")
		return
	}
	fm.mu.Unlock()

	sigs, err := fm.signOutputs(req.Outputs)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	fm.mu.Lock()
	quote.state = nut04.Issued
	fm.mu.Unlock()

	writeJSON(w, nut04.PostMintBolt11Response{Signatures: sigs})
}

func (fm *fakeMint) handlePostSwap(w http.ResponseWriter, r *http.Request) {
	var req nut03.PostSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	fm.mu.Lock()
	if fm.failNextSwap {
		fm.failNextSwap = false
		fm.mu.Unlock()
		http.Error(w, "simulated swap backend failure", http.StatusInternalServerError)
		return
	}
	fm.mu.Unlock()

	ys := make([]string, len(req.Inputs))
	for i, proof := range req.Inputs {
		y, err := crypto.HashToCurve([]byte(proof.Secret))
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		ys[i] = hex.EncodeToString(y.SerializeCompressed())
	}

	fm.mu.Lock()
	for _, y := range ys {
		if fm.spentY[y] {
			fm.mu.Unlock()
			writeBadRequest(w, "token already spent")
			return
		}
	}
	for _, y := range ys {
		fm.spentY[y] = true
	}
	fm.mu.Unlock()

	sigs, err := fm.signOutputs(req.Outputs)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, nut03.PostSwapResponse{Signatures: sigs})
}

func (fm *fakeMint) handlePostMeltQuote(w http.ResponseWriter, r *http.Request) {
	var req nut05.PostMeltQuoteBolt11Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	amount, ok := fakeInvoiceAmount(req.Request)
	if !ok {
		writeBadRequest(w, "unrecognized fake invoice")
		return
	}

	fm.mu.Lock()
	quoteId := uuid.NewString()
	fm.meltQuotes[quoteId] = &fakeMeltQuote{amount: amount, feeReserve: 1, state: nut05.Unpaid}
	fm.mu.Unlock()

	writeJSON(w, meltQuoteWire{Quote: quoteId, Amount: amount, FeeReserve: 1, Paid: false, State: nut05.Unpaid.String()})
}

type meltQuoteWire struct {
	Quote      string `json:"quote"`
	Amount     uint64 `json:"amount"`
	FeeReserve uint64 `json:"fee_reserve"`
	Paid       bool   `json:"paid"`
	State      string `json:"state"`
	Expiry     int64  `json:"expiry"`
	Preimage   string `json:"payment_preimage"`
}

func (fm *fakeMint) handlePostMelt(w http.ResponseWriter, r *http.Request) {
	var req nut05.PostMeltBolt11Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	fm.mu.Lock()
	quote, ok := fm.meltQuotes[req.Quote]
	fm.mu.Unlock()
	if !ok {
		writeBadRequest(w, "quote not found")
		return
	}

	ys := make([]string, len(req.Inputs))
	for i, proof := range req.Inputs {
		y, err := crypto.HashToCurve([]byte(proof.Secret))
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		ys[i] = hex.EncodeToString(y.SerializeCompressed())
	}

	fm.mu.Lock()
	for _, y := range ys {
		fm.spentY[y] = true
	}
	quote.state = nut05.Paid
	fm.mu.Unlock()

	var change cashu.BlindedSignatures
	if len(req.Outputs) > 0 {
		var err error
		change, err = fm.signOutputs(req.Outputs)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}

	writeJSON(w, meltResponseWire{Paid: true, Preimage: "fakepreimage", State: nut05.Paid.String(), Change: change})
}

type meltResponseWire struct {
	Paid     bool                    `json:"paid"`
	Preimage string                  `json:"payment_preimage"`
	State    string                  `json:"state"`
	Change   cashu.BlindedSignatures `json:"change,omitempty"`
}

type checkStateResponseWire struct {
	States []proofStateWire `json:"states"`
}

type proofStateWire struct {
	Y       string `json:"Y"`
	State   string `json:"state"`
	Witness string `json:"witness"`
}

func (fm *fakeMint) handlePostCheckState(w http.ResponseWriter, r *http.Request) {
	var req nut07.PostCheckStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	states := make([]proofStateWire, len(req.Ys))
	for i, y := range req.Ys {
		state := nut07.Unspent
		if fm.spentY[y] {
			state = nut07.Spent
		} else if fm.pendingY[y] {
			state = nut07.Pending
		}
		states[i] = proofStateWire{Y: y, State: state.String()}
	}
	writeJSON(w, checkStateResponseWire{States: states})
}

func (fm *fakeMint) handlePostRestore(w http.ResponseWriter, r *http.Request) {
	var req nut09.PostRestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	var outputs cashu.BlindedMessages
	var sigs cashu.BlindedSignatures
	for _, msg := range req.Outputs {
		if issued, ok := fm.issuedOutputs[msg.B_]; ok {
			outputs = append(outputs, issued.blindedMessage)
			sigs = append(sigs, issued.signature)
		}
	}
	writeJSON(w, nut09.PostRestoreResponse{Outputs: outputs, Signatures: sigs})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(cashu.Error{Detail: detail, Code: cashu.StandardErrCode})
}

// fakeInvoice and fakeInvoiceAmount let tests pick a melt amount without a
// real bolt11 decoder: the fake mint trusts the embedded amount instead of
// decoding lightning invoice wire format.
func fakeInvoice(amount uint64) string {
	return fmt.Sprintf("lnbcfake1amount%d", amount)
}

func fakeInvoiceAmount(request string) (uint64, bool) {
	const prefix = "lnbcfake1amount"
	if !strings.HasPrefix(request, prefix) {
		return 0, false
	}
	var amount uint64
	if _, err := fmt.Sscanf(strings.TrimPrefix(request, prefix), "%d", &amount); err != nil {
		return 0, false
	}
	return amount, true
}
