package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/nutvault/walletcore/cashu"
	"github.com/nutvault/walletcore/cashu/nuts/nut03"
	"github.com/nutvault/walletcore/cashu/nuts/nut04"
	"github.com/nutvault/walletcore/cashu/nuts/nut05"
	"github.com/nutvault/walletcore/cashu/nuts/nut07"
	"github.com/nutvault/walletcore/cashu/nuts/nut12"
	"github.com/nutvault/walletcore/cashu/nuts/nut13"
	"github.com/nutvault/walletcore/crypto"
	"github.com/nutvault/walletcore/wallet/client"
	"github.com/nutvault/walletcore/wallet/securestore"
	"github.com/nutvault/walletcore/wallet/storage"
)

// State is the wallet orchestrator's coarse lifecycle state, per spec.md
// §4.8: Uninitialized -> Initializing -> Ready, with a terminal Error branch.
// The enum also has a Syncing value; no method of Wallet enters it.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Syncing
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Syncing:
		return "syncing"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Config configures a wallet instance. Only the fields a single-mint core
// needs are read here; RetryAttempts/RetryBaseDelaySeconds/
// OperationTimeoutSeconds/KeychainAccessPolicy are accepted for integrations
// layered on top (retry/backoff, timeouts, OS keychain selection) and are
// not interpreted by the core itself. Unit is not read either: the wallet
// always uses sat.
type Config struct {
	WalletPath              string
	CurrentMintURL          string
	Unit                    string
	Password                string
	RetryAttempts           int
	RetryBaseDelaySeconds   float64
	OperationTimeoutSeconds float64
	KeychainAccessPolicy    string
}

// walletMint is everything the wallet tracks locally about a mint it has
// fetched keysets from: its active keyset plus any keysets the mint has
// since rotated out.
type walletMint struct {
	mintURL         string
	activeKeyset    crypto.WalletKeyset
	inactiveKeysets map[string]crypto.WalletKeyset
}

// Wallet is the C8 orchestrator: it owns the proof store and derivation
// counter exclusively, and glues deterministic derivation (C3), BDHKE (C2),
// proof/selection (C4/C5), the token codec (C6) and the secure secret store
// (C7) together behind the public operations in §4.8. A Wallet instance is
// single-threaded: callers must not invoke its methods concurrently from
// more than one goroutine, matching the single-threaded-cooperative-actor
// model in §5.
type Wallet struct {
	db          storage.WalletDB
	secureStore *securestore.Store
	proofStore  *ProofStore

	masterKey *hdkeychain.ExtendedKey
	mnemonic  string

	mints       map[string]walletMint
	defaultMint string
	unit        cashu.Unit

	config   Config
	state    State
	stateErr error
}

// InitStorage opens (creating if necessary) the wallet's bbolt-backed proof
// and metadata store at path.
func InitStorage(path string) (storage.WalletDB, error) {
	return storage.InitBolt(path)
}

// LoadWallet brings a wallet to the Ready state: opens (or creates) the
// on-disk store and secure store, loads or generates the mnemonic, derives
// the BIP-32 master key, and fetches the configured mint's keysets. On any
// failure the wallet is left in the Error state and the failure is returned.
func LoadWallet(config Config) (*Wallet, error) {
	w := &Wallet{config: config, state: Initializing, unit: cashu.Sat}

	if config.WalletPath == "" {
		w.state = Error
		return nil, ErrInvalidMintURL("wallet path is required")
	}

	db, err := InitStorage(config.WalletPath)
	if err != nil {
		w.state = Error
		return nil, ErrStoreFailed("opening wallet store", err)
	}
	w.db = db

	secureStore, err := securestore.Open(config.WalletPath, config.Password)
	if err != nil {
		w.state = Error
		return nil, ErrStoreFailed("opening secure store", err)
	}
	w.secureStore = secureStore
	w.proofStore = NewProofStore(db)

	mnemonic, err := w.loadOrCreateMnemonic()
	if err != nil {
		w.state = Error
		return nil, err
	}
	w.mnemonic = mnemonic

	seed := SeedFromMnemonic(mnemonic, "")
	masterKey, err := masterKeyFromSeed(seed)
	if err != nil {
		w.state = Error
		return nil, ErrStoreFailed("deriving master key", err)
	}
	w.masterKey = masterKey

	if config.CurrentMintURL == "" {
		w.state = Error
		return nil, ErrInvalidMintURL("mint url is required")
	}
	mintURL, err := normalizeMintURL(config.CurrentMintURL)
	if err != nil {
		w.state = Error
		return nil, err
	}
	w.defaultMint = mintURL
	w.mints = make(map[string]walletMint)

	if err := w.addMint(mintURL); err != nil {
		w.state = Error
		return nil, err
	}

	w.state = Ready
	return w, nil
}

// State reports the wallet's current lifecycle state.
func (w *Wallet) State() State { return w.state }

// Clear returns the wallet to Uninitialized, releasing its store handles.
// Secret material already wrapped in a securestore.SensitiveBytes guard by
// a caller is unaffected; Clear itself holds none in memory beyond the
// derivation master key, which is not zeroizable (it is re-derivable from
// the mnemonic on every LoadWallet, not secret-unique state).
func (w *Wallet) Clear() error {
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			return ErrStoreFailed("closing wallet store", err)
		}
	}
	w.state = Uninitialized
	w.db = nil
	w.secureStore = nil
	w.proofStore = nil
	w.masterKey = nil
	w.mnemonic = ""
	w.mints = nil
	return nil
}

func (w *Wallet) requireReady() error {
	if w.state != Ready {
		return ErrWalletNotInitialized()
	}
	return nil
}

func normalizeMintURL(mintURL string) (string, error) {
	u, err := url.Parse(mintURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidMintURL(mintURL)
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

// loadOrCreateMnemonic loads the wallet's mnemonic (and seed) from the
// secure store, generating and persisting a fresh 12-word mnemonic the
// first time the wallet is opened at this path.
func (w *Wallet) loadOrCreateMnemonic() (string, error) {
	data, err := w.secureStore.Load("mnemonic")
	if err == nil {
		return string(data), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", ErrRetrievalFailed("loading mnemonic", err)
	}

	mnemonic, err := GenerateMnemonic(128)
	if err != nil {
		return "", ErrStoreFailed("generating mnemonic", err)
	}
	if err := w.secureStore.Save("mnemonic", []byte(mnemonic)); err != nil {
		return "", ErrStoreFailed("saving mnemonic", err)
	}
	if err := w.secureStore.Save("seed", SeedFromMnemonic(mnemonic, "")); err != nil {
		return "", ErrStoreFailed("saving seed", err)
	}
	return mnemonic, nil
}

// addMint fetches a mint's active and inactive keysets and registers them,
// merging in any derivation counter the store already has for a keyset id
// so a restart never rewinds a counter.
func (w *Wallet) addMint(mintURL string) error {
	activeKeyset, err := GetMintActiveKeyset(mintURL, w.unit)
	if err != nil {
		return ErrInvalidMintConfiguration(fmt.Sprintf("fetching active keyset from %s: %v", mintURL, err))
	}
	if stored := w.db.GetKeyset(activeKeyset.Id); stored != nil {
		activeKeyset.Counter = stored.Counter
	}
	if err := w.db.SaveKeyset(activeKeyset); err != nil {
		return ErrStoreFailed("saving active keyset", err)
	}

	inactiveKeysets, err := GetMintInactiveKeysets(mintURL, w.unit)
	if err != nil {
		return ErrInvalidMintConfiguration(fmt.Sprintf("fetching inactive keysets from %s: %v", mintURL, err))
	}
	for id, keyset := range inactiveKeysets {
		if stored := w.db.GetKeyset(id); stored != nil {
			keyset.Counter = stored.Counter
		}
		if err := w.db.SaveKeyset(&keyset); err != nil {
			return ErrStoreFailed("saving inactive keyset", err)
		}
		inactiveKeysets[id] = keyset
	}

	w.mints[mintURL] = walletMint{
		mintURL:         mintURL,
		activeKeyset:    *activeKeyset,
		inactiveKeysets: inactiveKeysets,
	}
	return nil
}

// CurrentMint returns the wallet's configured mint URL.
func (w *Wallet) CurrentMint() string { return w.defaultMint }

// Mnemonic returns the BIP-39 mnemonic this wallet's keys were derived from,
// so the caller can display it to the user for backup.
func (w *Wallet) Mnemonic() string { return w.mnemonic }

// ReceivePubkey derives this wallet's P2PK receiving public key, to which
// others can lock ecash sent to this wallet.
func (w *Wallet) ReceivePubkey() (*btcec.PublicKey, error) {
	key, err := DeriveP2PK(w.masterKey)
	if err != nil {
		return nil, ErrInvalidScalar("deriving P2PK receive key", err)
	}
	return key.PubKey(), nil
}

// TrustedMints returns every mint URL the wallet has fetched keysets from.
func (w *Wallet) TrustedMints() []string {
	mints := make([]string, 0, len(w.mints))
	for mintURL := range w.mints {
		mints = append(mints, mintURL)
	}
	return mints
}

// UpdateMintURL renames a known mint in place: every keyset the wallet
// holds for it, in the db and in memory, is re-pointed to newURL.
func (w *Wallet) UpdateMintURL(oldURL, newURL string) error {
	mint, ok := w.mints[oldURL]
	if !ok {
		return ErrInvalidMintConfiguration(fmt.Sprintf("mint '%s' is not known to this wallet", oldURL))
	}

	if err := w.db.UpdateKeysetMintURL(oldURL, newURL); err != nil {
		return ErrStoreFailed("updating keyset mint url", err)
	}

	mint.mintURL = newURL
	mint.activeKeyset.MintURL = newURL
	for id, keyset := range mint.inactiveKeysets {
		keyset.MintURL = newURL
		mint.inactiveKeysets[id] = keyset
	}

	delete(w.mints, oldURL)
	w.mints[newURL] = mint

	if w.defaultMint == oldURL {
		w.defaultMint = newURL
	}
	return nil
}

// Balance returns the sum of every Available proof's amount across all
// keysets the wallet holds.
func (w *Wallet) Balance() uint64 {
	return w.proofStore.AvailableByKeyset("").Amount()
}

// RequestMintQuote asks the configured mint for a bolt11 invoice to mint
// amount. It is stateless with respect to proofs.
func (w *Wallet) RequestMintQuote(amount uint64) (*nut04.PostMintQuoteBolt11Response, error) {
	if err := w.requireReady(); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount("amount must be greater than zero")
	}

	req := nut04.PostMintQuoteBolt11Request{Amount: amount, Unit: w.unit.String()}
	quoteResponse, err := client.PostMintQuoteBolt11(w.defaultMint, req)
	if err != nil {
		return nil, ErrNetwork("requesting mint quote", err)
	}

	quote := storage.MintQuote{
		QuoteId:        quoteResponse.Quote,
		Mint:           w.defaultMint,
		Method:         cashu.BOLT11_METHOD,
		State:          quoteResponse.State,
		Unit:           w.unit.String(),
		PaymentRequest: quoteResponse.Request,
		Amount:         amount,
		QuoteExpiry:    uint64(quoteResponse.Expiry),
	}
	if err := w.db.SaveMintQuote(quote); err != nil {
		return nil, ErrStoreFailed("saving mint quote", err)
	}
	return quoteResponse, nil
}

// MintQuoteState polls the mint for a previously requested mint quote's
// current state (Unpaid/Paid/Issued).
func (w *Wallet) MintQuoteState(quoteId string) (*nut04.PostMintQuoteBolt11Response, error) {
	if err := w.requireReady(); err != nil {
		return nil, err
	}
	resp, err := client.GetMintQuoteState(w.defaultMint, quoteId)
	if err != nil {
		return nil, ErrNetwork("checking mint quote state", err)
	}
	return resp, nil
}

// Mint redeems a paid mint quote for amount worth of fresh proofs. Outputs
// are derived deterministically at the wallet's current keyset counter,
// which is advanced only after the mint's signatures are accepted.
func (w *Wallet) Mint(quoteId string, amount uint64) (cashu.Proofs, error) {
	if err := w.requireReady(); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount("amount must be greater than zero")
	}

	quote := w.db.GetMintQuoteById(quoteId)
	if quote == nil {
		return nil, ErrQuoteNotFound(quoteId)
	}

	quoteState, err := client.GetMintQuoteState(w.defaultMint, quoteId)
	if err != nil {
		return nil, ErrNetwork("checking mint quote state", err)
	}
	switch quoteState.State {
	case nut04.Unpaid:
		return nil, ErrQuotePending(quoteId)
	case nut04.Issued:
		return nil, ErrQuoteAlreadyIssued(quoteId)
	}

	activeKeyset, err := w.getActiveKeyset(w.defaultMint)
	if err != nil {
		return nil, ErrNoActiveKeyset(w.defaultMint)
	}
	keyset := *activeKeyset

	splitAmounts := cashu.AmountSplit(amount)
	counter := w.db.GetKeysetCounter(keyset.Id)
	blindedMessages, secrets, rs, err := w.createBlindedMessages(splitAmounts, keyset.Id, &counter)
	if err != nil {
		return nil, ErrInvalidScalar("deriving mint outputs", err)
	}

	mintResponse, err := client.PostMintBolt11(w.defaultMint, nut04.PostMintBolt11Request{
		Quote:   quoteId,
		Outputs: blindedMessages,
	})
	if err != nil {
		return nil, ErrNetwork("minting", err)
	}
	if len(mintResponse.Signatures) != len(blindedMessages) {
		return nil, ErrInvalidResponse("mint returned a different number of signatures than outputs requested", nil)
	}

	proofs, err := constructProofs(mintResponse.Signatures, blindedMessages, secrets, rs, &keyset)
	if err != nil {
		return nil, ErrInvalidSignature("constructing proofs from mint signatures", err)
	}
	if !nut12.VerifyProofsDLEQ(proofs, keyset) {
		return nil, ErrDLEQFailed("mint minted proofs")
	}

	if err := w.proofStore.AddProofs(proofs); err != nil {
		return nil, err
	}
	if err := w.db.IncrementKeysetCounter(keyset.Id, uint32(len(splitAmounts))); err != nil {
		return nil, ErrStoreFailed("advancing keyset counter", err)
	}

	quote.State = nut04.Issued
	if err := w.db.SaveMintQuote(*quote); err != nil {
		return nil, ErrStoreFailed("updating mint quote", err)
	}

	return proofs, nil
}

// Send selects Available proofs covering amount, swaps them at the mint for
// freshly blinded outputs, and returns the subset worth exactly amount as a
// V4 token. Inputs are marked PendingSpent for the duration of the swap and
// rolled back to Available on any failure, per the transaction boundary in
// §4.4.
// memo is accepted for parity with the V3 token format but is not carried by
// TokenV4, which this wallet always produces.
func (w *Wallet) Send(amount uint64, memo string) (cashu.Token, error) {
	if err := w.requireReady(); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount("amount must be greater than zero")
	}

	activeKeyset, err := w.getActiveKeyset(w.defaultMint)
	if err != nil {
		return nil, ErrNoActiveKeyset(w.defaultMint)
	}
	keyset := *activeKeyset

	available := w.proofStore.AvailableByKeyset("")
	selected, err := SelectProofs(available, amount)
	if err != nil {
		return nil, err
	}
	fee := Fee(len(selected), keyset.InputFeePpk)
	if selected.Amount() < amount+fee {
		selected, err = SelectProofs(available, amount+fee)
		if err != nil {
			return nil, err
		}
		fee = Fee(len(selected), keyset.InputFeePpk)
	}

	denominations := PrepareSendChangeSplit(amount, selected.Amount(), fee)
	counter := w.db.GetKeysetCounter(keyset.Id)
	blindedMessages, secrets, rs, err := w.createBlindedMessages(denominations, keyset.Id, &counter)
	if err != nil {
		return nil, ErrInvalidScalar("deriving send outputs", err)
	}

	if err := w.proofStore.MarkPending(selected); err != nil {
		return nil, err
	}

	swapResponse, err := client.PostSwap(w.defaultMint, nut03.PostSwapRequest{
		Inputs:  selected,
		Outputs: blindedMessages,
	})
	if err != nil {
		_ = w.proofStore.RollbackPending(selected)
		return nil, ErrNetwork("sending", err)
	}
	if len(swapResponse.Signatures) != len(blindedMessages) {
		_ = w.proofStore.RollbackPending(selected)
		return nil, ErrInvalidResponse("mint returned a different number of signatures than outputs requested", nil)
	}

	outputs, err := constructProofs(swapResponse.Signatures, blindedMessages, secrets, rs, &keyset)
	if err != nil {
		_ = w.proofStore.RollbackPending(selected)
		return nil, ErrInvalidSignature("constructing proofs from swap signatures", err)
	}

	sendProofs, changeProofs, err := SplitSwapOutputs(outputs, amount)
	if err != nil {
		_ = w.proofStore.RollbackPending(selected)
		return nil, err
	}

	if err := w.proofStore.FinalizePending(selected); err != nil {
		return nil, err
	}
	if err := w.proofStore.AddProofs(changeProofs); err != nil {
		return nil, err
	}
	if err := w.db.IncrementKeysetCounter(keyset.Id, uint32(len(denominations))); err != nil {
		return nil, ErrStoreFailed("advancing keyset counter", err)
	}

	token, err := cashu.NewTokenV4(sendProofs, w.defaultMint, w.unit, false)
	if err != nil {
		return nil, ErrSerializationFailed("building send token", err)
	}
	return token, nil
}

// Receive swaps every proof in token for fresh outputs, invalidating the
// sender's copy, and adds the new proofs to the wallet. Per spec.md Open
// Question #4, a token whose mint does not match this wallet's configured
// mint is always rejected (the core is single-mint).
func (w *Wallet) Receive(token cashu.Token) (uint64, error) {
	if err := w.requireReady(); err != nil {
		return 0, err
	}
	if token.Mint() != w.defaultMint {
		return 0, ErrInvalidMintConfiguration(fmt.Sprintf("token mint '%s' does not match configured mint '%s'", token.Mint(), w.defaultMint))
	}

	proofs := token.Proofs()
	if len(proofs) == 0 {
		return 0, ErrInvalidProofSet("token has no proofs")
	}

	activeKeyset, err := w.getActiveKeyset(w.defaultMint)
	if err != nil {
		return 0, ErrNoActiveKeyset(w.defaultMint)
	}
	keyset := *activeKeyset

	amount := proofs.Amount()
	fee := Fee(len(proofs), keyset.InputFeePpk)
	if fee >= amount {
		return 0, ErrInvalidAmount("mint fee would consume the entire token amount")
	}
	split := cashu.AmountSplit(amount - fee)

	counter := w.db.GetKeysetCounter(keyset.Id)
	blindedMessages, secrets, rs, err := w.createBlindedMessages(split, keyset.Id, &counter)
	if err != nil {
		return 0, ErrInvalidScalar("deriving receive outputs", err)
	}

	swapResponse, err := client.PostSwap(w.defaultMint, nut03.PostSwapRequest{
		Inputs:  proofs,
		Outputs: blindedMessages,
	})
	if err != nil {
		return 0, ErrNetwork("receiving token", err)
	}
	if len(swapResponse.Signatures) != len(blindedMessages) {
		return 0, ErrInvalidResponse("mint returned a different number of signatures than outputs requested", nil)
	}

	newProofs, err := constructProofs(swapResponse.Signatures, blindedMessages, secrets, rs, &keyset)
	if err != nil {
		return 0, ErrInvalidSignature("constructing proofs from swap signatures", err)
	}

	if err := w.proofStore.AddProofs(newProofs); err != nil {
		return 0, err
	}
	if err := w.db.IncrementKeysetCounter(keyset.Id, uint32(len(split))); err != nil {
		return 0, ErrStoreFailed("advancing keyset counter", err)
	}

	return newProofs.Amount(), nil
}

// MeltResult is the outcome of a melt (lightning payment) operation.
type MeltResult struct {
	State        nut05.State
	ChangeProofs cashu.Proofs
}

// Melt pays a bolt11 payment request by spending proofs at the mint. On a
// Pending result, selected inputs remain PendingSpent: the caller must poll
// CheckState and resolve them via FinalizePending or RollbackPending.
func (w *Wallet) Melt(paymentRequest string) (*MeltResult, error) {
	if err := w.requireReady(); err != nil {
		return nil, err
	}

	quote, err := client.PostMeltQuoteBolt11(w.defaultMint, nut05.PostMeltQuoteBolt11Request{
		Request: paymentRequest,
		Unit:    w.unit.String(),
	})
	if err != nil {
		return nil, ErrNetwork("requesting melt quote", err)
	}

	activeKeyset, err := w.getActiveKeyset(w.defaultMint)
	if err != nil {
		return nil, ErrNoActiveKeyset(w.defaultMint)
	}
	keyset := *activeKeyset

	amountNeeded := quote.Amount + quote.FeeReserve
	available := w.proofStore.AvailableByKeyset("")
	selected, err := SelectProofs(available, amountNeeded)
	if err != nil {
		return nil, err
	}

	// Request change outputs for the full overpayment (selected inputs minus
	// the invoice amount), not just the fee reserve: coin selection may have
	// to consume more than amount+fee_reserve when denominations don't line
	// up, and NUT-08 lets the mint sign back only what it didn't actually
	// spend on the lightning fee.
	changeSplit := cashu.AmountSplit(selected.Amount() - quote.Amount)
	var blindedMessages cashu.BlindedMessages
	var secrets []string
	var rs []*secp256k1.PrivateKey
	counter := w.db.GetKeysetCounter(keyset.Id)
	if len(changeSplit) > 0 {
		blindedMessages, secrets, rs, err = w.createBlindedMessages(changeSplit, keyset.Id, &counter)
		if err != nil {
			return nil, ErrInvalidScalar("deriving melt change outputs", err)
		}
	}

	if err := w.proofStore.MarkPending(selected); err != nil {
		return nil, err
	}

	meltResponse, err := client.PostMeltBolt11(w.defaultMint, nut05.PostMeltBolt11Request{
		Quote:   quote.Quote,
		Inputs:  selected,
		Outputs: blindedMessages,
	})
	if err != nil {
		_ = w.proofStore.RollbackPending(selected)
		return nil, ErrNetwork("melting", err)
	}

	switch {
	case meltResponse.Paid:
		var changeProofs cashu.Proofs
		if len(meltResponse.Change) > 0 {
			changeProofs, err = constructProofs(meltResponse.Change, blindedMessages, secrets, rs, &keyset)
			if err != nil {
				return nil, ErrInvalidSignature("constructing melt change proofs", err)
			}
		}

		if err := w.proofStore.FinalizePending(selected); err != nil {
			return nil, err
		}
		if len(changeProofs) > 0 {
			if err := w.proofStore.AddProofs(changeProofs); err != nil {
				return nil, err
			}
		}
		if err := w.db.IncrementKeysetCounter(keyset.Id, uint32(len(changeSplit))); err != nil {
			return nil, ErrStoreFailed("advancing keyset counter", err)
		}
		return &MeltResult{State: nut05.Paid, ChangeProofs: changeProofs}, nil

	case meltResponse.State == nut05.Pending:
		return &MeltResult{State: nut05.Pending}, nil

	default:
		if err := w.proofStore.RollbackPending(selected); err != nil {
			return nil, err
		}
		return &MeltResult{State: nut05.Unpaid}, nil
	}
}

// CheckState reports each proof's state at the mint (Unspent/Pending/Spent),
// keyed by the hash-to-curve point Y of its secret so the caller never
// transmits the secret itself.
func (w *Wallet) CheckState(proofs cashu.Proofs) ([]nut07.ProofState, error) {
	if err := w.requireReady(); err != nil {
		return nil, err
	}
	if len(proofs) == 0 {
		return nil, nil
	}

	ys := make([]string, len(proofs))
	for i, proof := range proofs {
		y, err := hashToCurveHex(proof.Secret)
		if err != nil {
			return nil, ErrInvalidPoint("hashing secret to curve", err)
		}
		ys[i] = y
	}

	resp, err := client.PostCheckProofState(w.defaultMint, nut07.PostCheckStateRequest{Ys: ys})
	if err != nil {
		return nil, ErrNetwork("checking proof state", err)
	}
	return resp.States, nil
}

// RecoverPending resolves every proof left PendingSpent by a prior crash: it
// queries check_state for each and finalizes (Spent) or rolls back
// (Available) accordingly, per §4.4's crash-recovery contract.
func (w *Wallet) RecoverPending() error {
	if err := w.requireReady(); err != nil {
		return err
	}

	pending := w.proofStore.Pending()
	if len(pending) == 0 {
		return nil
	}

	proofs := make(cashu.Proofs, len(pending))
	for i, p := range pending {
		proofs[i] = cashu.Proof{Amount: p.Amount, Id: p.Id, Secret: p.Secret, C: p.C}
	}

	states, err := w.CheckState(proofs)
	if err != nil {
		return err
	}

	var spent, available cashu.Proofs
	for i, state := range states {
		switch state.State {
		case nut07.Spent:
			spent = append(spent, proofs[i])
		default:
			available = append(available, proofs[i])
		}
	}

	if len(spent) > 0 {
		if err := w.proofStore.FinalizePending(spent); err != nil {
			return err
		}
	}
	if len(available) > 0 {
		if err := w.proofStore.RollbackPending(available); err != nil {
			return err
		}
	}
	return nil
}

// createBlindedMessages derives, for each amount in split, the next
// counter-indexed (secret, blinding factor) pair for keysetId and blinds it
// into a BlindedMessage, advancing counter in place as it goes (per NUT-13 /
// spec.md §4.3).
func (w *Wallet) createBlindedMessages(split []uint64, keysetId string, counter *uint32) (cashu.BlindedMessages, []string, []*secp256k1.PrivateKey, error) {
	keysetPath, err := nut13.DeriveKeysetPath(w.masterKey, keysetId)
	if err != nil {
		return nil, nil, nil, err
	}

	blindedMessages := make(cashu.BlindedMessages, len(split))
	secrets := make([]string, len(split))
	rs := make([]*secp256k1.PrivateKey, len(split))

	for i, amount := range split {
		secret, err := nut13.DeriveSecret(keysetPath, *counter)
		if err != nil {
			return nil, nil, nil, err
		}
		r, err := nut13.DeriveBlindingFactor(keysetPath, *counter)
		if err != nil {
			return nil, nil, nil, err
		}

		B_, r, err := crypto.BlindMessage(secret, r)
		if err != nil {
			return nil, nil, nil, err
		}

		blindedMessages[i] = cashu.NewBlindedMessage(keysetId, amount, B_)
		secrets[i] = secret
		rs[i] = r
		*counter++
	}

	return blindedMessages, secrets, rs, nil
}

// constructProofs unblinds each blind signature against the keyset's public
// key for its amount, producing the spendable Proof. blindedMessages is
// accepted for symmetry with the request that produced signatures but is
// not otherwise consulted: signatures, secrets and rs already line up
// positionally since they share an origin in createBlindedMessages.
func constructProofs(signatures cashu.BlindedSignatures, blindedMessages cashu.BlindedMessages,
	secrets []string, rs []*secp256k1.PrivateKey, keyset *crypto.WalletKeyset) (cashu.Proofs, error) {

	if len(signatures) != len(secrets) || len(signatures) != len(rs) {
		return nil, errors.New("lengths of signatures, secrets and blinding factors do not match")
	}

	proofs := make(cashu.Proofs, len(signatures))
	for i, signature := range signatures {
		pubkey, ok := keyset.PublicKeys[signature.Amount]
		if !ok {
			return nil, fmt.Errorf("no key for amount %d in keyset '%s'", signature.Amount, keyset.Id)
		}

		C_bytes, err := hex.DecodeString(signature.C_)
		if err != nil {
			return nil, err
		}
		C_, err := secp256k1.ParsePubKey(C_bytes)
		if err != nil {
			return nil, err
		}

		C, err := crypto.UnblindSignature(C_, rs[i], pubkey)
		if err != nil {
			return nil, err
		}

		proofs[i] = cashu.Proof{
			Amount: signature.Amount,
			Id:     signature.Id,
			Secret: secrets[i],
			C:      hex.EncodeToString(C.SerializeCompressed()),
			DLEQ:   signature.DLEQ,
		}
	}

	return proofs, nil
}
