package wallet

import "fmt"

// ErrorKind tags a WalletError with the coarse-grained taxonomy the
// orchestrator reports failures under, mirroring how cashu.Error tags
// mint-side failures with a CashuErrCode.
type ErrorKind int

const (
	Validation ErrorKind = iota
	State
	Quote
	Crypto
	Codec
	Storage
	Mint
	Transport
)

func (k ErrorKind) String() string {
	switch k {
	case Validation:
		return "validation"
	case State:
		return "state"
	case Quote:
		return "quote"
	case Crypto:
		return "crypto"
	case Codec:
		return "codec"
	case Storage:
		return "storage"
	case Mint:
		return "mint"
	case Transport:
		return "transport"
	default:
		return "unknown"
	}
}

// WalletError is the core's structured failure value. Context is a
// human-readable fragment only — it never carries secret material (a
// mnemonic, a secret, a signature); call sites below pass identifiers
// (keyset ids, quote ids, NUT numbers), not wallet contents.
type WalletError struct {
	Kind    ErrorKind
	Code    string
	Context string
	Err     error
}

func (e *WalletError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Context)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func (e *WalletError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, code, context string, err error) *WalletError {
	return &WalletError{Kind: kind, Code: code, Context: context, Err: err}
}

// Validation
func ErrInvalidAmount(context string) error { return newError(Validation, "InvalidAmount", context, nil) }
func ErrInvalidMintURL(context string) error {
	return newError(Validation, "InvalidMintURL", context, nil)
}
func ErrInvalidTokenFormat(context string, err error) error {
	return newError(Validation, "InvalidTokenFormat", context, err)
}
func ErrInvalidKeysetID(context string) error {
	return newError(Validation, "InvalidKeysetID", context, nil)
}
func ErrInvalidProofSet(context string) error {
	return newError(Validation, "InvalidProofSet", context, nil)
}

// State
func ErrWalletNotInitialized() error {
	return newError(State, "WalletNotInitialized", "", nil)
}
func ErrNoActiveKeyset(mintURL string) error {
	return newError(State, "NoActiveKeyset", mintURL, nil)
}
func ErrNoSpendableProofs() error {
	return newError(State, "NoSpendableProofs", "", nil)
}
func ErrBalanceInsufficient(context string) error {
	return newError(State, "BalanceInsufficient", context, nil)
}
func ErrInvalidState(desc string) error {
	return newError(State, "InvalidState", desc, nil)
}

// Quote
func ErrQuotePending(quoteId string) error { return newError(Quote, "QuotePending", quoteId, nil) }
func ErrQuoteNotFound(quoteId string) error {
	return newError(Quote, "QuoteNotFound", quoteId, nil)
}
func ErrQuoteExpired(quoteId string) error {
	return newError(Quote, "QuoteExpired", quoteId, nil)
}
func ErrQuoteAlreadyIssued(quoteId string) error {
	return newError(Quote, "QuoteAlreadyIssued", quoteId, nil)
}

// Mint
func ErrUnsupportedOperation(nutID int) error {
	return newError(Mint, "UnsupportedOperation", fmt.Sprintf("nut-%02d", nutID), nil)
}
func ErrInvalidMintConfiguration(context string) error {
	return newError(Mint, "InvalidMintConfiguration", context, nil)
}
func ErrInvalidResponse(context string, err error) error {
	return newError(Mint, "InvalidResponse", context, err)
}

// Crypto
func ErrDLEQFailed(context string) error {
	return newError(Crypto, "DLEQFailed", context, nil)
}
func ErrInvalidSignature(context string, err error) error {
	return newError(Crypto, "InvalidSignature", context, err)
}
func ErrInvalidScalar(context string, err error) error {
	return newError(Crypto, "InvalidScalar", context, err)
}
func ErrInvalidPoint(context string, err error) error {
	return newError(Crypto, "InvalidPoint", context, err)
}

// Codec
func ErrSerializationFailed(context string, err error) error {
	return newError(Codec, "SerializationFailed", context, err)
}

// Transport
func ErrNetwork(context string, err error) error {
	return newError(Transport, "Network", context, err)
}
func ErrOperationTimeout(context string) error {
	return newError(Transport, "OperationTimeout", context, nil)
}

// Storage
func ErrStoreFailed(context string, err error) error {
	return newError(Storage, "StoreFailed", context, err)
}
func ErrRetrievalFailed(context string, err error) error {
	return newError(Storage, "RetrievalFailed", context, err)
}
