// Package nut05 contains structs as defined in [NUT-05]
//
// [NUT-05]: https://github.com/cashubtc/nuts/blob/main/05.md
package nut05

import (
	"encoding/json"

	"github.com/nutvault/walletcore/cashu"
)

// State is a melt quote's lifecycle state.
type State int

const (
	Unpaid State = iota
	Pending
	Paid
)

func (s State) String() string {
	switch s {
	case Unpaid:
		return "UNPAID"
	case Pending:
		return "PENDING"
	case Paid:
		return "PAID"
	default:
		return "UNKNOWN"
	}
}

func StringToState(s string) State {
	switch s {
	case "PENDING":
		return Pending
	case "PAID":
		return Paid
	default:
		return Unpaid
	}
}

type PostMeltQuoteBolt11Request struct {
	Request string `json:"request"`
	Unit    string `json:"unit"`
}

type PostMeltQuoteBolt11Response struct {
	Quote      string `json:"quote"`
	Amount     uint64 `json:"amount"`
	FeeReserve uint64 `json:"fee_reserve"`
	Paid       bool   `json:"paid"`
	State      State  `json:"-"`
	Expiry     int64  `json:"expiry"`
	Preimage   string `json:"payment_preimage"`
}

func (r *PostMeltQuoteBolt11Response) UnmarshalJSON(data []byte) error {
	type alias PostMeltQuoteBolt11Response
	aux := &struct {
		State string `json:"state"`
		*alias
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if aux.State != "" {
		r.State = StringToState(aux.State)
	} else if r.Paid {
		r.State = Paid
	}
	return nil
}

// PostMeltBolt11Request carries blank Outputs the mint may sign change onto
// when the inputs overshoot amount+fee_reserve (the fee_reserve is an upper
// bound the lightning backend may not spend in full).
type PostMeltBolt11Request struct {
	Quote   string                `json:"quote"`
	Inputs  cashu.Proofs          `json:"inputs"`
	Outputs cashu.BlindedMessages `json:"outputs,omitempty"`
}

type PostMeltBolt11Response struct {
	Paid     bool                    `json:"paid"`
	Preimage string                  `json:"payment_preimage"`
	State    State                   `json:"-"`
	Change   cashu.BlindedSignatures `json:"change,omitempty"`
}

func (r *PostMeltBolt11Response) UnmarshalJSON(data []byte) error {
	type alias PostMeltBolt11Response
	aux := &struct {
		State string `json:"state"`
		*alias
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if aux.State != "" {
		r.State = StringToState(aux.State)
	} else if r.Paid {
		r.State = Paid
	}
	return nil
}
