// Package nut04 contains structs as defined in [NUT-04]
//
// [NUT-04]: https://github.com/cashubtc/nuts/blob/main/04.md
package nut04

import (
	"encoding/json"

	"github.com/nutvault/walletcore/cashu"
)

// State is a mint quote's lifecycle state.
type State int

const (
	Unpaid State = iota
	Paid
	Issued
)

func (s State) String() string {
	switch s {
	case Unpaid:
		return "UNPAID"
	case Paid:
		return "PAID"
	case Issued:
		return "ISSUED"
	default:
		return "UNKNOWN"
	}
}

func StringToState(s string) State {
	switch s {
	case "PAID":
		return Paid
	case "ISSUED":
		return Issued
	default:
		return Unpaid
	}
}

type PostMintQuoteBolt11Request struct {
	Amount uint64 `json:"amount"`
	Unit   string `json:"unit"`
}

type PostMintQuoteBolt11Response struct {
	Quote   string `json:"quote"`
	Request string `json:"request"`
	Paid    bool   `json:"paid"`
	State   State  `json:"-"`
	Expiry  int64  `json:"expiry"`
}

func (r *PostMintQuoteBolt11Response) UnmarshalJSON(data []byte) error {
	type alias PostMintQuoteBolt11Response
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

type PostMintBolt11Request struct {
	Quote   string                `json:"quote"`
	Outputs cashu.BlindedMessages `json:"outputs"`
}

type PostMintBolt11Response struct {
	Signatures cashu.BlindedSignatures `json:"signatures"`
}
