// Package client is the HTTP transport the wallet uses to talk to a mint's
// NUT REST API. Every exported function takes the mint's base URL and
// returns the already-decoded response, mirroring the free-function style of
// the same package in the teacher's own wallet (mint requests are stateless,
// so there is no benefit to a struct with a client.http.Client field beyond
// what DefaultClient already gives every call site).
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nutvault/walletcore/cashu"
	"github.com/nutvault/walletcore/cashu/nuts/nut01"
	"github.com/nutvault/walletcore/cashu/nuts/nut02"
	"github.com/nutvault/walletcore/cashu/nuts/nut03"
	"github.com/nutvault/walletcore/cashu/nuts/nut04"
	"github.com/nutvault/walletcore/cashu/nuts/nut05"
	"github.com/nutvault/walletcore/cashu/nuts/nut06"
	"github.com/nutvault/walletcore/cashu/nuts/nut07"
	"github.com/nutvault/walletcore/cashu/nuts/nut09"
	"github.com/google/uuid"
)

var ErrInsecureMintURL = errors.New("mint url must use https")

// requireHTTPS rejects plain-http mint URLs, except for loopback addresses
// used by local development and the teacher's own integration tests
// (http://127.0.0.1:3338).
func requireHTTPS(mintURL string) error {
	u, err := url.Parse(mintURL)
	if err != nil {
		return fmt.Errorf("invalid mint url: %v", err)
	}
	if u.Scheme == "https" {
		return nil
	}
	host := u.Hostname()
	if u.Scheme == "http" && (host == "127.0.0.1" || host == "localhost" || host == "::1") {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInsecureMintURL, mintURL)
}

func GetMintInfo(mintURL string) (*nut06.MintInfo, error) {
	resp, err := get(mintURL + "/v1/info")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var info nut06.MintInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("json.Decode: %v", err)
	}
	return &info, nil
}

func GetActiveKeysets(mintURL string) (*nut01.GetKeysResponse, error) {
	resp, err := get(mintURL + "/v1/keys")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var keysResponse nut01.GetKeysResponse
	if err := json.NewDecoder(resp.Body).Decode(&keysResponse); err != nil {
		return nil, fmt.Errorf("json.Decode: %v", err)
	}
	return &keysResponse, nil
}

func GetAllKeysets(mintURL string) (*nut02.GetKeysetsResponse, error) {
	resp, err := get(mintURL + "/v1/keysets")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var keysetsResponse nut02.GetKeysetsResponse
	if err := json.NewDecoder(resp.Body).Decode(&keysetsResponse); err != nil {
		return nil, fmt.Errorf("json.Decode: %v", err)
	}
	return &keysetsResponse, nil
}

func GetKeysetById(mintURL, id string) (*nut01.GetKeysResponse, error) {
	resp, err := get(mintURL + "/v1/keys/" + id)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var keysResponse nut01.GetKeysResponse
	if err := json.NewDecoder(resp.Body).Decode(&keysResponse); err != nil {
		return nil, fmt.Errorf("json.Decode: %v", err)
	}
	return &keysResponse, nil
}

func PostMintQuoteBolt11(mintURL string, req nut04.PostMintQuoteBolt11Request) (*nut04.PostMintQuoteBolt11Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %v", err)
	}

	resp, err := httpPost(mintURL+"/v1/mint/quote/bolt11", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var quoteResponse nut04.PostMintQuoteBolt11Response
	if err := json.NewDecoder(resp.Body).Decode(&quoteResponse); err != nil {
		return nil, fmt.Errorf("json.Decode: %v", err)
	}
	return &quoteResponse, nil
}

func GetMintQuoteState(mintURL, quoteId string) (*nut04.PostMintQuoteBolt11Response, error) {
	resp, err := get(mintURL + "/v1/mint/quote/bolt11/" + quoteId)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var quoteResponse nut04.PostMintQuoteBolt11Response
	if err := json.NewDecoder(resp.Body).Decode(&quoteResponse); err != nil {
		return nil, fmt.Errorf("json.Decode: %v", err)
	}
	return &quoteResponse, nil
}

func PostMintBolt11(mintURL string, req nut04.PostMintBolt11Request) (*nut04.PostMintBolt11Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshaling blinded messages: %v", err)
	}

	resp, err := httpPost(mintURL+"/v1/mint/bolt11", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var mintResponse nut04.PostMintBolt11Response
	if err := json.NewDecoder(resp.Body).Decode(&mintResponse); err != nil {
		return nil, fmt.Errorf("error decoding response from mint: %v", err)
	}
	return &mintResponse, nil
}

func PostSwap(mintURL string, req nut03.PostSwapRequest) (*nut03.PostSwapResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request body: %v", err)
	}

	resp, err := httpPost(mintURL+"/v1/swap", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var swapResponse nut03.PostSwapResponse
	if err := json.NewDecoder(resp.Body).Decode(&swapResponse); err != nil {
		return nil, fmt.Errorf("error decoding response from mint: %v", err)
	}
	return &swapResponse, nil
}

func PostMeltQuoteBolt11(mintURL string, req nut05.PostMeltQuoteBolt11Request) (*nut05.PostMeltQuoteBolt11Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %v", err)
	}

	resp, err := httpPost(mintURL+"/v1/melt/quote/bolt11", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var quoteResponse nut05.PostMeltQuoteBolt11Response
	if err := json.NewDecoder(resp.Body).Decode(&quoteResponse); err != nil {
		return nil, fmt.Errorf("error decoding response from mint: %v", err)
	}
	return &quoteResponse, nil
}

func GetMeltQuoteState(mintURL, quoteId string) (*nut05.PostMeltQuoteBolt11Response, error) {
	resp, err := get(mintURL + "/v1/melt/quote/bolt11/" + quoteId)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var quoteResponse nut05.PostMeltQuoteBolt11Response
	if err := json.NewDecoder(resp.Body).Decode(&quoteResponse); err != nil {
		return nil, fmt.Errorf("error decoding response from mint: %v", err)
	}
	return &quoteResponse, nil
}

func PostMeltBolt11(mintURL string, req nut05.PostMeltBolt11Request) (*nut05.PostMeltBolt11Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %v", err)
	}

	resp, err := httpPost(mintURL+"/v1/melt/bolt11", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var meltResponse nut05.PostMeltBolt11Response
	if err := json.NewDecoder(resp.Body).Decode(&meltResponse); err != nil {
		return nil, fmt.Errorf("error decoding response from mint: %v", err)
	}
	return &meltResponse, nil
}

func PostCheckProofState(mintURL string, req nut07.PostCheckStateRequest) (*nut07.PostCheckStateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %v", err)
	}

	resp, err := httpPost(mintURL+"/v1/checkstate", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var stateResponse nut07.PostCheckStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&stateResponse); err != nil {
		return nil, fmt.Errorf("error decoding response from mint: %v", err)
	}
	return &stateResponse, nil
}

func PostRestore(mintURL string, req nut09.PostRestoreRequest) (*nut09.PostRestoreResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %v", err)
	}

	resp, err := httpPost(mintURL+"/v1/restore", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var restoreResponse nut09.PostRestoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&restoreResponse); err != nil {
		return nil, fmt.Errorf("error decoding response from mint: %v", err)
	}
	return &restoreResponse, nil
}

func get(urlStr string) (*http.Response, error) {
	if err := requireHTTPS(urlStr); err != nil {
		return nil, err
	}
	resp, err := http.Get(urlStr)
	if err != nil {
		return nil, err
	}
	return parse(resp)
}

// httpPost issues a state-changing POST, tagging it with a fresh idempotency
// key so a client-side retry does not cause the mint to double-mint, double-
// swap, or double-melt the same request.
func httpPost(urlStr, contentType string, body io.Reader) (*http.Response, error) {
	if err := requireHTTPS(urlStr); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, urlStr, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	return parse(resp)
}

func parse(response *http.Response) (*http.Response, error) {
	if response.StatusCode == http.StatusBadRequest {
		var cashuErr cashu.Error
		if err := json.NewDecoder(response.Body).Decode(&cashuErr); err != nil {
			return nil, fmt.Errorf("error decoding error response from mint: %v", err)
		}
		response.Body.Close()
		return nil, cashuErr
	} else if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(response.Body)
		response.Body.Close()
		return nil, errors.New(strings.TrimSpace(string(body)))
	}

	return response, nil
}
