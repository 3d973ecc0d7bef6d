package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/brtgate/service/brt"
)

const (
	testAddr = "rPT1Sjq2YGrBMTttX4GZHjKu9dyfzbpAYe"
	testHash = "E08D6E9754025BA2534A78707605E0601F03ACE063687A0CA1BDDACFCD1698C7"
)

func writeTestJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestHeight_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/height", r.URL.Path)
		writeTestJSON(w, http.StatusOK, map[string]interface{}{"height": 77})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	height, err := client.Height(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(77), height)
}

func TestNetworkFee_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]string{"minimum_fee": "10"})
	}))
	defer server.Close()

	fee, err := NewClient(server.URL, nil, nil).NetworkFee(context.Background())
	require.NoError(t, err)
	assert.True(t, fee.Equal(sdkmath.NewInt(10)))
}

func TestBlock_Expanded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/blocks/42", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("expand"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"block":42,"hash":"AB","time":"2021-03-01T00:00:10Z","confirmations":3,
			"txs":[{"hash":"` + testHash + `","value":"1000","fee":"12","balance":"1000","block":42,
			"account":null,"from":["` + testAddr + `"],"to":[{"address":"` + testAddr + `","value":"1000"}]}]}`))
	}))
	defer server.Close()

	block, err := NewClient(server.URL, nil, nil).Block(context.Background(), 42, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), block.Index)
	assert.Equal(t, uint64(3), block.Confirmations)
	require.Len(t, block.Transactions, 1)
	assert.True(t, block.Transactions[0].Value.Equal(sdkmath.NewInt(1000)))
	assert.Nil(t, block.Transactions[0].Account)
}

func TestBlock_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusNotFound, map[string]string{
			"error": "block not found: 42",
			"code":  "e_block_not_found",
		})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, nil).Block(context.Background(), 42, false)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "e_block_not_found", apiErr.Code)
	assert.ErrorIs(t, err, brt.ErrBlockNotFound)
	assert.NotErrorIs(t, err, brt.ErrRequestFailed)
}

func TestBalance_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/addresses/"+testAddr+"/balance", r.URL.Path)
		writeTestJSON(w, http.StatusOK, map[string]string{"address": testAddr, "balance": "2500000"})
	}))
	defer server.Close()

	balance, err := NewClient(server.URL, nil, nil).Balance(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, "2500000", balance)
}

func TestGenerateAddress_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		writeTestJSON(w, http.StatusCreated, map[string]interface{}{
			"address": testAddr,
			"keypair": map[string]string{"public": "ED01", "private": "ED02", "seed": "sEdSeed"},
		})
	}))
	defer server.Close()

	address, keypair, err := NewClient(server.URL, nil, nil).GenerateAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAddr, address)
	assert.Equal(t, "sEdSeed", keypair.Seed)
}

func TestSign_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transactions/sign", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testAddr, body["from"]["address"])
		assert.Equal(t, "sEdSeed", body["from"]["seed"])
		assert.Equal(t, "1000", body["to"]["value"])

		writeTestJSON(w, http.StatusOK, map[string]string{"raw": "1200", "id": testHash})
	}))
	defer server.Close()

	signed, err := NewClient(server.URL, nil, nil).Sign(context.Background(), SignRequest{
		From:  testAddr,
		Seed:  "sEdSeed",
		To:    testAddr,
		Value: sdkmath.NewInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, testHash, signed.ID)
}

func TestSubmit_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"id":    testHash,
			"error": "bad sequence: tefPAST_SEQ",
			"code":  "e_bad_sequence",
		})
	}))
	defer server.Close()

	id, err := NewClient(server.URL, nil, nil).Submit(context.Background(), &brt.SignedTransaction{Raw: "1200", ID: testHash})
	assert.Equal(t, testHash, id)
	assert.ErrorIs(t, err, brt.ErrBadSequence)
}

func TestSubmit_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body brt.SignedTransaction
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "1200", body.Raw)
		writeTestJSON(w, http.StatusOK, map[string]string{"id": testHash})
	}))
	defer server.Close()

	id, err := NewClient(server.URL, nil, nil).Submit(context.Background(), &brt.SignedTransaction{Raw: "1200", ID: "OTHER"})
	require.NoError(t, err)
	assert.Equal(t, testHash, id)
}

func TestParseErrorResponse_NotJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, nil).Height(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	assert.NoError(t, NewClient(server.URL, nil, nil).Health(context.Background()))
}
