package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	sdkmath "cosmossdk.io/math"

	"github.com/brojonat/brtgate/service/brt"
	"github.com/brojonat/brtgate/service/nats"
)

const (
	maxRequestBodySize = 64 << 10 // 64KB - a signed blob is a few hundred bytes
	maxAddressLength   = 64       // classic addresses are 25-35 chars, give buffer
)

// handleGetHeight returns a handler that reports the latest closed ledger index.
// GET /api/v1/height
func handleGetHeight(ledger Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		height, err := ledger.GetBlockNumber(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get block number", "error", err)
			writeLedgerError(w, err)
			return
		}

		writeJSON(w, map[string]interface{}{
			"height": height,
		}, http.StatusOK)
	})
}

// handleGetFee returns a handler that reports the network minimum fee.
// GET /api/v1/fee
func handleGetFee(ledger Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fee, err := ledger.GetNetworkFee(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get network fee", "error", err)
			writeLedgerError(w, err)
			return
		}

		writeJSON(w, map[string]interface{}{
			"minimum_fee": fee.String(),
		}, http.StatusOK)
	})
}

// handleGetSupply returns a handler that reports the total coin supply.
// GET /api/v1/supply
// Always succeeds: an unreachable node reports a supply of "0".
func handleGetSupply(ledger Ledger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"total_supply": ledger.GetTotalSupply(r.Context()),
		}, http.StatusOK)
	})
}

// handleGetBlock returns a handler that retrieves a closed ledger.
// GET /api/v1/blocks/{index}?expand=true
func handleGetBlock(ledger Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.ParseUint(r.PathValue("index"), 10, 64)
		if err != nil {
			writeError(w, "invalid block index: must be a non-negative integer", codeInvalidRequest, http.StatusBadRequest)
			return
		}

		expand := false
		if v := r.URL.Query().Get("expand"); v != "" {
			expand, err = strconv.ParseBool(v)
			if err != nil {
				writeError(w, "invalid expand: must be a boolean", codeInvalidRequest, http.StatusBadRequest)
				return
			}
		}

		block, err := ledger.GetBlock(r.Context(), index, expand)
		if err != nil {
			logger.DebugContext(r.Context(), "failed to get block", "index", index, "error", err)
			writeLedgerError(w, err)
			return
		}

		writeJSON(w, block, http.StatusOK)
	})
}

// handleGetTransaction returns a handler that retrieves one payment.
// GET /api/v1/transactions/{hash}
func handleGetTransaction(ledger Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := r.PathValue("hash")
		if !ledger.IsTransactionIDValid(hash) {
			writeError(w, "invalid transaction id: must be 64 uppercase hex characters", codeInvalidRequest, http.StatusBadRequest)
			return
		}

		tx, err := ledger.GetTransaction(r.Context(), hash)
		if err != nil {
			logger.DebugContext(r.Context(), "failed to get transaction", "hash", hash, "error", err)
			writeLedgerError(w, err)
			return
		}

		writeJSON(w, tx, http.StatusOK)
	})
}

// handleGetAddressBalance returns a handler that reports an account balance in drops.
// GET /api/v1/addresses/{address}/balance
func handleGetAddressBalance(ledger Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(ledger, address); err != nil {
			writeError(w, err.Error(), codeInvalidRequest, http.StatusBadRequest)
			return
		}

		balance, err := ledger.GetAddressBalance(r.Context(), address)
		if err != nil {
			logger.DebugContext(r.Context(), "failed to get balance", "address", address, "error", err)
			writeLedgerError(w, err)
			return
		}

		writeJSON(w, map[string]interface{}{
			"address": address,
			"balance": balance,
		}, http.StatusOK)
	})
}

// handleGetAddressTransactions returns a handler that lists an account's payments.
// GET /api/v1/addresses/{address}/transactions
func handleGetAddressTransactions(ledger Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := validateAddress(ledger, address); err != nil {
			writeError(w, err.Error(), codeInvalidRequest, http.StatusBadRequest)
			return
		}

		txs, err := ledger.GetAddressTransactions(r.Context(), address)
		if err != nil {
			logger.DebugContext(r.Context(), "failed to get address transactions", "address", address, "error", err)
			writeLedgerError(w, err)
			return
		}

		logger.DebugContext(r.Context(), "address transactions retrieved", "address", address, "count", len(txs))
		writeJSON(w, txs, http.StatusOK)
	})
}

// handleIsAddressValid returns a handler that checks an address.
// GET /api/v1/addresses/{address}/valid
func handleIsAddressValid(ledger Ledger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		writeJSON(w, map[string]interface{}{
			"address": address,
			"valid":   validateAddress(ledger, address) == nil,
		}, http.StatusOK)
	})
}

type generateAddressResponse struct {
	Address brt.Address  `json:"address"`
	Keypair *brt.Keypair `json:"keypair"`
}

// handleGenerateAddress returns a handler that creates a new account keypair.
// POST /api/v1/addresses
// Nothing is sent to the network; the account exists once it is funded.
func handleGenerateAddress(ledger Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address, keypair, err := ledger.GenerateAddress()
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to generate address", "error", err)
			writeError(w, "failed to generate address", codeInternal, http.StatusInternalServerError)
			return
		}

		logger.InfoContext(r.Context(), "address generated", "address", address)
		writeJSON(w, generateAddressResponse{
			Address: address,
			Keypair: keypair,
		}, http.StatusCreated)
	})
}

type signRequest struct {
	From struct {
		Address string `json:"address"`
		Seed    string `json:"seed"`
	} `json:"from"`
	To struct {
		Address string `json:"address"`
		Value   string `json:"value"`
	} `json:"to"`
	Fee string `json:"fee"`
}

// handleSignTransaction returns a handler that builds and signs a payment.
// POST /api/v1/transactions/sign
// An omitted fee defaults to the network minimum fee.
func handleSignTransaction(ledger Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req signRequest
		if !decodeBody(w, r, &req, logger) {
			return
		}

		if err := validateAddress(ledger, req.From.Address); err != nil {
			writeError(w, "from: "+err.Error(), codeInvalidRequest, http.StatusBadRequest)
			return
		}
		if req.From.Seed == "" {
			writeError(w, "from: seed is required", codeInvalidRequest, http.StatusBadRequest)
			return
		}
		if err := validateAddress(ledger, req.To.Address); err != nil {
			writeError(w, "to: "+err.Error(), codeInvalidRequest, http.StatusBadRequest)
			return
		}

		value, err := brt.ParseDrops(req.To.Value)
		if err != nil || !value.IsPositive() {
			writeError(w, "to: value must be a positive integer amount of drops", codeInvalidRequest, http.StatusBadRequest)
			return
		}

		var fee sdkmath.Int
		if req.Fee == "" {
			fee, err = ledger.GetNetworkFee(r.Context())
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to get network fee", "error", err)
				writeLedgerError(w, err)
				return
			}
		} else {
			fee, err = brt.ParseDrops(req.Fee)
			if err != nil {
				writeError(w, "fee must be a non-negative integer amount of drops", codeInvalidRequest, http.StatusBadRequest)
				return
			}
		}

		signed, err := ledger.SignTransaction(r.Context(),
			brt.Account{
				Address: req.From.Address,
				Keypair: &brt.Keypair{Seed: req.From.Seed},
			},
			brt.Recipient{Address: req.To.Address, Value: value},
			fee,
		)
		if err != nil {
			logger.WarnContext(r.Context(), "failed to sign transaction", "from", req.From.Address, "error", err)
			writeLedgerError(w, err)
			return
		}

		writeJSON(w, signed, http.StatusOK)
	})
}

type submitResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// handleSubmitTransaction returns a handler that submits a signed payment.
// POST /api/v1/transactions/submit
// The id is returned on failure too. Every outcome is published when a
// publisher is configured; publish failures are logged and do not change the
// response.
func handleSubmitTransaction(ledger Ledger, publisher nats.Publisher, network string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var signed brt.SignedTransaction
		if !decodeBody(w, r, &signed, logger) {
			return
		}
		if signed.Raw == "" {
			writeError(w, "raw is required", codeInvalidRequest, http.StatusBadRequest)
			return
		}

		submittedAt := time.Now()
		id, err := ledger.SubmitTransaction(r.Context(), &signed)
		code := brt.ErrorCode(err)

		if publisher != nil {
			event := nats.NewSubmissionEvent(id, code, err, network, submittedAt)
			if pubErr := publisher.PublishSubmission(r.Context(), event); pubErr != nil {
				logger.ErrorContext(r.Context(), "failed to publish submission event", "id", id, "error", pubErr)
			}
		}

		if err != nil {
			writeJSON(w, submitResponse{ID: id, Error: err.Error(), Code: code}, statusForError(err))
			return
		}
		writeJSON(w, submitResponse{ID: id}, http.StatusOK)
	})
}

// Codes for failures detected before reaching the ledger.
const (
	codeInvalidRequest = "e_invalid_request"
	codeInternal       = "e_internal"
)

// notFoundTokens are node error tokens for objects the node does not have.
var notFoundTokens = map[string]bool{
	"txnNotFound": true,
	"actNotFound": true,
	"lgrNotFound": true,
}

// statusForError maps a ledger error to an HTTP status.
func statusForError(err error) int {
	var rpcErr *brt.RPCError
	switch {
	case errors.Is(err, brt.ErrBlockNotFound),
		errors.Is(err, brt.ErrTransactionNotAdaptable):
		return http.StatusNotFound
	case errors.As(err, &rpcErr) && notFoundTokens[rpcErr.Code]:
		return http.StatusNotFound
	case errors.Is(err, brt.ErrBadSignature),
		errors.Is(err, brt.ErrBadSequence),
		errors.Is(err, brt.ErrRedundant),
		errors.Is(err, brt.ErrUnfundedPayment),
		errors.Is(err, brt.ErrSequenceUndefined):
		return http.StatusUnprocessableEntity
	case errors.Is(err, brt.ErrTransactionSendFailed):
		if errors.Is(err, brt.ErrRequestFailed) {
			return http.StatusBadGateway
		}
		return http.StatusUnprocessableEntity
	case errors.Is(err, brt.ErrRequestFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeLedgerError writes a ledger error with its stable code.
func writeLedgerError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), brt.ErrorCode(err), statusForError(err))
}

// decodeBody decodes a size-limited JSON body, writing the error response
// itself when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.DebugContext(r.Context(), "failed to decode request", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, "request body too large: maximum size is 64KB", codeInvalidRequest, http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", codeInvalidRequest, http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}

// validateAddress rejects oversized or malformed input before it reaches the
// address codec.
func validateAddress(ledger Ledger, address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	for _, r := range address {
		if r == 0 || unicode.IsControl(r) || unicode.IsSpace(r) {
			return errorf("invalid characters in address")
		}
	}

	if !strings.HasPrefix(address, "r") || !ledger.IsAddressValid(address) {
		return errorf("invalid address format: %s", address)
	}

	return nil
}

// errorf is a helper to create formatted errors.
func errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
