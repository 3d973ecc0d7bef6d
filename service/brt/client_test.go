package brt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/brtgate/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	txHash1 = "E08D6E9754025BA2534A78707605E0601F03ACE063687A0CA1BDDACFCD1698C7"
	txHash2 = "1D1B0F2F1E2C5A6B9C7D8E9F00112233445566778899AABBCCDDEEFF00112233"
	txHash3 = "AA1B0F2F1E2C5A6B9C7D8E9F00112233445566778899AABBCCDDEEFF00112233"
)

const ledgerClosedJSON = `{"ledger_hash":"ABC","ledger_index":500,"status":"success"}`

func TestGetBlockNumber(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodLedgerClosed] = ledgerClosedJSON
	client := newTestClient(gw, nil)

	height, err := client.GetBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(500), height)
}

func TestGetBlock_NotClosed(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodLedger] = `{"ledger_hash":"H","ledger_index":501,"ledger":{"closed":false,"close_time":10,"transactions":[]},"status":"success"}`
	gw.responses[MethodLedgerClosed] = ledgerClosedJSON
	client := newTestClient(gw, nil)

	block, err := client.GetBlock(context.Background(), 501, false)
	assert.ErrorIs(t, err, ErrBlockNotFound)
	assert.Nil(t, block)
	assert.Equal(t, 0, gw.callCount(MethodLedgerClosed))
}

func TestGetBlock_TransactionIDs(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodLedger] = fmt.Sprintf(`{
		"ledger_hash":"LEDGERHASH",
		"ledger_index":490,
		"ledger":{"closed":true,"close_time":1000,"transactions":["%s","%s"]},
		"status":"success"
	}`, txHash1, txHash2)
	gw.responses[MethodLedgerClosed] = ledgerClosedJSON
	client := newTestClient(gw, nil)

	block, err := client.GetBlock(context.Background(), 490, false)
	require.NoError(t, err)

	assert.Equal(t, uint64(490), block.Index)
	assert.Equal(t, "LEDGERHASH", block.Hash)
	assert.Equal(t, uint64(10), block.Confirmations)
	assert.Equal(t, LedgerTime(1000), block.Time)
	assert.Equal(t, []string{txHash1, txHash2}, block.TransactionIDs)
	assert.Nil(t, block.Transactions)
}

func TestGetBlock_Expanded(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodLedger] = fmt.Sprintf(`{
		"ledger_hash":"LEDGERHASH",
		"ledger_index":490,
		"ledger":{"closed":true,"close_time":1000,"transactions":[
			{"TransactionType":"Payment","Account":"%[1]s","Destination":"%[2]s","Amount":"1000000","Fee":"12","Sequence":1,"hash":"%[3]s","metaData":{"TransactionResult":"tesSUCCESS"}},
			{"TransactionType":"OfferCreate","Account":"%[1]s","Fee":"12","Sequence":2,"hash":"%[4]s","metaData":{"TransactionResult":"tesSUCCESS"}},
			{"TransactionType":"Payment","Account":"%[1]s","Destination":"%[2]s","Amount":"5","Fee":"12","Sequence":3,"hash":"%[5]s","metaData":{"TransactionResult":"tecUNFUNDED_PAYMENT"}}
		]},
		"status":"success"
	}`, addrA, addrB, txHash1, txHash2, txHash3)
	gw.responses[MethodLedgerClosed] = ledgerClosedJSON
	client := newTestClient(gw, nil)

	block, err := client.GetBlock(context.Background(), 490, true)
	require.NoError(t, err)

	require.Len(t, block.Transactions, 1)
	tx := block.Transactions[0]
	assert.Equal(t, txHash1, tx.Hash)
	assert.Equal(t, uint64(490), tx.Block)
	assert.Equal(t, uint64(10), tx.Confirmations)
	assert.Equal(t, LedgerTime(1000), tx.Time)
	assert.Equal(t, "1000000", tx.Balance.String())
	assert.Nil(t, block.TransactionIDs)
}

func TestGetBlock_ExpandedAllFiltered(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodLedger] = fmt.Sprintf(`{
		"ledger_hash":"LEDGERHASH",
		"ledger_index":490,
		"ledger":{"closed":true,"close_time":1000,"transactions":[
			{"TransactionType":"OfferCreate","Account":"%s","Fee":"12","Sequence":2,"hash":"%s","metaData":{"TransactionResult":"tesSUCCESS"}}
		]},
		"status":"success"
	}`, addrA, txHash2)
	gw.responses[MethodLedgerClosed] = ledgerClosedJSON
	client := newTestClient(gw, nil)

	block, err := client.GetBlock(context.Background(), 490, true)
	require.NoError(t, err)
	assert.NotNil(t, block.Transactions)
	assert.Empty(t, block.Transactions)

	data, err := json.Marshal(block)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"txs":[]`)
	assert.NotContains(t, string(data), `"tx_ids"`)
}

func TestBlockJSON_EmptyTransactionIDs(t *testing.T) {
	data, err := json.Marshal(&Block{Index: 7, TransactionIDs: []string{}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tx_ids":[]`)
	assert.NotContains(t, string(data), `"txs"`)

	var decoded Block
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, uint64(7), decoded.Index)
	assert.NotNil(t, decoded.TransactionIDs)
}

func TestGetBlock_RPCError(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodLedger] = `{"error":"lgrNotFound","error_message":"ledgerNotFound","status":"error"}`
	client := newTestClient(gw, nil)

	_, err := client.GetBlock(context.Background(), 99999999, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, "e_request_failed", ErrorCode(err))
}

func TestGetTotalSupply(t *testing.T) {
	t.Run("closed ledger total coins", func(t *testing.T) {
		gw := newMockGateway()
		gw.responses[MethodLedger] = `{"ledger":{"closed":true,"total_coins":"99999999999999999999"},"ledger_index":500,"status":"success"}`
		client := newTestClient(gw, nil)

		assert.Equal(t, "99999999999999999999", client.GetTotalSupply(context.Background()))
	})

	t.Run("rpc failure degrades to zero", func(t *testing.T) {
		gw := newMockGateway()
		gw.errs[MethodLedger] = fmt.Errorf("%w: connection refused", ErrRequestFailed)
		client := newTestClient(gw, nil)

		assert.Equal(t, "0", client.GetTotalSupply(context.Background()))
	})

	t.Run("node error degrades to zero", func(t *testing.T) {
		gw := newMockGateway()
		gw.responses[MethodLedger] = `{"error":"noNetwork","status":"error"}`
		client := newTestClient(gw, nil)

		assert.Equal(t, "0", client.GetTotalSupply(context.Background()))
	})
}

func TestGetTransaction(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodTx] = fmt.Sprintf(`{
		"TransactionType":"Payment","Account":"%s","Destination":"%s","Amount":"1000000","Fee":"10",
		"Sequence":4,"hash":"%s","ledger_index":490,"date":2000,"validated":true,
		"meta":{"TransactionResult":"tesSUCCESS"},"status":"success"
	}`, addrA, addrB, txHash1)
	gw.responses[MethodLedgerClosed] = ledgerClosedJSON
	client := newTestClient(gw, nil)

	tx, err := client.GetTransaction(context.Background(), txHash1)
	require.NoError(t, err)

	assert.Equal(t, txHash1, tx.Hash)
	assert.Equal(t, uint64(10), tx.Confirmations)
	assert.Equal(t, "10", tx.Fee.String())
	assert.Equal(t, LedgerTime(2000), tx.Time)
	assert.Nil(t, tx.Account)
}

func TestGetTransaction_HeightFailure(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodTx] = `{"TransactionType":"Payment","meta":{"TransactionResult":"tesSUCCESS"},"status":"success"}`
	gw.errs[MethodLedgerClosed] = fmt.Errorf("%w: timeout", ErrRequestFailed)
	client := newTestClient(gw, nil)

	_, err := client.GetTransaction(context.Background(), txHash1)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestGetTransaction_NotAdaptable(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodTx] = `{"TransactionType":"TrustSet","Fee":"10","hash":"X","meta":{"TransactionResult":"tesSUCCESS"},"status":"success"}`
	gw.responses[MethodLedgerClosed] = ledgerClosedJSON
	client := newTestClient(gw, nil)

	_, err := client.GetTransaction(context.Background(), txHash1)
	assert.ErrorIs(t, err, ErrTransactionNotAdaptable)
}

func TestGetAddressBalance(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodAccountInfo] = fmt.Sprintf(`{"account_data":{"Account":"%s","Balance":"148446663","Sequence":3},"status":"success"}`, addrA)
	client := newTestClient(gw, nil)

	balance, err := client.GetAddressBalance(context.Background(), addrA)
	require.NoError(t, err)
	assert.Equal(t, "148446663", balance)
}

func TestGetAddressBalance_NotFound(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodAccountInfo] = `{"error":"actNotFound","error_message":"Account not found.","status":"error"}`
	client := newTestClient(gw, nil)

	_, err := client.GetAddressBalance(context.Background(), addrA)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, "e_request_failed", ErrorCode(err))
}

func TestGetAddressTransactions(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodAccountTx] = fmt.Sprintf(`{
		"account":"%[1]s",
		"transactions":[
			{"tx":{"TransactionType":"Payment","Account":"%[1]s","Destination":"%[2]s","Amount":"1000000","Fee":"12","hash":"%[3]s","ledger_index":490,"date":10},
			 "meta":{"TransactionResult":"tesSUCCESS"},"validated":true},
			{"tx":{"TransactionType":"Payment","Account":"%[2]s","Destination":"%[1]s","Amount":"250","Fee":"12","hash":"%[4]s","ledger_index":495,"date":20},
			 "meta":{"TransactionResult":"tesSUCCESS"},"validated":true},
			{"tx":{"TransactionType":"Payment","Account":"%[2]s","Destination":"%[1]s","Amount":{"currency":"USD","issuer":"%[2]s","value":"1"},"Fee":"12","hash":"%[5]s","ledger_index":496,"date":30},
			 "meta":{"TransactionResult":"tesSUCCESS"},"validated":true},
			{"tx":{"TransactionType":"AccountSet","Account":"%[1]s","Fee":"12","hash":"FF","ledger_index":497,"date":40},
			 "meta":{"TransactionResult":"tesSUCCESS"},"validated":true}
		],
		"status":"success"
	}`, addrA, addrB, txHash1, txHash2, txHash3)
	gw.responses[MethodLedgerClosed] = ledgerClosedJSON
	client := newTestClient(gw, nil)

	txs, err := client.GetAddressTransactions(context.Background(), addrA)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	sent := txs[txHash1]
	require.NotNil(t, sent)
	assert.Equal(t, "-1000000", sent.Balance.String())
	assert.Equal(t, uint64(10), sent.Confirmations)
	require.NotNil(t, sent.Account)
	assert.Equal(t, addrA, *sent.Account)

	received := txs[txHash2]
	require.NotNil(t, received)
	assert.Equal(t, "250", received.Balance.String())
	assert.Equal(t, uint64(5), received.Confirmations)

	assert.Equal(t, 1, gw.callCount(MethodLedgerClosed))
	assert.Equal(t, 1, gw.callCount(MethodAccountTx))
}

func TestIsAddressValid(t *testing.T) {
	client := newTestClient(newMockGateway(), nil)

	assert.True(t, client.IsAddressValid(addrA))
	assert.False(t, client.IsAddressValid("not-an-address"))
}

func TestClientCapabilities(t *testing.T) {
	client := newTestClient(newMockGateway(), nil)

	assert.False(t, client.HasMultipleOutputs())
	assert.Equal(t, 1, client.RequiredConfirmations())
}

// rpcCallCount reads brt_rpc_calls_total for method and status.
func rpcCallCount(t *testing.T, reg *prometheus.Registry, method, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "brt_rpc_calls_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["method"] == method && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestGetTransaction_FailureKeepsHeightCall(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodTx] = `{"error":"txnNotFound","status":"error"}`
	gw.responses[MethodLedgerClosed] = ledgerClosedJSON
	gw.delays[MethodLedgerClosed] = 50 * time.Millisecond

	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient(gw, fakeKeys{}, &fakeSigner{}, "test", metrics.NewMetrics(reg), logger)

	_, err := client.GetTransaction(context.Background(), txHash1)
	require.Error(t, err)

	assert.Equal(t, 1.0, rpcCallCount(t, reg, MethodTx, "error"))
	assert.Equal(t, 1.0, rpcCallCount(t, reg, MethodLedgerClosed, "success"))
	assert.Equal(t, 0.0, rpcCallCount(t, reg, MethodLedgerClosed, "error"))
}

func TestCall_CanceledIsNotAnError(t *testing.T) {
	gw := newMockGateway()
	gw.responses[MethodLedgerClosed] = ledgerClosedJSON
	gw.delays[MethodLedgerClosed] = time.Second

	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient(gw, fakeKeys{}, &fakeSigner{}, "test", metrics.NewMetrics(reg), logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetBlockNumber(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1.0, rpcCallCount(t, reg, MethodLedgerClosed, "canceled"))
	assert.Equal(t, 0.0, rpcCallCount(t, reg, MethodLedgerClosed, "error"))
}
