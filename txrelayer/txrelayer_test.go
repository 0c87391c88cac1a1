package txrelayer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/umbracle/ethgo"
)

const (
	testAccount = "0x0000000000000000000000000000000000000abc"
	testTxnHash = "0x00000000000000000000000000000000000000000000000000000000000000aa"
)

// testNode answers the json-rpc calls of the relayer. The receipt becomes
// available after pendingPolls lookups.
type testNode struct {
	lock         sync.Mutex
	pendingPolls int
	status       string
	calls        map[string]int
}

func (n *testNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	n.lock.Lock()
	n.calls[req.Method]++
	polls := n.calls[req.Method]
	n.lock.Unlock()

	var result string

	switch req.Method {
	case "eth_accounts":
		result = fmt.Sprintf(`["%s"]`, testAccount)
	case "eth_sendTransaction":
		result = fmt.Sprintf(`"%s"`, testTxnHash)
	case "eth_getTransactionReceipt":
		if polls <= n.pendingPolls {
			result = "null"
		} else {
			result = fmt.Sprintf(`{
				"from": "%s",
				"transactionHash": "%s",
				"blockHash": "%s",
				"transactionIndex": "0x0",
				"blockNumber": "0x10",
				"gasUsed": "0x5208",
				"cumulativeGasUsed": "0x5208",
				"logsBloom": "0x%s",
				"status": "%s",
				"logs": []
			}`, testAccount, testTxnHash, testTxnHash, strings.Repeat("00", 256), n.status)
		}
	default:
		result = "null"
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
}

func (n *testNode) callCount(method string) int {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.calls[method]
}

func newTestRelayer(t *testing.T, node *testNode) TxRelayer {
	t.Helper()

	node.calls = make(map[string]int)

	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	relayer, err := NewTxRelayer(WithIPAddress(srv.URL), WithReceiptTimeout(time.Millisecond))
	require.NoError(t, err)

	return relayer
}

func TestTxRelayer_SendTransactionLocalWaitsForReceipt(t *testing.T) {
	t.Parallel()

	node := &testNode{pendingPolls: 3, status: "0x1"}
	relayer := newTestRelayer(t, node)

	to := ethgo.HexToAddress("0x0000000000000000000000000000000000000def")

	receipt, err := relayer.SendTransactionLocal(context.Background(), &ethgo.Transaction{To: &to})
	require.NoError(t, err)
	require.Equal(t, ethgo.HexToHash(testTxnHash), receipt.TransactionHash)
	require.Equal(t, uint64(0x10), receipt.BlockNumber)

	require.Equal(t, 1, node.callCount("eth_sendTransaction"))
	require.Equal(t, 4, node.callCount("eth_getTransactionReceipt"))
}

func TestTxRelayer_FailedReceipt(t *testing.T) {
	t.Parallel()

	relayer := newTestRelayer(t, &testNode{status: "0x0"})

	to := ethgo.HexToAddress("0x0000000000000000000000000000000000000def")

	receipt, err := relayer.SendTransactionLocal(context.Background(), &ethgo.Transaction{To: &to})
	require.ErrorIs(t, err, ErrTxnFailed)
	require.NotNil(t, receipt)
	require.Equal(t, uint64(0), receipt.Status)
}

func TestTxRelayer_ReceiptWaitCancelled(t *testing.T) {
	t.Parallel()

	node := &testNode{pendingPolls: numRetries + 1, status: "0x1"}
	relayer := newTestRelayer(t, node)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	to := ethgo.HexToAddress("0x0000000000000000000000000000000000000def")

	_, err := relayer.SendTransactionLocal(ctx, &ethgo.Transaction{To: &to})
	require.ErrorContains(t, err, "failed to get receipt of transaction")
}
