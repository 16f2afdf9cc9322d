package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csschan/agent-a2a-marketplace/internal/testUtils"
	"github.com/csschan/agent-a2a-marketplace/pkg/config"
	"github.com/csschan/agent-a2a-marketplace/pkg/contracts"
	"github.com/csschan/agent-a2a-marketplace/pkg/logger"
	"github.com/csschan/agent-a2a-marketplace/pkg/taskTracker"
	"github.com/csschan/agent-a2a-marketplace/pkg/transactionLogParser"
	"github.com/csschan/agent-a2a-marketplace/pkg/types"
	"github.com/csschan/agent-a2a-marketplace/pkg/x402"
)

const testAgent = "0x4444444444444444444444444444444444444444"

func newTestServer(t *testing.T) (*Server, *testUtils.FakeContractCaller) {
	t.Helper()
	fake := testUtils.NewFakeContractCaller()
	log := logger.NewNoopLogger()

	marketplaceAbi, err := contracts.GetContractAbi(contracts.ContractName_AgentMarketplace)
	require.NoError(t, err)
	logParser := transactionLogParser.NewTransactionLogParser(marketplaceAbi, log)

	tracker := taskTracker.NewTaskTracker(fake, logParser, log)
	pricing := x402.DefaultPricingTable()
	gate := x402.NewPaymentGate(fake, pricing, log)
	resolver := x402.NewAccessResolver(fake, pricing, log)

	srv := NewServer(&ServerConfig{
		Port:    3000,
		ChainId: config.ChainId_BaseSepolia,
	}, fake, tracker, gate, resolver, log)
	return srv, fake
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(raw)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func seedOpenTask(fake *testUtils.FakeContractCaller, id uint64) {
	fake.SeedTask(&types.Task{
		Id:          id,
		Poster:      common.HexToAddress(testUtils.FakeSignerAddress),
		Description: "label training data",
		Reward:      big.NewInt(10000000),
		Status:      types.TaskStatusOpen,
		CreatedAt:   time.Now(),
		Deadline:    time.Now().Add(24 * time.Hour),
	})
}

func TestPing(t *testing.T) {
	srv, _ := newTestServer(t)
	recorder := doRequest(t, srv, http.MethodGet, "/ping", nil, nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, true, body["pong"])
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	recorder := doRequest(t, srv, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Base Sepolia", body["network"])
}

func TestPostTaskEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	recorder := doRequest(t, srv, http.MethodPost, "/api/tasks", map[string]interface{}{
		"description": "label training data",
		"rewardUSDC":  "10",
	}, nil)

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	body := decodeBody(t, recorder)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["taskId"])
	assert.NotEmpty(t, body["transactionHash"])
	assert.Contains(t, body["explorerUrl"], "sepolia.basescan.org/tx/")
}

func TestPostTaskValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	recorder := doRequest(t, srv, http.MethodPost, "/api/tasks", map[string]interface{}{
		"rewardUSDC": "10",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doRequest(t, srv, http.MethodPost, "/api/tasks", map[string]interface{}{
		"description": "task",
		"rewardUSDC":  "-1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetTaskRendering(t *testing.T) {
	srv, fake := newTestServer(t)
	seedOpenTask(fake, 1)

	recorder := doRequest(t, srv, http.MethodGet, "/api/tasks/1", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	body := decodeBody(t, recorder)
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "10.0", body["rewardUSDC"])
	assert.Equal(t, "Open", body["status"])
	// Unassigned worker and absent proof render as null, not zero values.
	assert.Nil(t, body["worker"])
	assert.Nil(t, body["proofURI"])
}

func TestGetTaskReadFailure(t *testing.T) {
	srv, _ := newTestServer(t)
	recorder := doRequest(t, srv, http.MethodGet, "/api/tasks/99", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestAcceptThenInvalidTransition(t *testing.T) {
	srv, fake := newTestServer(t)
	seedOpenTask(fake, 1)

	recorder := doRequest(t, srv, http.MethodPost, "/api/tasks/1/accept", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	// Accepting again violates the lifecycle; the ledger guard surfaces
	// as a server-side failure, not a client error.
	recorder = doRequest(t, srv, http.MethodPost, "/api/tasks/1/accept", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestListOpenTasks(t *testing.T) {
	srv, fake := newTestServer(t)
	seedOpenTask(fake, 1)
	fake.SeedTask(&types.Task{
		Id:     2,
		Poster: common.HexToAddress(testUtils.FakeSignerAddress),
		Reward: big.NewInt(1000000),
		Status: types.TaskStatusCompleted,
	})

	recorder := doRequest(t, srv, http.MethodGet, "/api/tasks/status/open", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, float64(1), body["count"])
}

func TestBulkQueryRequiresPayment(t *testing.T) {
	srv, fake := newTestServer(t)
	seedOpenTask(fake, 1)

	// No agent identity at all.
	recorder := doRequest(t, srv, http.MethodGet, "/api/x402/tasks/bulk", nil, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// Underfunded agent gets the structured 402.
	agent := common.HexToAddress(testAgent)
	fake.SeedBalance(agent, big.NewInt(150000))
	recorder = doRequest(t, srv, http.MethodGet, "/api/x402/tasks/bulk", nil, map[string]string{
		"X-Agent-Address": testAgent,
	})
	require.Equal(t, http.StatusPaymentRequired, recorder.Code)
	assert.Equal(t, "true", recorder.Header().Get("X-Payment-Required"))
	assert.Equal(t, "0.2", recorder.Header().Get("X-Required-Amount"))

	body := decodeBody(t, recorder)
	assert.Equal(t, "Payment Required", body["error"])
	assert.Equal(t, "0.2", body["required_usdc"])
	assert.Equal(t, "0.15", body["current_balance_usdc"])
	assert.Equal(t, "0.05", body["deficit_usdc"])
	assert.Equal(t, "/api/x402/deposit", body["deposit_endpoint"])
}

func TestBulkQueryCharges(t *testing.T) {
	srv, fake := newTestServer(t)
	seedOpenTask(fake, 1)
	agent := common.HexToAddress(testAgent)
	fake.SeedBalance(agent, big.NewInt(500000))

	recorder := doRequest(t, srv, http.MethodGet, "/api/x402/tasks/bulk", nil, map[string]string{
		"X-Agent-Address": testAgent,
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, "x402", recorder.Header().Get("X-Payment-Protocol"))
	assert.Equal(t, "0.3", recorder.Header().Get("X-Remaining-Balance"))

	body := decodeBody(t, recorder)
	assert.Equal(t, float64(1), body["total"])

	// The charge landed on the ledger.
	balance, err := fake.GetBalance(context.Background(), agent)
	require.NoError(t, err)
	assert.Equal(t, int64(300000), balance.Int64())
}

func TestPremiumTaskAccessDeniedThenGranted(t *testing.T) {
	srv, fake := newTestServer(t)
	seedOpenTask(fake, 1)
	agent := common.HexToAddress(testAgent)
	fake.SeedBalance(agent, big.NewInt(500000))

	recorder := doRequest(t, srv, http.MethodGet, "/api/x402/tasks/1/premium", nil, map[string]string{
		"X-Agent-Address": testAgent,
	})
	require.Equal(t, http.StatusPaymentRequired, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "Task Access Required", body["error"])
	assert.Equal(t, "0.1", body["access_fee_usdc"])
	assert.Equal(t, "/api/x402/tasks/1/purchase-access", body["purchase_endpoint"])

	fake.GrantAccess(1, agent)
	recorder = doRequest(t, srv, http.MethodGet, "/api/x402/tasks/1/premium", nil, map[string]string{
		"X-Agent-Address": testAgent,
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	body = decodeBody(t, recorder)
	assert.Equal(t, "premium", body["access"])
	accessInfo, ok := body["access_info"].(map[string]interface{})
	require.True(t, ok, "granted response must carry access_info")
	assert.Equal(t, true, accessInfo["access_granted"])
	assert.Equal(t, agent.Hex(), accessInfo["agent"])
	assert.Equal(t, "0.5", accessInfo["remaining_balance_usdc"])
	assert.Equal(t, "x402", recorder.Header().Get("X-Payment-Protocol"))
	assert.Equal(t, "USDC", recorder.Header().Get("X-Accept-Payment"))
	assert.Equal(t, "0.1", recorder.Header().Get("X-Call-Cost"))
}

func TestBalanceEndpoint(t *testing.T) {
	srv, fake := newTestServer(t)
	agent := common.HexToAddress(testAgent)
	fake.SeedBalance(agent, big.NewInt(1230000))
	fake.SeedWalletUsdc(agent, big.NewInt(7500000))

	recorder := doRequest(t, srv, http.MethodGet, "/api/x402/balance/"+testAgent, nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "1.23", body["balance_usdc"])
	assert.Equal(t, "7.5", body["wallet_usdc"])
	instructions, ok := body["deposit_instructions"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(testUtils.FakeMarketplaceAddress).Hex(), instructions["contract"])
}

func TestDepositReturnsCalldata(t *testing.T) {
	srv, _ := newTestServer(t)

	recorder := doRequest(t, srv, http.MethodPost, "/api/x402/deposit", map[string]interface{}{
		"amount_usdc": "5",
	}, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	body := decodeBody(t, recorder)
	assert.Equal(t, "5.0", body["amount_usdc"])
	transactions, ok := body["transactions"].([]interface{})
	require.True(t, ok)
	// Approve first, then deposit.
	assert.Len(t, transactions, 2)

	recorder = doRequest(t, srv, http.MethodPost, "/api/x402/deposit", map[string]interface{}{}, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAnalyticsCharged(t *testing.T) {
	srv, fake := newTestServer(t)
	agent := common.HexToAddress(testAgent)
	fake.SeedBalance(agent, big.NewInt(50000))
	fake.SeedStats(&types.AgentStats{
		Agent:          agent,
		TotalEarnings:  big.NewInt(9500000),
		TasksCompleted: 3,
	})

	recorder := doRequest(t, srv, http.MethodGet, "/api/x402/analytics/"+testAgent, nil, map[string]string{
		"X-Agent-Address": testAgent,
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	body := decodeBody(t, recorder)
	assert.Equal(t, "9.5", body["earnings_usdc"])
	assert.Equal(t, float64(3), body["tasks_completed"])
	// The apiCall fee was deducted before the handler ran.
	assert.Equal(t, "0.04", body["balance_usdc"])
}

func TestAgentEarnings(t *testing.T) {
	srv, fake := newTestServer(t)
	agent := common.HexToAddress(testAgent)
	fake.SeedStats(&types.AgentStats{
		Agent:          agent,
		TotalEarnings:  big.NewInt(2500000),
		TasksCompleted: 1,
	})

	recorder := doRequest(t, srv, http.MethodGet, "/api/agent/"+testAgent+"/earnings", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "2.5", body["totalEarnings"])

	recorder = doRequest(t, srv, http.MethodGet, "/api/agent/nope/earnings", nil, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPricingEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	recorder := doRequest(t, srv, http.MethodGet, "/api/x402/pricing", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	body := decodeBody(t, recorder)
	assert.Equal(t, "x402", body["protocol"])
	pricing, ok := body["pricing"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "0.01", pricing["apiCall"])
	assert.Equal(t, "0.1", pricing["premiumTaskAccess"])
	assert.Equal(t, "0.2", pricing["bulkQuery"])
}
