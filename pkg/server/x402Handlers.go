package server

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/csschan/agent-a2a-marketplace/pkg/contractCaller"
	"github.com/csschan/agent-a2a-marketplace/pkg/types"
	"github.com/csschan/agent-a2a-marketplace/pkg/util"
	"github.com/csschan/agent-a2a-marketplace/pkg/x402"
)

// handlePricing reports the static tier prices alongside the ledger's own
// configurable fee values, so clients can see both the quoted and the
// enforced numbers.
func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	defaultAccessFee, err := s.contractCaller.DefaultAccessFee(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	apiCallCost, err := s.contractCaller.ApiCallCost(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	pricing := map[string]string{}
	for class, price := range s.paymentGate.Pricing() {
		pricing[string(class)] = util.FormatUsdc(price)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"protocol": "x402",
		"currency": "USDC",
		"pricing":  pricing,
		"contract": map[string]string{
			"defaultAccessFee": util.FormatUsdc(defaultAccessFee),
			"apiCallCost":      util.FormatUsdc(apiCallCost),
		},
		"payment_address": s.contractCaller.MarketplaceAddress().Hex(),
		"token_address":   s.contractCaller.UsdcAddress().Hex(),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	agent, err := x402.ParseAgentAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid agent address")
		return
	}

	snapshot, err := s.paymentGate.Balances().Snapshot(r.Context(), agent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	walletUsdc, err := s.contractCaller.UsdcBalanceOf(r.Context(), agent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agent":          agent.Hex(),
		"balance_usdc":   util.FormatUsdc(snapshot.PrepaidBalance),
		"wallet_usdc":    util.FormatUsdc(walletUsdc),
		"api_calls_made": snapshot.ApiCallCount,
		"deposit_instructions": map[string]string{
			"method":   "Call depositBalance(amount) on the marketplace contract",
			"contract": s.contractCaller.MarketplaceAddress().Hex(),
			"note":     "Approve USDC first, then deposit",
		},
	})
}

type amountRequest struct {
	AmountUSDC json.Number `json:"amount_usdc"`
}

func (req *amountRequest) parse() (string, bool) {
	if req.AmountUSDC == "" {
		return "", false
	}
	return req.AmountUSDC.String(), true
}

// handleDeposit builds the approve and depositBalance calldata for the
// agent to execute with its own wallet. The service never moves agent
// funds itself.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	raw, ok := req.parse()
	if !ok {
		writeError(w, http.StatusBadRequest, "amount_usdc is required")
		return
	}

	amount, err := util.UsdcFromFloatString(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	approve, err := s.contractCaller.EncodeApproveCalldata(amount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	deposit, err := s.contractCaller.EncodeDepositCalldata(amount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Execute these transactions with your own wallet, in order",
		"amount_usdc":  util.FormatUsdc(amount),
		"transactions": []interface{}{unsignedTxView(approve), unsignedTxView(deposit)},
	})
}

// handleWithdraw builds the withdrawBalance calldata for the agent.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	raw, ok := req.parse()
	if !ok {
		writeError(w, http.StatusBadRequest, "amount_usdc is required")
		return
	}

	amount, err := util.UsdcFromFloatString(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	withdraw, err := s.contractCaller.EncodeWithdrawCalldata(amount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Execute this transaction with your own wallet",
		"amount_usdc":  util.FormatUsdc(amount),
		"transactions": []interface{}{unsignedTxView(withdraw)},
	})
}

// handleBulkTasks returns every task in one charged query. The charge has
// already cleared by the time this handler runs.
func (s *Server) handleBulkTasks(w http.ResponseWriter, r *http.Request) {
	tasks, total, err := s.taskTracker.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	byStatus := map[string]int{}
	views := make([]*taskView, 0, len(tasks))
	for _, task := range tasks {
		byStatus[task.Status.String()]++
		views = append(views, newTaskView(task))
	}

	addPaymentHeaders(w, authorizationFromContext(r.Context()))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":     total,
		"by_status": byStatus,
		"tasks":     views,
	})
}

// handlePremiumTask returns the full task detail view for an agent that
// has purchased access. The access guard runs as middleware.
func (s *Server) handlePremiumTask(w http.ResponseWriter, r *http.Request) {
	taskId, err := taskIdFromURL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	task, err := s.taskTracker.GetTask(r.Context(), taskId)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var posterStats *types.AgentStats
	if stats, err := s.contractCaller.GetAgentStats(r.Context(), task.Poster); err == nil {
		posterStats = stats
	} else {
		s.logger.Warn("failed to read poster stats for premium view",
			zap.Uint64("taskId", taskId),
			zap.Error(err),
		)
	}

	accessFee, err := s.paymentGate.Pricing().PriceFor(x402.PriceClassPremiumTaskAccess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	accessInfo := map[string]interface{}{
		"access_granted": true,
	}
	var remainingBalance *big.Int
	if agent, ok := agentFromContext(r.Context()); ok {
		accessInfo["agent"] = agent.Hex()
		if balance, err := s.contractCaller.GetBalance(r.Context(), agent); err == nil {
			remainingBalance = balance
			accessInfo["remaining_balance_usdc"] = util.FormatUsdc(balance)
		} else {
			s.logger.Warn("failed to read balance for premium view",
				zap.String("agent", agent.Hex()),
				zap.Error(err),
			)
		}
	}

	payload := map[string]interface{}{
		"access":      "premium",
		"task":        newTaskView(task),
		"reward_raw":  task.Reward.String(),
		"access_info": accessInfo,
	}
	if posterStats != nil {
		payload["poster_stats"] = map[string]interface{}{
			"earningsUSDC":   util.FormatUsdc(posterStats.TotalEarnings),
			"tasksCompleted": posterStats.TasksCompleted,
		}
	}

	addPaymentHeaders(w, &x402.AuthorizationResult{
		RequiredAmount:   accessFee,
		RemainingBalance: remainingBalance,
	})
	writeJSON(w, http.StatusOK, payload)
}

// handlePurchaseAccess builds the purchaseTaskAccess calldata. The grant
// lands on the ledger when the agent executes it; this endpoint never
// spends on the agent's behalf.
func (s *Server) handlePurchaseAccess(w http.ResponseWriter, r *http.Request) {
	agent, err := x402.ParseAgentAddress(agentFromRequest(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing agent address")
		return
	}

	taskId, err := taskIdFromURL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	quote, err := s.accessResolver.Quote(r.Context(), taskId, agent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	purchase, err := s.accessResolver.PurchaseCalldata(taskId)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":              "Execute this transaction with your own wallet to purchase access",
		"task_id":              taskId,
		"access_fee_usdc":      util.FormatUsdc(quote.AccessFee),
		"current_balance_usdc": util.FormatUsdc(quote.CurrentBalance),
		"transactions":         []interface{}{unsignedTxView(purchase)},
	})
}

// handleAnalytics is a charged per-agent activity report.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	agent, err := x402.ParseAgentAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid agent address")
		return
	}

	stats, err := s.contractCaller.GetAgentStats(r.Context(), agent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	snapshot, err := s.paymentGate.Balances().Snapshot(r.Context(), agent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	addPaymentHeaders(w, authorizationFromContext(r.Context()))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agent":           agent.Hex(),
		"earnings_usdc":   util.FormatUsdc(stats.TotalEarnings),
		"tasks_completed": stats.TasksCompleted,
		"balance_usdc":    util.FormatUsdc(snapshot.PrepaidBalance),
		"api_calls_made":  snapshot.ApiCallCount,
	})
}

func unsignedTxView(tx *contractCaller.UnsignedTransaction) map[string]interface{} {
	return map[string]interface{}{
		"to":          tx.To.Hex(),
		"data":        hexutil.Encode(tx.Data),
		"description": tx.Description,
	}
}
