package server

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/csschan/agent-a2a-marketplace/pkg/util"
	"github.com/csschan/agent-a2a-marketplace/pkg/x402"
)

type contextKey string

const (
	contextKeyAuthorization contextKey = "x402Authorization"
	contextKeyAgent         contextKey = "x402Agent"
)

// agentFromRequest resolves the requesting agent identity from the
// X-Agent-Address header, falling back to the agent query parameter.
func agentFromRequest(r *http.Request) string {
	if agent := r.Header.Get("X-Agent-Address"); agent != "" {
		return agent
	}
	return r.URL.Query().Get("agent")
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := uuid.New().String()
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("requestId", requestId),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remoteAddr", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// requirePayment gates a handler behind an x402 charge of the given price
// class. On success the authorization result is stored on the request
// context; on insufficient balance the request is answered with the
// structured 402 outcome.
func (s *Server) requirePayment(class x402.PriceClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawAgent := agentFromRequest(r)
			if rawAgent == "" {
				writeErrorWithHint(w, http.StatusBadRequest,
					"Invalid or missing agent address",
					"Include X-Agent-Address header or ?agent=0x... query parameter")
				return
			}

			result, err := s.paymentGate.Authorize(r.Context(), rawAgent, class)
			if err != nil {
				if x402.IsInvalidAgent(err) {
					writeErrorWithHint(w, http.StatusBadRequest,
						"Invalid or missing agent address",
						"Include X-Agent-Address header or ?agent=0x... query parameter")
					return
				}
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}

			switch result.Outcome {
			case x402.OutcomePaymentRequired:
				s.writePaymentRequired(w, result)
				return
			case x402.OutcomeChargeFailed:
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"error":   "Payment processing failed",
					"message": "Unable to charge your account",
				})
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyAuthorization, result)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireTaskAccess gates a handler behind a purchased per-task access
// grant, independent of the generic balance gate.
func (s *Server) requireTaskAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawAgent := agentFromRequest(r)
		agent, err := x402.ParseAgentAddress(rawAgent)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid or missing agent address")
			return
		}

		taskId, err := taskIdFromURL(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Task ID required")
			return
		}

		hasAccess, err := s.accessResolver.HasAccess(r.Context(), taskId, agent)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if !hasAccess {
			quote, err := s.accessResolver.Quote(r.Context(), taskId, agent)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
				"error":                "Task Access Required",
				"message":              "Purchase access to view full task details",
				"task_id":              taskId,
				"access_fee_usdc":      util.FormatUsdc(quote.AccessFee),
				"current_balance_usdc": util.FormatUsdc(quote.CurrentBalance),
				"purchase_endpoint":    purchaseEndpoint(taskId),
				"instructions":         "Call purchaseTaskAccess() or use the purchase endpoint",
			})
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyAgent, agent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writePaymentRequired renders the structured 402 outcome, carrying the
// machine-readable payment headers both in the response headers and in
// the body for clients that only read one of the two.
func (s *Server) writePaymentRequired(w http.ResponseWriter, result *x402.AuthorizationResult) {
	required := util.FormatUsdc(result.RequiredAmount)
	headers := map[string]string{
		"X-Payment-Required": "true",
		"X-Required-Amount":  required,
		"X-Payment-Address":  s.contractCaller.MarketplaceAddress().Hex(),
		"X-Payment-Token":    s.contractCaller.UsdcAddress().Hex(),
		"X-Accept-Payment":   "USDC",
	}
	for name, value := range headers {
		w.Header().Set(name, value)
	}

	writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
		"error":                "Payment Required",
		"message":              "Insufficient balance for this operation",
		"required_usdc":        required,
		"current_balance_usdc": util.FormatUsdc(result.CurrentBalance),
		"deficit_usdc":         util.FormatUsdc(result.Deficit),
		"deposit_endpoint":     "/api/x402/deposit",
		"instructions":         "Deposit USDC using the depositBalance() function",
		"headers":              headers,
	})
}

// addPaymentHeaders annotates a successful premium response.
func addPaymentHeaders(w http.ResponseWriter, result *x402.AuthorizationResult) {
	w.Header().Set("X-Payment-Protocol", "x402")
	w.Header().Set("X-Accept-Payment", "USDC")
	if result == nil {
		return
	}
	if result.RequiredAmount != nil {
		w.Header().Set("X-Call-Cost", util.FormatUsdc(result.RequiredAmount))
	}
	if result.RemainingBalance != nil {
		w.Header().Set("X-Agent-Balance", util.FormatUsdc(result.RemainingBalance))
		w.Header().Set("X-Remaining-Balance", util.FormatUsdc(result.RemainingBalance))
	}
}

func authorizationFromContext(ctx context.Context) *x402.AuthorizationResult {
	result, _ := ctx.Value(contextKeyAuthorization).(*x402.AuthorizationResult)
	return result
}

func agentFromContext(ctx context.Context) (common.Address, bool) {
	agent, ok := ctx.Value(contextKeyAgent).(common.Address)
	return agent, ok
}
