package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/csschan/agent-a2a-marketplace/pkg/taskTracker"
	"github.com/csschan/agent-a2a-marketplace/pkg/types"
	"github.com/csschan/agent-a2a-marketplace/pkg/util"
	"github.com/csschan/agent-a2a-marketplace/pkg/x402"
)

// taskView is the JSON projection of a ledger task. Zero-address workers
// and empty proof URIs render as null so clients can test presence.
type taskView struct {
	Id          uint64  `json:"id"`
	Poster      string  `json:"poster"`
	Worker      *string `json:"worker"`
	Description string  `json:"description"`
	RewardUSDC  string  `json:"rewardUSDC"`
	Status      string  `json:"status"`
	ProofURI    *string `json:"proofURI"`
	CreatedAt   string  `json:"createdAt"`
	Deadline    string  `json:"deadline"`
}

func newTaskView(task *types.Task) *taskView {
	view := &taskView{
		Id:          task.Id,
		Poster:      task.Poster.Hex(),
		Description: task.Description,
		RewardUSDC:  util.FormatUsdc(task.Reward),
		Status:      task.Status.String(),
		CreatedAt:   task.CreatedAt.UTC().Format(time.RFC3339),
		Deadline:    task.Deadline.UTC().Format(time.RFC3339),
	}
	if task.HasWorker() {
		worker := task.Worker.Hex()
		view.Worker = &worker
	}
	if task.ProofURI != "" {
		proofURI := task.ProofURI
		view.ProofURI = &proofURI
	}
	return view
}

// writeTrackerError maps lifecycle failures onto the HTTP surface. Local
// validation rejects are the client's fault; everything past the ledger
// boundary, including guard violations the ledger enforces, is a 500.
func (s *Server) writeTrackerError(w http.ResponseWriter, err error) {
	if errors.Is(err, taskTracker.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, total, err := s.taskTracker.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]*taskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, newTaskView(task))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total": total,
		"tasks": views,
	})
}

func (s *Server) handleListOpenTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.taskTracker.ListByStatus(r.Context(), types.TaskStatusOpen)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]*taskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, newTaskView(task))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(views),
		"tasks": views,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, newTaskView(task))
}

type postTaskRequest struct {
	Description   string      `json:"description"`
	RewardUSDC    json.Number `json:"rewardUSDC"`
	DeadlineHours json.Number `json:"deadlineHours"`
}

func (s *Server) handlePostTask(w http.ResponseWriter, r *http.Request) {
	var req postTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Description == "" || req.RewardUSDC == "" {
		writeError(w, http.StatusBadRequest, "description and rewardUSDC are required")
		return
	}

	reward, err := util.UsdcFromFloatString(req.RewardUSDC.String())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deadlineHours := float64(24)
	if req.DeadlineHours != "" {
		hours, err := req.DeadlineHours.Float64()
		if err != nil || hours <= 0 {
			writeError(w, http.StatusBadRequest, "deadlineHours must be a positive number")
			return
		}
		deadlineHours = hours
	}
	deadline := time.Now().Add(time.Duration(deadlineHours * float64(time.Hour)))

	posted, err := s.taskTracker.PostTask(r.Context(), req.Description, reward, deadline)
	if err != nil {
		s.logger.Error("failed to post task", zap.Error(err))
		s.writeTrackerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"taskId":          posted.TaskId,
		"transactionHash": posted.TransactionHash.Hex(),
		"explorerUrl":     s.explorerTxUrl(posted.TransactionHash.Hex()),
	})
}

func (s *Server) handleAcceptTask(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "accept", s.taskTracker.AcceptTask)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "complete", s.taskTracker.CompleteTask)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, "cancel", s.taskTracker.CancelTask)
}

type submitProofRequest struct {
	ProofURI string `json:"proofURI"`
}

func (s *Server) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	taskId, err := taskIdFromURL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var req submitProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	result, err := s.taskTracker.SubmitProof(r.Context(), taskId, req.ProofURI)
	if err != nil {
		s.logger.Error("failed to submit proof",
			zap.Uint64("taskId", taskId),
			zap.Error(err),
		)
		s.writeTrackerError(w, err)
		return
	}
	s.writeTransition(w, result)
}

type transitionFunc func(ctx context.Context, taskId uint64) (*taskTracker.TransitionResult, error)

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, action string, transition transitionFunc) {
	taskId, err := taskIdFromURL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid task ID")
		return
	}

	result, err := transition(r.Context(), taskId)
	if err != nil {
		s.logger.Error("task transition failed",
			zap.String("action", action),
			zap.Uint64("taskId", taskId),
			zap.Error(err),
		)
		s.writeTrackerError(w, err)
		return
	}
	s.writeTransition(w, result)
}

func (s *Server) writeTransition(w http.ResponseWriter, result *taskTracker.TransitionResult) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"taskId":          result.TaskId,
		"transactionHash": result.TransactionHash.Hex(),
		"explorerUrl":     s.explorerTxUrl(result.TransactionHash.Hex()),
	})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	signer := s.contractCaller.SignerAddress()
	ethBalance, err := s.contractCaller.EthBalanceOf(r.Context(), signer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	usdcBalance, err := s.contractCaller.UsdcBalanceOf(r.Context(), signer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	earnings, err := s.contractCaller.AgentEarnings(r.Context(), signer)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":       signer.Hex(),
		"ethBalance":    util.FormatUnits(ethBalance, 18),
		"usdcBalance":   util.FormatUsdc(usdcBalance),
		"totalEarnings": util.FormatUsdc(earnings),
	})
}

func (s *Server) handleAgentEarnings(w http.ResponseWriter, r *http.Request) {
	rawAgent := chi.URLParam(r, "address")
	agent, err := x402.ParseAgentAddress(rawAgent)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid agent address")
		return
	}

	earnings, err := s.contractCaller.AgentEarnings(r.Context(), agent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	usdcBalance, err := s.contractCaller.UsdcBalanceOf(r.Context(), agent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":            agent.Hex(),
		"totalEarnings":      util.FormatUsdc(earnings),
		"currentUSDCBalance": util.FormatUsdc(usdcBalance),
	})
}
