package http

import (
	"encoding/json"
	"net/http"

	"splitsmart/internal/core"
	"splitsmart/internal/services"
)

// addExpenseRequest is the body of POST /api/groups/{group_id}/expenses. The shape of
// participants depends on split_type (see core.DecodePolicy).
type addExpenseRequest struct {
	Description  string          `json:"description"`
	TotalAmount  core.Money      `json:"total_amount"`
	PayerID      core.UserID     `json:"payer_id"`
	SplitType    string          `json:"split_type"`
	Participants json.RawMessage `json:"participants"`
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req addExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	kind, err := core.ParsePolicyKind(req.SplitType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	policy, err := core.DecodePolicy(kind, req.Participants)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.svc.Expenses.AddExpense(r.Context(), actor(r), pathVar(r, "group_id"), services.ExpenseInput{
		PayerID:     req.PayerID,
		Description: sanitizeInput(req.Description),
		Total:       req.TotalAmount,
		Policy:      policy,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newExpenseView(rec))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.Expenses.ListExpenses(r.Context(), actor(r), pathVar(r, "group_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]expenseView, 0, len(records))
	for _, rec := range records {
		out = append(out, newExpenseView(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Expenses.GetExpense(r.Context(), actor(r), pathVar(r, "group_id"), pathVar(r, "expense_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseView(rec))
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Settlements.Balances(r.Context(), actor(r), pathVar(r, "group_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSimplify(w http.ResponseWriter, r *http.Request) {
	plan, err := s.svc.Settlements.Simplify(r.Context(), actor(r), pathVar(r, "group_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleMySummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.svc.Settlements.Overview(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []core.GroupSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}
