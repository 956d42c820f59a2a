package http

import (
	"time"

	"splitsmart/internal/core"
)

// JSON shapes returned by the API.
type (
	userView struct {
		ID    core.UserID `json:"id"`
		Email string      `json:"email"`
		Name  string      `json:"name"`
	}

	groupView struct {
		ID      string      `json:"id"`
		Name    string      `json:"name"`
		AdminID core.UserID `json:"admin_id"`
	}

	memberView struct {
		ID   core.UserID `json:"id"`
		Name string      `json:"name"`
		Role core.Role   `json:"role"`
		Tags []string    `json:"tags"`
	}

	groupDetailView struct {
		groupView
		Members []memberView `json:"members"`
	}

	shareView struct {
		UserID core.UserID `json:"user_id"`
		Amount core.Money  `json:"amount"`
	}

	expenseView struct {
		ID             string      `json:"id"`
		GroupID        string      `json:"group_id"`
		PayerID        core.UserID `json:"payer_id"`
		Description    string      `json:"description"`
		Amount         core.Money  `json:"amount"`
		SplitType      string      `json:"split_type"`
		PreferenceTags []string    `json:"preference_tags,omitempty"`
		CreatedAt      time.Time   `json:"created_at"`
		Shares         []shareView `json:"shares"`
	}
)

func newUserView(u core.User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name}
}

func newGroupView(g core.Group) groupView {
	return groupView{ID: g.ID, Name: g.Name, AdminID: g.AdminID}
}

func newMemberView(m core.Member) memberView {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return memberView{ID: m.UserID, Name: m.Name, Role: m.Role, Tags: tags}
}

func newExpenseView(r core.ExpenseRecord) expenseView {
	shares := make([]shareView, 0, len(r.Shares))
	for _, s := range r.Shares {
		shares = append(shares, shareView{UserID: s.UserID, Amount: s.Amount})
	}
	return expenseView{
		ID:             r.ID,
		GroupID:        r.GroupID,
		PayerID:        r.PayerID,
		Description:    r.Description,
		Amount:         r.Total,
		SplitType:      r.Policy.String(),
		PreferenceTags: r.PreferenceTags,
		CreatedAt:      r.CreatedAt,
		Shares:         shares,
	}
}
