package http

import (
	"net/http"

	"splitsmart/internal/core"
	"splitsmart/internal/services"
)

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	g, err := s.svc.Groups.CreateGroup(r.Context(), actor(r), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newGroupView(g))
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.svc.Groups.ListGroups(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]groupView, 0, len(groups))
	for _, g := range groups {
		out = append(out, newGroupView(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.Groups.GetGroup(r.Context(), actor(r), pathVar(r, "group_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	members := make([]memberView, 0, len(detail.Members))
	for _, m := range detail.Members {
		members = append(members, newMemberView(m))
	}
	writeJSON(w, http.StatusOK, groupDetailView{groupView: newGroupView(detail.Group), Members: members})
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string   `json:"email"`
		Role  string   `json:"role"`
		Tags  []string `json:"tags"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	m, err := s.svc.Groups.AddMember(r.Context(), actor(r), pathVar(r, "group_id"), services.AddMemberInput{
		Email: req.Email,
		Role:  core.Role(req.Role),
		Tags:  req.Tags,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMemberView(m))
}

func (s *Server) handleSetMemberTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	m, err := s.svc.Groups.SetMemberTags(r.Context(), actor(r), pathVar(r, "group_id"), core.UserID(pathVar(r, "user_id")), req.Tags)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMemberView(m))
}
