package api

import (
	"database/sql"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// handleCreateProject implements POST /api/safeharbor/projects.
func (d *Dependencies) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectReq
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name is required"})
		return
	}

	p, fullKey, err := d.Store.CreateProject(r.Context(), req.Name)
	if err != nil {
		d.Logger.Error("create project failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to create project"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateProjectResp{
		ID:           p.ID,
		Name:         p.Name,
		APIKey:       fullKey,
		APIKeyPrefix: p.APIKeyPrefix,
		CreatedAt:    p.CreatedAt,
	})
}

// handleListProjects implements GET /api/safeharbor/projects.
func (d *Dependencies) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := d.Store.ListProjects(r.Context())
	if err != nil {
		d.Logger.Error("list projects failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list projects"})
		return
	}

	resp := make([]ProjectResp, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, ProjectResp{
			ID:           p.ID,
			Name:         p.Name,
			APIKeyPrefix: p.APIKeyPrefix,
			CreatedAt:    p.CreatedAt,
			UpdatedAt:    p.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetProject implements GET /api/safeharbor/projects/{project_id}.
func (d *Dependencies) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("project_id")
	p, err := d.Store.GetProject(r.Context(), id)
	if err != nil {
		d.Logger.Error("get project failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to get project"})
		return
	}
	if p == nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Project not found"})
		return
	}

	writeJSON(w, http.StatusOK, ProjectResp{
		ID:           p.ID,
		Name:         p.Name,
		APIKeyPrefix: p.APIKeyPrefix,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	})
}

// handleDeleteProject implements DELETE /api/safeharbor/projects/{project_id}.
func (d *Dependencies) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("project_id")
	if err := d.Store.DeleteProject(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "Project not found"})
			return
		}
		d.Logger.Error("delete project failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to delete project"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRotateKey implements POST /api/safeharbor/projects/{project_id}/rotate-key.
func (d *Dependencies) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("project_id")
	p, fullKey, err := d.Store.RotateAPIKey(r.Context(), id)
	if err != nil {
		d.Logger.Error("rotate key failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to rotate API key"})
		return
	}

	writeJSON(w, http.StatusOK, RotateKeyResp{
		APIKey:       fullKey,
		APIKeyPrefix: p.APIKeyPrefix,
	})
}
