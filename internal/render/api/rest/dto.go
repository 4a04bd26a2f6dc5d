package rest

import (
	"time"
)

// RenderRequest accepts both the current field names and the ones used by the
// storefront front-end (stateId, userId).
type RenderRequest struct {
	DesignID   string `json:"designId"`
	StateID    string `json:"stateId"`
	OwnerID    string `json:"ownerId"`
	UserID     string `json:"userId"`
	OutputName string `json:"outputName,omitempty"`
	Format     string `json:"format,omitempty"`
	ColorSpace string `json:"colorSpace,omitempty"`
	DPI        *int   `json:"dpi,omitempty"`
}

type ArtifactInfo struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Size     int64  `json:"size"`
}

type OutcomeResponse struct {
	RunID     string         `json:"run_id"`
	JobID     string         `json:"job_id,omitempty"`
	Status    string         `json:"status"`
	Artifacts []ArtifactInfo `json:"artifacts,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	Links     Links          `json:"links"`
}

type Links struct {
	Self string `json:"self"`
}

type RequestInfo struct {
	DesignID   string `json:"design_id"`
	OwnerID    string `json:"owner_id"`
	OutputName string `json:"output_name"`
	Format     string `json:"format"`
	ColorSpace string `json:"color_space"`
	DPI        int    `json:"dpi"`
}

type GetRunResponse struct {
	RunID       string           `json:"run_id"`
	JobID       string           `json:"job_id,omitempty"`
	State       string           `json:"state"`
	Attempts    int              `json:"attempts"`
	Request     RequestInfo      `json:"request"`
	Outcome     *OutcomeResponse `json:"outcome,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

type ListRunsResponse struct {
	Runs       []RunSummary `json:"runs"`
	Total      int          `json:"total"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
	NextOffset *int         `json:"next_offset,omitempty"`
}

type RunSummary struct {
	RunID       string     `json:"run_id"`
	JobID       string     `json:"job_id,omitempty"`
	DesignID    string     `json:"design_id"`
	State       string     `json:"state"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ListArtifactsResponse struct {
	Pattern   string   `json:"pattern"`
	Artifacts []string `json:"artifacts"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Remote string `json:"remote,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
