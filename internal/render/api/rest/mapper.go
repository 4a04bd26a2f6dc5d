package rest

import (
	"fmt"
	"net/http"

	"github.com/nemanja-m/ccrender/internal/render/core"
)

const (
	DefaultFormat     = core.FormatPDF
	DefaultColorSpace = core.ColorSpaceCMYK
	DefaultDPI        = 300
)

// statusClientClosedRequest is the non-standard status used when the caller went away.
const statusClientClosedRequest = 499

func (req *RenderRequest) ToJobRequest() core.JobRequest {
	return core.JobRequest{
		DesignID:   firstNonEmpty(req.DesignID, req.StateID),
		OwnerID:    firstNonEmpty(req.OwnerID, req.UserID),
		OutputName: req.OutputName,
		Format: func() core.Format {
			if req.Format != "" {
				return core.Format(req.Format)
			}
			return DefaultFormat
		}(),
		ColorSpace: func() core.ColorSpace {
			if req.ColorSpace != "" {
				return core.ColorSpace(req.ColorSpace)
			}
			return DefaultColorSpace
		}(),
		DPI: func() int {
			if req.DPI != nil {
				return *req.DPI
			}
			return DefaultDPI
		}(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func ToOutcomeResponse(o core.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		RunID:  o.RunID.String(),
		JobID:  o.JobID,
		Status: string(o.Kind),
		Links: Links{
			Self: fmt.Sprintf("/api/renders/%s", o.RunID),
		},
	}
	if o.Succeeded() {
		resp.Artifacts = make([]ArtifactInfo, 0, len(o.Artifacts))
		for _, a := range o.Artifacts {
			resp.Artifacts = append(resp.Artifacts, ArtifactInfo{
				Name:     a.Name,
				Location: a.Location,
				Size:     a.Size,
			})
		}
		return resp
	}
	resp.Reason = string(o.Reason)
	resp.Detail = o.Detail
	return resp
}

// HTTPStatus maps an outcome onto the response status of POST /api/renders.
func HTTPStatus(o core.Outcome) int {
	if o.Succeeded() {
		return http.StatusOK
	}
	switch o.Reason {
	case core.ReasonInvalidRequest:
		return http.StatusBadRequest
	case core.ReasonTimeout:
		return http.StatusGatewayTimeout
	case core.ReasonCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusBadGateway
	}
}

func ToGetRunResponse(run *core.Run) GetRunResponse {
	resp := GetRunResponse{
		RunID:    run.ID.String(),
		JobID:    run.JobID,
		State:    string(run.State),
		Attempts: run.Attempts,
		Request: RequestInfo{
			DesignID:   run.Request.DesignID,
			OwnerID:    run.Request.OwnerID,
			OutputName: run.Request.ResultName(),
			Format:     string(run.Request.Format),
			ColorSpace: string(run.Request.ColorSpace),
			DPI:        run.Request.DPI,
		},
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
	if run.Outcome != nil {
		outcome := ToOutcomeResponse(*run.Outcome)
		resp.Outcome = &outcome
	}
	return resp
}

func ToRunSummary(run *core.Run) RunSummary {
	return RunSummary{
		RunID:       run.ID.String(),
		JobID:       run.JobID,
		DesignID:    run.Request.DesignID,
		State:       string(run.State),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
}
