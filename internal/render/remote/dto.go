package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type createProjectRequest struct {
	OwnerID     string         `json:"ownerId"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Scenario    renderScenario `json:"scenario"`
}

type renderScenario struct {
	DesignID       string `json:"designId"`
	Name           string `json:"name"`
	DPI            int    `json:"dpi"`
	Format         string `json:"format"`
	ColorSpace     string `json:"colorSpace"`
	FlipMode       string `json:"flipMode"`
	AllowAnonymous bool   `json:"allowAnonymous"`
}

type createProjectResponse struct {
	ID projectID `json:"id"`
}

// projectID accepts the id as either a JSON string or a JSON number.
type projectID string

func (p *projectID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = projectID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("project id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("project id must be a string or number: %w", err)
	}
	*p = projectID(n.String())
	return nil
}

type processingResultsResponse struct {
	Status            *string             `json:"status"`
	OutputFileDetails []outputFileDetails `json:"outputFileDetails"`
	StatusDescription string              `json:"statusDescription"`
}

type outputFileDetails struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}
