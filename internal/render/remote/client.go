package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nemanja-m/ccrender/internal/render/core"
	"github.com/nemanja-m/ccrender/internal/shared/config"
	"github.com/nemanja-m/ccrender/internal/shared/logging"
)

const (
	submitPath      = "/api/storefront/v1/projects/by-scenario/render-hires"
	statusPathFmt   = "/api/storefront/v1/projects/%s/processing-results"
	maxErrorBodyLen = 512
)

// Client talks to the remote rendering API. It is safe for concurrent use; all
// calls share one http.Client and one circuit breaker.
type Client struct {
	httpClient     *http.Client
	baseURL        *url.URL
	storefrontID   int64
	requestTimeout time.Duration
	breaker        *gobreaker.CircuitBreaker
	logger         logging.Logger
}

func NewClient(
	apiCfg config.APIConfig,
	breakerCfg config.BreakerConfig,
	httpClient *http.Client,
	logger logging.Logger,
) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(apiCfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api base url: %q", apiCfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        base,
		storefrontID:   apiCfg.StorefrontID,
		requestTimeout: apiCfg.RequestTimeout,
		breaker:        newBreaker(breakerCfg, logger),
		logger:         logger,
	}, nil
}

// Submit creates a project from the design and starts its render pipeline in one call.
func (c *Client) Submit(ctx context.Context, req core.JobRequest, cred core.Credential) (*core.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, &core.SubmissionError{Kind: core.SubmissionInvalid, Err: err}
	}

	body, err := json.Marshal(createProjectRequest{
		OwnerID:     req.OwnerID,
		Name:        "PROJ-" + req.DesignID,
		Description: "Project for state " + req.DesignID,
		Scenario: renderScenario{
			DesignID:       req.DesignID,
			Name:           req.ResultName(),
			DPI:            req.DPI,
			Format:         string(req.Format),
			ColorSpace:     string(req.ColorSpace),
			FlipMode:       "None",
			AllowAnonymous: false,
		},
	})
	if err != nil {
		return nil, &core.SubmissionError{Kind: core.SubmissionInvalid, Err: err}
	}

	endpoint := c.resolve(submitPath)
	q := endpoint.Query()
	q.Set("storefrontId", strconv.FormatInt(c.storefrontID, 10))
	endpoint.RawQuery = q.Encode()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, &core.SubmissionError{Kind: core.SubmissionInvalid, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq, cred)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return nil, &core.SubmissionError{Kind: core.SubmissionTransport, StatusCode: se.code, Err: err}
		}
		return nil, &core.SubmissionError{Kind: core.SubmissionTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := readStatusError(resp)
		kind := core.SubmissionTransport
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			kind = core.SubmissionRejected
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = core.SubmissionUnauthorized
		}
		return nil, &core.SubmissionError{Kind: kind, StatusCode: resp.StatusCode, Err: err}
	}

	var created createProjectResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, &core.SubmissionError{
			Kind:       core.SubmissionMalformed,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	if created.ID == "" {
		return nil, &core.SubmissionError{
			Kind:       core.SubmissionMalformed,
			StatusCode: resp.StatusCode,
			Err:        errors.New("response has no id"),
		}
	}

	c.logger.Info("Render job submitted", "job_id", string(created.ID), "design_id", req.DesignID)

	return &core.Job{ID: string(created.ID), Request: req}, nil
}

// GetStatus queries the processing results of a job once.
func (c *Client) GetStatus(ctx context.Context, jobID string, cred core.Credential) (*core.StatusReport, error) {
	endpoint := c.resolve(fmt.Sprintf(statusPathFmt, url.PathEscape(jobID)))

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(httpReq, cred)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readStatusError(resp)
	}

	var payload processingResultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode processing results: %w", err)
	}
	if payload.Status == nil {
		return nil, errors.New("processing results have no status")
	}
	status, err := core.ParseJobStatus(*payload.Status)
	if err != nil {
		return nil, err
	}

	report := &core.StatusReport{
		Status:      status,
		Description: payload.StatusDescription,
	}
	if status == core.JobStatusCompleted {
		report.Outputs = make([]core.ResultDescriptor, 0, len(payload.OutputFileDetails))
		for i, d := range payload.OutputFileDetails {
			if d.URL == "" || d.Name == "" {
				return nil, fmt.Errorf("output file %d is missing url or name", i)
			}
			report.Outputs = append(report.Outputs, core.ResultDescriptor{
				URL:  c.resolveArtifactURL(d.URL),
				Name: d.Name,
			})
		}
	}

	return report, nil
}

// Open starts streaming an artifact. No request timeout is applied because
// rendered files can be large; cancellation comes from ctx.
func (c *Client) Open(ctx context.Context, rawURL string, cred core.Credential) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(httpReq, cred)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readStatusError(resp)
	}
	return resp.Body, nil
}

// BreakerOpen reports whether calls to the remote API are currently short-circuited.
func (c *Client) BreakerOpen() bool {
	return c.breaker.State() == gobreaker.StateOpen
}

// do sends the request through the circuit breaker. Transport errors and 5xx
// responses count as breaker failures; any other response is returned to the
// caller, who owns its body.
func (c *Client) do(req *http.Request, cred core.Credential) (*http.Response, error) {
	if cred != "" {
		req.Header.Set("Authorization", "Bearer "+string(cred))
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			defer resp.Body.Close()
			return nil, readStatusError(resp)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func (c *Client) resolve(path string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return &u
}

func (c *Client) resolveArtifactURL(raw string) string {
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() {
		return raw
	}
	return c.baseURL.ResolveReference(ref).String()
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected HTTP status %d", e.code)
	}
	return fmt.Sprintf("unexpected HTTP status %d: %s", e.code, e.body)
}

func readStatusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
}

// StatusCode extracts the HTTP status from an error returned by the client, or 0.
func StatusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}
