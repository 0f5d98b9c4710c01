// Package backend implements the REST client of the contribution viewer API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/contribview/pkg/domain/interfaces"
	"github.com/secmon-lab/contribview/pkg/domain/model"
	"github.com/secmon-lab/contribview/pkg/domain/types"
	"github.com/secmon-lab/contribview/pkg/domain/wire"
	"github.com/secmon-lab/contribview/pkg/utils/errutil"
	"github.com/secmon-lab/contribview/pkg/utils/logging"
	"github.com/secmon-lab/contribview/pkg/utils/safe"
)

const (
	// DefaultTimeout bounds a single API call
	DefaultTimeout = 30 * time.Second

	apiPrefix       = "/api/v1"
	maxResponseSize = 10 * 1024 * 1024
	userAgent       = "contribview-cli"
)

// APIError is a non-2xx response. Message is the detail sent by the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// UserMessage returns the server detail for display
func (e *APIError) UserMessage() string {
	return e.Message
}

// IsStatus reports whether err is an APIError with the status code
func IsStatus(err error, statusCode int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == statusCode
}

// Client calls the REST API of a contribview server
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
}

var _ interfaces.Backend = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. for tests
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithToken sends the token as a bearer credential
func WithToken(token string) Option {
	return func(client *Client) {
		client.token = token
	}
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, goerr.Wrap(err, "invalid backend URL", goerr.V("url", baseURL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, goerr.New("backend URL must be http or https", goerr.V("url", baseURL))
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) GetIntegration(ctx context.Context, id model.IntegrationID) (*model.Integration, error) {
	var resp wire.Integration
	if err := c.do(ctx, http.MethodGet, integrationPath(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Model(), nil
}

func (c *Client) ListResources(ctx context.Context, id model.IntegrationID, resourceTypes ...types.ResourceType) ([]*model.Resource, error) {
	query := url.Values{}
	if len(resourceTypes) > 0 {
		names := make([]string, len(resourceTypes))
		for i, rt := range resourceTypes {
			names[i] = rt.String()
		}
		query.Set("types", strings.Join(names, ","))
	}

	var resp wire.ResourceList
	if err := c.do(ctx, http.MethodGet, integrationPath(id, "resources"), query, nil, &resp); err != nil {
		return nil, err
	}

	resources := make([]*model.Resource, len(resp.Resources))
	for i, r := range resp.Resources {
		resources[i] = r.Model()
	}
	return resources, nil
}

func (c *Client) SyncResources(ctx context.Context, id model.IntegrationID, resourceTypes []types.ResourceType) error {
	body := wire.SyncRequest{}
	for _, rt := range resourceTypes {
		body.ResourceTypes = append(body.ResourceTypes, rt.String())
	}
	return c.do(ctx, http.MethodPost, integrationPath(id, "resources", "sync"), nil, body, nil)
}

func (c *Client) GetSyncStatus(ctx context.Context, id model.IntegrationID) (*model.SyncStatus, error) {
	var resp wire.SyncStatus
	if err := c.do(ctx, http.MethodGet, integrationPath(id, "sync-status"), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Model(), nil
}

func (c *Client) ListSelectedChannels(ctx context.Context, id model.IntegrationID) ([]model.ResourceID, error) {
	var resp wire.ChannelIDs
	if err := c.do(ctx, http.MethodGet, integrationPath(id, "channels", "selected"), nil, nil, &resp); err != nil {
		return nil, err
	}
	return wire.ResourceIDs(resp.ChannelIDs), nil
}

func (c *Client) SelectChannels(ctx context.Context, id model.IntegrationID, channelIDs []model.ResourceID, installBot bool) error {
	body := wire.SelectRequest{
		ChannelIDs: wire.Strings(channelIDs),
		InstallBot: installBot,
	}
	return c.do(ctx, http.MethodPost, integrationPath(id, "channels", "select"), nil, body, nil)
}

func (c *Client) DeselectChannels(ctx context.Context, id model.IntegrationID, channelIDs []model.ResourceID) error {
	body := wire.ChannelIDs{ChannelIDs: wire.Strings(channelIDs)}
	return c.do(ctx, http.MethodPost, integrationPath(id, "channels", "deselect"), nil, body, nil)
}

func (c *Client) CreateTeamReport(ctx context.Context, req model.TeamReportRequest) (*model.TeamReport, error) {
	var resp wire.TeamReport
	if err := c.do(ctx, http.MethodPost, teamPath(req.TeamID, "reports"), nil, wire.FromReportRequest(req), &resp); err != nil {
		return nil, err
	}
	return resp.Model(), nil
}

func (c *Client) GenerateTeamReport(ctx context.Context, teamID types.TeamID, reportID model.ReportID) error {
	return c.do(ctx, http.MethodPost, teamPath(teamID, "reports", reportID.String(), "generate"), nil, nil, nil)
}

func (c *Client) GetTeamReport(ctx context.Context, teamID types.TeamID, reportID model.ReportID) (*model.TeamReport, error) {
	var resp wire.TeamReport
	if err := c.do(ctx, http.MethodGet, teamPath(teamID, "reports", reportID.String()), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Model(), nil
}

// ListTeamReports is not part of interfaces.Backend; the CLI uses it to browse reports
func (c *Client) ListTeamReports(ctx context.Context, teamID types.TeamID) ([]*model.TeamReport, error) {
	var resp wire.TeamReportList
	if err := c.do(ctx, http.MethodGet, teamPath(teamID, "reports"), nil, nil, &resp); err != nil {
		return nil, err
	}
	reports := make([]*model.TeamReport, len(resp.Reports))
	for i, r := range resp.Reports {
		reports[i] = r.Model()
	}
	return reports, nil
}

func integrationPath(id model.IntegrationID, elem ...string) string {
	return joinPath(append([]string{"integrations", id.String()}, elem...))
}

func teamPath(id types.TeamID, elem ...string) string {
	return joinPath(append([]string{"teams", id.String()}, elem...))
}

func joinPath(elem []string) string {
	escaped := make([]string, len(elem))
	for i, e := range elem {
		escaped[i] = url.PathEscape(e)
	}
	return apiPrefix + "/" + strings.Join(escaped, "/")
}

// do sends a JSON request and decodes a JSON response into out when out is not nil
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return goerr.Wrap(err, "failed to encode request", goerr.V("path", path))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return goerr.Wrap(err, "failed to create request", goerr.V("path", path))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	logging.From(ctx).Debug("Calling backend", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to call backend", goerr.V("method", method), goerr.V("path", path))
	}
	defer safe.DrainAndClose(ctx, resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return goerr.Wrap(err, "failed to read response", goerr.V("path", path))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return goerr.Wrap(newAPIError(resp, raw), "backend returned an error",
			goerr.V("method", method), goerr.V("path", path), goerr.V("status", resp.StatusCode))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return goerr.Wrap(err, "failed to decode response", goerr.V("path", path))
	}
	return nil
}

func newAPIError(resp *http.Response, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload errutil.ErrorResponse
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		apiErr.Message = payload.Detail
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
