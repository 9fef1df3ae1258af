// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

/*
client.go - Rate-Limited CRM Gateway

Every call to the upstream CRM flows through Client. The client:

  - acquires the shared Budget before sending (concurrency cap plus
    minimum spacing between request starts)
  - authenticates with HTTP basic auth
  - writes one audit record per call (zerolog event + prometheus)
  - on HTTP 429 serves the configured cooldown, then returns
    ErrRateLimited without retrying; the decision to retry, fall back
    or skip belongs to the caller
  - on any other non-2xx returns *UpstreamError with the status and up
    to 64KB of the response body

The activity report endpoint can answer either a JSON array or NDJSON;
decodeActivityRecords handles both.
*/
//nolint:staticcheck // doc comment above describes the file
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/paceboard/paceboard/internal/config"
	"github.com/paceboard/paceboard/internal/logging"
	"github.com/paceboard/paceboard/internal/metrics"
	"github.com/paceboard/paceboard/internal/models"
	"github.com/paceboard/paceboard/internal/models/crm"
)

// maxErrorBodySize limits how much of an error response body is kept
// for diagnostics.
const maxErrorBodySize = 64 * 1024

// Client is the rate-limited CRM gateway.
type Client struct {
	baseURL  string
	username string
	apiToken string
	pageSize int

	http    *http.Client
	budget  *Budget
	backoff BackoffPolicy
	log     zerolog.Logger
}

// NewClient creates a gateway client. The Budget and BackoffPolicy are
// injected so tests can substitute deterministic ones; pass
// NewBudget(...) and NewFixedCooldown(...) in production.
func NewClient(cfg config.CRMConfig, budget *Budget, backoff BackoffPolicy) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		apiToken: cfg.APIToken,
		pageSize: cfg.PageSize,
		http:     &http.Client{Timeout: cfg.Timeout},
		budget:   budget,
		backoff:  backoff,
		log:      logging.With().Str("component", "gateway").Logger(),
	}
}

// readBodyForError reads at most maxErrorBodySize of a response body
// for error reporting.
func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	if len(body) == maxErrorBodySize {
		body = append(body, []byte("\n... (truncated)")...)
	}
	return string(body)
}

// roundTrip performs one admitted, audited request. On success the
// response body is still open; the caller must close it. On 429 the
// cooldown has already been served when ErrRateLimited is returned.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	if err := c.budget.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("gateway admission: %w", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader = http.NoBody
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		c.budget.Release()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.apiToken)
	req.Header.Set("Accept", "application/json, application/x-ndjson")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start)
	c.budget.Release()

	if err != nil {
		c.audit(method, path, 0, latency)
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	c.audit(method, path, resp.StatusCode, latency)

	if resp.StatusCode == http.StatusTooManyRequests {
		_ = resp.Body.Close()
		metrics.GatewayRateLimited.Inc()
		c.log.Warn().Str("endpoint", path).Dur("cooldown", cooldownOf(c.backoff)).Msg("upstream rate limited, serving cooldown")
		if err := c.backoff.OnRateLimited(ctx); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", path, ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody := readBodyForError(resp.Body)
		_ = resp.Body.Close()
		return nil, &UpstreamError{Status: resp.StatusCode, Body: errBody}
	}

	return resp, nil
}

// audit records the per-call audit trail: one log event, one counter
// sample, one latency sample.
func (c *Client) audit(method, path string, status int, latency time.Duration) {
	c.log.Debug().
		Str("endpoint", path).
		Str("method", method).
		Int("status", status).
		Dur("latency", latency).
		Msg("upstream request")

	metrics.GatewayRequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	metrics.GatewayRequestDuration.WithLabelValues(path).Observe(latency.Seconds())
}

// cooldownOf extracts the delay for logging when the policy is the
// fixed one; other policies log zero.
func cooldownOf(p BackoffPolicy) time.Duration {
	if f, ok := p.(*FixedCooldown); ok {
		return f.Delay
	}
	return 0
}

// getJSON performs a GET and decodes the response into result.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, result interface{}) error {
	resp, err := c.roundTrip(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// ListSubjects fetches the full subject directory, following the
// upstream's pagination. Each page is a separately admitted request.
func (c *Client) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(c.pageSize))

		var envelope crm.UsersResponse
		if err := c.getJSON(ctx, "/api/v1/users", query, &envelope); err != nil {
			return nil, err
		}
		for _, u := range envelope.Data {
			subjects = append(subjects, models.Subject{
				ID:       u.ID,
				Name:     u.Name,
				Email:    u.Email,
				GroupID:  u.GroupID,
				Active:   !u.Deactivated,
				Tracking: u.TrackingEnabled,
			})
		}
		if !envelope.Pagination.HasMore {
			return subjects, nil
		}
	}
}

// ListGroups fetches the full group directory.
func (c *Client) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(c.pageSize))

		var envelope crm.GroupsResponse
		if err := c.getJSON(ctx, "/api/v1/groups", query, &envelope); err != nil {
			return nil, err
		}
		for _, g := range envelope.Data {
			groups = append(groups, models.Group{ID: g.ID, Name: g.Name})
		}
		if !envelope.Pagination.HasMore {
			return groups, nil
		}
	}
}

// ActivityReport requests tracked-time records for the inclusive date
// range [start, end] (YYYY-MM-DD in the upstream's account timezone).
// An empty subjectID reports on all subjects in one call.
func (c *Client) ActivityReport(ctx context.Context, start, end, subjectID string) ([]crm.ActivityRecord, error) {
	body, err := json.Marshal(crm.ActivityReportRequest{Start: start, End: end, SubjectID: subjectID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode report request: %w", err)
	}

	resp, err := c.roundTrip(ctx, http.MethodPost, "/api/v1/reports/activity", nil, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeActivityRecords(resp)
}

// decodeActivityRecords reads a report response in either of the two
// formats the upstream produces: a JSON array, or NDJSON with one
// record per line.
func decodeActivityRecords(resp *http.Response) ([]crm.ActivityRecord, error) {
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "ndjson") {
		var records []crm.ActivityRecord
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var rec crm.ActivityRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, fmt.Errorf("failed to decode NDJSON record: %w", err)
			}
			records = append(records, rec)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read NDJSON response: %w", err)
		}
		return records, nil
	}

	var records []crm.ActivityRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode report response: %w", err)
	}
	return records, nil
}

// ListDeals fetches deals updated since the given time (zero = all).
func (c *Client) ListDeals(ctx context.Context, since time.Time) ([]models.Deal, error) {
	var deals []models.Deal
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(c.pageSize))
		if !since.IsZero() {
			query.Set("updated_since", since.UTC().Format(time.RFC3339))
		}

		var envelope crm.DealsResponse
		if err := c.getJSON(ctx, "/api/v1/deals", query, &envelope); err != nil {
			return nil, err
		}
		for _, d := range envelope.Data {
			deals = append(deals, models.Deal{
				ID:        d.ID,
				SubjectID: d.OwnerID,
				Title:     d.Title,
				Value:     d.Value,
				Stage:     d.Stage,
				UpdatedAt: parseUpstreamTime(d.UpdatedAt),
			})
		}
		if !envelope.Pagination.HasMore {
			return deals, nil
		}
	}
}

// ListMessages fetches message events sent since the given time.
func (c *Client) ListMessages(ctx context.Context, since time.Time) ([]models.Message, error) {
	var messages []models.Message
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(c.pageSize))
		if !since.IsZero() {
			query.Set("sent_since", since.UTC().Format(time.RFC3339))
		}

		var envelope crm.MessagesResponse
		if err := c.getJSON(ctx, "/api/v1/messages", query, &envelope); err != nil {
			return nil, err
		}
		for _, m := range envelope.Data {
			messages = append(messages, models.Message{
				ID:        m.ID,
				SubjectID: m.OwnerID,
				SentAt:    parseUpstreamTime(m.SentAt),
			})
		}
		if !envelope.Pagination.HasMore {
			return messages, nil
		}
	}
}

// TimeEntries calls the deprecated per-subject time entry endpoint.
// Only the legacy-bucket verification path uses it; everything else
// goes through ActivityReport.
func (c *Client) TimeEntries(ctx context.Context, subjectID, from, to string) ([]crm.TimeEntry, error) {
	query := url.Values{}
	query.Set("from", from)
	query.Set("to", to)

	var entries []crm.TimeEntry
	path := "/api/v1/users/" + url.PathEscape(subjectID) + "/time_entries"
	if err := c.getJSON(ctx, path, query, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// parseUpstreamTime parses the upstream's RFC3339 timestamps, falling
// back to the zero time on malformed input rather than failing a whole
// page.
func parseUpstreamTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
