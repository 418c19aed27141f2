package crowdtangle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ctpull/pkg/config"
	"ctpull/pkg/errors"
	"ctpull/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ctpull_requests_total",
		Help: "CrowdTangle requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ctpull_request_duration_seconds",
		Help:    "CrowdTangle request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})
)

// maxBodyPreview bounds how much of an undecodable body is logged
const maxBodyPreview = 200

// Client talks to the CrowdTangle API. It makes exactly one HTTP request per
// call and never retries on its own.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
}

// NewClient creates a client from the api config section
func NewClient(cfg config.APIConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "ctpull/1.0"
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		baseURL: baseURL,
		logger:  log.WithField("component", "crowdtangle"),
	}
}

// SetHeader sets a custom header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchFirst requests the first posts page for q
func (c *Client) FetchFirst(ctx context.Context, q Query) (*Page, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return c.fetchPage(ctx, PostsURL(c.baseURL, q))
}

// FetchNext requests the page a previous response pointed to. Relative
// locators are resolved against the base URL.
func (c *Client) FetchNext(ctx context.Context, locator string) (*Page, error) {
	target, err := resolveLocator(c.baseURL, locator)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeUnknown, 0, "bad next page locator", err)
	}
	return c.fetchPage(ctx, target)
}

func (c *Client) fetchPage(ctx context.Context, target string) (*Page, error) {
	var resp PostsResponse
	status, err := c.GetJSON(ctx, target, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Status != 0 && resp.Status != http.StatusOK {
		return nil, errors.FromStatus(resp.Status, "posts response reported failure")
	}

	page := &Page{
		StatusCode: status,
		Records:    resp.Result.Posts,
	}
	if resp.Status != 0 {
		page.StatusCode = resp.Status
	}
	page.NextLocator, _ = NextLocator(&resp)

	c.logger.DebugWithFields("fetched posts page", map[string]interface{}{
		"records":  len(page.Records),
		"has_next": page.NextLocator != "",
	})
	return page, nil
}

// FetchLists returns the lists, saved searches and saved post lists of token
func (c *Client) FetchLists(ctx context.Context, token string) ([]List, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	var resp ListsResponse
	if _, err := c.GetJSON(ctx, ListsURL(c.baseURL, token), &resp); err != nil {
		return nil, err
	}
	if resp.Status != 0 && resp.Status != http.StatusOK {
		return nil, errors.FromStatus(resp.Status, "lists response reported failure")
	}
	return resp.Result.Lists, nil
}

// GetJSON performs a GET and decodes the body into target, keeping numbers
// as json.Number. It returns the HTTP status code.
func (c *Client) GetJSON(ctx context.Context, target string, v interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, errors.Wrap(errors.ErrorTypeUnknown, 0, "failed to create request", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrap(errors.ErrorTypeNetwork, resp.StatusCode, "failed to read response body", err)
	}

	if apiErr := c.checkResponseStatus(req, resp.StatusCode, body); apiErr != nil {
		return resp.StatusCode, apiErr
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		preview := string(body)
		if len(preview) > maxBodyPreview {
			preview = preview[:maxBodyPreview] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"endpoint":     req.URL.Path,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return resp.StatusCode, errors.Wrap(errors.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON", err)
	}

	return resp.StatusCode, nil
}

func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	endpoint := req.URL.Path
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())

	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		logger.LogRequest(c.logger, req.Method, req.URL.String(), 0, duration)
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(errors.ErrorTypeNetwork, 0, "request failed", err)
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// checkResponseStatus maps non-2xx statuses to typed errors, using the
// API's own message when the body carries one
func (c *Client) checkResponseStatus(req *http.Request, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	message := ""
	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		message = apiErr.Message
		if apiErr.Code != 0 {
			message = fmt.Sprintf("%s (api code %d)", apiErr.Message, apiErr.Code)
		}
	}

	typed := errors.FromStatus(status, message)
	c.logger.WarnWithFields("API returned error status", map[string]interface{}{
		"endpoint": req.URL.Path,
		"status":   status,
		"type":     string(typed.Type),
		"message":  typed.Message,
	})
	return typed
}
