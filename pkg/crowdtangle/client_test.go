package crowdtangle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ctpull/pkg/config"
	"ctpull/pkg/errors"
	"ctpull/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newTestClient(t *testing.T, baseURL string) (*Client, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	client := NewClient(config.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second}, log)
	return client, log
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(config.APIConfig{Timeout: time.Second}, logger.NewNopLogger())

	assert.Equal(t, BaseURL, client.BaseURL())
	assert.Equal(t, "ctpull/1.0", client.headers["User-Agent"])
	assert.Equal(t, time.Second, client.httpClient.Timeout)
}

func TestFetchFirst(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PostsEndpoint, r.URL.Path)
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"status": 200,
			"result": {
				"posts": [
					{"id": 111111111111111111, "date": "2024-01-15 10:30:00"},
					{"id": "abc", "date": "2024-01-15 09:00:00"}
				],
				"pagination": {"nextPage": "https://api.crowdtangle.com/posts?token=t&offset=100"}
			}
		}`)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	page, err := client.FetchFirst(context.Background(), Query{
		Token:          "secret",
		ListIDs:        []string{"1", "2"},
		StartDate:      "2024-01-01",
		SortBy:         SortByDate,
		IncludeHistory: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 200, page.StatusCode)
	require.Len(t, page.Records, 2)
	assert.Equal(t, json.Number("111111111111111111"), page.Records[0]["id"])
	assert.Equal(t, "https://api.crowdtangle.com/posts?token=t&offset=100", page.NextLocator)

	assert.Equal(t, []string{"secret"}, gotQuery["token"])
	assert.Equal(t, []string{"100"}, gotQuery["count"])
	assert.Equal(t, []string{"1,2"}, gotQuery["listIds"])
	assert.Equal(t, []string{"true"}, gotQuery["includeHistory"])
	assert.NotContains(t, gotQuery, "endDate")
	assert.NotContains(t, gotQuery, "offset")
	assert.NotContains(t, gotQuery, "minInteractions")
}

func TestFetchFirstInvalidQuery(t *testing.T) {
	client, _ := newTestClient(t, "http://127.0.0.1:1")

	_, err := client.FetchFirst(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestFetchEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status": 200, "result": {"posts": []}}`)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	page, err := client.FetchFirst(context.Background(), Query{Token: "t"})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Empty(t, page.NextLocator)
}

func TestFetchNextResolvesRelativeLocator(t *testing.T) {
	var gotPath, gotOffset string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotOffset = r.URL.Query().Get("offset")
		io.WriteString(w, `{"status": 200, "result": {"posts": [{"id": 1}]}}`)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	page, err := client.FetchNext(context.Background(), "/posts?token=t&offset=200")
	require.NoError(t, err)

	assert.Equal(t, "/posts", gotPath)
	assert.Equal(t, "200", gotOffset)
	assert.Len(t, page.Records, 1)
	assert.Empty(t, page.NextLocator)
}

func TestFetchNextEmptyLocator(t *testing.T) {
	client, _ := newTestClient(t, "http://127.0.0.1:1")
	_, err := client.FetchNext(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType errors.ErrorType
		wantMsg  string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"status": 401, "code": 20, "message": "Invalid token"}`, errors.ErrorTypeAuth, "Invalid token (api code 20)"},
		{"rate limited", http.StatusTooManyRequests, ``, errors.ErrorTypeRateLimit, "Too Many Requests"},
		{"server error", http.StatusBadGateway, `<html>bad gateway</html>`, errors.ErrorTypeServerError, "Bad Gateway"},
		{"body status", http.StatusOK, `{"status": 500, "result": {}}`, errors.ErrorTypeServerError, "reported failure"},
		{"bad json", http.StatusOK, `{"status": 200, "result": `, errors.ErrorTypeParsing, "failed to parse JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client, _ := newTestClient(t, server.URL)
			page, err := client.FetchFirst(context.Background(), Query{Token: "t"})
			require.Error(t, err)
			assert.Nil(t, page)
			assert.Equal(t, tt.wantType, errors.TypeOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestNetworkError(t *testing.T) {
	client, log := newTestClient(t, "http://ct.invalid")
	client.httpClient.Transport = &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	}}

	_, err := client.FetchNext(context.Background(), "http://ct.invalid/posts?token=secret")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNetwork, errors.TypeOf(err))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	for _, msg := range log.GetMessages() {
		if url, ok := msg.Fields["url"].(string); ok {
			assert.NotContains(t, url, "secret")
		}
	}
	assert.True(t, log.HasError())
}

func TestCancelledContext(t *testing.T) {
	client, _ := newTestClient(t, "http://ct.invalid")
	client.httpClient.Transport = &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		return nil, req.Context().Err()
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.FetchNext(ctx, "http://ct.invalid/posts")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeaders(t *testing.T) {
	client, _ := newTestClient(t, "http://ct.invalid")
	client.SetHeader("X-Trace", "abc")

	var got http.Header
	client.httpClient.Transport = &mockRoundTripper{handler: func(req *http.Request) (*http.Response, error) {
		got = req.Header.Clone()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(`{"status":200,"result":{"posts":[]}}`)),
			Header:     make(http.Header),
		}, nil
	}}

	_, err := client.FetchNext(context.Background(), "http://ct.invalid/posts")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Get("X-Trace"))
	assert.Equal(t, "application/json", got.Get("Accept"))
}

func TestFetchLists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ListsEndpoint, r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		io.WriteString(w, `{"status": 200, "result": {"lists": [
			{"id": 34083, "title": "US General Media", "type": "LIST"},
			{"id": 12, "title": "Elections", "type": "SAVED_SEARCH"}
		]}}`)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	lists, err := client.FetchLists(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []List{
		{ID: 34083, Title: "US General Media", Type: ListTypeList},
		{ID: 12, Title: "Elections", Type: ListTypeSavedSearch},
	}, lists)

	_, err = client.FetchLists(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}
