package googleads

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/frans-sjostrom/ads-insights/internal/config"
	"github.com/frans-sjostrom/ads-insights/internal/ratelimit"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type adsRequest struct {
	Path            string
	Query           string
	PageToken       string
	Authorization   string
	DeveloperToken  string
	LoginCustomerID string
}

// adsServer fakes the Ads REST endpoints. Search results are keyed by the
// resource named in the FROM clause.
type adsServer struct {
	*httptest.Server

	mu         sync.Mutex
	requests   []adsRequest
	accessible []string
	results    map[string][]string
	pageSize   int
	fail       map[string]adsFailure
}

type adsFailure struct {
	status int
	body   string
}

func newAdsServer(t *testing.T) *adsServer {
	t.Helper()
	s := &adsServer{
		results: make(map[string][]string),
		fail:    make(map[string]adsFailure),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *adsServer) handle(w http.ResponseWriter, r *http.Request) {
	req := adsRequest{
		Path:            r.URL.Path,
		Authorization:   r.Header.Get("Authorization"),
		DeveloperToken:  r.Header.Get("developer-token"),
		LoginCustomerID: r.Header.Get("login-customer-id"),
	}
	var body searchRequest
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&body)
		req.Query = body.Query
		req.PageToken = body.PageToken
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if strings.HasSuffix(r.URL.Path, "customers:listAccessibleCustomers") {
		s.mu.Lock()
		names := make([]string, 0, len(s.accessible))
		for _, id := range s.accessible {
			names = append(names, "customers/"+id)
		}
		f, failing := s.fail["listAccessibleCustomers"]
		s.mu.Unlock()
		if failing {
			writeRaw(w, f.status, f.body)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"resourceNames": names})
		return
	}

	customerID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v18/customers/"), "/googleAds:search")
	resource := fromResource(body.Query)

	s.mu.Lock()
	f, failing := s.fail[resource]
	if !failing {
		f, failing = s.fail[customerID]
	}
	rows := s.results[resource]
	pageSize := s.pageSize
	s.mu.Unlock()

	if failing {
		writeRaw(w, f.status, f.body)
		return
	}

	start := 0
	if body.PageToken != "" {
		start, _ = strconv.Atoi(strings.TrimPrefix(body.PageToken, "p"))
	}
	end := len(rows)
	next := ""
	if pageSize > 0 && start+pageSize < len(rows) {
		end = start + pageSize
		next = "p" + strconv.Itoa(end)
	}
	raw := make([]json.RawMessage, 0, end-start)
	for _, row := range rows[start:end] {
		raw = append(raw, json.RawMessage(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": raw, "nextPageToken": next})
}

func (s *adsServer) setResults(resource string, rows ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[resource] = rows
}

func (s *adsServer) failOn(key string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[key] = adsFailure{status: status, body: body}
}

func (s *adsServer) recorded() []adsRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]adsRequest(nil), s.requests...)
}

func (s *adsServer) client(t *testing.T) *Client {
	t.Helper()
	limiter := ratelimit.New(time.Millisecond)
	t.Cleanup(limiter.Close)
	return NewClient(
		config.Credentials{DeveloperToken: "dev-token"},
		limiter,
		ClientOptions{BaseURL: s.URL, APIVersion: "v18", Timeout: 5 * time.Second},
		zap.NewNop(),
	)
}

func fromResource(query string) string {
	fields := strings.Fields(query)
	for i, f := range fields {
		if f == "FROM" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
