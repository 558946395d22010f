package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext carries the HTTP client and the state shared by the steps of
// one scenario.
type TestContext struct {
	BaseURL    string
	AdminToken string

	client       *http.Client
	lastStatus   int
	lastHeaders  http.Header
	lastBody     []byte
	accessToken  string
	values       map[string]string
	forwardedFor string
}

func NewTestContext(baseURL, adminToken string) *TestContext {
	return &TestContext{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AdminToken: adminToken,
		client:     &http.Client{Timeout: 10 * time.Second},
		values:     map[string]string{},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastHeaders = nil
	tc.lastBody = nil
	tc.accessToken = ""
	tc.values = map[string]string{}
	tc.forwardedFor = fmt.Sprintf("198.51.100.%d", time.Now().UnixNano()%250+1)
}

func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) PATCH(path string, body interface{}) error {
	return tc.do(http.MethodPatch, path, body, nil)
}

// AdminPOST sends a body-less admin request.
func (tc *TestContext) AdminPOST(path string) error {
	return tc.do(http.MethodPost, path, nil, map[string]string{"X-Admin-Token": tc.AdminToken})
}

func (tc *TestContext) AdminGET(path string) error {
	return tc.GET(path, map[string]string{"X-Admin-Token": tc.AdminToken})
}

func (tc *TestContext) do(method, path string, body interface{}, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// a fresh client IP per scenario keeps rate limit budgets apart
	req.Header.Set("X-Forwarded-For", tc.forwardedFor)
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastBody, err = io.ReadAll(resp.Body)
	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	return err
}

func (tc *TestContext) GetLastStatusCode() int { return tc.lastStatus }

func (tc *TestContext) GetLastHeader(name string) string { return tc.lastHeaders.Get(name) }

// GetResponseField reads a dotted path such as "items.0.id" from the last
// JSON response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var doc interface{}
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	cur := doc
	for _, part := range strings.Split(field, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", field, tc.lastBody)
			}
			cur = v
		case []interface{}:
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, field)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("field %q not found in %s", field, tc.lastBody)
		}
	}
	return cur, nil
}

func (tc *TestContext) GetAccessToken() string { return tc.accessToken }

func (tc *TestContext) SetAccessToken(token string) { tc.accessToken = token }

// Save remembers a value, such as a case id, for later steps.
func (tc *TestContext) Save(key, value string) { tc.values[key] = value }

func (tc *TestContext) Load(key string) string { return tc.values[key] }
