package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

const defaultOTPCode = "123456"

// TestContext carries one scenario's HTTP session against a running server.
type TestContext struct {
	baseURL string
	otpCode string
	client  *http.Client

	phone       string
	clientIP    string
	accessToken string
	vars        map[string]string

	lastStatus int
	lastHeader http.Header
	lastBody   []byte
}

// NewTestContext targets baseURL. otpCode must match OTP_FIXED_CODE on the
// server under test. Each scenario sends from its own documentation-range
// address so per-IP budgets do not leak between scenarios.
func NewTestContext(baseURL, otpCode string) *TestContext {
	if otpCode == "" {
		otpCode = defaultOTPCode
	}
	return &TestContext{
		baseURL:  strings.TrimRight(baseURL, "/"),
		otpCode:  otpCode,
		client:   &http.Client{Timeout: 10 * time.Second},
		clientIP: fmt.Sprintf("198.51.100.%d", rand.IntN(254)+1),
		vars:     map[string]string{},
	}
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body)
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	}
	if tc.clientIP != "" {
		req.Header.Set("X-Forwarded-For", tc.clientIP)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

// GetResponseField reads a dotted path such as "land.khasra_number" from the
// last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, key := range strings.Split(field, ".") {
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, key)
		}
		if doc, ok = obj[key]; !ok {
			return nil, fmt.Errorf("field %q not found in %s", field, tc.lastBody)
		}
	}
	return doc, nil
}

func (tc *TestContext) GetLastResponseStatus() int            { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte           { return tc.lastBody }
func (tc *TestContext) GetLastResponseHeader(k string) string { return tc.lastHeader.Get(k) }

func (tc *TestContext) OTPCode() string { return tc.otpCode }

// NewPhone assigns the scenario a fresh mobile number so runs never collide
// with farmers left over from earlier runs.
func (tc *TestContext) NewPhone() string {
	tc.phone = fmt.Sprintf("9%09d", rand.IntN(1_000_000_000))
	return tc.phone
}

func (tc *TestContext) Phone() string { return tc.phone }

func (tc *TestContext) SetAccessToken(token string) { tc.accessToken = token }
func (tc *TestContext) SetClientIP(ip string)       { tc.clientIP = ip }

func (tc *TestContext) Remember(key, value string) { tc.vars[key] = value }

func (tc *TestContext) Recall(key string) (string, error) {
	v, ok := tc.vars[key]
	if !ok {
		return "", fmt.Errorf("nothing remembered under %q", key)
	}
	return v, nil
}
