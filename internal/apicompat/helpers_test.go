package apicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

const defaultRequestTimeout = 2 * time.Second

type liveClient struct {
	baseURL string
	client  *http.Client
}

// newLiveClient targets the dashboard at DASHBOARD_BASE_URL and skips the
// test when it is unset or unreachable.
func newLiveClient(t *testing.T) *liveClient {
	t.Helper()
	baseURL := strings.TrimRight(os.Getenv("DASHBOARD_BASE_URL"), "/")
	if baseURL == "" {
		t.Skip("DASHBOARD_BASE_URL not set")
	}
	client := &http.Client{Timeout: defaultRequestTimeout}

	if !isReachable(client, baseURL+"/api/gallery") {
		t.Skipf("dashboard not reachable at %s", baseURL)
	}

	return &liveClient{
		baseURL: baseURL,
		client:  client,
	}
}

func isReachable(client *http.Client, url string) bool {
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 500
}

func (c *liveClient) do(t *testing.T, method, path string, body io.Reader, header http.Header) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	_ = resp.Body.Close()
	return resp, data
}

func (c *liveClient) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	return c.do(t, http.MethodGet, path, nil, nil)
}

func (c *liveClient) post(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	return c.do(t, http.MethodPost, path, bytes.NewReader(nil), nil)
}

// getResponse returns an unread response for streaming endpoints.
func (c *liveClient) getResponse(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp
}

// waitForStatus polls /api/status until the loop has published once.
func (c *liveClient) waitForStatus(t *testing.T, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		resp, body := c.get(t, "/api/status")
		if resp.StatusCode == http.StatusOK {
			return decodeJSONMap(t, body)
		}
		if time.Now().After(deadline) {
			t.Fatalf("GET /api/status still %d after %v", resp.StatusCode, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func readSSEEvent(url string, header http.Header, timeout time.Duration) (string, http.Header, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			for {
				idx := bytes.Index(buf, []byte("\n\n"))
				if idx < 0 {
					break
				}
				event := string(buf[:idx])
				buf = buf[idx+2:]
				// Skip keepalive comments.
				if strings.HasPrefix(event, ":") {
					continue
				}
				return event, resp.Header, nil
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return "", nil, fmt.Errorf("sse stream closed before event")
			}
			return "", nil, fmt.Errorf("read sse: %w", readErr)
		}
	}
}

func sseData(t *testing.T, event string) string {
	t.Helper()
	for _, line := range strings.Split(event, "\n") {
		if strings.HasPrefix(line, "data:") {
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				t.Fatalf("empty sse data line")
			}
			return payload
		}
	}
	t.Fatalf("no data line in sse event: %q", event)
	return ""
}

func decodeJSONMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode json: %v\nbody=%s", err, string(body))
	}
	return payload
}

func requireString(t *testing.T, value any, field string) string {
	t.Helper()
	str, ok := value.(string)
	if !ok {
		t.Fatalf("expected %s to be string, got %T", field, value)
	}
	return str
}

func requireNumber(t *testing.T, value any, field string) float64 {
	t.Helper()
	num, ok := value.(float64)
	if !ok {
		t.Fatalf("expected %s to be number, got %T", field, value)
	}
	return num
}

func requireBool(t *testing.T, value any, field string) bool {
	t.Helper()
	b, ok := value.(bool)
	if !ok {
		t.Fatalf("expected %s to be bool, got %T", field, value)
	}
	return b
}

func requireMap(t *testing.T, value any, field string) map[string]any {
	t.Helper()
	m, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected %s to be object, got %T", field, value)
	}
	return m
}

func requireSlice(t *testing.T, value any, field string) []any {
	t.Helper()
	if value == nil {
		return nil
	}
	s, ok := value.([]any)
	if !ok {
		t.Fatalf("expected %s to be array, got %T", field, value)
	}
	return s
}

func assertGalleryItem(t *testing.T, item map[string]any, field string) {
	t.Helper()
	id := requireString(t, item["id"], field+".id")
	requireString(t, item["captured_at"], field+".captured_at")
	label := requireString(t, item["label"], field+".label")
	if len(label) != len("15:04:05") {
		t.Fatalf("%s.label = %q, want HH:MM:SS", field, label)
	}
	if requireNumber(t, item["size"], field+".size") <= 0 {
		t.Fatalf("%s.size must be positive", field)
	}
	if url := requireString(t, item["url"], field+".url"); url != "/api/gallery/"+id {
		t.Fatalf("%s.url = %q", field, url)
	}
	requireString(t, item["thumb_url"], field+".thumb_url")
}

func assertStatusPayload(t *testing.T, payload map[string]any) {
	t.Helper()
	requireNumber(t, payload["tick"], "tick")
	requireNumber(t, payload["timestamp"], "timestamp")
	requireBool(t, payload["sentry"], "sentry")
	requireString(t, payload["badge"], "badge")
	switch threat := requireString(t, payload["threat"], "threat"); threat {
	case "LOW", "ELEVATED", "HIGH":
	default:
		t.Fatalf("unexpected threat %q", threat)
	}

	det := requireMap(t, payload["detection"], "detection")
	requireBool(t, det["locked"], "detection.locked")
	requireNumber(t, det["faces"], "detection.faces")
	requireNumber(t, det["scan_line"], "detection.scan_line")

	tel := requireMap(t, payload["telemetry"], "telemetry")
	for _, k := range []string{"cpu", "ram", "net_mbps", "disk"} {
		requireNumber(t, tel[k], "telemetry."+k)
	}
	requireString(t, tel["net_label"], "telemetry.net_label")
	requireString(t, tel["disk_label"], "telemetry.disk_label")

	hist := requireMap(t, payload["history"], "history")
	for _, k := range []string{"cpu", "ram", "net"} {
		if n := len(requireSlice(t, hist[k], "history."+k)); n > 50 {
			t.Fatalf("history.%s has %d points, want at most 50", k, n)
		}
	}

	logs := requireSlice(t, payload["logs"], "logs")
	if len(logs) > 7 {
		t.Fatalf("logs has %d lines, want at most 7", len(logs))
	}
	for i, raw := range logs {
		line := requireMap(t, raw, fmt.Sprintf("logs[%d]", i))
		requireString(t, line["level"], fmt.Sprintf("logs[%d].level", i))
		requireString(t, line["text"], fmt.Sprintf("logs[%d].text", i))
	}

	gallery := requireSlice(t, payload["gallery"], "gallery")
	if len(gallery) > 6 {
		t.Fatalf("gallery has %d items, want at most 6", len(gallery))
	}
	for i, raw := range gallery {
		assertGalleryItem(t, requireMap(t, raw, fmt.Sprintf("gallery[%d]", i)), fmt.Sprintf("gallery[%d]", i))
	}
}
