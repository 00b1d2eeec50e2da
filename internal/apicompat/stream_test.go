package apicompat

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestLiveMJPEGStream(t *testing.T) {
	client := newLiveClient(t)
	resp := client.getResponse(t, "/stream")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /stream status = %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "multipart/x-mixed-replace") ||
		!strings.Contains(contentType, "boundary=frame") {
		t.Fatalf("GET /stream content-type = %q", contentType)
	}

	head := make([]byte, 64)
	n, err := resp.Body.Read(head)
	if err != nil && n == 0 {
		t.Fatalf("read first part: %v", err)
	}
	if !strings.HasPrefix(string(head[:n]), "--frame") {
		t.Fatalf("first part starts with %q", head[:n])
	}
}

func TestLiveStatusStream(t *testing.T) {
	client := newLiveClient(t)
	event, headers, err := readSSEEvent(client.baseURL+"/api/status/stream", nil, 3*time.Second)
	if err != nil {
		t.Fatalf("status stream error: %v", err)
	}
	if !strings.Contains(headers.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("status stream content-type = %q", headers.Get("Content-Type"))
	}
	assertStatusPayload(t, decodeJSONMap(t, []byte(sseData(t, event))))
}

func TestLiveStatusStreamProtobuf(t *testing.T) {
	client := newLiveClient(t)
	header := http.Header{"Accept": []string{"application/x-protobuf"}}
	event, _, err := readSSEEvent(client.baseURL+"/api/status/stream", header, 3*time.Second)
	if err != nil {
		t.Fatalf("status stream error: %v", err)
	}
	data := sseData(t, event)
	if json.Valid([]byte(data)) {
		t.Fatalf("expected base64 protobuf, got JSON")
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("empty protobuf payload")
	}
}
