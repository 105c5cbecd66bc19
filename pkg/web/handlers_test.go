package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/weighcam/weighstation/pkg/camera"
	"github.com/weighcam/weighstation/pkg/capture"
	"github.com/weighcam/weighstation/pkg/conn"
	"github.com/weighcam/weighstation/pkg/weighbridge"
)

func testServer() *Server {
	s := NewServer("0")
	s.OnStatus = func() map[string]conn.Status {
		return map[string]conn.Status{
			"camera1":     {State: conn.Connected},
			"camera2":     {State: conn.Failed, Reason: "connection refused"},
			"weighbridge": {State: conn.Connected},
		}
	}
	s.OnWeight = func() (weighbridge.Reading, bool) {
		return weighbridge.Reading{Value: 1250.5, Unit: "kg", Valid: true, Timestamp: time.Now()}, true
	}
	s.OnFrame = func(id string) (camera.Frame, bool) {
		if id != "camera1" {
			return camera.Frame{}, false
		}
		return camera.Frame{Data: []byte("jpeg-bytes"), Timestamp: time.Now(), Source: id}, true
	}
	s.OnCapture = func() []capture.Result {
		ts := time.Now()
		return []capture.Result{
			{Source: "camera1", Path: "/captures/camera1_x.jpg", Timestamp: ts},
			{Source: "camera2", Timestamp: ts, Err: errors.New("no frame available")},
		}
	}
	return s
}

func TestHandleStatus(t *testing.T) {
	s := testServer()

	resp, err := s.app.Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Connections) != 3 {
		t.Errorf("connections = %d, want 3", len(body.Connections))
	}
	if got := body.Connections["camera2"]; got.State != conn.Failed || got.Reason == "" {
		t.Errorf("camera2 status = %+v, want failed with reason", got)
	}
	if body.Weight == nil || body.Weight.Value != 1250.5 {
		t.Errorf("weight = %+v, want 1250.5", body.Weight)
	}
}

func TestHandleFrame(t *testing.T) {
	s := testServer()

	resp, err := s.app.Test(httptest.NewRequest("GET", "/api/frame/camera1", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "jpeg-bytes" {
		t.Errorf("body = %q, want frame bytes", data)
	}
}

func TestHandleFrameNotReady(t *testing.T) {
	s := testServer()

	resp, err := s.app.Test(httptest.NewRequest("GET", "/api/frame/camera2", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404 for empty cell", resp.StatusCode)
	}
}

// A capture with one camera down still returns the full result set.
func TestHandleCapturePartialFailure(t *testing.T) {
	s := testServer()

	resp, err := s.app.Test(httptest.NewRequest("POST", "/api/capture", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var entries []CaptureEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Error != "" || entries[0].Path == "" {
		t.Errorf("camera1 entry = %+v, want success with path", entries[0])
	}
	if entries[1].Error == "" {
		t.Errorf("camera2 entry = %+v, want error populated", entries[1])
	}
}

func TestUnwiredEndpointsReturn503(t *testing.T) {
	s := NewServer("0")

	for _, tc := range []struct{ method, path string }{
		{"POST", "/api/capture"},
		{"POST", "/api/connect"},
		{"POST", "/api/connect/camera1"},
		{"POST", "/api/disconnect/camera1"},
		{"GET", "/api/frame/camera1"},
	} {
		resp, err := s.app.Test(httptest.NewRequest(tc.method, tc.path, nil))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != 503 {
			t.Errorf("%s %s = %d, want 503 when unwired", tc.method, tc.path, resp.StatusCode)
		}
	}
}
