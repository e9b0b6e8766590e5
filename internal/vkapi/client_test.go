package vkapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/vkgate/vkgate/internal/message"
)

func TestClientCall(t *testing.T) {
	var capturedPath string
	var capturedForm url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		capturedForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"count":1,"items":[{"id":10}]}}`))
	}))
	defer srv.Close()

	client := NewClient(nil, Config{Token: "token-1", BaseURL: srv.URL, Version: "5.199"})
	raw, err := client.Call(context.Background(), "messages.getById", message.Params{
		"message_ids": int64(10),
		"extended":    true,
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	if capturedPath != "/messages.getById" {
		t.Errorf("expected method path /messages.getById, got %s", capturedPath)
	}
	if capturedForm.Get("access_token") != "token-1" {
		t.Errorf("expected access_token, got %q", capturedForm.Get("access_token"))
	}
	if capturedForm.Get("v") != "5.199" {
		t.Errorf("expected version, got %q", capturedForm.Get("v"))
	}
	if capturedForm.Get("message_ids") != "10" {
		t.Errorf("expected message_ids=10, got %q", capturedForm.Get("message_ids"))
	}
	if capturedForm.Get("extended") != "1" {
		t.Errorf("booleans must encode as 0/1, got %q", capturedForm.Get("extended"))
	}

	var page struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		t.Fatalf("decode response payload: %v", err)
	}
	if page.Count != 1 {
		t.Fatalf("expected count 1, got %d", page.Count)
	}
}

func TestClientCallAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":{"error_code":9,"error_msg":"Flood control","request_params":[{"key":"method","value":"messages.send"}]}}`))
	}))
	defer srv.Close()

	client := NewClient(nil, Config{Token: "t", BaseURL: srv.URL})
	_, err := client.Call(context.Background(), "messages.send", message.Params{"peer_id": int64(1)})
	if err == nil {
		t.Fatalf("expected an api error")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Code != CodeFloodControl {
		t.Fatalf("expected code %d, got %d", CodeFloodControl, apiErr.Code)
	}
	if !IsCode(err, CodeFloodControl) {
		t.Fatalf("IsCode must match the rejection code")
	}
	if IsCode(err, CodeAuthFailed) {
		t.Fatalf("IsCode must not match a different code")
	}
	if !strings.Contains(apiErr.Error(), "Flood control") {
		t.Fatalf("error text must carry the api message, got %q", apiErr.Error())
	}
}

func TestClientCallHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(nil, Config{Token: "t", BaseURL: srv.URL})
	_, err := client.Call(context.Background(), "messages.send", nil)
	if err == nil || !strings.Contains(err.Error(), "status: 502") {
		t.Fatalf("expected status error, got %v", err)
	}
	if IsCode(err, CodeFloodControl) {
		t.Fatalf("transport failures must not read as api rejections")
	}
}

func TestClientCallContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(nil, Config{Token: "t", BaseURL: srv.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Call(ctx, "messages.send", nil); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "hello", "hello"},
		{"true", true, "1"},
		{"false", false, "0"},
		{"int", 7, "7"},
		{"int64", int64(-42), "-42"},
		{"float", 59.93, "59.93"},
		{"slice as json", []int{1, 2}, "[1,2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := encodeValue(tt.value)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
