package fetchkit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPTransportBasicRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("Expected GET method, got %s", r.Method)
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("Expected page=2 query param, got %q", got)
		}
		if got := r.Header.Get("X-Token"); got != "abc" {
			t.Errorf("Expected X-Token header, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"ok":true}`)); err != nil {
			t.Fatalf("Failed to write response: %v", err)
		}
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	resp, err := transport.RoundTrip(context.Background(), &Request{
		Method:      "GET",
		URL:         server.URL,
		Headers:     map[string]string{"X-Token": "abc"},
		QueryParams: map[string]string{"page": "2"},
	})
	if err != nil {
		t.Fatalf("RoundTrip failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Unexpected body: %s", resp.Body)
	}
}

func TestHTTPTransportPostBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		buf, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("reading request body: %v", err)
		}
		if string(buf) != `{"a":1}` {
			t.Errorf("Unexpected request body: %s", buf)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	resp, err := transport.RoundTrip(context.Background(), &Request{
		Method: "POST",
		URL:    server.URL,
		Body:   []byte(`{"a":1}`),
	})
	if err != nil {
		t.Fatalf("RoundTrip failed: %v", err)
	}
	if resp.StatusCode != 201 {
		t.Errorf("Expected status 201, got %d", resp.StatusCode)
	}
}

func TestHTTPTransportServerErrorCarriesMessageField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		if _, err := w.Write([]byte(`{"message":"upstream on fire","code":500}`)); err != nil {
			t.Fatalf("Failed to write response: %v", err)
		}
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	_, err := transport.RoundTrip(context.Background(), &Request{Method: "GET", URL: server.URL})
	if err == nil {
		t.Fatal("expected an error for HTTP 500")
	}

	var fkErr *Error
	if !errors.As(err, &fkErr) {
		t.Fatalf("error is %T, want *Error", err)
	}
	if fkErr.Type != ErrorTypeServer {
		t.Errorf("error type %q, want %q", fkErr.Type, ErrorTypeServer)
	}
	if fkErr.StatusCode != 500 {
		t.Errorf("status code %d, want 500", fkErr.StatusCode)
	}
	if fkErr.ServerMessage != "upstream on fire" {
		t.Errorf("server message %q, want the message field", fkErr.ServerMessage)
	}
}

func TestHTTPTransportCancellationIsDistinguishable(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	transport := NewHTTPTransport(nil)
	_, err := transport.RoundTrip(ctx, &Request{Method: "GET", URL: server.URL})
	if err == nil {
		t.Fatal("expected an error for a canceled call")
	}
	if !IsCanceled(err) {
		t.Errorf("IsCanceled(%v) = false, cancellation must be distinguishable", err)
	}
}

func TestHTTPTransportTimeoutIsAFailureNotACancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	transport := NewHTTPTransport(nil)
	_, err := transport.RoundTrip(ctx, &Request{Method: "GET", URL: server.URL})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if IsCanceled(err) {
		t.Error("a deadline expiry must not classify as cancellation")
	}

	var fkErr *Error
	if !errors.As(err, &fkErr) || fkErr.Type != ErrorTypeTimeout {
		t.Errorf("error = %v, want a Timeout *Error", err)
	}
}

func TestHTTPTransportCredentialsSelectCookieJar(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		switch hits {
		case 1:
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s3cret"})
		default:
			cookie, err := r.Cookie("session")
			if err != nil || cookie.Value != "s3cret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	req := &Request{Method: "GET", URL: server.URL, Credentials: true}

	if _, err := transport.RoundTrip(context.Background(), req); err != nil {
		t.Fatalf("first credentialed call failed: %v", err)
	}
	if _, err := transport.RoundTrip(context.Background(), req); err != nil {
		t.Errorf("second credentialed call did not replay the cookie: %v", err)
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		target string
		want   string
	}{
		{"no base", "", "/items", "/items"},
		{"base and path", "http://api.test", "/items", "http://api.test/items"},
		{"base with trailing slash", "http://api.test/", "items", "http://api.test/items"},
		{"absolute target wins", "http://api.test", "https://other.test/x", "https://other.test/x"},
		{"empty target", "http://api.test/", "", "http://api.test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinURL(tt.base, tt.target); got != tt.want {
				t.Errorf("joinURL(%q, %q) = %q, want %q", tt.base, tt.target, got, tt.want)
			}
		})
	}
}
