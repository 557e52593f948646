package fetchkit

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	ctrl := New(WithURL(testURL))

	if !ctrl.IsValid() {
		t.Fatalf("default configuration should validate: %v", ctrl.ValidationError())
	}
	if ctrl.method != http.MethodGet {
		t.Errorf("default method = %q, want GET", ctrl.method)
	}
	if ctrl.timeout != DefaultTimeout {
		t.Errorf("default timeout = %v, want %v", ctrl.timeout, DefaultTimeout)
	}
	if ctrl.debounce != DefaultDebounce {
		t.Errorf("default debounce = %v, want %v", ctrl.debounce, DefaultDebounce)
	}
	if ctrl.retry != 0 {
		t.Errorf("default retry = %d, want 0", ctrl.retry)
	}
	if !ctrl.autoFetch {
		t.Error("auto-fetch should default to enabled")
	}
	if ctrl.autoRefresh != 0 {
		t.Errorf("default autoRefresh = %v, want disabled", ctrl.autoRefresh)
	}
	if ctrl.credentials {
		t.Error("credentials should default to excluded")
	}
	if ctrl.transport == nil {
		t.Error("a default transport must be installed")
	}
	if ctrl.dialer == nil {
		t.Error("a default dialer must be installed")
	}
	if ctrl.SocketState() != SocketClosed {
		t.Errorf("HTTP mode state = %v, want closed", ctrl.SocketState())
	}
}

func TestOptionsApply(t *testing.T) {
	ctrl := New(
		WithBaseURL("http://api.test"),
		WithURL("/items"),
		WithMethod(http.MethodPost),
		WithBody([]byte(`{"x":1}`)),
		WithHeader("X-A", "1"),
		WithHeader("X-B", "2"),
		WithQueryParam("q", "v"),
		WithCredentials(true),
		WithTimeout(2*time.Second),
		WithRetry(4),
		WithDebounce(50*time.Millisecond),
		WithAutoRefresh(time.Second),
		WithAutoFetch(false),
	)

	if !ctrl.IsValid() {
		t.Fatalf("configuration should validate: %v", ctrl.ValidationError())
	}
	if ctrl.baseURL != "http://api.test" || ctrl.url != "/items" {
		t.Errorf("url config = %q + %q", ctrl.baseURL, ctrl.url)
	}
	if ctrl.method != http.MethodPost {
		t.Errorf("method = %q, want POST", ctrl.method)
	}
	if ctrl.headers["X-A"] != "1" || ctrl.headers["X-B"] != "2" {
		t.Errorf("headers not merged: %v", ctrl.headers)
	}
	if ctrl.queryParams["q"] != "v" {
		t.Errorf("query params = %v", ctrl.queryParams)
	}
	if !ctrl.credentials {
		t.Error("credentials flag not applied")
	}
	if ctrl.timeout != 2*time.Second || ctrl.retry != 4 {
		t.Errorf("timeout=%v retry=%d", ctrl.timeout, ctrl.retry)
	}
	if ctrl.debounce != 50*time.Millisecond || ctrl.autoRefresh != time.Second {
		t.Errorf("debounce=%v autoRefresh=%v", ctrl.debounce, ctrl.autoRefresh)
	}
	if ctrl.autoFetch {
		t.Error("auto-fetch should be disabled")
	}
}

func TestWithJSONBodyMarshalsValue(t *testing.T) {
	ctrl := New(
		WithURL(testURL),
		WithMethod(http.MethodPost),
		WithJSONBody(map[string]int{"count": 3}),
	)

	if !ctrl.IsValid() {
		t.Fatalf("configuration should validate: %v", ctrl.ValidationError())
	}
	if string(ctrl.body) != `{"count":3}` {
		t.Errorf("body = %s, want marshaled JSON", ctrl.body)
	}
}

func TestWithJSONBodyMarshalFailureInvalidates(t *testing.T) {
	ctrl := New(
		WithURL(testURL),
		WithMethod(http.MethodPost),
		WithJSONBody(make(chan int)),
	)

	if ctrl.IsValid() {
		t.Fatal("an unmarshalable body should fail validation")
	}
	if err := ctrl.ValidationError(); err == nil || !strings.Contains(err.Error(), "body encoding failed") {
		t.Errorf("validation error = %v, want body encoding failure", err)
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		wantIn  string
	}{
		{
			name:    "no target at all",
			options: nil,
			wantIn:  "must be set",
		},
		{
			name:    "unsupported method",
			options: []Option{WithURL(testURL), WithMethod("PATCH")},
			wantIn:  "unsupported method",
		},
		{
			name:    "negative retry",
			options: []Option{WithURL(testURL), WithRetry(-1)},
			wantIn:  "retry must be non-negative",
		},
		{
			name:    "negative debounce",
			options: []Option{WithURL(testURL), WithDebounce(-time.Second)},
			wantIn:  "debounce must be non-negative",
		},
		{
			name:    "zero timeout",
			options: []Option{WithURL(testURL), WithTimeout(0)},
			wantIn:  "timeout must be positive",
		},
		{
			name:    "nil transport",
			options: []Option{WithURL(testURL), WithTransport(nil)},
			wantIn:  "transport cannot be nil",
		},
		{
			name:    "nil dialer in connection mode",
			options: []Option{WithSocketURL(testSocketURL), WithDialer(nil)},
			wantIn:  "dialer cannot be nil",
		},
		{
			name:    "excessive retry",
			options: []Option{WithURL(testURL), WithRetry(101)},
			wantIn:  "retry > 100",
		},
		{
			name:    "excessive timeout",
			options: []Option{WithURL(testURL), WithTimeout(11 * time.Minute)},
			wantIn:  "timeout > 10m",
		},
		{
			name:    "sub-100ms auto refresh",
			options: []Option{WithURL(testURL), WithAutoRefresh(50 * time.Millisecond)},
			wantIn:  "autoRefresh < 100ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := New(tt.options...)
			if ctrl.IsValid() {
				t.Fatal("expected validation to fail")
			}
			err := ctrl.ValidationError()

			var fkErr *Error
			if !errors.As(err, &fkErr) || fkErr.Type != ErrorTypeValidation {
				t.Fatalf("validation error = %v, want a Validation *Error", err)
			}
			if !strings.Contains(err.Error(), tt.wantIn) && !strings.Contains(fkErr.Cause.Error(), tt.wantIn) {
				t.Errorf("validation error %q does not mention %q", fkErr.Cause, tt.wantIn)
			}
		})
	}
}

func TestUpdateRevalidates(t *testing.T) {
	ctrl := New(WithURL(testURL))
	if !ctrl.IsValid() {
		t.Fatalf("initial configuration should validate: %v", ctrl.ValidationError())
	}

	ctrl.Update(WithMethod("TRACE"))
	if ctrl.IsValid() {
		t.Fatal("update to an unsupported method should invalidate")
	}

	ctrl.Update(WithMethod(http.MethodPut))
	if !ctrl.IsValid() {
		t.Errorf("fixing the method should restore validity: %v", ctrl.ValidationError())
	}
}

func TestWithRequestIDGenerator(t *testing.T) {
	ctrl := New(
		WithURL(testURL),
		WithRequestIDGenerator(func() string { return "fixed-id" }),
	)

	if ctrl.debug == nil || ctrl.debug.RequestIDGen == nil {
		t.Fatal("generator was not installed")
	}
	if got := ctrl.debug.RequestIDGen(); got != "fixed-id" {
		t.Errorf("RequestIDGen() = %q, want fixed-id", got)
	}
}

func TestWithDebugRequiresLogger(t *testing.T) {
	ctrl := New(WithURL(testURL), WithDebug())
	if ctrl.IsValid() {
		t.Fatal("debug without a logger should fail validation")
	}

	ctrl = New(WithURL(testURL), WithDebug(), WithLogger(NewSimpleLogger()))
	if !ctrl.IsValid() {
		t.Errorf("debug with a logger should validate: %v", ctrl.ValidationError())
	}
}

func TestWithSimpleLoggerEnablesDebug(t *testing.T) {
	ctrl := New(WithURL(testURL), WithSimpleLogger())

	if !ctrl.IsValid() {
		t.Fatalf("configuration should validate: %v", ctrl.ValidationError())
	}
	if !ctrl.debugEnabled() {
		t.Error("simple logger option should enable debug diagnostics")
	}
}
