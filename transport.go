package fetchkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// HTTPTransport is the default Transport built on net/http. The credential
// inclusion flag selects a client that carries a cookie jar, the Go analog
// of a credentialed browser fetch.
type HTTPTransport struct {
	client     *http.Client
	credClient *http.Client
}

// NewHTTPTransport wraps base (or a zero-value http.Client when nil). The
// per-attempt timeout comes from the context, not from http.Client.Timeout.
func NewHTTPTransport(base *http.Client) *HTTPTransport {
	if base == nil {
		base = &http.Client{}
	}
	cred := *base
	if cred.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err == nil {
			cred.Jar = jar
		}
	}
	return &HTTPTransport{client: base, credClient: &cred}
}

// RoundTrip performs one HTTP call described by req. Cancellation surfaces
// as an error satisfying IsCanceled; non-2xx responses surface as an *Error
// of type Server carrying any server-supplied message field.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, &Error{Type: ErrorTypeValidation, Message: "invalid request url", Cause: err, URL: req.URL, Timestamp: time.Now()}
	}
	if len(req.QueryParams) > 0 {
		q := u.Query()
		for k, v := range req.QueryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if method != http.MethodGet && len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &Error{Type: ErrorTypeValidation, Message: "building request failed", Cause: err, URL: u.String(), Timestamp: time.Now()}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	client := t.client
	if req.Credentials {
		client = t.credClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if IsCanceled(err) {
			return nil, err
		}
		typ := ErrorTypeNetwork
		msg := "network request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			typ = ErrorTypeTimeout
			msg = "request timed out"
		}
		return nil, &Error{Type: typ, Message: msg, Cause: err, URL: u.String(), Timestamp: time.Now()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if IsCanceled(err) {
			return nil, err
		}
		return nil, &Error{Type: ErrorTypeNetwork, Message: "reading response failed", Cause: err, URL: u.String(), StatusCode: resp.StatusCode, Timestamp: time.Now()}
	}

	if resp.StatusCode >= 400 {
		e := &Error{
			Type:       ErrorTypeServer,
			Message:    fmt.Sprintf("server returned HTTP %d", resp.StatusCode),
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Timestamp:  time.Now(),
		}
		if msg := gjson.GetBytes(data, "message"); msg.Exists() && msg.String() != "" {
			e.ServerMessage = msg.String()
		}
		return nil, e
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// joinURL resolves target against base. An absolute target wins; an empty
// base passes the target through untouched.
func joinURL(base, target string) string {
	if base == "" {
		return target
	}
	if strings.Contains(target, "://") {
		return target
	}
	b := strings.TrimRight(base, "/")
	if target == "" {
		return b
	}
	if strings.HasPrefix(target, "/") {
		return b + target
	}
	return b + "/" + target
}
