package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/notionsync/internal/notion"
)

// errorBody is the JSON body of a failed API call.
type errorBody struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusError converts a non-2xx response into an *notion.APIError.
//
// 429, 409 and 5xx responses are transient; 429 carries the Retry-After
// hint. Every other status is permanent.
func statusError(resp *http.Response, body []byte) error {
	e := &notion.APIError{Status: resp.StatusCode}

	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Object == "error" {
		e.Code = eb.Code
		e.Message = eb.Message
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
		if len(e.Message) > 200 {
			e.Message = e.Message[:200]
		}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Transient = true
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		if e.Code == "" {
			e.Code = notion.CodeRateLimited
		}
	case resp.StatusCode == http.StatusConflict, resp.StatusCode >= 500:
		e.Transient = true
	case resp.StatusCode == http.StatusNotFound && e.Code == "":
		e.Code = notion.CodeNotFound
	case resp.StatusCode == http.StatusUnauthorized && e.Code == "":
		e.Code = notion.CodeUnauthorized
	case resp.StatusCode == http.StatusForbidden && e.Code == "":
		e.Code = notion.CodeRestricted
	}
	if e.Code == "" {
		e.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
	}
	return e
}

// parseRetryAfter accepts delay-seconds or an HTTP date. Unparseable or
// past values yield zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// transportError classifies a failure to get any response. The caller's
// context error is returned unchanged so cancellation is never retried; a
// client timeout is transient.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return &notion.APIError{Code: notion.CodeTimeout, Message: err.Error(), Transient: true, Err: err}
	}
	return &notion.APIError{Code: notion.CodeTransport, Message: err.Error(), Transient: true, Err: err}
}

// malformedResponse reports a 2xx body that could not be used.
func malformedResponse(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &notion.APIError{Code: notion.CodeMalformedResponse, Message: msg}
}
