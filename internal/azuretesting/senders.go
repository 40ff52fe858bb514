// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package azuretesting

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/juju/errors"
)

// Body implements io.ReadCloser over a byte slice, and can be reopened
// so that a queued response may be served more than once.
type Body struct {
	src    []byte
	reader io.Reader
}

// NewBody returns a Body with the given content.
func NewBody(content string) *Body {
	return &Body{src: []byte(content), reader: bytes.NewReader([]byte(content))}
}

// Read implements io.Reader.
func (b *Body) Read(p []byte) (int, error) {
	return b.reader.Read(p)
}

// Close implements io.Closer.
func (b *Body) Close() error {
	return nil
}

// reopen resets the body so it can be read again.
func (b *Body) reopen() {
	b.reader = bytes.NewReader(b.src)
}

// NewResponseWithContent returns an HTTP 200 response with the given body.
func NewResponseWithContent(content string) *http.Response {
	return NewResponseWithBodyAndStatus(NewBody(content), http.StatusOK, "OK")
}

// NewResponseWithStatus returns an empty response with the given status.
func NewResponseWithStatus(status string, code int) *http.Response {
	return NewResponseWithBodyAndStatus(NewBody(""), code, status)
}

// NewResponseWithBodyAndStatus returns a response with the given body and status.
func NewResponseWithBodyAndStatus(body *Body, code int, status string) *http.Response {
	return &http.Response{
		Status:        status,
		StatusCode:    code,
		Proto:         "HTTP/1.0",
		ProtoMajor:    1,
		Body:          body,
		ContentLength: int64(len(body.src)),
		Header:        http.Header{"Content-Type": []string{"application/json"}},
	}
}

// MockSender is a policy.Transporter that replays a queue of canned
// responses. It is handed to ARM clients via arm.ClientOptions.Transport.
type MockSender struct {
	// PathPattern, if non-empty, is matched (path.Match) against the
	// request URL path before a response is served.
	PathPattern string

	mu        sync.Mutex
	responses []queuedResponse
}

type queuedResponse struct {
	resp   *http.Response
	repeat int
}

// AppendResponse queues a response to be served once.
func (s *MockSender) AppendResponse(resp *http.Response) {
	s.AppendAndRepeatResponse(resp, 1)
}

// AppendAndRepeatResponse queues a response to be served n times.
func (s *MockSender) AppendAndRepeatResponse(resp *http.Response, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, queuedResponse{resp: resp, repeat: n})
}

// Do implements policy.Transporter.
func (s *MockSender) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PathPattern != "" {
		matched, err := path.Match(s.PathPattern, req.URL.Path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if !matched {
			return nil, errors.Errorf(
				"request path %q did not match pattern %q",
				req.URL.Path, s.PathPattern,
			)
		}
	}
	if len(s.responses) == 0 {
		return nil, errors.Errorf("no queued response for %q", req.URL)
	}
	next := &s.responses[0]
	resp := next.resp
	if body, ok := resp.Body.(*Body); ok {
		body.reopen()
	}
	next.repeat--
	if next.repeat <= 0 {
		s.responses = s.responses[1:]
	}
	resp.Request = req
	return resp, nil
}

// NewSenderWithValue returns a MockSender primed with the JSON encoding
// of the given value.
func NewSenderWithValue(v interface{}) *MockSender {
	content, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	sender := &MockSender{}
	sender.AppendResponse(NewResponseWithContent(string(content)))
	return sender
}

// Senders is a policy.Transporter that hands each request to the next
// sender in the list, so a test can script a sequence of API exchanges.
type Senders struct {
	mu      sync.Mutex
	senders []policy.Transporter
}

// NewSenders returns a Senders serving the given transporters in order.
func NewSenders(senders ...policy.Transporter) *Senders {
	return &Senders{senders: senders}
}

// Append adds transporters to the end of the sequence.
func (s *Senders) Append(senders ...policy.Transporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.senders = append(s.senders, senders...)
}

// Do implements policy.Transporter.
func (s *Senders) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	if len(s.senders) == 0 {
		s.mu.Unlock()
		return nil, errors.Errorf("no queued sender for %q", req.URL)
	}
	sender := s.senders[0]
	if ms, ok := sender.(*MockSender); !ok || len(ms.responses) <= 1 {
		s.senders = s.senders[1:]
	}
	s.mu.Unlock()
	return sender.Do(req)
}
