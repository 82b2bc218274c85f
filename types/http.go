package types

import (
	"strings"
)

// Request is the narrow view of an inbound request the cache engine consumes.
// Query parameters keep their arrival order; header lookup is
// case-insensitive.
type Request struct {
	Method      string
	Path        string
	QueryParams []QueryParam
	headers     map[string]string
}

type QueryParam struct {
	Key   string
	Value string
}

func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		headers: make(map[string]string),
	}
}

func (r *Request) AddQueryParam(key, value string) *Request {
	r.QueryParams = append(r.QueryParams, QueryParam{Key: key, Value: value})
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[strings.ToLower(key)] = value
	return r
}

func (r *Request) Header(key string) (string, bool) {
	value, ok := r.headers[strings.ToLower(key)]
	return value, ok
}

// Response is the mutable view the engine stores and replays. Replaying a
// cached response always goes through Copy so stored headers are never
// mutated in place.
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
}

func NewResponse(statusCode int, body []byte) *Response {
	return &Response{
		StatusCode: statusCode,
		Headers:    make(map[string]string),
		Body:       body,
	}
}

func (r *Response) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) Copy() *Response {
	clone := &Response{
		StatusCode: r.StatusCode,
		Headers:    make(map[string]string, len(r.Headers)),
		Body:       append([]byte(nil), r.Body...),
	}
	for k, v := range r.Headers {
		clone.Headers[k] = v
	}
	return clone
}

// Handler is the downstream call contract: invoked at most once per request
// by the cache middleware. Errors propagate uncached.
type Handler func(req *Request) (*Response, error)

// Middleware is the sole hook the host framework calls.
type Middleware interface {
	Name() string
	Process(req *Request, next Handler) (*Response, error)
}
