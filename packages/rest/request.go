package rest

import (
	"net/url"
	"strings"
)

// DefaultMultipartFileParameterName is the form field name used for the
// uploaded file when none is configured on the request.
const DefaultMultipartFileParameterName = "file"

// Header is a single name/value pair. Requests and responses keep headers as
// ordered slices so duplicates and insertion order survive.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Request describes one REST call. Method and Resource are mandatory; the
// client never modifies a Request it is given.
type Request struct {
	Method            Method
	Resource          string
	Query             string
	Headers           []Header
	Body              string
	FileName          string
	MultipartFileName string

	// MultipartFileParameterName is the form field carrying the multipart
	// file. Empty means DefaultMultipartFileParameterName.
	MultipartFileParameterName string

	// TransactionID correlates a request with its response and history
	// record. The client generates one when empty.
	TransactionID string

	// FollowRedirect controls redirect handling for this request only.
	// Nil means follow.
	FollowRedirect *bool
}

func NewRequest(method Method, resource string) *Request {
	return &Request{
		Method:   method,
		Resource: resource,
	}
}

func (r *Request) AddHeader(name, value string) *Request {
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
	return r
}

func (r *Request) SetQuery(query string) *Request {
	r.Query = query
	return r
}

func (r *Request) SetBody(body string) *Request {
	r.Body = body
	return r
}

func (r *Request) SetFileName(name string) *Request {
	r.FileName = name
	return r
}

func (r *Request) SetMultipartFileName(name string) *Request {
	r.MultipartFileName = name
	return r
}

func (r *Request) SetMultipartFileParameterName(name string) *Request {
	r.MultipartFileParameterName = name
	return r
}

func (r *Request) SetTransactionID(id string) *Request {
	r.TransactionID = id
	return r
}

func (r *Request) SetFollowRedirect(follow bool) *Request {
	r.FollowRedirect = &follow
	return r
}

// IsValid reports whether the mandatory fields are set.
func (r *Request) IsValid() bool {
	return r != nil && r.Method != "" && r.Resource != ""
}

// Header returns the first value of the named header, matched case-insensitively.
func (r *Request) Header(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// HasHeader reports whether the named header was added, even with an empty value.
func (r *Request) HasHeader(name string) bool {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

func (r *Request) followRedirect() bool {
	if r.FollowRedirect == nil {
		return true
	}
	return *r.FollowRedirect
}

func (r *Request) multipartParameter() string {
	if r.MultipartFileParameterName == "" {
		return DefaultMultipartFileParameterName
	}
	return r.MultipartFileParameterName
}

// ParseFormBody splits a form-encoded body into ordered name/value pairs.
// Segments without '=' are ignored.
func ParseFormBody(body string) []Header {
	var result []Header
	if body == "" {
		return result
	}
	pairs := strings.Split(body, "&")
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			key, _ := url.QueryUnescape(kv[0])
			value, _ := url.QueryUnescape(kv[1])
			result = append(result, Header{Name: key, Value: value})
		}
	}
	return result
}
