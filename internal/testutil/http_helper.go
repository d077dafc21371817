package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/qolzam/telar/apps/relay/internal/auth/signature"
	"github.com/qolzam/telar/apps/relay/internal/types"
)

// ForwardedForHeader is the proxy header test apps trust for the client IP.
const ForwardedForHeader = "X-Forwarded-For"

// HTTPHelper provides a robust way to make HTTP requests in tests.
// It enforces error checking and provides a fluent API for building requests.
type HTTPHelper struct {
	t   *testing.T
	app *fiber.App
}

// NewHTTPHelper creates a new test helper for a given Fiber app.
func NewHTTPHelper(t *testing.T, app *fiber.App) *HTTPHelper {
	require.NotNil(t, app, "Fiber app provided to HTTPHelper cannot be nil")
	return &HTTPHelper{
		t:   t,
		app: app,
	}
}

// FormFile is a file part of a multipart request.
type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Content     []byte
}

// Request represents a test request under construction.
type Request struct {
	helper     *HTTPHelper
	method     string
	path       string
	bodyBytes  []byte
	bodyReader io.Reader
	headers    http.Header
}

// NewRequest begins building a new test request with a raw body.
func (h *HTTPHelper) NewRequest(method, path string, body []byte) *Request {
	return &Request{
		helper:     h,
		method:     method,
		path:       path,
		bodyBytes:  body,
		bodyReader: bytes.NewReader(body),
		headers:    make(http.Header),
	}
}

// WithHeader adds a header to the request.
func (r *Request) WithHeader(key, value string) *Request {
	r.headers.Add(key, value)
	return r
}

// WithClientIP sets the address the app sees as the client.
func (r *Request) WithClientIP(ip string) *Request {
	r.headers.Set(ForwardedForHeader, ip)
	return r
}

// WithOrigin sets the Origin header.
func (r *Request) WithOrigin(origin string) *Request {
	r.headers.Set(types.HeaderOrigin, origin)
	return r
}

// AsMultipartForm configures the request to be sent as multipart/form-data.
func (r *Request) AsMultipartForm(formData map[string]string, files ...FormFile) *Request {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for key, val := range formData {
		require.NoError(r.helper.t, writer.WriteField(key, val))
	}

	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, file.Field, file.Filename))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set(types.HeaderContentType, contentType)

		part, err := writer.CreatePart(header)
		require.NoError(r.helper.t, err)
		_, err = part.Write(file.Content)
		require.NoError(r.helper.t, err)
	}

	require.NoError(r.helper.t, writer.Close())

	r.bodyBytes = body.Bytes()
	r.bodyReader = bytes.NewReader(r.bodyBytes)
	r.headers.Set(types.HeaderContentType, writer.FormDataContentType())
	return r
}

// AsURLEncodedForm configures the request as application/x-www-form-urlencoded.
func (r *Request) AsURLEncodedForm(formData map[string]string) *Request {
	values := url.Values{}
	for key, val := range formData {
		values.Set(key, val)
	}
	r.bodyBytes = []byte(values.Encode())
	r.bodyReader = bytes.NewReader(r.bodyBytes)
	r.headers.Set(types.HeaderContentType, fiber.MIMEApplicationForm)
	return r
}

// Send executes the request and returns the response.
func (r *Request) Send() *http.Response {
	req := httptest.NewRequest(r.method, r.path, r.bodyReader)
	req.Header = r.headers

	// Use a reasonable default timeout to prevent tests from hanging.
	resp, err := r.helper.app.Test(req, int(10*time.Second.Milliseconds()))
	require.NoError(r.helper.t, err, "app.Test should not return an error")
	require.NotNil(r.helper.t, resp, "app.Test response should not be nil")

	return resp
}

// DecodeJSON reads resp's body into a map.
func DecodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// SignedForm returns relay form fields for payload signed with secret at
// timestamp (epoch ms).
func SignedForm(t *testing.T, secret string, payload map[string]any, timestamp int64) map[string]string {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	sig, err := signature.NewVerifier(secret).Sign(string(raw), timestamp)
	require.NoError(t, err)

	return map[string]string{
		types.FieldTo:        "ops@example.com",
		types.FieldSubject:   "New contact request",
		types.FieldText:      "A visitor filled in the contact form.",
		types.FieldPayload:   string(raw),
		types.FieldTimestamp: strconv.FormatInt(timestamp, 10),
		types.FieldSignature: sig,
	}
}
