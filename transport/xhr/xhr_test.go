package xhr

import (
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/volley/transport"
)

// fakeXHR records what the transport does and completes on demand.
type fakeXHR struct {
	method, url     string
	headers         map[string]string
	withCredentials bool
	responseType    string
	sent            []byte
	aborted         bool

	readyState int
	status     int
	rawHeaders string
	body       []byte

	onChange   func()
	onProgress func(loaded, total int64)
}

func (f *fakeXHR) Open(method, url string) {
	f.method, f.url = method, url
	f.readyState = 1
}

func (f *fakeXHR) SetRequestHeader(field, v string) { f.headers[field] = v }
func (f *fakeXHR) SetWithCredentials(b bool) { f.withCredentials = b }
func (f *fakeXHR) SetResponseType(s string) { f.responseType = s }
func (f *fakeXHR) OnReadyStateChange(fn func()) { f.onChange = fn }
func (f *fakeXHR) OnUploadProgress(fn func(l, t int64)) { f.onProgress = fn }
func (f *fakeXHR) Send(body []byte) { f.sent = body }
func (f *fakeXHR) ReadyState() int { return f.readyState }
func (f *fakeXHR) Status() int { return f.status }
func (f *fakeXHR) GetAllResponseHeaders() string { return f.rawHeaders }
func (f *fakeXHR) Response() []byte { return f.body }

func (f *fakeXHR) Abort() {
	f.aborted = true
	f.complete(0)
}

func (f *fakeXHR) complete(status int) {
	f.readyState = 2
	f.onChange()
	f.readyState = StateDone
	f.status = status
	f.onChange()
}

func open(t *testing.T, req *transport.Request) (*fakeXHR, transport.Handle, *[]*transport.Response, *[]transport.Progress) {
	t.Helper()
	x := &fakeXHR{headers: make(map[string]string)}
	var responses []*transport.Response
	var progress []transport.Progress

	h := New(func() XHR { return x }).Open(req, transport.Listener{
		OnResponse: func(res *transport.Response) { responses = append(responses, res) },
		OnError:    func(err error) { t.Fatalf("unexpected error: %v", err) },
		OnProgress: func(p transport.Progress) { progress = append(progress, p) },
	})
	return x, h, &responses, &progress
}

func TestTransport_Open(t *testing.T) {
	u, _ := url.Parse("http://example.com:8080/users?page=2")
	x, _, responses, _ := open(t, &transport.Request{
		Method:          "POST",
		URL:             u,
		Header:          http.Header{"Content-Type": {"application/json"}},
		Body:            []byte(`{"name":"tobi"}`),
		WithCredentials: true,
	})

	assert.Equal(t, "POST", x.method)
	assert.Equal(t, "http://example.com:8080/users?page=2", x.url)
	assert.Equal(t, "application/json", x.headers["Content-Type"])
	assert.Equal(t, `{"name":"tobi"}`, string(x.sent))
	assert.True(t, x.withCredentials)
	assert.Empty(t, x.responseType)

	x.rawHeaders = "Content-Type: application/json; charset=utf-8\r\nX-Id: 7\r\n"
	x.body = []byte(`{"ok":true}`)
	x.complete(201)

	require.Len(t, *responses, 1, "only the DONE state produces a response")
	res := (*responses)[0]
	assert.Equal(t, 201, res.StatusCode)
	assert.Equal(t, "7", res.Header.Get("X-Id"))
	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, `{"ok":true}`, string(body))
}

func TestTransport_BinaryResponseType(t *testing.T) {
	u, _ := url.Parse("http://example.com/image")
	x, _, _, _ := open(t, &transport.Request{Method: "GET", URL: u, Binary: true})
	assert.Equal(t, "arraybuffer", x.responseType)
}

func TestTransport_StatusZero(t *testing.T) {
	u, _ := url.Parse("http://other-origin.test/")
	x, _, responses, _ := open(t, &transport.Request{Method: "GET", URL: u})

	x.complete(0)

	require.Len(t, *responses, 1)
	assert.Equal(t, 0, (*responses)[0].StatusCode)
}

func TestTransport_Abort(t *testing.T) {
	u, _ := url.Parse("http://example.com/slow")
	x, h, responses, _ := open(t, &transport.Request{Method: "GET", URL: u})

	h.Abort()

	assert.True(t, x.aborted)
	require.Len(t, *responses, 1)
	assert.Equal(t, 0, (*responses)[0].StatusCode)
}

func TestTransport_UploadProgress(t *testing.T) {
	u, _ := url.Parse("http://example.com/upload")
	x, _, _, progress := open(t, &transport.Request{Method: "PUT", URL: u, Body: []byte("0123456789")})

	x.onProgress(5, 10)
	x.onProgress(10, 10)

	require.Len(t, *progress, 2)
	assert.Equal(t, 50.0, (*progress)[0].Percent())
	assert.Equal(t, transport.Upload, (*progress)[1].Direction)
}
