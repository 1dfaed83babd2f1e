package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/volley/transport"
	"github.com/wesleyorama2/volley/transport/transporttest"
)

func TestEngine_IsLazy(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/", transporttest.Reply{Status: 200, Body: "ok"})

	req := client.Get("http://example.com/")
	assert.Empty(t, tr.Calls())

	body, err := req.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", body)

	_, err = req.Read(context.Background())
	require.NoError(t, err)
	assert.Len(t, tr.Calls(), 1)
}

func TestEngine_FollowsRedirectChain(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Redirect("/a", http.StatusMovedPermanently, "/b")
	tr.Redirect("/b", http.StatusFound, "/c")
	tr.Handle("/c", transporttest.Reply{Status: 200, Body: "X"})

	req := client.Get("http://example.com/a")
	body, err := req.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "X", body)
	assert.Equal(t, []string{"http://example.com/b", "http://example.com/c"}, req.Redirects())
	assert.Equal(t, []string{"http://example.com/a", "http://example.com/b", "http://example.com/c"}, tr.URLs())
	assert.Equal(t, "http://example.com/c", req.LastResponse().URL.String())
}

func TestEngine_RedirectCarriesHeadersAsGet(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Redirect("/a", http.StatusSeeOther, "//cdn.example.com/b")
	tr.Handle("http://cdn.example.com/b", transporttest.Reply{Status: 200})

	_, err := client.Head("http://example.com/a").Set("X-Trace", "1").Response(context.Background())
	require.NoError(t, err)

	calls := tr.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "HEAD", calls[0].Method)
	assert.Equal(t, "GET", calls[1].Method)
	assert.Equal(t, "http://cdn.example.com/b", calls[1].URL)
	assert.Equal(t, []string{"1"}, calls[1].Header["X-Trace"])
	assert.Empty(t, calls[1].Body)
}

func TestEngine_RedirectAbsoluteAndRelativeLocations(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		location string
		want     string
	}{
		{"absolute", "http://a.example.com/x", "https://b.example.com/y", "https://b.example.com/y"},
		{"path", "https://a.example.com:8443/x/y", "/z", "https://a.example.com:8443/z"},
		{"protocol relative", "https://a.example.com/x", "//b.example.com/z", "https://b.example.com/z"},
		{"relative path", "http://a.example.com/x/y", "z?q=1", "http://a.example.com/x/z?q=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := mustParseURL(t, tt.current)
			got, err := resolveLocation(current, tt.location)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestEngine_DetectsRedirectLoop(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Redirect("/a", http.StatusFound, "/b")
	tr.Redirect("/b", http.StatusFound, "/a")

	req := client.Get("http://example.com/a")
	_, err := req.Response(context.Background())

	var loop *RedirectLoopError
	require.ErrorAs(t, err, &loop)
	assert.Equal(t, "http://example.com/b", loop.URL)
	assert.Equal(t, []string{"http://example.com/a", "http://example.com/b", "http://example.com/a"}, tr.URLs())
	assert.Equal(t, []string{"http://example.com/b", "http://example.com/a"}, req.Redirects())
}

func TestEngine_MaxRedirectsZero(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Redirect("/a", http.StatusFound, "/b")

	req := client.Get("http://example.com/a").MaxRedirects(0)
	_, err := req.Read(context.Background())

	var policy *RedirectPolicyError
	require.ErrorAs(t, err, &policy)
	require.NotNil(t, policy.Response)
	assert.Equal(t, http.StatusFound, policy.Response.StatusCode)
	assert.Equal(t, "/b", policy.Response.GetHeader("Location"))
	assert.Same(t, policy.Response, req.LastResponse())
	assert.Len(t, tr.Calls(), 1)
	assert.Empty(t, req.Redirects())
}

func TestEngine_MaxRedirectsFromClient(t *testing.T) {
	client, tr, _ := newTestClient(WithMaxRedirects(1))
	tr.Redirect("/a", http.StatusFound, "/b")
	tr.Redirect("/b", http.StatusFound, "/c")

	_, err := client.Get("http://example.com/a").Response(context.Background())

	var policy *RedirectPolicyError
	require.ErrorAs(t, err, &policy)
	assert.Equal(t, "http://example.com/b", policy.Response.URL.String())
	assert.Len(t, tr.Calls(), 2)
}

func TestEngine_RedirectRejectedForPost(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Redirect("/a", http.StatusFound, "/b")

	_, err := client.Post("http://example.com/a").Send("x=1").Response(context.Background())

	var policy *RedirectPolicyError
	require.ErrorAs(t, err, &policy)
	assert.Equal(t, "POST", policy.Method)
	assert.Nil(t, policy.Response)
	assert.Len(t, tr.Calls(), 1)
}

func TestEngine_RedirectWithoutLocation(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/a", transporttest.Reply{Status: http.StatusMovedPermanently})

	_, err := client.Get("http://example.com/a").Response(context.Background())

	var policy *RedirectPolicyError
	assert.ErrorAs(t, err, &policy)
}

func TestEngine_NonRedirect3xxIsFinal(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/a", transporttest.Reply{Status: http.StatusNotModified})

	res, err := client.Get("http://example.com/a").Response(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.StatusClass)
	assert.True(t, res.IsRedirect())
}

func TestEngine_ErrorStatus(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/missing", transporttest.Reply{Status: 404, Body: "nope"})

	req := client.Get("http://example.com/missing")

	res, err := req.Response(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.StatusClass)

	_, err = req.Read(context.Background())
	var status *ProtocolStatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, 404, status.StatusCode())
	assert.Equal(t, "404 Not Found", err.Error())
}

func TestEngine_StatusZeroIsCrossOrigin(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/", transporttest.Reply{Status: 0})

	_, err := client.Get("http://example.com/").Response(context.Background())

	var cors *CrossOriginError
	require.ErrorAs(t, err, &cors)
	assert.Equal(t, "http://example.com/", cors.URL)
}

func TestEngine_TransportError(t *testing.T) {
	client, tr, _ := newTestClient()
	refused := errors.New("connection refused")
	tr.Handle("/", transporttest.Reply{Err: refused})

	_, err := client.Get("http://example.com/").Read(context.Background())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, refused)
}

func TestEngine_TimeoutResolvesOnce(t *testing.T) {
	client, tr, mock := newTestClient()
	tr.Handle("/slow", transporttest.Reply{Status: 200, Body: "late", Hold: true})

	var (
		mu     sync.Mutex
		errs   []error
		values []any
		aborts int
	)
	req := client.Get("http://example.com/slow").Timeout(time.Second).
		On(func(ev Event) {
			if ev.Kind == EventAbort {
				mu.Lock()
				aborts++
				mu.Unlock()
			}
		}).
		Then(func(v any) {
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
		}, func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		})

	mock.Add(999 * time.Millisecond)
	_, err := req.Read(waitBriefly(t))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	mock.Add(time.Millisecond)
	_, err = req.Read(context.Background())
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, time.Second, timeout.Elapsed)
	assert.True(t, timeout.Timeout())
	assert.Equal(t, "timeout of 1000ms exceeded", timeout.Error())

	require.Eventually(t, func() bool { return tr.Calls()[0].Aborted }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return aborts == 1 && len(errs) == 1
	}, time.Second, time.Millisecond)

	tr.Deliver(0)

	_, err = req.Read(context.Background())
	assert.ErrorAs(t, err, &timeout)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, errs, 1)
	assert.Empty(t, values)
	assert.Equal(t, 1, aborts)
	assert.Nil(t, req.LastResponse())
}

func TestEngine_ResponseStopsTimer(t *testing.T) {
	client, tr, mock := newTestClient(WithTimeout(time.Second))
	tr.Handle("/", transporttest.Reply{Status: 200, Body: "fast"})

	req := client.Get("http://example.com/")
	body, err := req.Read(context.Background())
	require.NoError(t, err)

	mock.Add(time.Minute)
	again, err := req.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, body, again)
	assert.False(t, tr.Calls()[0].Aborted)
}

func TestEngine_ClearTimeout(t *testing.T) {
	client, tr, mock := newTestClient()
	tr.Handle("/", transporttest.Reply{Status: 200, Body: "eventually", Hold: true})

	req := client.Get("http://example.com/").Timeout(time.Second).End()
	req.ClearTimeout()
	mock.Add(time.Minute)

	tr.Deliver(0)
	body, err := req.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "eventually", body)
}

func TestEngine_AbortBeforeStart(t *testing.T) {
	client, tr, _ := newTestClient()

	req := client.Get("http://example.com/").Abort()
	_, err := req.Read(context.Background())

	assert.ErrorIs(t, err, ErrAborted)
	assert.Empty(t, tr.Calls())
}

func TestEngine_AbortInFlight(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/", transporttest.Reply{Status: 200, Body: "late", Hold: true})

	req := client.Get("http://example.com/").End()
	req.Abort()
	req.Abort()
	tr.Deliver(0)

	_, err := req.Read(context.Background())
	assert.ErrorIs(t, err, ErrAborted)
	assert.True(t, tr.Calls()[0].Aborted)
}

func TestEngine_AbortFromListener(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/", transporttest.Reply{Status: 200, Hold: true})

	var kinds []EventKind
	req := client.Get("http://example.com/")
	req.On(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventOpen {
			req.Abort()
		}
	})

	_, err := req.Response(context.Background())
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, []EventKind{EventOpen, EventAbort}, kinds)
	assert.True(t, tr.Calls()[0].Aborted)
}

func TestEngine_Events(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Redirect("/a", http.StatusFound, "/b")
	tr.Handle("/b", transporttest.Reply{Status: 200, Header: http.Header{"Content-Length": {"5"}}, Body: "hello"})

	var kinds []EventKind
	var progress []transport.Progress
	req := client.Post("http://example.com/b").Send("x=1").On(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventProgress {
			progress = append(progress, ev.Progress)
		}
	})
	_, err := req.Read(context.Background())
	require.NoError(t, err)

	want := []EventKind{EventOpen, EventProgress, EventResponse, EventProgress}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, progress, 2)
	assert.Equal(t, transport.Upload, progress[0].Direction)
	assert.Equal(t, transport.Download, progress[1].Direction)
	assert.Equal(t, 100.0, progress[1].Percent())

	kinds = nil
	_, err = client.Get("http://example.com/a").On(func(ev Event) { kinds = append(kinds, ev.Kind) }).Response(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventOpen, EventRedirect, EventOpen, EventResponse}, kinds)
}

func TestEngine_ParsesByContentType(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/json", transporttest.Reply{
		Status: 200,
		Header: http.Header{"Content-Type": {"application/json; charset=utf-8"}},
		Body:   `{"name":"tobi","tags":["ferret"]}`,
	})
	tr.Handle("/form", transporttest.Reply{
		Status: 200,
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
		Body:   "a=1&b=2",
	})
	tr.Handle("/bad", transporttest.Reply{
		Status: 200,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   `{"name":`,
	})

	body, err := client.Get("http://example.com/json").Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "tobi", "tags": []any{"ferret"}}, body)

	body, err = client.Get("http://example.com/form").Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "2"}, body)

	_, err = client.Get("http://example.com/bad").Read(context.Background())
	var de *DeserializationError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "application/json", de.ContentType)
}

func TestEngine_UnparsedBodies(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/img", transporttest.Reply{Status: 200, Header: http.Header{"Content-Type": {"image/png"}}, Body: "\x89PNG"})
	tr.Handle("/empty", transporttest.Reply{Status: 204, Header: http.Header{"Content-Type": {"application/json"}}})

	text, err := client.Get("http://example.com/img").Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", text)

	raw, err := client.Get("http://example.com/img").ResponseType(ResponseBinary).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), raw)

	empty, err := client.Get("http://example.com/empty").Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}

func TestEngine_CustomParser(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/", transporttest.Reply{Status: 200, Body: "a,b,c"})

	body, err := client.Get("http://example.com/").
		Parse(func(data []byte) (any, error) { return bytes.Split(data, []byte(",")), nil }).
		Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, body)
}

func TestEngine_ReadInto(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/pet", transporttest.Reply{Status: 200, Body: `{"name":"tobi","age":3}`})

	var pet struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	req := client.Get("http://example.com/pet")
	require.NoError(t, req.ReadInto(context.Background(), &pet))
	assert.Equal(t, "tobi", pet.Name)
	assert.Equal(t, 3, pet.Age)

	var raw string
	require.NoError(t, req.ReadInto(context.Background(), &raw))
	assert.Equal(t, `{"name":"tobi","age":3}`, raw)
}

func TestEngine_Pipe(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/file", transporttest.Reply{Status: 200, Body: "contents"})
	tr.Handle("/gone", transporttest.Reply{Status: 410})

	var buf bytes.Buffer
	n, err := client.Get("http://example.com/file").Pipe(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Equal(t, "contents", buf.String())

	_, err = client.Get("http://example.com/gone").Pipe(context.Background(), &buf)
	var status *ProtocolStatusError
	assert.ErrorAs(t, err, &status)
}

func TestEngine_ThenAfterSettle(t *testing.T) {
	client, tr, _ := newTestClient()
	tr.Handle("/", transporttest.Reply{Status: 200, Body: "done"})

	req := client.Get("http://example.com/")
	_, err := req.Read(context.Background())
	require.NoError(t, err)

	var got any
	req.Then(func(v any) { got = v }, nil)
	assert.Equal(t, "done", got)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func waitBriefly(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}
