package portal

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// fakePortal mimics the eportal endpoints closely enough for the handshake.
type fakePortal struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	online        bool
	gzipReplies   bool
	rejectLogin   string
	landingPage   string
	userIndex     string
	requests      []string
	loginForms    []url.Values
	loginBodies   []string
	logoutIndexes []string
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()

	f := &fakePortal{
		t:           t,
		userIndex:   "abc123",
		landingPage: "<script>top.self.location.href='http://auth/eportal/index.jsp?wlanuserip=10.0.0.5&nasip=1'</script>",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", f.gateway)
	mux.HandleFunc("/eportal/success.jsp", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>online</html>"))
	})
	mux.HandleFunc("/eportal/InterFace.do", f.iface)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakePortal) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := r.Method + " " + r.URL.Path
	if m := r.URL.Query().Get("method"); m != "" {
		name += "?" + m
	}

	f.requests = append(f.requests, name)
}

func (f *fakePortal) gateway(w http.ResponseWriter, r *http.Request) {
	f.record(r)

	f.mu.Lock()
	online, page := f.online, f.landingPage
	f.mu.Unlock()

	if online {
		http.Redirect(w, r, "/eportal/success.jsp?userIndex="+f.userIndex, http.StatusFound)
		return
	}

	_, _ = w.Write([]byte(page))
}

func (f *fakePortal) iface(w http.ResponseWriter, r *http.Request) {
	f.record(r)

	f.mu.Lock()
	defer f.mu.Unlock()

	var reply map[string]string

	switch r.URL.Query().Get("method") {
	case "getOnlineUserInfo":
		if !f.online {
			reply = map[string]string{"result": "wait", "message": "not online"}
		} else {
			reply = map[string]string{"result": "success", "userIndex": f.userIndex, "userName": "someone"}
		}
	case "login":
		raw, _ := io.ReadAll(r.Body)
		form, err := url.ParseQuery(string(raw))
		assert.NoError(f.t, err)

		f.loginBodies = append(f.loginBodies, string(raw))
		f.loginForms = append(f.loginForms, form)

		if f.rejectLogin != "" {
			reply = map[string]string{"result": "fail", "message": f.rejectLogin}
		} else {
			f.online = true
			reply = map[string]string{"result": "success", "message": "", "userIndex": f.userIndex}
		}
	case "logout":
		assert.NoError(f.t, r.ParseForm())
		f.logoutIndexes = append(f.logoutIndexes, r.PostForm.Get("userIndex"))

		if r.PostForm.Get("userIndex") == f.userIndex && f.online {
			f.online = false
			reply = map[string]string{"result": "success", "message": "下线成功！"}
		} else {
			reply = map[string]string{"result": "fail", "message": "用户已不在线"}
		}
	default:
		http.NotFound(w, r)
		return
	}

	body, err := json.Marshal(reply)
	assert.NoError(f.t, err)

	if f.gzipReplies {
		body = gzipBytes(f.t, body)
	}

	_, _ = w.Write(body)
}

func (f *fakePortal) setOnline(v bool) {
	f.mu.Lock()
	f.online = v
	f.mu.Unlock()
}

func (f *fakePortal) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.requests...)
}

func (f *fakePortal) client(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(Options{
		GatewayURL:     f.server.URL,
		InterfaceURL:   f.server.URL + "/eportal/InterFace.do",
		UserAgent:      "portalwatch-test",
		CheckTimeout:   time.Second,
		RequestTimeout: time.Second,
		Limiter:        rate.NewLimiter(rate.Inf, 1),
	})
	require.NoError(t, err)

	return c
}

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()

	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}
