package flow_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-passwordless/flow"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func statelessFixture(t *testing.T) *testFixture {
	return setupTestFixture(t, false, func(*testFixture, *http.ServeMux) {})
}

func TestRequestTokenOutcomes(t *testing.T) {
	tests := []struct {
		name          string
		req           *http.Request
		options       []flow.Option
		wantStatus    int
		wantLocation  string
		wantDelivered int
	}{
		{
			name:          "form body",
			req:           formRequest(http.MethodPost, "/login", url.Values{"email": {"alice"}}),
			wantStatus:    http.StatusOK,
			wantDelivered: 1,
		},
		{
			name:          "custom contact field",
			req:           formRequest(http.MethodPost, "/login", url.Values{"user": {"alice"}}),
			options:       []flow.Option{flow.WithContactField("user")},
			wantStatus:    http.StatusOK,
			wantDelivered: 1,
		},
		{
			name:       "missing contact",
			req:        formRequest(http.MethodPost, "/login", url.Values{}),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:         "missing contact with failure redirect",
			req:          formRequest(http.MethodPost, "/login", url.Values{}),
			options:      []flow.Option{flow.WithFailureRedirect("/login")},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login?error=email+is+required",
		},
		{
			name:       "unknown contact looks like success",
			req:        formRequest(http.MethodPost, "/login", url.Values{"email": {"unknown"}}),
			wantStatus: http.StatusOK,
		},
		{
			name:       "verify failure",
			req:        formRequest(http.MethodPost, "/login", url.Values{"email": {"error"}}),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "delivery failure",
			req:        formRequest(http.MethodPost, "/login", url.Values{"email": {"deliveryError"}}),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:         "delivery failure with failure redirect",
			req:          formRequest(http.MethodPost, "/login", url.Values{"email": {"deliveryError"}}),
			options:      []flow.Option{flow.WithFailureRedirect("/login?step=1")},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login?step=1&error=the+token+could+not+be+sent",
		},
		{
			name:       "unknown delivery",
			req:        formRequest(http.MethodPost, "/login", url.Values{"email": {"alice"}, "delivery": {"pigeon"}}),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "get not allowed by default",
			req:        httptest.NewRequest(http.MethodGet, "/login?email=alice", nil),
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:          "get allowed",
			req:           httptest.NewRequest(http.MethodGet, "/login?email=alice", nil),
			options:       []flow.Option{flow.WithAllowGet()},
			wantStatus:    http.StatusOK,
			wantDelivered: 1,
		},
		{
			name:          "success redirect",
			req:           formRequest(http.MethodPost, "/login", url.Values{"email": {"alice"}}),
			options:       []flow.Option{flow.WithSuccessRedirect("/check-your-inbox")},
			wantStatus:    http.StatusSeeOther,
			wantLocation:  "/check-your-inbox",
			wantDelivered: 1,
		},
		{
			name:       "malformed json",
			req:        jsonRequest(http.MethodPost, "/login", "{"),
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := statelessFixture(t)
			rec := serve(t, f.flow.RequestToken(tc.options...)(ok("sent")), tc.req)

			require.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantLocation != "" {
				require.Equal(t, tc.wantLocation, rec.Header().Get("Location"))
			}
			require.Len(t, f.deliveries(), tc.wantDelivered)
		})
	}
}

func TestRequestTokenWithTokenTTL(t *testing.T) {
	f := statelessFixture(t)
	req := formRequest(http.MethodPost, "/login", url.Values{"email": {"alice"}})
	started := time.Now()
	rec := serve(t, f.flow.RequestToken(flow.WithTokenTTL(2*time.Minute))(ok("sent")), req)
	require.Equal(t, http.StatusOK, rec.Code)

	record, err := f.tokens.Authenticate(context.Background(), f.deliveries()[0].token, "")
	require.NoError(t, err)
	require.WithinDuration(t, started.Add(2*time.Minute), record.ExpiresAt, 5*time.Second)
}

func TestRequestTokenHTMXRedirect(t *testing.T) {
	f := statelessFixture(t)
	req := formRequest(http.MethodPost, "/login", url.Values{"email": {"alice"}})
	req.Header.Set("HX-Request", "true")

	rec := serve(t, f.flow.RequestToken(flow.WithSuccessRedirect("/sent"))(ok("sent")), req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "/sent", rec.Header().Get("HX-Redirect"))
}

func TestOriginRoundTrip(t *testing.T) {
	f := statelessFixture(t)

	rec := serve(t, f.flow.RequestToken(flow.WithOriginField("origin"))(ok("sent")),
		formRequest(http.MethodPost, "/login", url.Values{"email": {"alice"}, "origin": {"/account?tab=1"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	tok := f.deliveries()[0].token

	accept := f.flow.AcceptToken(flow.WithOriginRedirect(), flow.WithSuccessRedirect("/home"))(ok("next"))
	rec = serve(t, accept, httptest.NewRequest(http.MethodGet, "/?token="+url.QueryEscape(tok), nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/account?tab=1", rec.Header().Get("Location"))
}

func TestOriginMustBeLocal(t *testing.T) {
	f := statelessFixture(t)

	for _, origin := range []string{"https://evil.example", "//evil.example", "/\\evil.example", "javascript:alert(1)"} {
		rec := serve(t, f.flow.RequestToken(flow.WithOriginField("origin"))(ok("sent")),
			formRequest(http.MethodPost, "/login", url.Values{"email": {"alice"}, "origin": {origin}}))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	accept := f.flow.AcceptToken(flow.WithOriginRedirect(), flow.WithSuccessRedirect("/home"))(ok("next"))
	for _, d := range f.deliveries() {
		rec := serve(t, accept, httptest.NewRequest(http.MethodGet, "/?token="+url.QueryEscape(d.token), nil))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/home", rec.Header().Get("Location"))
	}
}

func TestAcceptTokenSources(t *testing.T) {
	t.Run("query disabled", func(t *testing.T) {
		f := statelessFixture(t)
		_, err := f.engine.RequestToken(context.Background(), "alice", "", "")
		require.NoError(t, err)

		handler := f.flow.AcceptToken(flow.WithTokenInQuery(false))(f.flow.Restricted()(ok("in")))
		rec := serve(t, handler, httptest.NewRequest(http.MethodGet, "/?token="+url.QueryEscape(f.deliveries()[0].token), nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("post body", func(t *testing.T) {
		f := statelessFixture(t)
		_, err := f.engine.RequestToken(context.Background(), "alice", "", "")
		require.NoError(t, err)

		handler := f.flow.AcceptToken(flow.WithAllowPost())(f.flow.Restricted()(ok("in")))
		rec := serve(t, handler, formRequest(http.MethodPost, "/", url.Values{"token": {f.deliveries()[0].token}, "uid": {"UID/alice"}}))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("post body ignored by default", func(t *testing.T) {
		f := statelessFixture(t)
		_, err := f.engine.RequestToken(context.Background(), "alice", "", "")
		require.NoError(t, err)

		handler := f.flow.AcceptToken()(f.flow.Restricted()(ok("in")))
		rec := serve(t, handler, formRequest(http.MethodPost, "/", url.Values{"token": {f.deliveries()[0].token}}))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("uid mismatch", func(t *testing.T) {
		f := statelessFixture(t)
		_, err := f.engine.RequestToken(context.Background(), "alice", "", "")
		require.NoError(t, err)
		tok := f.deliveries()[0].token

		handler := f.flow.AcceptToken()(f.flow.Restricted()(ok("in")))
		rec := serve(t, handler, httptest.NewRequest(http.MethodGet, "/?token="+url.QueryEscape(tok)+"&uid=UID%2Fbob", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		// the mismatch did not consume the token
		rec = serve(t, handler, httptest.NewRequest(http.MethodGet, "/?token="+url.QueryEscape(tok)+"&uid=UID%2Falice", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAcceptTokenRedirects(t *testing.T) {
	f := statelessFixture(t)
	_, err := f.engine.RequestToken(context.Background(), "alice", "", "")
	require.NoError(t, err)

	accept := f.flow.AcceptToken(flow.WithSuccessRedirect("/welcome"), flow.WithFailureRedirect("/login"))(ok("next"))

	rec := serve(t, accept, httptest.NewRequest(http.MethodGet, "/?token=wrong", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?error=the+token+is+invalid+or+has+expired", rec.Header().Get("Location"))

	rec = serve(t, accept, httptest.NewRequest(http.MethodGet, "/?token="+url.QueryEscape(f.deliveries()[0].token), nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/welcome", rec.Header().Get("Location"))

	rec = serve(t, accept, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code, "requests without a token pass through")
}

func TestRestrictedFailureRedirectStashesOrigin(t *testing.T) {
	f := setupTestFixture(t, true, func(f *testFixture, mux *http.ServeMux) {
		mux.HandleFunc("GET /touch", func(w http.ResponseWriter, r *http.Request) {
			flow.SessionFromContext(r.Context()).Set("visited", "yes")
		})
		mux.HandleFunc("GET /restricted", f.flow.Restricted(flow.WithFailureRedirect("/login"), flow.WithOriginField("origin"))(ok("in")))
		mux.HandleFunc("POST /login", f.flow.RequestToken()(ok("sent")))
	}, flow.WithOriginRedirect())
	client := newClient(t)
	base := f.server.URL

	code, _ := get(t, client, base+"/touch")
	require.Equal(t, http.StatusOK, code)

	resp, err := client.Get(base + "/restricted?page=2")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login?origin=%2Frestricted%3Fpage%3D2", resp.Header.Get("Location"))

	// the stashed URL becomes the token's origin even though the form does not send it
	require.Equal(t, http.StatusOK, postJSON(t, client, base+"/login", `{"email":"alice"}`))
	tok := f.deliveries()[0].token

	other := newClient(t)
	resp, err = other.Get(base + "/?token=" + url.QueryEscape(tok))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/restricted?page=2", resp.Header.Get("Location"))
}

func TestRestrictedDoesNotStoreSessionsForCookielessClients(t *testing.T) {
	f := setupTestFixture(t, true, func(f *testFixture, mux *http.ServeMux) {
		mux.HandleFunc("GET /restricted", f.flow.Restricted(flow.WithFailureRedirect("/login"), flow.WithOriginField("origin"))(ok("in")))
	})
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	for i := 0; i < 200; i++ {
		resp, err := client.Get(f.server.URL + "/restricted?page=" + strconv.Itoa(i))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Empty(t, resp.Cookies())
	}
	require.Equal(t, 0, f.sessions.Len())
}

func TestLogoutSuccessRedirect(t *testing.T) {
	f := statelessFixture(t)
	rec := serve(t, f.flow.Logout(flow.WithSuccessRedirect("/"))(ok("bye")), httptest.NewRequest(http.MethodGet, "/logout", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
}

func TestFlowDefaults(t *testing.T) {
	f := statelessFixture(t)
	withDefaults, err := flow.New(f.engine, flow.WithDefaults(flow.WithFailureRedirect("/oops")))
	require.NoError(t, err)

	rec := serve(t, withDefaults.Restricted()(ok("in")), httptest.NewRequest(http.MethodGet, "/restricted", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/oops", rec.Header().Get("Location"))

	// step options override the defaults
	rec = serve(t, withDefaults.Restricted(flow.WithFailureRedirect("/login"))(ok("in")), httptest.NewRequest(http.MethodGet, "/restricted", nil))
	require.Equal(t, "/login", rec.Header().Get("Location"))
}
