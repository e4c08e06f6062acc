package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"fortirent-auth/internal/domain"
	"fortirent-auth/internal/service"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeAuth map[string]*domain.PublicUser

func (f fakeAuth) Authenticate(_ context.Context, token string) (*domain.PublicUser, error) {
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, service.Unauthorized("Not authorized, token failed")
}

func serve(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthSession(t *testing.T) {
	users := fakeAuth{
		"tenant": {ID: "u1", Role: domain.RoleTenant},
		"admin":  {ID: "u2", Role: domain.RoleAdmin},
	}
	r := gin.New()
	r.GET("/any", AuthSession(users, ""), func(c *gin.Context) { c.String(http.StatusOK, CurrentUser(c).ID) })
	r.GET("/admin", AuthSession(users, domain.RoleAdmin), func(c *gin.Context) { c.String(http.StatusOK, CurrentUser(c).ID) })

	require.Equal(t, http.StatusUnauthorized, serve(r, "/any", "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(r, "/any", "Basic abc").Code)
	require.Equal(t, http.StatusUnauthorized, serve(r, "/any", "Bearer nope").Code)

	w := serve(r, "/any", "Bearer tenant")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u1", w.Body.String())

	require.Equal(t, http.StatusForbidden, serve(r, "/admin", "Bearer tenant").Code)
	require.Equal(t, http.StatusOK, serve(r, "/admin", "Bearer admin").Code)
}

func TestCurrentUserWithoutSession(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	require.Nil(t, CurrentUser(c))
}

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitPerIP(0.001, 2, time.Minute))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	from := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	require.Equal(t, http.StatusOK, from("10.0.0.1"))
	require.Equal(t, http.StatusOK, from("10.0.0.1"))
	require.Equal(t, http.StatusTooManyRequests, from("10.0.0.1"))
	require.Equal(t, http.StatusOK, from("10.0.0.2"))
}

func TestRequestIDPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(KeyRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "rid-1", w.Body.String())
	require.Equal(t, "rid-1", w.Header().Get(HeaderRequestID))

	w = serve(r, "/x", "")
	require.NotEmpty(t, w.Header().Get(HeaderRequestID))

	for _, bad := range []string{"rid\r\nforged: 1", "a b", strings.Repeat("x", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header[HeaderRequestID] = []string{bad}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.NotEqual(t, bad, w.Body.String())
		require.Len(t, w.Body.String(), 36, "regenerated as uuid")
	}
}

func TestRecoveryAnswersWithEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := serve(r, "/boom", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"success":false,"message":"Internal server error.","code":"INTERNAL_ERROR"}`, w.Body.String())
}

func TestMaskQuery(t *testing.T) {
	out := maskQuery(map[string][]string{"Token": {"abc"}, "q": {"x"}})
	require.Equal(t, []string{"****"}, out["Token"])
	require.Equal(t, []string{"x"}, out["q"])
}

func TestMaxBodyBytesRejectsDeclaredLength(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodyBytes(8))
	called := false
	r.POST("/x", func(c *gin.Context) { called = true })

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("x", 9)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.JSONEq(t, `{"success":false,"message":"Request body too large.","code":"PAYLOAD_TOO_LARGE"}`, w.Body.String())
	require.False(t, called)
}

func TestConcurrencyLimitSheds(t *testing.T) {
	r := gin.New()
	r.Use(ConcurrencyLimit(1, 10*time.Millisecond))
	entered, release := make(chan struct{}), make(chan struct{})
	r.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.Status(http.StatusOK)
	})
	r.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	done := make(chan int)
	go func() { done <- serve(r, "/slow", "").Code }()
	<-entered

	w := serve(r, "/fast", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))

	close(release)
	require.Equal(t, http.StatusOK, <-done)
	require.Equal(t, http.StatusOK, serve(r, "/fast", "").Code)
}

func TestTimeoutAnswers504(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := gin.New()
	r.Use(Timeout(10*time.Millisecond, zap.New(core)))
	r.GET("/stuck", func(c *gin.Context) { <-c.Request.Context().Done() })

	w := serve(r, "/stuck", "")
	require.Equal(t, http.StatusGatewayTimeout, w.Code)
	require.Contains(t, w.Body.String(), `"code":"TIMEOUT"`)
	require.Equal(t, 1, logs.FilterMessage("request deadline exceeded").Len())
}
