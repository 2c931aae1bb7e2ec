package middlewares

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"astra/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	return r
}

func serve(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	r := newEngine(Logger())
	serve(r, http.MethodGet, "/ping", nil)
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "path=/ping")
	assert.Contains(t, buf.String(), "status=200")

	buf.Reset()
	serve(r, http.MethodGet, "/boom", nil)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "status=502")
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		headers map[string]string
		want    int
	}{
		{"disabled", "", nil, http.StatusOK},
		{"missing", "k1", nil, http.StatusUnauthorized},
		{"header", "k1", map[string]string{"X-API-Key": "k1"}, http.StatusOK},
		{"bearer", "k1", map[string]string{"Authorization": "Bearer k1"}, http.StatusOK},
		{"wrong", "k1", map[string]string{"X-API-Key": "k2"}, http.StatusUnauthorized},
		{"wrong bearer", "k1", map[string]string{"Authorization": "Bearer k2"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newEngine(APIKey(tt.key)), http.MethodGet, "/ping", tt.headers)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"success":false,"error":"invalid or missing api key"}`, w.Body.String())
			}
		})
	}
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS())

	w := serve(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://astro.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodOptions, "/ping", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
}
