package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/api/products/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", Handler())

	before := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "/api/products/:id", "200"))
	for _, id := range []string{"1", "2", "dental-chair"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/products/"+id, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	after := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "/api/products/:id", "200"))
	assert.Equal(t, 3.0, after-before)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "unmatched", "404")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "dentalshop_http_requests_total"))
}

func TestCacheHit(t *testing.T) {
	hits := testutil.ToFloat64(CacheRequests.WithLabelValues("hit"))
	misses := testutil.ToFloat64(CacheRequests.WithLabelValues("miss"))
	CacheHit(true)
	CacheHit(false)
	CacheHit(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(CacheRequests.WithLabelValues("hit"))-hits)
	assert.Equal(t, 2.0, testutil.ToFloat64(CacheRequests.WithLabelValues("miss"))-misses)
}
