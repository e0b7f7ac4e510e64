package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIdempotencyCacheKey_ScopedToResource(t *testing.T) {
	t.Parallel()

	var keys []string
	r := gin.New()
	r.POST("/v1/bookings/:id/approve", func(c *gin.Context) {
		keys = append(keys, idempotencyCacheKey(c, "k1"))
		c.Status(http.StatusNoContent)
	})

	for _, path := range []string{"/v1/bookings/b1/approve", "/v1/bookings/b2/approve", "/v1/bookings/b1/approve"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}

	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(keys))
	}
	if keys[0] == keys[1] {
		t.Errorf("expected the same key on different bookings to be cached apart, both were %q", keys[0])
	}
	if keys[0] != keys[2] {
		t.Errorf("expected a repeated request to map to the same entry, got %q and %q", keys[0], keys[2])
	}
	if want := "idempotency:anonymous:POST:/v1/bookings/b1/approve:k1"; keys[0] != want {
		t.Errorf("expected %q, got %q", want, keys[0])
	}
}
