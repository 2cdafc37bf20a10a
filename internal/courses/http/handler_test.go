package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/presensia/presensia-core/internal/courses/service"
	"github.com/presensia/presensia-core/internal/gateway"
)

func send(r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestCoursesHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewCoursesService(gateway.New(gateway.NewMemoryIdentity(), gateway.NewMemoryStore()))
	r := gin.New()
	g := r.Group("/courses")
	New(svc, nil).Register(g, g)

	course := map[string]any{
		"code": "CS101", "name": "Intro", "instructor": "Dr. Anya Sharma",
		"semester": "Fall 2024", "latitude": 40.7, "longitude": -74.0,
	}
	w, body := send(r, http.MethodPost, "/courses", course)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, body["course"].(map[string]any)["createdAt"])

	w, body = send(r, http.MethodPost, "/courses", course)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	t.Run("body is validated before the controller", func(t *testing.T) {
		tests := []struct {
			name  string
			body  map[string]any
			field string
		}{
			{"latitude out of range", map[string]any{"code": "CS102", "name": "Far", "latitude": 95}, "latitude"},
			{"longitude out of range", map[string]any{"code": "CS102", "name": "Far", "longitude": -181}, "longitude"},
			{"missing name", map[string]any{"code": "CS102"}, "name"},
			{"blank code", map[string]any{"code": "  ", "name": "Blank"}, "code"},
		}
		for _, tt := range tests {
			w, body := send(r, http.MethodPost, "/courses", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code, tt.name)
			assert.Equal(t, "VALIDATION_ERROR", body["code"], tt.name)
			fields, _ := body["fields"].(map[string]any)
			assert.Contains(t, fields, tt.field, tt.name)
		}
	})

	_, body = send(r, http.MethodGet, "/courses", nil)
	assert.EqualValues(t, 1, body["count"])

	w, body = send(r, http.MethodPut, "/courses/CS101", map[string]any{"students": 70})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 70, body["course"].(map[string]any)["students"])

	_, body = send(r, http.MethodGet, "/courses/search?instructor=anya", nil)
	assert.Len(t, body["courses"], 1)
	_, body = send(r, http.MethodGet, "/courses?semester=spring%202024", nil)
	assert.EqualValues(t, 0, body["count"])

	w, _ = send(r, http.MethodDelete, "/courses/CS101", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = send(r, http.MethodGet, "/courses/CS101", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
