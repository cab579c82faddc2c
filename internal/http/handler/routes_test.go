package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"portalapi/internal/attachment"
	"portalapi/internal/auth"
	"portalapi/internal/config"
	"portalapi/internal/http/middleware"
	"portalapi/internal/logging"
	"portalapi/internal/repository"
	"portalapi/internal/service"
	"portalapi/internal/storage"
	"portalapi/internal/store"
)

type portal struct {
	app   *fiber.App
	store *store.MemoryStore
}

func newPortal(t *testing.T, requireAuth bool) *portal {
	t.Helper()
	log := logging.Discard()
	mem := store.NewMemoryStore()
	repo := repository.NewDocumentRepository(mem)

	local, err := storage.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)
	files := attachment.NewManager(local, log)

	authSvc := auth.NewService(repo, config.AuthConfig{
		JWTSecret:   "test-secret",
		TokenTTLSec: 3600,
		BcryptCost:  bcrypt.MinCost,
	}, log)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	RegisterRoutes(app, Deps{
		Records:      service.NewRecordService(repo, files, log),
		Auth:         authSvc,
		Files:        files,
		Health:       mem,
		UploadPrefix: "/uploads",
		RequireAuth:  requireAuth,
	})
	return &portal{app: app, store: mem}
}

func (p *portal) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := p.app.Test(req, -1)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func (p *portal) create(t *testing.T, path string, body any) map[string]any {
	t.Helper()
	resp, b := p.do(t, jsonRequest(http.MethodPost, path, body))
	require.Less(t, resp.StatusCode, 300, string(b))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(b, &rec))
	return rec
}

func idOf(rec map[string]any) string {
	return fmt.Sprintf("%.0f", rec["id"].(float64))
}

func TestPortal_RegisterAndLogin(t *testing.T) {
	p := newPortal(t, false)
	cred := map[string]string{"username": "alice", "password": "p1"}

	resp, b := p.do(t, jsonRequest(http.MethodPost, "/register", cred))
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(b))

	resp, _ = p.do(t, jsonRequest(http.MethodPost, "/register", cred))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = p.do(t, jsonRequest(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "bad"}))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = p.do(t, jsonRequest(http.MethodPost, "/login", map[string]string{"username": "bob", "password": "p1"}))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, b = p.do(t, jsonRequest(http.MethodPost, "/login", cred))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login map[string]string
	require.NoError(t, json.Unmarshal(b, &login))
	assert.Equal(t, "alice", login["username"])
	require.NotEmpty(t, login["token"])

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+login["token"])
	resp, b = p.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), `"username":"alice"`)

	doc, err := p.store.Load(req.Context())
	require.NoError(t, err)
	require.Len(t, doc["users"], 1)
	assert.NotEqual(t, "p1", doc["users"][0]["password"])
}

func TestPortal_UserNeverExposesPassword(t *testing.T) {
	p := newPortal(t, false)
	p.do(t, jsonRequest(http.MethodPost, "/register", map[string]string{"username": "alice", "password": "p1"}))

	doc, err := p.store.Load(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.NoError(t, err)
	id := fmt.Sprint(doc["users"][0]["id"])

	resp, b := p.do(t, httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(b), "password")

	resp, b = p.do(t, jsonRequest(http.MethodPut, "/users/"+id+"/profile", map[string]string{"email": "a@x.io", "password": "hack"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), `"message":"profile updated"`)
	assert.Contains(t, string(b), `"email":"a@x.io"`)
	assert.NotContains(t, string(b), "password")
}

func TestPortal_DeletingExamCascadesToQuestions(t *testing.T) {
	p := newPortal(t, false)
	exam := p.create(t, "/exams", map[string]any{"title": "Midterm", "course": "CS1", "date": "2024-03-01", "time": "09:00"})
	examID := idOf(exam)

	p.create(t, "/questions", map[string]any{"exam_id": exam["id"], "question": "Q1"})
	p.create(t, "/questions", map[string]any{"exam_id": exam["id"], "question": "Q2"})

	resp, b := p.do(t, httptest.NewRequest(http.MethodGet, "/exams/"+examID+"/questions", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var qs []map[string]any
	require.NoError(t, json.Unmarshal(b, &qs))
	assert.Len(t, qs, 2)

	resp, b = p.do(t, httptest.NewRequest(http.MethodDelete, "/exams/"+examID, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"exam deleted"}`, string(b))

	resp, b = p.do(t, httptest.NewRequest(http.MethodGet, "/exams/"+examID+"/questions", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(b))

	resp, b = p.do(t, httptest.NewRequest(http.MethodGet, "/questions", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(b))

	resp, _ = p.do(t, httptest.NewRequest(http.MethodDelete, "/exams/"+examID, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPortal_QuestionNeedsExistingExam(t *testing.T) {
	p := newPortal(t, false)
	resp, b := p.do(t, jsonRequest(http.MethodPost, "/questions", map[string]any{"exam_id": 42, "question": "Q1"}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(b))
}

func TestPortal_CalendarByDate(t *testing.T) {
	p := newPortal(t, false)
	for _, e := range []map[string]any{
		{"date": "2024-01-01", "title": "A", "user": "u"},
		{"date": "2024-01-02", "title": "B", "user": "u"},
		{"date": "2024-01-01", "title": "C", "user": "u"},
	} {
		resp, b := p.do(t, jsonRequest(http.MethodPost, "/calendar", e))
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(b))
	}

	resp, b := p.do(t, httptest.NewRequest(http.MethodGet, "/calendar/date/2024-01-01", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(b, &events))
	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0]["title"])
	assert.Equal(t, "C", events[1]["title"])
	assert.Equal(t, "", events[0]["description"])

	resp, b = p.do(t, httptest.NewRequest(http.MethodGet, "/calendar/date/1999-01-01", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(b))
}

func TestPortal_PartialUpdateKeepsOtherFields(t *testing.T) {
	p := newPortal(t, false)
	course := p.create(t, "/courses", map[string]any{"name": "Algebra", "time": "08:00", "description": "d", "instructor": "X"})

	resp, b := p.do(t, jsonRequest(http.MethodPut, "/courses/"+idOf(course), map[string]any{"name": "Geometry"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "Geometry", got["name"])
	assert.Equal(t, "08:00", got["time"])
	assert.Equal(t, course["id"], got["id"])

	resp, _ = p.do(t, jsonRequest(http.MethodPut, "/courses/1", map[string]any{"name": "x"}))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPortal_AssignmentImageLifecycle(t *testing.T) {
	p := newPortal(t, false)

	req := multipartRequest(t, http.MethodPost, "/assignments",
		map[string]string{"title": "HW", "course": "CS1", "deadline": "2024-02-01"}, "image", "scan.PNG", "first")
	resp, b := p.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(b))
	var hw map[string]any
	require.NoError(t, json.Unmarshal(b, &hw))
	first, ok := hw["image"].(string)
	require.True(t, ok)
	assert.Regexp(t, `^\d+\.png$`, first)

	resp, b = p.do(t, httptest.NewRequest(http.MethodGet, "/uploads/"+first, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "first", string(b))

	req = multipartRequest(t, http.MethodPost, "/assignments/"+idOf(hw)+"/upload", nil, "image", "v2.png", "second")
	resp, b = p.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(b))
	var updated map[string]any
	require.NoError(t, json.Unmarshal(b, &updated))
	second := updated["image"].(string)
	assert.NotEqual(t, first, second)

	resp, _ = p.do(t, httptest.NewRequest(http.MethodGet, "/uploads/"+first, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, b = p.do(t, httptest.NewRequest(http.MethodDelete, "/assignments/"+idOf(hw)+"/image", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), `"image":null`)

	resp, _ = p.do(t, httptest.NewRequest(http.MethodGet, "/uploads/"+second, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, b = p.do(t, httptest.NewRequest(http.MethodDelete, "/assignments/"+idOf(hw)+"/image", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(b))
}

func TestPortal_RequireAuthGuardsWrites(t *testing.T) {
	p := newPortal(t, true)

	resp, _ := p.do(t, jsonRequest(http.MethodPost, "/courses", map[string]any{"name": "A", "time": "t", "description": "d", "instructor": "i"}))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := jsonRequest(http.MethodPost, "/courses", map[string]any{"name": "A", "time": "t", "description": "d", "instructor": "i"})
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-token")
	resp, _ = p.do(t, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = p.do(t, httptest.NewRequest(http.MethodGet, "/courses", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPortal_UnknownRouteAndMethod(t *testing.T) {
	p := newPortal(t, false)

	resp, b := p.do(t, httptest.NewRequest(http.MethodGet, "/grades", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(b), `"code":"NOT_FOUND"`)

	resp, _ = p.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPortal_EmptyOptionalImageIsIgnored(t *testing.T) {
	p := newPortal(t, false)

	req := multipartRequest(t, http.MethodPost, "/assignments",
		map[string]string{"title": "HW", "course": "CS1", "deadline": "2024-02-01"}, "image", "blank.png", "")
	resp, b := p.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(b))
	var hw map[string]any
	require.NoError(t, json.Unmarshal(b, &hw))
	assert.Nil(t, hw["image"])

	req = multipartRequest(t, http.MethodPut, "/assignments/"+idOf(hw),
		map[string]string{"title": "HW (revised)"}, "image", "blank.png", "")
	resp, b = p.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(b))
	var updated map[string]any
	require.NoError(t, json.Unmarshal(b, &updated))
	assert.Equal(t, "HW (revised)", updated["title"])
	assert.Equal(t, "CS1", updated["course"])
	assert.Nil(t, updated["image"])

	req = multipartRequest(t, http.MethodPost, "/assignments/"+idOf(hw)+"/upload", nil, "image", "blank.png", "")
	resp, b = p.do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(b))
}
