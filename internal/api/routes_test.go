package api

import (
	"context"
	"encoding/gob"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docquizai/internal/api/handlers"
	"docquizai/internal/logger"
	"docquizai/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gob.Register(handlers.UserProfile{})
}

type stubQuizzes struct{}

func (stubQuizzes) CreateQuizJob(ctx context.Context, ownerID uuid.UUID, docs []models.Document, cfg models.QuizConfig) (*models.Quiz, error) {
	return &models.Quiz{ID: uuid.New()}, nil
}

func (stubQuizzes) GetQuiz(ctx context.Context, quizID uuid.UUID) (*models.QuizDetail, error) {
	return nil, models.ErrNotFound
}

func (stubQuizzes) ListQuizzes(ctx context.Context, userID uuid.UUID) ([]models.Quiz, error) {
	return []models.Quiz{{ID: uuid.New(), UserID: userID}}, nil
}

type stubUsers struct{}

func (stubUsers) UpsertUser(ctx context.Context, u *models.User) error { return nil }

func (stubUsers) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return &models.User{ID: id, Email: "ada@example.com", Name: "Ada Lovelace"}, nil
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(sessions.Sessions("docquizai_session", cookie.NewStore([]byte("test-secret"))))
	// Signs a user in without going through Google.
	router.GET("/test/login", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set(handlers.ProfileSessionKey, handlers.UserProfile{DatabaseID: uuid.New(), Email: "ada@example.com"})
		if err := s.Save(); err != nil {
			t.Fatalf("save session: %v", err)
		}
		c.Status(http.StatusOK)
	})

	h := handlers.NewHandler(nil, "http://app.test", stubUsers{}, stubQuizzes{}, nil, logger.Nop())
	SetupRoutes(router, h, "http://app.test/", logger.Nop())
	return router
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	router := newRouter(t)

	for _, path := range []string{"/api/quizzes", "/api/user/profile", "/api/quizzes/" + uuid.NewString()} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("auth status = %d, want 401", w.Code)
	}
}

func TestSignedInSession(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test/login", nil))
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login did not set a session cookie")
	}

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	if w := get("/api/quizzes"); w.Code != http.StatusOK {
		t.Fatalf("list quizzes = %d (%s)", w.Code, w.Body.String())
	}
	if w := get("/api/user/profile"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Ada Lovelace") {
		t.Fatalf("profile = %d (%s)", w.Code, w.Body.String())
	}
	if w := get("/api/auth/status"); w.Code != http.StatusOK {
		t.Fatalf("auth status = %d", w.Code)
	}
	if w := get("/api/quizzes/" + uuid.NewString()); w.Code != http.StatusNotFound {
		t.Fatalf("unknown quiz = %d, want 404", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/quizzes", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://app.test" {
		t.Fatalf("allow origin = %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("credentials not allowed")
	}
}
