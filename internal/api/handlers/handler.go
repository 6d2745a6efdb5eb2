package handlers

import (
	"context"
	"fmt"
	"net/http"

	"docquizai/internal/logger"
	"docquizai/internal/models"
	"docquizai/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// UserProfile stores information about the authenticated user.
type UserProfile struct {
	DatabaseID    uuid.UUID `json:"-"`  // internal user id, never sent to the client
	GoogleID      string    `json:"id"` // Google's id
	Email         string    `json:"email"`
	VerifiedEmail bool      `json:"verified_email"`
	Name          string    `json:"name"`
	GivenName     string    `json:"given_name"`
	FamilyName    string    `json:"family_name"`
	Picture       string    `json:"picture"`
	Locale        string    `json:"locale"`
}

// Session and context keys.
const (
	OauthStateSessionKey = "oauthstate"
	ProfileSessionKey    = "profile"

	UserProfileContextKey = "userProfile"
)

// QuizService is the quiz surface the handlers expose.
type QuizService interface {
	CreateQuizJob(ctx context.Context, ownerID uuid.UUID, docs []models.Document, cfg models.QuizConfig) (*models.Quiz, error)
	GetQuiz(ctx context.Context, quizID uuid.UUID) (*models.QuizDetail, error)
	ListQuizzes(ctx context.Context, userID uuid.UUID) ([]models.Quiz, error)
}

type UserStore interface {
	UpsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Handler contains the API handlers dependencies
type Handler struct {
	OauthConfig *oauth2.Config
	FrontendURL string
	Users       UserStore
	Quizzes     QuizService
	Notifier    *notify.Discord
	log         *logger.Logger
}

// NewHandler creates a new Handler. notifier may be nil.
func NewHandler(oauth *oauth2.Config, frontendURL string, users UserStore, quizzes QuizService, notifier *notify.Discord, log *logger.Logger) *Handler {
	return &Handler{
		OauthConfig: oauth,
		FrontendURL: frontendURL,
		Users:       users,
		Quizzes:     quizzes,
		Notifier:    notifier,
		log:         log.With("component", "api"),
	}
}

// handleError logs err, reports server errors to Discord and aborts the request.
func (h *Handler) handleError(c *gin.Context, userID uuid.UUID, statusCode int, action string, err error) {
	if statusCode >= http.StatusInternalServerError {
		h.log.Error(action, "error", err, "user_id", userID, "path", c.Request.URL.Path, "status", statusCode)
		h.Notifier.HandlerError(c.Request.URL.Path, statusCode, userID, action, err)
	} else {
		h.log.Warn(action, "error", err, "user_id", userID, "path", c.Request.URL.Path, "status", statusCode)
	}

	c.AbortWithStatusJSON(statusCode, models.ErrorResponse{Error: fmt.Sprintf("%s: %v", action, err)})
}

// currentUser returns the profile AuthRequired put on the context.
func currentUser(c *gin.Context) (UserProfile, bool) {
	value, exists := c.Get(UserProfileContextKey)
	if !exists {
		return UserProfile{}, false
	}
	profile, ok := value.(UserProfile)
	if !ok || profile.DatabaseID == uuid.Nil {
		return UserProfile{}, false
	}
	return profile, true
}
