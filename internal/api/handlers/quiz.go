package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"docquizai/internal/models"
	"docquizai/internal/quiz"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// multipartMemory is how much of an upload is kept in memory before spilling to disk.
const multipartMemory = 8 << 20

// CreateQuizResponse is returned once the quiz job has been accepted.
type CreateQuizResponse struct {
	Success bool              `json:"success"`
	QuizID  uuid.UUID         `json:"quizId"`
	Config  models.QuizConfig `json:"config"`
}

// HandleCreateQuiz accepts the uploaded documents and starts a quiz generation job.
// It answers as soon as the job is scheduled; clients poll HandleGetQuiz.
func (h *Handler) HandleCreateQuiz(c *gin.Context) {
	ctx := c.Request.Context()
	profile, ok := currentUser(c)
	if !ok {
		h.handleError(c, uuid.Nil, http.StatusUnauthorized, "Get User Profile from Context", errors.New("user not authenticated"))
		return
	}
	userID := profile.DatabaseID

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		h.handleError(c, userID, http.StatusBadRequest, "Parse Multipart Form", err)
		return
	}
	form := c.Request.MultipartForm

	cfg, err := parseQuizConfig(form)
	if err != nil {
		h.handleError(c, userID, http.StatusBadRequest, "Parse Quiz Config", err)
		return
	}

	docs, err := readDocuments(form.File["files"])
	if err != nil {
		h.handleError(c, userID, http.StatusBadRequest, "Read Uploaded Files", err)
		return
	}

	q, err := h.Quizzes.CreateQuizJob(ctx, userID, docs, cfg)
	if err != nil {
		if errors.Is(err, quiz.ErrValidation) {
			h.handleError(c, userID, http.StatusBadRequest, "Validate Quiz Request", err)
			return
		}
		h.handleError(c, userID, http.StatusInternalServerError, "Create Quiz Job", err)
		return
	}

	c.JSON(http.StatusCreated, CreateQuizResponse{
		Success: true,
		QuizID:  q.ID,
		Config:  q.Config,
	})
}

// HandleGetQuiz returns a quiz with the questions generated so far. Quizzes of other
// users are reported as missing.
func (h *Handler) HandleGetQuiz(c *gin.Context) {
	profile, ok := currentUser(c)
	if !ok {
		h.handleError(c, uuid.Nil, http.StatusUnauthorized, "Get User Profile from Context", errors.New("user not authenticated"))
		return
	}

	quizID, err := uuid.Parse(c.Param("quizId"))
	if err != nil {
		h.handleError(c, profile.DatabaseID, http.StatusBadRequest, "Parse Quiz ID", err)
		return
	}

	detail, err := h.Quizzes.GetQuiz(c.Request.Context(), quizID)
	if err != nil {
		if errors.Is(err, quiz.ErrNotFound) {
			h.handleError(c, profile.DatabaseID, http.StatusNotFound, "Get Quiz", fmt.Errorf("quiz %s not found", quizID))
			return
		}
		h.handleError(c, profile.DatabaseID, http.StatusInternalServerError, "Get Quiz", err)
		return
	}
	if detail.Quiz.UserID != profile.DatabaseID {
		h.handleError(c, profile.DatabaseID, http.StatusNotFound, "Get Quiz", fmt.Errorf("quiz %s not found", quizID))
		return
	}
	if detail.Questions == nil {
		detail.Questions = []models.Question{}
	}

	c.JSON(http.StatusOK, detail)
}

// HandleListUserQuizzes returns the caller's quizzes, newest first.
func (h *Handler) HandleListUserQuizzes(c *gin.Context) {
	profile, ok := currentUser(c)
	if !ok {
		h.handleError(c, uuid.Nil, http.StatusUnauthorized, "Get User Profile from Context", errors.New("user not authenticated"))
		return
	}

	quizzes, err := h.Quizzes.ListQuizzes(c.Request.Context(), profile.DatabaseID)
	if err != nil {
		h.handleError(c, profile.DatabaseID, http.StatusInternalServerError, "List Quizzes", err)
		return
	}
	if quizzes == nil {
		quizzes = []models.Quiz{}
	}
	c.JSON(http.StatusOK, quizzes)
}

// parseQuizConfig reads either a JSON "config" field or the flat totalQuestions, mcq
// and trueFalse fields.
func parseQuizConfig(form *multipart.Form) (models.QuizConfig, error) {
	var cfg models.QuizConfig

	if raw := formValue(form, "config"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return cfg, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}

	fields := []struct {
		name string
		dst  *int
	}{
		{"totalQuestions", &cfg.TotalQuestions},
		{"mcq", &cfg.Types.MCQ},
		{"trueFalse", &cfg.Types.TrueFalse},
	}
	for _, f := range fields {
		raw := formValue(form, f.name)
		if raw == "" {
			return cfg, fmt.Errorf("missing %s", f.name)
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s %q", f.name, raw)
		}
		*f.dst = n
	}
	return cfg, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

// readDocuments loads the uploaded files. Each read stops one byte past the accepted
// total so an oversized upload is still rejected by validation.
func readDocuments(files []*multipart.FileHeader) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(io.LimitReader(f, quiz.MaxTotalBytes+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		docs = append(docs, models.Document{
			Filename: fh.Filename,
			Size:     int64(len(content)),
			Content:  content,
		})
	}
	return docs, nil
}
