// Package notify posts operational events to a Discord webhook.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"docquizai/internal/logger"
	"docquizai/internal/models"

	"github.com/google/uuid"
)

const (
	botUsername = "DocQuizAI Notifier"

	colorGreen  = 0x00FF00
	colorOrange = 0xFFA500
	colorRed    = 0xFF0000
)

type EmbedFooter struct {
	Text    string `json:"text,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedAuthor struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Embed is a Discord message embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"` // ISO8601
	Color       int          `json:"color,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// WebhookPayload is the body Discord expects for webhook requests with embeds.
type WebhookPayload struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

// Discord sends embeds asynchronously. A Discord with an empty webhook URL drops everything.
type Discord struct {
	webhookURL string
	client     *http.Client
	wg         sync.WaitGroup
	log        *logger.Logger
}

func NewDiscord(webhookURL string, log *logger.Logger) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		log:        log.With("component", "discord"),
	}
}

func (d *Discord) Enabled() bool {
	return d != nil && d.webhookURL != ""
}

// Send posts embed in the background.
func (d *Discord) Send(embed Embed) {
	if !d.Enabled() {
		return
	}
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().Format(time.RFC3339)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.post(WebhookPayload{Username: botUsername, Embeds: []Embed{embed}}); err != nil {
			d.log.Error("failed to send Discord notification", "title", embed.Title, "error", err)
			return
		}
		d.log.Debug("sent Discord notification", "title", embed.Title)
	}()
}

// Wait blocks until every pending notification has been sent or has failed.
func (d *Discord) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}

func (d *Discord) post(payload WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// QuizFinished reports a quiz that reached COMPLETED or FAILED.
func (d *Discord) QuizFinished(q models.Quiz) {
	if !d.Enabled() {
		return
	}

	embed := Embed{
		Fields: []EmbedField{
			{Name: "Quiz ID", Value: fmt.Sprintf("`%s`", q.ID), Inline: false},
			{Name: "User ID", Value: fmt.Sprintf("`%s`", q.UserID), Inline: false},
			{Name: "Questions", Value: fmt.Sprintf("%d / %d", q.CurrentNos, q.MaxNos), Inline: true},
			{Name: "MCQ", Value: fmt.Sprintf("%d / %d", q.Progress.FulfilledMCQ, q.Config.Types.MCQ), Inline: true},
			{Name: "True/False", Value: fmt.Sprintf("%d / %d", q.Progress.FulfilledTF, q.Config.Types.TrueFalse), Inline: true},
		},
		Footer: &EmbedFooter{Text: "Generated via DocQuizAI"},
	}

	switch {
	case q.Status == models.StatusFailed:
		embed.Title = "❌ Quiz Generation Failed"
		embed.Color = colorRed
		embed.Description = fmt.Sprintf("**Reason:**\n```%s```", q.FailureReason)
	case q.CurrentNos < q.MaxNos:
		embed.Title = "⚠️ Quiz Partially Generated"
		embed.Color = colorOrange
	default:
		embed.Title = "✅ Quiz Generated"
		embed.Color = colorGreen
	}

	if q.Report != nil {
		failedDocs, failedBatches := q.Report.Count(models.OutcomeFailed)
		skippedDocs, skippedBatches := q.Report.Count(models.OutcomeSkipped)
		embed.Fields = append(embed.Fields,
			EmbedField{Name: "Documents", Value: fmt.Sprintf("%d (%d failed, %d skipped)", len(q.Report.Documents), failedDocs, skippedDocs), Inline: true},
			EmbedField{Name: "Batches", Value: fmt.Sprintf("%d (%d failed, %d skipped)", len(q.Report.Batches), failedBatches, skippedBatches), Inline: true},
		)
	}
	d.Send(embed)
}

// HandlerError reports a request that ended with a server error.
func (d *Discord) HandlerError(path string, status int, userID uuid.UUID, action string, err error) {
	if !d.Enabled() {
		return
	}

	embed := Embed{
		Title:       fmt.Sprintf("🚨 API Error: %s", action),
		Description: fmt.Sprintf("**Error Details:**\n```%s```", err.Error()),
		Color:       colorRed,
	}
	if userID != uuid.Nil {
		embed.Fields = append(embed.Fields, EmbedField{Name: "User ID", Value: fmt.Sprintf("`%s`", userID), Inline: true})
	}
	embed.Fields = append(embed.Fields,
		EmbedField{Name: "HTTP Status", Value: fmt.Sprintf("%d", status), Inline: true},
		EmbedField{Name: "Path", Value: path, Inline: false},
	)
	d.Send(embed)
}

// UserSignedIn reports a Google login. newUser marks the first login of an account.
func (d *Discord) UserSignedIn(name, email, picture string, newUser bool) {
	if !d.Enabled() {
		return
	}

	embed := Embed{
		Title: "✅ User Login",
		Color: colorGreen,
		Fields: []EmbedField{
			{Name: "User", Value: fmt.Sprintf("%s (%s)", name, email), Inline: false},
		},
	}
	if newUser {
		embed.Title = "🎉 New Signup"
	}
	if picture != "" {
		embed.Author = &EmbedAuthor{Name: name, IconURL: picture}
	}
	d.Send(embed)
}
