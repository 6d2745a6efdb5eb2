package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"

	"docquizai/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// HandleGoogleLogin starts the Google OAuth flow.
func (h *Handler) HandleGoogleLogin(c *gin.Context) {
	session := sessions.Default(c)

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		h.handleError(c, uuid.Nil, http.StatusInternalServerError, "Generate OAuth State", err)
		return
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	session.Set(OauthStateSessionKey, state)
	if err := session.Save(); err != nil {
		h.handleError(c, uuid.Nil, http.StatusInternalServerError, "Save Session", err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.OauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline))
}

// HandleGoogleCallback handles the redirect back from Google: it checks the state,
// exchanges the code, upserts the user and stores the profile in the session.
func (h *Handler) HandleGoogleCallback(c *gin.Context) {
	ctx := c.Request.Context()
	session := sessions.Default(c)

	expected, _ := session.Get(OauthStateSessionKey).(string)
	state := c.Query("state")
	if state == "" || expected == "" || state != expected {
		h.log.Warn("invalid oauth state", "query_state", state)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid state parameter."})
		return
	}

	token, err := h.OauthConfig.Exchange(ctx, c.Query("code"))
	if err != nil {
		h.handleError(c, uuid.Nil, http.StatusInternalServerError, "Exchange OAuth Code", err)
		return
	}
	if !token.Valid() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Retrieved invalid token"})
		return
	}

	service, err := oauth2api.NewService(ctx, option.WithHTTPClient(h.OauthConfig.Client(ctx, token)))
	if err != nil {
		h.handleError(c, uuid.Nil, http.StatusInternalServerError, "Create OAuth2 Service", err)
		return
	}
	userinfo, err := service.Userinfo.V2.Me.Get().Context(ctx).Do()
	if err != nil {
		h.handleError(c, uuid.Nil, http.StatusInternalServerError, "Get User Info", err)
		return
	}

	user := &models.User{
		Email:    userinfo.Email,
		Name:     userinfo.Name,
		GoogleID: userinfo.Id,
		Picture:  userinfo.Picture,
	}
	if err := h.Users.UpsertUser(ctx, user); err != nil {
		h.handleError(c, uuid.Nil, http.StatusInternalServerError, "Upsert User", err)
		return
	}
	// Both timestamps come from the same statement on insert.
	newUser := user.CreatedAt.Equal(user.UpdatedAt)
	h.log.Info("user signed in", "user_id", user.ID, "email", user.Email, "new_user", newUser)
	h.Notifier.UserSignedIn(user.Name, user.Email, user.Picture, newUser)

	profile := UserProfile{
		DatabaseID:    user.ID,
		GoogleID:      userinfo.Id,
		Email:         userinfo.Email,
		VerifiedEmail: userinfo.VerifiedEmail != nil && *userinfo.VerifiedEmail,
		Name:          userinfo.Name,
		GivenName:     userinfo.GivenName,
		FamilyName:    userinfo.FamilyName,
		Picture:       userinfo.Picture,
		Locale:        userinfo.Locale,
	}
	session.Set(ProfileSessionKey, profile)
	session.Delete(OauthStateSessionKey)
	if err := session.Save(); err != nil {
		h.handleError(c, user.ID, http.StatusInternalServerError, "Save Session", err)
		return
	}

	redirect := h.FrontendURL
	if redirect == "" {
		redirect = "/"
	}
	c.Redirect(http.StatusTemporaryRedirect, redirect)
}

// HandleUserProfile returns the signed-in user's profile, refreshed from the users table.
// A session whose user no longer exists is treated as signed out.
func (h *Handler) HandleUserProfile(c *gin.Context) {
	profile, ok := currentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated or session invalid"})
		return
	}

	user, err := h.Users.GetUser(c.Request.Context(), profile.DatabaseID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.handleError(c, profile.DatabaseID, http.StatusUnauthorized, "Get User", err)
			return
		}
		h.handleError(c, profile.DatabaseID, http.StatusInternalServerError, "Get User", err)
		return
	}
	profile.Email = user.Email
	profile.Name = user.Name
	profile.Picture = user.Picture
	c.JSON(http.StatusOK, profile)
}

// HandleLogout clears the session.
func (h *Handler) HandleLogout(c *gin.Context) {
	session := sessions.Default(c)
	profile, _ := currentUser(c)

	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		h.log.Error("failed to save session during logout", "user_id", profile.DatabaseID, "error", err)
	}

	h.log.Info("user logged out", "user_id", profile.DatabaseID)
	c.Status(http.StatusOK)
}

// HandleAuthStatus reports whether the session holds a signed-in user.
func (h *Handler) HandleAuthStatus(c *gin.Context) {
	profile, ok := sessions.Default(c).Get(ProfileSessionKey).(UserProfile)
	if !ok || profile.DatabaseID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          profile,
	})
}
