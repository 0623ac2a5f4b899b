package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatneto/internal/models"
	"chatneto/internal/repositories"
)

// ProfileHandler serves the signed-in user's own profile.
type ProfileHandler struct {
	profiles repositories.ProfileRepository
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(profiles repositories.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Me returns the caller's profile.
func (h *ProfileHandler) Me(c *gin.Context) {
	userID := c.GetInt("userID")

	profile, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if errors.Is(err, repositories.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

// Contacts lists every other user, so the caller can pick who to chat with.
func (h *ProfileHandler) Contacts(c *gin.Context) {
	userID := c.GetInt("userID")

	profiles, err := h.profiles.ListProfiles(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load contacts"})
		return
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}

	c.JSON(http.StatusOK, profiles)
}

// UpdateMe patches the caller's editable profile fields.
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	userID := c.GetInt("userID")

	var update models.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.profiles.UpdateProfile(c.Request.Context(), userID, update)
	if errors.Is(err, repositories.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, profile)
}
