package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatneto/internal/mocks"
	"chatneto/internal/models"
	"chatneto/internal/repositories"
)

func setupProfileRouter(handler *ProfileHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/profiles/me", handler.Me)
	r.PATCH("/profiles/me", handler.UpdateMe)
	r.GET("/contacts", handler.Contacts)
	return r
}

func TestMeSuccess(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupProfileRouter(NewProfileHandler(profiles))

	profiles.On("GetProfile", mock.Anything, 1).Return(models.Profile{ID: 1, Email: "bob@example.com", Name: "bob"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/profiles/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.Profile
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "bob", resp.Name)
	profiles.AssertExpectations(t)
}

func TestMeNotFound(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupProfileRouter(NewProfileHandler(profiles))

	profiles.On("GetProfile", mock.Anything, 1).Return(models.Profile{}, repositories.ErrProfileNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/profiles/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	profiles.AssertExpectations(t)
}

func TestContactsExcludeSelf(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupProfileRouter(NewProfileHandler(profiles))

	profiles.On("ListProfiles", mock.Anything, 1).Return([]models.Profile{
		{ID: 2, Name: "alice"},
		{ID: 3, Name: "carol"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []models.Profile
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "alice", resp[0].Name)
	profiles.AssertExpectations(t)
}

func TestContactsEmpty(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupProfileRouter(NewProfileHandler(profiles))

	profiles.On("ListProfiles", mock.Anything, 1).Return(([]models.Profile)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()), "no contacts is an empty list, not null")
	profiles.AssertExpectations(t)
}

func TestContactsRepoError(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupProfileRouter(NewProfileHandler(profiles))

	profiles.On("ListProfiles", mock.Anything, 1).Return(([]models.Profile)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	profiles.AssertExpectations(t)
}

func TestUpdateMeSuccess(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupProfileRouter(NewProfileHandler(profiles))

	name := "bobby"
	profiles.On("UpdateProfile", mock.Anything, 1, models.ProfileUpdate{Name: &name}).
		Return(models.Profile{ID: 1, Name: "bobby"}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/profiles/me", bytes.NewBufferString(`{"name":"bobby"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	profiles.AssertExpectations(t)
}

func TestUpdateMeRepoError(t *testing.T) {
	profiles := new(mocks.ProfileRepositoryMock)
	router := setupProfileRouter(NewProfileHandler(profiles))

	profiles.On("UpdateProfile", mock.Anything, 1, mock.Anything).
		Return(models.Profile{}, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPatch, "/profiles/me", bytes.NewBufferString(`{"bio":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	profiles.AssertExpectations(t)
}
