package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"weatherstation-server/internal/modules/accounts/service"
	"weatherstation-server/internal/modules/accounts/types"
	"weatherstation-server/internal/utils"
)

type userResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func toUserResponse(u *types.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RePassword string `json:"re_password"`
	Name       string `json:"name"`
}

func (c *accountsControllerImpl) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := c.svc.Register(r.Context(), service.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		RePassword: req.RePassword,
		Name:       req.Name,
	})
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			utils.WriteError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, service.ErrEmailTaken):
			utils.WriteError(w, http.StatusBadRequest, "a user with this email already exists")
		default:
			slog.Error("register failed", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	utils.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

func (c *accountsControllerImpl) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := c.svc.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		utils.WriteError(w, http.StatusBadRequest, "unable to log in with provided credentials")
		return
	}
	if err != nil {
		slog.Error("login failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "login failed")
		return
	}

	plaintext, token, err := c.svc.IssueAuthToken(r.Context(), user)
	if err != nil {
		slog.Error("issue token failed", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "login failed")
		return
	}

	utils.WriteJSON(w, http.StatusOK, loginResponse{Token: plaintext, Expiry: token.ExpiresAt})
}

func (c *accountsControllerImpl) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFrom(r.Context())
	if !ok {
		// API-key requests carry no login token to revoke.
		utils.WriteError(w, http.StatusBadRequest, "no login token to revoke")
		return
	}
	if err := c.svc.Logout(r.Context(), token.ID); err != nil {
		slog.Error("logout failed", "token_id", token.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *accountsControllerImpl) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	if err := c.svc.LogoutAll(r.Context(), user.ID); err != nil {
		slog.Error("logoutall failed", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type apiKeyResponse struct {
	Token string `json:"token"`
}

// handleCreateAPIKey exchanges credentials for a fresh ingest key.
// Issuing a new key invalidates the previous one.
func (c *accountsControllerImpl) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := c.svc.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		utils.WriteError(w, http.StatusBadRequest, "unable to log in with provided credentials")
		return
	}
	if err != nil {
		slog.Error("api key auth failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to create API key")
		return
	}

	plaintext, err := c.svc.IssueAPIKey(r.Context(), user)
	if err != nil {
		slog.Error("issue api key failed", "user_id", user.ID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to create API key")
		return
	}

	utils.WriteJSON(w, http.StatusOK, apiKeyResponse{Token: plaintext})
}

func (c *accountsControllerImpl) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	utils.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

type updateMeRequest struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

func (c *accountsControllerImpl) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	c.updateMe(w, r, false)
}

func (c *accountsControllerImpl) handlePatchMe(w http.ResponseWriter, r *http.Request) {
	c.updateMe(w, r, true)
}

func (c *accountsControllerImpl) updateMe(w http.ResponseWriter, r *http.Request, partial bool) {
	user, _ := UserFrom(r.Context())

	var req updateMeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !partial && (req.Email == nil || req.Name == nil) {
		utils.WriteError(w, http.StatusBadRequest, "email and name are required")
		return
	}

	updated, err := c.svc.Update(r.Context(), user, service.UpdateInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			utils.WriteError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, service.ErrEmailTaken):
			utils.WriteError(w, http.StatusBadRequest, "a user with this email already exists")
		default:
			slog.Error("update user failed", "user_id", user.ID, "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, toUserResponse(updated))
}
