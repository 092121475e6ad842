package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gomartvn/gomart-backend/api/middleware"
	"github.com/gomartvn/gomart-backend/api/responses"
	"github.com/gomartvn/gomart-backend/api/validators"
	"github.com/gomartvn/gomart-backend/internal/catalog"
	"github.com/gomartvn/gomart-backend/internal/tokens"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Phone     *string   `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenPairResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Phone:     user.Phone,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
	}
}

func issuePair(r *http.Request, issuer tokens.Service, user *models.User) (*tokenPairResponse, error) {
	access, err := issuer.Issue(r.Context(), enums.TokenKindAccess, user.ID.String())
	if err != nil {
		return nil, err
	}
	refresh, err := issuer.Issue(r.Context(), enums.TokenKindRefresh, user.ID.String())
	if err != nil {
		return nil, err
	}
	return &tokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         newUserResponse(user),
	}, nil
}

// AuthRegister creates a customer account and signs it in.
func AuthRegister(accounts catalog.Service, issuer tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := accounts.Register(r.Context(), catalog.RegisterUserInput{
			Email:    body.Email,
			Password: body.Password,
			FullName: body.FullName,
			Phone:    body.Phone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pair, err := issuePair(r, issuer, user)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, pair)
	}
}

func AuthLogin(accounts catalog.Service, issuer tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := accounts.Authenticate(r.Context(), body.Email, body.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pair, err := issuePair(r, issuer, user)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pair)
	}
}

// AuthRefresh rotates a refresh token: the presented token is revoked and a
// fresh pair is minted for the same subject.
func AuthRefresh(accounts catalog.Service, issuer tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subject, err := issuer.Verify(r.Context(), body.RefreshToken, enums.TokenKindRefresh)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := uuid.Parse(subject)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token subject"))
			return
		}
		user, err := accounts.GetUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account unavailable"))
			return
		}

		if err := issuer.Revoke(r.Context(), body.RefreshToken); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pair, err := issuePair(r, issuer, user)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pair)
	}
}

// AuthLogout revokes the presented refresh token.
func AuthLogout(issuer tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := issuer.Revoke(r.Context(), body.RefreshToken); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// AuthLogoutAll invalidates every token issued to the caller before now.
func AuthLogoutAll(issuer tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		if err := issuer.RevokeAll(r.Context(), userID.String()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// AuthPasswordReset issues a reset token for the account behind the email.
// The response is identical whether or not the account exists.
func AuthPasswordReset(accounts catalog.Service, issuer tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body passwordResetRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := accounts.GetUserByEmail(r.Context(), body.Email)
		if err == nil {
			token, issueErr := issuer.Issue(r.Context(), enums.TokenKindPasswordReset, user.ID.String())
			if issueErr != nil {
				responses.WriteError(r.Context(), logg, w, issueErr)
				return
			}
			if logg != nil {
				ctx := logg.WithUserID(r.Context(), user.ID.String())
				ctx = logg.WithFields(ctx, map[string]any{"token_len": len(token)})
				logg.Info(ctx, "password reset token issued")
			}
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "reset_requested"})
	}
}

// AuthPasswordResetConfirm consumes a reset token, overwrites the password
// and revokes every outstanding session.
func AuthPasswordResetConfirm(accounts catalog.Service, issuer tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body passwordResetConfirmRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subject, err := issuer.Verify(r.Context(), body.Token, enums.TokenKindPasswordReset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := uuid.Parse(subject)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token subject"))
			return
		}

		if err := accounts.SetPassword(r.Context(), userID, body.Password); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// reset token is single use, and old sessions die with it
		if err := issuer.Revoke(r.Context(), body.Token); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := issuer.RevokeAll(r.Context(), userID.String()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "password_updated"})
	}
}

func AuthChangePassword(accounts catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body changePasswordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := accounts.ChangePassword(r.Context(), userID, body.CurrentPassword, body.NewPassword); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "password_updated"})
	}
}

// AuthMe returns the authenticated profile.
func AuthMe(accounts catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		user, err := accounts.GetUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newUserResponse(user))
	}
}
