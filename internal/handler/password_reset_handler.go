package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/movielix/auth-api/internal/models"
	"github.com/movielix/auth-api/internal/service"
	appErrors "github.com/movielix/auth-api/pkg/errors"
	"github.com/movielix/auth-api/pkg/response"
)

// PasswordResetHandler wires the forgot-password endpoints to the reset flow.
type PasswordResetHandler struct {
	service *service.PasswordResetService
}

// NewPasswordResetHandler creates a new handler.
func NewPasswordResetHandler(svc *service.PasswordResetService) *PasswordResetHandler {
	return &PasswordResetHandler{service: svc}
}

// VerifyMail godoc
// @Summary Request password reset
// @Description Generate an OTP challenge for the account and send it by mail
// @Tags Password Reset
// @Produce json
// @Param email path string true "Account email"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /forgotPassword/verifyMail/{email} [post]
func (h *PasswordResetHandler) VerifyMail(c *gin.Context) {
	email := c.Param("email")

	if err := h.service.RequestReset(c.Request.Context(), email); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "email sent for verification"})
}

// VerifyOtp godoc
// @Summary Verify reset OTP
// @Description Check a presented OTP against the account's outstanding challenge
// @Tags Password Reset
// @Produce json
// @Param otp path int true "6-digit code"
// @Param email path string true "Account email"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 417 {object} response.Envelope
// @Router /forgotPassword/verifyOtp/{otp}/{email} [post]
func (h *PasswordResetHandler) VerifyOtp(c *gin.Context) {
	email := c.Param("email")
	code, err := strconv.Atoi(c.Param("otp"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidOtp, "otp must be numeric"))
		return
	}

	if err := h.service.VerifyOtp(c.Request.Context(), code, email); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "otp verified"})
}

// ChangePassword godoc
// @Summary Complete password reset
// @Description Replace the account password once the supplied pair matches
// @Tags Password Reset
// @Accept json
// @Produce json
// @Param email path string true "Account email"
// @Param payload body models.ChangePasswordRequest true "New password pair"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 417 {object} response.Envelope
// @Router /forgotPassword/changePassword/{email} [post]
func (h *PasswordResetHandler) ChangePassword(c *gin.Context) {
	email := c.Param("email")

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), email, req); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": "password has been changed"})
}
