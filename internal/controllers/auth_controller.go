package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"shortly/internal/entities"
	"shortly/internal/models"
)

// AuthService registers and logs in users
type AuthService interface {
	Register(ctx context.Context, email, password string, name *string) (*entities.User, string, error)
	Login(ctx context.Context, email, password string) (*entities.User, string, error)
}

type AuthController struct {
	authService AuthService
}

func NewAuthController(authService AuthService) *AuthController {
	return &AuthController{
		authService: authService,
	}
}

// Register handles POST /api/v1/auth/register
func (ac *AuthController) Register(c *gin.Context) {
	const op = "controllers.AuthController.Register"

	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, token, err := ac.authService.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusCreated, models.RegisterResponse{
		Message: "User registered successfully",
		User:    models.NewAuthResponse(user, token),
	})
}

// Login handles POST /api/v1/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	const op = "controllers.AuthController.Login"

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, token, err := ac.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, models.NewAuthResponse(user, token))
}
