package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/config"
	"gamyacollections/internal/mailer"
	"gamyacollections/internal/middleware"
	"gamyacollections/internal/models"
	"gamyacollections/internal/store"
)

const resetOTPTTL = 10 * time.Minute

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	OTP         string `json:"otp" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

func userResponse(user *models.User) gin.H {
	return gin.H{
		"_id":   user.ID.Hex(),
		"name":  user.Name,
		"email": user.Email,
		"phone": user.Phone,
		"role":  user.Role,
	}
}

func Register(users store.Users, jwtSecret string, accessTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/register"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(c, route, apperr.Internal("password hash failed", err))
			return
		}

		now := time.Now()
		user := &models.User{
			Name:         strings.TrimSpace(req.Name),
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			PasswordHash: string(hash),
			Phone:        strings.TrimSpace(req.Phone),
			Role:         models.RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := users.Create(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				respondError(c, route, apperr.Conflict("User already exists"))
				return
			}
			respondError(c, route, apperr.Internal("failed to create user", err))
			return
		}

		token, err := issueUserToken(user, jwtSecret, accessTTL)
		if err != nil {
			respondError(c, route, apperr.Internal("token generation failed", err))
			return
		}
		setTokenCookie(c, token, accessTTL)

		log.Println("[AUTH] [INFO] user registered:", user.Email)
		c.JSON(http.StatusCreated, gin.H{"success": true, "token": token, "user": userResponse(user)})
	}
}

func Login(users store.Users, jwtSecret string, accessTTL time.Duration) gin.HandlerFunc {
	return login("POST /api/auth/login", users, jwtSecret, accessTTL, false)
}

// AdminLogin only accepts accounts with the admin role.
func AdminLogin(users store.Users, jwtSecret string, accessTTL time.Duration) gin.HandlerFunc {
	return login("POST /api/auth/admin/login", users, jwtSecret, accessTTL, true)
}

func login(route string, users store.Users, jwtSecret string, accessTTL time.Duration, adminOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		user, err := users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			respondError(c, route, apperr.Internal("user lookup failed", err))
			return
		}
		if user == nil || (adminOnly && !user.IsAdmin()) ||
			bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			log.Printf("[%s] [ERROR] invalid credentials", route)
			respondError(c, route, apperr.Unauthorized("Invalid email or password"))
			return
		}

		token, err := issueUserToken(user, jwtSecret, accessTTL)
		if err != nil {
			respondError(c, route, apperr.Internal("token generation failed", err))
			return
		}
		setTokenCookie(c, token, accessTTL)

		log.Println("[AUTH] [INFO] login succeeded:", user.Email, user.Role)
		c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": userResponse(user)})
	}
}

func Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		setTokenCookie(c, "", -time.Second)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
	}
}

func Me() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c, "GET /api/auth/me")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "user": userResponse(user)})
	}
}

// ForgotPassword mails a one-time code. Unknown emails get the same answer
// so the endpoint cannot be used to probe accounts.
func ForgotPassword(users store.Users, mail mailer.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/forgot-password"
		defer handlePanic(c, route)

		var req ForgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		const reply = "If the email is registered, a reset code has been sent"
		user, err := users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"success": true, "message": reply})
			return
		}
		if err != nil {
			respondError(c, route, apperr.Internal("user lookup failed", err))
			return
		}

		otp, err := generateOTP()
		if err != nil {
			respondError(c, route, apperr.Internal("otp generation failed", err))
			return
		}
		if err := users.SetResetOTP(ctx, user.ID, hashToken(otp), time.Now().Add(resetOTPTTL)); err != nil {
			respondError(c, route, apperr.Internal("failed to store reset code", err))
			return
		}

		msg, err := mailer.PasswordResetOTP(*user, otp, resetOTPTTL)
		if err == nil {
			err = mail.Send(ctx, msg)
		}
		if err != nil {
			respondError(c, route, apperr.Internal("Failed to send reset code", err))
			return
		}

		log.Println("[AUTH] [INFO] reset code sent:", user.Email)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": reply})
	}
}

func ResetPassword(users store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/auth/reset-password"
		defer handlePanic(c, route)

		var req ResetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		invalid := apperr.Validation("Invalid or expired reset code")
		user, err := users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, route, invalid)
			return
		}
		if err != nil {
			respondError(c, route, apperr.Internal("user lookup failed", err))
			return
		}
		if user.ResetOTP == "" || user.ResetOTPExpiry == nil || time.Now().After(*user.ResetOTPExpiry) ||
			subtle.ConstantTimeCompare([]byte(user.ResetOTP), []byte(hashToken(strings.TrimSpace(req.OTP)))) != 1 {
			respondError(c, route, invalid)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			respondError(c, route, apperr.Internal("password hash failed", err))
			return
		}
		if err := users.ResetPassword(ctx, user.ID, string(hash)); err != nil {
			respondError(c, route, apperr.Internal("failed to reset password", err))
			return
		}

		log.Println("[AUTH] [INFO] password reset:", user.Email)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password has been reset"})
	}
}

func issueUserToken(user *models.User, secret string, accessTTL time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":    user.ID.Hex(),
		"email": user.Email,
		"role":  string(user.Role),
		"exp":   time.Now().Add(accessTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func setTokenCookie(c *gin.Context, token string, ttl time.Duration) {
	secure := config.AppEnv.IsProduction()
	if secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(middleware.TokenCookie, token, int(ttl.Seconds()), "/", "", secure, true)
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
