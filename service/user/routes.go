package user

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/utils"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes registers all user routes
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/register", h.handleRegister).Methods("POST")
	router.HandleFunc("/users/login", h.handleLogin).Methods("POST")
	router.HandleFunc("/users/refresh", h.handleRefresh).Methods("POST")
	router.HandleFunc("/users/{id:[0-9]+}", utils.AuthMiddleware(h.handleGetUser)).Methods("GET")
	router.HandleFunc("/users/me", utils.AuthMiddleware(h.handleUpdateProfile)).Methods("PATCH")
}

type registerRequest struct {
	FullName             string   `json:"full_name"`
	Email                string   `json:"email"`
	Password             string   `json:"password"`
	Role                 string   `json:"role"`
	Phone                string   `json:"phone"`
	State                string   `json:"state"`
	District             string   `json:"district"`
	Village              string   `json:"village"`
	IsPmKisanBeneficiary bool     `json:"is_pm_kisan_beneficiary"`
	IsFpoMember          bool     `json:"is_fpo_member"`
	KccNumber            string   `json:"kcc_number"`
	PreferredCrops       []string `json:"preferred_crops"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}

	if req.FullName == "" || req.Email == "" || req.Phone == "" || req.State == "" {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "full_name, email, phone and state are required"))
		return
	}
	if len(req.Password) < 8 {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "password must be at least 8 characters"))
		return
	}
	if !models.IsParticipantRole(req.Role) {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "role must be farmer, landowner or both"))
		return
	}

	var count int64
	h.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count)
	if count > 0 {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "email is already registered"))
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error hashing password", err))
		return
	}

	user := models.User{
		FullName:             req.FullName,
		Email:                req.Email,
		PasswordHash:         string(passwordHash),
		Role:                 req.Role,
		Phone:                req.Phone,
		State:                req.State,
		District:             req.District,
		Village:              req.Village,
		IsPmKisanBeneficiary: req.IsPmKisanBeneficiary,
		IsFpoMember:          req.IsFpoMember,
		KccNumber:            req.KccNumber,
		PreferredCrops:       req.PreferredCrops,
		SubscriptionTier:     models.TierBasic,
		SubscriptionStatus:   models.SubscriptionInactive,
	}

	if err := h.db.Create(&user).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error creating user", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Registration successful",
		"user":    user,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", loginRequest.Email).First(&user).Error; err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "invalid credentials"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(loginRequest.Password)); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "invalid credentials"))
		return
	}

	accessToken, err := generateJWT(user.ID, 24*time.Hour)
	if err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error generating access token", err))
		return
	}

	refreshToken, err := generateRefreshToken()
	if err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error generating refresh token", err))
		return
	}
	if err := h.saveRefreshToken(user.ID, refreshToken); err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error saving refresh token", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":       "Login successful",
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user_id":       user.ID,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "refresh_token is required"))
		return
	}

	var stored models.RefreshToken
	if err := h.db.Where("token_hash = ?", hashToken(req.RefreshToken)).First(&stored).Error; err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "invalid refresh token"))
		return
	}
	if stored.ExpiresAt.Before(time.Now()) {
		h.db.Delete(&stored)
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "refresh token expired"))
		return
	}

	accessToken, err := generateJWT(stored.UserID, 24*time.Hour)
	if err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error generating access token", err))
		return
	}

	// Rotate the refresh token on every use.
	newRefreshToken, err := generateRefreshToken()
	if err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error generating refresh token", err))
		return
	}
	if err := h.saveRefreshToken(stored.UserID, newRefreshToken); err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error saving refresh token", err))
		return
	}
	h.db.Delete(&stored)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"access_token":  accessToken,
		"refresh_token": newRefreshToken,
	})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid user ID"))
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindNotFound, "user not found"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// handleUpdateProfile updates the caller's own profile. Subscription and
// payment fields are owned by the payments service and cannot be set here.
func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return
	}

	var req struct {
		FullName             *string  `json:"full_name"`
		Phone                *string  `json:"phone"`
		District             *string  `json:"district"`
		Village              *string  `json:"village"`
		IsPmKisanBeneficiary *bool    `json:"is_pm_kisan_beneficiary"`
		IsFpoMember          *bool    `json:"is_fpo_member"`
		KccNumber            *string  `json:"kcc_number"`
		PreferredCrops       []string `json:"preferred_crops"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindNotFound, "user not found"))
		return
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.District != nil {
		updates["district"] = *req.District
	}
	if req.Village != nil {
		updates["village"] = *req.Village
	}
	if req.IsPmKisanBeneficiary != nil {
		updates["is_pm_kisan_beneficiary"] = *req.IsPmKisanBeneficiary
	}
	if req.IsFpoMember != nil {
		updates["is_fpo_member"] = *req.IsFpoMember
	}
	if req.KccNumber != nil {
		updates["kcc_number"] = *req.KccNumber
	}
	if req.PreferredCrops != nil {
		updates["preferred_crops"] = pq.StringArray(req.PreferredCrops)
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error updating profile", err))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

var jwtSecretKey = []byte(os.Getenv("SECRET_KEY"))

func generateJWT(userID uint, ttl time.Duration) (string, error) {
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecretKey)
}

func generateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	mac := hmac.New(sha256.New, []byte(os.Getenv("SECRET_KEY")))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *Handler) saveRefreshToken(userID uint, token string) error {
	return h.db.Create(&models.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(token),
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
	}).Error
}
