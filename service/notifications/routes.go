package notifications

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/utils"
	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes registers all notification routes
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices", utils.AuthMiddleware(h.RegisterDevice)).Methods("POST")
	router.HandleFunc("/devices/{id:[0-9]+}", utils.AuthMiddleware(h.DeleteDevice)).Methods("DELETE")
	router.HandleFunc("/notifications/history", utils.AuthMiddleware(h.GetHistory)).Methods("GET")
}

// RegisterDevice registers a device token for push notifications
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return
	}

	var device models.Device
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}
	if device.Token == "" {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "token is required"))
		return
	}
	if _, err := expo.NewExponentPushToken(device.Token); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid Expo push token format"))
		return
	}
	device.UserID = userID

	var existing models.Device
	result := h.db.Where("token = ? AND user_id = ?", device.Token, userID).First(&existing)
	if result.Error == nil {
		existing.UpdatedAt = time.Now()
		existing.DeviceType = device.DeviceType
		existing.DeviceName = device.DeviceName
		if err := h.db.Save(&existing).Error; err != nil {
			apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error updating device", err))
			return
		}
		device = existing
	} else {
		if err := h.db.Create(&device).Error; err != nil {
			apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error registering device", err))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Device registered successfully",
		"device":  device,
	})
}

// DeleteDevice removes one of the caller's device tokens
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return
	}

	vars := mux.Vars(r)
	deviceID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid device ID"))
		return
	}

	result := h.db.Where("user_id = ?", userID).Delete(&models.Device{}, deviceID)
	if result.Error != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error deleting device", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		apierr.WriteJSON(w, apierr.New(apierr.KindNotFound, "device not found"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Device deleted successfully"})
}

// GetHistory returns the caller's notification history, newest first
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return
	}

	limit := 20
	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}
	page := 1
	if parsed, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && parsed > 0 {
		page = parsed
	}
	offset := (page - 1) * limit

	var count int64
	if err := h.db.Model(&models.NotificationHistory{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error counting notifications", err))
		return
	}

	var history []models.NotificationHistory
	if err := h.db.Where("user_id = ?", userID).
		Order("sent_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&history).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "error retrieving notification history", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total":   count,
		"page":    page,
		"limit":   limit,
		"history": history,
	})
}
