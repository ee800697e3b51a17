package utils

import (
	"net/http"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"gorm.io/gorm"
)

// RequireTier gates a route behind an active subscription of at least
// minTier. It must run after AuthMiddleware so the user id is in context.
func RequireTier(db *gorm.DB, minTier string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := GetUserIDFromContext(r)
		if err != nil {
			apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
			return
		}

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "user not found"))
			return
		}

		if user.SubscriptionStatus != models.SubscriptionActive ||
			models.TierRank(user.SubscriptionTier) < models.TierRank(minTier) {
			apierr.WriteJSON(w, apierr.New(apierr.KindForbidden, minTier+" subscription or above required"))
			return
		}

		next.ServeHTTP(w, r)
	}
}
