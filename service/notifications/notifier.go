package notifications

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// Notifier delivers push and email notifications. Delivery is best effort:
// failures are logged and recorded in the history table but never surfaced
// to the caller, so notification outages cannot block request or payment
// handling.
type Notifier struct {
	db         *gorm.DB
	expoClient *expo.PushClient
	smtpHost   string
	smtpPort   int
	smtpUser   string
	smtpPass   string
	mailFrom   string
}

func NewNotifier(db *gorm.DB) *Notifier {
	port := 587
	if p, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil && p > 0 {
		port = p
	}
	return &Notifier{
		db:         db,
		expoClient: expo.NewPushClient(nil),
		smtpHost:   os.Getenv("SMTP_HOST"),
		smtpPort:   port,
		smtpUser:   os.Getenv("SMTP_USER"),
		smtpPass:   os.Getenv("SMTP_PASSWORD"),
		mailFrom:   os.Getenv("SMTP_FROM"),
	}
}

// Notify pushes a message to all of a user's registered devices in the
// background. Safe to call on a nil Notifier.
func (n *Notifier) Notify(userID uint, title, body string, data map[string]string) {
	if n == nil {
		return
	}
	go n.pushToUser(userID, title, body, data)
}

// NotifyEmail sends a transactional mail in the background. Used for
// escrow settlement receipts where a durable record matters more than
// immediacy. Safe to call on a nil Notifier.
func (n *Notifier) NotifyEmail(userID uint, subject, body string) {
	if n == nil {
		return
	}
	go func() {
		var user models.User
		if err := n.db.First(&user, userID).Error; err != nil {
			log.Printf("notification email: user %d not found: %v", userID, err)
			return
		}
		if n.smtpHost == "" || user.Email == "" {
			return
		}

		m := gomail.NewMessage()
		m.SetHeader("From", n.mailFrom)
		m.SetHeader("To", user.Email)
		m.SetHeader("Subject", subject)
		m.SetBody("text/plain", body)

		d := gomail.NewDialer(n.smtpHost, n.smtpPort, n.smtpUser, n.smtpPass)
		if err := d.DialAndSend(m); err != nil {
			log.Printf("notification email to user %d failed: %v", userID, err)
		}
	}()
}

func (n *Notifier) pushToUser(userID uint, title, body string, data map[string]string) {
	var devices []models.Device
	if err := n.db.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		log.Printf("push notification: retrieving devices for user %d: %v", userID, err)
		return
	}

	status := "sent"
	if len(devices) == 0 {
		status = "skipped"
	} else {
		tokens := make([]string, 0, len(devices))
		for _, device := range devices {
			tokens = append(tokens, device.Token)
		}
		if ok, err := n.sendExpoNotification(tokens, title, body, data); !ok || err != nil {
			status = "failed"
			if err != nil {
				log.Printf("push notification to user %d failed: %v", userID, err)
			}
		}
	}

	dataJSON, _ := json.Marshal(data)
	history := models.NotificationHistory{
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   string(dataJSON),
		Status: status,
		SentAt: time.Now(),
	}
	if err := n.db.Create(&history).Error; err != nil {
		log.Printf("Error creating notification history: %v", err)
	}
}

// sendExpoNotification publishes a push message through the Expo SDK.
func (n *Notifier) sendExpoNotification(tokenStrings []string, title, body string, data map[string]string) (bool, error) {
	var validTokens []expo.ExponentPushToken
	var invalidTokens []string

	for _, tokenString := range tokenStrings {
		pushToken, err := expo.NewExponentPushToken(tokenString)
		if err != nil {
			log.Printf("Invalid push token format %s: %v", tokenString, err)
			invalidTokens = append(invalidTokens, tokenString)
			continue
		}
		validTokens = append(validTokens, pushToken)
	}

	if len(validTokens) == 0 {
		return false, fmt.Errorf("no valid push tokens found")
	}

	pushMessage := &expo.PushMessage{
		To:       validTokens,
		Body:     body,
		Title:    title,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     data,
	}

	response, err := n.expoClient.Publish(pushMessage)
	if err != nil {
		return false, fmt.Errorf("failed to publish notification: %v", err)
	}

	if validationErr := response.ValidateResponse(); validationErr != nil {
		log.Printf("Push notification validation error: %v", validationErr)
		n.cleanupInvalidTokens(invalidTokens)
		return false, fmt.Errorf("notification validation failed: %v", validationErr)
	}

	if len(invalidTokens) > 0 {
		n.cleanupInvalidTokens(invalidTokens)
	}
	return true, nil
}

func (n *Notifier) cleanupInvalidTokens(tokens []string) {
	for _, token := range tokens {
		if err := n.db.Where("token = ?", token).Delete(&models.Device{}).Error; err != nil {
			log.Printf("Error cleaning up invalid token %s: %v", token, err)
		}
	}
}
