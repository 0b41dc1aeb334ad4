package services

import (
	"context"
	"fmt"
	"net"
	neturl "net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/containrrr/shoutrrr"
	"gorm.io/gorm"

	"github.com/nexuscomply/backend/internal/logger"
	"github.com/nexuscomply/backend/internal/models"
	"github.com/nexuscomply/backend/internal/util"
)

// NotificationService stores in-app notifications for outlets and users and
// fans events out to the configured shoutrrr destinations.
type NotificationService struct {
	db   *gorm.DB
	urls []string
	send func(url, message string) error
	wg   sync.WaitGroup
}

func NewNotificationService(db *gorm.DB, urls []string) *NotificationService {
	return &NotificationService{
		db:   db,
		urls: urls,
		send: func(url, message string) error { return shoutrrr.Send(url, message) },
	}
}

var discordWebhookRegex = regexp.MustCompile(`^https://discord(?:app)?\.com/api/webhooks/(\d+)/([a-zA-Z0-9_-]+)`)

func normalizeURL(rawURL string) string {
	matches := discordWebhookRegex.FindStringSubmatch(rawURL)
	if len(matches) == 3 {
		return fmt.Sprintf("discord://%s@%s", matches[2], matches[1])
	}
	return rawURL
}

// Internal Notifications (DB)

// Create stores a notification. Either recipient may be nil.
func (s *NotificationService) Create(outletID, userID *uint, nType models.NotificationType, title, message string) (*models.Notification, error) {
	notification := &models.Notification{
		OutletID: outletID,
		UserID:   userID,
		Type:     nType,
		Title:    title,
		Message:  message,
	}
	result := s.db.Create(notification)
	return notification, result.Error
}

// NotifyOutlet records a notification for an outlet. Failures are logged only;
// a lost notification never fails the workflow that raised it.
func (s *NotificationService) NotifyOutlet(outletID uint, nType models.NotificationType, title, message string) {
	if s == nil {
		return
	}
	if _, err := s.Create(&outletID, nil, nType, title, message); err != nil {
		logger.Log().WithError(err).WithField("outlet_id", outletID).Warn("failed to store outlet notification")
	}
}

// NotifyUser records a notification for a single user.
func (s *NotificationService) NotifyUser(userID uint, nType models.NotificationType, title, message string) {
	if s == nil || userID == 0 {
		return
	}
	if _, err := s.Create(nil, &userID, nType, title, message); err != nil {
		logger.Log().WithError(err).WithField("user_id", userID).Warn("failed to store user notification")
	}
}

func (s *NotificationService) scoped(actor Actor) *gorm.DB {
	if actor.Role == models.RoleOutlet && actor.OutletID != nil {
		return s.db.Where("user_id = ? OR outlet_id = ?", actor.UserID, *actor.OutletID)
	}
	return s.db.Where("user_id = ?", actor.UserID)
}

// ListFor returns the notifications visible to the actor, newest first.
func (s *NotificationService) ListFor(ctx context.Context, actor Actor, unreadOnly bool) ([]models.Notification, error) {
	notifications := []models.Notification{}
	query := s.scoped(actor).WithContext(ctx).Order("created_at desc")
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	result := query.Find(&notifications)
	return notifications, result.Error
}

func (s *NotificationService) MarkAsRead(ctx context.Context, actor Actor, id string) error {
	result := s.scoped(actor).WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, actor Actor) error {
	return s.scoped(actor).WithContext(ctx).Model(&models.Notification{}).Where("read = ?", false).Update("read", true).Error
}

// External Notifications (Shoutrrr)

// SendExternal delivers title and message to every configured destination in
// the background. Errors are logged and never returned.
func (s *NotificationService) SendExternal(eventType, title, message string) {
	if s == nil || len(s.urls) == 0 {
		return
	}
	msg := fmt.Sprintf("[%s] %s\n\n%s", eventType, title, message)
	for _, raw := range s.urls {
		url := normalizeURL(raw)
		if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
			if err := validateDestination(url); err != nil {
				logger.Log().WithError(err).WithField("event", eventType).Warn("skipping notification destination")
				continue
			}
		}
		s.wg.Add(1)
		go func(url string) {
			defer s.wg.Done()
			if err := s.send(url, msg); err != nil {
				logger.Log().WithError(err).
					WithField("event", eventType).
					WithField("destination", util.SanitizeForLog(schemeOf(url))).
					Warn("failed to send notification")
			}
		}(url)
	}
}

// Wait blocks until in-flight external sends complete.
func (s *NotificationService) Wait() {
	if s != nil {
		s.wg.Wait()
	}
}

func schemeOf(url string) string {
	if i := strings.Index(url, "://"); i > 0 {
		return url[:i]
	}
	return "unknown"
}

// validateDestination refuses plain webhook targets that point at literal
// private or loopback addresses.
func validateDestination(raw string) error {
	u, err := neturl.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("missing host")
	}
	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("disallowed host IP: %s", ip.String())
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	return ip.IsPrivate()
}
