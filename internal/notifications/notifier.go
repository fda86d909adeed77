package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/factoring-portal/internal/sideeffects"
	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	"github.com/angelmondragon/factoring-portal/pkg/enums"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
)

const eventNotificationCreated = "notification.created"

// Publisher fans a stored notification out to downstream channels (email, push).
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, task sideeffects.Task) bool
}

// Message is a notification addressed to every member of a company.
type Message struct {
	CompanyID uuid.UUID
	Type      enums.NotificationType
	Title     string
	Body      string
	Link      string
}

// Notifier stores in-app notifications and publishes them, off the request path.
type Notifier struct {
	repo       Repository
	publisher  Publisher
	dispatcher dispatcher
	logg       *logger.Logger
}

// NewNotifier builds a notifier. publisher may be nil when fan-out is disabled.
func NewNotifier(repo Repository, publisher Publisher, dispatcher dispatcher, logg *logger.Logger) (*Notifier, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("side effect dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Notifier{repo: repo, publisher: publisher, dispatcher: dispatcher, logg: logg}, nil
}

// Notify queues msg. Failures are recorded by the dispatcher and never surface here.
func (n *Notifier) Notify(ctx context.Context, msg Message) {
	n.dispatcher.Dispatch(ctx, sideeffects.Task{
		Kind: "notify." + string(msg.Type),
		Run: func(ctx context.Context) error {
			return n.deliver(ctx, msg)
		},
	})
}

func (n *Notifier) deliver(ctx context.Context, msg Message) error {
	if msg.CompanyID == uuid.Nil {
		return fmt.Errorf("company id missing")
	}
	notification := &models.Notification{
		CompanyID: msg.CompanyID,
		Type:      msg.Type,
		Title:     strings.TrimSpace(msg.Title),
		Message:   strings.TrimSpace(msg.Body),
	}
	if msg.Link != "" {
		link := msg.Link
		notification.Link = &link
	}
	if err := n.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	logCtx := n.logg.WithFields(ctx, map[string]any{
		"notification_id": notification.ID.String(),
		"company_id":      msg.CompanyID.String(),
		"type":            string(msg.Type),
	})
	n.logg.Info(logCtx, "company notified")

	if n.publisher == nil {
		return nil
	}
	data, err := json.Marshal(publishedNotification{
		NotificationID: notification.ID,
		CompanyID:      notification.CompanyID,
		Type:           notification.Type,
		Title:          notification.Title,
		Message:        notification.Message,
		Link:           notification.Link,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if _, err := n.publisher.Publish(ctx, data, map[string]string{
		"event_type": eventNotificationCreated,
		"company_id": msg.CompanyID.String(),
	}); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

type publishedNotification struct {
	NotificationID uuid.UUID              `json:"notificationId"`
	CompanyID      uuid.UUID              `json:"companyId"`
	Type           enums.NotificationType `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Link           *string                `json:"link,omitempty"`
}
