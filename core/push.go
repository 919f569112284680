package core

import (
	"context"
	"time"
)

type (
	// PushMessage is a browser push notification payload.
	PushMessage struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		URL   string `json:"url,omitempty"`
	}

	// PushSubscription is a browser's Web Push endpoint for one user.
	PushSubscription struct {
		ID          string    `json:"id"` // uuid
		DeveloperID int       `json:"developer_id"`
		Endpoint    string    `json:"endpoint"`
		P256dh      string    `json:"p256dh"`
		Auth        string    `json:"auth"`
		CreatedAt   time.Time `json:"created_at"` // UTC
	}

	// PushService is any service that can send browser push notifications.
	PushService interface {
		// Push sends msg to all of the developers' registered subscriptions,
		// concurrently. Failed endpoints are pruned.
		Push(msg PushMessage, developerIDs ...int)
	}

	PushSubscriptionRepository interface {
		CreatePushSubscription(ctx context.Context, sub PushSubscription) (PushSubscription, error)
		QueryDeveloperPushSubscriptions(ctx context.Context, developerIDs ...int) ([]PushSubscription, error)
		DeletePushSubscription(ctx context.Context, id string) error
	}
)
