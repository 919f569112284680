package pushsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/trezcool/kazi/core"
)

const ttl = 86400 // seconds

type webpushService struct {
	publicKey  string
	privateKey string
	subscriber string
	repo       core.PushSubscriptionRepository
	logger     core.Logger
}

var _ core.PushService = (*webpushService)(nil)

func NewWebpushService(conf *core.Config, repo core.PushSubscriptionRepository, logger core.Logger) *webpushService {
	return &webpushService{
		publicKey:  conf.VapidPublicKey,
		privateKey: conf.VapidSecretKey,
		subscriber: conf.DefaultFromEmail.Address,
		repo:       repo,
		logger:     logger,
	}
}

func (svc webpushService) Push(msg core.PushMessage, developerIDs ...int) {
	if svc.publicKey == "" || svc.privateKey == "" {
		return // not configured
	}
	if len(developerIDs) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("push: marshaling payload: %v", err), err)
		return
	}

	subs, err := svc.repo.QueryDeveloperPushSubscriptions(context.Background(), developerIDs...)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("push: querying subscriptions: %v", err), err)
		return
	}
	for _, sub := range subs {
		sub := sub
		go svc.send(sub, data)
	}
}

func (svc webpushService) send(sub core.PushSubscription, data []byte) {
	res, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  svc.publicKey,
		VAPIDPrivateKey: svc.privateKey,
		Subscriber:      svc.subscriber,
		TTL:             ttl,
	})
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("push: sending to %s: %v", sub.Endpoint, err))
		return
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == http.StatusGone {
		// subscription expired, prune it
		if err = svc.repo.DeletePushSubscription(context.Background(), sub.ID); err != nil {
			svc.logger.Warn(fmt.Sprintf("push: pruning subscription %s: %v", sub.ID, err))
		}
		return
	}
	if res.StatusCode >= http.StatusBadRequest {
		svc.logger.Warn(fmt.Sprintf("push: sending to %s - status: %d", sub.Endpoint, res.StatusCode))
	}
}
