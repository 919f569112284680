package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/kazi/core"
)

type pushSubscriptionRepository struct {
	db *DB
}

var _ core.PushSubscriptionRepository = (*pushSubscriptionRepository)(nil)

func NewPushSubscriptionRepository(db *DB) *pushSubscriptionRepository {
	return &pushSubscriptionRepository{db: db}
}

func (repo *pushSubscriptionRepository) CreatePushSubscription(_ context.Context, sub core.PushSubscription) (core.PushSubscription, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.subscriptions[sub.ID] = &sub
	return sub, nil
}

func (repo *pushSubscriptionRepository) QueryDeveloperPushSubscriptions(_ context.Context, developerIDs ...int) ([]core.PushSubscription, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[int]bool, len(developerIDs))
	for _, id := range developerIDs {
		wanted[id] = true
	}

	var subs []core.PushSubscription
	for _, sub := range repo.db.subscriptions {
		if wanted[sub.DeveloperID] {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (repo *pushSubscriptionRepository) DeletePushSubscription(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.subscriptions, id)
	return nil
}
