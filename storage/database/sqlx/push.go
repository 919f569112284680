package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
)

type pushSubscriptionRepository struct {
	db *sqlx.DB
}

var _ core.PushSubscriptionRepository = (*pushSubscriptionRepository)(nil)

func NewPushSubscriptionRepository(db *sql.DB) *pushSubscriptionRepository {
	return &pushSubscriptionRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *pushSubscriptionRepository) CreatePushSubscription(ctx context.Context, sub core.PushSubscription) (core.PushSubscription, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO push_subscription (id, developer_id, endpoint, p256dh, auth, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (developer_id, endpoint) DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth`,
		sub.ID, sub.DeveloperID, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt,
	)
	return sub, errors.Wrap(err, "inserting push subscription")
}

func (repo *pushSubscriptionRepository) QueryDeveloperPushSubscriptions(ctx context.Context, developerIDs ...int) ([]core.PushSubscription, error) {
	if len(developerIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, developer_id, endpoint, p256dh, auth, created_at FROM push_subscription WHERE developer_id IN (?)`,
		developerIDs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "building subscription query")
	}

	rows, err := repo.db.QueryContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying push subscriptions")
	}
	defer func() { _ = rows.Close() }()

	var subs []core.PushSubscription
	for rows.Next() {
		var s core.PushSubscription
		if err = rows.Scan(&s.ID, &s.DeveloperID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning push subscription")
		}
		subs = append(subs, s)
	}
	return subs, errors.Wrap(rows.Err(), "querying push subscriptions")
}

func (repo *pushSubscriptionRepository) DeletePushSubscription(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM push_subscription WHERE id = $1`, id)
	return errors.Wrap(err, "deleting push subscription")
}
