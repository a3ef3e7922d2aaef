package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"payam-chat/internal/events"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus is the value stored under presence:<publicId>.
type PresenceStatus struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceStore keeps the fast online view next to the users table.
type PresenceStore struct {
	client    *goredis.Client
	publisher events.Publisher
	ttl       time.Duration
}

const (
	presenceKeyPrefix    = "presence:"
	presenceOnlineSet    = "presence:online"
	presenceHeartbeatKey = "presence:heartbeat"
)

func NewPresenceStore(client *goredis.Client, publisher events.Publisher, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{
		client:    client,
		publisher: publisher,
		ttl:       ttl,
	}
}

// SetOnline refreshes the user's presence key. The online event is only
// published on the offline to online transition.
func (p *PresenceStore) SetOnline(ctx context.Context, userID string, at time.Time) error {
	data, _ := json.Marshal(PresenceStatus{UserID: userID, IsOnline: true, LastSeen: at})

	pipe := p.client.Pipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, data, p.ttl)
	added := pipe.SAdd(ctx, presenceOnlineSet, userID)
	pipe.ZAdd(ctx, presenceHeartbeatKey, goredis.Z{
		Score:  float64(at.Unix()),
		Member: userID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if added.Val() == 0 {
		return nil
	}
	return p.publish(ctx, userID, true, at)
}

func (p *PresenceStore) SetOffline(ctx context.Context, userID string, at time.Time) error {
	data, _ := json.Marshal(PresenceStatus{UserID: userID, IsOnline: false, LastSeen: at})

	pipe := p.client.Pipeline()
	// offline status outlives the online TTL so last-seen stays answerable
	pipe.Set(ctx, presenceKeyPrefix+userID, data, 24*time.Hour)
	pipe.SRem(ctx, presenceOnlineSet, userID)
	pipe.ZRem(ctx, presenceHeartbeatKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return p.publish(ctx, userID, false, at)
}

func (p *PresenceStore) GetPresence(ctx context.Context, userID string) (PresenceStatus, error) {
	data, err := p.client.Get(ctx, presenceKeyPrefix+userID).Result()
	if err == goredis.Nil {
		return PresenceStatus{UserID: userID}, nil
	}
	if err != nil {
		return PresenceStatus{}, err
	}
	var status PresenceStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return PresenceStatus{}, err
	}
	return status, nil
}

func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID).Result()
}

func (p *PresenceStore) OnlineCount(ctx context.Context) (int64, error) {
	return p.client.SCard(ctx, presenceOnlineSet).Result()
}

// CleanupStale marks users offline whose last heartbeat is older than maxAge.
func (p *PresenceStore) CleanupStale(ctx context.Context, now time.Time, maxAge time.Duration) ([]string, error) {
	threshold := now.Add(-maxAge).Unix()
	stale, err := p.client.ZRangeByScore(ctx, presenceHeartbeatKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(threshold, 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	for _, userID := range stale {
		if err := p.SetOffline(ctx, userID, now); err != nil {
			return nil, err
		}
	}
	return stale, nil
}

func (p *PresenceStore) publish(ctx context.Context, userID string, online bool, at time.Time) error {
	if p.publisher == nil {
		return nil
	}
	eventType := events.EventTypePresenceOffline
	if online {
		eventType = events.EventTypePresenceOnline
	}
	data, err := events.NewEnvelope(eventType, events.AggregateTypePresence, userID, at,
		events.PresencePayload{UserID: userID, IsOnline: online, At: at.UTC()})
	if err != nil {
		return err
	}
	return p.publisher.Publish(ctx, events.PresenceChannel(userID), data)
}
