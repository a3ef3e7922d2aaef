package services

import (
	"context"
	"time"

	"payam-chat/pkg/logger"
)

// Clock supplies the current time. Services never call time.Now directly.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}

type ctxKey string

var userIDKey ctxKey = "user_id"
var requestTimeKey ctxKey = "request_time"

// WithUserContext stores the authenticated public id. The logger picks it up
// under its own key.
func WithUserContext(ctx context.Context, userID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, logger.UserIdKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// WithRequestTime pins the clock for everything done on behalf of one request.
func WithRequestTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t.UTC())
}

func now(ctx context.Context, clock Clock) time.Time {
	if t, ok := ctx.Value(requestTimeKey).(time.Time); ok && !t.IsZero() {
		return t
	}
	if clock == nil {
		return SystemClock()
	}
	return clock()
}
