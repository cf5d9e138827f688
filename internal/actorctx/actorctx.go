// Package actorctx carries the authenticated actor's identity on a
// request context, so layers below HTTP can record who acted without
// depending on gin.
package actorctx

import "context"

type ctxKey string

const keyUserID ctxKey = "actor.user_id"

func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

func UserIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUserID).(string)

	return v, ok && v != ""
}
