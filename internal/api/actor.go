package api

import (
	"context"
	"strconv"
	"strings"
)

const userHeaderDefault = "x-user-id"

type actorKey struct{}

func contextWithActor(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// actorFrom returns the acting user set by the transport, or errUnauthenticated.
func actorFrom(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(actorKey{}).(int64)
	if !ok {
		return 0, errUnauthenticated
	}
	return id, nil
}

func parseActor(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func headerName(configured, fallback string) string {
	h := strings.ToLower(strings.TrimSpace(configured))
	if h == "" {
		return fallback
	}
	return h
}
