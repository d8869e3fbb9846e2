package testutil

import (
	"context"
	"time"

	id "obligo/pkg/domain"
	"obligo/pkg/requestcontext"
)

// JobContext builds a context the way the scheduler does when a trigger fires:
// a pinned "now" plus a correlation ID. Engine unit tests should always run
// against a pinned clock.
func JobContext(now time.Time) context.Context {
	ctx := requestcontext.WithTime(context.Background(), now)
	return requestcontext.WithRequestID(ctx, "test-run")
}

// AuthedContext simulates what the auth middleware sets for an authenticated
// request without running the HTTP middleware chain.
func AuthedContext(userID id.UserID, tenantID id.TenantID) context.Context {
	ctx := requestcontext.WithUserID(context.Background(), userID)
	return requestcontext.WithTenantID(ctx, tenantID)
}

// Date is shorthand for a UTC calendar day in tests.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
