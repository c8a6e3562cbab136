package ingress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wardenmcp/toolgate/internal/apierr"
)

// QuotaGate enforces each tenant's daily call quota (spec.md §4.1
// assertWithinQuota / §3 Tenant.quota_limit) using a Redis counter keyed by
// tenant and UTC day, so the count survives process restarts and is shared
// across every gateway instance.
type QuotaGate struct {
	rdb *redis.Client
}

// NewQuotaGate wires the quota gate against the shared Redis client.
func NewQuotaGate(rdb *redis.Client) *QuotaGate {
	return &QuotaGate{rdb: rdb}
}

// AssertAndIncrement atomically increments today's counter for tenantID and
// fails with QUOTA_EXCEEDED if the increment would exceed limit. A limit <= 0
// is treated as unlimited.
func (q *QuotaGate) AssertAndIncrement(ctx context.Context, tenantID uuid.UUID, limit int64) error {
	if limit <= 0 {
		return nil
	}

	key := quotaKey(tenantID)
	count, err := q.rdb.Incr(ctx, key).Result()
	if err != nil {
		return apierr.New(apierr.Internal, "checking tenant quota")
	}
	if count == 1 {
		q.rdb.Expire(ctx, key, 25*time.Hour)
	}

	if count > limit {
		return apierr.New(apierr.QuotaExceeded, "Tenant quota exceeded")
	}
	return nil
}

func quotaKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("toolgate:quota:%s:%s", tenantID, time.Now().UTC().Format("2006-01-02"))
}
