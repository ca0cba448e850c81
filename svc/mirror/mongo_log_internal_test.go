package mirror

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestClaimFilter(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := claimFilter(Entry{ID: "evt_1", ReceivedAt: at})

	assert.Equal(t, "evt_1", f["_id"])
	or, ok := f["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Equal(t, bson.M{"error": bson.M{"$gt": ""}}, or[0])
	assert.Equal(t, bson.M{
		"processed_at": bson.M{"$exists": false},
		"claimed_at":   bson.M{"$lt": at.Add(-ClaimTTL)},
	}, or[1])
}

func TestClaimUpdate(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	u := claimUpdate(Entry{ID: "evt_1", Type: "subscription.updated", CustomerID: "cus_1", ReceivedAt: at})

	set, ok := u["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, at, set["claimed_at"])
	assert.Equal(t, "cus_1", set["customer_id"])
	assert.Equal(t, bson.M{"error": "", "processed_at": ""}, u["$unset"])
}
