package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop_back_end/internal/models"
)

func TestMemorySinkListsNewestFirst(t *testing.T) {
	sink := NewMemorySink(10)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, sink.Record(ctx, models.AuditLog{UserID: "u1", Action: ActionLoginSuccess, Timestamp: now}))
	require.NoError(t, sink.Record(ctx, models.AuditLog{UserID: "u2", Action: ActionProductCreate, Resource: ResourceProduct, Timestamp: now}))
	require.NoError(t, sink.Record(ctx, models.AuditLog{UserID: "u1", Action: ActionOrderCreate, Resource: ResourceOrder, Timestamp: now}))

	all, err := sink.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ActionOrderCreate, all[0].Action)
	assert.NotEmpty(t, all[0].ID)

	mine, err := sink.List(ctx, Query{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	products, err := sink.List(ctx, Query{Resource: ResourceProduct})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "u2", products[0].UserID)

	yesterday, err := sink.List(ctx, Query{Day: now.Add(-24 * time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, yesterday)
}

func TestMemorySinkCapacity(t *testing.T) {
	sink := NewMemorySink(2)
	ctx := context.Background()
	for _, action := range []string{"a", "b", "c"} {
		require.NoError(t, sink.Record(ctx, models.AuditLog{Action: action}))
	}

	got, err := sink.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Action)
	assert.Equal(t, "b", got[1].Action)
}

func TestQueryLimitBounds(t *testing.T) {
	assert.Equal(t, DefaultLimit, Query{}.limit())
	assert.Equal(t, 5, Query{Limit: 5}.limit())
	assert.Equal(t, MaxLimit, Query{Limit: 10_000}.limit())
}

type recordingSink struct {
	wg  sync.WaitGroup
	got []models.AuditLog
	err error
}

func (r *recordingSink) Record(_ context.Context, e models.AuditLog) error {
	defer r.wg.Done()
	r.got = append(r.got, e)
	return r.err
}

func TestAsyncRecordsInBackground(t *testing.T) {
	next := &recordingSink{err: errors.New("cluster unavailable")}
	next.wg.Add(1)

	ctx, cancel := context.WithCancel(context.Background())
	err := Async{Next: next}.Record(ctx, models.AuditLog{Action: ActionLogout})
	cancel()
	assert.NoError(t, err)

	next.wg.Wait()
	require.Len(t, next.got, 1)
	assert.Equal(t, ActionLogout, next.got[0].Action)
}
