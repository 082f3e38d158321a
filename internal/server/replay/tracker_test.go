package replay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrack_CountsAndExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tr := New(client, time.Hour)
	ctx := context.Background()

	n, err := tr.Track(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = tr.Track(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"r1"))

	mr.FastForward(2 * time.Hour)
	n, err = tr.Track(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "counter restarts after TTL")
}

func TestTrack_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	_, err := New(client, 0).Track(context.Background(), "r1")
	assert.ErrorIs(t, err, common.ErrUnavailable)
}
