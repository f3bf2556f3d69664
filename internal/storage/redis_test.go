package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	kv, err := DialRedis(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(context.Background(), map[string][]byte{"activeChainId": []byte(`"c1"`)}))

	// Keys are namespaced so the chain area can share a Redis database.
	raw, err := mr.Get("thoughtchain:activeChainId")
	require.NoError(t, err)
	assert.Equal(t, `"c1"`, raw)
	assert.False(t, mr.Exists("activeChainId"))
}

func TestDialRedis_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = DialRedis(context.Background(), addr)
	assert.Error(t, err)
}
