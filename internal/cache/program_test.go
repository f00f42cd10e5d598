package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Alligator/jqawk/vm"
)

func TestProgramCacheMemoryMiss(t *testing.T) {
	pc := NewProgramCache(NewMemoryCache(DefaultConfig()))
	_, err := pc.Get(context.Background(), "{ print $ }")
	require.True(t, IsMiss(err))
}

func TestProgramCacheMemoryRoundTrip(t *testing.T) {
	pc := NewProgramCache(NewMemoryCache(DefaultConfig()))
	rules := []vm.Rule{{Kind: vm.RuleMatch, Body: []vm.OpCode{vm.Print(0)}}}

	require.NoError(t, pc.Put(context.Background(), "{ print $ }", rules))

	got, err := pc.Get(context.Background(), "{ print $ }")
	require.NoError(t, err)
	require.Equal(t, rules, got)
}

func TestProgramCacheRedisRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pc := NewProgramCache(NewRedisCacheWithClient(client, DefaultConfig()))

	rules := []vm.Rule{{Kind: vm.RuleBegin, Body: []vm.OpCode{vm.PushImmediate(vm.Num(1))}}}
	require.NoError(t, pc.Put(context.Background(), "BEGIN { 1 }", rules))

	got, err := pc.Get(context.Background(), "BEGIN { 1 }")
	require.NoError(t, err)
	require.Equal(t, rules, got)
}
