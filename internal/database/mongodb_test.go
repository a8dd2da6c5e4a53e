package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectMongoRetry_GivesUp(t *testing.T) {
	_, err := ConnectMongoRetry(context.Background(), "not-a-mongo-uri", time.Second, 2, time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "giving up after 2 attempts")
}

func TestConnectMongoRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ConnectMongoRetry(ctx, "not-a-mongo-uri", time.Second, 5, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
