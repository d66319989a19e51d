package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/maltedev/shop-search-scraper/pkg/logger"
)

func TestShutdownClosesSinksOnInterrupt(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	sinks := &resultSinks{redis: client, logger: logger.Discard()}

	code := shutdown(sinks, fmt.Errorf("dispatch stopped: %w", context.Canceled))

	assert.Equal(t, 130, code)
	assert.Nil(t, sinks.redis)
	assert.ErrorIs(t, client.Ping(context.Background()).Err(), redis.ErrClosed)
}

func TestShutdownExitCode(t *testing.T) {
	sinks := &resultSinks{logger: logger.Discard()}

	assert.Equal(t, 0, shutdown(sinks, nil))
	assert.Equal(t, 0, shutdown(sinks, assert.AnError))
}

func TestSinksCloseTwice(t *testing.T) {
	sinks := &resultSinks{
		redis:  redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}),
		logger: logger.Discard(),
	}

	sinks.Close()
	assert.NotPanics(t, sinks.Close)
}
