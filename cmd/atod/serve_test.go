package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ato_controller/internal/logger"
)

func TestWaitForShutdownReturnsServeError(t *testing.T) {
	serveErr := make(chan error, 1)
	serveErr <- errors.New("accept: too many open files")

	restart, err := waitForShutdown(make(chan struct{}), serveErr, logger.Nop())
	assert.False(t, restart)
	assert.EqualError(t, err, "accept: too many open files")
}

func TestWaitForShutdownRestart(t *testing.T) {
	restart := make(chan struct{}, 1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		restart <- struct{}{}
	}()

	requested, err := waitForShutdown(restart, make(chan error), logger.Nop())
	assert.True(t, requested)
	assert.NoError(t, err)
}
