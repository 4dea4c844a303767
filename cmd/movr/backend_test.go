package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Backend_Release_ShouldNotWaitForTheClose_AfterAForcedStop(t *testing.T) {
	// arrange
	unblock := make(chan struct{})
	closed := make(chan struct{})
	b := &backend{close: func() error {
		<-unblock
		close(closed)
		return nil
	}}

	// act
	returned := make(chan error, 1)
	go func() { returned <- b.release(true) }()

	// assert
	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("release blocked on a hanging close")
	}

	close(unblock)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close was never called")
	}
}

func Test_Backend_Release_ShouldReturnTheCloseError_AfterACleanStop(t *testing.T) {
	// arrange
	closeErr := errors.New("pool already closed")
	calls := 0
	b := &backend{close: func() error {
		calls++
		return closeErr
	}}

	// act
	err := b.release(false)

	// assert
	assert.ErrorIs(t, err, closeErr)
	assert.Equal(t, 1, calls)
}
