package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetacherRunsInOrder(t *testing.T) {
	d := NewDetacher()
	defer d.Close()

	var order []int
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Do(context.Background(), func(context.Context) error {
			order = append(order, i)
			return nil
		}))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestDetacherReturnsError(t *testing.T) {
	d := NewDetacher()
	defer d.Close()

	boom := errors.New("boom")
	err := d.Do(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestDetacherRecoversPanic(t *testing.T) {
	d := NewDetacher()
	defer d.Close()

	err := d.Do(context.Background(), func(context.Context) error { panic("bad handler") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad handler")

	// the worker survives
	assert.NoError(t, d.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestDetacherContextCancel(t *testing.T) {
	d := NewDetacher()
	defer d.Close()

	release := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Do(ctx, func(context.Context) error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestDetacherClosed(t *testing.T) {
	d := NewDetacher()
	d.Close()
	d.Close()

	err := d.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrDetacherClosed)
}
