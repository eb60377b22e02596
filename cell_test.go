// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCellBorrowStates(t *testing.T) {
	t.Run("Shared borrows stack", func(t *testing.T) {
		var c cell

		c.acquireShared(0)
		c.acquireShared(0)
		c.acquireShared(0)
		require.Equal(t, int32(3), c.borrows.Load())

		c.releaseShared()
		c.releaseShared()
		c.releaseShared()
		require.Equal(t, int32(0), c.borrows.Load())
	})

	t.Run("Exclusive excludes shared", func(t *testing.T) {
		var c cell

		c.acquireExclusive(7)
		require.PanicsWithValue(t, "taskgraph: cell 7 is exclusively borrowed", func() {
			c.acquireShared(7)
		})

		c.releaseExclusive()
		c.acquireShared(7)
	})

	t.Run("Shared excludes exclusive", func(t *testing.T) {
		var c cell

		c.acquireShared(3)
		require.PanicsWithValue(t, "taskgraph: cell 3 is already borrowed", func() {
			c.acquireExclusive(3)
		})

		c.releaseShared()
		c.acquireExclusive(3)
	})

	t.Run("Exclusive excludes exclusive", func(t *testing.T) {
		var c cell

		c.acquireExclusive(0)
		require.Panics(t, func() {
			c.acquireExclusive(0)
		})
	})
}

func TestCellReleaseTwice(t *testing.T) {
	var c cell

	c.acquireShared(0)
	release := releaseOnce(c.releaseShared)

	release()
	require.PanicsWithValue(t, "taskgraph: cell released twice", release)
}

func TestCellPointer(t *testing.T) {
	v := 42
	c := cell{value: &v}

	p := cellPointer[int](&c, 0)
	require.Equal(t, 42, *p)

	*p = 7
	require.Equal(t, 7, v)

	require.PanicsWithValue(t, "taskgraph: cell 0 holds *int, not *string", func() {
		cellPointer[string](&c, 0)
	})
}
