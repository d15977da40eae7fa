package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type storTag struct{ N int }

func TestStorageMembershipAndDenseEntitiesTrackInsertAndRemove(t *testing.T) {
	s := NewStorage[storTag]("storTag")
	_, existed := s.Insert(nil, 3, storTag{N: 3}, 0)
	require.False(t, existed)
	_, existed = s.Insert(nil, 7, storTag{N: 7}, 0)
	require.False(t, existed)

	require.True(t, s.Contains(3))
	require.True(t, s.Contains(7))
	require.False(t, s.Contains(9))
	require.ElementsMatch(t, []uint32{3, 7}, s.Membership().Indices())
	require.ElementsMatch(t, []uint32{3, 7}, s.DenseEntities())

	_, removed := s.Remove(nil, 3, 1)
	require.True(t, removed)
	require.False(t, s.Contains(3))
	require.ElementsMatch(t, []uint32{7}, s.DenseEntities())
}

func TestStorageInsertReplaceReturnsPreviousValue(t *testing.T) {
	s := NewStorage[storTag]("storTag")
	s.Insert(nil, 1, storTag{N: 1}, 0)
	old, existed := s.Insert(nil, 1, storTag{N: 2}, 1)
	require.True(t, existed)
	require.Equal(t, storTag{N: 1}, old)

	v, ok := s.Get(1)
	require.True(t, ok)
	require.Equal(t, storTag{N: 2}, v)
}

func TestStorageForEachVisitsEveryRowInDenseOrder(t *testing.T) {
	s := NewStorage[storTag]("storTag")
	for i := uint32(0); i < 5; i++ {
		s.Insert(nil, i, storTag{N: int(i)}, 0)
	}

	var seen []int
	s.ForEach(func(index uint32, v *storTag) { seen = append(seen, v.N) })
	require.Equal(t, []int{0, 1, 2, 3, 4}, seen)
}

func TestStorageForEachTrackedStampsEveryVisitedRow(t *testing.T) {
	s := NewStorage[storTag]("storTag")
	s.Insert(nil, 1, storTag{N: 1}, 0)
	s.Insert(nil, 2, storTag{N: 2}, 0)

	s.ForEachTracked(5, func(index uint32, v *storTag) {})
	require.True(t, s.ChangedSince(1, 4))
	require.True(t, s.ChangedSince(2, 4))
	require.False(t, s.ChangedSince(1, 5))
}

func TestStorageAddedSinceUsesStrictInequality(t *testing.T) {
	s := NewStorage[storTag]("storTag")
	s.Insert(nil, 1, storTag{N: 1}, 3)
	require.True(t, s.AddedSince(1, 2))
	require.False(t, s.AddedSince(1, 3))
}

func TestStorageGetOnAbsentIndexReturnsZeroValue(t *testing.T) {
	s := NewStorage[storTag]("storTag")
	v, ok := s.Get(42)
	require.False(t, ok)
	require.Equal(t, storTag{}, v)
}
