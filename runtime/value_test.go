package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedBorrowSharedAllowsConcurrentReaders(t *testing.T) {
	s := NewShared(&Aggregate{TypeName: "Point", Fields: []Value{Int(1), Int(2)}, Keys: []string{"x", "y"}})

	_, release1, err := s.BorrowShared()
	require.NoError(t, err)
	_, release2, err := s.BorrowShared()
	require.NoError(t, err)

	release1()
	release2()
	assert.Equal(t, Unshared, s.state)
}

func TestSharedBorrowExclusiveConflictsWithSharedBorrow(t *testing.T) {
	s := NewShared(&Aggregate{TypeName: "Point", Fields: []Value{Int(1)}, Keys: []string{"x"}})

	_, release, err := s.BorrowShared()
	require.NoError(t, err)
	defer release()

	_, _, err = s.BorrowExclusive()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBorrowConflict), "expected ErrBorrowConflict, got %v", err)
}

func TestSharedBorrowSharedConflictsWithExclusiveBorrow(t *testing.T) {
	s := NewShared(&Aggregate{TypeName: "Point", Fields: []Value{Int(1)}, Keys: []string{"x"}})

	_, release, err := s.BorrowExclusive()
	require.NoError(t, err)
	defer release()

	_, _, err = s.BorrowShared()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBorrowConflict))
}

func TestSharedReleaseRestoresUnshared(t *testing.T) {
	s := NewShared(&Aggregate{TypeName: "Point", Fields: []Value{Int(1)}, Keys: []string{"x"}})

	_, release, err := s.BorrowExclusive()
	require.NoError(t, err)
	release()

	_, release2, err := s.BorrowShared()
	require.NoError(t, err)
	release2()
	assert.Equal(t, Unshared, s.state)
}
