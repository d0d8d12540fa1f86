package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/domain"
	apperrors "relay/pkg/errors"
)

func TestCallRegistry_InitiateIsSymmetric(t *testing.T) {
	r := NewCallRegistry()

	call, err := r.Initiate("a", "b", domain.CallMediaVideo)
	require.NoError(t, err)

	assert.Equal(t, CallStateRinging, call.State)
	assert.True(t, r.Paired("a", "b"))
	assert.True(t, r.Paired("b", "a"))
	assert.Equal(t, 1, r.Active())
}

func TestCallRegistry_Busy(t *testing.T) {
	tests := []struct {
		name   string
		caller string
		callee string
	}{
		{name: "callee already in a call", caller: "a", callee: "b"},
		{name: "caller already in a call", caller: "b", callee: "a"},
		{name: "callee is ringing", caller: "a", callee: "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCallRegistry()
			_, err := r.Initiate("b", "c", domain.CallMediaAudio)
			require.NoError(t, err)

			_, err = r.Initiate(tt.caller, tt.callee, domain.CallMediaAudio)
			assert.ErrorIs(t, err, apperrors.ErrBusy)

			assert.Equal(t, 1, r.Active())
			assert.True(t, r.Paired("b", "c"))
		})
	}
}

func TestCallRegistry_InvalidInitiate(t *testing.T) {
	r := NewCallRegistry()

	_, err := r.Initiate("a", "a", domain.CallMediaAudio)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = r.Initiate("a", "b", "hologram")
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	call, err := r.Initiate("a", "b", "")
	require.NoError(t, err)
	assert.Equal(t, domain.CallMediaAudio, call.Media)
}

func TestCallRegistry_Accept(t *testing.T) {
	r := NewCallRegistry()
	_, err := r.Initiate("a", "b", domain.CallMediaAudio)
	require.NoError(t, err)

	_, err = r.Accept("a", "b")
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "caller cannot accept its own call")

	call, err := r.Accept("b", "a")
	require.NoError(t, err)
	assert.Equal(t, CallStateActive, call.State)

	_, err = r.Accept("b", "a")
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestCallRegistry_TerminationRemovesBothSides(t *testing.T) {
	r := NewCallRegistry()
	_, err := r.Initiate("a", "b", domain.CallMediaAudio)
	require.NoError(t, err)

	_, ok := r.EndWith("b", "c")
	assert.False(t, ok, "wrong peer must not tear down the call")

	call, ok := r.EndWith("b", "a")
	require.True(t, ok)
	assert.Equal(t, "a", call.Peer("b"))
	assert.False(t, r.Paired("a", "b"))
	assert.False(t, r.Paired("b", "a"))

	_, ok = r.End("a")
	assert.False(t, ok)

	_, err = r.Initiate("b", "a", domain.CallMediaAudio)
	require.NoError(t, err)
	call, ok = r.End("a")
	require.True(t, ok)
	assert.Equal(t, "b", call.CallerID)
	assert.Equal(t, 0, r.Active())
}

func TestCallRegistry_ConcurrentInitiate(t *testing.T) {
	r := NewCallRegistry()

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := r.Initiate("a", "b", domain.CallMediaAudio)
			results <- err
		}()
		go func() {
			defer wg.Done()
			_, err := r.Initiate("b", "a", domain.CallMediaAudio)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrBusy)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, r.Active())
}
