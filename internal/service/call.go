package service

import (
	"fmt"
	"sync"
	"time"

	"relay/internal/domain"
	apperrors "relay/pkg/errors"
)

type CallState string

const (
	CallStateRinging CallState = "ringing"
	CallStateActive  CallState = "active"
)

// Call is one pairing. Both users' entries in the registry point at the same
// Call value.
type Call struct {
	CallerID  string
	CalleeID  string
	Media     string
	State     CallState
	StartedAt time.Time
	AnswerAt  time.Time
}

func (c Call) Peer(userID string) string {
	if userID == c.CallerID {
		return c.CalleeID
	}
	return c.CallerID
}

// CallRegistry is the pairing table of the call signalling state machine.
// A user has an entry if and only if its peer has one pointing back.
type CallRegistry interface {
	// Initiate pairs caller and callee in the ringing state. ErrBusy when
	// either side already has a pairing.
	Initiate(callerID, calleeID, media string) (Call, error)
	// Accept moves a ringing call to active. Only the callee of a call with
	// callerID may accept it.
	Accept(calleeID, callerID string) (Call, error)
	// EndWith tears down the pairing between userID and peerID, if it exists.
	EndWith(userID, peerID string) (Call, bool)
	// End tears down whatever pairing userID has.
	End(userID string) (Call, bool)
	Paired(a, b string) bool
	Active() int
}

type callRegistry struct {
	mu    sync.Mutex
	calls map[string]*Call
	now   func() time.Time
}

func NewCallRegistry() CallRegistry {
	return &callRegistry{
		calls: make(map[string]*Call),
		now:   time.Now,
	}
}

func (r *callRegistry) Initiate(callerID, calleeID, media string) (Call, error) {
	if callerID == calleeID {
		return Call{}, fmt.Errorf("%w: cannot call yourself", apperrors.ErrBadRequest)
	}
	if media == "" {
		media = domain.CallMediaAudio
	}
	if media != domain.CallMediaAudio && media != domain.CallMediaVideo {
		return Call{}, fmt.Errorf("%w: unsupported call type %q", apperrors.ErrBadRequest, media)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.calls[callerID]; busy {
		return Call{}, apperrors.ErrBusy
	}
	if _, busy := r.calls[calleeID]; busy {
		return Call{}, apperrors.ErrBusy
	}

	call := &Call{
		CallerID:  callerID,
		CalleeID:  calleeID,
		Media:     media,
		State:     CallStateRinging,
		StartedAt: r.now(),
	}
	r.calls[callerID] = call
	r.calls[calleeID] = call
	return *call, nil
}

func (r *callRegistry) Accept(calleeID, callerID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[calleeID]
	if !ok || call.CalleeID != calleeID || call.CallerID != callerID {
		return Call{}, apperrors.ErrNotFound
	}
	if call.State != CallStateRinging {
		return Call{}, fmt.Errorf("%w: call already answered", apperrors.ErrBadRequest)
	}

	call.State = CallStateActive
	call.AnswerAt = r.now()
	return *call, nil
}

func (r *callRegistry) EndWith(userID, peerID string) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[userID]
	if !ok || call.Peer(userID) != peerID {
		return Call{}, false
	}
	r.removeLocked(call)
	return *call, true
}

func (r *callRegistry) End(userID string) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[userID]
	if !ok {
		return Call{}, false
	}
	r.removeLocked(call)
	return *call, true
}

func (r *callRegistry) Paired(a, b string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[a]
	return ok && call.Peer(a) == b
}

func (r *callRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls) / 2
}

func (r *callRegistry) removeLocked(call *Call) {
	if r.calls[call.CallerID] == call {
		delete(r.calls, call.CallerID)
	}
	if r.calls[call.CalleeID] == call {
		delete(r.calls, call.CalleeID)
	}
}
