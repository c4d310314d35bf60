package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/kalinanews/newsroom/persistence"
)

const textCodeInvalidTransition = "INVALID_USER_STATE_TRANSITION"

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid user state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Metadata map[string]any
}

// TransitionOption customizes a single transition.
type TransitionOption func(*TransitionMetadata)

// WithTransitionReason sets the human-readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(m *TransitionMetadata) {
		m.Reason = reason
	}
}

// WithTransitionMetadata merges metadata into the transition event.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(m *TransitionMetadata) {
		if len(metadata) == 0 {
			return
		}
		if m.Metadata == nil {
			m.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			m.Metadata[k] = v
		}
	}
}

// UserStateMachine moves accounts between active and inactive.
// Deactivation is the soft delete path; accounts are never hard deleted.
type UserStateMachine interface {
	Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error)
	CurrentStatus(user *User) UserStatus
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*userStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *userStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *userStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *userStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

type userStateMachine struct {
	users        Users
	transitions  map[UserStatus]map[UserStatus]struct{}
	now          func() time.Time
	activitySink ActivitySink
	logger       Logger
}

// NewUserStateMachine returns the default implementation backed by the provided repository.
func NewUserStateMachine(users Users, opts ...StateMachineOption) UserStateMachine {
	sm := &userStateMachine{
		users: users,
		transitions: map[UserStatus]map[UserStatus]struct{}{
			UserStatusActive: {
				UserStatusInactive: {},
			},
			UserStatusInactive: {
				UserStatusActive: {},
			},
		},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

func (sm *userStateMachine) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, opts ...TransitionOption) (*User, error) {
	if user == nil {
		return nil, Derive(ErrInvalidTransition).WithMetadata(map[string]any{
			"target": target,
			"reason": "user is nil",
		})
	}

	from := user.Status()
	if from == target {
		return user, nil
	}

	if !sm.canTransition(from, target) {
		return nil, Derive(ErrInvalidTransition).WithMetadata(map[string]any{
			"from": from,
			"to":   target,
		})
	}

	meta := TransitionMetadata{}
	for _, opt := range opts {
		if opt != nil {
			opt(&meta)
		}
	}

	user.IsActive = target == UserStatusActive
	if _, err := sm.users.Update(ctx, user, persistence.Columns{"is_active": user.IsActive}.Set()...); err != nil {
		user.IsActive = from == UserStatusActive
		return nil, err
	}

	metadata := map[string]any{}
	for k, v := range meta.Metadata {
		metadata[k] = v
	}
	if meta.Reason != "" {
		metadata["reason"] = meta.Reason
	}

	recordActivity(ctx, sm.activitySink, sm.logger, ActivityEvent{
		EventType:  ActivityEventUserStatusChanged,
		Actor:      actor,
		UserID:     user.ID.String(),
		FromStatus: from,
		ToStatus:   target,
		Metadata:   metadata,
		OccurredAt: sm.now().UTC(),
	})

	return user, nil
}

func (sm *userStateMachine) CurrentStatus(user *User) UserStatus {
	if user == nil {
		return ""
	}
	return user.Status()
}

func (sm *userStateMachine) canTransition(from, to UserStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}
