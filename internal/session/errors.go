package session

import (
	"errors"
	"fmt"

	"e2e_groupchat/internal/metadata"
	"e2e_groupchat/internal/model"
)

var (
	ErrNotInitialized  = errors.New("crypto session is not initialized")
	ErrIdentityChanged = errors.New("crypto session is bound to another identity")
	ErrEmptyIdentity   = errors.New("identity is empty")
	ErrCardNotFound    = errors.New("identity card not found")
)

// MetadataError is returned when a channel's data does not name a group.
type MetadataError = metadata.MetadataError

type BootstrapError struct {
	Identity model.Identity
	Stage    string
	Err      error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap %q: %s: %v", e.Identity, e.Stage, e.Err)
}

func (e *BootstrapError) Unwrap() error {
	return e.Err
}

type GroupCreationError struct {
	GroupID string
	Err     error
}

func (e *GroupCreationError) Error() string {
	return fmt.Sprintf("create group %q: %v", e.GroupID, e.Err)
}

func (e *GroupCreationError) Unwrap() error {
	return e.Err
}

type GroupLoadError struct {
	OwnerID model.Identity
	GroupID string
	Err     error
}

func (e *GroupLoadError) Error() string {
	return fmt.Sprintf("load group %q owned by %q: %v", e.GroupID, e.OwnerID, e.Err)
}

func (e *GroupLoadError) Unwrap() error {
	return e.Err
}

// DecryptError marks one message of a batch that could not be decrypted.
type DecryptError struct {
	MessageID int64
	Sender    model.Identity
	Err       error
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("decrypt message %d from %q: %v", e.MessageID, e.Sender, e.Err)
}

func (e *DecryptError) Unwrap() error {
	return e.Err
}
