// Package metadata encodes and decodes the opaque data blobs that channels
// and messages carry through the messaging backend.
//
// A channel's data names the crypto group that protects it:
//
//	{"ownerId":"alice","groupId":"6f1c..."}
//
// Nothing else is accepted. In particular a bare JSON string is rejected, so
// a channel whose data does not decode is treated as unable to carry
// encrypted messages.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"e2e_groupchat/internal/model"
)

var (
	ErrEmpty        = errors.New("metadata is empty")
	ErrNotAnObject  = errors.New("metadata is not a JSON object")
	ErrMissingField = errors.New("metadata field is missing")
)

// MetadataError reports channel data that cannot be used to locate a group.
type MetadataError struct {
	Raw string
	Err error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("channel metadata %q: %v", truncate(e.Raw, 64), e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// Encode produces the canonical channel data for a group.
func Encode(ownerID model.Identity, groupID string) (string, error) {
	if ownerID == "" {
		return "", &MetadataError{Err: fmt.Errorf("%w: ownerId", ErrMissingField)}
	}
	if groupID == "" {
		return "", &MetadataError{Err: fmt.Errorf("%w: groupId", ErrMissingField)}
	}

	data, err := json.Marshal(model.ChannelMetadata{OwnerID: ownerID, GroupID: groupID})
	if err != nil {
		return "", &MetadataError{Err: err}
	}
	return string(data), nil
}

// Decode parses channel data. Every failure is a *MetadataError.
func Decode(raw string) (model.ChannelMetadata, error) {
	var md model.ChannelMetadata

	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return md, &MetadataError{Raw: raw, Err: ErrEmpty}
	}
	if trimmed[0] != '{' {
		return md, &MetadataError{Raw: raw, Err: ErrNotAnObject}
	}

	if err := json.Unmarshal(trimmed, &md); err != nil {
		return model.ChannelMetadata{}, &MetadataError{Raw: raw, Err: err}
	}
	if md.OwnerID == "" {
		return model.ChannelMetadata{}, &MetadataError{Raw: raw, Err: fmt.Errorf("%w: ownerId", ErrMissingField)}
	}
	if md.GroupID == "" {
		return model.ChannelMetadata{}, &MetadataError{Raw: raw, Err: fmt.Errorf("%w: groupId", ErrMissingField)}
	}
	return md, nil
}

// EncodeMessageData produces the data blob attached to a sent message.
func EncodeMessageData(encrypted bool) string {
	data, _ := json.Marshal(model.MessageMetadata{IsEncrypted: encrypted})
	return string(data)
}

// IsEncrypted reports whether a message's data marks its body as
// ciphertext. Absent or malformed data means plaintext.
func IsEncrypted(raw string) bool {
	if raw == "" {
		return false
	}
	var md model.MessageMetadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return false
	}
	return md.IsEncrypted
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
