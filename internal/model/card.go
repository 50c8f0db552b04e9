package model

import "time"

type (
	// Card is the public half of a user's crypto identity, as published to
	// the directory.
	Card struct {
		Identity  Identity  `json:"identity" bson:"_id" cbor:"1,keyasint"`
		DHPub     []byte    `json:"dh_pub" bson:"dh_pub" cbor:"2,keyasint"`
		SignPub   []byte    `json:"sign_pub" bson:"sign_pub" cbor:"3,keyasint"`
		CreatedAt time.Time `json:"created_at" bson:"created_at" cbor:"4,keyasint"`
	}

	// WrappedKey is a group key sealed to one participant.
	WrappedKey struct {
		Participant  Identity `json:"participant" bson:"participant" cbor:"1,keyasint"`
		EphemeralPub []byte   `json:"ephemeral_pub" bson:"ephemeral_pub" cbor:"2,keyasint"`
		Sealed       []byte   `json:"sealed" bson:"sealed" cbor:"3,keyasint"`
	}

	// GroupRecord is what the group store keeps for one (owner, group id)
	// pair. Signature covers every other field.
	GroupRecord struct {
		OwnerID      Identity     `json:"owner_id" bson:"owner_id" cbor:"1,keyasint"`
		GroupID      string       `json:"group_id" bson:"group_id" cbor:"2,keyasint"`
		Participants []Identity   `json:"participants" bson:"participants" cbor:"3,keyasint"`
		Keys         []WrappedKey `json:"keys" bson:"keys" cbor:"4,keyasint"`
		CreatedAt    time.Time    `json:"created_at" bson:"created_at" cbor:"5,keyasint"`
		Signature    []byte       `json:"signature,omitempty" bson:"signature" cbor:"-"`
	}
)
