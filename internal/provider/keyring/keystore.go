package keyring

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"e2e_groupchat/internal/cryptographic/dh"
	"e2e_groupchat/internal/cryptographic/signature"
	"e2e_groupchat/internal/model"
)

const identitiesBucket = "identities"

// identityKeys is the private half of a local identity. It never leaves
// the device.
type identityKeys struct {
	DHPriv    []byte    `cbor:"1,keyasint"`
	DHPub     []byte    `cbor:"2,keyasint"`
	SignPriv  []byte    `cbor:"3,keyasint"`
	CreatedAt time.Time `cbor:"4,keyasint"`
}

func (k *identityKeys) card(id model.Identity) *model.Card {
	return &model.Card{
		Identity:  id,
		DHPub:     k.DHPub,
		SignPub:   ed25519.PrivateKey(k.SignPriv).Public().(ed25519.PublicKey),
		CreatedAt: k.CreatedAt,
	}
}

// Keystore keeps identity private keys in a bbolt file.
type Keystore struct {
	db *bolt.DB
}

func OpenKeystore(path string) (*Keystore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("keyring: open keystore %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(identitiesBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("keyring: init keystore: %w", err)
	}
	return &Keystore{db: db}, nil
}

func (k *Keystore) Close() error {
	return k.db.Close()
}

// LoadOrCreate returns the keys stored for id, generating and storing a
// fresh set on first use.
func (k *Keystore) LoadOrCreate(id model.Identity) (keys *identityKeys, created bool, err error) {
	err = k.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(identitiesBucket))

		if raw := bkt.Get([]byte(id)); raw != nil {
			keys = new(identityKeys)
			if err := cbor.Unmarshal(raw, keys); err != nil {
				return fmt.Errorf("decode stored keys: %w", err)
			}
			if len(keys.DHPriv) != dh.KeySize || len(keys.SignPriv) != ed25519.PrivateKeySize {
				return errors.New("stored keys are corrupt")
			}
			return nil
		}

		dhPriv, dhPub, err := dh.NewX25519KeyPair()
		if err != nil {
			return err
		}
		_, signPriv, err := signature.NewEd25519Keypair()
		if err != nil {
			return err
		}
		keys = &identityKeys{
			DHPriv:    dhPriv,
			DHPub:     dhPub,
			SignPriv:  signPriv,
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		}

		raw, err := cbor.Marshal(keys)
		if err != nil {
			return err
		}
		created = true
		return bkt.Put([]byte(id), raw)
	})
	if err != nil {
		return nil, false, fmt.Errorf("keyring: keys for %q: %w", id, err)
	}
	return keys, created, nil
}
