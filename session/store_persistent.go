package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mharding/shopfront/internal/util"
	"github.com/mharding/shopfront/storage"
)

const sessionRecordType = "SESSION"

// PersistentStore keeps sessions in a storage.Repository, encrypted at
// rest with AES-256-GCM so a repository compromise alone does not expose
// bound user IDs, IPs, or pending TOTP secrets. Sessions survive server
// restarts.
type PersistentStore struct {
	repo storage.Repository
	key  []byte
}

var _ Store = (*PersistentStore)(nil)

// NewPersistentStore creates a session store backed by the given
// repository. The key must be exactly 32 bytes.
func NewPersistentStore(repo storage.Repository, key []byte) (*PersistentStore, error) {
	if len(key) != util.AESKeySize {
		return nil, fmt.Errorf("session key must be exactly %d bytes, got %d", util.AESKeySize, len(key))
	}
	return &PersistentStore{repo: repo, key: util.CopyBytes(key)}, nil
}

// Close wipes the key material.
func (s *PersistentStore) Close() {
	util.WipeBytes(s.key)
}

func (s *PersistentStore) Get(token string) (Session, bool) {
	sealed, err := s.repo.Get(sessionRecordType, token)
	if err != nil {
		return Session{}, false
	}
	data, err := util.DecryptAES(sealed, s.key)
	if err != nil {
		return Session{}, false
	}
	defer util.WipeBytes(data)
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, false
	}
	return sess, true
}

func (s *PersistentStore) Put(token string, sess Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		return
	}
	sealed, err := util.EncryptAES(data, s.key)
	util.WipeBytes(data)
	if err != nil {
		return
	}
	_ = s.repo.Put(sessionRecordType, token, sealed)
}

func (s *PersistentStore) Delete(token string) {
	_ = s.repo.Delete(sessionRecordType, token)
}

// PurgeOlderThan removes sessions created before the cutoff, along with
// records that no longer decrypt (key rotation leftovers). Callers run it
// periodically so abandoned staged logins do not accumulate.
func (s *PersistentStore) PurgeOlderThan(cutoff time.Time) {
	tokens, err := s.repo.List(sessionRecordType)
	if err != nil {
		return
	}
	for _, token := range tokens {
		sess, ok := s.Get(token)
		if !ok || sess.CreatedAt.Before(cutoff) {
			_ = s.repo.Delete(sessionRecordType, token)
		}
	}
}
