package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"batepapo/domain"
	"batepapo/errors"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	Create(name string, now time.Time) (domain.User, error)
	Get(name string) (domain.User, error)
	Touch(name string, now time.Time) error
	Snapshot() ([]domain.User, error)
	EvictIfStale(name string, expectedLastSeen time.Time) (bool, error)
}

// UserRepository is the authoritative presence registry, backed by BadgerDB.
// Every mutation runs as a single Badger transaction, so the check and the
// write it guards are one atomic operation. Badger detects write conflicts
// between racing transactions on the same key; conflicted transactions are
// re-run, which serializes Join/Touch/EvictIfStale per name.
type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

// userRecord is the on-disk shape. LastSeen is unix nanoseconds.
type userRecord struct {
	Name     string `json:"name"`
	LastSeen int64  `json:"lastSeen"`
}

const userPrefix = "user:"

func userKey(name string) []byte {
	return []byte(userPrefix + name)
}

const maxTxnRetries = 3

// update runs fn as a transaction, re-running it when Badger reports a
// write conflict with a concurrent transaction on the same key.
func (u *UserRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = u.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		u.log.Debug("Transaction conflict, retrying", "attempt", i+1)
	}
	return err
}

// Create inserts a new user iff no user with that name exists. The existence
// check and the insert happen in the same transaction: of two concurrent
// Creates for one name, exactly one wins and the other gets ErrNameTaken.
func (u *UserRepository) Create(name string, now time.Time) (domain.User, error) {
	user := domain.User{Name: name, LastSeen: now}
	data, err := json.Marshal(fromUser(user))
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.update(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(name))
		if err == nil {
			return errors.ErrNameTaken
		}
		if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(userKey(name), data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) Get(name string) (domain.User, error) {
	var rec userRecord
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(name))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(rec), nil
}

// Touch refreshes lastSeen iff the user still exists. Read and write share
// one transaction so a concurrent eviction cannot resurrect the record.
func (u *UserRepository) Touch(name string, now time.Time) error {
	return u.update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(name))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		var rec userRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		rec.LastSeen = now.UnixNano()
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		return txn.Set(userKey(name), data)
	})
}

// Snapshot returns all present users, ordered by name. A single View
// transaction gives a consistent point-in-time view of the registry.
func (u *UserRepository) Snapshot() ([]domain.User, error) {
	var users []domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(userPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec userRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			users = append(users, toUser(rec))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// EvictIfStale deletes the user only if its stored lastSeen still equals
// expectedLastSeen. A user that heartbeat-renewed after the caller took its
// snapshot fails the comparison and survives. Returns whether the user was
// actually removed.
func (u *UserRepository) EvictIfStale(name string, expectedLastSeen time.Time) (bool, error) {
	evicted := false
	err := u.update(func(txn *badger.Txn) error {
		evicted = false
		item, err := txn.Get(userKey(name))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			// Already gone, nothing to do.
			return nil
		}
		if err != nil {
			return err
		}
		var rec userRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		if rec.LastSeen != expectedLastSeen.UnixNano() {
			return nil
		}
		if err := txn.Delete(userKey(name)); err != nil {
			return err
		}
		evicted = true
		return nil
	})
	return evicted, err
}

func fromUser(user domain.User) userRecord {
	return userRecord{
		Name:     user.Name,
		LastSeen: user.LastSeen.UnixNano(),
	}
}

func toUser(rec userRecord) domain.User {
	return domain.User{
		Name:     rec.Name,
		LastSeen: time.Unix(0, rec.LastSeen).UTC(),
	}
}
