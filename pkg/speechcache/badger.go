package speechcache

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const badgerKeyPrefix = "speech:"

// BadgerIndex is an Index persisted in BadgerDB. Values are msgpack-encoded
// entries keyed by "speech:{fingerprint}".
type BadgerIndex struct {
	db *badger.DB
}

// BadgerOptions configures the BadgerDB index.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	InMemory bool

	// Logger receives badger warnings and errors. Default: slog.Default().
	Logger *slog.Logger
}

// OpenBadger opens or creates a BadgerDB-backed index.
func OpenBadger(opts BadgerOptions) (*BadgerIndex, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("speechcache: BadgerOptions.Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(badgerLogger{logger.With("component", "badger")})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("speechcache: open badger: %w", err)
	}
	return &BadgerIndex{db: db}, nil
}

func badgerKey(fp string) []byte {
	return []byte(badgerKeyPrefix + fp)
}

func (b *BadgerIndex) Get(_ context.Context, fp string) (*Entry, error) {
	var e Entry
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(fp))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (b *BadgerIndex) Put(_ context.Context, e *Entry) error {
	if e.Fingerprint == "" {
		return errors.New("speechcache: entry has no fingerprint")
	}
	val, err := msgpack.Marshal(e)
	if err != nil {
		return fmt.Errorf("speechcache: encode entry: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(e.Fingerprint), val)
	})
}

func (b *BadgerIndex) Delete(_ context.Context, fp string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(fp))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// All iterates over every stored entry.
func (b *BadgerIndex) All() iter.Seq2[*Entry, error] {
	prefix := []byte(badgerKeyPrefix)
	return func(yield func(*Entry, error) bool) {
		err := b.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				var e Entry
				err := it.Item().Value(func(val []byte) error {
					return msgpack.Unmarshal(val, &e)
				})
				if err != nil {
					if !yield(nil, err) {
						return nil
					}
					continue
				}
				if !yield(&e, nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

func (b *BadgerIndex) Close() error {
	return b.db.Close()
}

var _ Index = (*BadgerIndex)(nil)

// badgerLogger routes badger warnings and errors to slog, suppressing
// debug and info level messages.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...interface{})   { b.l.Error(fmt.Sprintf(f, v...)) }
func (b badgerLogger) Warningf(f string, v ...interface{}) { b.l.Warn(fmt.Sprintf(f, v...)) }
func (badgerLogger) Infof(string, ...interface{})          {}
func (badgerLogger) Debugf(string, ...interface{})         {}
