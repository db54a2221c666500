package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"dialogue/internal/domain"
	"dialogue/internal/port"
)

var (
	bucketConversations = []byte("conversations")
	bucketUIDs          = []byte("uids")
	bucketMeta          = []byte("meta")
	keyInfo             = []byte("store_info")
)

var (
	_ port.ConversationStore = (*BoltStore)(nil)
	_ port.Reembedder        = (*BoltStore)(nil)
)

// BoltStore keeps conversations in a single bbolt file. IDs come from the
// bucket sequence, so key order is insertion order.
type BoltStore struct {
	db   *bbolt.DB
	opts options
}

func NewBoltStore(path string, opts ...Option) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketConversations, bucketUIDs, bucketMeta}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, opts: buildOptions(opts)}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func readInfo(tx *bbolt.Tx) (domain.StoreInfo, error) {
	var info domain.StoreInfo
	data := tx.Bucket(bucketMeta).Get(keyInfo)
	if data == nil {
		return info, nil
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("%w: store info: %v", domain.ErrCorruptRecord, err)
	}
	return info, nil
}

func writeInfo(tx *bbolt.Tx, info domain.StoreInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMeta).Put(keyInfo, data)
}

func (s *BoltStore) Save(ctx context.Context, conv domain.Conversation) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := conv.Validate(0); err != nil {
		return 0, err
	}

	var id uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		info, err := readInfo(tx)
		if err != nil {
			return err
		}
		if info.Dimension == 0 {
			info.Dimension = len(conv.Embedding)
			if info.SchemaVersion == 0 {
				info.SchemaVersion = CurrentSchemaVersion
			}
			if err := writeInfo(tx, info); err != nil {
				return err
			}
		} else if len(conv.Embedding) != info.Dimension {
			return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, info.Dimension, len(conv.Embedding))
		}

		uids := tx.Bucket(bucketUIDs)
		if conv.UID != "" && uids.Get([]byte(conv.UID)) != nil {
			return fmt.Errorf("%w: uid %s", domain.ErrDuplicate, conv.UID)
		}

		b := tx.Bucket(bucketConversations)
		next, err := b.NextSequence()
		if err != nil {
			return err
		}

		data, err := json.Marshal(toStored(conv))
		if err != nil {
			return err
		}
		if err := b.Put(itob(next), data); err != nil {
			return err
		}
		if conv.UID != "" {
			if err := uids.Put([]byte(conv.UID), itob(next)); err != nil {
				return err
			}
		}

		id = next
		return nil
	})
	if err != nil {
		return 0, persistErr("save conversation", err)
	}
	return id, nil
}

func (s *BoltStore) UpdateFeedback(ctx context.Context, id uint64, update domain.FeedbackUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketConversations)
		data := b.Get(itob(id))
		if data == nil {
			return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
		}

		var stored storedConversation
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("%w: conversation %d: %v", domain.ErrCorruptRecord, id, err)
		}

		fb := update.Apply(stored.Feedback)
		if err := fb.Validate(); err != nil {
			return err
		}
		stored.Feedback = fb

		out, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		return b.Put(itob(id), out)
	})
	return persistErr("update feedback", err)
}

func (s *BoltStore) Get(ctx context.Context, id uint64) (domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Conversation{}, err
	}

	var conv domain.Conversation
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketConversations).Get(itob(id))
		if data == nil {
			return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
		}
		info, err := readInfo(tx)
		if err != nil {
			return err
		}
		conv, err = decodeConversation(id, data, info.Dimension)
		return err
	})
	if err != nil {
		return domain.Conversation{}, persistErr("get conversation", err)
	}
	return conv, nil
}

func (s *BoltStore) ListAll(ctx context.Context) ([]domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	convs := []domain.Conversation{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		info, err := readInfo(tx)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketConversations).ForEach(func(k, v []byte) error {
			id := btoi(k)
			conv, err := decodeConversation(id, v, info.Dimension)
			if err != nil {
				s.opts.onCorrupt(id, err)
				return nil
			}
			convs = append(convs, conv)
			return nil
		})
	})
	if err != nil {
		return nil, persistErr("list conversations", err)
	}
	return convs, nil
}

func (s *BoltStore) ListRecent(ctx context.Context, limit int) ([]domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	convs := []domain.Conversation{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		info, err := readInfo(tx)
		if err != nil {
			return err
		}
		c := tx.Bucket(bucketConversations).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(convs) >= limit {
				break
			}
			id := btoi(k)
			conv, err := decodeConversation(id, v, info.Dimension)
			if err != nil {
				s.opts.onCorrupt(id, err)
				continue
			}
			convs = append(convs, conv)
		}
		return nil
	})
	if err != nil {
		return nil, persistErr("list recent conversations", err)
	}
	return convs, nil
}

func (s *BoltStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketConversations).Stats().KeyN
		return nil
	})
	return n, persistErr("count conversations", err)
}

func (s *BoltStore) Info(ctx context.Context) (domain.StoreInfo, error) {
	var info domain.StoreInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		info, err = readInfo(tx)
		return err
	})
	return info, persistErr("read store info", err)
}

func (s *BoltStore) SetInfo(ctx context.Context, info domain.StoreInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return writeInfo(tx, info)
	})
	return persistErr("write store info", err)
}

// ReplaceEmbeddings swaps the embedding of every listed conversation and
// records the new embedding space, all in one transaction.
func (s *BoltStore) ReplaceEmbeddings(ctx context.Context, info domain.StoreInfo, embeddings map[uint64][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketConversations)
		for id, emb := range embeddings {
			if len(emb) != info.Dimension {
				return fmt.Errorf("%w: conversation %d: expected %d, got %d", domain.ErrDimensionMismatch, id, info.Dimension, len(emb))
			}
			data := b.Get(itob(id))
			if data == nil {
				return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
			}
			var stored storedConversation
			if err := json.Unmarshal(data, &stored); err != nil {
				return fmt.Errorf("%w: conversation %d: %v", domain.ErrCorruptRecord, id, err)
			}
			stored.Embedding = emb
			out, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := b.Put(itob(id), out); err != nil {
				return err
			}
		}
		return writeInfo(tx, info)
	})
	return persistErr("replace embeddings", err)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
