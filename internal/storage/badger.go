package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/starford/mdmemo/internal/models"
)

var (
	cardPrefix     = []byte("card/")
	activityPrefix = []byte("activity/")
	orderKey       = []byte("meta/order")
)

// Badger implements Backend on a badger key-value store. Each card is a JSON
// value under card/<id>; meta/order keeps the collection order.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens the store in dir. An empty dir keeps everything in memory.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

// Close closes the badger store.
func (b *Badger) Close() error {
	return b.db.Close()
}

// Load returns cards in the order recorded by the last Save.
func (b *Badger) Load(_ context.Context) ([]models.Card, error) {
	out := []models.Card{}
	err := b.db.View(func(txn *badger.Txn) error {
		var order []string
		item, err := txn.Get(orderKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &order)
		}); err != nil {
			return err
		}

		for _, id := range order {
			item, err := txn.Get(cardKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var c models.Card
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return fmt.Errorf("decode card %s: %w", id, err)
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: load cards: %w", err)
	}
	return out, nil
}

// Save writes every card, drops keys of cards no longer present and
// records the new order, all in one transaction.
func (b *Badger) Save(_ context.Context, cards []models.Card) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		keep := make(map[string]struct{}, len(cards))
		order := make([]string, 0, len(cards))
		for _, c := range cards {
			val, err := json.Marshal(c)
			if err != nil {
				return err
			}
			if err := txn.Set(cardKey(c.ID), val); err != nil {
				return err
			}
			keep[string(cardKey(c.ID))] = struct{}{}
			order = append(order, c.ID)
		}

		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Seek(cardPrefix); it.ValidForPrefix(cardPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := keep[string(key)]; !ok {
				stale = append(stale, key)
			}
		}
		it.Close()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		val, err := json.Marshal(order)
		if err != nil {
			return err
		}
		return txn.Set(orderKey, val)
	})
	if err != nil {
		return fmt.Errorf("storage: save cards: %w", err)
	}
	return nil
}

// Record adds count to the counter for day.
func (b *Badger) Record(_ context.Context, day string, count int) error {
	key := append(append([]byte{}, activityPrefix...), day...)
	err := b.db.Update(func(txn *badger.Txn) error {
		current := 0
		item, err := txn.Get(key)
		if err == nil {
			if err := item.Value(func(val []byte) error {
				current, err = strconv.Atoi(string(val))
				return err
			}); err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, []byte(strconv.Itoa(current+count)))
	})
	if err != nil {
		return fmt.Errorf("storage: record activity: %w", err)
	}
	return nil
}

// Activity returns every recorded day.
func (b *Badger) Activity(_ context.Context) (map[string]int, error) {
	out := make(map[string]int)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(activityPrefix); it.ValidForPrefix(activityPrefix); it.Next() {
			item := it.Item()
			day := string(item.Key()[len(activityPrefix):])
			if err := item.Value(func(val []byte) error {
				n, err := strconv.Atoi(string(val))
				out[day] = n
				return err
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: activity: %w", err)
	}
	return out, nil
}

func cardKey(id string) []byte {
	return append(append([]byte{}, cardPrefix...), id...)
}
