// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package kv

import "github.com/syndtr/goleveldb/leveldb/util"

// Bucket provides logical bucket for kv store.
type Bucket string

// NewGetter creates a bucket getter from the source getter.
func (b Bucket) NewGetter(src Getter) Getter {
	return &struct {
		GetFunc
		HasFunc
		IsNotFoundFunc
	}{
		func(key []byte) ([]byte, error) {
			return src.Get(append([]byte(b), key...))
		},
		func(key []byte) (bool, error) {
			return src.Has(append([]byte(b), key...))
		},
		src.IsNotFound,
	}
}

// NewPutter creates a bucket putter from the source putter.
func (b Bucket) NewPutter(src Putter) Putter {
	return &struct {
		PutFunc
		DeleteFunc
	}{
		func(key, val []byte) error {
			return src.Put(append([]byte(b), key...), val)
		},
		func(key []byte) error {
			return src.Delete(append([]byte(b), key...))
		},
	}
}

// NewStore creates a bucket store from the source store.
func (b Bucket) NewStore(src Store) Store {
	getter := b.NewGetter(src)
	putter := b.NewPutter(src)
	return &struct {
		Getter
		Putter
		newIteratorFunc
	}{
		getter,
		putter,
		func(r Range) Iterator {
			bucketRange := util.BytesPrefix([]byte(b))
			start := append([]byte(b), r.Start...)
			limit := bucketRange.Limit
			if len(r.Limit) > 0 {
				limit = append([]byte(b), r.Limit...)
			}
			return &bucketIterator{
				src.NewIterator(Range{Start: start, Limit: limit}),
				len(b),
			}
		},
	}
}

type newIteratorFunc func(r Range) Iterator

func (f newIteratorFunc) NewIterator(r Range) Iterator { return f(r) }

type bucketIterator struct {
	Iterator
	prefixLen int
}

func (i *bucketIterator) Key() []byte {
	return i.Iterator.Key()[i.prefixLen:]
}
