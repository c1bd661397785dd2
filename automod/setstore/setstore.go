// Package setstore provides injected lookup tables for the moderation
// engine, such as the allowed-sticker set consulted by the flood game.
package setstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Name of the set holding file_unique_ids of stickers the chat game accepts.
const AllowedStickers = "allowed-stickers"

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
}

type MemSetStore struct {
	Sets map[string]map[string]bool
}

func NewMemSetStore() MemSetStore {
	return MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

func (s MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	set, ok := s.Sets[name]
	if !ok {
		// an entirely unknown set is simply empty
		return false, nil
	}
	_, ok = set[val]
	return ok, nil
}

func (s MemSetStore) Add(name string, vals ...string) {
	set, ok := s.Sets[name]
	if !ok {
		set = make(map[string]bool)
		s.Sets[name] = set
	}
	for _, v := range vals {
		set[v] = true
	}
}

// LoadFromFileJSON merges sets from a JSON file shaped as
// {"set-name": ["val", ...], ...}.
func (s MemSetStore) LoadFromFileJSON(p string) error {
	raw, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return fmt.Errorf("parsing set file %s: %w", p, err)
	}
	for name, l := range sets {
		s.Add(name, l...)
	}
	return nil
}
