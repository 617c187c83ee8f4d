// Package denylist tracks addresses reported for harmful activity.
//
// Entries come from external intelligence feeds and manual curation. The
// scan pipeline consults the list for the transaction recipient and any
// approval spenders; a hit becomes evidence for the message builder, never
// an automatic block.
package denylist

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("address not listed")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidTag     = errors.New("invalid tag")
)

// Known tags. "known_bad_contract" marks addresses confirmed to hold code;
// "known_bad_address" is the generic form.
const (
	TagKnownBadAddress  = "known_bad_address"
	TagKnownBadContract = "known_bad_contract"
)

// Entry is a single report of an address by a source feed
type Entry struct {
	Address string    `json:"address"`
	Tag     string    `json:"tag"`
	Source  string    `json:"source"`
	Note    string    `json:"note,omitempty"`
	AddedAt time.Time `json:"addedAt"`
}

// Store persists denylist entries. An address can carry multiple entries,
// one per reporting source.
type Store interface {
	Add(ctx context.Context, entry *Entry) error
	Lookup(ctx context.Context, address string) ([]*Entry, error)
	Remove(ctx context.Context, address, source string) error
	List(ctx context.Context, limit, offset int) ([]*Entry, error)
}

// Normalize lowercases an address for storage and lookup
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func validTag(tag string) bool {
	return tag == TagKnownBadAddress || tag == TagKnownBadContract
}

func validateEntry(entry *Entry) error {
	addr := Normalize(entry.Address)
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return ErrInvalidAddress
	}
	if !validTag(entry.Tag) {
		return ErrInvalidTag
	}
	entry.Address = addr
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	return nil
}
