package database

import "errors"

var (
	// ErrSlugExists is returned when an attempt is made to create
	// a new link with a slug that already exists.
	ErrSlugExists = errors.New("slug exists")
	// ErrLinkNotFound is returned when an attempt is made to retrieve
	// a link using a slug that doesn't exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrKeyNotFound is returned when a store key is absent. Absence is
	// a distinct observable state from a zero or empty value.
	ErrKeyNotFound = errors.New("key not found")
)
