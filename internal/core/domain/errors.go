package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyZone             = errors.New("zone has no usable records")
	ErrMissingSOA            = errors.New("SOA not found")
	ErrMixedTags             = errors.New("corpus mixes differences with and without model tags")
	ErrNameTooDeep           = errors.New("domain name exceeds maximum depth")
	ErrUnknownType           = errors.New("unknown record type")
	ErrNoDNAME               = errors.New("no DNAME record found")
	ErrNoQueries             = errors.New("no queries for test")
	ErrLocked                = errors.New("run identifier is locked by another process")
	ErrUnknownImplementation = errors.New("unknown implementation")
)

// EmptyZoneError is returned when an abstract zone has no usable records.
type EmptyZoneError struct {
	TestID string
}

func (e *EmptyZoneError) Error() string {
	return fmt.Sprintf("records are empty for %s", e.TestID)
}

func (e *EmptyZoneError) Unwrap() error { return ErrEmptyZone }

// MixedTagsError reports how many differences could and could not be tagged.
type MixedTagsError struct {
	Tagged   int
	Untagged int
}

func (e *MixedTagsError) Error() string {
	return fmt.Sprintf("%v: %d tagged, %d untagged", ErrMixedTags, e.Tagged, e.Untagged)
}

func (e *MixedTagsError) Unwrap() error { return ErrMixedTags }
