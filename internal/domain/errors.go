package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("product not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrCacheMiss is only ever returned by cache adapters. It never means
	// the product does not exist.
	ErrCacheMiss = errors.New("cache miss")
)

type NotFoundError struct {
	Id int64
}

func NewNotFoundError(id int64) *NotFoundError {
	return &NotFoundError{Id: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: id=%d", ErrNotFound.Error(), e.Id)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
