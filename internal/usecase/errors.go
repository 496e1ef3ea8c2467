package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrCore    = errors.New("coordination error")
	ErrArchive = errors.New("archive error")
)

func wrapCore(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrCore, err)
}

func wrapArchive(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrArchive, err)
}
