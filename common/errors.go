package common

import "errors"

var (
	ErrNotFound = errors.New("no such file or directory")
	ErrExists   = errors.New("file exists")
	ErrNoSpace  = errors.New("no space left on device")
	ErrNotDir   = errors.New("not a directory")
	ErrIsDir    = errors.New("is a directory")
	ErrNotEmpty = errors.New("directory not empty")
	ErrInval    = errors.New("invalid argument")
)
