package config

import (
	"errors"
)

// Sentinel errors returned by Load.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
