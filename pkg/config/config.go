package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrDotenv        = errors.New("failed to load dotenv file")
)

var dotenvOnce sync.Once

// LoadDotenv loads the given files (".env" by default) into the process
// environment once per process. Existing variables win. A missing file is
// not an error.
func LoadDotenv(files ...string) {
	dotenvOnce.Do(func() {
		if len(files) == 0 {
			files = []string{".env"}
		}
		for _, f := range files {
			_ = godotenv.Load(f)
		}
	})
}

// Load parses the environment into a new T using its env struct tags.
func Load[T any]() (T, error) {
	LoadDotenv()
	var v T
	if err := env.Parse(&v); err != nil {
		return v, errors.Join(ErrParsingConfig, err)
	}
	return v, nil
}

// LoadPrefixed is Load with every variable name prefixed, e.g. "TEST_".
func LoadPrefixed[T any](prefix string) (T, error) {
	LoadDotenv()
	var v T
	if err := env.ParseWithOptions(&v, env.Options{Prefix: prefix}); err != nil {
		return v, errors.Join(ErrParsingConfig, err)
	}
	return v, nil
}

// MustLoad is Load that panics on error. Use it for settings the process
// cannot start without.
func MustLoad[T any]() T {
	v, err := Load[T]()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return v
}
