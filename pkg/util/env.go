package util

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"
)

// LoadEnv reads .env.<env> (falling back to .env) and exports every
// KEY=VALUE line that is not already set in the process environment.
func LoadEnv(env string) error {
	path := fmt.Sprintf(".env.%s", env)
	if _, err := os.Stat(path); err != nil {
		path = ".env"
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

func GetEnv(key string) string { return os.Getenv(key) }

func GetEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func GetIntEnv(key string) int64 { return cast.ToInt64(os.Getenv(key)) }

func GetBoolEnv(key string) bool { return cast.ToBool(os.Getenv(key)) }

func GetDurationEnv(key string) int64 { return cast.ToInt64(os.Getenv(key)) }
