package common

import (
	"os"
	"strconv"
	"strings"
)

// EnvPrefix namespaces every environment variable sapsteward reads.
const EnvPrefix = "SAPSTEWARD_"

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	return strings.TrimSpace(v), ok
}

// Env returns SAPSTEWARD_<key>, or fallback when unset.
func Env(key, fallback string) string {
	if v, ok := lookupEnv(key); ok {
		return v
	}
	return fallback
}

// EnvBool parses SAPSTEWARD_<key> with strconv.ParseBool, also accepting
// yes/no and on/off. Unparseable values yield fallback.
func EnvBool(key string, fallback bool) bool {
	v, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true
	case "no", "off", "":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// EnvInt parses SAPSTEWARD_<key> as a decimal integer.
func EnvInt(key string, fallback int) int {
	v, ok := lookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
