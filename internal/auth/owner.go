package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/user"
	"strings"

	"github.com/go-git/go-git/v5/config"
)

// DeriveOwnerID maps a user name to a stable owner id.
func DeriveOwnerID(username string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(username))))
	return hex.EncodeToString(sum[:])
}

// LocalOwnerID returns the owner id of the local user.
func LocalOwnerID() string {
	return DeriveOwnerID(LocalUsername())
}

// LocalUsername returns the OS user name, falling back to $USER, then the
// global git user.name, then "local".
func LocalUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if cfg, err := config.LoadConfig(config.GlobalScope); err == nil && cfg.User.Name != "" {
		return cfg.User.Name
	}
	return "local"
}
