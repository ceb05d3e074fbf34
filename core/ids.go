package core

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// NamespaceDirName derives a filesystem-safe, fixed-length name for a namespace
// key using a 128-bit BLAKE2b digest. Identical keys always map to the same name.
func NamespaceDirName(key string) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

// NewBotKey builds a unique bot key of the form "<safe-name>-<owner>-<unix-seconds>".
// The safe name is the lower-cased name with spaces replaced by dashes.
func NewBotKey(name string, ownerID int64, at time.Time) string {
	safe := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
	return safe + "-" + strconv.FormatInt(ownerID, 10) + "-" + strconv.FormatInt(at.Unix(), 10)
}
