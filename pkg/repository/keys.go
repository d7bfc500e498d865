package repository

import (
	"strconv"
	"strings"
)

// Key prefixes for each entity kind stored in the world state
const (
	kindAccount     = "account"
	kindGrant       = "grant"
	kindRecord      = "record"
	kindVisit       = "visit"
	kindFrequency   = "freq"
	kindOrder       = "order"
	kindTransaction = "tx"
	kindSequence    = "seq"
	kindAdmin       = "admin"
)

// Sequence names
const (
	SeqVisit       = "visit"
	SeqOrder       = "order"
	SeqTransaction = "tx"
)

const keySeparator = "\x00"

// makeKey joins a kind and its parts. Keys never start with the separator,
// so they stay valid Fabric simple keys.
func makeKey(kind string, parts ...string) string {
	if len(parts) == 0 {
		return kind
	}
	return kind + keySeparator + strings.Join(parts, keySeparator)
}

func idPart(id uint64) string {
	return strconv.FormatUint(id, 10)
}
