package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Entity-id prefixes.
const (
	prefixMemory        = "mem"
	prefixAssociation   = "assoc"
	prefixSession       = "sess"
	prefixWorkspace     = "ws"
	prefixContext       = "ctx"
	prefixContradiction = "contra"
)

// GenerateMemoryID mints a mem_-prefixed id from a random hex slug.
func GenerateMemoryID() string {
	return prefixedSlug(prefixMemory)
}

// GenerateSessionID mints a sess_-prefixed id.
func GenerateSessionID() string {
	return prefixedSlug(prefixSession)
}

// GenerateWorkspaceID mints a ws_-prefixed id.
func GenerateWorkspaceID() string {
	return prefixedSlug(prefixWorkspace)
}

// GenerateContextID mints a ctx_-prefixed id.
func GenerateContextID() string {
	return prefixedSlug(prefixContext)
}

// GenerateAssociationID mints an assoc_-prefixed id with a UUID body.
func GenerateAssociationID() string {
	return fmt.Sprintf("%s_%s", prefixAssociation, uuid.NewString())
}

// GenerateContradictionID mints a contra_-prefixed id using a UUID body.
func GenerateContradictionID() string {
	return fmt.Sprintf("%s_%s", prefixContradiction, uuid.NewString())
}

func prefixedSlug(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, randomSlug())
}

// randomSlug generates a random 16-character hex slug, falling back to a
// uuid body if the system CSPRNG is unavailable.
func randomSlug() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}
