// Package uuid generates the identifiers folio hands out: time-ordered v7
// ids for requests and name-based ids for terminal sessions.
package uuid

import (
	"fmt"

	guuid "github.com/google/uuid"
)

// UUID is a 16-byte RFC 9562 identifier.
type UUID = guuid.UUID

// sessionNamespace scopes name-based session ids to folio.
var sessionNamespace = guuid.MustParse("6f1c1d0e-5b7a-4f43-9d54-2a7e8c0b9f31")

// NewV7 generates a new UUID v7.
// UUID v7 is sortable by timestamp: 48 bits of UNIX milliseconds, then random bits.
// If the clock source fails it falls back to a random v4.
func NewV7() UUID {
	u, err := guuid.NewV7()
	if err != nil {
		return guuid.New()
	}
	return u
}

// ForShell derives a stable session id from the parent shell's process id and
// the terminal it runs on, so each shell window keeps its own conversation.
func ForShell(ppid int, tty string) UUID {
	return guuid.NewSHA1(sessionNamespace, []byte(fmt.Sprintf("%d|%s", ppid, tty)))
}

// Parse validates an id supplied on the command line.
func Parse(s string) (UUID, error) {
	u, err := guuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("uuid: parse %q: %w", s, err)
	}
	return u, nil
}
