// Package identity owns the local user's display name.
package identity

import (
	"errors"
	"fmt"
	"html"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
)

// Key is the store key holding the last chosen display name.
const Key = "chatUsername"

var ErrBlankName = errors.New("blank display name")

// Names never carry markup.
var namePolicy = bluemonday.StrictPolicy()

// Identity is the local user. It is not safe for concurrent use; the session
// controller serialises access.
type Identity struct {
	store Store
	name  string
}

// GuestName returns "Guest" followed by a random integer in [0, 999].
func GuestName() string {
	return "Guest" + strconv.Itoa(rand.IntN(1000))
}

// Load reads the persisted name once. If none is stored, guest supplies a
// fallback (GuestName when nil). The fallback is not persisted.
func Load(store Store, guest func() string) (*Identity, error) {
	if guest == nil {
		guest = GuestName
	}
	name, ok, err := store.Get(Key)
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if !ok || strings.TrimSpace(name) == "" {
		name = guest()
		log.Debug().Str("name", name).Msg("[identity] no saved name; using guest")
	}
	return &Identity{store: store, name: name}, nil
}

// Name returns the current display name.
func (id *Identity) Name() string {
	return id.name
}

// Rename cleans name and makes it current. The in-memory name changes even
// when persisting fails; that error is returned wrapped.
func (id *Identity) Rename(name string) (string, error) {
	clean := Sanitize(name)
	if clean == "" {
		return "", ErrBlankName
	}
	id.name = clean
	if err := id.store.Set(Key, clean); err != nil {
		return clean, fmt.Errorf("persist identity: %w", err)
	}
	return clean, nil
}

// Sanitize strips HTML markup and surrounding whitespace from a display name.
func Sanitize(name string) string {
	stripped := namePolicy.Sanitize(html.UnescapeString(name))
	return strings.TrimSpace(html.UnescapeString(stripped))
}
