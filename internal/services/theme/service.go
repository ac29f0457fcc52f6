package theme

import (
	"context"
	"fmt"
	"strconv"

	"cybergrid/internal/ports"
)

// Key is the single storage key for the dark-mode flag. Values are the
// literal strings "true" and "false".
const Key = "darkMode"

type Service struct{}

func New() *Service { return &Service{} }

// Load reads the persisted flag. Anything other than "true" is light mode.
func (s *Service) Load(ctx context.Context, store ports.KeyValueStore) (bool, error) {
	v, found, err := store.Get(ctx, Key)
	if err != nil {
		return false, fmt.Errorf("load theme: %w", err)
	}
	return found && v == "true", nil
}

// Toggle flips current, persists the new value and returns it.
func (s *Service) Toggle(ctx context.Context, store ports.KeyValueStore, current bool) (bool, error) {
	next := !current
	if err := store.Set(ctx, Key, strconv.FormatBool(next)); err != nil {
		return current, fmt.Errorf("save theme: %w", err)
	}
	return next, nil
}

// WidgetTheme is the theme parameter handed to the challenge widget.
func WidgetTheme(dark bool) string {
	if dark {
		return "dark"
	}
	return "light"
}
