package navigation

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	PathLogin = "/login"
	PathLobby = "/lobby"
)

// Location is the path the page currently shows.
type Location struct {
	mu   sync.RWMutex
	path string
}

func NewLocation(initial string) *Location {
	if initial == "" {
		initial = PathLobby
	}
	return &Location{path: initial}
}

func (l *Location) Path() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.path
}

func (l *Location) Navigate(path string) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	l.mu.Lock()
	prev := l.path
	l.path = path
	l.mu.Unlock()
	if prev != path {
		log.Debug().Str("from", prev).Str("to", path).Msg("navigate")
	}
}

// NavigateLogin moves to the login page unless already there.
func (l *Location) NavigateLogin() error {
	if l.Path() == PathLogin {
		return nil
	}
	l.Navigate(PathLogin)
	return nil
}

func GamePath(slug string) string {
	return "/slot-games/" + slug
}
