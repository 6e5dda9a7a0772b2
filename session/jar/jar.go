// Package jar is the client's cookie jar. The backend's session cookie is the
// credential of a signed in user, so the jar can be backed by storage to keep
// it across runs, the way a browser keeps its cookies.
package jar

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/byuoitav/functions"
	"github.com/byuoitav/functions/log"
)

// storageKey is where the jar keeps its cookies. The jar is meant to get a
// storage of its own, apart from the session's.
const storageKey = "cookies"

type entry struct {
	URL   string `json:"url"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Jar is an http.CookieJar that can be emptied and, when it has storage,
// survives the process
type Jar struct {
	storage functions.Storage

	inner *cookiejar.Jar
	urls  map[string]*url.URL
	mu    sync.RWMutex
}

// New returns a Jar. A nil storage keeps cookies in memory only; otherwise
// the cookies saved in storage are restored.
func New(storage functions.Storage) (*Jar, error) {
	j := &Jar{storage: storage}
	j.reset()

	if storage == nil {
		return j, nil
	}

	raw, err := storage.Get(storageKey)
	switch {
	case errors.Is(err, functions.ErrKeyDoesNotExist):
		return j, nil
	case err != nil:
		return nil, fmt.Errorf("unable to read cookies: %w", err)
	}

	var entries []entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.L.Warnf("ignoring unreadable cookie storage: %s", err)
		return j, nil
	}

	for _, e := range entries {
		u, err := url.Parse(e.URL)
		if err != nil {
			continue
		}

		j.inner.SetCookies(u, []*http.Cookie{{Name: e.Name, Value: e.Value, Path: "/"}})
		j.urls[u.String()] = u
	}

	return j, nil
}

// SetCookies implements http.CookieJar
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)

	origin := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	j.urls[origin.String()] = origin

	if err := j.save(); err != nil {
		log.L.Warnf("unable to save cookies: %s", err)
	}
}

// Cookies implements http.CookieJar
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.inner.Cookies(u)
}

// Reset forgets every cookie, in memory and in storage
func (j *Jar) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.reset()
	if j.storage == nil {
		return nil
	}

	if err := j.storage.Drop(storageKey); err != nil {
		return fmt.Errorf("unable to drop cookies: %w", err)
	}

	return nil
}

func (j *Jar) reset() {
	// cookiejar.New never fails without options
	j.inner, _ = cookiejar.New(nil)
	j.urls = make(map[string]*url.URL)
}

// save writes the cookies the jar would send to each origin it has seen.
// Callers must hold j.mu.
func (j *Jar) save() error {
	if j.storage == nil {
		return nil
	}

	var entries []entry
	for key, u := range j.urls {
		for _, c := range j.inner.Cookies(u) {
			entries = append(entries, entry{URL: key, Name: c.Name, Value: c.Value})
		}
	}

	if len(entries) == 0 {
		return j.storage.Drop(storageKey)
	}

	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	return j.storage.Set(storageKey, string(b))
}
