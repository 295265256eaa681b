package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
)

const (
	flashSessionName = "plainpost_flash"
	flashMaxAge      = 300 // 5m
)

// Flasher keeps one-shot notices in a signed cookie between a redirect and the
// next rendered page. It never holds identity.
type Flasher struct {
	cfg    Config
	store  *sessions.CookieStore
	logger logrus.FieldLogger
}

func NewFlasher(cfg Config, logger logrus.FieldLogger) *Flasher {
	if logger == nil {
		logger = discardLogger()
	}
	return &Flasher{cfg: cfg, store: sessions.NewCookieStore([]byte(cfg.SessionKey)), logger: logger}
}

// Add queues a notice for the next rendered page.
func (f *Flasher) Add(c *gin.Context, msg string) {
	session, err := f.store.Get(c.Request, flashSessionName)
	if err != nil {
		// A tampered or stale cookie just starts a fresh session.
		f.logger.WithError(err).Debug("flash cookie discarded")
	}
	session.AddFlash(msg)
	f.save(c, session)
}

// Pop returns and clears the queued notices.
func (f *Flasher) Pop(c *gin.Context) []string {
	if _, err := c.Cookie(flashSessionName); err != nil {
		return nil
	}
	session, err := f.store.Get(c.Request, flashSessionName)
	if err != nil {
		f.logger.WithError(err).Debug("flash cookie discarded")
		return nil
	}
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	f.save(c, session)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (f *Flasher) save(c *gin.Context, session *sessions.Session) {
	applyFlashOptions(f.cfg, session)
	if err := session.Save(c.Request, c.Writer); err != nil {
		f.logger.WithError(err).Warn("failed to persist flash cookie")
	}
}

func applyFlashOptions(cfg Config, session *sessions.Session) {
	if session.Options == nil {
		session.Options = &sessions.Options{}
	}
	session.Options.Path = "/"
	session.Options.MaxAge = flashMaxAge
	session.Options.HttpOnly = true
	session.Options.Secure = cfg.CookieSecure
	session.Options.SameSite = http.SameSiteStrictMode
}
