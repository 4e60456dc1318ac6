package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	CookieName string
	SecretKey  string
	TTL        time.Duration
	Secure     bool
}

// Manager ties sessions in a Store to the signed cookie that references
// them. Every change is written through immediately, before the response
// body, so the cookie header is never late.
type Manager struct {
	store  Store
	codec  *CookieCodec
	cookie string
	ttl    time.Duration
	secure bool
	log    *zap.Logger
	now    func() time.Time
}

func NewManager(store Store, opts Options, log *zap.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{
		store:  store,
		codec:  NewCookieCodec(opts.SecretKey),
		cookie: opts.CookieName,
		ttl:    opts.TTL,
		secure: opts.Secure,
		log:    log,
		now:    time.Now,
	}
}

func (m *Manager) Store() Store {
	return m.store
}

// Load returns the session referenced by the request cookie, or a fresh
// anonymous one that is only stored once something is written to it.
func (m *Manager) Load(ctx context.Context, r *http.Request) *Session {
	cookie, err := r.Cookie(m.cookie)
	if err != nil || cookie.Value == "" {
		return m.anonymous()
	}

	id, err := m.codec.Decode(cookie.Value)
	if err != nil {
		m.log.Debug("rejected session cookie", zap.Error(err))
		return m.anonymous()
	}

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			m.log.Warn("session store read failed", zap.String("store", m.store.Name()), zap.Error(err))
		}
		return m.anonymous()
	}
	return sess
}

// Start signs userID in. The session id is rotated and pending flashes are
// kept.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, sess *Session, userID uint, username string) error {
	if sess.persisted {
		if err := m.store.Delete(ctx, sess.ID); err != nil {
			m.log.Warn("failed to drop previous session", zap.Error(err))
		}
	}

	fresh := m.anonymous()
	sess.ID = fresh.ID
	sess.CreatedAt = fresh.CreatedAt
	sess.ExpiresAt = fresh.ExpiresAt
	sess.UserID = userID
	sess.Username = username
	sess.persisted = false

	if store, ok := m.store.(*DBStore); ok {
		if n, err := store.DeleteExpired(ctx); err == nil && n > 0 {
			m.log.Debug("expired sessions removed", zap.Int64("count", n))
		}
	}
	return m.save(ctx, w, sess)
}

// End clears all session state and expires the cookie. sess is reset to an
// unsaved anonymous session so later flashes still work.
func (m *Manager) End(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	var err error
	if sess.persisted {
		err = m.store.Delete(ctx, sess.ID)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	*sess = *m.anonymous()
	return err
}

func (m *Manager) AddFlash(ctx context.Context, w http.ResponseWriter, sess *Session, kind FlashKind, message string) error {
	sess.Flashes = append(sess.Flashes, Flash{Kind: kind, Message: message})
	return m.save(ctx, w, sess)
}

// Flashes removes and returns the pending notifications.
func (m *Manager) Flashes(ctx context.Context, sess *Session) ([]Flash, error) {
	if len(sess.Flashes) == 0 {
		return nil, nil
	}
	flashes := sess.Flashes
	sess.Flashes = nil
	if !sess.persisted {
		return flashes, nil
	}
	return flashes, m.store.Save(ctx, sess)
}

func (m *Manager) anonymous() *Session {
	id, err := newID()
	if err != nil {
		// only fails when crypto/rand does
		panic(err)
	}
	now := m.now()
	return &Session{ID: id, CreatedAt: now, ExpiresAt: now.Add(m.ttl)}
}

func (m *Manager) save(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if err := m.store.Save(ctx, sess); err != nil {
		return err
	}

	if !sess.persisted {
		value, err := m.codec.Encode(sess.ID, sess.ExpiresAt)
		if err != nil {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookie,
			Value:    value,
			Path:     "/",
			Expires:  sess.ExpiresAt,
			MaxAge:   int(sess.ExpiresAt.Sub(m.now()).Seconds()),
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	sess.persisted = true
	return nil
}
