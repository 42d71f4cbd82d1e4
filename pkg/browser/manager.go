package browser

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/pagepilot/pkg/logging"
)

// Defaults for new sessions.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultMaxSessions    = 5
	DefaultIdleTimeout    = 5 * time.Minute
)

var (
	// ErrNotInitialized is returned when a session is started before Initialize.
	ErrNotInitialized = errors.New("browser: session manager not initialized")

	// ErrSessionNotFound is returned for an unknown session name.
	ErrSessionNotFound = errors.New("browser: session not found")
)

// SessionOptions configures a new browser session.
type SessionOptions struct {
	Headless bool

	// Viewport defaults to 1280x720.
	Viewport *Viewport

	// Timeout is the default for page operations. Zero selects DefaultTimeout.
	Timeout time.Duration
}

// Viewport is the browser viewport size in pixels.
type Viewport struct {
	Width  int
	Height int
}

// SessionInfo describes a session without exposing its Playwright handles.
type SessionInfo struct {
	Name       string    `json:"name"`
	CurrentURL string    `json:"currentUrl"`
	Headless   bool      `json:"headless"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

// SessionManager owns the Playwright driver and all named sessions.
type SessionManager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	playwright  *playwright.Playwright
	maxSessions int
	idleTimeout time.Duration
	initialized bool
	logger      *logging.Logger
	now         func() time.Time
}

// NewSessionManager creates a manager. Call Initialize before starting sessions.
func NewSessionManager(logger *logging.Logger) *SessionManager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SessionManager{
		sessions:    make(map[string]*Session),
		maxSessions: DefaultMaxSessions,
		idleTimeout: DefaultIdleTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// Initialize installs the Playwright driver and browsers if needed and starts
// the driver. Driver output is discarded: stdout may be a message channel.
func (m *SessionManager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	m.logger.Infof("playwright driver started")
	return nil
}

// StartSession launches Chromium with a fresh context and page under name.
func (m *SessionManager) StartSession(name string, opts SessionOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkCapacity(name); err != nil {
		return nil, err
	}
	if !m.initialized {
		return nil, ErrNotInitialized
	}

	if opts.Viewport == nil {
		opts.Viewport = &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	browser, err := m.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: opts.Viewport.Width, Height: opts.Viewport.Height},
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	pg.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	s := newSession(name, opts.Headless, m.now)
	s.Browser = browser
	s.Context = bctx
	s.Page = pg

	m.sessions[name] = s
	m.logger.Infof("started session %q (headless=%t)", name, opts.Headless)
	return s, nil
}

// checkCapacity reports whether a session called name may be added.
// The caller holds m.mu.
func (m *SessionManager) checkCapacity(name string) error {
	if _, exists := m.sessions[name]; exists {
		return fmt.Errorf("browser: session %q already exists", name)
	}
	if len(m.sessions) >= m.maxSessions {
		return fmt.Errorf("browser: maximum number of sessions (%d) reached", m.maxSessions)
	}
	return nil
}

// GetSession returns the live session called name.
func (m *SessionManager) GetSession(name string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	return s, nil
}

// CloseSession closes and forgets the session called name.
func (m *SessionManager) CloseSession(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	delete(m.sessions, name)
	m.logger.Infof("closed session %q", name)
	return s.close()
}

// ListSessions describes all sessions, ordered by name.
func (m *SessionManager) ListSessions() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// HasSessions reports whether any session is open.
func (m *SessionManager) HasSessions() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions) > 0
}

// CleanupIdleSessions closes sessions unused for longer than the idle timeout.
func (m *SessionManager) CleanupIdleSessions() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	return m.closeLocked(func(s *Session) bool {
		return now.Sub(s.lastUsed()) > m.idleTimeout
	})
}

func (m *SessionManager) closeLocked(match func(*Session) bool) error {
	var errs []error
	for name, s := range m.sessions {
		if !match(s) {
			continue
		}
		delete(m.sessions, name)
		if err := s.close(); err != nil {
			errs = append(errs, err)
		}
		m.logger.Debugf("closed session %q", name)
	}
	return errors.Join(errs...)
}

// Shutdown closes all sessions and stops the driver.
func (m *SessionManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.closeLocked(func(*Session) bool { return true })

	if m.initialized && m.playwright != nil {
		if stopErr := m.playwright.Stop(); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to stop playwright: %w", stopErr))
		}
		m.initialized = false
		m.playwright = nil
	}
	return err
}

// SetMaxSessions sets the maximum number of concurrent sessions.
func (m *SessionManager) SetMaxSessions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.maxSessions = n
	}
}

// SetIdleTimeout sets how long a session may go unused before cleanup.
func (m *SessionManager) SetIdleTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.idleTimeout = d
	}
}
