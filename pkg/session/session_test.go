package session

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pagepilot/pkg/notify"
	"github.com/entrhq/pagepilot/pkg/storage"
	"github.com/entrhq/pagepilot/pkg/types"
)

func TestMain(m *testing.M) {
	// Keep Argon2 cheap in tests.
	argonParams.memory = 64
	os.Exit(m.Run())
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newStore(t *testing.T, kv storage.Store, c *clock) *Store {
	t.Helper()
	s, err := New(t.Context(), kv, Options{Now: c.Now})
	require.NoError(t, err)
	return s
}

func signedUp(t *testing.T, s *Store, email string) *types.User {
	t.Helper()
	u, err := s.SignUp(t.Context(), email, "secret1", "Ada Lovelace")
	require.NoError(t, err)
	return u
}

func TestSignUpThenSignIn(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore(), newClock())
	ctx := t.Context()

	created, err := s.SignUp(ctx, "  Ada@Example.com ", "secret1", " Ada ")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.Equal(t, "Ada", created.Name)
	assert.Equal(t, types.DefaultPlan, created.Plan)
	assert.NotEmpty(t, created.ID)

	current, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, created.ID, current.ID)

	require.NoError(t, s.SignOut(ctx))

	signedIn, err := s.SignIn(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, signedIn.ID)
}

func TestSignIn_WrongPassword(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore(), newClock())
	signedUp(t, s, "ada@example.com")
	require.NoError(t, s.SignOut(t.Context()))

	user, err := s.SignIn(t.Context(), "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, user)

	current, err := s.CurrentUser(t.Context())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestSignIn_UnknownUserAndMissingCredential(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := newStore(t, kv, newClock())

	_, err := s.SignIn(t.Context(), "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	u := signedUp(t, s, "ada@example.com")
	require.NoError(t, kv.Delete(t.Context(), keyCredentialPref+u.ID))

	_, err = s.SignIn(t.Context(), "ada@example.com", "secret1")
	assert.ErrorIs(t, err, ErrCredentialMissing)
}

func TestSignIn_TouchesUpdatedAt(t *testing.T) {
	c := newClock()
	s := newStore(t, storage.NewMemoryStore(), c)
	created := signedUp(t, s, "ada@example.com")

	c.Advance(time.Hour)
	signedIn, err := s.SignIn(t.Context(), "ada@example.com", "secret1")
	require.NoError(t, err)

	assert.True(t, signedIn.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, created.CreatedAt, signedIn.CreatedAt)
}

func TestSignUp_Validation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		userName string
		wantErr  error
	}{
		{"missing email", "", "secret1", "Ada", ErrEmailRequired},
		{"bad email", "ada.example.com", "secret1", "Ada", ErrInvalidEmail},
		{"missing password", "ada@example.com", "", "Ada", ErrPasswordRequired},
		{"short password", "ada@example.com", "12345", "Ada", ErrPasswordTooShort},
		{"short name", "ada@example.com", "secret1", " A ", ErrNameTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := storage.NewMemoryStore()
			s := newStore(t, kv, newClock())

			_, err := s.SignUp(t.Context(), tt.email, tt.password, tt.userName)
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = kv.Get(t.Context(), keyUsers)
			assert.ErrorIs(t, err, storage.ErrNotFound, "validation must happen before storage access")
		})
	}
}

func TestSignIn_Validation(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore(), newClock())

	_, err := s.SignIn(t.Context(), "", "x")
	assert.ErrorIs(t, err, ErrEmailRequired)
	_, err = s.SignIn(t.Context(), "not-an-email", "x")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = s.SignIn(t.Context(), "a@b.co", "")
	assert.ErrorIs(t, err, ErrPasswordRequired)
}

func TestSignUp_DuplicateEmailIsCaseInsensitive(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore(), newClock())
	signedUp(t, s, "ada@example.com")

	_, err := s.SignUp(t.Context(), "ADA@EXAMPLE.COM", "another1", "Other")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignUp_ConcurrentSameEmail(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore(), newClock())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.SignUp(context.Background(), "race@example.com", "secret1", "Racer"); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
}

// flakyStore fails writes to keys with the given prefix a set number of times.
type flakyStore struct {
	storage.Store
	prefix string

	mu       sync.Mutex
	failures int
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) fail(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 && strings.HasPrefix(key, f.prefix) {
		f.failures--
		return true
	}
	return false
}

func (f *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	if f.fail(key) {
		return errDiskFull
	}
	return f.Store.Put(ctx, key, value)
}

func (f *flakyStore) Update(ctx context.Context, key string, fn storage.UpdateFunc) error {
	if f.fail(key) {
		return errDiskFull
	}
	return f.Store.Update(ctx, key, fn)
}

func TestSignUp_CredentialWriteFailureLeavesNoAccount(t *testing.T) {
	kv := &flakyStore{Store: storage.NewMemoryStore(), prefix: keyCredentialPref, failures: 1}
	s := newStore(t, kv, newClock())
	ctx := t.Context()

	_, err := s.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.ErrorIs(t, err, errDiskFull)

	users, err := readList[types.User](ctx, kv, keyUsers, 0)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = s.SignIn(ctx, "ada@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	created, err := s.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err, "retry succeeds")

	require.NoError(t, s.SignOut(ctx))
	signedIn, err := s.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, signedIn.ID)
}

func TestSignUp_UserListFailureRemovesCredential(t *testing.T) {
	kv := &flakyStore{Store: storage.NewMemoryStore(), prefix: keyUsers, failures: 1}
	s := newStore(t, kv, newClock())
	ctx := t.Context()

	_, err := s.SignUp(ctx, "ada@example.com", "secret1", "Ada")
	require.ErrorIs(t, err, errDiskFull)

	creds, err := kv.Keys(ctx, keyCredentialPref)
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestSignUp_LosingDuplicateRemovesItsCredential(t *testing.T) {
	kv := storage.NewMemoryStore()
	s := newStore(t, kv, newClock())
	ctx := t.Context()

	signedUp(t, s, "ada@example.com")
	_, err := s.SignUp(ctx, "ADA@example.com", "secret2", "Ada")
	require.ErrorIs(t, err, ErrEmailTaken)

	creds, err := kv.Keys(ctx, keyCredentialPref)
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestCurrentUser_ValidUntilExpiresAt(t *testing.T) {
	c := newClock()
	c.Advance(900 * time.Millisecond)
	kv := storage.NewMemoryStore()
	s := newStore(t, kv, c)
	signedUp(t, s, "ada@example.com")

	var sess types.Session
	found, err := s.getJSON(t.Context(), keySession, &sess)
	require.NoError(t, err)
	require.True(t, found)

	c.Advance(sess.ExpiresAt.Sub(c.Now()) - 400*time.Millisecond)
	reopened := newStore(t, kv, c)
	u, err := reopened.CurrentUser(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, u, "400ms before expiry")

	c.Advance(400 * time.Millisecond)
	reopened = newStore(t, kv, c)
	u, err = reopened.CurrentUser(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, u, "at expiry")

	c.Advance(time.Millisecond)
	u, err = reopened.CurrentUser(t.Context())
	require.NoError(t, err)
	assert.Nil(t, u, "past expiry")
}

func TestSignOut_ThenNoUser(t *testing.T) {
	s := newStore(t, storage.NewMemoryStore(), newClock())
	signedUp(t, s, "ada@example.com")

	require.NoError(t, s.SignOut(t.Context()))
	require.NoError(t, s.SignOut(t.Context()), "sign-out is unconditional")

	user, err := s.CurrentUser(t.Context())
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestCurrentUser_ExpiredSessionIsCleared(t *testing.T) {
	kv := storage.NewMemoryStore()
	c := newClock()
	s := newStore(t, kv, c)
	signedUp(t, s, "ada@example.com")

	c.Advance(DefaultSessionTTL + time.Minute)

	for i := 0; i < 2; i++ {
		user, err := s.CurrentUser(t.Context())
		require.NoError(t, err)
		assert.Nil(t, user)
	}

	_, err := kv.Get(t.Context(), keySession)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCurrentUser_ColdStartReloadsSession(t *testing.T) {
	kv := storage.NewMemoryStore()
	c := newClock()
	u := signedUp(t, newStore(t, kv, c), "ada@example.com")

	reopened := newStore(t, kv, c)
	current, err := reopened.CurrentUser(t.Context())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, u.ID, current.ID)
}

func TestCurrentUser_ForeignTokenIsCleared(t *testing.T) {
	kv := storage.NewMemoryStore()
	c := newClock()
	signedUp(t, newStore(t, kv, c), "ada@example.com")

	other, err := New(t.Context(), kv, Options{Now: c.Now, TokenSecret: "a-different-secret"})
	require.NoError(t, err)

	current, err := other.CurrentUser(t.Context())
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = kv.Get(t.Context(), keySession)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCustomSessionTTL(t *testing.T) {
	c := newClock()
	s, err := New(t.Context(), storage.NewMemoryStore(), Options{Now: c.Now, SessionTTL: time.Hour})
	require.NoError(t, err)
	signedUp(t, s, "ada@example.com")

	c.Advance(59 * time.Minute)
	u, err := s.CurrentUser(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, u)

	c.Advance(2 * time.Minute)
	u, err = s.CurrentUser(t.Context())
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestSessionChangedEvents(t *testing.T) {
	b := notify.NewBroadcaster(nil)
	defer b.Close()
	ch, _ := b.Subscribe(t.Context())

	s, err := New(t.Context(), storage.NewMemoryStore(), Options{Notifier: b})
	require.NoError(t, err)

	u := signedUp(t, s, "ada@example.com")
	require.NoError(t, s.SignOut(t.Context()))

	in := <-ch
	assert.Equal(t, types.EventTypeSessionChanged, in.Type)
	require.NotNil(t, in.User)
	assert.Equal(t, u.ID, in.User.ID)

	out := <-ch
	assert.Nil(t, out.User)
}

func TestSigningKeyIsPersistedOnce(t *testing.T) {
	kv := storage.NewMemoryStore()

	first, err := loadSigningKey(t.Context(), kv)
	require.NoError(t, err)
	second, err := loadSigningKey(t.Context(), kv)
	require.NoError(t, err)

	assert.Len(t, first, signingKeyLength)
	assert.Equal(t, first, second)
}

func TestTokenClaims(t *testing.T) {
	c := newClock()
	issuer := &tokenIssuer{secret: []byte("k"), now: c.Now}

	a, issued, expires, err := issuer.mint("user-1", time.Hour)
	require.NoError(t, err)
	b, _, _, err := issuer.mint("user-1", time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "tokens carry a random id")
	assert.Equal(t, c.Now(), issued)
	assert.Equal(t, c.Now().Add(time.Hour), expires)

	sub, err := issuer.verify(a)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	c.Advance(2 * time.Hour)
	_, err = issuer.verify(a)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	salt, err := newSalt()
	require.NoError(t, err)
	assert.Len(t, salt, saltLength)

	hash := hashPassword("secret1", salt)
	assert.True(t, verifyPassword("secret1", salt, hash))
	assert.False(t, verifyPassword("secret2", salt, hash))

	other, err := newSalt()
	require.NoError(t, err)
	assert.NotEqual(t, hash, hashPassword("secret1", other))
}
