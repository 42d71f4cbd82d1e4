package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/entrhq/pagepilot/pkg/types"
)

const (
	minPasswordLength = 6
	minNameLength     = 2
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func validateSignUp(email, password, name string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return ErrPasswordRequired
	}
	if len([]rune(password)) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len([]rune(strings.TrimSpace(name))) < minNameLength {
		return ErrNameTooShort
	}
	return nil
}

// SignUp registers a new account and signs it in.
func (s *Store) SignUp(ctx context.Context, email, password, name string) (*types.User, error) {
	email = normalizeEmail(email)
	if err := validateSignUp(email, password, name); err != nil {
		return nil, err
	}

	salt, err := newSalt()
	if err != nil {
		return nil, err
	}
	hash := hashPassword(password, salt)

	now := s.now()
	user := types.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Plan:      types.DefaultPlan,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The credential goes first so a listed user always has one.
	cred := types.Credential{
		UserID:       user.ID,
		PasswordHash: hash,
		Salt:         salt,
		CreatedAt:    now,
	}
	credKey := keyCredentialPref + user.ID
	if err := s.putJSON(ctx, credKey, cred); err != nil {
		return nil, err
	}

	err = updateList(ctx, s.kv, keyUsers, func(users []types.User) ([]types.User, error) {
		for _, u := range users {
			if u.Email == email {
				return nil, ErrEmailTaken
			}
		}
		return append(users, user), nil
	})
	if err != nil {
		if delErr := s.kv.Delete(ctx, credKey); delErr != nil {
			s.logger.Warnf("failed to remove orphaned credential %s: %v", user.ID, delErr)
		}
		return nil, err
	}

	if err := s.startSession(ctx, &user); err != nil {
		return nil, err
	}

	s.logger.Infof("user %s signed up", user.ID)
	return &user, nil
}

// SignIn authenticates an existing account and replaces the active session.
func (s *Store) SignIn(ctx context.Context, email, password string) (*types.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	user, err := s.findUser(ctx, func(u types.User) bool { return u.Email == email })
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	var cred types.Credential
	found, err := s.getJSON(ctx, keyCredentialPref+user.ID, &cred)
	if err != nil {
		return nil, err
	}
	if !found {
		s.logger.Warnf("user %s has no credential record", user.ID)
		return nil, ErrCredentialMissing
	}

	if !verifyPassword(password, cred.Salt, cred.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	touched, err := s.touchUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.startSession(ctx, touched); err != nil {
		return nil, err
	}

	s.logger.Infof("user %s signed in", user.ID)
	return touched, nil
}

// SignOut clears the active session, whether or not one exists.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.session = nil
	s.user = nil
	s.loaded = true
	err := s.kv.Delete(ctx, keySession)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	s.publish(ctx, nil)
	return nil
}

// CurrentUser returns the signed-in user, or nil when signed out. An expired
// or unverifiable session is cleared as a side effect.
func (s *Store) CurrentUser(ctx context.Context) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		var stored types.Session
		found, err := s.getJSON(ctx, keySession, &stored)
		if err != nil {
			return nil, err
		}
		s.loaded = true
		if found {
			s.session = &stored
		}
	}

	if s.session == nil {
		return nil, nil
	}

	if reason := s.invalidReason(s.session); reason != "" {
		s.logger.Infof("clearing session of user %s: %s", s.session.UserID, reason)
		return nil, s.clearLocked(ctx)
	}

	if s.user == nil {
		user, err := s.findUser(ctx, func(u types.User) bool { return u.ID == s.session.UserID })
		if err != nil {
			return nil, err
		}
		if user == nil {
			s.logger.Warnf("clearing session of unknown user %s", s.session.UserID)
			return nil, s.clearLocked(ctx)
		}
		s.user = user
	}

	u := *s.user
	return &u, nil
}

// requireUser returns the signed-in user or ErrNotAuthenticated.
func (s *Store) requireUser(ctx context.Context) (*types.User, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

// invalidReason explains why sess can no longer be used, or returns "".
func (s *Store) invalidReason(sess *types.Session) string {
	if sess.Expired(s.now()) {
		return "expired"
	}
	sub, err := s.tokens.verify(sess.Token)
	if err != nil {
		return err.Error()
	}
	if sub != sess.UserID {
		return "token subject mismatch"
	}
	return ""
}

// clearLocked drops the session. Callers hold s.mu.
func (s *Store) clearLocked(ctx context.Context) error {
	s.session = nil
	s.user = nil
	if err := s.kv.Delete(ctx, keySession); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// startSession mints a token for user and makes it the active session.
func (s *Store) startSession(ctx context.Context, user *types.User) error {
	token, issued, expires, err := s.tokens.mint(user.ID, s.ttl)
	if err != nil {
		return err
	}
	sess := &types.Session{
		UserID:    user.ID,
		Token:     token,
		IssuedAt:  issued,
		ExpiresAt: expires,
	}

	s.mu.Lock()
	if err := s.putJSON(ctx, keySession, sess); err != nil {
		s.mu.Unlock()
		return err
	}
	u := *user
	s.session = sess
	s.user = &u
	s.loaded = true
	s.mu.Unlock()

	s.publish(ctx, &u)
	return nil
}

// findUser returns the first user matching match, or nil.
func (s *Store) findUser(ctx context.Context, match func(types.User) bool) (*types.User, error) {
	users, err := readList[types.User](ctx, s.kv, keyUsers, 0)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if match(users[i]) {
			return &users[i], nil
		}
	}
	return nil, nil
}

// touchUser bumps the user's updatedAt and returns the updated record.
func (s *Store) touchUser(ctx context.Context, userID string) (*types.User, error) {
	var touched *types.User
	err := updateList(ctx, s.kv, keyUsers, func(users []types.User) ([]types.User, error) {
		for i := range users {
			if users[i].ID == userID {
				users[i].UpdatedAt = s.now()
				u := users[i]
				touched = &u
				return users, nil
			}
		}
		return nil, errUserVanished
	})
	if err != nil {
		if errors.Is(err, errUserVanished) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return touched, nil
}

var errUserVanished = errors.New("user removed during sign-in")
