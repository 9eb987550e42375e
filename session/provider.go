// Package session owns account registration, credential checks and the
// signed tokens handed to the dashboards. Every sign-in and sign-out is
// published on a change stream so long-lived views can follow it.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/swachhsnap-api/databases"
	"github.com/linesmerrill/swachhsnap-api/models"
)

// MinPasswordLength is the shortest password Register accepts
const MinPasswordLength = 6

var (
	// ErrDuplicateEmail is returned when registering an email that already has an account
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidProfile is returned when registration input is incomplete
	ErrInvalidProfile = errors.New("invalid registration")
	// ErrInvalidToken is returned when a token is malformed, expired or signed with another key
	ErrInvalidToken = errors.New("invalid session token")
)

// Profile is the public part of a new account
type Profile struct {
	Name string
	Role models.Role
}

// Claims are carried inside every session token
type Claims struct {
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Session is the result of a successful sign-in
type Session struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Change is one entry on the session stream. User is nil on sign-out.
type Change struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type subscriber struct {
	ch   chan Change
	done chan struct{}
	once sync.Once
}

// Provider registers and authenticates users against the users collection
type Provider struct {
	DB     databases.UserDatabase
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// NewProvider returns a provider signing tokens with secret, valid for ttl
func NewProvider(db databases.UserDatabase, secret string, ttl time.Duration) (*Provider, error) {
	if secret == "" {
		return nil, errors.New("session: signing secret is empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session: token ttl must be positive, got %s", ttl)
	}
	return &Provider{
		DB:     db,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		subs:   make(map[*subscriber]struct{}),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and returns its id
func (p *Provider) Register(ctx context.Context, email, password string, profile Profile) (string, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: email %q", ErrInvalidProfile, email)
	}
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidProfile, MinPasswordLength)
	}
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if !profile.Role.Valid() {
		return "", fmt.Errorf("%w: role %q", ErrInvalidProfile, profile.Role)
	}

	_, err := p.DB.FindOne(ctx, bson.M{"email": email})
	switch {
	case err == nil:
		return "", ErrDuplicateEmail
	case !errors.Is(err, databases.ErrNotFound):
		return "", fmt.Errorf("failed to look up email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Email:     email,
		Password:  string(hash),
		Role:      profile.Role,
		CreatedAt: p.now().UTC(),
	}
	if _, err := p.DB.InsertOne(ctx, user); err != nil {
		// the unique index catches two registrations racing past the lookup
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicateEmail
		}
		return "", fmt.Errorf("failed to insert user: %w", err)
	}

	zap.S().Infow("registered user", "userId", user.ID.Hex(), "role", user.Role)
	return user.ID.Hex(), nil
}

// Check verifies the credentials without starting a session
func (p *Provider) Check(ctx context.Context, email, password string) (*models.User, error) {
	user, err := p.DB.FindOne(ctx, bson.M{"email": normalizeEmail(email)})
	if err != nil {
		if errors.Is(err, databases.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	u := *user
	u.Password = ""
	return &u, nil
}

// Authenticate checks the credentials and issues a session token
func (p *Provider) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	user, err := p.Check(ctx, email, password)
	if err != nil {
		return nil, err
	}

	now := p.now()
	expires := now.Add(p.ttl)
	claims := Claims{
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s := &Session{Token: signed, User: *user, ExpiresAt: expires}
	p.publish(Change{User: &s.User, Token: signed, ExpiresAt: expires})
	return s, nil
}

// User loads an account by id without its password hash
func (p *Provider) User(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: bad user id %q", databases.ErrNotFound, id)
	}
	user, err := p.DB.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, err
	}
	u := *user
	u.Password = ""
	return &u, nil
}

// Verify parses a token and returns its claims
func (p *Provider) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.Role.Valid() || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject or role", ErrInvalidToken)
	}
	return claims, nil
}

// SignOut ends the session behind token
func (p *Provider) SignOut(token string) error {
	claims, err := p.Verify(token)
	if err != nil {
		return err
	}
	p.publish(Change{Token: token, ExpiresAt: claims.ExpiresAt.Time})
	return nil
}

// Changes subscribes to sign-in and sign-out events. The returned func
// unsubscribes; the channel is never closed.
func (p *Provider) Changes() (<-chan Change, func()) {
	s := &subscriber{ch: make(chan Change, 16), done: make(chan struct{})}
	p.mu.Lock()
	p.subs[s] = struct{}{}
	p.mu.Unlock()

	return s.ch, func() {
		s.once.Do(func() {
			p.mu.Lock()
			delete(p.subs, s)
			p.mu.Unlock()
			close(s.done)
		})
	}
}

func (p *Provider) publish(c Change) {
	p.mu.Lock()
	subs := make([]*subscriber, 0, len(p.subs))
	for s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- c:
		case <-s.done:
		}
	}
}

// EnsureAdmin registers the bootstrap admin unless the email is already taken
func (p *Provider) EnsureAdmin(ctx context.Context, email, password, name string) (bool, error) {
	_, err := p.Register(ctx, email, password, Profile{Name: name, Role: models.RoleAdmin})
	if errors.Is(err, ErrDuplicateEmail) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
