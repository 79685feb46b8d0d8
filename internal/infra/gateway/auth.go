package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/dwellspace/dwell"
	"github.com/dwellspace/dwell/client"
	"github.com/dwellspace/dwell/internal/domain"
)

// AuthGateway resolves tokens against the external auth provider and exposes
// its session lifecycle stream. Tokens are verified locally (HS256 shared
// secret); claims missing an email fall back to the userinfo endpoint.
type AuthGateway struct {
	secret  string
	channel string
	client  *client.Client
	rdb     *redis.Client
}

func NewAuthGateway(secret string, channel string, cl *client.Client, rdb *redis.Client) *AuthGateway {
	return &AuthGateway{
		secret:  secret,
		channel: channel,
		client:  cl,
		rdb:     rdb,
	}
}

// Resolve verifies the token and returns the identity behind it. An empty
// token resolves to nil identity (anonymous), not an error.
func (g *AuthGateway) Resolve(ctx context.Context, token string) (*domain.SessionIdentity, error) {

	if token == "" {
		return nil, nil
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(g.secret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "jwt validation failed")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token payload")
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return nil, fmt.Errorf("token missing subject")
	}

	email, _ := claims["email"].(string)
	if email == "" {
		info, err := g.client.GetUserInfo(ctx, token)
		if err != nil {
			return nil, errors.Wrap(err, "userinfo fallback failed")
		}
		email = info.Email
		if info.UserID != "" && info.UserID != userID {
			return nil, fmt.Errorf("userinfo subject mismatch")
		}
	}

	return &domain.SessionIdentity{UserID: userID, Email: email}, nil
}

// sessionEventBody is the payload the auth provider publishes on the
// session channel.
type sessionEventBody struct {
	State  string `json:"state"` // signed-in, signed-out, refreshed
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// Session binds the gateway to one client's token, yielding the provider
// contract the session tracker consumes.
func (g *AuthGateway) Session(token string) *TokenSession {
	return &TokenSession{gateway: g, token: token}
}

// TokenSession is an AuthGateway scoped to a single access token. userID is
// written by both the eager check and the pubsub goroutine, so it is guarded.
type TokenSession struct {
	gateway *AuthGateway
	token   string

	mu     sync.Mutex
	userID string
}

// GetCurrentSession performs the one-shot session check.
func (s *TokenSession) GetCurrentSession(ctx context.Context) (*domain.SessionIdentity, error) {
	identity, err := s.gateway.Resolve(ctx, s.token)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		s.mu.Lock()
		s.userID = identity.UserID
		s.mu.Unlock()
	}
	return identity, nil
}

// OnSessionChange subscribes to the provider's session stream and invokes cb
// with the new identity (nil on sign-out) for events concerning this
// session's user. The returned disposer releases the subscription; it must
// be called when the owning scope ends.
func (s *TokenSession) OnSessionChange(cb func(*domain.SessionIdentity)) (func(), error) {

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := s.gateway.rdb.Subscribe(ctx, s.gateway.channel)

	go func() {
		for msg := range pubsub.Channel() {
			var event dwell.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			if event.Type != dwell.EventSessionChanged {
				continue
			}

			var body sessionEventBody
			if err := json.Unmarshal(event.Body, &body); err != nil {
				continue
			}
			s.mu.Lock()
			known := s.userID
			s.mu.Unlock()
			if known != "" && body.UserID != known {
				continue
			}

			switch body.State {
			case "signed-out":
				cb(nil)
			case "signed-in", "refreshed":
				s.mu.Lock()
				s.userID = body.UserID
				s.mu.Unlock()
				cb(&domain.SessionIdentity{UserID: body.UserID, Email: body.Email})
			}
		}
	}()

	dispose := func() {
		cancel()
		pubsub.Close()
	}
	return dispose, nil
}
