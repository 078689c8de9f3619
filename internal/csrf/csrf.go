// Package csrf issues and checks CSRF tokens using a signed double-submit
// cookie: the cookie carries a random per-client secret, the token is the
// HMAC of that secret under a server key. Nothing is stored server side.
package csrf

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/nadi-go/internal/cryptoutil"
	"github.com/keithlinneman/nadi-go/internal/xerrors"
)

const (
	DefaultCookieName = "csrftoken"
	HeaderName        = "X-CSRF-Token"

	secretBytes = 32
	minKeyBytes = 16
)

var ErrInvalidToken = errors.New("csrf token missing or invalid")

type Options struct {
	// Key signs tokens. When empty a random key is generated, which only
	// works for a single instance.
	Key        []byte
	CookieName string // default: "csrftoken"
	CookiePath string // default: "/"
	Secure     bool
	MaxAge     time.Duration // default: one year
	// OnReject runs for every request Protect turns away.
	OnReject func(r *http.Request)
}

type Provider struct {
	key      []byte
	cookie   http.Cookie
	onReject func(r *http.Request)
}

func New(opts Options) (*Provider, error) {
	key := opts.Key
	if len(key) == 0 {
		key = make([]byte, secretBytes)
		if _, err := rand.Read(key); err != nil {
			return nil, xerrors.Wrap(err, "generate csrf key")
		}
	}
	if len(key) < minKeyBytes {
		return nil, xerrors.Newf("csrf key must be at least %d bytes (got %d)", minKeyBytes, len(key))
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.CookiePath == "" {
		opts.CookiePath = "/"
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 365 * 24 * time.Hour
	}
	return &Provider{
		key:      key,
		onReject: opts.OnReject,
		cookie: http.Cookie{
			Name:   opts.CookieName,
			Path:   opts.CookiePath,
			MaxAge: int(opts.MaxAge.Seconds()),
			Secure: opts.Secure,
			// the client reads the token from X-CSRF-Token, not the cookie
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
	}, nil
}

// Token returns the client's token, setting the secret cookie on w when
// the request did not carry a usable one.
func (p *Provider) Token(w http.ResponseWriter, r *http.Request) string {
	secret := p.secret(r)
	if secret == "" {
		var err error
		secret, err = newSecret()
		if err != nil {
			return ""
		}
		c := p.cookie
		c.Value = secret
		http.SetCookie(w, &c)
	}
	return p.sign(secret)
}

// Verify checks the X-CSRF-Token header against the secret cookie.
func (p *Provider) Verify(r *http.Request) error {
	secret := p.secret(r)
	token := strings.TrimSpace(r.Header.Get(HeaderName))
	if secret == "" || token == "" {
		return ErrInvalidToken
	}
	if !cryptoutil.HashEqual(p.sign(secret), token) {
		return ErrInvalidToken
	}
	return nil
}

// Protect rejects unsafe methods that fail Verify with 403.
func (p *Provider) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		if err := p.Verify(r); err != nil {
			if p.onReject != nil {
				p.onReject(r)
			}
			w.Header().Set("Cache-Control", "no-store")
			http.Error(w, "forbidden: csrf token missing or invalid", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Provider) secret(r *http.Request) string {
	c, err := r.Cookie(p.cookie.Name)
	if err != nil {
		return ""
	}
	if len(c.Value) != 2*secretBytes {
		return ""
	}
	if _, err := hex.DecodeString(c.Value); err != nil {
		return ""
	}
	return c.Value
}

func (p *Provider) sign(secret string) string {
	return cryptoutil.HMACSHA256Hex(p.key, []byte(secret))
}

func newSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SSMAPI is the subset of the SSM client used to fetch the signing key.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// KeyFromSSM reads the signing key from a SecureString parameter so every
// instance behind the load balancer signs with the same key.
func KeyFromSSM(ctx context.Context, client SSMAPI, name string) ([]byte, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "get SSM parameter %s", name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, xerrors.Newf("SSM parameter %s has no value", name)
	}
	key := strings.TrimSpace(*out.Parameter.Value)
	if key == "" {
		return nil, xerrors.Newf("SSM parameter %s is empty", name)
	}
	return []byte(key), nil
}
