package emulator

import (
	"errors"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

// ErrInvalidToken is returned for any token that does not verify.
var ErrInvalidToken = errors.New("emulator: invalid token")

// tokenIssuer signs PASETO v4.public id tokens.
type tokenIssuer struct {
	issuer string
	ttl    time.Duration
	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

func newTokenIssuer(issuer string, ttl time.Duration, secretHex string) (*tokenIssuer, error) {
	var (
		secret paseto.V4AsymmetricSecretKey
		err    error
	)
	if secretHex == "" {
		secret = paseto.NewV4AsymmetricSecretKey()
	} else if secret, err = paseto.NewV4AsymmetricSecretKeyFromHex(secretHex); err != nil {
		return nil, ErrConfig
	}
	return &tokenIssuer{issuer: issuer, ttl: ttl, secret: secret, public: secret.Public()}, nil
}

func (t *tokenIssuer) issue(localID, email string, now time.Time) string {
	tok := paseto.NewToken()
	tok.SetIssuer(t.issuer)
	tok.SetSubject(localID)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(t.ttl))
	_ = tok.Set("email", email)

	return tok.V4Sign(t.secret, nil)
}

// verify returns the localId the token was issued to.
func (t *tokenIssuer) verify(token string, now time.Time) (string, error) {
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(t.issuer))
	p.AddRule(paseto.ValidAt(now))

	parsed, err := p.ParseV4Public(t.public, token, nil)
	if err != nil {
		return "", ErrInvalidToken
	}
	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
