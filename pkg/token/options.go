package token

import "time"

// Option configures a Codec.
type Option func(*Codec)

// WithIssuer sets the iss claim written on Sign and required on Verify.
func WithIssuer(issuer string) Option {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

// WithClock overrides the time source. Nil is ignored.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}
