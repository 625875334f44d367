package token

// Config holds token codec configuration.
type Config struct {
	// Secret is the HMAC signing key. It has no default.
	Secret string `env:"SESSION_SIGNING_SECRET,required,notEmpty"`

	// Issuer is written to and enforced on the iss claim. Empty disables the check.
	Issuer string `env:"SESSION_TOKEN_ISSUER" envDefault:"sessionkit"`
}

// Validate rejects a config without a signing secret.
func (c Config) Validate() error {
	if c.Secret == "" {
		return ErrMissingSecret
	}
	return nil
}

// NewFromConfig creates a Codec from the provided Config.
func NewFromConfig(cfg Config, opts ...Option) (*Codec, error) {
	configOpts := make([]Option, 0, len(opts)+1)
	if cfg.Issuer != "" {
		configOpts = append(configOpts, WithIssuer(cfg.Issuer))
	}
	configOpts = append(configOpts, opts...)

	return New([]byte(cfg.Secret), configOpts...)
}
