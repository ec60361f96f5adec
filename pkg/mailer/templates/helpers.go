package templates

import (
	"time"

	"github.com/oksasatya/go-ddd-accounts/config"
)

// Option pattern
type Option func(*EmailData)

func WithJoinedAt(t time.Time) Option {
	return func(d *EmailData) {
		if t.IsZero() {
			return
		}
		utc := t.UTC()
		d.JoinedAt = utc
		d.JoinedAtText = utc.Format("02 January 2006, 15:04")
	}
}

func WithStaff(staff bool) Option { return func(d *EmailData) { d.IsStaff = staff } }

// NewBaseEmailData fills the shared fields from config, then applies opts.
func NewBaseEmailData(cfg *config.Config, typ string, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:  name,
		Email: email,
		Type:  typ,

		CompanyName: cfg.CompanyName,
		AppName:     cfg.AppName,

		LogoURL:    cfg.LogoURL,
		SupportURL: cfg.SupportURL,
		LoginURL:   cfg.LoginURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewWelcomeData(cfg *config.Config, name, email string, opts ...Option) EmailData {
	return NewBaseEmailData(cfg, Welcome, name, email, opts...)
}
