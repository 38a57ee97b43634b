package notifier

// Config holds notifier settings loaded from the environment.
type Config struct {
	// AppName appears in subjects and template copy.
	AppName string `env:"APP_NAME" envDefault:"Blocmark"`

	// EmailDomain is the domain part of generated message IDs. Provider
	// webhooks echo the full ID back, so it must stay stable across deploys.
	EmailDomain string `env:"EMAIL_DOMAIN" envDefault:"mail.blocmark.app"`
}
