package mailer

// Config holds provider configuration.
// Tokens are optional to support development environments where sending is
// routed to the dev sender instead; SenderEmail and SupportEmail establish
// the sender identity and reply-to behavior for all outbound mail.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
	DevOutputDir         string `env:"MAILER_DEV_DIR" envDefault:"./tmp/emails"`
}
