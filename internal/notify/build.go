package notify

import (
	"log/slog"

	"github.com/me/cyclelaunch/internal/config"
)

// FromConfig assembles the notifier chain: the log notifier always, then a
// webhook and sendmail when configured.
func FromConfig(cfg config.NotifyConfig, logger *slog.Logger) Notifier {
	chain := Multi{NewLogNotifier(logger)}
	if cfg.WebhookURL != "" {
		chain = append(chain, NewWebhookNotifier(cfg.WebhookURL, cfg.Timeout))
	}
	if cfg.SendmailPath != "" && len(cfg.Recipients) > 0 {
		chain = append(chain, NewSendmailNotifier(cfg.SendmailPath, cfg.From))
	}
	return chain
}

// TemplatesFromConfig returns the templates for cfg.
func TemplatesFromConfig(cfg config.NotifyConfig) Templates {
	return Templates{Prefix: cfg.SubjectPrefix, Recipients: cfg.Recipients}
}
