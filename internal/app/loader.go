package app

import (
	"context"
	"fmt"

	"radiohub/internal/acl"
	"radiohub/internal/config"
	"radiohub/internal/logging"
	"radiohub/internal/metrics"
	"radiohub/internal/notify"
)

// LoadStore opens the ACL backend named in cfg. The returned close function is
// never nil.
func LoadStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (acl.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Configuration.ACLBackend {
	case config.BackendSheets:
		store, err := acl.NewSheetsStore(ctx, acl.SheetsOptions{
			SpreadsheetID:   cfg.Configuration.SheetID,
			Range:           cfg.Configuration.ACLRange,
			CredentialsFile: cfg.Paths.SheetsJSON,
		})
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case config.BackendFile:
		store, err := acl.OpenFileStore(acl.FileOptions{
			Path:   cfg.Paths.ACLFile,
			Logger: logger.ForCategory("acl"),
			Watch:  true,
		})
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case config.BackendMemory:
		return acl.NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown acl backend %q", cfg.Configuration.ACLBackend)
	}
}

// LoadNotifier builds the webhook notifier, or a notifier that drops everything
// when webhooks are disabled.
func LoadNotifier(ctx context.Context, cfg *config.Config, logger *logging.Logger, registry *metrics.Registry) *notify.Notifier {
	options := notify.Options{
		Enabled:  cfg.Discord.Toggles(),
		Logger:   logger,
		Registry: registry,
		Context:  ctx,
	}
	if cfg.Configuration.DiscordWebHookEnable {
		options.Sink = notify.NewWebhookSink(cfg.Configuration.DiscordWebHookURL)
	}
	return notify.NewNotifier(options)
}
