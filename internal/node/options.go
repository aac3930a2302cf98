package node

import (
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
)

const (
	defaultCycleInterval       = 900 * time.Second
	defaultCooldown            = 10 * time.Second
	defaultLinkFailureDelay    = 10 * time.Second
	defaultSessionFailureDelay = 30 * time.Second

	// pruneEvery is how often the journal retention is enforced.
	pruneEvery = 24 * time.Hour
)

// Options holds the loop's timing and subscriptions.
type Options struct {
	CycleInterval       time.Duration
	Cooldown            time.Duration
	LinkFailureDelay    time.Duration
	SessionFailureDelay time.Duration

	// Topics are subscribed on every connect.
	Topics []string

	// Retention is the journal age limit. Zero disables pruning.
	Retention time.Duration
}

func (o Options) withDefaults() Options {
	if o.CycleInterval <= 0 {
		o.CycleInterval = defaultCycleInterval
	}
	if o.Cooldown < 0 {
		o.Cooldown = defaultCooldown
	}
	if o.LinkFailureDelay < 0 {
		o.LinkFailureDelay = defaultLinkFailureDelay
	}
	if o.SessionFailureDelay < 0 {
		o.SessionFailureDelay = defaultSessionFailureDelay
	}
	return o
}

// OptionsFromConfig builds Options from the schedule and journal sections.
// The command and config topics are subscribed only when
// mqtt.subscribe_inbound is set.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		CycleInterval:       cfg.GetCycleInterval(),
		Cooldown:            cfg.GetCooldown(),
		LinkFailureDelay:    cfg.GetLinkFailureDelay(),
		SessionFailureDelay: cfg.GetSessionFailureDelay(),
	}
	if cfg.MQTT.SubscribeInbound {
		clientID := cfg.MQTT.Broker.ClientID
		topics := mqtt.Topics{}
		opts.Topics = []string{topics.Commands(clientID), topics.Config(clientID)}
	}
	if cfg.Journal.Enabled && cfg.Journal.RetentionDays > 0 {
		opts.Retention = time.Duration(cfg.Journal.RetentionDays) * 24 * time.Hour
	}
	return opts
}
