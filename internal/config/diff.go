package config

import (
	"strings"

	logx "nottray/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus safe
// structured attrs for logging.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if strings.TrimSpace(oldCfg.Storage.Root) != strings.TrimSpace(newCfg.Storage.Root) {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.root", strings.TrimSpace(newCfg.Storage.Root)))
	}

	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Engine.Workers != newCfg.Engine.Workers ||
		oldCfg.Engine.QueueSize != newCfg.Engine.QueueSize {
		changed = append(changed, "engine")
		attrs = append(attrs,
			logx.Int("engine.workers", newCfg.Engine.Workers),
			logx.Int("engine.queue_size", newCfg.Engine.QueueSize),
		)
	}

	if oldCfg.SweepEnabled() != newCfg.SweepEnabled() ||
		strings.TrimSpace(oldCfg.Sweep.Interval) != strings.TrimSpace(newCfg.Sweep.Interval) {
		changed = append(changed, "sweep")
		attrs = append(attrs,
			logx.Bool("sweep.enabled", newCfg.SweepEnabled()),
			logx.String("sweep.interval", strings.TrimSpace(newCfg.Sweep.Interval)),
		)
	}

	if strings.TrimSpace(oldCfg.Display.Backend) != strings.TrimSpace(newCfg.Display.Backend) {
		changed = append(changed, "display")
		attrs = append(attrs, logx.String("display.backend", strings.TrimSpace(newCfg.Display.Backend)))
	}

	if oldCfg.Journal != newCfg.Journal {
		changed = append(changed, "journal")
		attrs = append(attrs,
			logx.String("journal.driver", strings.TrimSpace(newCfg.Journal.Driver)),
			logx.Bool("journal.path_set", strings.TrimSpace(newCfg.Journal.Path) != ""),
		)
	}

	return changed, attrs
}
