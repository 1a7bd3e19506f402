package config

// ConfigDiff describes what changed between two configs: the log level,
// which can be hot-reloaded, and the provider names, which cannot.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	AcousticProviderChanged bool
	G2PProviderChanged      bool
	NarratorProviderChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only the log level is safe to apply without restart. The provider flags
// only report a change: swapping a provider implementation requires
// re-running the registry's Create* call and rebuilding the App, which the
// watcher and its callback do not do.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Providers.Acoustic.Name != new.Providers.Acoustic.Name {
		d.AcousticProviderChanged = true
	}
	if old.Providers.G2P.Name != new.Providers.G2P.Name {
		d.G2PProviderChanged = true
	}
	if old.Providers.Narrator.Name != new.Providers.Narrator.Name {
		d.NarratorProviderChanged = true
	}

	return d
}
