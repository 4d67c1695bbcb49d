package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Watch    WatchConfig    `json:"watch"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// AdminID is the single trusted operator. Sticker admin commands are
	// refused for anyone else, and operator alerts go to this chat.
	AdminID int64 `json:"admin_id"`
	// Channel is the notification target: "@username" or a numeric chat id.
	Channel string `json:"channel"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram routes warnings/errors to the admin chat; this is the
// operator alert channel.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./gardenbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// WatchConfig controls the stock watcher.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type WatchConfig struct {
	// URL of the stock page to scrape.
	URL string `json:"url"`
	// Schedule drives the poll loop: a cron expression ("*/1 * * * *",
	// "@every 30s") or a plain interval ("30s"). Default "30s".
	Schedule string `json:"schedule,omitempty"`
	// GuardBand widens the too-soon window of the coalescing check:
	// a tick is skipped when the previous cycle started less than
	// (interval - guard_band) ago. Default "5s".
	GuardBand string `json:"guard_band,omitempty"`
	// FetchTimeout bounds a single HTTP fetch of the stock page. Default "15s".
	FetchTimeout string `json:"fetch_timeout,omitempty"`
	// ResetOnStart clears the persisted fingerprint and last-sent periods at
	// process start, forcing a fresh notification round.
	ResetOnStart bool `json:"reset_on_start,omitempty"`

	Sections []SectionConfig `json:"sections,omitempty"`
	// Items is the allowlist of stock items the bot cares about. Anything
	// scraped that isn't listed here is dropped.
	Items []ItemConfig `json:"items"`
}

type SectionConfig struct {
	Name string `json:"name"`
	// Cadence is the section's refresh window width (Go duration string).
	Cadence string `json:"cadence"`
	Emoji   string `json:"emoji,omitempty"`
	// Notify marks the section as eligible for channel notifications.
	// Non-notify sections are still scraped and fingerprinted.
	Notify bool `json:"notify"`
}

type ItemConfig struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji,omitempty"`
}

// DefaultSections mirrors the stock page layout: gear and seeds restock
// every 5 minutes, eggs every 30, cosmetics every 4 hours (watched for
// change detection but never posted).
func DefaultSections() []SectionConfig {
	return []SectionConfig{
		{Name: "GEAR STOCK", Cadence: "5m", Emoji: "⚙️", Notify: true},
		{Name: "EGG STOCK", Cadence: "30m", Emoji: "🥚", Notify: true},
		{Name: "SEEDS STOCK", Cadence: "5m", Emoji: "🌱", Notify: true},
		{Name: "COSMETICS STOCK", Cadence: "4h", Emoji: "🧴", Notify: false},
	}
}
