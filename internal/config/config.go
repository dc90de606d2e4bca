package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode      string                 `mapstructure:"mode"`
	Port      int                    `mapstructure:"port"`
	LogLevel  string                 `mapstructure:"log_level"`
	Discord   DiscordConfig          `mapstructure:"discord"`
	LFG       LFGConfig              `mapstructure:"lfg"`
	Session   SessionConfig          `mapstructure:"session"`
	RateLimit RateLimitConfig        `mapstructure:"ratelimit"`
	Guilds    map[string]GuildConfig `mapstructure:"guilds"`
}

type DiscordConfig struct {
	Token   string `mapstructure:"token"`
	OwnerID string `mapstructure:"owner_id"`
}

type LFGConfig struct {
	IdleGrace         time.Duration `mapstructure:"idle_grace"`
	SpawnIdleGrace    time.Duration `mapstructure:"spawn_idle_grace"`
	RoleName          string        `mapstructure:"role_name"`
	ReclaimOnShutdown bool          `mapstructure:"reclaim_on_shutdown"`
}

type SessionConfig struct {
	// MaxLifetime of a session, 0 keeps sessions until deleted or reclaimed.
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

type RateLimitConfig struct {
	PerUser float64 `mapstructure:"per_user"`
	Burst   int     `mapstructure:"burst"`
}

// GuildConfig holds the channel and role ids of one guild.
type GuildConfig struct {
	AlertChannelID        string   `mapstructure:"alert_channel_id"`
	PostingChannelID      string   `mapstructure:"posting_channel_id"`
	CategoryID            string   `mapstructure:"category_id"`
	JoinToCreateChannelID string   `mapstructure:"join_to_create_channel_id"`
	OfficerRoleIDs        []string `mapstructure:"officer_role_ids"`
}

// Flags returns the command line flags Load understands.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("lfg", pflag.ContinueOnError)
	fs.String("config", "", "path to the config file (default config/config.$CONFIG_ENV.yaml)")
	fs.String("mode", "", "run mode: debug or release")
	fs.Int("port", 0, "http port for health and metrics")
	fs.String("log-level", "", "log level")
	return fs
}

// Load reads the config file, the LFG_* environment and the flags, in
// increasing precedence. A missing config file is not an error.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	fileName := ""
	if fs != nil {
		fileName, _ = fs.GetString("config")
	}
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.owner_id", "")
	v.SetDefault("lfg.idle_grace", "60s")
	v.SetDefault("lfg.spawn_idle_grace", "10s")
	v.SetDefault("lfg.role_name", "LFG")
	v.SetDefault("lfg.reclaim_on_shutdown", true)
	v.SetDefault("session.max_lifetime", "24h")
	v.SetDefault("ratelimit.per_user", 1.0)
	v.SetDefault("ratelimit.burst", 5)

	v.SetEnvPrefix("LFG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("discord.token", "LFG_DISCORD_TOKEN", "DISCORD_TOKEN"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if fs != nil {
		for key, flag := range map[string]string{"mode": "mode", "port": "port", "log_level": "log-level"} {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Int("guilds", len(cfg.Guilds)).Msg("config ready")
	return &cfg, nil
}

// Validate reports every problem of the config at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Discord.Token) == "" {
		errs = append(errs, errors.New("discord.token (or DISCORD_TOKEN) is required"))
	}
	if c.LFG.IdleGrace < 0 {
		errs = append(errs, errors.New("lfg.idle_grace must not be negative"))
	}
	if c.LFG.SpawnIdleGrace < 0 {
		errs = append(errs, errors.New("lfg.spawn_idle_grace must not be negative"))
	}
	if c.Session.MaxLifetime < 0 {
		errs = append(errs, errors.New("session.max_lifetime must not be negative"))
	}
	if c.RateLimit.PerUser <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("ratelimit.per_user and ratelimit.burst must be positive"))
	}
	if len(c.Guilds) == 0 {
		errs = append(errs, errors.New("guilds: at least one guild must be configured"))
	}
	for id, g := range c.Guilds {
		if g.AlertChannelID == "" || g.CategoryID == "" {
			errs = append(errs, fmt.Errorf("guilds.%s needs alert_channel_id and category_id", id))
		}
	}
	return errors.Join(errs...)
}

// Guild returns the config of a guild.
func (c *Config) Guild(id string) (GuildConfig, bool) {
	g, ok := c.Guilds[id]
	return g, ok
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
