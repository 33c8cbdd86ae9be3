// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix - префикс переменных окружения, переопределяющих файл.
const EnvPrefix = "SOLANA_FANOUT"

const (
	DefaultRPCRetries        = 3
	DefaultConfirmInterval   = 500
	DefaultConfirmTimeout    = 30_000
	DefaultNonceSync         = 2_000
	DefaultLookupRefresh     = 30_000
	DefaultDataSizeLimit     = 256 * 1024
	DefaultPlainUnitLimit    = 200_000
	DefaultPriorityUnitLimit = 200_000
)

// Error - ошибка конфигурации с указанием поля.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func fieldError(field, format string, args ...interface{}) error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Config holds application settings loaded from config.json.
type Config struct {
	RPCList      []string `mapstructure:"rpc_list"`
	PrivateKey   string   `mapstructure:"private_key"`
	DebugLogging bool     `mapstructure:"debug_logging"`
	LogFile      string   `mapstructure:"log_file"`
	MetricsAddr  string   `mapstructure:"metrics_addr"`
	TasksFile    string   `mapstructure:"tasks_file"`
	ReportDir    string   `mapstructure:"report_dir"`    // пусто - отчёт не пишется
	ReportFormat string   `mapstructure:"report_format"` // csv | json
	RPCRetries   int      `mapstructure:"rpc_retries"`

	TradePause   time.Duration `mapstructure:"-"`
	TradePauseMS int           `mapstructure:"trade_pause"`

	Fees     FeeConfig       `mapstructure:"fees"`
	Nonce    NonceConfig     `mapstructure:"nonce"`
	Lookup   LookupConfig    `mapstructure:"lookup"`
	Confirm  ConfirmConfig   `mapstructure:"confirm"`
	PumpFun  PumpFunConfig   `mapstructure:"pumpfun"`
	Channels []ChannelConfig `mapstructure:"channels"`
}

// FeeConfig - цены и лимиты compute units для обоих уровней и tip.
type FeeConfig struct {
	PlainUnitPrice    uint64   `mapstructure:"plain_unit_price"`
	PlainUnitLimit    uint32   `mapstructure:"plain_unit_limit"`
	PriorityUnitPrice uint64   `mapstructure:"priority_unit_price"`
	PriorityUnitLimit uint32   `mapstructure:"priority_unit_limit"`
	TipLamports       uint64   `mapstructure:"tip_lamports"`
	ChannelTips       []uint64 `mapstructure:"channel_tips"`
	DataSizeLimit     uint32   `mapstructure:"data_size_limit"`
}

// NonceConfig - durable nonce; пустой Account отключает его.
type NonceConfig struct {
	Account   string        `mapstructure:"account"`
	Authority string        `mapstructure:"authority"`
	Sync      time.Duration `mapstructure:"-"`
	SyncMS    int           `mapstructure:"sync_interval"`
}

// LookupConfig - адресные таблицы, поддерживаемые в кэше.
type LookupConfig struct {
	Tables    []string      `mapstructure:"tables"`
	Refresh   time.Duration `mapstructure:"-"`
	RefreshMS int           `mapstructure:"refresh_interval"`
}

// ConfirmConfig - опрос статуса после приёма.
type ConfirmConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	RequireFinalized bool          `mapstructure:"require_finalized"`
	Interval         time.Duration `mapstructure:"-"`
	IntervalMS       int           `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"-"`
	TimeoutMS        int           `mapstructure:"timeout"`
}

// PumpFunConfig переопределяет адреса протокола (пусто - mainnet).
type PumpFunConfig struct {
	ProgramID      string `mapstructure:"program_id"`
	EventAuthority string `mapstructure:"event_authority"`
	FeeRecipient   string `mapstructure:"fee_recipient"`
}

// ChannelConfig - описание одного канала отправки.
type ChannelConfig struct {
	Name        string   `mapstructure:"name"`
	Kind        string   `mapstructure:"kind"`
	Provider    string   `mapstructure:"provider"`
	Endpoint    string   `mapstructure:"endpoint"`
	AuthToken   string   `mapstructure:"auth_token"`
	AuthHeader  string   `mapstructure:"auth_header"`
	TipAccounts []string `mapstructure:"tip_accounts"`
	Flags       []string `mapstructure:"flags"` // имена флагов сохраняют регистр, в отличие от ключей viper
	RateLimit   float64  `mapstructure:"rate_limit"`
	PingPath    string   `mapstructure:"ping_path"`
	PingMS      int      `mapstructure:"ping_interval"`
	MaxRetries  uint     `mapstructure:"max_retries"`
	TimeoutMS   int      `mapstructure:"timeout"`
}

// LoadDotEnv загружает .env, если он есть. Уже заданные переменные не перезаписываются.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig reads configuration from the specified file path and performs validation.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"debug_logging":            false,
		"log_file":                 "sender.log",
		"tasks_file":               "configs/tasks.yaml",
		"rpc_retries":              DefaultRPCRetries,
		"trade_pause":              0,
		"fees.plain_unit_limit":    DefaultPlainUnitLimit,
		"fees.priority_unit_limit": DefaultPriorityUnitLimit,
		"fees.data_size_limit":     DefaultDataSizeLimit,
		"nonce.sync_interval":      DefaultNonceSync,
		"lookup.refresh_interval":  DefaultLookupRefresh,
		"confirm.enabled":          true,
		"confirm.interval":         DefaultConfirmInterval,
		"confirm.timeout":          DefaultConfirmTimeout,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	loadEnvironmentVariables(v, &cfg)

	// Convert ms to Duration
	cfg.TradePause = time.Duration(cfg.TradePauseMS) * time.Millisecond
	cfg.Nonce.Sync = time.Duration(cfg.Nonce.SyncMS) * time.Millisecond
	cfg.Lookup.Refresh = time.Duration(cfg.Lookup.RefreshMS) * time.Millisecond
	cfg.Confirm.Interval = time.Duration(cfg.Confirm.IntervalMS) * time.Millisecond
	cfg.Confirm.Timeout = time.Duration(cfg.Confirm.TimeoutMS) * time.Millisecond

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if key := v.GetString("PRIVATE_KEY"); key != "" {
		cfg.PrivateKey = key
	}

	envRPCList := os.Getenv(EnvPrefix + "_RPC_LIST")
	if envRPCList != "" {
		var cleanRPCs []string
		for _, rpc := range strings.Split(envRPCList, ",") {
			if clean := strings.TrimSpace(rpc); clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}
}

// MaskRPCForLogging скрывает query-параметры (обычно api-key) в URL.
func MaskRPCForLogging(rpcURL string) string {
	if i := strings.IndexByte(rpcURL, '?'); i >= 0 {
		return rpcURL[:i] + "?***"
	}
	return rpcURL
}

// MaskedRPCList returns RPC list with masked API keys for logging
func (c *Config) MaskedRPCList() []string {
	masked := make([]string, len(c.RPCList))
	for i, rpc := range c.RPCList {
		masked[i] = MaskRPCForLogging(rpc)
	}
	return masked
}
