package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain/computebudget"
	"github.com/rovshanmuradov/solana-fanout/internal/channel"
	"github.com/rovshanmuradov/solana-fanout/internal/export"
	"github.com/rovshanmuradov/solana-fanout/internal/fee"
	"github.com/rovshanmuradov/solana-fanout/internal/protocol/pumpfun"
)

// Validate проверяет обязательные поля, URL и согласованность каналов с tip-профилем.
func (c *Config) Validate() error {
	if len(c.RPCList) == 0 {
		return fieldError("rpc_list", "at least one RPC endpoint is required")
	}
	for i, rpcURL := range c.RPCList {
		if err := validateURL(rpcURL, "http", "https"); err != nil {
			return fieldError(fmt.Sprintf("rpc_list[%d]", i), "%v", err)
		}
	}
	if c.PrivateKey == "" {
		return fieldError("private_key", "signing key is required (config or %s_PRIVATE_KEY)", EnvPrefix)
	}
	if c.RPCRetries < 0 {
		return fieldError("rpc_retries", "must not be negative")
	}
	if err := c.validateFees(); err != nil {
		return err
	}
	if err := c.validateChannels(); err != nil {
		return err
	}
	if c.Nonce.Account != "" {
		if _, err := solana.PublicKeyFromBase58(c.Nonce.Account); err != nil {
			return fieldError("nonce.account", "invalid public key: %v", err)
		}
		if c.Nonce.Authority != "" {
			if _, err := solana.PublicKeyFromBase58(c.Nonce.Authority); err != nil {
				return fieldError("nonce.authority", "invalid public key: %v", err)
			}
		}
	}
	if _, err := c.LookupTables(); err != nil {
		return err
	}
	if _, err := c.PumpFun.Addresses(); err != nil {
		return err
	}
	if _, err := export.ParseFormat(c.ReportFormat); err != nil {
		return fieldError("report_format", "%v", err)
	}
	if c.Confirm.Enabled && (c.Confirm.Interval <= 0 || c.Confirm.Timeout <= 0) {
		return fieldError("confirm", "interval and timeout must be positive")
	}
	return nil
}

func (c *Config) validateFees() error {
	f := c.Fees
	if f.PlainUnitLimit == 0 || f.PlainUnitLimit > computebudget.MaxUnits {
		return fieldError("fees.plain_unit_limit", "must be in (0, %d]", computebudget.MaxUnits)
	}
	if f.PriorityUnitLimit == 0 || f.PriorityUnitLimit > computebudget.MaxUnits {
		return fieldError("fees.priority_unit_limit", "must be in (0, %d]", computebudget.MaxUnits)
	}
	if f.DataSizeLimit == 0 || f.DataSizeLimit > computebudget.MaxDataSizeLimit {
		return fieldError("fees.data_size_limit", "must be in (0, %d]", computebudget.MaxDataSizeLimit)
	}
	if len(f.ChannelTips) != 0 && len(f.ChannelTips) != len(c.Channels) {
		return fieldError("fees.channel_tips", "got %d tips for %d channels", len(f.ChannelTips), len(c.Channels))
	}
	return nil
}

func (c *Config) validateChannels() error {
	if len(c.Channels) == 0 {
		return fieldError("channels", "at least one channel is required")
	}

	seen := make(map[string]struct{}, len(c.Channels))
	for i, ch := range c.Channels {
		field := fmt.Sprintf("channels[%d]", i)
		if ch.Name == "" {
			return fieldError(field+".name", "is required")
		}
		if _, dup := seen[ch.Name]; dup {
			return fieldError(field+".name", "duplicate channel %q", ch.Name)
		}
		seen[ch.Name] = struct{}{}

		kind := channel.Kind(strings.ToLower(ch.Kind))
		if !kind.Valid() {
			return fieldError(field+".kind", "unknown kind %q", ch.Kind)
		}

		switch kind {
		case channel.KindNode:
			// нода отправляет через общий ledger-клиент
		case channel.KindBundle:
			if err := validateURL(ch.Endpoint, "ws", "wss"); err != nil {
				return fieldError(field+".endpoint", "%v", err)
			}
		default:
			if err := validateURL(ch.Endpoint, "http", "https"); err != nil {
				return fieldError(field+".endpoint", "%v", err)
			}
		}
		if ch.RateLimit < 0 {
			return fieldError(field+".rate_limit", "must not be negative")
		}

		if kind.Tier() != fee.TierPriority {
			continue
		}
		tips, err := parseKeys(ch.TipAccounts)
		if err != nil {
			return fieldError(field+".tip_accounts", "%v", err)
		}
		if len(tips) == 0 && len(channel.DefaultTipAccounts(ch.Provider)) == 0 {
			return fieldError(field+".tip_accounts", "priority channel needs tip accounts or a known provider")
		}
		if c.Fees.TipFor(i) == 0 {
			return fieldError("fees", "channel %q needs a positive tip", ch.Name)
		}
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("endpoint is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL format")
	}
	for _, scheme := range schemes {
		if parsed.Scheme == scheme && parsed.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("URL must use %s", strings.Join(schemes, " or "))
}

func parseKeys(raw []string) ([]solana.PublicKey, error) {
	keys := make([]solana.PublicKey, 0, len(raw))
	for _, s := range raw {
		key, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid public key %q: %w", s, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// TipFor - как fee.Profile.TipFor, для проверки до сборки профиля.
func (f FeeConfig) TipFor(i int) uint64 {
	return f.Profile().TipFor(i)
}

// Profile собирает fee.Profile.
func (f FeeConfig) Profile() fee.Profile {
	return fee.Profile{
		PlainUnitPrice:    f.PlainUnitPrice,
		PlainUnitLimit:    f.PlainUnitLimit,
		PriorityUnitPrice: f.PriorityUnitPrice,
		PriorityUnitLimit: f.PriorityUnitLimit,
		TipLamports:       f.TipLamports,
		ChannelTips:       append([]uint64(nil), f.ChannelTips...),
		DataSizeLimit:     f.DataSizeLimit,
	}
}

// ChannelDescriptors превращает записи конфигурации в дескрипторы каналов.
func (c *Config) ChannelDescriptors() ([]channel.Descriptor, error) {
	descs := make([]channel.Descriptor, 0, len(c.Channels))
	for i, ch := range c.Channels {
		tips, err := parseKeys(ch.TipAccounts)
		if err != nil {
			return nil, fieldError(fmt.Sprintf("channels[%d].tip_accounts", i), "%v", err)
		}

		var flags map[string]bool
		if len(ch.Flags) > 0 {
			flags = make(map[string]bool, len(ch.Flags))
			for _, name := range ch.Flags {
				flags[name] = true
			}
		}

		descs = append(descs, channel.Descriptor{
			Name:         ch.Name,
			Kind:         channel.Kind(strings.ToLower(ch.Kind)),
			Provider:     ch.Provider,
			Endpoint:     ch.Endpoint,
			AuthToken:    ch.AuthToken,
			AuthHeader:   ch.AuthHeader,
			TipAccounts:  tips,
			Flags:        flags,
			RateLimit:    ch.RateLimit,
			PingInterval: time.Duration(ch.PingMS) * time.Millisecond,
			PingPath:     ch.PingPath,
			MaxRetries:   ch.MaxRetries,
			Timeout:      time.Duration(ch.TimeoutMS) * time.Millisecond,
		})
	}
	return descs, nil
}

// NonceKeys возвращает аккаунт и authority durable nonce.
// ok=false - nonce не настроен; authority по умолчанию - плательщик.
func (c *Config) NonceKeys(payer solana.PublicKey) (account, authority solana.PublicKey, ok bool, err error) {
	if c.Nonce.Account == "" {
		return solana.PublicKey{}, solana.PublicKey{}, false, nil
	}
	account, err = solana.PublicKeyFromBase58(c.Nonce.Account)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, false, fieldError("nonce.account", "invalid public key: %v", err)
	}
	authority = payer
	if c.Nonce.Authority != "" {
		authority, err = solana.PublicKeyFromBase58(c.Nonce.Authority)
		if err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, false, fieldError("nonce.authority", "invalid public key: %v", err)
		}
	}
	return account, authority, true, nil
}

// LookupTables разбирает адреса таблиц.
func (c *Config) LookupTables() ([]solana.PublicKey, error) {
	keys, err := parseKeys(c.Lookup.Tables)
	if err != nil {
		return nil, fieldError("lookup.tables", "%v", err)
	}
	return keys, nil
}

// Addresses разбирает переопределения адресов Pump.fun; пустые поля остаются нулевыми.
func (p PumpFunConfig) Addresses() (pumpfun.Config, error) {
	var cfg pumpfun.Config
	fields := []struct {
		name string
		raw  string
		dst  *solana.PublicKey
	}{
		{"pumpfun.program_id", p.ProgramID, &cfg.ProgramID},
		{"pumpfun.event_authority", p.EventAuthority, &cfg.EventAuthority},
		{"pumpfun.fee_recipient", p.FeeRecipient, &cfg.FeeRecipient},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		key, err := solana.PublicKeyFromBase58(f.raw)
		if err != nil {
			return pumpfun.Config{}, fieldError(f.name, "invalid public key: %v", err)
		}
		*f.dst = key
	}
	return cfg, nil
}
