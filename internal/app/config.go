package app

import (
	"wagate/internal/config"
	"wagate/internal/httpapi"
	"wagate/internal/logging"
	"wagate/internal/phone"
	"wagate/internal/services/connection"
	"wagate/internal/transport/whatsapp"
)

// PhonePlan converts the configured numbering plan. An empty country code
// disables mobile-digit handling.
func PhonePlan(c config.PhoneConfig) phone.Plan {
	if c.CountryCode == "" || c.MobileDigit == "" {
		return phone.Plan{}
	}
	return phone.Plan{
		CountryCode:   c.CountryCode,
		AreaCodeLen:   c.AreaCodeLen,
		MobileDigit:   c.MobileDigit[0],
		SubscriberLen: c.SubscriberLen,
	}
}

// ReconnectPolicy converts the reconnect settings.
func ReconnectPolicy(c config.ReconnectConfig) connection.Backoff {
	return connection.Backoff{Base: c.BaseDelay, Max: c.MaxDelay, MaxRetries: c.MaxRetries}
}

// TransportConfig converts the device store and media settings.
func TransportConfig(cfg config.Config) whatsapp.Config {
	return whatsapp.Config{
		Dialect:       cfg.Database.Dialect,
		Address:       cfg.DatabaseAddress(),
		DeviceName:    cfg.DeviceName,
		MediaTimeout:  cfg.Media.Timeout,
		MaxMediaBytes: cfg.Media.MaxBytes,
	}
}

func apiOptions(c config.HTTPConfig) httpapi.Options {
	return httpapi.Options{AllowRemote: c.AllowRemote, APIKey: c.APIKey, Websocket: c.Websocket}
}

func loggingConfig(c config.LogConfig) logging.Config {
	return logging.Config{Level: c.Level, Format: c.Format}
}
