package config

import "time"

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MQTTConfig contains MQTT client settings that are not part of the
// connect call itself (broker address and port are passed to Connect).
type MQTTConfig struct {
	ClientID  string
	Username  string
	Password  string
	QoS       int
	KeepAlive time.Duration
	TLS       bool
}

// APIConfig contains status server settings.
type APIConfig struct {
	Enabled        bool
	Host           string
	Port           int
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int
}

// Logging returns the logging section. Lookups cannot fail because every key
// has a default; a malformed value falls back to the zero value and the
// logger's own defaults.
func (c *Config) Logging() LoggingConfig {
	level, _ := c.Get(SectionLogging, "level")   //nolint:errcheck // defaulted
	format, _ := c.Get(SectionLogging, "format") //nolint:errcheck // defaulted
	output, _ := c.Get(SectionLogging, "output") //nolint:errcheck // defaulted
	return LoggingConfig{Level: level, Format: format, Output: output}
}

// MQTT returns the client settings of the mqtt_broker section.
func (c *Config) MQTT() MQTTConfig {
	clientID, _ := c.Get(SectionBroker, "client_id")          //nolint:errcheck // defaulted
	qos, _ := c.GetInt(SectionBroker, "qos")                  //nolint:errcheck // validated
	keepAlive, _ := c.GetDuration(SectionBroker, "keepalive") //nolint:errcheck // defaulted
	tls, _ := c.GetBool(SectionBroker, "tls")                 //nolint:errcheck // defaulted

	// Credentials are optional.
	username, _ := c.Get(SectionBroker, "username") //nolint:errcheck // optional
	password, _ := c.Get(SectionBroker, "password") //nolint:errcheck // optional

	return MQTTConfig{
		ClientID:  clientID,
		Username:  username,
		Password:  password,
		QoS:       qos,
		KeepAlive: keepAlive,
		TLS:       tls,
	}
}

// API returns the status server section.
func (c *Config) API() APIConfig {
	enabled, _ := c.GetBool(SectionAPI, "enabled")         //nolint:errcheck // defaulted
	host, _ := c.Get(SectionAPI, "host")                   //nolint:errcheck // defaulted
	port, _ := c.GetInt(SectionAPI, "port")                //nolint:errcheck // defaulted
	ping, _ := c.GetDuration(SectionAPI, "ping_interval")  //nolint:errcheck // defaulted
	pong, _ := c.GetDuration(SectionAPI, "pong_timeout")   //nolint:errcheck // defaulted
	maxSize, _ := c.GetInt(SectionAPI, "max_message_size") //nolint:errcheck // defaulted
	return APIConfig{
		Enabled:        enabled,
		Host:           host,
		Port:           port,
		PingInterval:   ping,
		PongTimeout:    pong,
		MaxMessageSize: maxSize,
	}
}
