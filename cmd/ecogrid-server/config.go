package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/daniacca/ecogrid/internal/ecosim"
)

// ServerConfig holds the server configuration.
type ServerConfig struct {
	Addr         string
	RecordingsDB string
	ParamsFile   string
	WebhookURL   string
	LogLevel     string
}

// configResolver defines how to resolve a single configuration value.
type configResolver struct {
	flagName    string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*ServerConfig, string)
}

// loadServerConfig loads server configuration from CLI flags and
// environment variables, flags taking precedence. To add a new option,
// add a resolver to the table.
func loadServerConfig() ServerConfig {
	cfg := ServerConfig{}

	resolvers := []configResolver{
		{
			flagName:    "addr",
			envVarName:  "ECOGRID_ADDR",
			defaultVal:  ":8080",
			description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
			setter:      func(c *ServerConfig, v string) { c.Addr = v },
		},
		{
			flagName:    "recordings-db",
			envVarName:  "ECOGRID_RECORDINGS_DB",
			defaultVal:  "./data/recordings.db",
			description: "path of the SQLite database holding simulation recordings",
			setter:      func(c *ServerConfig, v string) { c.RecordingsDB = v },
		},
		{
			flagName:    "params-file",
			envVarName:  "ECOGRID_PARAMS_FILE",
			defaultVal:  "",
			description: "optional path to a JSON file with default simulation parameters",
			setter:      func(c *ServerConfig, v string) { c.ParamsFile = v },
		},
		{
			flagName:    "webhook-url",
			envVarName:  "ECOGRID_WEBHOOK_URL",
			defaultVal:  "",
			description: "optional URL receiving a POST per completed generation",
			setter:      func(c *ServerConfig, v string) { c.WebhookURL = v },
		},
		{
			flagName:    "log-level",
			envVarName:  "ECOGRID_LOG_LEVEL",
			defaultVal:  "info",
			description: "log level: debug, info, warn, error",
			setter:      func(c *ServerConfig, v string) { c.LogLevel = v },
		},
	}

	flagVars := make(map[string]*string)
	for _, resolver := range resolvers {
		flagVars[resolver.flagName] = flag.String(resolver.flagName, "", resolver.description)
	}

	flag.Parse()

	for _, resolver := range resolvers {
		var value string
		if *flagVars[resolver.flagName] != "" {
			value = *flagVars[resolver.flagName]
		} else if envValue := os.Getenv(resolver.envVarName); envValue != "" {
			value = envValue
		} else {
			value = resolver.defaultVal
		}
		resolver.setter(&cfg, value)
	}

	return cfg
}

// loadParamsFromFile reads a JSON parameter file layered over the stock
// defaults, then validates the result.
func loadParamsFromFile(path string) (ecosim.Params, error) {
	params := ecosim.DefaultParams()

	data, err := os.ReadFile(path)
	if err != nil {
		return params, err
	}
	if err := json.Unmarshal(data, &params); err != nil {
		return params, err
	}
	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}
