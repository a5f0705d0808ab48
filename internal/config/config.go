// Package config loads Cosmos DB connection settings from the process
// environment.
//
// Four variables are required and two are optional with documented
// defaults. Loading fails fast on a missing required variable or an
// unrecognized enum value so a misconfigured server never starts.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variable names read by Load.
const (
	EnvEndpoint         = "COSMOS_ENDPOINT"
	EnvKey              = "COSMOS_KEY"
	EnvDatabaseName     = "COSMOS_DATABASE_NAME"
	EnvContainerName    = "COSMOS_CONTAINER_NAME"
	EnvConsistencyLevel = "COSMOS_CONSISTENCY_LEVEL"
	EnvConnectionMode   = "COSMOS_CONNECTION_MODE"
)

// ConsistencyLevel is the read consistency requested from the Cosmos DB
// service on every operation.
type ConsistencyLevel string

const (
	ConsistencyStrong           ConsistencyLevel = "Strong"
	ConsistencyBoundedStaleness ConsistencyLevel = "BoundedStaleness"
	ConsistencySession          ConsistencyLevel = "Session"
	ConsistencyConsistentPrefix ConsistencyLevel = "ConsistentPrefix"
	ConsistencyEventual         ConsistencyLevel = "Eventual"
)

// ConnectionMode selects how the client reaches the Cosmos DB service.
type ConnectionMode string

const (
	ConnectionGateway ConnectionMode = "Gateway"
	ConnectionDirect  ConnectionMode = "Direct"
)

// Config holds the connection parameters for one database/container pair.
// It is immutable after Load. The access key must never appear in logs
// or error messages.
type Config struct {
	// Endpoint is the account URL, e.g. https://myaccount.documents.azure.com:443/.
	Endpoint string

	// Key is the account access key (secret).
	Key string

	// DatabaseName is the target database id.
	DatabaseName string

	// ContainerName is the target container id within the database.
	ContainerName string

	// ConsistencyLevel defaults to Session.
	ConsistencyLevel ConsistencyLevel

	// ConnectionMode defaults to Gateway.
	ConnectionMode ConnectionMode
}

// Load reads the connection configuration from the environment.
//
// Returns an error naming the first missing required variable, or an
// error listing the accepted values when an optional enum variable is
// set to something unrecognized. Whitespace around values is ignored.
func Load() (Config, error) {
	cfg := Config{
		Endpoint:      strings.TrimSpace(os.Getenv(EnvEndpoint)),
		Key:           strings.TrimSpace(os.Getenv(EnvKey)),
		DatabaseName:  strings.TrimSpace(os.Getenv(EnvDatabaseName)),
		ContainerName: strings.TrimSpace(os.Getenv(EnvContainerName)),
	}

	required := []struct {
		name  string
		value string
	}{
		{EnvEndpoint, cfg.Endpoint},
		{EnvKey, cfg.Key},
		{EnvDatabaseName, cfg.DatabaseName},
		{EnvContainerName, cfg.ContainerName},
	}
	for _, r := range required {
		if r.value == "" {
			return Config{}, fmt.Errorf("missing required environment variable: %s", r.name)
		}
	}

	level, err := ParseConsistencyLevel(os.Getenv(EnvConsistencyLevel))
	if err != nil {
		return Config{}, err
	}
	cfg.ConsistencyLevel = level

	mode, err := ParseConnectionMode(os.Getenv(EnvConnectionMode))
	if err != nil {
		return Config{}, err
	}
	cfg.ConnectionMode = mode

	return cfg, nil
}

// ParseConsistencyLevel maps a variable value to a ConsistencyLevel.
// Matching is case-insensitive and tolerates snake_case spellings such
// as "bounded_staleness". An empty value selects the Session default.
func ParseConsistencyLevel(value string) (ConsistencyLevel, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch normalized {
	case "":
		return ConsistencySession, nil
	case "strong":
		return ConsistencyStrong, nil
	case "boundedstaleness":
		return ConsistencyBoundedStaleness, nil
	case "session":
		return ConsistencySession, nil
	case "consistentprefix":
		return ConsistencyConsistentPrefix, nil
	case "eventual":
		return ConsistencyEventual, nil
	default:
		return "", fmt.Errorf("invalid %s %q: expected one of Strong, BoundedStaleness, Session, ConsistentPrefix, Eventual",
			EnvConsistencyLevel, value)
	}
}

// ParseConnectionMode maps a variable value to a ConnectionMode.
// Matching is case-insensitive. An empty value selects the Gateway
// default.
func ParseConnectionMode(value string) (ConnectionMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return ConnectionGateway, nil
	case "gateway":
		return ConnectionGateway, nil
	case "direct":
		return ConnectionDirect, nil
	default:
		return "", fmt.Errorf("invalid %s %q: expected Gateway or Direct", EnvConnectionMode, value)
	}
}
