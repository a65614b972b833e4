package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret returns the secret named envName. When envName_FILE is set the
// secret is read from that file (trimmed) and envName itself is ignored.
// An unset secret is the empty string.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, filePath, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// Credentials are the basic-auth and broker secrets of the service.
type Credentials struct {
	AdminUser     string
	AdminPass     string
	OperatorUser  string
	OperatorPass  string
	MQTTPassword  string
	RedisPassword string
}

// ResolveCredentials resolves every service secret, stopping at the first unreadable file.
func ResolveCredentials() (Credentials, error) {
	var c Credentials
	for _, s := range []struct {
		env string
		dst *string
	}{
		{"ASTARVIZ_ADMIN_USER", &c.AdminUser},
		{"ASTARVIZ_ADMIN_PASS", &c.AdminPass},
		{"ASTARVIZ_OPERATOR_USER", &c.OperatorUser},
		{"ASTARVIZ_OPERATOR_PASS", &c.OperatorPass},
		{"MQTT_PASSWORD", &c.MQTTPassword},
		{"REDIS_PASSWORD", &c.RedisPassword},
	} {
		v, err := ResolveSecret(s.env)
		if err != nil {
			return Credentials{}, err
		}
		*s.dst = v
	}
	return c, nil
}
