package config

import (
	"fmt"
	"os"
	"strings"
)

// ReadSecret reads a secret from the standard Docker Secrets path,
// falling back to the named environment variable when no file is mounted.
func ReadSecret(secretName, envKey string) (string, error) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err == nil {
		secret := strings.TrimSpace(string(secretBytes))
		if secret == "" {
			return "", fmt.Errorf("secret file %s is empty", filePath)
		}
		return secret, nil
	}
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret %s not found: no file at %s and %s is not set", secretName, filePath, envKey)
}

// overrideFromSecret replaces *dst with the secret file's contents when
// the file exists. Missing files are not an error here; provider keys are
// optional until a request needs them.
func overrideFromSecret(dst *string, secretName string) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	if v := strings.TrimSpace(string(secretBytes)); v != "" {
		*dst = v
	}
}
