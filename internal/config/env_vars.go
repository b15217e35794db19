package config

import "os"

const (
	regionEnvVar   = "CVV_REGION"
	appEnvVar      = "CVV_APP"
	cacheDirEnvVar = "CVV_CACHE_DIR"
	usernameEnvVar = "CVV_USERNAME"
	passwordEnvVar = "CVV_PASSWORD"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetRegion() string {
	return GetEnv(regionEnvVar, "it")
}

func (EnvVars) GetApp() string {
	return GetEnv(appEnvVar, "")
}

// GetCacheDir returns the directory for the session cache file. An empty
// value lets the client pick the user cache directory.
func (EnvVars) GetCacheDir() string {
	return GetEnv(cacheDirEnvVar, "")
}

func (EnvVars) GetUsername() string {
	return GetEnv(usernameEnvVar, "")
}

func (EnvVars) GetPassword() string {
	return GetEnv(passwordEnvVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
