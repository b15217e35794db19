package config

type Config interface {
	EnvConfig
}

type EnvConfig interface {
	GetRegion() string
	GetApp() string
	GetCacheDir() string
	GetUsername() string
	GetPassword() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
