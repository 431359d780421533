package config

type AppConfig struct {
	Log     LogConfig
	Client  ClientConfig
	Storage StorageConfig
	Host    HostConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	clientCfg, err := LoadClient()
	if err != nil {
		return AppConfig{}, err
	}
	storageCfg, err := LoadStorage()
	if err != nil {
		return AppConfig{}, err
	}
	hostCfg, err := LoadHost()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Log:     logCfg,
		Client:  clientCfg,
		Storage: storageCfg,
		Host:    hostCfg,
	}, nil
}
