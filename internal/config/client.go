package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// ClientConfig holds everything the lobby core needs to reach the platform.
type ClientConfig struct {
	APIURL    string `env:"API_URL,required,notEmpty"`
	SocketURL string `env:"SOCKET_URL,required,notEmpty"`
	AppURL    string `env:"APP_URL" envDefault:"*"`

	AssetBaseURL     string `env:"ASSET_BASE_URL" envDefault:"https://d1mr0h2b9az9mp.cloudfront.net/tempBuilds"`
	PixiAssetURL     string `env:"PIXI_ASSET_URL" envDefault:"https://s3.eu-west-2.amazonaws.com/static.inferixai.link/pixi-game-assets/"`
	LoadingScreenURL string `env:"LOADING_SCREEN_URL" envDefault:"https://s3.eu-west-2.amazonaws.com/static.inferixai.link/LoadingScreens"`

	ReconnectDelay       time.Duration `env:"WS_RECONNECT_DELAY" envDefault:"5s"`
	MaxReconnectAttempts int           `env:"WS_MAX_RECONNECT_ATTEMPTS" envDefault:"1000"`
	BalancePollInterval  time.Duration `env:"BALANCE_POLL_INTERVAL" envDefault:"10s"`
	ConnectivityInterval time.Duration `env:"CONNECTIVITY_INTERVAL" envDefault:"5s"`
	ConnectivityProbeURL string        `env:"CONNECTIVITY_PROBE_URL"`
	HTTPTimeout          time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
	RuntimeQuitTimeout   time.Duration `env:"RUNTIME_QUIT_TIMEOUT" envDefault:"5s"`

	OperatorID string `env:"OPERATOR_ID" envDefault:"BOUGEE"`
	PartnerID  string `env:"PARTNER_ID" envDefault:"INR"`
	PlatformID string `env:"PLATFORM_ID" envDefault:"desktop"`
	LobbyType  string `env:"LOBBY_TYPE" envDefault:"LIVE:VIRTUAL"`
}

func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	err := env.Parse(&cfg)
	return cfg, err
}
