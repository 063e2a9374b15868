package config

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		ListenAddr string `mapstructure:"listen_addr"`
		PublicIP   string `mapstructure:"public_ip"`
	} `mapstructure:"server"`

	Ports struct {
		Min int `mapstructure:"min"`
		Max int `mapstructure:"max"`
	} `mapstructure:"ports"`

	GameServer struct {
		Executable      string        `mapstructure:"executable"`
		ForceReadyAfter time.Duration `mapstructure:"force_ready_after"`
	} `mapstructure:"game_server"`

	LogLevel string `mapstructure:"log_level"`
}

// Load reads the config file at path. An empty path yields defaults plus
// environment overrides (LOBBYD_ prefix).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.public_ip", "")
	v.SetDefault("ports.min", 10000)
	v.SetDefault("ports.max", 65534)
	v.SetDefault("game_server.executable", "./build-linux-server/build-linux-server.x86_64")
	v.SetDefault("game_server.force_ready_after", time.Duration(0))
	v.SetDefault("log_level", "info")

	v.AutomaticEnv()
	v.SetEnvPrefix("LOBBYD")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if c.Ports.Min <= 0 || c.Ports.Max < c.Ports.Min {
		return nil, fmt.Errorf("invalid port range %d-%d", c.Ports.Min, c.Ports.Max)
	}

	return &c, nil
}

// LocalIP returns the first non-loopback IPv4 address, or empty when the
// host has none. Used when server.public_ip is not configured.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}
