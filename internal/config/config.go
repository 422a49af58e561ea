package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"iot-fog-pipeline/internal/auth"
	"iot-fog-pipeline/internal/logging"
)

// Config covers all three binaries (cloud, fog, sensors). Each binary reads
// the sections it needs; a single config.yaml can drive the whole pipeline.
type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`

	Logging logging.Config `mapstructure:"logging"`

	Auth auth.Config `mapstructure:"auth"`

	MQTT struct {
		BrokerURL     string `mapstructure:"broker_url"`
		SensorTopic   string `mapstructure:"sensor_topic"`
		ActuatorTopic string `mapstructure:"actuator_topic"`
		QoS           int    `mapstructure:"qos"`
	} `mapstructure:"mqtt"`

	Fog struct {
		Region              string        `mapstructure:"region"`
		CloudURL            string        `mapstructure:"cloud_url"`
		Username            string        `mapstructure:"username"`
		Password            string        `mapstructure:"password"`
		AggregationInterval time.Duration `mapstructure:"aggregation_interval"`
		BufferCapacity      int           `mapstructure:"buffer_capacity"`
		TokenRenewalMargin  time.Duration `mapstructure:"token_renewal_margin"`
		ForwardTimeout      time.Duration `mapstructure:"forward_timeout"`
		MetricsPort         int           `mapstructure:"metrics_port"`
	} `mapstructure:"fog"`

	Predictor struct {
		WindowCapacity int `mapstructure:"window_capacity"`
		MinPoints      int `mapstructure:"min_points"`
		Horizon        int `mapstructure:"horizon"`
	} `mapstructure:"predictor"`

	Alerting struct {
		HighTemperature    float64 `mapstructure:"high_temperature"`
		WarningTemperature float64 `mapstructure:"warning_temperature"`
	} `mapstructure:"alerting"`

	Analysis struct {
		RegionalHeat      float64 `mapstructure:"regional_heat"`
		VibrationMean     float64 `mapstructure:"vibration_mean"`
		VibrationWindow   int     `mapstructure:"vibration_window"`
		VibrationMinCount int     `mapstructure:"vibration_min_count"`
	} `mapstructure:"analysis"`

	Storage struct {
		HistoryCapacity int `mapstructure:"history_capacity"`
	} `mapstructure:"storage"`

	Sensors struct {
		PublishInterval time.Duration `mapstructure:"publish_interval"`
	} `mapstructure:"sensors"`
}

// Load reads config.yaml from path, overlaying environment variables.
// A missing file is not an error; defaults cover every knob except secrets.
func Load(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 5000)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.pretty", false)

	viper.SetDefault("auth.jwt_expiration", 24*time.Hour)

	viper.SetDefault("mqtt.broker_url", "tcp://localhost:1883")
	viper.SetDefault("mqtt.sensor_topic", "sensors/data")
	viper.SetDefault("mqtt.actuator_topic", "actuator/control")
	viper.SetDefault("mqtt.qos", 1)

	viper.SetDefault("fog.region", "south_zone")
	viper.SetDefault("fog.cloud_url", "http://localhost:5000")
	viper.SetDefault("fog.aggregation_interval", 30*time.Second)
	viper.SetDefault("fog.buffer_capacity", 100)
	viper.SetDefault("fog.token_renewal_margin", 300*time.Second)
	viper.SetDefault("fog.forward_timeout", 10*time.Second)
	viper.SetDefault("fog.metrics_port", 9091)

	viper.SetDefault("predictor.window_capacity", 20)
	viper.SetDefault("predictor.min_points", 6)
	viper.SetDefault("predictor.horizon", 3)

	viper.SetDefault("alerting.high_temperature", 38.0)
	viper.SetDefault("alerting.warning_temperature", 35.0)

	viper.SetDefault("analysis.regional_heat", 37.0)
	viper.SetDefault("analysis.vibration_mean", 7.0)
	viper.SetDefault("analysis.vibration_window", 5)
	viper.SetDefault("analysis.vibration_min_count", 3)

	viper.SetDefault("storage.history_capacity", 100)

	viper.SetDefault("sensors.publish_interval", 5*time.Second)
}
