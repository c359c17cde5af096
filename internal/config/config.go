// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package config loads the process-level configuration for the reference
// client: the websocket endpoint, audio device selection, recording sink,
// and logging knobs.
package config

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AppConfig is the realtime client's process-level configuration, unmarshaled
// by viper and validated by go-playground/validator.
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path"`

	WebsocketURL     string            `mapstructure:"websocket_url" validate:"required"`
	WebsocketHeaders map[string]string `mapstructure:"websocket_headers"`
	WebsocketQuery   map[string]string `mapstructure:"websocket_query"`

	InputDeviceIndex  int `mapstructure:"input_device_index"`
	OutputDeviceIndex int `mapstructure:"output_device_index"`

	RecordingPath string `mapstructure:"recording_path"`

	TargetLatencyMs int `mapstructure:"target_latency_ms" validate:"required"`
	MinLatencyMs    int `mapstructure:"min_latency_ms" validate:"required"`
	MaxLatencyMs    int `mapstructure:"max_latency_ms" validate:"required"`
}

// InitConfig wires up a viper instance reading ".env" (or ENV_PATH, if set)
// with defaults and environment-variable overrides, mirroring the
// integration service's loader.
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	if path := os.Getenv("ENV_PATH"); path != "" {
		log.Printf("config: using env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefaults(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: falling back to environment variables: %v", err)
	}

	return vConfig, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "realtime-client")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PATH", "")

	v.SetDefault("WEBSOCKET_URL", "wss://realtime.rapida.ai/v1/session")
	v.SetDefault("INPUT_DEVICE_INDEX", 0)
	v.SetDefault("OUTPUT_DEVICE_INDEX", 0)
	v.SetDefault("RECORDING_PATH", "")

	v.SetDefault("TARGET_LATENCY_MS", 20)
	v.SetDefault("MIN_LATENCY_MS", 10)
	v.SetDefault("MAX_LATENCY_MS", 200)
}

// GetApplicationConfig unmarshals and validates the AppConfig from v.
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		log.Printf("config: unmarshal failed: %+v", err)
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		log.Printf("config: validation failed: %+v", err)
		return nil, err
	}
	return &cfg, nil
}
