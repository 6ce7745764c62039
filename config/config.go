// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/purchaseloader/internal/cloudstorage"
	"github.com/cardinalhq/purchaseloader/internal/pubsub"
	"github.com/cardinalhq/purchaseloader/internal/sink"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Storage  cloudstorage.Settings  `mapstructure:"storage"`
	Database DatabaseConfig         `mapstructure:"database"`
	HTTP     HTTPConfig             `mapstructure:"http"`
	PubSub   pubsub.BackendSettings `mapstructure:"pubsub"`
	Watch    WatchConfig            `mapstructure:"watch"`
	Stats    StatsConfig            `mapstructure:"stats"`
}

// DatabaseConfig carries sink options. The connection itself comes from
// DATABASE_URL or its parts, see dbopen.
type DatabaseConfig struct {
	Dialect string `mapstructure:"dialect"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type WatchConfig struct {
	Root   string `mapstructure:"root"`
	Bucket string `mapstructure:"bucket"`
}

type StatsConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// SinkDialect returns the configured pgwire dialect.
func (c *Config) SinkDialect() sink.Dialect {
	return sink.Dialect(strings.ToLower(c.Database.Dialect))
}

func defaultConfig() *Config {
	return &Config{
		Storage:  cloudstorage.Settings{Provider: cloudstorage.ProviderGCS},
		Database: DatabaseConfig{Dialect: string(sink.DialectQuestDB)},
		HTTP:     HTTPConfig{Addr: ":8080"},
		PubSub: pubsub.BackendSettings{
			GCP: pubsub.GCPPubSubSettings{MaxOutstandingMessages: 10},
		},
		Watch: WatchConfig{Root: ".", Bucket: "local"},
		Stats: StatsConfig{Interval: time.Minute},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "PURCHASELOADER" and the dot character
// in keys is replaced by an underscore. For example, "storage.provider"
// becomes "PURCHASELOADER_STORAGE_PROVIDER".
func Load() (*Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("PURCHASELOADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string{}, parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
