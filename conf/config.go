/*
 * Copyright 2026 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package conf loads the yaml configuration shared by pouchd and pouch.
package conf

import (
	"io/ioutil"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	validator "gopkg.in/go-playground/validator.v9"
	yaml "gopkg.in/yaml.v2"

	"github.com/CovenantSQL/SecretLedger/proto"
	"github.com/CovenantSQL/SecretLedger/utils"
	"github.com/CovenantSQL/SecretLedger/utils/log"
)

// ErrInvalidConfig indicates a config that failed validation.
var ErrInvalidConfig = errors.New("invalid config")

const (
	// DefaultListenAddr is the default pouchd listen address.
	DefaultListenAddr = "127.0.0.1:4661"
	// DefaultRevealValidity bounds the validity a reveal assertion may claim.
	DefaultRevealValidity = 365 * 24 * time.Hour
	// DefaultUnlockValidity is the session validity requested by clients.
	DefaultUnlockValidity = 10 * 24 * time.Hour
	// DefaultMetricLogInterval is the period of the metric log dump.
	DefaultMetricLogInterval = 5 * time.Second
)

// LedgerConfig defines the ledger served by pouchd.
type LedgerConfig struct {
	ID         proto.LedgerID `yaml:"ID" validate:"required"`
	ListenAddr string         `yaml:"ListenAddr" validate:"required"`
	DataDir    string         `yaml:"DataDir" validate:"required"`
	// remote vault to mint keys with, the embedded vault is used when empty.
	VaultEndpoint string `yaml:"VaultEndpoint" validate:"omitempty,url"`
	// bearer token presented to a remote vault.
	ServiceToken string `yaml:"ServiceToken"`
}

// VaultConfig defines the vault embedded in pouchd.
type VaultConfig struct {
	ChainID           int64         `yaml:"ChainID" validate:"required,gt=0"`
	KeyFile           string        `yaml:"KeyFile" validate:"required"`
	DataDir           string        `yaml:"DataDir"`
	MaxRevealValidity time.Duration `yaml:"MaxRevealValidity" validate:"gte=0"`
	// bearer token required on mint and allow, service routes are closed
	// when empty.
	ServiceToken string `yaml:"ServiceToken"`
}

// ClientConfig defines the pouch command defaults.
type ClientConfig struct {
	KeyFile        string        `yaml:"KeyFile"`
	LedgerEndpoint string        `yaml:"LedgerEndpoint" validate:"omitempty,url"`
	VaultEndpoint  string        `yaml:"VaultEndpoint" validate:"omitempty,url"`
	Validity       time.Duration `yaml:"Validity" validate:"gte=0"`
	Workers        int           `yaml:"Workers" validate:"gte=0"`
	CacheSize      int           `yaml:"CacheSize" validate:"gte=0"`
}

// MetricConfig defines metric exports.
type MetricConfig struct {
	GraphiteServer string        `yaml:"GraphiteServer"`
	LogInterval    time.Duration `yaml:"LogInterval" validate:"gte=0"`
}

// Config is the root of a config file.
type Config struct {
	// relative paths are resolved against WorkingRoot, which defaults to
	// the directory of the config file.
	WorkingRoot string `yaml:"WorkingRoot"`
	LogLevel    string `yaml:"LogLevel" validate:"omitempty,oneof=debug info warning error"`

	Ledger *LedgerConfig `yaml:"Ledger"`
	Vault  *VaultConfig  `yaml:"Vault"`
	Client *ClientConfig `yaml:"Client"`
	Metric *MetricConfig `yaml:"Metric"`
}

// LoadConfig loads config from configPath.
func LoadConfig(configPath string) (config *Config, err error) {
	configBytes, err := ioutil.ReadFile(configPath)
	if err != nil {
		log.WithError(err).Error("read config file failed")
		return nil, errors.Wrap(err, "read config file failed")
	}
	if config, err = ParseConfig(configBytes); err != nil {
		return nil, err
	}
	if config.WorkingRoot == "" {
		config.WorkingRoot = filepath.Dir(configPath)
	}
	config.resolvePaths()
	return
}

// ParseConfig parses and validates yaml configBytes. Paths are left as is.
func ParseConfig(configBytes []byte) (config *Config, err error) {
	config = &Config{}
	if err = yaml.Unmarshal(configBytes, config); err != nil {
		log.WithError(err).Error("unmarshal config file failed")
		return nil, errors.Wrap(err, "unmarshal config file failed")
	}
	config.setDefaults()
	if err = validator.New().Struct(config); err != nil {
		log.WithError(err).Error("validate config failed")
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return
}

func (c *Config) setDefaults() {
	if c.Ledger != nil && c.Ledger.ListenAddr == "" {
		c.Ledger.ListenAddr = DefaultListenAddr
	}
	if c.Vault != nil && c.Vault.MaxRevealValidity == 0 {
		c.Vault.MaxRevealValidity = DefaultRevealValidity
	}
	if c.Client != nil && c.Client.Validity == 0 {
		c.Client.Validity = DefaultUnlockValidity
	}
	if c.Metric != nil && c.Metric.LogInterval == 0 {
		c.Metric.LogInterval = DefaultMetricLogInterval
	}
}

func (c *Config) resolvePaths() {
	root := c.WorkingRoot
	if c.Ledger != nil {
		c.Ledger.DataDir = utils.ResolvePath(root, c.Ledger.DataDir)
	}
	if c.Vault != nil {
		c.Vault.KeyFile = utils.ResolvePath(root, c.Vault.KeyFile)
		c.Vault.DataDir = utils.ResolvePath(root, c.Vault.DataDir)
	}
	if c.Client != nil {
		c.Client.KeyFile = utils.ResolvePath(root, c.Client.KeyFile)
	}
}
