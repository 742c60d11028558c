// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package main

import (
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/alethea-net/oracle/alethea"
	"github.com/alethea-net/oracle/log"
	"github.com/alethea-net/oracle/registry"
)

func fatal(args ...interface{}) {
	fmt.Fprint(os.Stderr, "Fatal: ")
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".oracled")
}

func initLogger(ctx *cli.Context) {
	var level slog.LevelVar
	level.Set(log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)))
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, &level, useColor)))
}

// genesisConfig is the YAML shape of the --genesis file.
type genesisConfig struct {
	Admin           string `yaml:"admin"`
	MinStake        string `yaml:"minStake"`
	MinVotesDefault uint32 `yaml:"minVotesDefault"`
	QueryDuration   uint64 `yaml:"queryDuration"`
	RewardBps       uint32 `yaml:"rewardBps"`
	SlashBps        uint32 `yaml:"slashBps"`
	ProtocolFeeBps  uint32 `yaml:"protocolFeeBps"`
}

// loadGenesis resolves the admin identity and parameter overrides from the
// --genesis file and the --admin flag. The flag wins over the file.
func loadGenesis(ctx *cli.Context) (alethea.Address, *registry.ProtocolParameters, error) {
	params := registry.DefaultParameters()
	var admin alethea.Address

	if path := ctx.String(genesisFlag.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return alethea.Address{}, nil, errors.WithMessage(err, "read genesis file")
		}
		var cfg genesisConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return alethea.Address{}, nil, errors.WithMessage(err, "decode genesis file")
		}
		if cfg.Admin != "" {
			addr, err := alethea.ParseAddress(cfg.Admin)
			if err != nil {
				return alethea.Address{}, nil, errors.WithMessage(err, "genesis admin")
			}
			admin = *addr
		}
		if cfg.MinStake != "" {
			minStake, ok := new(big.Int).SetString(cfg.MinStake, 10)
			if !ok {
				return alethea.Address{}, nil, errors.Errorf("genesis minStake: invalid amount %q", cfg.MinStake)
			}
			params.MinStake = minStake
		}
		if cfg.MinVotesDefault != 0 {
			params.MinVotesDefault = cfg.MinVotesDefault
		}
		if cfg.QueryDuration != 0 {
			params.QueryDuration = cfg.QueryDuration
		}
		if cfg.RewardBps != 0 {
			params.RewardBps = cfg.RewardBps
		}
		if cfg.SlashBps != 0 {
			params.SlashBps = cfg.SlashBps
		}
		if cfg.ProtocolFeeBps != 0 {
			params.ProtocolFeeBps = cfg.ProtocolFeeBps
		}
	}

	if hex := ctx.String(adminFlag.Name); hex != "" {
		addr, err := alethea.ParseAddress(hex)
		if err != nil {
			return alethea.Address{}, nil, errors.WithMessage(err, "admin flag")
		}
		admin = *addr
	}
	if err := params.Validate(); err != nil {
		return alethea.Address{}, nil, err
	}
	return admin, params, nil
}

func makeDataDir(ctx *cli.Context) string {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		fatal(fmt.Sprintf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name))
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fatal(fmt.Sprintf("create data dir [%v]: %v", dataDir, err))
	}
	return dataDir
}
