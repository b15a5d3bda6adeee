// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019, 2020 Bernd Fix  >Y<
//
// gnunet-go is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// gnunet-go is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"meshnode/adminrpc"
	"meshnode/config"
	"meshnode/identity"
	"meshnode/node"
	"meshnode/store"
	"meshnode/util"

	"github.com/bfix/gospel/logger"
)

// peerBookPruneAge is how long a peer book record may go without being
// re-observed before the housekeeping tick removes it.
const peerBookPruneAge = 7 * 24 * time.Hour

// identitySeedSize is the length in bytes of an identity seed.
const identitySeedSize = 32

func main() {
	var cfgFile string
	var seedPath string
	flag.StringVar(&cfgFile, "c", "node.json", "path to node configuration file")
	flag.StringVar(&seedPath, "k", "", "path to a 32-byte base32 identity seed (generated if absent)")
	flag.Parse()

	if err := config.ParseConfig(cfgFile); err != nil {
		fmt.Println("config failed: " + err.Error())
		return
	}
	cfg := config.Cfg

	self, err := loadOrGenerateIdentity(seedPath)
	if err != nil {
		fmt.Println("identity failed: " + err.Error())
		return
	}

	fmt.Println("======================================================================")
	fmt.Println("meshnode peer                                    (c) 2026 by the author")
	fmt.Printf("    Identity '%s'\n", self.Address())
	fmt.Println("======================================================================")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionTTL := time.Duration(cfg.SessionTTLSeconds) * time.Second
	if sessionTTL <= 0 {
		sessionTTL = 5 * time.Minute
	}

	kv, err := store.Open(store.Config{Mode: store.Mode(cfg.Store.Mode), DSN: cfg.Store.DSN})
	if err != nil {
		logger.Printf(logger.WARN, "[main] store open failed, running without persistence: %s\n", err.Error())
		kv = nil
	}

	n := node.New(self, node.Config{
		BindIP:           cfg.IP,
		Port:             cfg.Port,
		SessionTTL:       sessionTTL,
		Store:            kv,
		ReplayWindowSize: cfg.ReplayWindow,
	}, func(from identity.Address, text string) {
		fmt.Printf("%s: %s\n", from, text)
	})

	for _, seed := range cfg.Seeds {
		if err := n.Handler.Book.Seed(seed.Name, seed.Server, 5*time.Second); err != nil {
			logger.Printf(logger.WARN, "[main] seed %s failed: %s\n", seed.Name, err.Error())
		}
	}

	if cfg.AdminPort != 0 {
		admin := adminrpc.New(self, n.Handler, fmt.Sprintf("%s:%d", cfg.IP, cfg.AdminPort))
		admin.Start(ctx)
	}

	go func() {
		if err := n.Start(ctx); err != nil {
			logger.Printf(logger.ERROR, "[main] node start failed: %s\n", err.Error())
		}
	}()

	sigCh := make(chan os.Signal, 5)
	signal.Notify(sigCh)
	tick := time.NewTicker(5 * time.Minute)
	defer tick.Stop()

loop:
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGKILL, syscall.SIGINT, syscall.SIGTERM:
				logger.Printf(logger.INFO, "Terminating service (on signal '%s')\n", sig)
				break loop
			case syscall.SIGHUP:
				logger.Println(logger.INFO, "SIGHUP")
			default:
				logger.Println(logger.INFO, "Unhandled signal: "+sig.String())
			}
		case now := <-tick.C:
			logger.Println(logger.INFO, "Heart beat at "+now.String())
			if removed := n.Handler.Book.Prune(peerBookPruneAge); removed > 0 {
				logger.Printf(logger.INFO, "[main] pruned %d stale peer book entries\n", removed)
			}
		}
	}
	n.Stop(cancel)
}

func loadOrGenerateIdentity(seedPath string) (*identity.Identity, error) {
	if seedPath == "" {
		return identity.Generate()
	}
	data, err := os.ReadFile(seedPath)
	if err != nil {
		if os.IsNotExist(err) {
			id, genErr := identity.Generate()
			if genErr != nil {
				return nil, genErr
			}
			enc := util.EncodeBinaryToString(id.Seed())
			if writeErr := os.WriteFile(seedPath, []byte(enc), 0600); writeErr != nil {
				logger.Printf(logger.WARN, "[main] could not persist identity seed: %s\n", writeErr.Error())
			}
			return id, nil
		}
		return nil, err
	}
	seed, err := util.DecodeStringToBinary(strings.TrimSpace(string(data)), identitySeedSize)
	if err != nil {
		return nil, err
	}
	return identity.FromSeed(seed)
}
