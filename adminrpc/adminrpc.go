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

// Package adminrpc exposes the node's non-peer administrative surface: a
// mux-routed HTTP server carrying a JSON-RPC Status service. None of
// this traffic touches the frame/command path; it exists purely for
// operators and monitoring.
package adminrpc

import (
	"context"
	"net/http"
	"time"

	"meshnode/handlers"
	"meshnode/identity"

	"github.com/bfix/gospel/logger"
	"github.com/gorilla/mux"
	gorpc "github.com/gorilla/rpc"
	"github.com/gorilla/rpc/json"
)

// StatusService implements the JSON-RPC methods exposed over the admin
// endpoint.
type StatusService struct {
	self      *identity.Identity
	hctx      *handlers.Context
	startTime time.Time
}

// StatusArgs is the (empty) argument struct for Status.Get.
type StatusArgs struct{}

// StatusReply is the result of Status.Get.
type StatusReply struct {
	Address       string `json:"address"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	PeerCount     int    `json:"peerCount"`
}

// Get returns the node's address, uptime, and current peer count — the
// "non-peer traffic" counterpart to the frame/command admin surface.
func (s *StatusService) Get(r *http.Request, args *StatusArgs, reply *StatusReply) error {
	reply.Address = s.self.Address().String()
	reply.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
	reply.PeerCount = len(s.hctx.Book.All())
	return nil
}

// Server wraps the mux router and the HTTP server serving it.
type Server struct {
	router *mux.Router
	http   *http.Server
}

// New builds the admin router: a gorilla/rpc JSON-RPC endpoint at
// /rpc carrying StatusService, mounted on addr.
func New(self *identity.Identity, hctx *handlers.Context, addr string) *Server {
	rpcServer := gorpc.NewServer()
	rpcServer.RegisterCodec(json.NewCodec(), "application/json")
	if err := rpcServer.RegisterService(&StatusService{self: self, hctx: hctx, startTime: time.Now()}, ""); err != nil {
		logger.Printf(logger.ERROR, "[adminrpc] register Status service failed: %s\n", err.Error())
	}

	router := mux.NewRouter()
	router.Handle("/rpc", rpcServer)

	return &Server{
		router: router,
		http: &http.Server{
			Handler:      router,
			Addr:         addr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

// Router exposes the underlying mux router so a caller can register
// additional application routes alongside the RPC endpoint.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start runs the admin HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf(logger.WARN, "[adminrpc] server listen failed: %s\n", err.Error())
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			logger.Printf(logger.WARN, "[adminrpc] server shutdown failed: %s\n", err.Error())
		}
	}()
}
