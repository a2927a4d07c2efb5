// Package main is the bufsyncd demo sync consumer: a websocket endpoint
// that maintains remote replicas of synchronized buffers and answers
// every event frame with an acknowledgement or a rejection.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dshills/bufsync/internal/logging"
	"github.com/dshills/bufsync/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

func main() {
	os.Exit(run())
}

func run() int {
	var addr string
	flag.StringVar(&addr, "addr", "127.0.0.1:8990", "listen address")
	flag.Parse()

	logging.ConfigureRuntime()
	log := logging.Logger("bufsyncd")

	r := mux.NewRouter()
	r.HandleFunc("/sync", handleSync).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)

	log.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Error().Err(err).Msg("server failed")
		return 1
	}
	return 0
}

// handleSync serves one agent connection: a fresh replica store, one
// event frame per message, one verdict frame per event.
func handleSync(w http.ResponseWriter, r *http.Request) {
	log := logging.Logger("bufsyncd").With().Str("remote", r.RemoteAddr).Logger()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()
	log.Info().Msg("agent connected")

	replicas := newStore()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Int("open", replicas.size()).Msg("agent disconnected")
			return
		}

		seq, ev, err := transport.DecodeFrame(data)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		reason := ""
		ok := true
		if err := replicas.apply(ev); err != nil {
			ok = false
			reason = err.Error()
			log.Warn().Err(err).Str("event", string(ev.Type())).
				Str("path", ev.EventPath()).Int64("version", int64(ev.EventVersion())).
				Msg("event rejected")
		} else {
			log.Debug().Str("event", string(ev.Type())).Str("path", ev.EventPath()).
				Int64("version", int64(ev.EventVersion())).Msg("event applied")
		}

		if err := conn.WriteMessage(websocket.TextMessage, transport.EncodeAck(seq, ok, reason)); err != nil {
			log.Warn().Err(err).Msg("write verdict failed")
			return
		}
	}
}
