/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
/*
	jitdash exposes an Engine's counters over a websocket so an operator
	can watch page turnover live instead of grepping log lines.
*/
package main

import "os"
import "fmt"
import "flag"
import "time"
import "net/http"
import "encoding/json"
import "github.com/fsnotify/fsnotify"
import "github.com/gorilla/websocket"
import "github.com/docker/go-units"
import "github.com/launix-de/threadjit/jit"

var engine jit.Engine
var pollInterval = time.Second

func main() {
	var addr string
	var configPath string
	flag.StringVar(&addr, "addr", ":8089", "address to serve the dashboard on")
	flag.StringVar(&configPath, "config", "", "optional config file; polling interval reloads on change")
	flag.Parse()

	jit.Init(&engine)
	defer jit.Destroy(&engine)

	if configPath != "" {
		loadConfig(configPath)
		watchConfig(configPath)
	}

	http.HandleFunc("/stats", statsWebsocket)
	http.HandleFunc("/", serveIndex)

	fmt.Println("jitdash listening on", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		panic(err)
	}
}

func loadConfig(path string) {
	f, err := os.ReadFile(path)
	if err != nil {
		fmt.Println("jitdash: config read error:", err)
		return
	}
	var cfg struct {
		PollIntervalMillis int `json:"pollIntervalMillis"`
	}
	if err := json.Unmarshal(f, &cfg); err != nil {
		fmt.Println("jitdash: config parse error:", err)
		return
	}
	if cfg.PollIntervalMillis > 0 {
		pollInterval = time.Duration(cfg.PollIntervalMillis) * time.Millisecond
	}
}

// watchConfig hot-reloads the poll interval so an operator can tighten
// or loosen the refresh rate without restarting the process mid-incident.
func watchConfig(path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Println("jitdash: fsnotify unavailable, config hot-reload disabled:", err)
		return
	}
	if err := watcher.Add(path); err != nil {
		fmt.Println("jitdash: watch error:", err)
		return
	}
	go func() {
		for range watcher.Events {
			time.Sleep(10 * time.Millisecond) // let the writer finish
			loadConfig(path)
		}
	}()
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type statsFrame struct {
	PagesMapped     int64  `json:"pagesMapped"`
	BytesCommitted  int64  `json:"bytesCommitted"`
	BytesHuman      string `json:"bytesHuman"`
	HooksPublished  int64  `json:"hooksPublished"`
	ChunksReleased  int64  `json:"chunksReleased"`
	Disabled        bool   `json:"disabled"`
}

func statsWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Println("jitdash: upgrade error:", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		st := engine.Stats()
		frame := statsFrame{
			PagesMapped:    st.PagesMapped,
			BytesCommitted: st.BytesCommitted,
			BytesHuman:     units.BytesSize(float64(st.BytesCommitted)),
			HooksPublished: st.HooksPublished,
			ChunksReleased: st.ChunksReleased,
			Disabled:       st.Disabled,
		}
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
	}
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, `<!doctype html>
<title>threadjit dashboard</title>
<pre id="out">connecting...</pre>
<script>
var ws = new WebSocket("ws://" + location.host + "/stats");
ws.onmessage = function(e) { document.getElementById("out").textContent = e.data; };
</script>`)
}
