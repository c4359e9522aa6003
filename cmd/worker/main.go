/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command worker is the re-exec target Spawner forks: by the time main
// runs it is already chrooted into its jail with its uid/gid dropped, so
// the only privileged step left in-process is installing the seccomp
// filter before a single byte of untrusted document content is touched.
// After that it reads tile requests from fd 3 (its end of the socket pair
// the Spawner created; the other end goes to the Gateway) and renders them
// on its own main thread. Every tile of one request is rendered before the
// next message is read; the render budget only paces those tiles.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"

	"github.com/CollaboraOnline/online-sub004/logger"
	"github.com/CollaboraOnline/online-sub004/seccomp"
	"github.com/CollaboraOnline/online-sub004/tilecache"
	"github.com/CollaboraOnline/online-sub004/version"
	"github.com/CollaboraOnline/online-sub004/worker"
	"github.com/CollaboraOnline/online-sub004/wsframe"
)

const (
	exitOK          = 0
	exitSoftware    = 70
	exitMissingCaps = 75

	// tilesPerSecond/renderBurst are conservative defaults until a
	// configuration knob for per-worker render throughput exists.
	tilesPerSecond = 60.0
	renderBurst    = 8
)

func main() {
	os.Exit(run())
}

func run() int {
	var jailRoot, jailID string
	root := &cobra.Command{
		Use:     "worker",
		Short:   "Renders one document's tiles inside its seccomp-filtered jail.",
		Version: version.String("worker"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveDocument(jailRoot, jailID)
		},
	}
	root.PersistentFlags().StringVar(&jailRoot, "jail-root", "", "path the worker was chrooted into")
	root.PersistentFlags().StringVar(&jailID, "jail-id", "", "unguessable id naming this jail")

	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		if err == errMissingCaps {
			return exitMissingCaps
		}
		return exitSoftware
	}
	return exitOK
}

func serveDocument(jailRoot, jailID string) error {
	log := logger.New(colorable.NewColorable(os.Stdout), logger.InfoLevel)
	log.Info("starting", logger.Fields{"component": version.String("worker"), "jail": jailRoot, "jail_id": jailID})

	if err := seccomp.Install(); err != nil {
		// A syscall filter that fails to load means an untrusted document
		// would be rendered without the sandbox the jail exists to provide -
		// that's a missing capability, not a condition to run degraded under.
		fmt.Fprintf(os.Stderr, "worker: installing seccomp filter: %v\n", err)
		return errMissingCaps
	}

	budget := worker.NewRenderBudget(tilesPerSecond, renderBurst)
	pipe := os.NewFile(3, "spawner-pipe")
	if pipe == nil {
		return fmt.Errorf("worker: fork pipe (fd 3) not present")
	}
	defer pipe.Close()

	return messageLoop(pipe, budget, log)
}

// errMissingCaps signals serveDocument's caller to exit 75 instead of 70;
// cobra's RunE only carries an error, so the distinction is made by a
// sentinel rather than a second return value.
var errMissingCaps = fmt.Errorf("missing sandboxing capability")

// messageLoop is the Worker's single-threaded main loop: read frames from
// the Gateway<->Worker socket, decode the WebSocket framing directly (no
// socket.Poll here - this process services exactly one peer and never does
// anything but block on it between renders), and dispatch each complete
// message. Tile renders are paced against budget; a tile request is rendered
// to completion before this loop reads the pipe again.
func messageLoop(pipe *os.File, budget *worker.RenderBudget, log logger.Logger) error {
	var buf []byte
	chunk := make([]byte, 64*1024)
	for {
		n, err := pipe.Read(chunk)
		if err != nil {
			if err == io.EOF {
				log.Info("spawner closed the pipe, exiting", logger.Fields{})
				return nil
			}
			return fmt.Errorf("worker: reading from spawner pipe: %w", err)
		}
		if n == 0 {
			continue
		}
		buf = append(buf, chunk[:n]...)

		for {
			frame, consumed, ferr := wsframe.Decode(buf)
			if ferr != nil {
				return fmt.Errorf("worker: decoding frame: %w", ferr)
			}
			if consumed == 0 {
				break
			}
			buf = buf[consumed:]

			switch frame.Opcode {
			case wsframe.OpText, wsframe.OpBinary:
				if err := handleCommand(pipe, budget, frame.Payload, log); err != nil {
					log.Warn("handling command", logger.Fields{"error": err.Error()})
				}
			case wsframe.OpPing:
				if err := writeFrame(pipe, wsframe.OpPong, frame.Payload); err != nil {
					return err
				}
			case wsframe.OpClose:
				return nil
			}
		}
	}
}

// handleCommand dispatches one decoded message per the client message
// grammar: first token is the command, the rest space-separated
// key=value arguments.
func handleCommand(pipe *os.File, budget *worker.RenderBudget, payload []byte, log logger.Logger) error {
	cmd, rest := splitCommand(payload)
	switch cmd {
	case "tile", "tilecombine":
		return handleTileRequest(pipe, budget, cmd == "tilecombine", rest, log)
	case "save":
		body := worker.SerializePlaceholder(time.Now())
		return writeFrame(pipe, wsframe.OpBinary, append([]byte("saveas result=ok\n"), body...))
	case "ping":
		return writeFrame(pipe, wsframe.OpBinary, []byte("pong"))
	default:
		log.Warn("unrecognised command", logger.Fields{"cmd": cmd})
		return nil
	}
}

// handleTileRequest renders every tile a "tile"/"tilecombine" command
// names and writes each back as its own "tile: <descriptor>\n<bitmap>"
// message. Renders wait on budget for at most worker.YieldInterval from the
// start of the request; after that the remaining tiles render without
// waiting. The pipe is not read until every tile has been written.
func handleTileRequest(pipe *os.File, budget *worker.RenderBudget, combine bool, rest string, log logger.Logger) error {
	descs, err := tilecache.ParseTileRequest(combine, rest)
	if err != nil {
		cmd := "tile"
		if combine {
			cmd = "tilecombine"
		}
		return writeFrame(pipe, wsframe.OpBinary, []byte(fmt.Sprintf("error: cmd=%s kind=syntax", cmd)))
	}

	deadline := time.Now().Add(worker.YieldInterval)
	for _, d := range descs {
		for !budget.Allow() {
			if time.Now().After(deadline) {
				break
			}
			time.Sleep(time.Millisecond)
		}
		bitmap := worker.RenderPlaceholder(d.Key)
		header := "tile: " + d.Key.String() + "\n"
		if err := writeFrame(pipe, wsframe.OpBinary, append([]byte(header), bitmap...)); err != nil {
			return err
		}
	}
	return nil
}

func writeFrame(pipe *os.File, op wsframe.Opcode, payload []byte) error {
	_, err := pipe.Write(wsframe.Encode(op, true, payload))
	return err
}

// splitCommand splits a message into its leading command token and the
// remainder, per the client message grammar: first token is the command,
// everything after is space-separated key=value arguments.
func splitCommand(msg []byte) (cmd, rest string) {
	s := strings.TrimSpace(string(msg))
	i := strings.IndexByte(s, ' ')
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}
