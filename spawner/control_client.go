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

package spawner

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ControlClient is the Gateway-side half of the Gateway<->Spawner pipe
// protocol.
type ControlClient struct {
	conn *net.UnixConn
}

// DialControl connects to the Spawner's control socket at path.
func DialControl(path string) (*ControlClient, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("spawner: resolving control socket %s: %w", path, err)
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("spawner: dialing control socket %s: %w", path, err)
	}
	return &ControlClient{conn: conn}, nil
}

// Spawn sends "spawn n", asking the Spawner to keep n Workers warm.
func (c *ControlClient) Spawn(n int) error {
	_, err := fmt.Fprintf(c.conn, "spawn %d\n", n)
	return err
}

// SetConfig sends "setconfig rlimit value".
func (c *ControlClient) SetConfig(rlimit, value string) error {
	_, err := fmt.Fprintf(c.conn, "setconfig %s %s\n", rlimit, value)
	return err
}

// Exit tells the Spawner to kill its warm pool and stop.
func (c *ControlClient) Exit() error {
	_, err := fmt.Fprint(c.conn, "exit\n")
	return err
}

// Close closes the underlying connection.
func (c *ControlClient) Close() error { return c.conn.Close() }

// SpareWorker is one forked, jailed Worker the Spawner handed over: its pid
// for liveness/admin display, its jail path, and the Gateway<->Worker
// socket ready to be wrapped in a wsframe.Conn.
type SpareWorker struct {
	Pid  int
	Jail string
	Conn net.Conn
}

// Event is either a spare Worker handoff or a segfault count report;
// exactly one field is set per Event.
type Event struct {
	Spare         *SpareWorker
	SegfaultCount int
}

// Events starts a goroutine reading every line - and any fd riding with it
// - off the control connection, and returns the channel it publishes on.
// The channel closes when the connection does.
func (c *ControlClient) Events() <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		buf := make([]byte, 4096)
		oob := make([]byte, unix.CmsgSpace(4))
		for {
			n, oobn, _, _, err := c.conn.ReadMsgUnix(buf, oob)
			if err != nil {
				return
			}
			for _, line := range strings.Split(strings.TrimRight(string(buf[:n]), "\n"), "\n") {
				fields := strings.Fields(line)
				if len(fields) == 0 {
					continue
				}
				ev, ok := decodeEvent(fields, oob[:oobn])
				if ok {
					out <- ev
				}
			}
		}
	}()
	return out
}

func decodeEvent(fields []string, oob []byte) (Event, bool) {
	switch fields[0] {
	case "segfaultcount":
		if len(fields) != 2 {
			return Event{}, false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return Event{}, false
		}
		return Event{SegfaultCount: n}, true
	case "spare":
		if len(fields) != 3 || len(oob) == 0 {
			return Event{}, false
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			return Event{}, false
		}
		fd, err := firstRights(oob)
		if err != nil {
			return Event{}, false
		}
		f := os.NewFile(uintptr(fd), "worker-conn")
		conn, err := net.FileConn(f)
		f.Close()
		if err != nil {
			return Event{}, false
		}
		return Event{Spare: &SpareWorker{Pid: pid, Jail: fields[2], Conn: conn}}, true
	default:
		return Event{}, false
	}
}

func firstRights(oob []byte) (int, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return 0, err
	}
	for _, m := range msgs {
		fds, err := unix.ParseUnixRights(&m)
		if err == nil && len(fds) > 0 {
			return fds[0], nil
		}
	}
	return 0, fmt.Errorf("spawner: control message carried no file descriptor")
}
