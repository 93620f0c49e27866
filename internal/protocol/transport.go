package protocol

import (
	"bufio"
	"context"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/calebgr/tracedbg/internal/errors"
)

// LineTransport frames a byte stream into newline-delimited protocol
// records. A reader goroutine feeds inbound lines into a channel so the
// command loop can both block on the next line and poll without blocking
// while the program runs; WriteLine flushes before returning so message
// ordering is observable by the remote peer.
type LineTransport struct {
	conn io.ReadWriteCloser

	w   *bufio.Writer
	wmu sync.Mutex

	lines chan inbound

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	maxLine int
}

// inbound is one record from the reader goroutine: a line, or a non-fatal
// read-side error such as an overlong line being dropped.
type inbound struct {
	text string
	err  error
}

// NewLineTransport wraps conn and starts the reader goroutine. maxLine
// bounds inbound line length; zero means no bound.
func NewLineTransport(conn io.ReadWriteCloser, maxLine int) *LineTransport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &LineTransport{
		conn:    conn,
		w:       bufio.NewWriter(conn),
		lines:   make(chan inbound, 64),
		ctx:     ctx,
		cancel:  cancel,
		maxLine: maxLine,
	}
	go t.readLoop()
	return t
}

// readLoop reads the stream until it closes, delivering one line at a
// time. Closing the lines channel signals transport end to readers.
func (t *LineTransport) readLoop() {
	defer close(t.lines)

	r := bufio.NewReader(t.conn)
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		if line != "" {
			rec := inbound{text: line}
			if t.maxLine > 0 && len(line) > t.maxLine {
				log.Printf("protocol: dropping %d byte line (limit %d)", len(line), t.maxLine)
				rec = inbound{err: errors.LineTooLong(len(line), t.maxLine)}
			}
			select {
			case t.lines <- rec:
			case <-t.ctx.Done():
				return
			}
		}

		if err != nil {
			return
		}
	}
}

// ReadLine blocks until a full line is available or the stream closes. A
// dropped overlong line yields a CodeLineTooLong error; the transport
// itself stays usable, unlike the CodeTransportClosed case.
func (t *LineTransport) ReadLine() (string, error) {
	select {
	case rec, ok := <-t.lines:
		if !ok {
			return "", errors.TransportClosed(io.EOF)
		}
		return rec.text, rec.err
	case <-t.ctx.Done():
		return "", errors.TransportClosed(t.ctx.Err())
	}
}

// TryReadLine returns the next pending line without blocking, skipping
// dropped-line records. ok is false when no line is pending; closed is
// true once the stream has ended.
func (t *LineTransport) TryReadLine() (line string, ok, closed bool) {
	for {
		select {
		case rec, chOk := <-t.lines:
			if !chOk {
				return "", false, true
			}
			if rec.err != nil {
				continue
			}
			return rec.text, true, false
		default:
			return "", false, false
		}
	}
}

// WriteLine writes one newline-terminated record and flushes it.
func (t *LineTransport) WriteLine(line string) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	if _, err := t.w.WriteString(line + "\n"); err != nil {
		return errors.Wrap(errors.CodeTransportClosed, "write failed", err)
	}
	if err := t.w.Flush(); err != nil {
		return errors.Wrap(errors.CodeTransportClosed, "flush failed", err)
	}
	return nil
}

// Close shuts the transport down, unblocking any pending ReadLine.
func (t *LineTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.cancel()
		err = t.conn.Close()
	})
	return err
}
