package logging

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// LoggingWriter records the status and the size of a response for the
// access log.
type LoggingWriter struct {
	writer http.ResponseWriter
	code   int
	bytes  int64
}

func NewLoggingWriter(w http.ResponseWriter) *LoggingWriter {
	return &LoggingWriter{writer: w}
}

func (lw *LoggingWriter) Write(data []byte) (count int, err error) {
	if lw.code == 0 {
		lw.code = http.StatusOK
	}

	count, err = lw.writer.Write(data)
	lw.bytes += int64(count)
	return
}

func (lw *LoggingWriter) WriteHeader(code int) {
	lw.writer.WriteHeader(code)
	if lw.code == 0 || lw.code < 200 {
		lw.code = code
	}
}

func (lw *LoggingWriter) Header() http.Header {
	return lw.writer.Header()
}

func (lw *LoggingWriter) Flush() {
	if f, ok := lw.writer.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack takes over the connection, used by websocket upgrades. A
// hijacked connection is logged with 101 Switching Protocols.
func (lw *LoggingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hij, ok := lw.writer.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("could not hijack connection")
	}

	conn, rw, err := hij.Hijack()
	if err == nil {
		lw.code = http.StatusSwitchingProtocols
	}

	return conn, rw, err
}

// Unwrap returns the wrapped writer, for http.ResponseController.
func (lw *LoggingWriter) Unwrap() http.ResponseWriter { return lw.writer }

// StatusCode returns the status sent, or 0 when nothing was sent.
func (lw *LoggingWriter) StatusCode() int { return lw.code }

// Bytes returns the number of body bytes written.
func (lw *LoggingWriter) Bytes() int64 { return lw.bytes }
