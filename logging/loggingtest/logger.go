/*
Package loggingtest implements a logger that records its entries, so that
tests can wait for and count expected log messages.
*/
package loggingtest

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zalando/gateway/logging"
)

type logSubscription struct {
	exp      string
	n        int
	response chan<- struct{}
}

type countRequest struct {
	exp      string
	response chan<- int
}

type logWatch struct {
	entries []string
	reqs    []*logSubscription
}

// Logger records the log entries and prints them with the standard log
// package unless muted.
type Logger struct {
	save   chan string
	notify chan<- logSubscription
	count  chan<- countRequest
	clear  chan struct{}
	mute   chan bool
	quit   chan<- struct{}
	fields string
}

var _ logging.Logger = (*Logger)(nil)

var ErrWaitTimeout = errors.New("timeout")

func (lw *logWatch) save(e string) {
	lw.entries = append(lw.entries, e)
	for i := len(lw.reqs) - 1; i >= 0; i-- {
		req := lw.reqs[i]
		if strings.Contains(e, req.exp) {
			req.n--
			if req.n <= 0 {
				close(req.response)
				lw.reqs = append(lw.reqs[:i], lw.reqs[i+1:]...)
			}
		}
	}
}

func (lw *logWatch) notify(req logSubscription) {
	for i := len(lw.entries) - 1; i >= 0; i-- {
		if strings.Contains(lw.entries[i], req.exp) {
			req.n--
			if req.n == 0 {
				break
			}
		}
	}

	if req.n <= 0 {
		close(req.response)
	} else {
		lw.reqs = append(lw.reqs, &req)
	}
}

func (lw *logWatch) count(exp string) int {
	var n int
	for _, e := range lw.entries {
		if strings.Contains(e, exp) {
			n++
		}
	}

	return n
}

func (lw *logWatch) clear() {
	lw.entries = nil
	lw.reqs = nil
}

// New creates a logger. It must be closed when no longer used.
func New() *Logger {
	lw := &logWatch{}
	save := make(chan string)
	notify := make(chan logSubscription)
	count := make(chan countRequest)
	clear := make(chan struct{})
	mute := make(chan bool)
	quit := make(chan struct{})

	go func() {
		var muted bool
		for {
			select {
			case e := <-save:
				if !muted {
					log.Println(e)
					lw.save(e)
				}
			case req := <-notify:
				lw.notify(req)
			case req := <-count:
				req.response <- lw.count(req.exp)
			case <-clear:
				lw.clear()
			case muted = <-mute:
			case <-quit:
				return
			}
		}
	}()

	return &Logger{save: save, notify: notify, count: count, clear: clear, mute: mute, quit: quit}
}

func (l *Logger) logf(f string, a ...any) {
	l.save <- l.fields + fmt.Sprintf(f, a...)
}

func (l *Logger) log(a ...any) {
	l.save <- l.fields + fmt.Sprint(a...)
}

// WaitForN waits until n entries containing exp were logged.
func (l *Logger) WaitForN(exp string, n int, to time.Duration) error {
	found := make(chan struct{}, 1)
	l.notify <- logSubscription{exp, n, found}

	select {
	case <-found:
		return nil
	case <-time.After(to):
		return ErrWaitTimeout
	}
}

// WaitFor waits until an entry containing exp was logged.
func (l *Logger) WaitFor(exp string, to time.Duration) error {
	return l.WaitForN(exp, 1, to)
}

// Count returns the number of entries containing exp.
func (l *Logger) Count(exp string) int {
	rsp := make(chan int)
	l.count <- countRequest{exp, rsp}
	return <-rsp
}

// Reset drops the recorded entries.
func (l *Logger) Reset() {
	l.clear <- struct{}{}
}

// Mute stops recording entries until Unmute is called.
func (l *Logger) Mute()   { l.mute <- true }
func (l *Logger) Unmute() { l.mute <- false }

func (l *Logger) Close() {
	close(l.quit)
}

func (l *Logger) Error(a ...any)            { l.log(a...) }
func (l *Logger) Errorf(f string, a ...any) { l.logf(f, a...) }
func (l *Logger) Warn(a ...any)             { l.log(a...) }
func (l *Logger) Warnf(f string, a ...any)  { l.logf(f, a...) }
func (l *Logger) Info(a ...any)             { l.log(a...) }
func (l *Logger) Infof(f string, a ...any)  { l.logf(f, a...) }
func (l *Logger) Debug(a ...any)            { l.log(a...) }
func (l *Logger) Debugf(f string, a ...any) { l.logf(f, a...) }

// WithFields returns a logger recording into the same entries, prefixing
// them with the fields.
func (l *Logger) WithFields(fields map[string]any) logging.Logger {
	c := *l
	for k, v := range fields {
		c.fields += fmt.Sprintf("%s=%v ", k, v)
	}

	return &c
}
