// Package scan runs the continuous barcode decode loop over a live frame
// stream. Each frame either yields a candidate symbol or noise; noise is the
// steady state and never treated as a failure.
package scan

import (
	"image"
	"log"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// EventKind distinguishes decode outcomes.
type EventKind int

const (
	// Noise means the frame held no recognizable symbol.
	Noise EventKind = iota
	// Candidate means a symbol was read; the text is not yet validated.
	Candidate
)

// Event is one decode-loop output.
type Event struct {
	Kind EventKind
	Text string
}

// symbolReader matches gozxing.Reader, kept as a local interface so tests can
// substitute a canned decoder.
type symbolReader interface {
	Decode(*gozxing.BinaryBitmap, map[gozxing.DecodeHintType]interface{}) (*gozxing.Result, error)
}

// Loop decodes frames until stopped. Start may be called once per Loop; Stop
// is idempotent and returns only after the decode goroutine has exited, so a
// caller that stops the loop before acting on a candidate cannot race a
// second decode.
type Loop struct {
	reader symbolReader
	hints  map[gozxing.DecodeHintType]interface{}

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	stopped bool
}

// NewLoop builds a loop around an EAN-13 reader, the symbology JAN codes use.
func NewLoop() *Loop {
	return &Loop{
		reader: oned.NewEAN13Reader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Start consumes frames and emits decode events until Stop is called or the
// frame stream closes. Candidate events are delivered reliably; Noise events
// are dropped when the consumer is not ready, since they only feed counters.
func (l *Loop) Start(frames <-chan image.Image) <-chan Event {
	events := make(chan Event, 1)

	l.mu.Lock()
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	stop, done := l.stop, l.done
	l.mu.Unlock()

	go func() {
		defer close(events)
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				ev, ok := l.decodeFrame(frame)
				if !ok {
					continue
				}
				if ev.Kind == Noise {
					select {
					case events <- ev:
					default:
					}
					continue
				}
				select {
				case events <- ev:
				case <-stop:
					return
				}
			}
		}
	}()

	return events
}

// decodeFrame attempts one decode. Faults other than a plain "nothing in this
// frame" are logged but never end the loop.
func (l *Loop) decodeFrame(frame image.Image) (Event, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		log.Printf("[scan] frame binarization failed: %v", err)
		return Event{}, false
	}
	result, err := l.reader.Decode(bmp, l.hints)
	if err != nil {
		if _, notFound := err.(gozxing.NotFoundException); notFound {
			return Event{Kind: Noise}, true
		}
		log.Printf("[scan] decode fault: %v", err)
		return Event{}, false
	}
	return Event{Kind: Candidate, Text: result.GetText()}, true
}

// Stop ends the loop and blocks until the decode goroutine has fully exited.
// Safe to call multiple times or before Start.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stop == nil || l.stopped {
		done := l.done
		l.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	l.stopped = true
	close(l.stop)
	done := l.done
	l.mu.Unlock()
	<-done
}
