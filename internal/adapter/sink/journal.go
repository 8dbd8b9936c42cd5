package sink

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/core/port"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var journalEncMode cbor.EncMode

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	journalEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create journal CBOR encoder mode: %v", err))
	}
}

// JournalRecord is one entry of the append-only event journal.
type JournalRecord struct {
	Id        string    `cbor:"1,keyasint"`
	Timestamp time.Time `cbor:"2,keyasint"`
	Name      string    `cbor:"3,keyasint"`
	Event     any       `cbor:"4,keyasint"`
}

// JournalSink appends every accepted event to a file as a CBOR sequence.
// It is safe for concurrent use.
type JournalSink struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
	clock   clock.Clock
	filter  func(domain.EnergyEvent) bool
	logger  *zap.Logger
}

type JournalOption func(*JournalSink)

func WithJournalClock(c clock.Clock) JournalOption {
	return func(j *JournalSink) {
		j.clock = c
	}
}

func WithJournalLogger(logger *zap.Logger) JournalOption {
	return func(j *JournalSink) {
		j.logger = logger
	}
}

// WithoutMeterUpdates keeps high-rate meter updates out of the journal.
func WithoutMeterUpdates() JournalOption {
	return func(j *JournalSink) {
		j.filter = func(event domain.EnergyEvent) bool {
			return event.EventName() != domain.EVENT_METER_UPDATED
		}
	}
}

// NewJournalSink opens path for appending, creating it if needed.
func NewJournalSink(path string, opts ...JournalOption) (*JournalSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	j := &JournalSink{
		file:    f,
		encoder: journalEncMode.NewEncoder(f),
		clock:   clock.New(),
		filter:  func(domain.EnergyEvent) bool { return true },
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

func (j *JournalSink) Notify(event domain.EnergyEvent) {
	if !j.filter(event) {
		return
	}
	record := JournalRecord{
		Id:        uuid.NewString(),
		Timestamp: j.clock.Now(),
		Name:      event.EventName(),
		Event:     event,
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	// a failed write must not disrupt ingestion
	if err := j.encoder.Encode(record); err != nil {
		j.logger.Warn("journal@write failed", zap.String("event", record.Name), zap.Error(err))
	}
}

// Close is idempotent; later events are dropped.
func (j *JournalSink) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}

// JournalDecoder reads records back, with the event left as raw CBOR.
type JournalDecoder struct {
	decoder *cbor.Decoder
}

type RawJournalRecord struct {
	Id        string          `cbor:"1,keyasint"`
	Timestamp time.Time       `cbor:"2,keyasint"`
	Name      string          `cbor:"3,keyasint"`
	Event     cbor.RawMessage `cbor:"4,keyasint"`
}

func NewJournalDecoder(r io.Reader) *JournalDecoder {
	return &JournalDecoder{decoder: cbor.NewDecoder(r)}
}

// Next returns io.EOF once the journal is exhausted.
func (d *JournalDecoder) Next() (RawJournalRecord, error) {
	var record RawJournalRecord
	err := d.decoder.Decode(&record)
	return record, err
}

var _ port.EventSink = (*JournalSink)(nil)
