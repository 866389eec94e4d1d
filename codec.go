package qfragile

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// TraceVersion is written at the head of every trace stream.
const TraceVersion = 1

// TraceHeader opens a trace and records what produced it.
type TraceHeader struct {
	Version int              `msgpack:"version"`
	Config  Config           `msgpack:"config"`
	Circuit []GateDefinition `msgpack:"circuit"`
}

/*
TraceEncoder writes a header followed by one msgpack record per step result.
Packet images are never written; a trace holds the packet metadata and history
only.
*/
type TraceEncoder struct {
	w   *bufio.Writer
	enc *msgpack.Encoder
}

// NewTraceEncoder writes the header to w and returns an encoder for the steps.
func NewTraceEncoder(w io.Writer, header TraceHeader) (*TraceEncoder, error) {
	bw := bufio.NewWriter(w)
	enc := msgpack.NewEncoder(bw)

	header.Version = TraceVersion
	if err := enc.Encode(&header); err != nil {
		return nil, fmt.Errorf("encode trace header: %w", err)
	}
	return &TraceEncoder{w: bw, enc: enc}, nil
}

// Encode appends one step result to the trace.
func (te *TraceEncoder) Encode(res *StepResult) error {
	if err := te.enc.Encode(res); err != nil {
		return fmt.Errorf("encode step %d: %w", res.State.CurrentGateIndex, err)
	}
	return nil
}

// Flush pushes buffered records to the underlying writer.
func (te *TraceEncoder) Flush() error {
	return te.w.Flush()
}

// TraceDecoder reads back what TraceEncoder wrote.
type TraceDecoder struct {
	dec    *msgpack.Decoder
	Header TraceHeader
}

// NewTraceDecoder reads and checks the header from r.
func NewTraceDecoder(r io.Reader) (*TraceDecoder, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(r))

	td := &TraceDecoder{dec: dec}
	if err := dec.Decode(&td.Header); err != nil {
		return nil, fmt.Errorf("decode trace header: %w", err)
	}
	if td.Header.Version != TraceVersion {
		return nil, fmt.Errorf("unsupported trace version %d", td.Header.Version)
	}
	return td, nil
}

// Next returns the next step result, or io.EOF at the end of the trace.
func (td *TraceDecoder) Next() (*StepResult, error) {
	var res StepResult
	if err := td.dec.Decode(&res); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode step: %w", err)
	}
	return &res, nil
}
