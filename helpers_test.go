package qfragile

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// fixedRandom always draws the same value.
type fixedRandom float64

func (f fixedRandom) Float64() float64 { return float64(f) }

// sequenceRandom cycles through values.
type sequenceRandom struct {
	values []float64
	next   int
}

func (s *sequenceRandom) Float64() float64 {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(1, w-1)),
				G: uint8(y * 255 / max(1, h-1)),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func testPacket(t *testing.T) *Packet {
	t.Helper()
	packet, err := NewImageProcessor(0, 0).NewPacketFromImage(gradientImage(50, 50))
	if err != nil {
		t.Fatalf("packet: %v", err)
	}
	return packet
}

func testConfig() Config {
	cfg := *NewConfig()
	cfg.Seed = 42
	cfg.AnimationSpeed = 10
	return cfg
}

// readyEngine returns an engine with a packet and the given circuit loaded.
func readyEngine(t *testing.T, cfg Config, defs []GateDefinition, opts ...Option) *Engine {
	t.Helper()
	engine := NewEngine(opts...)
	if err := engine.Initialize(cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.LoadPacket(bytes.NewReader(pngBytes(t, gradientImage(50, 50)))); err != nil {
		t.Fatalf("load packet: %v", err)
	}
	if err := engine.BuildCircuit(defs); err != nil {
		t.Fatalf("build circuit: %v", err)
	}
	return engine
}
