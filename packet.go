package qfragile

import (
	"image"
	"time"
)

// MaxPacketHistory caps how many corruption events a packet remembers.
const MaxPacketHistory = 50

// CorruptionType names one of the visual corruption effects.
type CorruptionType string

const (
	CorruptionBlur       CorruptionType = "blur"
	CorruptionPixelate   CorruptionType = "pixelate"
	CorruptionColorShift CorruptionType = "colorShift"
	CorruptionFade       CorruptionType = "fade"
)

// Corruption is a single effect applied to a packet, and also the history record of it.
type Corruption struct {
	Type      CorruptionType `msgpack:"type"`
	Intensity float64        `msgpack:"intensity"`
	Source    string         `msgpack:"source"`
	Timestamp time.Time      `msgpack:"timestamp"`
}

/*
Packet is the visual stand-in for quantum information: the uploaded image plus
how damaged it is. Image buffers are never written after creation, so copies of
a Packet may share one until a corruption produces a new buffer.
*/
type Packet struct {
	ID               string       `msgpack:"id"`
	Format           string       `msgpack:"format"`
	Width            int          `msgpack:"width"`
	Height           int          `msgpack:"height"`
	Image            *image.NRGBA `msgpack:"-"`
	DegradationLevel float64      `msgpack:"degradation_level"`
	History          []Corruption `msgpack:"history"`
}

// Clone copies the packet and its history; the image buffer is shared.
func (p *Packet) Clone() *Packet {
	if p == nil {
		return nil
	}
	out := *p
	out.History = append([]Corruption(nil), p.History...)
	return &out
}

/*
degrade returns a copy of the packet with the corrupted image swapped in, the
event appended to the bounded history and the degradation raised by amount.
Degradation only ever grows here.
*/
func (p *Packet) degrade(img *image.NRGBA, c Corruption, amount float64) *Packet {
	out := p.Clone()
	if img != nil {
		out.Image = img
	}
	out.History = append(out.History, c)
	if over := len(out.History) - MaxPacketHistory; over > 0 {
		out.History = append([]Corruption(nil), out.History[over:]...)
	}
	if amount > 0 {
		out.DegradationLevel = clamp01(out.DegradationLevel + amount)
	}
	return out
}
