package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func encodeAll(t *testing.T, frames []Frame) []byte {
	t.Helper()
	var stream []byte
	for _, f := range frames {
		raw, err := EncodeFrame(f, DefaultLimits())
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		stream = append(stream, raw...)
	}
	return stream
}

func drain(d *StreamDecoder) ([]Frame, error) {
	var out []Frame
	for {
		f, ok, err := d.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, f)
	}
}

func TestStreamDecoderWholeStream(t *testing.T) {
	frames := []Frame{
		NewFrame(MsgHello, 0, 1, Hello{SessionCode: "ABC123", Name: "Ann"}.Encode()),
		NewFrame(MsgChat, 2, 2, []byte("hi")),
		NewFrame(MsgLeave, 2, 3, nil),
	}
	d := NewStreamDecoder(DefaultLimits())
	d.Feed(encodeAll(t, frames))

	got, err := drain(d)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(got) != len(frames) {
		t.Fatalf("frame count: got=%d want=%d", len(got), len(frames))
	}
	for i := range frames {
		if got[i].Header != frames[i].Header {
			t.Fatalf("frame %d header mismatch", i)
		}
		if !bytes.Equal(got[i].Payload, frames[i].Payload) {
			t.Fatalf("frame %d payload mismatch", i)
		}
	}
}

func TestStreamDecoderOneByteAtATime(t *testing.T) {
	frames := []Frame{
		NewFrame(MsgCursor, 3, 1, Cursor{X: 1, Y: 2}.Encode()),
		NewFrame(MsgChat, 3, 2, []byte("split across reads")),
		NewFrame(MsgPing, 3, 3, nil),
	}
	stream := encodeAll(t, frames)

	d := NewStreamDecoder(DefaultLimits())
	var got []Frame
	for _, b := range stream {
		d.Feed([]byte{b})
		more, err := drain(d)
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
		got = append(got, more...)
	}

	if len(got) != len(frames) {
		t.Fatalf("frame count: got=%d want=%d", len(got), len(frames))
	}
	for i := range frames {
		if got[i].Header != frames[i].Header {
			t.Fatalf("frame %d header mismatch: got=%+v want=%+v", i, got[i].Header, frames[i].Header)
		}
		if !bytes.Equal(got[i].Payload, frames[i].Payload) {
			t.Fatalf("frame %d payload mismatch", i)
		}
	}
	if d.Buffered() != 0 {
		t.Fatalf("expected empty buffer, have %d bytes", d.Buffered())
	}
}

func TestStreamDecoderBadMagicResync(t *testing.T) {
	good := NewFrame(MsgChat, 1, 1, []byte("before"))
	bad, err := EncodeFrame(NewFrame(MsgChat, 1, 2, []byte("corrupt")), DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	binary.BigEndian.PutUint32(bad[0:4], 0x41414141)

	d := NewStreamDecoder(DefaultLimits())
	d.Feed(encodeAll(t, []Frame{good}))
	d.Feed(bad)

	f, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("first frame: ok=%v err=%v", ok, err)
	}
	if string(f.Payload) != "before" {
		t.Fatalf("unexpected payload %q", f.Payload)
	}

	if _, _, err := d.Next(); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}

	// Once the corrupt bytes are discarded, fresh valid frames decode.
	after := NewFrame(MsgChat, 1, 3, []byte("after"))
	d.Feed(encodeAll(t, []Frame{after}))
	f, ok, err = d.Next()
	if err != nil || !ok {
		t.Fatalf("post-resync frame: ok=%v err=%v", ok, err)
	}
	if string(f.Payload) != "after" {
		t.Fatalf("unexpected payload %q", f.Payload)
	}
}

func TestStreamDecoderPartialFrameStaysBuffered(t *testing.T) {
	raw, err := EncodeFrame(NewFrame(MsgChat, 1, 1, []byte("partial")), DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	d := NewStreamDecoder(DefaultLimits())
	d.Feed(raw[:len(raw)-1])

	if _, ok, err := d.Next(); ok || err != nil {
		t.Fatalf("expected incomplete frame, ok=%v err=%v", ok, err)
	}
	if d.Buffered() != len(raw)-1 {
		t.Fatalf("buffered=%d want=%d", d.Buffered(), len(raw)-1)
	}

	d.Feed(raw[len(raw)-1:])
	f, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("completed frame: ok=%v err=%v", ok, err)
	}
	if string(f.Payload) != "partial" {
		t.Fatalf("unexpected payload %q", f.Payload)
	}
}
