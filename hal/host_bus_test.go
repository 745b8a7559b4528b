//go:build !tinygo

package hal

import (
	"bytes"
	"testing"

	"tinygo.org/x/drivers"
)

var (
	_ drivers.I2C = (*VirtualI2C)(nil)
	_ drivers.SPI = (*LoopbackSPI)(nil)
)

func TestVirtualI2CRegisterFile(t *testing.T) {
	bus := NewVirtualI2C()
	bus.Attach(0x48, map[uint8]byte{0x00: 0x12, 0x01: 0x34})

	r := make([]byte, 2)
	if err := bus.Tx(0x48, []byte{0x00}, r); err != nil {
		t.Fatalf("Tx: %v", err)
	}
	if !bytes.Equal(r, []byte{0x12, 0x34}) {
		t.Fatalf("read = %x, want 1234", r)
	}

	if err := bus.WriteRegister(0x48, 0x10, []byte{0xaa, 0xbb}); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	if v, _ := bus.Register(0x48, 0x11); v != 0xbb {
		t.Fatalf("reg 0x11 = %#x, want 0xbb", v)
	}

	if err := bus.Tx(0x50, []byte{0}, r); err == nil {
		t.Fatal("expected nack for missing target")
	}
}

func TestLoopbackSerialFIFO(t *testing.T) {
	s := NewLoopbackSerial(4)
	if n := s.Inject([]byte("abcdef")); n != 4 {
		t.Fatalf("Inject() = %d, want 4", n)
	}
	if s.Overruns() != 2 {
		t.Fatalf("Overruns() = %d, want 2", s.Overruns())
	}
	buf := make([]byte, 8)
	n, _ := s.Read(buf)
	if string(buf[:n]) != "abcd" {
		t.Fatalf("Read() = %q, want abcd", buf[:n])
	}

	n, _ = s.Write([]byte("xyz12"))
	if n != 4 || s.TxFree() != 0 {
		t.Fatalf("Write() = %d TxFree = %d, want 4, 0", n, s.TxFree())
	}
	if got := string(s.Drain()); got != "xyz1" {
		t.Fatalf("Drain() = %q, want xyz1", got)
	}

	s.SetLoopback(true)
	s.Write([]byte("hi"))
	if s.Buffered() != 2 {
		t.Fatalf("Buffered() = %d, want 2 in loopback", s.Buffered())
	}
}

func TestVirtualADCConversion(t *testing.T) {
	a := NewVirtualADC(2, 2)
	a.SetInput(1, 0x0abc)
	if err := a.Start(1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if a.Ready(1) {
		t.Fatal("ready after one poll, want two")
	}
	if !a.Ready(1) {
		t.Fatal("not ready after two polls")
	}
	v, err := a.Value(1)
	if err != nil || v != 0x0abc {
		t.Fatalf("Value() = %#x, %v", v, err)
	}
	if a.Ready(1) {
		t.Fatal("ready with no conversion started")
	}
}
