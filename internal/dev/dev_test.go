package dev

import (
	"bytes"
	"testing"

	"github.com/google/pprof/profile"

	"beeos/internal/defs"
)

func TestDispatchUnknownMajorIsENODEV(t *testing.T) {
	d := NewDispatch()
	_, _, err := d.IO(0, defs.Mkdev(99, 0), DEV_READ, 0, make([]byte, 4))
	if err != defs.ENODEV {
		t.Fatalf("IO on unregistered major = %v, want -ENODEV", err)
	}
}

func TestRawDiskReadWriteRoundTrip(t *testing.T) {
	rd := NewRawDisk(64)
	devid := defs.Mkdev(defs.D_RAWDISK, 0)
	d := NewDispatch()
	d.Register(defs.D_RAWDISK, rd)

	payload := []byte("hello disk")
	n, eof, err := d.IO(0, devid, DEV_WRITE, 10, payload)
	if err != 0 || n != len(payload) || eof {
		t.Fatalf("write = (n:%d eof:%v err:%v)", n, eof, err)
	}

	buf := make([]byte, len(payload))
	n, _, err = d.IO(0, devid, DEV_READ, 10, buf)
	if err != 0 || n != len(payload) || string(buf) != string(payload) {
		t.Fatalf("read back = %q, err %v, want %q", buf[:n], err, payload)
	}
}

func TestRawDiskReadAtSatisfiesIoReaderAt(t *testing.T) {
	rd := NewRawDisk(16)
	rd.Load([]byte("0123456789abcdef"))
	buf := make([]byte, 4)
	n, err := rd.ReadAt(buf, 8)
	if err != nil || string(buf[:n]) != "89ab" {
		t.Fatalf("ReadAt = %q, err %v, want \"89ab\"", buf[:n], err)
	}
}

func TestStatDeviceSerializesRecordedCounters(t *testing.T) {
	sd := NewStatDevice()
	sd.RecordTick(1)
	sd.RecordTick(1)
	sd.RecordWait(1)
	sd.RecordTick(2)

	d := NewDispatch()
	d.Register(defs.D_STAT, sd)

	var all bytes.Buffer
	buf := make([]byte, 32)
	off := int64(0)
	for {
		n, eof, err := d.IO(0, defs.Mkdev(defs.D_STAT, 0), DEV_READ, off, buf)
		if err != 0 {
			t.Fatalf("stat read failed: %v", err)
		}
		all.Write(buf[:n])
		off += int64(n)
		if eof {
			break
		}
	}

	p, perr := profile.Parse(bytes.NewReader(all.Bytes()))
	if perr != nil {
		t.Fatalf("profile.Parse failed: %v", perr)
	}
	if len(p.Sample) != 2 {
		t.Fatalf("parsed profile has %d samples, want 2 (pid 1 and pid 2)", len(p.Sample))
	}
	found := false
	for _, s := range p.Sample {
		if s.Label["pid"][0] == "1" {
			found = true
			if s.Value[0] != 2 || s.Value[1] != 1 {
				t.Fatalf("pid 1 sample = %v, want [2 1]", s.Value)
			}
		}
	}
	if !found {
		t.Fatal("no sample found for pid 1")
	}
}
