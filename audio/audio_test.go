package audio

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestLevelSilence(t *testing.T) {
	if l := Level(make([]byte, 512)); l != 0 {
		t.Errorf("Level(silence) = %v, want 0", l)
	}
	if l := Level(nil); l != 0 {
		t.Errorf("Level(nil) = %v, want 0", l)
	}
}

func TestLevelFullScale(t *testing.T) {
	pcm := make([]byte, 256)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(32767)))
	}
	l := Level(pcm)
	if l < 0.99 || l > 1.0 {
		t.Errorf("Level(full scale) = %v, want ~1.0", l)
	}
}

func TestIsBluetooth(t *testing.T) {
	for _, tt := range []struct {
		name string
		want bool
	}{
		{"AirPods Pro", true},
		{"Sony WH-1000XM4", true},
		{"Built-in Microphone", false},
		{"USB Audio Device", false},
		{"Jabra Elite 75t", true},
	} {
		if got := IsBluetooth(tt.name); got != tt.want {
			t.Errorf("IsBluetooth(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestClassifyStartErr(t *testing.T) {
	if err := classifyStartErr(errors.New("access denied by user")); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("denied error not classified as permission: %v", err)
	}
	if err := classifyStartErr(errors.New("device init failed")); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("generic error not classified as unavailable: %v", err)
	}
	if err := classifyStartErr(nil); err != nil {
		t.Errorf("nil error classified: %v", err)
	}
}

func TestFakeCaptureFeedsAndStops(t *testing.T) {
	pcm := make([]byte, 8192)
	ctx := NewFakePCM(pcm)
	cap, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: SampleRate, Channels: Channels})
	if err != nil {
		t.Fatal(err)
	}

	frames := make(chan int, 64)
	cap.SetCallback(func(data []byte, frameCount uint32) {
		select {
		case frames <- int(frameCount):
		default:
		}
	})
	if err := cap.Start(); err != nil {
		t.Fatal(err)
	}

	<-frames // at least one frame delivered

	cap.Stop()
	cap.Stop() // idempotent
	cap.ClearCallback()
	cap.Close()
}
