package supervisor

import (
	"testing"

	"hotreload/internal/testutil"
)

type demoArgs struct {
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Title   string `yaml:"title"`
	Fullscr bool   `yaml:"fullscreen"`
}

type demoArgsWithOverride struct {
	Width   int  `yaml:"width"`
	Height  int  `yaml:"height"`
	MaxFPS  *int `yaml:"max_fps,omitempty"`
}

func TestSerializeDeserializeRoundTripWithOptionalPointerField(t *testing.T) {
	want := demoArgsWithOverride{Width: 1920, Height: 1080, MaxFPS: testutil.Ptr(144)}

	blob, err := SerializeArgs(want)
	if err != nil {
		t.Fatalf("SerializeArgs: %v", err)
	}

	got, err := DeserializeArgs[demoArgsWithOverride](blob)
	if err != nil {
		t.Fatalf("DeserializeArgs: %v", err)
	}
	if got.Width != want.Width || got.Height != want.Height || got.MaxFPS == nil || *got.MaxFPS != *want.MaxFPS {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	want := demoArgs{Width: 800, Height: 600, Title: "demo", Fullscr: true}

	blob, err := SerializeArgs(want)
	if err != nil {
		t.Fatalf("SerializeArgs: %v", err)
	}

	got, err := DeserializeArgs[demoArgs](blob)
	if err != nil {
		t.Fatalf("DeserializeArgs: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestDeserializeMalformedBlobErrors(t *testing.T) {
	if _, err := DeserializeArgs[demoArgs]("not: [valid: yaml"); err == nil {
		t.Fatal("DeserializeArgs with malformed blob: want error")
	}
}
