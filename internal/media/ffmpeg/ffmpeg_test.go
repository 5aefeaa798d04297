package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"loom/internal/testsupport"
)

func TestParseLeadingSilence(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   float64
	}{
		{
			name: "silence at head",
			output: `[silencedetect @ 0x55] silence_start: 0
[silencedetect @ 0x55] silence_end: 1.84 | silence_duration: 1.84`,
			want: 1.84,
		},
		{
			name: "silence within epsilon",
			output: `[silencedetect @ 0x55] silence_start: 0.03
[silencedetect @ 0x55] silence_end: 0.92 | silence_duration: 0.89`,
			want: 0.92,
		},
		{
			name: "silence mid file only",
			output: `[silencedetect @ 0x55] silence_start: 12.5
[silencedetect @ 0x55] silence_end: 13.1 | silence_duration: 0.6`,
			want: 0,
		},
		{
			name:   "no silence detected",
			output: "size=N/A time=00:00:30.00 bitrate=N/A speed= 600x",
			want:   0,
		},
		{
			name: "unterminated head window",
			output: `[silencedetect @ 0x55] silence_start: 0`,
			want: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseLeadingSilence(tc.output); got != tc.want {
				t.Fatalf("parseLeadingSilence = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestConcatCleansUpListFile(t *testing.T) {
	testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg"))

	workDir := t.TempDir()
	inputs := make([]string, 0, 2)
	for _, name := range []string{"a.mp3", "b.mp3"} {
		path := filepath.Join(workDir, name)
		testsupport.WriteAudioFixture(t, path, 64)
		inputs = append(inputs, path)
	}

	output := filepath.Join(workDir, "episode.mp3")
	if err := Concat(context.Background(), "ffmpeg", workDir, inputs, output); err != nil {
		t.Fatalf("Concat: %v", err)
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("read workdir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".txt" {
			t.Fatalf("list file left behind: %s", entry.Name())
		}
	}
}

func TestConcatRejectsEmptyInputs(t *testing.T) {
	err := Concat(context.Background(), "ffmpeg", t.TempDir(), nil, "out.mp3")
	if err == nil {
		t.Fatal("expected error for empty inputs")
	}
}
