package ffmpeg

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/keagan/capforge/internal/media"
)

func TestFilterBuilder(t *testing.T) {
	filter := NewFilterBuilder().FPS(30).PadEven().Format("yuv420p").Build()

	expected := "fps=30,pad=ceil(iw/2)*2:ceil(ih/2)*2,format=yuv420p"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterBuilderEmpty(t *testing.T) {
	fb := NewFilterBuilder()
	if filter := fb.FPS(0).Format("").Build(); filter != "" {
		t.Errorf("expected empty string, got %q", filter)
	}
}

func argValue(args []string, flag string) (string, bool) {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1], true
		}
	}
	return "", false
}

func TestEncodeArgs(t *testing.T) {
	job := media.EncodeJob{Path: "/tmp/out.mp4", Width: 607, Height: 1080, FPS: 30}

	args := encodeArgs(job, "")
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-f rawvideo -pix_fmt rgba -s 607x1080 -r 30 -i pipe:0",
		"-c:v libx264 -preset medium -crf 23 -pix_fmt yuv420p",
		"-an",
		"-movflags +faststart /tmp/out.mp4",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q:\n%s", want, joined)
		}
	}
	if vf, _ := argValue(args, "-vf"); !strings.Contains(vf, "pad=ceil(iw/2)*2:ceil(ih/2)*2") {
		t.Errorf("odd widths must be padded, vf=%q", vf)
	}
	if args[len(args)-1] != job.Path {
		t.Errorf("output must be last, got %q", args[len(args)-1])
	}

	withAudio := strings.Join(encodeArgs(job, "/tmp/a.f32"), " ")
	for _, want := range []string{
		"-f f32le -ar 48000 -ac 2 -i /tmp/a.f32",
		"-map 0:v",
		"-map 1:a -c:a aac -b:a 192k",
	} {
		if !strings.Contains(withAudio, want) {
			t.Errorf("audio args missing %q:\n%s", want, withAudio)
		}
	}
	if strings.Contains(withAudio, " -an") {
		t.Error("audio job must not disable audio")
	}
}

func TestPCMArgs(t *testing.T) {
	args := pcmArgs("/media/long.mp4", 3600*time.Second, 5*time.Second)
	joined := strings.Join(args, " ")
	if !strings.HasPrefix(joined, "-ss 3600.000000 -t 5.000000 -i /media/long.mp4") {
		t.Errorf("window must be set before the input:\n%s", joined)
	}
	for _, want := range []string{"-vn", "-f f32le", "-ar 48000 -ac 2", "pipe:1"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q:\n%s", want, joined)
		}
	}

	whole := pcmArgs("/media/bed.mp3", 0, 0)
	if _, ok := argValue(whole, "-ss"); ok {
		t.Error("no seek expected from the start")
	}
	if _, ok := argValue(whole, "-t"); ok {
		t.Error("no limit expected for a zero duration")
	}

	head := pcmArgs("/media/bed.mp3", 0, 2500*time.Millisecond)
	if v, _ := argValue(head, "-t"); v != "2.500000" {
		t.Errorf("-t = %q, want 2.500000", v)
	}
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"format": {"duration": "12.500000", "bit_rate": "800000"},
		"streams": [
			{"codec_type": "video", "codec_name": "mjpeg", "width": 300, "height": 300,
			 "r_frame_rate": "90000/1", "disposition": {"attached_pic": 1}},
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
			 "r_frame_rate": "60000/1001", "avg_frame_rate": "30000/1001"},
			{"codec_type": "audio", "codec_name": "aac", "bit_rate": "128000"}
		]
	}`)

	info, err := parseProbe("clip.mp4", out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 1920 || info.Height != 1080 || info.VideoCodec != "h264" {
		t.Errorf("video stream = %dx%d %s", info.Width, info.Height, info.VideoCodec)
	}
	if math.Abs(info.FPS-59.94) > 0.01 {
		t.Errorf("fps = %v", info.FPS)
	}
	if info.Duration != 12500*time.Millisecond {
		t.Errorf("duration = %v", info.Duration)
	}
	if !info.HasVideo || !info.HasAudio || info.AudioBitrate != 128000 {
		t.Errorf("streams = %+v", info)
	}

	if _, err := parseProbe("x", []byte("not json")); err == nil {
		t.Error("garbage must fail to parse")
	}
}

func TestParseProbeAudioOnly(t *testing.T) {
	info, err := parseProbe("song.mp3", []byte(`{"format":{"duration":"3.0"},"streams":[{"codec_type":"audio","codec_name":"mp3"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if info.HasVideo || !info.HasAudio {
		t.Errorf("unexpected streams %+v", info)
	}
}

func TestParseVolumeOutput(t *testing.T) {
	lines := []string{
		"[Parsed_volumedetect_0 @ 0x1] n_samples: 96000",
		"[Parsed_volumedetect_0 @ 0x1] mean_volume: -20.5 dB",
		"[Parsed_volumedetect_0 @ 0x1] max_volume: -6.0 dB",
	}
	stats, err := parseVolumeOutput(lines)
	if err != nil {
		t.Fatal(err)
	}
	if stats.MeanVolume != -20.5 || stats.MaxVolume != -6 {
		t.Errorf("stats = %+v", stats)
	}
	if g := stats.PeakGain(); math.Abs(g-1.995) > 0.01 {
		t.Errorf("PeakGain = %v", g)
	}

	if _, err := parseVolumeOutput([]string{"frame=10"}); err == nil {
		t.Error("missing stats must fail")
	}
}

func TestTailKeepsLastDiagnostics(t *testing.T) {
	tl := newTail(2)
	for _, line := range []string{"first", "frame=10", "progress=continue", "second", "", "third"} {
		tl.add(line)
	}
	err := tl.wrap(errString("exit status 1"))
	if got := err.Error(); got != "exit status 1: second; third" {
		t.Errorf("wrapped = %q", got)
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestWriteFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(1, 1, color.RGBA{R: 9, A: 255})

	var buf bytes.Buffer
	if err := writeFrame(&buf, img, 2, 2); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), img.Pix) {
		t.Error("matching frames must be written verbatim")
	}

	// a sub-image has a wider stride and is written row by row
	big := image.NewRGBA(image.Rect(0, 0, 4, 4))
	big.SetRGBA(2, 2, color.RGBA{G: 7, A: 255})
	sub := big.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
	buf.Reset()
	if err := writeFrame(&buf, sub, 3, 3); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 3*3*4 {
		t.Fatalf("wrote %d bytes, want %d", buf.Len(), 36)
	}
	// pixel (2,2) of big is (1,1) of sub
	if got := buf.Bytes()[(1*3+1)*4+1]; got != 7 {
		t.Errorf("pixel (1,1) green = %d, want 7", got)
	}
	// the padded column stays transparent
	if got := buf.Bytes()[(0*3+2)*4+3]; got != 0 {
		t.Errorf("padding alpha = %d, want 0", got)
	}
}
