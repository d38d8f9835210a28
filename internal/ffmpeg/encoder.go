package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/keagan/capforge/internal/audio"
	"github.com/keagan/capforge/internal/media"
	"github.com/keagan/capforge/pkg/util"
)

// Encoder writes H.264/AAC files from raw frames piped into ffmpeg
type Encoder struct {
	exec   *Executor
	logger zerolog.Logger
}

// NewEncoder creates an encoder. Intermediate PCM is staged in the system
// temp dir.
func NewEncoder(exec *Executor) *Encoder {
	return &Encoder{
		exec:   exec,
		logger: exec.logger.With().Str("stage", "encode").Logger(),
	}
}

// encodeArgs builds the ffmpeg command for a job whose audio, if any, was
// staged at audioPath
func encodeArgs(job media.EncodeJob, audioPath string) []string {
	rate := strconv.Itoa(job.FPS)
	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", job.Width, job.Height),
		"-r", rate,
		"-i", "pipe:0",
	}
	if audioPath != "" {
		args = append(args,
			"-f", "f32le",
			"-ar", strconv.Itoa(audio.SampleRate),
			"-ac", strconv.Itoa(audio.Channels),
			"-i", audioPath,
		)
	}

	args = append(args,
		"-map", "0:v",
		"-vf", NewFilterBuilder().PadEven().Format(DefaultPixelFormat).Build(),
		"-c:v", DefaultVideoCodec,
		"-preset", DefaultPreset,
		"-crf", strconv.Itoa(DefaultCRF),
		"-pix_fmt", DefaultPixelFormat,
		"-r", rate,
	)
	if audioPath != "" {
		args = append(args,
			"-map", "1:a",
			"-c:a", DefaultAudioCodec,
			"-b:a", DefaultAudioBitrate,
		)
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-movflags", "+faststart", job.Path)
	return args
}

// Encode streams job's frames into ffmpeg's stdin and muxes the audio track
func (enc *Encoder) Encode(ctx context.Context, job media.EncodeJob) error {
	if job.Width <= 0 || job.Height <= 0 || job.FPS <= 0 {
		return media.EncodeFailed(job.Path, fmt.Errorf("invalid geometry %dx%d@%d", job.Width, job.Height, job.FPS))
	}

	var audioPath string
	if job.Audio != nil {
		p, err := enc.stageAudio(job.Audio)
		if err != nil {
			return media.EncodeFailed(job.Path, err)
		}
		defer util.CleanupFiles(p)
		audioPath = p
	}

	pr, pw := io.Pipe()
	var frameErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		w := bufio.NewWriterSize(pw, job.Width*job.Height*4)
		err := job.Frames(func(img *image.RGBA) error {
			return writeFrame(w, img, job.Width, job.Height)
		})
		if err == nil {
			err = w.Flush()
		}
		frameErr = err
		pw.CloseWithError(err)
	}()

	err := enc.exec.Run(ctx, RunOptions{
		Args:  encodeArgs(job, audioPath),
		Stdin: pr,
		ProgressHandler: func(p *Progress) {
			enc.logger.Debug().
				Int("frame", p.Frame).
				Float64("fps", p.FPS).
				Str("speed", p.Speed).
				Msg("encode progress")
		},
		LogHandler: func(line string) {
			enc.logger.Debug().Str("ffmpeg", line).Msg("encode output")
		},
	})
	// unblock the producer if ffmpeg stopped reading early
	pr.CloseWithError(errEncoderStopped)
	<-done

	stopped := errors.Is(frameErr, errEncoderStopped) || errors.Is(frameErr, io.ErrClosedPipe)
	switch {
	case frameErr != nil && !stopped:
		return media.EncodeFailed(job.Path, frameErr)
	case err != nil:
		return media.EncodeFailed(job.Path, err)
	}
	return nil
}

var errEncoderStopped = errors.New("encoder stopped reading frames")

// writeFrame writes exactly width×height RGBA pixels, cropping or padding
// frames of another size
func writeFrame(w io.Writer, img *image.RGBA, width, height int) error {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height && img.Stride == width*4 {
		_, err := w.Write(img.Pix[:width*height*4])
		return err
	}
	row := make([]byte, width*4)
	for y := 0; y < height; y++ {
		clear(row)
		if y < b.Dy() {
			off := img.PixOffset(b.Min.X, b.Min.Y+y)
			copy(row, img.Pix[off:off+min(b.Dx(), width)*4])
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (enc *Encoder) stageAudio(track *audio.Track) (string, error) {
	f, err := util.TempFile("", "capforge-audio-", ".f32")
	if err != nil {
		return "", fmt.Errorf("stage audio: %w", err)
	}
	w := bufio.NewWriter(f)
	if _, err := track.WriteTo(w); err != nil {
		f.Close()
		util.CleanupFiles(f.Name())
		return "", err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		util.CleanupFiles(f.Name())
		return "", fmt.Errorf("stage audio: %w", err)
	}
	if err := f.Close(); err != nil {
		util.CleanupFiles(f.Name())
		return "", fmt.Errorf("stage audio: %w", err)
	}
	return f.Name(), nil
}

var (
	_ media.Sink    = (*Encoder)(nil)
	_ media.Decoder = (*Decoder)(nil)
	_ audio.Decoder = (*Decoder)(nil)
)
