package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keagan/capforge/internal/api"
	"github.com/keagan/capforge/internal/audio"
	"github.com/keagan/capforge/internal/clips"
	"github.com/keagan/capforge/internal/config"
	"github.com/keagan/capforge/internal/editor"
	"github.com/keagan/capforge/internal/export"
	"github.com/keagan/capforge/internal/ffmpeg"
	"github.com/keagan/capforge/internal/logging"
	"github.com/keagan/capforge/internal/media"
	"github.com/keagan/capforge/internal/overlays"
	"github.com/keagan/capforge/internal/pipeline"
	"github.com/keagan/capforge/pkg/util"
)

var renderCmd = &cobra.Command{
	Use:   "render [job file]",
	Short: "Render a YAML job file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		project, err := pipeline.LoadProject(args[0])
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		return runExport(cmd.Context(), cfg, project, output)
	},
}

type composeFlags struct {
	output    string
	height    int
	fps       int
	crossfade float64
	music     string
	gain      float64
	texts     []string
	anchors   []string
	starts    []string
	ends      []string
}

var compose composeFlags

var composeCmd = &cobra.Command{
	Use:   "compose [clip]...",
	Short: "Stitch clips into one video",
	Long: `Stitch clips into one video in argument order.

--text, --anchor, --start and --end may be repeated; the n-th value applies to
the n-th clip and an empty value leaves that clip unchanged. Times accept
seconds, MM:SS or HH:MM:SS.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		project, err := buildComposeProject(cfg, compose, args, cmd.Flags().Changed)
		if err != nil {
			return err
		}
		return runExport(cmd.Context(), cfg, project, compose.output)
	},
}

// buildComposeProject turns compose flags into a project. changed reports
// whether a flag was set explicitly, so config values survive defaults.
func buildComposeProject(cfg *config.Config, f composeFlags, paths []string, changed func(string) bool) (*pipeline.Project, error) {
	render := cfg.Render
	if changed("height") {
		render.Height = f.height
	}
	if changed("fps") {
		render.FPS = f.fps
	}
	if changed("crossfade") {
		render.Crossfade = f.crossfade
	}
	ac := cfg.Audio
	if changed("music") {
		ac.BackgroundPath = f.music
	}
	if changed("gain") {
		ac.Gain = f.gain
	}

	for name, n := range map[string]int{"text": len(f.texts), "anchor": len(f.anchors), "start": len(f.starts), "end": len(f.ends)} {
		if n > len(paths) {
			return nil, fmt.Errorf("--%s given %d times for %d clips", name, n, len(paths))
		}
	}

	project := pipeline.NewProject(render, ac)
	project.Output = f.output
	for i, path := range paths {
		spec := clips.NewSpec(path)
		if i < len(f.texts) {
			spec.Text = f.texts[i]
		}
		if i < len(f.anchors) && f.anchors[i] != "" {
			spec.TextAnchor = overlays.ParseAnchor(f.anchors[i])
		}
		if i < len(f.starts) && f.starts[i] != "" {
			d, err := util.ParseTimestamp(f.starts[i])
			if err != nil {
				return nil, fmt.Errorf("clip %d start: %w", i, err)
			}
			spec.Start = d.Seconds()
		}
		if i < len(f.ends) && f.ends[i] != "" {
			d, err := util.ParseTimestamp(f.ends[i])
			if err != nil {
				return nil, fmt.Errorf("clip %d end: %w", i, err)
			}
			spec.End = clips.EndAt(d.Seconds())
		}
		project.AddSpec(spec)
	}
	return project, project.Render.Validate()
}

func runExport(ctx context.Context, cfg *config.Config, project *pipeline.Project, output string) error {
	if project.Len() == 0 {
		return media.ErrEmptyTimeline
	}
	if output == "" {
		output = project.Output
	}
	if output == "" {
		return fmt.Errorf("no output path: pass -o or set output in the job file")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe, err := pipeline.New(log.Logger, cfg)
	if err != nil {
		return err
	}

	logger := logging.WithComponent("cli")
	res, err := pipe.Export(ctx, project, output, progressLogger(logger))
	if err != nil {
		return err
	}

	logger.Info().
		Str("output", res.Path).
		Str("size", humanize.Bytes(uint64(res.Bytes))).
		Dur("duration", res.Duration).
		Str("elapsed", res.Elapsed.Round(time.Millisecond).String()).
		Msg("render complete")
	return nil
}

// progressLogger logs every tenth of the way
func progressLogger(logger zerolog.Logger) export.ProgressFunc {
	last := -1
	return func(done, total int) {
		if total == 0 {
			return
		}
		if step := done * 10 / total; step != last {
			last = step
			logger.Info().Int("done", done).Int("total", total).Msgf("rendering %d%%", step*10)
		}
	}
}

var probeCmd = &cobra.Command{
	Use:   "probe [file]",
	Short: "Show media information",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		exec, err := ffmpeg.New(log.Logger, ffmpeg.Options{
			FFmpegPath:  cfg.FFmpeg.BinaryPath,
			FFprobePath: cfg.FFmpeg.ProbePath,
			Threads:     cfg.FFmpeg.Threads,
		})
		if err != nil {
			return err
		}

		info, err := exec.ProbeVideo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "file:     %s\n", info.FilePath)
		fmt.Fprintf(out, "duration: %s\n", util.FormatDuration(info.Duration))
		if info.HasVideo {
			fmt.Fprintf(out, "video:    %s %dx%d @ %.3f fps\n", info.VideoCodec, info.Width, info.Height, info.FPS)
		}
		if info.HasAudio {
			fmt.Fprintf(out, "audio:    %s %s/s\n", info.AudioCodec, humanize.Bytes(uint64(info.AudioBitrate/8)))
		}
		if info.Bitrate > 0 {
			fmt.Fprintf(out, "bitrate:  %s/s\n", humanize.Bytes(uint64(info.Bitrate/8)))
		}

		if volume, _ := cmd.Flags().GetBool("volume"); volume && info.HasAudio {
			stats, err := exec.AnalyzeVolume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "volume:   mean %.1f dB, max %.1f dB (peak gain %.2f)\n", stats.MeanVolume, stats.MaxVolume, stats.PeakGain())
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP editor API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pipe, err := pipeline.New(log.Logger, cfg)
		if err != nil {
			return err
		}
		ed := editor.New(log.Logger, pipe, pipeline.NewProject(cfg.Render, cfg.Audio))

		srv := api.NewServer(api.ServerConfig{
			Addr:          cfg.Server.Addr,
			Editor:        ed,
			Logger:        log.Logger,
			StartTime:     time.Now(),
			Version:       version,
			ExportContext: ctx,
		})

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// cancelled exports clean up their temp files before returning
		if st := ed.Status(); st.Exporting {
			logger := logging.WithComponent("cli")
			logger.Info().Str("output", st.Output).Msg("waiting for export to stop")
		}
		ed.Wait()
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "capforge.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

func init() {
	renderCmd.Flags().StringP("output", "o", "", "output file (overrides the job file)")

	f := composeCmd.Flags()
	f.StringVarP(&compose.output, "output", "o", "", "output file")
	f.IntVar(&compose.height, "height", media.DefaultHeight, "output height in pixels, 0 keeps source height")
	f.IntVar(&compose.fps, "fps", media.DefaultFPS, "output frame rate")
	f.Float64Var(&compose.crossfade, "crossfade", media.DefaultCrossfade, "crossfade seconds, 0 for hard cuts")
	f.StringVar(&compose.music, "music", "", "background music file")
	f.Float64Var(&compose.gain, "gain", audio.DefaultGain, "background music gain")
	f.StringArrayVar(&compose.texts, "text", nil, "caption for the n-th clip")
	f.StringArrayVar(&compose.anchors, "anchor", nil, "caption position for the n-th clip ("+anchorList()+")")
	f.StringArrayVar(&compose.starts, "start", nil, "trim start for the n-th clip")
	f.StringArrayVar(&compose.ends, "end", nil, "trim end for the n-th clip")
	composeCmd.MarkFlagRequired("output")

	probeCmd.Flags().Bool("volume", false, "also measure loudness")
	serveCmd.Flags().String("addr", "", "listen address (default from config, "+config.DefaultAddr+")")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func anchorList() string {
	names := make([]string, 0, 7)
	for _, a := range overlays.Anchors() {
		names = append(names, a.String())
	}
	return strings.Join(names, ", ")
}
