package main // import "github.com/tcolgate/motioncam"

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tcolgate/motioncam/camera"
	"github.com/tcolgate/motioncam/config"
	"github.com/tcolgate/motioncam/motion"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	cfgFile string
	log     *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.DefaultConfig()}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "motioncam",
		Short:        "Capture the camera frames that contain motion",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "configuration file (yaml, toml or json)")
	root.PersistentFlags().AddFlagSet(newFlagSet(a.cfg))

	root.AddCommand(&cobra.Command{
		Use:   "calibrate",
		Short: "Measure the motion threshold of the current scene and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.calibrate(cmd.Context(), cmd)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "formats",
		Short: "List the pixel formats and frame sizes of the webcam",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.formats(cmd)
		},
	})
	return root
}

// setup applies the config file, re-applies flags given on the command line
// on top of it, and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if a.cfgFile != "" {
		fileCfg, err := config.Load(a.cfgFile)
		if err != nil {
			return err
		}
		if err := overlayFlags(cmd.Flags(), newFlagSet(fileCfg)); err != nil {
			return errors.Wrap(err, "apply flags")
		}
		*a.cfg = *fileCfg
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(a.cfg)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

func (a *app) newLoop(engine *motion.Engine) (*motion.CaptureLoop, error) {
	src, err := camera.Open(a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	return motion.NewCaptureLoop(src, motion.Options{
		Engine:             engine,
		CalibrationSamples: a.cfg.CalibrationSamples,
		CalibrationRetries: a.cfg.CalibrationRetries,
		FPS:                a.cfg.FPS,
		ThroughputWindow:   a.cfg.ThroughputWindow(),
		MaxHardwareErrors:  a.cfg.MaxHardwareErrors,
		Log:                a.log,
	}), nil
}

func (a *app) engine() *motion.Engine {
	return &motion.Engine{
		Sensitivity:    a.cfg.Sensitivity,
		SampleFraction: a.cfg.SampleFraction,
	}
}

func (a *app) run(ctx context.Context) error {
	engine := a.engine()
	loop, err := a.newLoop(engine)
	if err != nil {
		return err
	}
	log := a.log.WithField("session", loop.ID())

	if err := loop.Configure(ctx); err != nil {
		return err
	}
	log.WithField("interval", loop.Pacer().Interval()).Debug("frame pacing")
	notify(log, daemon.SdNotifyReady)
	defer notify(log, daemon.SdNotifyStopping)

	var view *deltaView
	if a.cfg.Listen != "" {
		view = newDeltaView(log)
		srv := &http.Server{Addr: a.cfg.Listen, Handler: view}
		go func() {
			log.WithField("addr", a.cfg.Listen).Info("serving delta viewer")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("delta viewer failed")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.WithError(err).Warn("shutting down delta viewer")
			}
		}()
	}

	session := ctx
	if d := a.cfg.SessionDuration(); d > 0 {
		var cancel context.CancelFunc
		session, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if err := loop.Start(context.Background()); err != nil {
		loop.Stop()
		return err
	}

	consumed := make(chan struct{})
	go func() {
		select {
		case <-session.Done():
			loop.Stop()
		case <-consumed:
		}
	}()

	consumer := motion.NewConsumer(engine, a.cfg.DimPercent, a.cfg.MinRegionPixels)
	deltas := 0
	for {
		rec, err := loop.Queue().Pop(context.Background())
		if errors.Is(err, motion.ErrQueueClosed) {
			break
		}
		if err != nil {
			log.WithError(err).Warn("reading key frames")
			break
		}
		if a.consume(log, consumer, view, rec) {
			deltas++
		}
	}
	close(consumed)

	loopErr := loop.Wait()
	st := loop.Stats()
	log.WithFields(logrus.Fields{
		"frames":     st.Frames,
		"key_frames": st.KeyFrames,
		"deltas":     deltas,
		"skipped":    st.Skipped,
		"threshold":  st.Threshold,
		"fps":        st.Throughput,
	}).Info("capture finished")
	return loopErr
}

// consume renders one key frame against its predecessor and reports whether
// a delta was produced.
func (a *app) consume(log logrus.FieldLogger, c *motion.Consumer, view *deltaView, rec motion.KeyFrameRecord) bool {
	d, err := c.Accumulate(rec)
	if err != nil {
		log.WithError(err).WithField("seq", rec.Seq).Warn("can not render delta")
		return false
	}
	if view != nil {
		view.Update(rec.Frame, d)
	}
	if d == nil {
		log.WithField("seq", rec.Seq).Debug("key frame")
		return false
	}

	dlog := log.WithFields(logrus.Fields{"from": d.From, "to": d.To, "changed": d.Changed})
	dlog.Info("motion")
	for i, r := range d.Regions {
		dlog.WithFields(logrus.Fields{"region": i, "pixels": r.Pixels, "color": r.Color.Hex()}).Debug("changed region")
	}
	return true
}

func (a *app) calibrate(ctx context.Context, cmd *cobra.Command) error {
	loop, err := a.newLoop(a.engine())
	if err != nil {
		return err
	}
	defer loop.Stop()

	if err := loop.Configure(ctx); err != nil {
		return err
	}
	threshold, _ := loop.Threshold()
	fmt.Fprintf(cmd.OutOrStdout(), "motion threshold: %d changed pixels\n", threshold)
	return nil
}

func (a *app) formats(cmd *cobra.Command) error {
	infos, err := camera.ListFormats(a.cfg.Device)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Available formats:")
	for _, f := range infos {
		mark := ""
		if !f.Supported {
			mark = " (not supported)"
		}
		fmt.Fprintf(out, "%s (%#x)%s\n", f.Name, f.Code, mark)
		for _, s := range f.Sizes {
			fmt.Fprintf(out, "\t%s\n", s)
		}
	}
	return nil
}

func notify(log logrus.FieldLogger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.WithError(err).Warn("systemd notification failed")
		return
	}
	if sent {
		log.WithField("state", state).Debug("notified systemd")
	}
}
