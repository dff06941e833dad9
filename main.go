package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/entropin/neolink/internal/api"
	"github.com/entropin/neolink/internal/api/ws"
	"github.com/entropin/neolink/internal/app"
	"github.com/entropin/neolink/internal/neolink"
	"github.com/entropin/neolink/pkg/bc"
	"github.com/entropin/neolink/pkg/yaml"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	var confs []string

	rootCmd := &cobra.Command{
		Use:   "neolink",
		Short: "Client for BC protocol cameras",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			app.Init(confs) // init config and logs
			return neolink.Init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringArrayVarP(&confs, "config", "c", nil, "config (path to file or raw text), support multiple")

	rootCmd.AddCommand(versionCmd(), infoCmd(), imageCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	api.Init() // http api
	ws.Init()  // websocket api

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Run(ctx)
	})
	g.Go(func() error {
		return neolink.Run(ctx)
	})

	err := g.Wait()
	log.Info().Msg("[neolink] exit")
	return err
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of the application",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("neolink version %s (%s) %s/%s\n", app.Version, app.Revision(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

func infoCmd() *cobra.Command {
	var setTime bool

	cmd := &cobra.Command{
		Use:   "info <camera>",
		Short: "Print camera firmware version and clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			camera, err := neolink.Login(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer camera.Disconnect()
			defer camera.Logout()

			if setTime {
				if err = camera.SetTime(time.Now()); err != nil {
					return err
				}
			}

			version, err := camera.Version()
			if err != nil {
				return err
			}

			info := map[string]any{"version": version}
			if t, err := camera.GetTime(); err == nil {
				info["time"] = t.String()
			}
			if device := camera.DeviceInfo(); device != nil {
				info["resolution"] = device.Resolution.Name
			}

			b, err := yaml.Encode(info, 2)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(b)
			return err
		},
	}

	cmd.Flags().BoolVar(&setTime, "set-time", false, "sync camera clock with local time")

	return cmd
}

func imageCmd() *cobra.Command {
	var file, stream string

	cmd := &cobra.Command{
		Use:   "image <camera>",
		Short: "Save one keyframe from the camera as raw video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			camera, err := neolink.Login(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer camera.Disconnect()
			defer camera.Logout()

			unit, err := camera.CaptureFrame(stream)
			if err != nil {
				return err
			}

			if file == "" {
				file = args[0] + "." + strings.ToLower(unit.Codec)
			}

			log.Info().Msgf("[neolink] save %s %s %d bytes", file, unit.Codec, len(unit.Payload))

			return os.WriteFile(file, unit.Payload, 0644)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "output file")
	cmd.Flags().StringVarP(&stream, "stream", "s", bc.StreamMain, "mainStream or subStream")

	return cmd
}
