package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const binary = "dist/irsensors"

// boards maps the boards the cli is deployed to onto their GOOS/GOARCH.
var boards = map[string][2]string{
	"nanopi": {"linux", "arm"},
	"rpi":    {"linux", "arm64"},
}

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build irsensors application",
		RunE: func(cmd *cobra.Command, args []string) error {
			os := cmd.Flag("os").Value.String()
			arch := cmd.Flag("arch").Value.String()
			version := cmd.Flag("version").Value.String()
			crossOs := cmd.Flag("cross-os").Value.String()
			crossArch := cmd.Flag("cross-arch").Value.String()
			if board := cmd.Flag("board").Value.String(); board != "" {
				target, ok := boards[board]
				if !ok {
					return fmt.Errorf("unknown board %q", board)
				}
				crossOs, crossArch = target[0], target[1]
				slog.Info("building for board", "board", board, "os", crossOs, "arch", crossArch)
			}

			// if this is a native build, use go build
			if os == runtime.GOOS && arch == runtime.GOARCH {
				native := true
				if crossOs != "" && crossArch != "" {
					native = crossOs == os && crossArch == arch
					os = crossOs
					arch = crossArch
				}
				err := build.GoBuild(binary, "./cmd/irsensors", build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: "github.com/mklimuk/irsensors/config",
					EnableCgo:     true,
					Arch:          arch, // if cross-arch is not set, it will use runtime.GOARCH
					OS:            os,   // if cross-os is not set, it will use runtime.GOOS
				})
				if err != nil {
					return err
				}
				smoke, err := cmd.Flags().GetBool("smoke")
				if err != nil {
					return fmt.Errorf("could not get smoke flag: %w", err)
				}
				if !smoke {
					return nil
				}
				if !native {
					slog.Warn("skipping smoke test of a cross-compiled binary")
					return nil
				}
				return runSmoke(cmd.Context(), "./"+binary)
			}

			noCache, err := cmd.Flags().GetBool("no-cache")
			if err != nil {
				return fmt.Errorf("could not get no-cache flag: %w", err)
			}
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", os, arch), []string{"build", "--version", version, "--cross-os", crossOs, "--cross-arch", crossArch}, build.DockerBuildOpts{
				NoCache: noCache,
				Image:   "gophertribe/gobuild:1.25-bookworm",
			})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building the app")
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().String("cross-os", "", "os to cross-compile for")
	cmd.Flags().String("cross-arch", "", "arch to cross-compile for")
	cmd.Flags().String("board", "", "cross-compile for a known board (nanopi, rpi)")
	cmd.Flags().Bool("smoke", false, "run the built cli against the simulated bus")

	return cmd
}
