package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/carverauto/geoshim/pkg/platform"
)

// ShowHelp writes the usage message.
func ShowHelp(w io.Writer) {
	fmt.Fprintf(w, `geoshim: location override control and diagnostics
Usage:
  geoshim <command> [options]

Commands:
  start      Enable the override at a coordinate
  stop       Disable the override, keeping the last coordinate
  status     Show the committed override and running allow-listed processes
  probe      Resolve the hook targets against a platform profile
  simulate   Attach the hooks to a simulated image and read a fix through them
  mirror     Apply overrides published to the NATS KV mirror until interrupted
  version    Print the build version

Common options:
  -config string      path to the geoshim JSON config
  -json               machine-readable output (status, probe, simulate, version)

Environment:
  CONFIG_SOURCE=env   read the config from GEOSHIM_* variables
  CONFIG_SOURCE=kv    read config/<name of -config> (default config/geoshim) from the
                      bucket at GEOSHIM_MIRROR_NATS_URL / GEOSHIM_MIRROR_BUCKET

Options for start:
  -coord string       target as lat,lon or lat,lon,alt
  -clipboard          read the target from the clipboard

Options for probe and simulate:
  -profile string     platform profile: %s (default "modern")
  -image string       image name to attach (simulate, default "com.google.android.apps.maps")

Examples:
  geoshim start -coord 51.5074,-0.1278
  geoshim start -clipboard
  geoshim stop
  geoshim probe -profile legacy
`, strings.Join(platform.ProfileNames(), ", "))
}
