package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Heracs/MeetingSonar-sub001/internal/device"
)

// DevicesCmd creates the devices command.
// Lists system audio targets for --target and capture devices for --mic-device.
func DevicesCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List system audio targets and microphones",
		Long: `List the output sinks whose audio can be recorded (--target) and the
capture devices (--mic-device).

Capture devices are sorted with real microphones first, virtual devices last.
The default device of each kind is marked with *.`,
		Example: `  sonar devices
  sonar record --target alsa_output.usb-headset --mic-device "USB Headset Mono"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListDevices(cmd.Context(), env)
		},
	}
}

// runListDevices prints every device the sound system reports. A failing
// side is printed as a warning as long as the other side answered.
func runListDevices(ctx context.Context, env *Env) error {
	inv, err := env.DeviceLister.List(ctx)
	if err != nil {
		if len(inv.Outputs) == 0 && len(inv.Inputs) == 0 {
			return err
		}
		fmt.Fprintf(env.Stderr, "Warning: %v\n", err)
	}

	printDevices(env.Stdout, "System audio targets", inv.Outputs, "No output sinks found.")
	fmt.Fprintln(env.Stdout)
	printDevices(env.Stdout, "Capture devices", inv.Inputs, "No audio input devices found.")
	return nil
}

func printDevices(w io.Writer, title string, devices []device.Info, empty string) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(devices) == 0 {
		fmt.Fprintf(w, "  %s\n", empty)
		return
	}
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		line := fmt.Sprintf("%s %s", mark, d.Name)
		if d.ID != "" && d.ID != d.Name {
			line += fmt.Sprintf(" [%s]", d.ID)
		}
		if d.Role == device.RoleInput && d.Class == device.ClassVirtual {
			line += " (virtual)"
		}
		fmt.Fprintf(w, "  %s\n", line)
	}
}
