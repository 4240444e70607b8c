package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/breakerguard/internal/systemd"
)

var (
	unitBinary  string
	unitUser    string
	unitEnvFile string
)

func init() {
	rootCmd.AddCommand(unitCmd)
	unitCmd.AddCommand(unitRecordCmd)
	unitCmd.Flags().StringVar(&unitBinary, "binary", "/usr/local/bin/guardian", "Path to the guardian binary in ExecStart")
	unitCmd.Flags().StringVar(&unitUser, "user", "", "Run the service as this user")
	unitCmd.Flags().StringVar(&unitEnvFile, "env-file", "", "EnvironmentFile with MBH_* overrides")
}

var unitCmd = &cobra.Command{
	Use:   "unit",
	Short: "Print a systemd unit for the guardian",
	Long: "Prints a systemd service unit that runs the guardian. Redirect to\n" +
		"/etc/systemd/system/guardian.service, then run `guardian unit record`\n" +
		"so later edits to the unit are reported at startup.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := systemd.Render(systemd.UnitConfig{
			Binary:     unitBinary,
			ConfigFile: flagConfig,
			User:       unitUser,
			EnvFile:    unitEnvFile,
		})
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var unitRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the installed unit's hash",
	Long:  "Hashes unit_file and writes the result to unit_hash_file (see MBH_GUARDIAN_UNIT_FILE and MBH_GUARDIAN_UNIT_HASH).",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, nil)
		if err != nil {
			return err
		}
		u := systemd.UnitFile{Path: cfg.UnitFile, HashPath: cfg.UnitHashFile}
		if err := u.Record(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recorded %s -> %s\n", u.Path, u.HashPath)
		return nil
	},
}
