package commands

import (
	"github.com/spf13/cobra"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/version"
)

// ServiceName identifies the admin tool in version output and telemetry
const ServiceName = "quiz-audit-adm"

type versionReport struct {
	Local  version.Info  `json:"local" yaml:"local"`
	Remote *version.Info `json:"remote,omitempty" yaml:"remote,omitempty"`
}

// VersionCommand returns the version command
func VersionCommand(env *Environment) *cobra.Command {
	var remote string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show build information",
		Long:  `Show the build information of this tool and, with --remote, of a running server.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := versionReport{Local: version.Get(ServiceName)}
			if remote != "" {
				info, err := version.FetchRemote(cmd.Context(), version.NewClient(config.DefaultHTTPTimeout), remote)
				if err != nil {
					return err
				}
				report.Remote = info
			}
			return writeReport(cmd, env, report)
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "Base URL of a running server, e.g. http://localhost:8080")

	return cmd
}
