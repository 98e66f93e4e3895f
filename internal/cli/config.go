package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/profilesync/internal/config"
)

// ConfigValue is one resolved config setting.
type ConfigValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

func (v ConfigValue) renderText(w io.Writer) {
	fmt.Fprintln(w, v.Value)
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:           "get <name>",
		Short:         "Print one setting (" + strings.Join(config.Names, ", ") + ")",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, rootOpts, args[0])
		},
	})
	return cmd
}

func runConfigGet(cmd *cobra.Command, opts *RootOptions, name string) error {
	out := newFormatter(cmd, opts)
	cfg, err := loadConfig(out, opts)
	if err != nil {
		return err
	}
	v, ok := cfg.Get(name)
	if !ok {
		msg := fmt.Sprintf("unknown setting %q", name)
		_ = out.Error(ErrCodeArgs, msg, map[string]any{"names": config.Names})
		return NewExitError(ExitCommandError, msg)
	}
	if d, isDuration := v.(fmt.Stringer); isDuration {
		v = d.String()
	}
	return out.Success(ConfigValue{Name: name, Value: v})
}
