package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/profilesync/internal/model"
)

// QueueView lists what is waiting in the pending store.
type QueueView struct {
	Namespace string                  `json:"namespace"`
	Merged    map[string]model.Object `json:"merged"`
	Appends   []model.Object          `json:"appends"`
}

func (v QueueView) renderText(w io.Writer) {
	if len(v.Merged) == 0 && len(v.Appends) == 0 {
		fmt.Fprintln(w, "nothing pending")
		return
	}
	for _, kind := range model.MergedKinds {
		props, ok := v.Merged[kind.String()]
		if !ok {
			continue
		}
		data, err := model.MarshalCanonical(props)
		if err != nil {
			fmt.Fprintf(w, "%s: <%v>\n", kind, err)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", kind, data)
	}
	for i, item := range v.Appends {
		data, err := model.MarshalCanonical(item)
		if err != nil {
			fmt.Fprintf(w, "append[%d]: <%v>\n", i, err)
			continue
		}
		fmt.Fprintf(w, "append[%d]: %s\n", i, data)
	}
}

// NewQueueCommand creates the queue command.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "queue",
		Short:         "Show updates waiting for identify",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueue(cmd, rootOpts)
		},
	}
}

func runQueue(cmd *cobra.Command, opts *RootOptions) error {
	out := newFormatter(cmd, opts)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := loadConfig(out, opts)
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), cfg, out, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	snap := st.Snapshot()
	view := QueueView{
		Namespace: st.Namespace(),
		Merged:    make(map[string]model.Object, len(snap.Merged)),
		Appends:   snap.Appends,
	}
	if view.Appends == nil {
		view.Appends = []model.Object{}
	}
	for kind, props := range snap.Merged {
		view.Merged[kind.String()] = props
	}
	return out.Success(view)
}
