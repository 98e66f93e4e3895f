package cli

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/profilesync/internal/model"
	"github.com/roach88/profilesync/internal/people"
)

// FlushView summarizes the requests sent when pending mutations were flushed.
type FlushView struct {
	ProfileID string       `json:"profile_id"`
	Sent      int          `json:"sent"`
	Failed    int          `json:"failed"`
	Results   []ResultView `json:"results,omitempty"`
}

func (v FlushView) renderText(w io.Writer) {
	fmt.Fprintf(w, "identified as %s: %d sent, %d failed\n", v.ProfileID, v.Sent, v.Failed)
	for _, r := range v.Results {
		r.renderText(w)
	}
}

// flushRecorder collects flush results by kind. APPEND reports once per item.
type flushRecorder struct {
	mu      sync.Mutex
	results []ResultView
}

func (r *flushRecorder) callbacks() people.FlushCallbacks {
	cbs := make(people.FlushCallbacks, len(model.QueuedKinds))
	for _, kind := range model.QueuedKinds {
		cbs[kind] = func(res model.Result) {
			r.mu.Lock()
			defer r.mu.Unlock()
			v := ResultView{Action: kind.String(), Outcome: res.Outcome.String(), Code: res.Code(), Status: res.Status}
			if res.Err != nil {
				v.Error = res.Err.Error()
			}
			r.results = append(r.results, v)
		}
	}
	return cbs
}

func (r *flushRecorder) view(profileID string) FlushView {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := FlushView{ProfileID: profileID, Results: r.results}
	sort.SliceStable(v.Results, func(i, j int) bool { return v.Results[i].Action < v.Results[j].Action })
	for _, res := range v.Results {
		if res.Outcome == model.OutcomeFailure.String() {
			v.Failed++
		} else {
			v.Sent++
		}
	}
	return v
}

// NewIdentifyCommand creates the identify command.
func NewIdentifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "identify <profile-id>",
		Short: "Identify the profile and send every pending update",
		Long: `Identify the profile and send every pending update.

Updates queued while no profile id was known are sent under the new id.
Failed requests are put back in the pending store for the next identify.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIdentify(cmd, rootOpts, args[0])
		},
	}
}

// NewFlushCommand creates the flush command.
func NewFlushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "flush",
		Short:         "Send every pending update for the --as profile",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.As == "" {
				out := newFormatter(cmd, rootOpts)
				return reportError(out, people.ErrNotIdentified)
			}
			return runIdentify(cmd, rootOpts, rootOpts.As)
		},
	}
}

func runIdentify(cmd *cobra.Command, opts *RootOptions, profileID string) error {
	a, err := openApp(cmd, opts, false)
	if err != nil {
		return err
	}

	rec := &flushRecorder{}
	idErr := a.client.Identify(cmd.Context(), profileID, rec.callbacks())
	closeErr := a.Close()

	if idErr != nil {
		return a.reportError(idErr)
	}

	view := rec.view(profileID)
	if err := a.out.Success(view); err != nil {
		return err
	}
	switch {
	case view.Failed > 0:
		return NewExitError(ExitFailure, fmt.Sprintf("%d request(s) failed and were requeued", view.Failed))
	case closeErr != nil:
		return WrapExitError(ExitCommandError, "failed to close pending store", closeErr)
	}
	return nil
}
