package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/runlock"
)

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Machine-readable output")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every story and epic in the ledger",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	ledger, err := ws.Ledger()
	if err != nil {
		return err
	}

	if statusJSON {
		return printStatusJSON(os.Stdout, ws, ledger)
	}

	if pid, lerr := runlock.New(ws.LockPath()).Holder(); lerr == nil && pid != 0 {
		fmt.Printf("A run is in progress (PID %d).\n\n", pid)
	}

	if len(ledger.Stories()) == 0 {
		fmt.Println("Ledger has no stories.")
		return nil
	}

	for i, epic := range ledger.Epics() {
		if i > 0 {
			fmt.Println()
		}
		entries := ledger.EpicStories(epic)
		done := 0
		for _, e := range entries {
			if e.Status == backlog.StatusDone {
				done++
			}
		}
		fmt.Printf("Epic %d (%s)  %s %d/%d\n", epic, ledger.EpicStatus(epic), progressBar(done, len(entries)), done, len(entries))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, e := range entries {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", e.Key, e.Status, backlog.TaskCounts(ws, e.Key))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	return nil
}

func progressBar(done, total int) string {
	const width = 20
	if total == 0 {
		return strings.Repeat("░", width)
	}
	filled := (done * width) / total
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

type statusStory struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Tasks  string `json:"tasks"`
}

type statusEpic struct {
	Epic    int           `json:"epic"`
	Status  string        `json:"status"`
	Done    int           `json:"done"`
	Total   int           `json:"total"`
	Stories []statusStory `json:"stories"`
}

func printStatusJSON(w io.Writer, ws *backlog.Workspace, ledger *backlog.Ledger) error {
	epics := make([]statusEpic, 0)
	for _, epic := range ledger.Epics() {
		se := statusEpic{Epic: epic, Status: string(ledger.EpicStatus(epic))}
		for _, e := range ledger.EpicStories(epic) {
			se.Total++
			if e.Status == backlog.StatusDone {
				se.Done++
			}
			se.Stories = append(se.Stories, statusStory{
				Key:    e.Key.String(),
				Status: string(e.Status),
				Tasks:  backlog.TaskCounts(ws, e.Key),
			})
		}
		epics = append(epics, se)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(epics)
}
