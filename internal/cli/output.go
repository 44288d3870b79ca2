package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"ragengine/internal/domain"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	dimColor  = color.New(color.Faint)
	headColor = color.New(color.FgCyan, color.Bold)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printOutcomes renders one line per outcome and returns the failure count.
func printOutcomes(w io.Writer, outcomes []domain.Outcome) int {
	failed := 0
	for _, o := range outcomes {
		label := o.DocumentID
		if o.Name != "" {
			label = fmt.Sprintf("%s (%s)", o.DocumentID, o.Name)
		}
		c := okColor
		if !o.Succeeded() {
			c = failColor
			failed++
		}
		c.Fprintf(w, "%d %-15s", o.StatusCode, o.Status)
		fmt.Fprintf(w, " %s: %s\n", label, o.Message)
	}
	return failed
}

func printQueryResult(w io.Writer, r domain.QueryResult) {
	if !r.Relevant {
		failColor.Fprintln(w, r.Answer)
		if r.MissingInfo != "" {
			dimColor.Fprintln(w, r.MissingInfo)
		}
		return
	}

	headColor.Fprintf(w, "Answer (confidence %.2f)\n", r.Confidence)
	fmt.Fprintln(w, r.Answer)
	fmt.Fprintln(w)
	for i, c := range r.Chunks {
		fmt.Fprintf(w, "--- [%d] %s (score: %.2f) ---\n", i+1, c.DocumentID, c.Score)
		fmt.Fprintln(w, strings.TrimSpace(c.Text))
	}
}

func printFiles(w io.Writer, files []domain.FileInfo) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No files.")
		return
	}
	for _, f := range files {
		fmt.Fprintf(w, "%s  %-30s %8d  %s\n", f.ID, f.Name, f.Size, dimColor.Sprint(f.UploadedAt.Format("2006-01-02 15:04:05")))
	}
}

func printLinkStates(w io.Writer, ids []string, states map[string]string) {
	for _, id := range ids {
		c := okColor
		switch states[id] {
		case domain.LinkStateNotFound:
			c = dimColor
		case domain.LinkStateError:
			c = failColor
		}
		fmt.Fprintf(w, "%s  %s\n", id, c.Sprint(states[id]))
	}
}
