package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"k8s.io/client-go/util/jsonpath"
)

// FormatStatus formats a status report according to the output flags.
func FormatStatus(s Status, flags *OutputFlags) (string, error) {
	switch flags.Format() {
	case OutputFormatJSON:
		return formatJSON(s)
	case OutputFormatJSONPath:
		return formatJSONPath(s, flags.JSONPathExpr())
	default:
		return formatStatusTable(s), nil
	}
}

func formatJSON(v any) (string, error) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(output) + "\n", nil
}

func formatJSONPath(v any, expr string) (string, error) {
	jp := jsonpath.New("output")
	if err := jp.Parse(expr); err != nil {
		return "", fmt.Errorf("invalid jsonpath expression %q: %w", expr, err)
	}

	// jsonpath walks generic values, so round-trip through JSON.
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal: %w", err)
	}
	var data any
	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return "", fmt.Errorf("failed to unmarshal: %w", err)
	}

	var buf bytes.Buffer
	if err := jp.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("jsonpath execution failed: %w", err)
	}
	return buf.String() + "\n", nil
}

func formatStatusTable(s Status) string {
	var b strings.Builder

	if len(s.Runs) == 0 {
		b.WriteString("No provisioning runs\n")
	} else {
		w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tMODE\tNAMESPACE\tSOURCE\tAGENT\tCTL IF\tSTAGE\tUPDATED")
		for _, r := range s.Runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Mode, r.Namespace, r.SourceAgent, r.NSAgent,
				dash(r.ControlIf), r.Stage, r.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
		}
		w.Flush()
	}

	b.WriteString("\n")

	if len(s.Agents) == 0 {
		b.WriteString("No registered agents\n")
		return b.String()
	}
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tTYPE\tHOST\tNAMESPACE\tENDPOINT\tPID")
	for _, a := range s.Agents {
		pid := "-"
		if a.PID != 0 {
			pid = fmt.Sprint(a.PID)
		}
		if a.Local {
			pid = "local"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Name, a.Type, a.Host, dash(a.Namespace), dash(a.Endpoint), pid)
	}
	w.Flush()
	return b.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
