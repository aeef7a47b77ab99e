package sshexec

import (
	"sort"
	"strconv"
	"strings"

	"github.com/qflow-dev/qflow/internal/sched"
)

// parseNodes reads pbsnodes -a output: one block per node, first line is the
// node name, followed by indented "key = value" lines, blocks separated by
// blank lines.
func parseNodes(out string) []sched.Node {
	var nodes []sched.Node
	var cur *sched.Node
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			if cur != nil {
				nodes = append(nodes, *cur)
				cur = nil
			}
			continue
		}
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			if cur != nil {
				nodes = append(nodes, *cur)
			}
			cur = &sched.Node{Name: strings.TrimSpace(line)}
			continue
		}
		if cur == nil {
			continue
		}
		k, v, ok := splitAttrLine(line)
		if !ok {
			continue
		}
		switch k {
		case "state":
			cur.State = v
		case "np":
			if n, err := strconv.Atoi(v); err == nil {
				cur.Cores = n
			}
		}
	}
	if cur != nil {
		nodes = append(nodes, *cur)
	}
	return nodes
}

// parseJobAttributes reads qstat -f output for a single job. The header line
// "Job Id: <id>" becomes the "id" attribute; wrapped values continue on lines
// starting with a tab.
func parseJobAttributes(out string) map[string]string {
	attrs := map[string]string{}
	lastKey := ""
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Job Id:") {
			attrs["id"] = strings.TrimSpace(strings.TrimPrefix(line, "Job Id:"))
			continue
		}
		if strings.HasPrefix(line, "\t") && lastKey != "" {
			attrs[lastKey] += strings.TrimSpace(line)
			continue
		}
		k, v, ok := splitAttrLine(line)
		if !ok {
			continue
		}
		attrs[k] = v
		lastKey = k
	}
	return attrs
}

func splitAttrLine(line string) (key, value string, ok bool) {
	k, v, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	return strings.TrimSpace(k), strings.TrimSpace(v), true
}

func firstLine(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	return strings.TrimSpace(line)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// shellQuote wraps s in single quotes for the remote shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
