package output

import (
	"fmt"
	"slices"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

// ChangeKind says how a key differs between two environments.
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"
	ChangeRemoved   ChangeKind = "removed"
	ChangeChanged   ChangeKind = "changed"
	ChangeUnchanged ChangeKind = "unchanged"
)

// KeyDiff compares the variables named Key on both sides. Left or Right is
// nil when the key exists on one side only.
type KeyDiff struct {
	Key    string
	Kind   ChangeKind
	Left   *env.Variable
	Right  *env.Variable
	Fields []string // which of value, values, selection, group, enabled, secret differ
}

// Diff compares two environments key by key.
type Diff struct {
	Left  *env.Environment
	Right *env.Environment
	Keys  []KeyDiff
}

// Counts returns how many keys fall in each kind.
func (d *Diff) Counts() map[ChangeKind]int {
	counts := make(map[ChangeKind]int)
	for _, k := range d.Keys {
		counts[k.Kind]++
	}
	return counts
}

// HasChanges reports whether any key was added, removed or changed.
func (d *Diff) HasChanges() bool {
	for _, k := range d.Keys {
		if k.Kind != ChangeUnchanged {
			return true
		}
	}
	return false
}

// DiffEnvironments compares left and right by variable key. Keys follow
// left's order, then keys only right has in right's order. Group names are
// compared through their display letters, so two environments that group
// the same keys under different names are still equal.
func DiffEnvironments(left, right *env.Environment) *Diff {
	d := &Diff{Left: left, Right: right}
	leftLetters, rightLetters := GroupLetters(left), GroupLetters(right)

	for _, lv := range left.Variables {
		rv, ok := right.VariableByKey(lv.Key)
		if !ok {
			d.Keys = append(d.Keys, KeyDiff{Key: lv.Key, Kind: ChangeRemoved, Left: lv})
			continue
		}
		fields := compareVariables(lv, rv, leftLetters[lv.LinkGroup], rightLetters[rv.LinkGroup])
		kind := ChangeUnchanged
		if len(fields) > 0 {
			kind = ChangeChanged
		}
		d.Keys = append(d.Keys, KeyDiff{Key: lv.Key, Kind: kind, Left: lv, Right: rv, Fields: fields})
	}
	for _, rv := range right.Variables {
		if _, ok := left.VariableByKey(rv.Key); !ok {
			d.Keys = append(d.Keys, KeyDiff{Key: rv.Key, Kind: ChangeAdded, Right: rv})
		}
	}
	return d
}

func compareVariables(l, r *env.Variable, lGroup, rGroup string) []string {
	var fields []string
	if l.CurrentValue() != r.CurrentValue() {
		fields = append(fields, "value")
	}
	if !slices.Equal(l.Values, r.Values) {
		fields = append(fields, "values")
	}
	if l.SelectedIndex != r.SelectedIndex {
		fields = append(fields, "selection")
	}
	if lGroup != rGroup {
		fields = append(fields, "group")
	}
	if l.Enabled != r.Enabled {
		fields = append(fields, "enabled")
	}
	if l.IsSecret != r.IsSecret {
		fields = append(fields, "secret")
	}
	return fields
}

func (f *ConsoleFormatter) FormatDiff(d *Diff) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Environment Comparison"))
	fmt.Fprintf(f.writer, "  %s: %s\n", cyan("Left"), d.Left.Name)
	fmt.Fprintf(f.writer, "  %s: %s\n\n", cyan("Right"), d.Right.Name)

	for _, k := range d.Keys {
		switch k.Kind {
		case ChangeAdded:
			fmt.Fprintf(f.writer, "  %s %s = %s\n", green("+"), k.Key,
				formatValue(displayValue(k.Right, k.Right.CurrentValue(), f.showSecrets), 60))
		case ChangeRemoved:
			fmt.Fprintf(f.writer, "  %s %s = %s\n", red("-"), k.Key,
				formatValue(displayValue(k.Left, k.Left.CurrentValue(), f.showSecrets), 60))
		case ChangeChanged:
			fmt.Fprintf(f.writer, "  %s %s  %s → %s %s\n", yellow("~"), k.Key,
				formatValue(displayValue(k.Left, k.Left.CurrentValue(), f.showSecrets), 40),
				formatValue(displayValue(k.Right, k.Right.CurrentValue(), f.showSecrets), 40),
				faint(fmt.Sprintf("%v", k.Fields)))
		default:
			if f.verbose {
				fmt.Fprintf(f.writer, "  = %s\n", faint(k.Key))
			}
		}
	}

	counts := d.Counts()
	fmt.Fprintf(f.writer, "\n  %s added, %s removed, %s changed, %d unchanged\n\n",
		green(counts[ChangeAdded]), red(counts[ChangeRemoved]), yellow(counts[ChangeChanged]), counts[ChangeUnchanged])
}

// JSONDiff represents an environment comparison
type JSONDiff struct {
	Left    string        `json:"left"`
	Right   string        `json:"right"`
	Changed bool          `json:"changed"`
	Keys    []JSONKeyDiff `json:"keys"`
}

// JSONKeyDiff represents one compared key
type JSONKeyDiff struct {
	Key    string   `json:"key"`
	Kind   string   `json:"kind"`
	Left   string   `json:"left,omitempty"`
	Right  string   `json:"right,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

func (f *JSONFormatter) FormatDiff(d *Diff) {
	out := JSONDiff{
		Left:    d.Left.ID,
		Right:   d.Right.ID,
		Changed: d.HasChanges(),
		Keys:    make([]JSONKeyDiff, 0, len(d.Keys)),
	}
	for _, k := range d.Keys {
		jk := JSONKeyDiff{Key: k.Key, Kind: string(k.Kind), Fields: k.Fields}
		if k.Left != nil {
			jk.Left = displayValue(k.Left, k.Left.CurrentValue(), f.showSecrets)
		}
		if k.Right != nil {
			jk.Right = displayValue(k.Right, k.Right.CurrentValue(), f.showSecrets)
		}
		out.Keys = append(out.Keys, jk)
	}
	f.encode(out)
}
