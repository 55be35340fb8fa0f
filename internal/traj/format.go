package traj

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/banshee-data/trajalign/internal/fsutil"
	"github.com/banshee-data/trajalign/internal/monitoring"
)

// DefaultCommentChar starts header, separator and annotation lines.
const DefaultCommentChar = "#"

// LoadOptions controls how a trajectory table is read.
type LoadOptions struct {
	// Sep separates columns. Empty means any run of whitespace.
	Sep string
	// CommentChar starts non-data lines. Empty means DefaultCommentChar.
	CommentChar string
	// Columns maps attributes to zero-based column indices; coordinates
	// take two. When nil the layout is read from the header line.
	Columns map[Attr][]int
	// Annotations are added to every loaded trajectory. A key that the
	// file already annotates is an error.
	Annotations Annotations
	// Defaults are added for the keys the file does not annotate.
	Defaults Annotations
}

func (o LoadOptions) commentChar() string {
	if o.CommentChar == "" {
		return DefaultCommentChar
	}
	return o.CommentChar
}

// Save writes the trajectory to name, adding a .txt extension when it is
// missing, and returns the name written.
func (tr *Trajectory) Save(fsys fsutil.FileSystem, name string) (string, error) {
	if !strings.HasSuffix(name, ".txt") {
		name += ".txt"
	}
	w, err := fsys.Create(name)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrIO, name, err)
	}
	if err := tr.Encode(w); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %v", ErrIO, name, err)
	}
	return name, nil
}

// Encode writes the trajectory as a right-justified table followed by its
// annotations.
func (tr *Trajectory) Encode(w io.Writer) error {
	var names []string
	var cols [][]string
	for _, a := range tr.Attributes() {
		switch a {
		case Frames:
			col := make([]string, len(tr.frames))
			for i, f := range tr.frames {
				col[i] = strconv.Itoa(f)
			}
			names = append(names, tr.columnName(string(a), a))
			cols = append(cols, col)
		case Coord, CoordErr:
			suffix := strings.TrimPrefix(string(a), "coord")
			rows := tr.Series(a)
			names = append(names, tr.columnName("x"+suffix, a), tr.columnName("y"+suffix, a))
			cols = append(cols, formatColumn(rows[0]), formatColumn(rows[1]))
		default:
			names = append(names, tr.columnName(string(a), a))
			cols = append(cols, formatColumn(tr.Series(a)[0]))
		}
	}

	bw := bufio.NewWriter(w)
	width := 0
	for i, name := range names {
		if l := len(name) + 2; l > width {
			width = l
		}
		for _, v := range cols[i] {
			if l := len(v) + 2; l > width {
				width = l
			}
		}
	}
	if len(names) > 0 {
		bw.WriteString(DefaultCommentChar)
		bw.WriteString(rjust(names[0], width-1))
		for _, name := range names[1:] {
			bw.WriteString(rjust(name, width))
		}
		bw.WriteString("\n")
		for r := 0; r < len(cols[0]); r++ {
			for c := range cols {
				bw.WriteString(rjust(cols[c][r], width))
			}
			bw.WriteString("\n")
		}
	}
	sep := len(names)*width - 1
	if sep < 3 {
		sep = 3
	}
	bw.WriteString(DefaultCommentChar + strings.Repeat("-", sep) + "\n")
	for _, k := range tr.annotations.Keys() {
		fmt.Fprintf(bw, "%s %s: %s\n", DefaultCommentChar, k, tr.annotations[k].String())
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: write trajectory: %v", ErrIO, err)
	}
	return nil
}

func (tr *Trajectory) columnName(name string, a Attr) string {
	if key := a.UnitKey(); key != "" {
		if u, ok := tr.annotations[key]; ok && u.String() != "" {
			return name + " (" + u.String() + ")"
		}
	}
	return name
}

func formatColumn(v []float64) []string {
	out := make([]string, len(v))
	for i, f := range v {
		out[i] = formatFloat(f)
	}
	return out
}

func rjust(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// Load reads a trajectory table from name.
func Load(fsys fsutil.FileSystem, name string, opts LoadOptions) (*Trajectory, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, name, err)
	}
	defer f.Close()
	tr, err := Decode(f, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return tr, nil
}

var headerToken = regexp.MustCompile(`([^\s()]+)(?:\s*\(([^)]*)\))?`)

type column struct {
	attr  Attr
	index []int
}

// Decode reads a trajectory table. It is the inverse of Encode.
func Decode(r io.Reader, opts LoadOptions) (*Trajectory, error) {
	comment := opts.commentChar()
	if strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("%w: the comment character is blank", ErrIO)
	}

	var cols []column
	headerUnits := map[Attr]string{}
	if opts.Columns != nil {
		for _, a := range attrOrder {
			idx, ok := opts.Columns[a]
			if !ok {
				continue
			}
			if len(idx) != a.Rows() {
				return nil, fmt.Errorf("%w: %s needs %d column indices, got %d", ErrConfiguration, a, a.Rows(), len(idx))
			}
			cols = append(cols, column{attr: a, index: idx})
		}
	}

	frames := []int{}
	data := map[Attr][2][]float64{}
	annotations := Annotations{}
	seenData := false

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, comment) {
			body := strings.TrimSpace(strings.TrimPrefix(trimmed, comment))
			if cols == nil && !seenData && isHeader(body) {
				cols, headerUnits = parseHeader(body)
				continue
			}
			if key, val, ok := parseAnnotation(body); ok {
				if isUnitKey(key) {
					annotations[key] = Text(val)
				} else {
					annotations[key] = ParseValue(val)
				}
			}
			continue
		}
		if cols == nil {
			return nil, fmt.Errorf("%w: line %d: data before any column header; the comment character might be ill-defined", ErrIO, line)
		}
		seenData = true
		fields := splitFields(text, opts.Sep)
		for _, c := range cols {
			var vals [2]float64
			for k, idx := range c.index {
				if idx < 0 || idx >= len(fields) {
					return nil, fmt.Errorf("%w: line %d: column %d missing; the comment character might be ill-defined", ErrIO, line, idx)
				}
				v, err := strconv.ParseFloat(fields[idx], 64)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %q is not a number; the comment character might be ill-defined", ErrIO, line, fields[idx])
				}
				vals[k] = v
			}
			if c.attr == Frames {
				frames = append(frames, int(vals[0]))
				continue
			}
			d := data[c.attr]
			d[0] = append(d[0], vals[0])
			if c.attr.Rows() == 2 {
				d[1] = append(d[1], vals[1])
			}
			data[c.attr] = d
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrIO, err)
	}

	tr := New(annotations)
	for k, v := range opts.Annotations {
		if _, ok := tr.annotations[k]; ok {
			return nil, fmt.Errorf("%w: %s is already annotated as %q", ErrConfiguration, k, tr.annotations[k].String())
		}
		if err := tr.Annotate(k, v); err != nil {
			return nil, err
		}
	}
	for _, k := range opts.Defaults.Keys() {
		if _, ok := tr.annotations[k]; ok {
			continue
		}
		if err := tr.Annotate(k, opts.Defaults[k]); err != nil {
			return nil, err
		}
	}

	unit := func(a Attr) string {
		if key := a.UnitKey(); key != "" {
			if u, ok := tr.annotations[key]; ok && u.String() != "" {
				return u.String()
			}
		}
		return headerUnits[a]
	}
	for _, c := range cols {
		var err error
		switch c.attr {
		case Frames:
			err = tr.InputFrames(frames)
		case Coord, CoordErr:
			d := data[c.attr]
			err = tr.inputPair(c.attr, d[0], d[1], unit(c.attr))
		case T:
			err = tr.InputTimes(data[T][0], unit(T))
		default:
			err = tr.InputValues(c.attr, data[c.attr][0], unit(c.attr))
		}
		if err != nil {
			return nil, err
		}
	}
	return tr, nil
}

// isHeader tells a column header apart from separator and annotation
// lines.
func isHeader(body string) bool {
	if body == "" || strings.HasPrefix(body, "-") {
		return false
	}
	_, _, ok := parseAnnotation(body)
	return !ok
}

func parseAnnotation(body string) (key, val string, ok bool) {
	key, val, ok = strings.Cut(body, ":")
	if !ok || key == "" || strings.ContainsAny(key, " \t()") {
		return "", "", false
	}
	return key, strings.TrimSpace(val), true
}

// parseHeader maps header names to columns. An x-prefixed name and the
// y-prefixed name following it form one coordinate attribute; names with
// an _err suffix form the coordinate uncertainty. Units in parentheses
// are returned per attribute.
func parseHeader(body string) ([]column, map[Attr]string) {
	var cols []column
	units := map[Attr]string{}
	seen := map[Attr]bool{}
	matches := headerToken.FindAllStringSubmatch(body, -1)
	i := 0
	for m := 0; m < len(matches); m++ {
		name, unit := matches[m][1], matches[m][2]
		var a Attr
		width := 1
		if strings.HasPrefix(name, "x") && (name == "x" || isCoordSuffix(name[1:])) {
			a = Coord
			if strings.HasSuffix(name, errSuffix) {
				a = CoordErr
			}
			width = 2
			if m+1 < len(matches) && strings.HasPrefix(matches[m+1][1], "y") {
				m++
			}
		} else if parsed, ok := ParseAttr(name); ok && parsed != Coord && parsed != CoordErr {
			a = parsed
		}
		switch {
		case a == "":
			monitoring.Logf("[traj] ignoring unknown column %q", name)
		case seen[a]:
			monitoring.Logf("[traj] ignoring duplicate column %q for %s", name, a)
		default:
			seen[a] = true
			idx := []int{i}
			if width == 2 {
				idx = []int{i, i + 1}
			}
			cols = append(cols, column{attr: a, index: idx})
			if unit != "" {
				units[a] = unit
			}
		}
		i += width
	}
	return cols, units
}

func isCoordSuffix(s string) bool {
	s = strings.TrimSuffix(s, errSuffix)
	if s == "" {
		return true
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

func splitFields(line, sep string) []string {
	if sep == "" || strings.TrimSpace(sep) == "" {
		return strings.Fields(line)
	}
	parts := strings.Split(line, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Equal reports whether two trajectories hold the same attributes and
// annotations. NaN samples compare equal.
func Equal(a, b *Trajectory) bool {
	if !slicesEqualInt(a.frames, b.frames) || !floatsEqual(a.t, b.t) {
		return false
	}
	for r := 0; r < 2; r++ {
		if !floatsEqual(a.coord[r], b.coord[r]) || !floatsEqual(a.coordErr[r], b.coordErr[r]) {
			return false
		}
	}
	for _, attr := range attrOrder {
		if !floatsEqual(a.values[attr], b.values[attr]) {
			return false
		}
	}
	if len(a.annotations) != len(b.annotations) {
		return false
	}
	for k, v := range a.annotations {
		o, ok := b.annotations[k]
		if !ok || !v.Equal(o) {
			return false
		}
	}
	return true
}

func slicesEqualInt(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && !(math.IsNaN(a[i]) && math.IsNaN(b[i])) {
			return false
		}
	}
	return true
}
