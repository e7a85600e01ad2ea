// Package lbconfig is the equalizer's configuration surface (spec.md §6):
// mode, damping, boundary2i, boundaryf and frozen, with defaults and a
// human-readable brace-delimited serialisation used by tests and config
// round-trips.
//
// Defaulting follows the teacher's internal/config.Load/applyDefaults shape
// (parse raw input, then backfill zero-valued fields). The text format
// itself — a named block, brace-delimited, one `KEYWORD value` pair per
// line, comments and blank lines ignored — is grounded on vigilantbsp's
// rmbparse.go line/word scanner (bufio.Scanner over words, switch on an
// upper-cased keyword), adapted from RMB's flat command list to a single
// nested block.
package lbconfig

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/vlequalizer/loadeq/internal/geom"
)

// Config is the full configuration surface read by the equalizer (spec.md §6).
type Config struct {
	Mode       geom.SplitMode
	Damping    float64
	Boundary2i geom.Size2i
	Boundaryf  float64
	Frozen     bool

	// MatchByTaskID opts into keying notifyLoadData's observation lookup by
	// taskId instead of channel identity, resolving spec.md §9's documented
	// channel-reuse ambiguity. Default false preserves the legacy
	// first-match-by-channel behaviour exactly.
	MatchByTaskID bool
}

const epsilon = 1e-6

// Default returns the configuration spec.md §3 specifies as the baseline:
// TwoD mode, damping 0.5, boundary2i (1,1), boundaryf = ε.
func Default() Config {
	return Config{
		Mode:       geom.TwoD,
		Damping:    0.5,
		Boundary2i: geom.Size2i{W: 1, H: 1},
		Boundaryf:  epsilon,
	}
}

// Validate enforces spec.md §7's configuration-error taxonomy: damping out
// of range or a non-positive boundary is rejected at config time, never
// handled by the core.
func (c Config) Validate() error {
	if c.Damping < 0 || c.Damping > 1 {
		return fmt.Errorf("lbconfig: damping %v out of range [0,1]", c.Damping)
	}
	if c.Boundary2i.W < 1 || c.Boundary2i.H < 1 {
		return fmt.Errorf("lbconfig: boundary2i %+v must be >= (1,1)", c.Boundary2i)
	}
	if c.Boundaryf <= 0 {
		return fmt.Errorf("lbconfig: boundaryf %v must be > 0", c.Boundaryf)
	}
	switch c.Mode {
	case geom.TwoD, geom.Vertical, geom.Horizontal, geom.DB:
	default:
		return fmt.Errorf("lbconfig: unknown mode %v", c.Mode)
	}
	return nil
}

// applyDefaults backfills zero-valued fields, mirroring the teacher's
// config.go applyDefaults pass run after unmarshalling.
func (c *Config) applyDefaults() {
	if c.Boundary2i.W == 0 {
		c.Boundary2i.W = 1
	}
	if c.Boundary2i.H == 0 {
		c.Boundary2i.H = 1
	}
	if c.Boundaryf == 0 {
		c.Boundaryf = epsilon
	}
}

// Parse reads the brace-delimited `load_equalizer { ... }` block spec.md §6
// describes. Lines are whitespace-split word scans; `#` begins a
// line comment. Unknown keywords are a parse error, matching spec.md §7's
// "configuration error" handling (reject at config time).
func Parse(r *bufio.Reader) (Config, error) {
	cfg := Default()
	sc := bufio.NewScanner(r)

	sawHeader := false
	sawOpenBrace := false
	inBlock := false

	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := stripComment(sc.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if !sawHeader {
			if strings.ToLower(fields[0]) != "load_equalizer" {
				return Config{}, fmt.Errorf("lbconfig: line %d: expected 'load_equalizer', got %q", lineNum, fields[0])
			}
			sawHeader = true
			fields = fields[1:]
			if len(fields) == 0 {
				continue
			}
		}
		if !sawOpenBrace {
			if fields[0] != "{" {
				return Config{}, fmt.Errorf("lbconfig: line %d: expected '{'", lineNum)
			}
			sawOpenBrace = true
			inBlock = true
			fields = fields[1:]
			if len(fields) == 0 {
				continue
			}
		}
		if !inBlock {
			break
		}
		if fields[0] == "}" {
			inBlock = false
			break
		}

		if err := parseLine(&cfg, fields, lineNum); err != nil {
			return Config{}, err
		}
	}
	if err := sc.Err(); err != nil {
		return Config{}, fmt.Errorf("lbconfig: scan: %w", err)
	}
	if !sawHeader || !sawOpenBrace {
		return Config{}, fmt.Errorf("lbconfig: missing 'load_equalizer {' header")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

func parseLine(cfg *Config, fields []string, lineNum int) error {
	keyword := strings.ToUpper(fields[0])
	args := fields[1:]

	switch keyword {
	case "MODE":
		if len(args) != 1 {
			return fmt.Errorf("lbconfig: line %d: MODE takes exactly one argument", lineNum)
		}
		mode, err := parseMode(args[0])
		if err != nil {
			return fmt.Errorf("lbconfig: line %d: %w", lineNum, err)
		}
		cfg.Mode = mode
	case "DAMPING":
		if len(args) != 1 {
			return fmt.Errorf("lbconfig: line %d: DAMPING takes exactly one argument", lineNum)
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("lbconfig: line %d: damping: %w", lineNum, err)
		}
		cfg.Damping = v
	case "BOUNDARY":
		// The 2-D form is written `boundary [ x y ]`; drop the brackets.
		if len(args) >= 2 && strings.HasPrefix(args[0], "[") && strings.HasSuffix(args[len(args)-1], "]") {
			args[0] = strings.TrimPrefix(args[0], "[")
			args[len(args)-1] = strings.TrimSuffix(args[len(args)-1], "]")
			var kept []string
			for _, a := range args {
				if a != "" {
					kept = append(kept, a)
				}
			}
			args = kept
		}
		switch len(args) {
		case 1:
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("lbconfig: line %d: boundary: %w", lineNum, err)
			}
			cfg.Boundaryf = v
		case 2:
			x, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("lbconfig: line %d: boundary x: %w", lineNum, err)
			}
			y, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("lbconfig: line %d: boundary y: %w", lineNum, err)
			}
			cfg.Boundary2i = geom.Size2i{W: x, H: y}
		default:
			return fmt.Errorf("lbconfig: line %d: BOUNDARY takes 1 or 2 arguments", lineNum)
		}
	case "FROZEN":
		if len(args) != 1 {
			return fmt.Errorf("lbconfig: line %d: FROZEN takes exactly one argument", lineNum)
		}
		v, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("lbconfig: line %d: frozen: %w", lineNum, err)
		}
		cfg.Frozen = v
	case "MATCH_BY_TASK_ID":
		if len(args) != 1 {
			return fmt.Errorf("lbconfig: line %d: MATCH_BY_TASK_ID takes exactly one argument", lineNum)
		}
		v, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("lbconfig: line %d: match_by_task_id: %w", lineNum, err)
		}
		cfg.MatchByTaskID = v
	default:
		return fmt.Errorf("lbconfig: line %d: unknown keyword %q", lineNum, fields[0])
	}
	return nil
}

func parseMode(s string) (geom.SplitMode, error) {
	switch strings.ToUpper(s) {
	case "TWO_D", "TWOD":
		return geom.TwoD, nil
	case "VERTICAL", "V":
		return geom.Vertical, nil
	case "HORIZONTAL", "H":
		return geom.Horizontal, nil
	case "DB":
		return geom.DB, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// String renders cfg back into the spec.md §6 text format. The mode line is
// always written; every other field left at its default value is omitted.
func (c Config) String() string {
	var b strings.Builder
	b.WriteString("load_equalizer\n{\n")
	fmt.Fprintf(&b, "    mode    %s\n", modeString(c.Mode))

	def := Default()
	if c.Damping != def.Damping {
		fmt.Fprintf(&b, "    damping %s\n", trimFloat(c.Damping))
	}
	if c.Boundary2i != def.Boundary2i {
		fmt.Fprintf(&b, "    boundary [ %d %d ]\n", c.Boundary2i.W, c.Boundary2i.H)
	}
	if absDiff(c.Boundaryf, def.Boundaryf) > epsilon {
		fmt.Fprintf(&b, "    boundary %s\n", trimFloat(c.Boundaryf))
	}
	if c.Frozen {
		b.WriteString("    frozen true\n")
	}
	if c.MatchByTaskID {
		b.WriteString("    match_by_task_id true\n")
	}
	b.WriteString("}\n")
	return b.String()
}

func modeString(m geom.SplitMode) string {
	switch m {
	case geom.TwoD:
		return "TWO_D"
	case geom.Vertical:
		return "VERTICAL"
	case geom.Horizontal:
		return "HORIZONTAL"
	case geom.DB:
		return "DB"
	}
	return "UNKNOWN"
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
