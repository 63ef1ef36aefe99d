package cn

import (
	"sort"
	"strings"
)

// resolve walks tokens from last to first and keeps a token only if no
// later token already claimed its conflict key. Surviving tokens keep their
// original relative order.
func resolve(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	claimed := make(map[string]struct{}, len(tokens))
	keep := make([]bool, len(tokens))

	for i := len(tokens) - 1; i >= 0; i-- {
		u := parseUtility(tokens[i])
		if _, ok := claimed[u.key()]; ok {
			continue
		}
		keep[i] = true
		claimed[u.key()] = struct{}{}
		for _, g := range conflictingGroups[u.group] {
			claimed[u.keyFor(g)] = struct{}{}
		}
	}

	out := make([]string, 0, len(tokens))
	for i, t := range tokens {
		if keep[i] {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}

// utility is a parsed class token. Tokens that are not recognised Tailwind
// utilities have an empty group and conflict only with identical tokens.
type utility struct {
	raw       string
	variants  string // sorted, colon-joined
	important bool
	group     string
}

func (u utility) key() string {
	if u.group == "" {
		return "=" + u.raw
	}
	return u.keyFor(u.group)
}

func (u utility) keyFor(group string) string {
	var b strings.Builder
	b.WriteString(u.variants)
	b.WriteByte('|')
	if u.important {
		b.WriteByte('!')
	}
	b.WriteString(group)
	return b.String()
}

func parseUtility(token string) utility {
	u := utility{raw: token}

	parts := splitVariants(token)
	base := parts[len(parts)-1]
	if variants := parts[:len(parts)-1]; len(variants) > 0 {
		sorted := append([]string(nil), variants...)
		sort.Strings(sorted)
		u.variants = strings.Join(sorted, ":")
	}

	if strings.HasPrefix(base, "!") {
		u.important = true
		base = base[1:]
	} else if strings.HasSuffix(base, "!") {
		u.important = true
		base = base[:len(base)-1]
	}
	base = strings.TrimPrefix(base, "-")

	u.group = classify(base)
	return u
}

// splitVariants splits "md:hover:pt-4" on colons outside square brackets.
func splitVariants(token string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(token); i++ {
		switch token[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 {
				parts = append(parts, token[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, token[start:])
}

// classify maps a utility (without variants, important marker or leading
// minus) to its conflict group.
func classify(base string) string {
	if g, ok := standalone[base]; ok {
		return g
	}
	// Try the longest dash-delimited prefix first so that "inset-x-0"
	// matches "inset-x" before "inset".
	for i := strings.LastIndexByte(base, '-'); i > 0; i = strings.LastIndexByte(base[:i], '-') {
		prefix, value := base[:i], base[i+1:]
		if value == "" {
			continue
		}
		if fn, ok := prefixed[prefix]; ok {
			return fn(value)
		}
	}
	return ""
}

func fixed(group string) func(string) string {
	return func(string) string { return group }
}

var standalone = map[string]string{
	"block": "display", "inline-block": "display", "inline": "display", "flex": "display",
	"inline-flex": "display", "grid": "display", "inline-grid": "display", "hidden": "display",
	"contents": "display", "table": "display", "flow-root": "display", "list-item": "display",

	"static": "position", "fixed": "position", "absolute": "position", "relative": "position",
	"sticky": "position",

	"visible": "visibility", "invisible": "visibility", "collapse": "visibility",

	"italic": "font-style", "not-italic": "font-style",

	"uppercase": "text-transform", "lowercase": "text-transform", "capitalize": "text-transform",
	"normal-case": "text-transform",

	"underline": "text-decoration", "overline": "text-decoration", "line-through": "text-decoration",
	"no-underline": "text-decoration",

	"truncate": "text-overflow",

	"border":  "border-w",
	"rounded": "rounded",
	"shadow":  "shadow",
	"ring":    "ring-w",
	"grow":    "grow",
	"shrink":  "shrink",

	"transition": "transition",
}

var prefixed = map[string]func(string) string{
	"p": fixed("p"), "px": fixed("px"), "py": fixed("py"), "ps": fixed("ps"), "pe": fixed("pe"),
	"pt": fixed("pt"), "pr": fixed("pr"), "pb": fixed("pb"), "pl": fixed("pl"),

	"m": fixed("m"), "mx": fixed("mx"), "my": fixed("my"), "ms": fixed("ms"), "me": fixed("me"),
	"mt": fixed("mt"), "mr": fixed("mr"), "mb": fixed("mb"), "ml": fixed("ml"),

	"space-x": fixed("space-x"), "space-y": fixed("space-y"),
	"gap": fixed("gap"), "gap-x": fixed("gap-x"), "gap-y": fixed("gap-y"),

	"w": fixed("w"), "min-w": fixed("min-w"), "max-w": fixed("max-w"),
	"h": fixed("h"), "min-h": fixed("min-h"), "max-h": fixed("max-h"),
	"size": fixed("size"),

	"inset": fixed("inset"), "inset-x": fixed("inset-x"), "inset-y": fixed("inset-y"),
	"top": fixed("top"), "right": fixed("right"), "bottom": fixed("bottom"), "left": fixed("left"),
	"start": fixed("start"), "end": fixed("end"),
	"z": fixed("z"),

	"flex":      flexGroup,
	"basis":     fixed("basis"),
	"grow":      fixed("grow"),
	"shrink":    fixed("shrink"),
	"order":     fixed("order"),

	"grid-cols": fixed("grid-cols"), "grid-rows": fixed("grid-rows"),
	"col-span": fixed("col-span"), "row-span": fixed("row-span"),
	"items": fixed("align-items"), "justify": fixed("justify-content"),
	"content": fixed("align-content"), "self": fixed("align-self"),

	"overflow": fixed("overflow"), "overflow-x": fixed("overflow-x"), "overflow-y": fixed("overflow-y"),

	"text":     textGroup,
	"font":     fontGroup,
	"leading":  fixed("leading"),
	"tracking": fixed("tracking"),
	"bg":       bgGroup,
	"opacity":  fixed("opacity"),

	"border": borderGroup(""),

	"border-x": borderGroup("x"), "border-y": borderGroup("y"),
	"border-t": borderGroup("t"), "border-r": borderGroup("r"),
	"border-b": borderGroup("b"), "border-l": borderGroup("l"),
	"border-s": borderGroup("s"), "border-e": borderGroup("e"),

	"rounded": roundedGroup,

	"rounded-t": fixed("rounded-t"), "rounded-r": fixed("rounded-r"),
	"rounded-b": fixed("rounded-b"), "rounded-l": fixed("rounded-l"),
	"rounded-tl": fixed("rounded-tl"), "rounded-tr": fixed("rounded-tr"),
	"rounded-br": fixed("rounded-br"), "rounded-bl": fixed("rounded-bl"),

	"shadow":     shadowGroup,
	"ring":       ringGroup,
	"cursor":     fixed("cursor"),
	"duration":   fixed("duration"),
	"ease":       fixed("ease"),
	"delay":      fixed("delay"),
	"transition": fixed("transition"),
}

// conflictingGroups lists, for a shorthand group, the longhand groups it
// overrides when it appears later.
var conflictingGroups = map[string][]string{
	"p":  {"px", "py", "ps", "pe", "pt", "pr", "pb", "pl"},
	"px": {"pr", "pl"},
	"py": {"pt", "pb"},
	"m":  {"mx", "my", "ms", "me", "mt", "mr", "mb", "ml"},
	"mx": {"mr", "ml"},
	"my": {"mt", "mb"},

	"gap":      {"gap-x", "gap-y"},
	"size":     {"w", "h"},
	"inset":    {"inset-x", "inset-y", "start", "end", "top", "right", "bottom", "left"},
	"inset-x":  {"right", "left"},
	"inset-y":  {"top", "bottom"},
	"overflow": {"overflow-x", "overflow-y"},

	"font-size": {"leading"},

	"rounded":   {"rounded-t", "rounded-r", "rounded-b", "rounded-l", "rounded-tl", "rounded-tr", "rounded-br", "rounded-bl"},
	"rounded-t": {"rounded-tl", "rounded-tr"},
	"rounded-r": {"rounded-tr", "rounded-br"},
	"rounded-b": {"rounded-br", "rounded-bl"},
	"rounded-l": {"rounded-tl", "rounded-bl"},

	"border-w":       {"border-w-x", "border-w-y", "border-w-s", "border-w-e", "border-w-t", "border-w-r", "border-w-b", "border-w-l"},
	"border-w-x":     {"border-w-r", "border-w-l"},
	"border-w-y":     {"border-w-t", "border-w-b"},
	"border-color":   {"border-color-x", "border-color-y", "border-color-s", "border-color-e", "border-color-t", "border-color-r", "border-color-b", "border-color-l"},
	"border-color-x": {"border-color-r", "border-color-l"},
	"border-color-y": {"border-color-t", "border-color-b"},
}

var (
	fontSizes = setOf("xs", "sm", "base", "lg", "xl", "2xl", "3xl", "4xl", "5xl", "6xl", "7xl", "8xl", "9xl")
	textAlign = setOf("left", "center", "right", "justify", "start", "end")
	textWrap  = setOf("wrap", "nowrap", "balance", "pretty")
	weights   = setOf("thin", "extralight", "light", "normal", "medium", "semibold", "bold", "extrabold", "black")
	radii     = setOf("none", "sm", "md", "lg", "xl", "2xl", "3xl", "full")
	shadows   = setOf("sm", "md", "lg", "xl", "2xl", "inner", "none")
	borderSty = setOf("solid", "dashed", "dotted", "double", "hidden", "none")
	bgAttach  = setOf("fixed", "local", "scroll")
	bgSize    = setOf("auto", "cover", "contain")
	bgRepeat  = setOf("repeat", "no-repeat", "repeat-x", "repeat-y", "repeat-round", "repeat-space")
	bgPos     = setOf("bottom", "center", "left", "left-bottom", "left-top", "right", "right-bottom", "right-top", "top")
)

func setOf(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func in(set map[string]struct{}, v string) bool {
	_, ok := set[v]
	return ok
}

func flexGroup(v string) string {
	switch v {
	case "row", "row-reverse", "col", "col-reverse":
		return "flex-direction"
	case "wrap", "wrap-reverse", "nowrap":
		return "flex-wrap"
	}
	return "flex"
}

func textGroup(v string) string {
	switch {
	case in(fontSizes, v):
		return "font-size"
	case in(textAlign, v):
		return "text-align"
	case in(textWrap, v):
		return "text-wrap"
	case v == "ellipsis" || v == "clip":
		return "text-overflow"
	case isArbitrary(v):
		if isArbitraryLength(v) {
			return "font-size"
		}
		return "text-color"
	}
	return "text-color"
}

func fontGroup(v string) string {
	if in(weights, v) {
		return "font-weight"
	}
	if isArbitrary(v) && isNumeric(strings.Trim(v, "[]")) {
		return "font-weight"
	}
	return "font-family"
}

func bgGroup(v string) string {
	switch {
	case in(bgAttach, v):
		return "bg-attachment"
	case in(bgSize, v):
		return "bg-size"
	case in(bgRepeat, v):
		return "bg-repeat"
	case in(bgPos, v):
		return "bg-position"
	case v == "none" || strings.HasPrefix(v, "gradient-"):
		return "bg-image"
	case isArbitrary(v) && strings.HasPrefix(v, "[url("):
		return "bg-image"
	}
	return "bg-color"
}

// borderGroup handles "border-2", "border-red-500", "border-dashed" and the
// side variants ("border-t", "border-x-4", "border-b-gray-200").
func borderGroup(side string) func(string) string {
	suffix := ""
	if side != "" {
		suffix = "-" + side
	}
	return func(v string) string {
		if side == "" {
			switch v {
			case "x", "y", "t", "r", "b", "l", "s", "e":
				return "border-w-" + v
			}
			if in(borderSty, v) {
				return "border-style"
			}
			if v == "collapse" || v == "separate" {
				return "border-collapse"
			}
		}
		if isNumeric(v) || (isArbitrary(v) && isArbitraryLength(v)) {
			return "border-w" + suffix
		}
		return "border-color" + suffix
	}
}

func roundedGroup(v string) string {
	if in(radii, v) || isArbitrary(v) {
		return "rounded"
	}
	return ""
}

func shadowGroup(v string) string {
	if in(shadows, v) {
		return "shadow"
	}
	return "shadow-color"
}

func ringGroup(v string) string {
	if offset, ok := strings.CutPrefix(v, "offset-"); ok {
		if isNumeric(offset) || (isArbitrary(offset) && isArbitraryLength(offset)) {
			return "ring-offset-w"
		}
		return "ring-offset-color"
	}
	switch {
	case v == "inset":
		return "ring-inset"
	case isNumeric(v) || (isArbitrary(v) && isArbitraryLength(v)):
		return "ring-w"
	}
	return "ring-color"
}

func isArbitrary(v string) bool {
	return strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]")
}

func isArbitraryLength(v string) bool {
	inner := strings.Trim(v, "[]")
	if strings.HasPrefix(inner, "length:") {
		return true
	}
	if strings.HasPrefix(inner, "calc(") || strings.HasPrefix(inner, "clamp(") {
		return true
	}
	for _, unit := range []string{"px", "rem", "em", "%", "vh", "vw", "dvh", "svh", "ch", "pt"} {
		if num, ok := strings.CutSuffix(inner, unit); ok && isNumeric(num) {
			return true
		}
	}
	return false
}

func isNumeric(v string) bool {
	if v == "" {
		return false
	}
	dot := false
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}
