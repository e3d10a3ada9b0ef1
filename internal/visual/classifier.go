package visual

import "strings"

// Classification is the verdict for a visual type identifier.
type Classification int

const (
	// Builtin is a visual type shipped with Power BI.
	Builtin Classification = iota

	// Custom is a third-party or organization-authored visual type.
	Custom
)

// String returns "builtin" or "custom".
func (c Classification) String() string {
	if c == Custom {
		return "custom"
	}
	return "builtin"
}

// maxBuiltinTypeLength is the longest identifier we still consider
// plausibly built-in. Built-in type names are short camelCase words;
// custom visual identifiers typically embed a vendor GUID and run
// much longer.
const maxBuiltinTypeLength = 25

// builtinTypes is the reference set of known built-in visual type
// identifiers, keyed by their lowercased form for case-insensitive
// lookup.
var builtinTypes = map[string]struct{}{}

// builtinTypeNames lists the known built-in visual types as they
// appear in report layouts.
var builtinTypeNames = []string{
	"barChart", "clusteredBarChart", "clusteredColumnChart", "columnChart",
	"lineChart", "areaChart", "lineClusteredColumnComboChart", "lineStackedColumnComboChart",
	"pieChart", "donutChart", "funnel", "gauge", "card", "multiRowCard",
	"table", "matrix", "slicer", "map", "filledMap", "shape", "image",
	"textbox", "scatterChart", "pivotTable", "treemap", "waterfallChart",
	"hundredPercentStackedBarChart", "hundredPercentStackedColumnChart",
	"ribbonChart", "kpi", "decompositionTreeVisual",
	"stackedBarChart", "stackedColumnChart", "lineStackedAreaChart",
	"hundredPercentStackedAreaChart", "stackedAreaChart",
	"ribbon", "actionButton", "basicShape",
}

// customPrefixes marks identifiers from known custom-visual naming
// conventions. PBI_CV_ prefixed GUIDs are the marketplace convention.
var customPrefixes = []string{"PBI_CV", "custom", "Custom"}

func init() {
	for _, name := range builtinTypeNames {
		builtinTypes[strings.ToLower(name)] = struct{}{}
	}
}

// Classify determines whether a visual type identifier names a
// built-in or a custom visual. It is total and pure: any input,
// including empty or placeholder identifiers, yields a verdict.
//
// Rules are applied in order, first match wins:
//  1. case-insensitive member of the built-in reference set -> builtin
//  2. contains a "." (vendor-qualified naming) -> custom
//  3. longer than 25 characters -> custom
//  4. starts with a known custom-vendor prefix -> custom
//  5. otherwise -> builtin (unseen short identifiers are not flagged)
func Classify(typeIdentifier string) Classification {
	// Absent or placeholder types carry no naming signal.
	if typeIdentifier == "" || typeIdentifier == "Unknown" {
		return Builtin
	}

	if _, ok := builtinTypes[strings.ToLower(typeIdentifier)]; ok {
		return Builtin
	}

	if strings.Contains(typeIdentifier, ".") {
		return Custom
	}

	if len(typeIdentifier) > maxBuiltinTypeLength {
		return Custom
	}

	for _, prefix := range customPrefixes {
		if strings.HasPrefix(typeIdentifier, prefix) {
			return Custom
		}
	}

	return Builtin
}

// IsCustom is a convenience wrapper around Classify.
func IsCustom(typeIdentifier string) bool {
	return Classify(typeIdentifier) == Custom
}
