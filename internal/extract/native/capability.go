package native

import "strings"

// interactivity is the heuristic verdict for a widget class when handler
// introspection is unavailable.
type interactivity int

const (
	// inherit trusts the raw clickable flag as reported.
	inherit interactivity = iota
	// alwaysInteractive treats the class as clickable regardless of flags.
	alwaysInteractive
	// neverSelfInteractive treats the class as a passive container whose
	// clickability belongs to descendants.
	neverSelfInteractive
)

// CapabilityTable decides whether a widget's raw clickable flag can be
// trusted. An explicit per-type table replaces runtime reflection probing so
// the walker stays decoupled from any single toolkit's introspection
// facility.
type CapabilityTable struct {
	byClass map[string]interactivity
	// itemContainers are list/grid classes whose self-click is only real when
	// the container owns an item-click handler.
	itemContainers map[string]struct{}
}

// DefaultCapabilities returns the stock table for the common toolkit classes.
func DefaultCapabilities() *CapabilityTable {
	return &CapabilityTable{
		byClass: map[string]interactivity{
			"Button":       alwaysInteractive,
			"ImageButton":  alwaysInteractive,
			"CheckBox":     alwaysInteractive,
			"Switch":       alwaysInteractive,
			"RadioButton":  alwaysInteractive,
			"ToggleButton": alwaysInteractive,
			"Chip":         alwaysInteractive,

			"FrameLayout":      neverSelfInteractive,
			"LinearLayout":     neverSelfInteractive,
			"RelativeLayout":   neverSelfInteractive,
			"ConstraintLayout": neverSelfInteractive,
			"ScrollView":       neverSelfInteractive,
			"ViewGroup":        neverSelfInteractive,
		},
		itemContainers: map[string]struct{}{
			"ListView":     {},
			"GridView":     {},
			"RecyclerView": {},
			"ExpandableListView": {},
			"Spinner":           {},
		},
	}
}

// IsItemContainer reports whether the class is a list/grid item container.
func (t *CapabilityTable) IsItemContainer(class string) bool {
	_, ok := t.itemContainers[simpleName(class)]
	return ok
}

// Heuristic returns the class-level interactivity verdict, used only when the
// handler probe reports unknown.
func (t *CapabilityTable) Heuristic(class string) interactivity {
	if v, ok := t.byClass[simpleName(class)]; ok {
		return v
	}
	return inherit
}

func simpleName(class string) string {
	if i := strings.LastIndex(class, "."); i >= 0 {
		return class[i+1:]
	}
	return class
}
