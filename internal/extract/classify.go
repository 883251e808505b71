package extract

import (
	"strings"

	"github.com/devicepilot/agent/internal/element"
	"github.com/devicepilot/agent/internal/platform"
)

// nativePrefixes are the recognized native-toolkit namespaces. A surface with
// any descendant from these is driven through the native walker.
var nativePrefixes = []string{
	"android.widget.",
	"android.view.",
	"androidx.",
	"com.google.android.material.",
}

// nativeClasses covers toolkit controls reported without a namespace.
var nativeClasses = map[string]struct{}{
	"Button": {}, "TextView": {}, "EditText": {}, "ImageView": {},
	"ImageButton": {}, "CheckBox": {}, "Switch": {}, "RadioButton": {},
	"ListView": {}, "GridView": {}, "RecyclerView": {}, "ScrollView": {},
	"FrameLayout": {}, "LinearLayout": {}, "RelativeLayout": {},
	"ConstraintLayout": {}, "ViewPager": {}, "Toolbar": {}, "SeekBar": {},
	"ProgressBar": {}, "Spinner": {}, "WebView": {},
}

// Classify decides which extractor applies to the surface rooted at root.
// Checks short-circuit in order: visible embedded web content wins, then a
// recognized native control anywhere in the hierarchy, then the
// accessibility fallback.
func Classify(root platform.Widget) element.Backend {
	if root == nil {
		return element.BackendA11y
	}
	if FindWebSurface(root) != nil {
		return element.BackendWeb
	}
	if hasNativeControl(root) {
		return element.BackendNative
	}
	return element.BackendA11y
}

// FindWebSurface locates the first actually-visible embedded web surface by
// recursive descent, skipping invisible, fully transparent, and zero-size
// subtrees.
func FindWebSurface(w platform.Widget) platform.WebSurface {
	if w == nil || !renderable(w) {
		return nil
	}
	if surface, ok := w.WebContent(); ok && surface != nil && surface.Visible() {
		return surface
	}
	for _, c := range w.Children() {
		if s := FindWebSurface(c); s != nil {
			return s
		}
	}
	return nil
}

// renderable reports whether the widget subtree can contribute pixels.
func renderable(w platform.Widget) bool {
	if !w.Visible() || w.Alpha() <= 0 {
		return false
	}
	l, t, r, b := w.BoundsPx()
	return r > l && b > t
}

func hasNativeControl(w platform.Widget) bool {
	if w == nil {
		return false
	}
	if isNativeClass(w.ClassName()) {
		return true
	}
	for _, c := range w.Children() {
		if hasNativeControl(c) {
			return true
		}
	}
	return false
}

func isNativeClass(class string) bool {
	if _, ok := nativeClasses[simpleName(class)]; ok {
		return true
	}
	for _, p := range nativePrefixes {
		if strings.HasPrefix(class, p) {
			return true
		}
	}
	return false
}

// simpleName strips any package qualifier from a class name.
func simpleName(class string) string {
	if i := strings.LastIndex(class, "."); i >= 0 {
		return class[i+1:]
	}
	return class
}
