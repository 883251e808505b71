package web

// Element is a lightweight document node for the local evaluator. Hosts that
// can hand over a DOM snapshot but no script engine build one of these trees
// and serve it through LocalSurface.
type Element struct {
	TagName    string
	Text       string
	Attributes map[string]string
	// Rect is the viewport-relative rectangle: left, top, width, height.
	Rect     [4]float64
	Children []*Element
}

// NewElement creates an element with the given tag.
func NewElement(tag string) *Element {
	return &Element{TagName: tag, Attributes: make(map[string]string)}
}

// Attr sets an attribute and returns the receiver for chaining.
func (e *Element) Attr(name, value string) *Element {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[name] = value
	return e
}

// At positions the element and returns the receiver.
func (e *Element) At(left, top, width, height float64) *Element {
	e.Rect = [4]float64{left, top, width, height}
	return e
}

// Add appends children and returns the receiver.
func (e *Element) Add(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// WithText sets the text content and returns the receiver.
func (e *Element) WithText(text string) *Element {
	e.Text = text
	return e
}

// toScriptObject converts the element into the plain-object shape the
// extraction script consumes: tagName, children, innerText, getAttribute,
// getBoundingClientRect.
func (e *Element) toScriptObject() map[string]interface{} {
	attrs := e.Attributes
	rect := e.Rect

	children := make([]interface{}, 0, len(e.Children))
	for _, c := range e.Children {
		children = append(children, c.toScriptObject())
	}

	return map[string]interface{}{
		"tagName":   e.TagName,
		"innerText": e.Text,
		"children":  children,
		"getAttribute": func(name string) string {
			return attrs[name]
		},
		"getBoundingClientRect": func() map[string]interface{} {
			return map[string]interface{}{
				"left":   rect[0],
				"top":    rect[1],
				"width":  rect[2],
				"height": rect[3],
				"right":  rect[0] + rect[2],
				"bottom": rect[1] + rect[3],
			}
		},
	}
}
