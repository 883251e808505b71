package web

// ExtractionScript is injected into the embedded web surface. It walks the
// rendered document and returns a JSON-serialized tree of viewport-relative
// nodes. Nodes with zero rendered size are invisible and skipped; text is
// kept only on leaves so ancestor nodes do not duplicate what descendants
// already carry.
const ExtractionScript = `(function() {
  function attr(e, n) {
    return e.getAttribute ? (e.getAttribute(n) || "") : "";
  }
  function isClickable(e) {
    var t = (e.tagName || "").toLowerCase();
    if (t === "a" || t === "button" || t === "select" || t === "input") return true;
    if (attr(e, "onclick") !== "") return true;
    var role = attr(e, "role");
    return role === "button" || role === "link" || role === "checkbox" || role === "tab";
  }
  function isEditable(e) {
    var t = (e.tagName || "").toLowerCase();
    if (t === "textarea") return true;
    if (t === "input") {
      var ty = attr(e, "type").toLowerCase();
      return ty !== "button" && ty !== "submit" && ty !== "checkbox" && ty !== "radio";
    }
    return attr(e, "contenteditable") === "true";
  }
  function walk(e) {
    var r = e.getBoundingClientRect();
    if (!r || r.width <= 0 || r.height <= 0) return null;
    var kids = [];
    var cs = e.children || [];
    for (var i = 0; i < cs.length; i++) {
      var k = walk(cs[i]);
      if (k) kids.push(k);
    }
    var node = {
      tag: (e.tagName || "").toLowerCase(),
      desc: attr(e, "aria-label"),
      rect: { x: r.left, y: r.top, w: r.width, h: r.height },
      clickable: isClickable(e),
      editable: isEditable(e),
      children: kids
    };
    if (kids.length === 0) {
      node.text = (e.innerText || "").trim();
    }
    return node;
  }
  var root = walk(document.body);
  return JSON.stringify(root);
})()`
