package hclscene

import (
	"github.com/specialistvlad/resgraph/internal/proppath"
	"github.com/zclconf/go-cty/cty"
)

// propLink is a scene function call found at path inside an attribute.
type propLink struct {
	path proppath.Path
	link link
}

// lower replaces every link in v with its target string and records the
// link together with the property path it was found at.
func lower(v cty.Value, path proppath.Path, out *[]propLink) cty.Value {
	if v.IsNull() || !v.IsKnown() {
		return v
	}
	if isLink(v) {
		l := linkOf(v)
		*out = append(*out, propLink{path: path, link: *l})
		return cty.StringVal(l.target)
	}

	ty := v.Type()
	switch {
	case ty.IsTupleType(), ty.IsListType():
		if v.LengthInt() == 0 {
			return v
		}
		elems := make([]cty.Value, 0, v.LengthInt())
		i := 0
		for it := v.ElementIterator(); it.Next(); i++ {
			_, ev := it.Element()
			elems = append(elems, lower(ev, path.Element(i), out))
		}
		if ty.IsListType() {
			return cty.ListVal(elems)
		}
		return cty.TupleVal(elems)

	case ty.IsObjectType(), ty.IsMapType():
		if v.LengthInt() == 0 {
			return v
		}
		attrs := make(map[string]cty.Value, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			name := k.AsString()
			attrs[name] = lower(ev, path.Child(name), out)
		}
		if ty.IsMapType() {
			return cty.MapVal(attrs)
		}
		return cty.ObjectVal(attrs)
	}
	return v
}
