package hclscene

import (
	"fmt"
	"reflect"

	"github.com/specialistvlad/resgraph/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

type linkKind int

const (
	linkRef linkKind = iota + 1
	linkClone
	linkFile
	linkRequiredFile
)

// link is the value the scene functions evaluate to. It is lowered to a
// plain string once the attribute has been walked.
type link struct {
	kind     linkKind
	target   string
	expected string
}

var linkType = cty.Capsule("link", reflect.TypeOf(link{}))

func isLink(v cty.Value) bool {
	return v.Type().Equals(linkType)
}

func linkOf(v cty.Value) *link {
	return v.EncapsulatedValue().(*link)
}

// functions returns the scene functions for a file in directory dir.
func functions(dir string) map[string]function.Function {
	return map[string]function.Function{
		"ref":           pointerFunc(linkRef),
		"clone":         pointerFunc(linkClone),
		"file":          fileFunc(dir, linkFile),
		"required_file": fileFunc(dir, linkRequiredFile),
	}
}

func pointerFunc(kind linkKind) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "id", Type: cty.String},
		},
		VarParam: &function.Parameter{Name: "type", Type: cty.String},
		Type:     function.StaticReturnType(linkType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			if len(args) > 2 {
				return cty.NilVal, fmt.Errorf("expected an id and an optional type, got %d arguments", len(args))
			}
			l := &link{kind: kind, target: args[0].AsString()}
			if l.target == "" {
				return cty.NilVal, function.NewArgErrorf(0, "object id must not be empty")
			}
			if len(args) == 2 {
				l.expected = args[1].AsString()
			}
			return cty.CapsuleVal(linkType, l), nil
		},
	})
}

func fileFunc(dir string, kind linkKind) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "path", Type: cty.String},
		},
		Type: function.StaticReturnType(linkType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			raw := args[0].AsString()
			if raw == "" {
				return cty.NilVal, function.NewArgErrorf(0, "file path must not be empty")
			}
			p, err := fsutil.NormalizePath(dir, raw)
			if err != nil {
				return cty.NilVal, function.NewArgError(0, err)
			}
			return cty.CapsuleVal(linkType, &link{kind: kind, target: p}), nil
		},
	})
}
