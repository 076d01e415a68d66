package machine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arbor-lang/arbor/lang/types"
)

// FormatValue renders a result value for the embedder contract (spec §6):
// since lang/machine carries no runtime type tags, the caller's statically
// known Type is walked alongside the raw flat word / heap Value to decide
// how to print it, rather than asking the value itself what it is.
func FormatValue(t *types.Type, flat uint64, heap Value) string {
	switch t.Kind {
	case types.Int:
		return strconv.FormatInt(int64(flat), 10)
	case types.Bool:
		return strconv.FormatBool(flat != 0)
	case types.Float:
		return strconv.FormatFloat(floatBits(flat), 'g', -1, 64)
	case types.Str:
		if s, ok := heap.(Str); ok {
			return string(s)
		}
		return ""
	case types.Arr:
		return formatSequence(t.Elem, heap)
	case types.Iter:
		collected, err := collectIter(heap)
		if err != nil {
			return fmt.Sprintf("<error: %v>", err)
		}
		return formatSequence(t.Elem, collected)
	case types.Maybe:
		return formatMaybe(t.Elem, heap)
	case types.Object:
		return formatObject(t, heap)
	case types.Func, types.TypeDef:
		if heap != nil {
			return heap.String()
		}
		return "<fn>"
	default:
		return fmt.Sprintf("<unformattable %s>", t.Kind)
	}
}

func formatSequence(elem *types.Type, v Value) string {
	var parts []string
	if elem.HeapShaped() {
		arr, _ := v.(*ArrayHeap)
		if arr != nil {
			parts = make([]string, len(arr.Vals))
			for i, ev := range arr.Vals {
				parts[i] = FormatValue(elem, 0, ev)
			}
		}
	} else {
		arr, _ := v.(*ArrayFlat)
		if arr != nil {
			parts = make([]string, len(arr.Vals))
			for i, ev := range arr.Vals {
				parts[i] = FormatValue(elem, ev, nil)
			}
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatMaybe(elem *types.Type, v Value) string {
	if elem.HeapShaped() {
		m, ok := v.(MaybeHeap)
		if !ok || !m.Present {
			return "{}"
		}
		return "Some(" + FormatValue(elem, 0, m.Val) + ")"
	}
	m, ok := v.(MaybeFlat)
	if !ok || !m.Present {
		return "{}"
	}
	return "Some(" + FormatValue(elem, m.Val, nil) + ")"
}

func formatObject(t *types.Type, v Value) string {
	obj, ok := v.(*Object)
	if !ok {
		return t.Name + "{}"
	}
	parts := make([]string, len(obj.Fields))
	for i, f := range obj.Fields {
		ft := t.Fields[i].Type
		var rendered string
		if f.Heap {
			rendered = FormatValue(ft, 0, f.Val)
		} else {
			rendered = FormatValue(ft, f.Flat, nil)
		}
		parts[i] = t.Fields[i].Name + ": " + rendered
	}
	return t.Name + "{" + strings.Join(parts, ", ") + "}"
}
