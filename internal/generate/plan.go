package generate

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dbforge/internal/block"
	"github.com/roach88/dbforge/internal/record"
)

// IndexPlaceholder is replaced by the entity index in string values.
const IndexPlaceholder = "{index}"

// planSchema constrains plan files. Attribute structs stay open so that
// "value" can be any CUE value; its type is checked against "type" below.
const planSchema = `
table:   (string & !="") | *"entity"
version: (int & >=0) | *1
attributes: [...{
	property: string & !=""
	type:     "int" | "string" | "bool" | "date" | "unsigned"
	derive:   bool | *false
	...
}]
`

// Attribute describes one attribute record emitted per entity.
type Attribute struct {
	Property string
	Type     block.Type

	// Value is the literal payload. String values may contain IndexPlaceholder.
	Value block.Value

	// Derive replaces Value with a deterministic number in [0, 99].
	Derive bool
}

// Plan is the per-entity record layout.
type Plan struct {
	Table      string
	Version    int64
	Attributes []Attribute
}

// DefaultPlan emits a single string attribute "name" = "entity-<index>".
func DefaultPlan() *Plan {
	return &Plan{
		Table:   "entity",
		Version: 1,
		Attributes: []Attribute{
			{Property: "name", Type: block.TypeString, Value: block.String("entity-" + IndexPlaceholder)},
		},
	}
}

// PlanError is a plan problem with its CUE source position.
type PlanError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *PlanError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadPlan reads a plan from a CUE file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(data, path)
}

// ParsePlan compiles CUE source into a Plan. filename is used in positions.
func ParsePlan(src []byte, filename string) (*Plan, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(planSchema, cue.Filename("plan-schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("plan schema: %w", err)
	}

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.Unify(user)
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	plan := &Plan{}

	plan.Table, err = lookupString(v, "table")
	if err != nil {
		return nil, err
	}

	version, err := defaulted(v.LookupPath(cue.ParsePath("version"))).Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	plan.Version = version

	iter, err := v.LookupPath(cue.ParsePath("attributes")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	seen := make(map[string]bool)
	for iter.Next() {
		attr, err := parseAttribute(iter.Value())
		if err != nil {
			return nil, err
		}
		if seen[attr.Property] {
			return nil, &PlanError{
				Field:   "attributes",
				Message: fmt.Sprintf("duplicate property %q", attr.Property),
				Pos:     iter.Value().Pos(),
			}
		}
		seen[attr.Property] = true
		plan.Attributes = append(plan.Attributes, attr)
	}

	return plan, nil
}

func parseAttribute(v cue.Value) (Attribute, error) {
	var attr Attribute

	prop, err := lookupString(v, "property")
	if err != nil {
		return attr, err
	}
	if prop == record.PropertyCreate {
		return attr, &PlanError{
			Field:   "property",
			Message: fmt.Sprintf("%q is reserved for create records", prop),
			Pos:     v.Pos(),
		}
	}
	attr.Property = prop

	typ, err := lookupString(v, "type")
	if err != nil {
		return attr, err
	}
	attr.Type = block.Type(typ)

	attr.Derive, err = defaulted(v.LookupPath(cue.ParsePath("derive"))).Bool()
	if err != nil {
		return attr, formatCUEError(err)
	}

	valueVal := v.LookupPath(cue.ParsePath("value"))
	switch {
	case attr.Derive && valueVal.Exists():
		return attr, &PlanError{Field: prop, Message: "value and derive are mutually exclusive", Pos: valueVal.Pos()}
	case attr.Derive:
		if attr.Type != block.TypeInt && attr.Type != block.TypeUnsigned {
			return attr, &PlanError{Field: prop, Message: "derive requires type int or unsigned", Pos: v.Pos()}
		}
		return attr, nil
	case !valueVal.Exists():
		return attr, &PlanError{Field: prop, Message: "value or derive is required", Pos: v.Pos()}
	}

	attr.Value, err = convertValue(attr.Type, valueVal)
	if err != nil {
		return attr, &PlanError{Field: prop, Message: err.Error(), Pos: valueVal.Pos()}
	}
	return attr, nil
}

// convertValue reads a CUE literal as the block value of type t.
func convertValue(t block.Type, v cue.Value) (block.Value, error) {
	switch t {
	case block.TypeInt:
		n, err := v.Int64()
		if err != nil {
			return nil, err
		}
		return block.Int(n), nil
	case block.TypeUnsigned:
		n, err := v.Uint64()
		if err != nil {
			return nil, err
		}
		return block.Unsigned(n), nil
	case block.TypeString:
		s, err := v.String()
		if err != nil {
			return nil, err
		}
		return block.String(s), nil
	case block.TypeBool:
		b, err := v.Bool()
		if err != nil {
			return nil, err
		}
		return block.Bool(b), nil
	case block.TypeDate:
		s, err := v.String()
		if err != nil {
			return nil, err
		}
		return block.NewDate(s)
	default:
		return nil, fmt.Errorf("unsupported attribute type %q", t)
	}
}

// value returns the payload for entity index. derived is only consulted
// when a.Derive is set.
func (a Attribute) value(index int64, derived uint64) block.Value {
	if a.Derive {
		n := derived % 100
		if a.Type == block.TypeUnsigned {
			return block.Unsigned(n)
		}
		return block.Int(int64(n))
	}
	if s, ok := a.Value.(block.String); ok {
		return block.String(strings.ReplaceAll(string(s), IndexPlaceholder, strconv.FormatInt(index, 10)))
	}
	return a.Value
}

func lookupString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &PlanError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := defaulted(fv).String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// defaulted resolves a disjunction to its default, if it has one.
func defaulted(v cue.Value) cue.Value {
	if d, ok := v.Default(); ok {
		return d
	}
	return v
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &PlanError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
