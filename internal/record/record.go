package record

import (
	"fmt"
	"math"

	"github.com/roach88/dbforge/internal/block"
)

// Leaf names understood by this package.
const (
	BlockName     = "record"
	FieldTable    = "table_type"
	FieldProperty = "property"
	FieldUniqueID = "db_unique_id"
	FieldValue    = "value"
	FieldVersion  = "version"
	FieldRandomID = "db_random_id"
)

// PropertyCreate is the reserved property tag of a CreateRecord.
const PropertyCreate = "create"

// Record is a sealed interface over *Attribute and *Create.
type Record interface {
	// TopID returns the top-level db_unique_id: the entity id of an
	// attribute record, or the container id of a CreateRecord.
	TopID() int64

	// RandomID returns the per-record random id, if the record has one.
	RandomID() (uint32, bool)

	// SetRandomID replaces the per-record random id.
	SetRandomID(id uint32)

	// Table returns the table_type leaf, or "" when absent.
	Table() string

	// Block encodes the record, with its current ids, as a top-level block.
	Block() block.Field

	// Clone returns a deep copy.
	Clone() Record

	isRecord() // Sealed
}

// base holds what both variants share. fields is the full top-level block
// as read; id leaves in it are refreshed from the typed fields by Block.
type base struct {
	name      string
	fields    block.Record
	randomID  uint32
	hasRandom bool
}

func (b *base) RandomID() (uint32, bool) { return b.randomID, b.hasRandom }

func (b *base) SetRandomID(id uint32) {
	b.randomID = id
	b.hasRandom = true
}

func (b *base) Table() string {
	if v, ok := b.fields.Lookup(FieldTable); ok {
		if s, ok := v.(block.String); ok {
			return string(s)
		}
	}
	return ""
}

// Version returns the version leaf, or 0 when absent.
func (b *base) Version() int64 {
	if v, ok := b.fields.Lookup(FieldVersion); ok {
		if n, ok := v.(block.Int); ok {
			return int64(n)
		}
	}
	return 0
}

func (b *base) clone() base {
	return base{
		name:      b.name,
		fields:    block.Clone(b.fields).(block.Record),
		randomID:  b.randomID,
		hasRandom: b.hasRandom,
	}
}

// encode returns a copy of fields with the shared id leaves refreshed.
func (b *base) encode(topID int64) block.Record {
	out := block.Clone(b.fields).(block.Record)
	out = out.Set(FieldUniqueID, block.LargeInt(topID))
	if b.hasRandom {
		out = out.Set(FieldRandomID, block.Unsigned(b.randomID))
	}
	return out
}

// Attribute is an ordinary record tagged with its owning entity id.
type Attribute struct {
	base
	EntityID int64
}

func (*Attribute) isRecord() {}

// TopID returns the owning entity id.
func (a *Attribute) TopID() int64 { return a.EntityID }

// Property returns the property tag.
func (a *Attribute) Property() string {
	if v, ok := a.fields.Lookup(FieldProperty); ok {
		if s, ok := v.(block.String); ok {
			return string(s)
		}
	}
	return ""
}

// Payload returns the value leaf, or nil when absent.
func (a *Attribute) Payload() block.Value {
	v, _ := a.fields.Lookup(FieldValue)
	return v
}

// Block encodes the attribute record.
func (a *Attribute) Block() block.Field {
	return block.Field{Name: a.name, Value: a.encode(a.EntityID)}
}

// Clone returns a deep copy.
func (a *Attribute) Clone() Record {
	return &Attribute{base: a.clone(), EntityID: a.EntityID}
}

// Create is the record that mints an entity id.
type Create struct {
	base
	ContainerID int64
	EntityID    int64
}

func (*Create) isRecord() {}

// TopID returns the container id.
func (c *Create) TopID() int64 { return c.ContainerID }

// Block encodes the CreateRecord, refreshing both the container id and the
// minted entity id nested in its value.
func (c *Create) Block() block.Field {
	out := c.encode(c.ContainerID)
	i := out.Index(FieldValue)
	payload, _ := out[i].Value.(block.Record)
	out[i].Value = payload.Set(FieldUniqueID, block.LargeInt(c.EntityID))
	return block.Field{Name: c.name, Value: out}
}

// Clone returns a deep copy.
func (c *Create) Clone() Record {
	return &Create{base: c.clone(), ContainerID: c.ContainerID, EntityID: c.EntityID}
}

// FromBlock classifies a top-level block.
// The block must be a record carrying a string property leaf and a large_int
// db_unique_id leaf. A CreateRecord must also carry a value record with its
// own large_int db_unique_id.
func FromBlock(f block.Field) (Record, error) {
	fields, ok := f.Value.(block.Record)
	if !ok {
		return nil, fmt.Errorf("block %q is not a record", f.Name)
	}

	propVal, ok := fields.Lookup(FieldProperty)
	if !ok {
		return nil, fmt.Errorf("block %q: missing %s", f.Name, FieldProperty)
	}
	prop, ok := propVal.(block.String)
	if !ok {
		return nil, fmt.Errorf("block %q: %s must be a string", f.Name, FieldProperty)
	}

	topID, err := uniqueID(fields)
	if err != nil {
		return nil, fmt.Errorf("block %q: %w", f.Name, err)
	}

	b := base{name: f.Name, fields: fields}
	if v, ok := fields.Lookup(FieldRandomID); ok {
		u, ok := v.(block.Unsigned)
		if !ok || uint64(u) > math.MaxUint32 {
			return nil, fmt.Errorf("block %q: %s must be a 32-bit unsigned", f.Name, FieldRandomID)
		}
		b.randomID = uint32(u)
		b.hasRandom = true
	}

	if string(prop) != PropertyCreate {
		return &Attribute{base: b, EntityID: topID}, nil
	}

	payloadVal, ok := fields.Lookup(FieldValue)
	if !ok {
		return nil, fmt.Errorf("block %q: create record has no %s", f.Name, FieldValue)
	}
	payload, ok := payloadVal.(block.Record)
	if !ok {
		return nil, fmt.Errorf("block %q: create record %s must be a record", f.Name, FieldValue)
	}
	minted, err := uniqueID(payload)
	if err != nil {
		return nil, fmt.Errorf("block %q: create record %s: %w", f.Name, FieldValue, err)
	}

	return &Create{base: b, ContainerID: topID, EntityID: minted}, nil
}

func uniqueID(fields block.Record) (int64, error) {
	v, ok := fields.Lookup(FieldUniqueID)
	if !ok {
		return 0, fmt.Errorf("missing %s", FieldUniqueID)
	}
	id, ok := v.(block.LargeInt)
	if !ok {
		return 0, fmt.Errorf("%s must be large_int", FieldUniqueID)
	}
	return int64(id), nil
}

// NewAttribute builds an attribute record in the emitter's field order:
// table_type, property, db_unique_id, value, version, db_random_id.
func NewAttribute(table, property string, entityID int64, payload block.Value, version int64, randomID uint32) *Attribute {
	fields := block.Record{
		{Name: FieldTable, Value: block.String(table)},
		{Name: FieldProperty, Value: block.String(property)},
		{Name: FieldUniqueID, Value: block.LargeInt(entityID)},
		{Name: FieldValue, Value: payload},
		{Name: FieldVersion, Value: block.Int(version)},
		{Name: FieldRandomID, Value: block.Unsigned(randomID)},
	}
	return &Attribute{
		base:     base{name: BlockName, fields: fields, randomID: randomID, hasRandom: true},
		EntityID: entityID,
	}
}

// NewCreate builds a CreateRecord. extra leaves are placed in the value
// record after the minted db_unique_id.
func NewCreate(table string, containerID, entityID int64, version int64, randomID uint32, extra ...block.Field) *Create {
	payload := make(block.Record, 0, len(extra)+1)
	payload = append(payload, block.Field{Name: FieldUniqueID, Value: block.LargeInt(entityID)})
	payload = append(payload, extra...)

	fields := block.Record{
		{Name: FieldTable, Value: block.String(table)},
		{Name: FieldProperty, Value: block.String(PropertyCreate)},
		{Name: FieldUniqueID, Value: block.LargeInt(containerID)},
		{Name: FieldValue, Value: payload},
		{Name: FieldVersion, Value: block.Int(version)},
		{Name: FieldRandomID, Value: block.Unsigned(randomID)},
	}
	return &Create{
		base:        base{name: BlockName, fields: fields, randomID: randomID, hasRandom: true},
		ContainerID: containerID,
		EntityID:    entityID,
	}
}

// Hash returns the content hash of the record as currently encoded.
func Hash(r Record) (string, error) {
	return block.Hash(r.Block())
}
