package uorm

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ModelState is the position of a model in the submodel life cycle
type ModelState int

const (
	// StateStandalone is a plain model without discriminator
	StateStandalone ModelState = iota
	// StateAbstract is the root of a submodel family, it owns the registry
	StateAbstract
	// StateUnregistered is a concrete submodel not (yet) known to its root
	StateUnregistered
	// StateRegistered is a concrete submodel reachable through decode dispatch
	StateRegistered
)

func (s ModelState) String() string {
	switch s {
	case StateStandalone:
		return "standalone"
	case StateAbstract:
		return "abstract"
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// Model is the schema of a kind of record plus its place in a submodel family.
// Models are immutable after construction and safe for concurrent use.
type Model struct {
	schema   Schema
	submodel string    // own discriminator, empty for standalone and abstract models
	family   bool      // rows carry a discriminator
	root     *Model    // abstract root, self for the root, nil for standalone models
	registry *Registry // only set on the abstract root
}

// NewModel creates a standalone model
func NewModel(schema Schema) (*Model, error) {
	schema, err := schema.normalize()
	if err != nil {
		return nil, err
	}
	return &Model{schema: schema}, nil
}

// NewAbstractModel creates the root of a submodel family. It cannot create new
// records; its collections see the rows of all submodels.
func NewAbstractModel(schema Schema) (*Model, error) {
	schema, err := schema.normalize()
	if err != nil {
		return nil, err
	}
	m := &Model{schema: schema, family: true, registry: NewRegistry()}
	m.root = m
	return m, nil
}

// Define creates a concrete submodel of the abstract root m with the discriminator name
// and optional extra fields. The submodel is not registered.
func (m *Model) Define(name string, extra ...Field) (*Model, error) {
	if m.State() != StateAbstract {
		return nil, integrityError("%s: submodels can only be defined on an abstract model (state %s)", m.schema.Collection, m.State())
	}
	if name == "" {
		return nil, integrityError("%s: submodel name is empty", m.schema.Collection)
	}

	schema := m.schema
	schema.Fields = append(append([]Field{}, m.schema.Fields...), extra...)
	schema, err := schema.normalize()
	if err != nil {
		return nil, err
	}

	return &Model{schema: schema, submodel: name, family: true, root: m}, nil
}

// Register makes the concrete submodel sub reachable through decode dispatch
func (m *Model) Register(sub *Model) error {
	if err := m.checkRegistrar(); err != nil {
		return err
	}
	if sub == nil || sub.root != m || sub.submodel == "" {
		return integrityError("%s: only concrete submodels defined on this model can be registered", m.schema.Collection)
	}
	return m.registry.Register(sub.submodel, func(bson.M) (*Model, error) { return sub, nil }, sub)
}

// RegisterSubmodel registers a constructor for the discriminator name
func (m *Model) RegisterSubmodel(name string, ctor Constructor) error {
	if err := m.checkRegistrar(); err != nil {
		return err
	}
	return m.registry.Register(name, ctor, nil)
}

// Submodel defines and registers a concrete submodel in one step
func (m *Model) Submodel(name string, extra ...Field) (*Model, error) {
	sub, err := m.Define(name, extra...)
	if err != nil {
		return nil, err
	}
	if err := m.Register(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (m *Model) checkRegistrar() error {
	switch {
	case m.submodel != "":
		return integrityError("%s: submodel %s cannot register submodels", m.schema.Collection, m.submodel)
	case !m.family:
		return integrityError("%s: standalone models have no submodels", m.schema.Collection)
	}
	return nil
}

// State returns the life cycle state of the model
func (m *Model) State() ModelState {
	switch {
	case !m.family:
		return StateStandalone
	case m.submodel == "":
		return StateAbstract
	case m.root.registry.Contains(m):
		return StateRegistered
	default:
		return StateUnregistered
	}
}

// Schema returns the normalized schema
func (m *Model) Schema() Schema { return m.schema }

// Collection returns the name of the physical collection
func (m *Model) Collection() string { return m.schema.Collection }

// SubmodelName returns the discriminator of a concrete submodel, empty otherwise
func (m *Model) SubmodelName() string { return m.submodel }

// Root returns the abstract root of the family, nil for standalone models
func (m *Model) Root() *Model { return m.root }

// Registry returns the registry of the family, nil for standalone models
func (m *Model) Registry() *Registry {
	if m.root == nil {
		return nil
	}
	return m.root.registry
}

func (m *Model) isConcrete() bool { return m.family && m.submodel != "" }

func (m *Model) declares(name string) bool {
	_, ok := m.schema.field(name)
	return ok
}

func (m *Model) String() string {
	if m.submodel != "" {
		return fmt.Sprintf("%s[%s]", m.schema.Collection, m.submodel)
	}
	return m.schema.Collection
}
