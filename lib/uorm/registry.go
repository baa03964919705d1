package uorm

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Constructor picks the model a loaded row is decoded with. It receives the raw row,
// so the choice may depend on more than the discriminator.
type Constructor func(row bson.M) (*Model, error)

// Registry maps discriminators to constructors. It is owned by the abstract root of a
// submodel family and shared by all shards.
type Registry struct {
	ctors  *xsync.MapOf[string, Constructor]
	models *xsync.MapOf[*Model, string]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		ctors:  xsync.NewMapOf[string, Constructor](),
		models: xsync.NewMapOf[*Model, string](),
	}
}

// Register adds a constructor for name. model is the model the constructor stands for,
// nil for factories. A name and a model can each be registered only once.
func (r *Registry) Register(name string, ctor Constructor, model *Model) error {
	if name == "" {
		return integrityError("cannot register an empty submodel name")
	}
	if ctor == nil {
		return integrityError("submodel %s: constructor is nil", name)
	}

	if model != nil {
		if prev, loaded := r.models.LoadOrStore(model, name); loaded {
			return integrityError("model is already registered as submodel %s", prev)
		}
	}
	if _, loaded := r.ctors.LoadOrStore(name, ctor); loaded {
		if model != nil {
			r.models.Delete(model)
		}
		return integrityError("submodel %s is already registered", name)
	}
	return nil
}

// Lookup returns the constructor of name
func (r *Registry) Lookup(name string) (Constructor, bool) {
	return r.ctors.Load(name)
}

// Contains reports whether model has been registered
func (r *Registry) Contains(model *Model) bool {
	_, ok := r.models.Load(model)
	return ok
}

// Len returns the number of registered names
func (r *Registry) Len() int {
	return r.ctors.Size()
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, r.ctors.Size())
	r.ctors.Range(func(name string, _ Constructor) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}
