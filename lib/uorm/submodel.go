package uorm

import (
	"maps"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// preprocess narrows a query to the rows of a concrete submodel. The own discriminator
// wins over one given by the caller. Abstract and standalone models see all rows.
func (c *Collection) preprocess(query bson.M) bson.M {
	q := make(bson.M, len(query)+1)
	maps.Copy(q, query)
	if c.model.isConcrete() {
		q[submodelField] = c.model.submodel
	}
	return q
}

// decode turns a loaded row into a record of the model selected by its discriminator
func (c *Collection) decode(row bson.M) (*Record, error) {
	m := c.model
	if !m.family {
		return newRecord(c, row, false)
	}

	got, ok := row[submodelField]
	if !ok || got == nil {
		return nil, &MissingSubmodel{Collection: m.schema.Collection, ID: row[idField]}
	}

	reg := m.Registry()
	if reg.Len() == 0 {
		return newRecord(c, row, false)
	}

	name, _ := got.(string)
	ctor, ok := reg.Lookup(name)
	if !ok {
		if m.isConcrete() && name == m.submodel {
			return newRecord(c, row, false)
		}
		return nil, &UnknownSubmodel{Collection: m.schema.Collection, Name: got}
	}

	target, err := ctor(row)
	if err != nil {
		return nil, err
	}
	if target == nil || target.root != m.root {
		return nil, integrityError("%s: constructor for %q returned a model of another family", m.schema.Collection, name)
	}
	return newRecord(c.view(target), row, false)
}
