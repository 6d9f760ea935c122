package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Decode maps a document onto a typed struct through its JSON shape.
func Decode(doc Document, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// normalize returns a deep copy of doc reduced to JSON primitives.
func normalize(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	out := Document{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// valuesEqual compares two field values after reducing both to JSON primitives.
func valuesEqual(a, b any) bool {
	na, errA := normalizeValue(a)
	nb, errB := normalizeValue(b)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func matchesField(doc Document, field string, value any) bool {
	got, ok := doc[field]
	if !ok {
		return value == nil
	}
	return valuesEqual(got, value)
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func withID(doc Document, id string) Document {
	out := copyDocument(doc)
	out[IDField] = id
	return out
}

func stripID(doc Document) Document {
	out := copyDocument(doc)
	delete(out, IDField)
	return out
}
