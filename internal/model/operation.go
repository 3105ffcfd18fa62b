package model

// Operation is a single named image transform with its parameters.
// The parameter map is copied on construction and must not be mutated
// afterwards; the effect registry resolves Kind to an executable transform.
type Operation struct {
	Kind   string            `json:"kind"`   // "resize", "grayscale", "watermark", ...
	Params map[string]string `json:"params"` // e.g., width/height, sigma, watermark text
}

// NewOperation builds an Operation with its own copy of the parameter map.
func NewOperation(kind string, params map[string]string) Operation {
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}

	return Operation{Kind: kind, Params: cp}
}

// Param returns the named parameter or the empty string when absent.
func (o Operation) Param(key string) string {
	return o.Params[key]
}

// Clone returns a deep copy of the operation.
func (o Operation) Clone() Operation {
	return NewOperation(o.Kind, o.Params)
}
