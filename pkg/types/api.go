package types

// APIDescription is the normalized view of an uploaded spec document.
type APIDescription struct {
	Title       string     `json:"title" yaml:"title"`
	Version     string     `json:"version" yaml:"version"`
	Description string     `json:"description" yaml:"description"`
	BaseURL     string     `json:"base_url" yaml:"base_url"`
	Endpoints   []Endpoint `json:"endpoints" yaml:"endpoints"`
	Schemas     []Schema   `json:"schemas" yaml:"schemas"`
}

// Endpoint is one (path, method) pair in source order.
type Endpoint struct {
	Method     string      `json:"method" yaml:"method"`
	Path       string      `json:"path" yaml:"path"`
	Summary    string      `json:"summary,omitempty" yaml:"summary,omitempty"`
	Parameters []Parameter `json:"parameters" yaml:"parameters"`
	Responses  []Response  `json:"responses" yaml:"responses"`
}

// Parameter fields other than Name are empty when the document omits them.
type Parameter struct {
	Name     string `json:"name" yaml:"name"`
	In       string `json:"in,omitempty" yaml:"in,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Response is a declared status code. Description falls back to Code.
type Response struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
}

// Schema is a named data model.
type Schema struct {
	Name       string     `json:"name" yaml:"name"`
	Properties []Property `json:"properties" yaml:"properties"`
}

// Property is one schema field.
type Property struct {
	Name   string `json:"name" yaml:"name"`
	Type   string `json:"type" yaml:"type"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// ParameterNames returns parameter names in order, keeping empty names.
func (e Endpoint) ParameterNames() []string {
	out := make([]string, 0, len(e.Parameters))
	for _, p := range e.Parameters {
		out = append(out, p.Name)
	}
	return out
}

// ResponseCodes returns the declared status codes in order.
func (e Endpoint) ResponseCodes() []string {
	out := make([]string, 0, len(e.Responses))
	for _, r := range e.Responses {
		out = append(out, r.Code)
	}
	return out
}
