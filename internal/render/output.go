package render

// Output is either *JSONPayload or *HTMLContext.
type Output interface {
	isOutput()
}

// JSONPayload answers programmatic requests.
type JSONPayload struct {
	Component string         `json:"component"`
	Props     map[string]any `json:"props"`
	URL       string         `json:"url"`
	Version   string         `json:"version"`
}

// HTMLContext is handed to the page template. Scripts, Styles, HTML and
// Head are markup; PropsJSON is the serialized props.
type HTMLContext struct {
	Component string
	PropsJSON string
	Scripts   string
	Styles    string
	HTML      string
	Head      string
	Template  string
}

func (*JSONPayload) isOutput() {}
func (*HTMLContext) isOutput() {}

// Options are per-call rendering options.
type Options struct {
	// Template overrides DefaultTemplate.
	Template string
	// SSR set to false skips server-side rendering for this call. nil means
	// "not specified" and behaves like true.
	SSR *bool
}

// WithoutSSR is Options{SSR: false}.
func WithoutSSR() Options {
	off := false
	return Options{SSR: &off}
}

func (o Options) ssrAllowed() bool { return o.SSR == nil || *o.SSR }

func (o Options) template() string {
	if o.Template != "" {
		return o.Template
	}
	return DefaultTemplate
}
