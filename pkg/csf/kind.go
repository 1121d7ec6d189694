package csf

// ExportKind classifies how a story export was written in its file.
type ExportKind int

const (
	// DirectExport is a plain function or arrow export.
	DirectExport ExportKind = iota
	// BoundTemplate is `Template.bind({})`, whose args are set afterwards.
	BoundTemplate
	// ObjectForm is an object story carrying args, render, play, etc.
	ObjectForm
)

func (k ExportKind) String() string {
	switch k {
	case DirectExport:
		return "direct"
	case BoundTemplate:
		return "bound-template"
	case ObjectForm:
		return "object"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k ExportKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
