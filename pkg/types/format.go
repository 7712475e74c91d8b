package types

// Format selects the column schema of the emitted node and edge files.
type Format string

const (
	// FormatGephi is the Gephi spreadsheet import layout (Id/Label, Source/Target).
	FormatGephi Format = "gephi"
	// FormatKumu is the Kumu import layout (Label, From/To).
	FormatKumu Format = "kumu"
)

// DefaultFormat is used whenever a caller supplies no or an unknown format.
const DefaultFormat = FormatGephi

// Formats lists the recognized output formats.
func Formats() []Format {
	return []Format{FormatGephi, FormatKumu}
}

// Valid reports whether f is a recognized format.
func (f Format) Valid() bool {
	return f == FormatGephi || f == FormatKumu
}

func (f Format) String() string {
	return string(f)
}
