package envconfig

// Source identifies the layer a field value was taken from.
type Source int

// Sources ordered by precedence, lowest first.
const (
	SourceNone Source = iota
	SourceExample
	SourceLocal
	SourceYAML
	SourceDotEnv
	SourceEnvironment
)

// String returns the string representation of the source
func (s Source) String() string {
	switch s {
	case SourceExample:
		return "example"
	case SourceLocal:
		return "local"
	case SourceYAML:
		return "yaml"
	case SourceDotEnv:
		return "dotenv"
	case SourceEnvironment:
		return "environment"
	default:
		return "none"
	}
}

// MarshalText lets sources appear by name in JSON and logs.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Loaded is a config together with the source of each field.
type Loaded struct {
	Config  FirebaseConfig    `json:"config"`
	Sources map[string]Source `json:"sources"`
	Origin  string            `json:"origin"` // file the winning layer was read from, if any
}

// Primary returns the highest-precedence source that contributed a value.
func (l Loaded) Primary() Source {
	best := SourceNone
	for _, s := range l.Sources {
		if s > best {
			best = s
		}
	}
	return best
}
