// Package script renders and parses env-config.js, the browser-side file that
// assigns the Firebase web config to a global namespace.
package script

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/template"

	"webenv/internal/envconfig"
)

const (
	DefaultNamespace = "window.ENV"
	DefaultFileName  = "env-config.js"
)

var (
	ErrInvalidNamespace = errors.New("invalid script namespace")
	ErrNoAssignment     = errors.New("no namespace assignment found in script")
	ErrMalformedObject  = errors.New("malformed config object in script")
)

var namespacePattern = regexp.MustCompile(`^[A-Za-z_$][\w$]*(\.[A-Za-z_$][\w$]*)*$`)

// Options control how the script is rendered.
type Options struct {
	Namespace string // defaults to window.ENV
	FileName  string // named in the header and in the console message
	Origin    string // where the values came from, shown in the header
	Quiet     bool   // omit the console.log confirmation
}

func (o Options) withDefaults() Options {
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.FileName == "" {
		o.FileName = DefaultFileName
	}
	return o
}

type line struct {
	Key   string
	Value string
	Sep   string
}

type view struct {
	Options
	Lines       []line
	LogLabel    string
	Description string
	CopyStep    string
	Target      string
}

var scriptTemplate = template.Must(template.New("env-config").Parse(`// {{.FileName}}
// {{.Description}}
{{- if .Origin}}
// Generated from {{.Origin}}.
{{- end}}
//
// SETUP INSTRUCTIONS:
// 1. {{.CopyStep}}
// 2. Replace the placeholder values with your actual Firebase config
// 3. NEVER commit {{.Target}} to version control!

{{.Namespace}} = {
{{- range .Lines}}
    {{.Key}}: {{.Value}}{{.Sep}}
{{- end}}
};
{{- if not .Quiet}}

console.log('✅ Firebase config loaded from {{.LogLabel}}');
{{- end}}
`))

const exampleSuffix = ".example.js"

// header fills in the setup instructions. An example file points at the
// local copy it should become, a local copy points back at its example.
func (v *view) header(fileName string) {
	if base, ok := strings.CutSuffix(fileName, exampleSuffix); ok {
		v.Target = base + ".js"
		v.Description = "Example configuration file for local development"
		v.CopyStep = "Copy this file to " + v.Target + " (or run `webenv init`)"
		return
	}
	v.Target = fileName
	v.Description = "Firebase web config for local development"
	v.CopyStep = "Copy " + strings.TrimSuffix(fileName, ".js") + exampleSuffix + " to " + fileName + " (or run `webenv init`)"
}

// Render writes the script for cfg to w.
func Render(w io.Writer, cfg envconfig.FirebaseConfig, opts Options) error {
	opts = opts.withDefaults()
	if !namespacePattern.MatchString(opts.Namespace) {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, opts.Namespace)
	}

	fields := cfg.Fields()
	v := view{
		Options: opts,
		Lines:   make([]line, 0, len(fields)),
	}
	v.FileName = commentSafe(opts.FileName)
	v.Origin = commentSafe(opts.Origin)
	v.header(v.FileName)
	v.LogLabel = jsSingleQuoted.Replace(v.Target)

	for i, f := range fields {
		quoted, err := quote(f.Value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", f.Key, err)
		}
		sep := ","
		if i == len(fields)-1 {
			sep = ""
		}
		v.Lines = append(v.Lines, line{Key: f.Key, Value: quoted, Sep: sep})
	}

	if err := scriptTemplate.Execute(w, v); err != nil {
		return fmt.Errorf("failed to render script: %w", err)
	}
	return nil
}

// Bytes renders the script into memory.
func Bytes(cfg envconfig.FirebaseConfig, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, cfg, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// quote produces a JavaScript string literal. encoding/json escapes <, > and &
// as well as U+2028/U+2029, so the output is safe inside a <script> element.
func quote(s string) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var jsSingleQuoted = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "<", `\x3c`)

func commentSafe(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
