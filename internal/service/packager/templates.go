package packager

import (
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
)

// manifestTemplate renders package.xml. Indentation is tabs and there is no
// trailing newline; the platform compares members against archive paths.
const manifestTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<Package xmlns="http://soap.sforce.com/2006/04/metadata">
	<types>
{{- range .Members }}
		<members>{{ xml . }}</members>
{{- end }}
		<name>{{ xml .TypeName }}</name>
	</types>
	<version>{{ .Version | trim }}</version>
</Package>`

// descriptorTemplate renders the -meta.xml companion of one class.
const descriptorTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<ApexClass xmlns="http://soap.sforce.com/2006/04/metadata">
	<apiVersion>{{ . | trim }}</apiVersion>
</ApexClass>`

// allowedSprigFuncs is the subset of sprig the templates may call.
//
//nolint:gochecknoglobals // Read-only lookup table.
var allowedSprigFuncs = []string{"trim", "upper", "lower", "join", "default"}

//nolint:gochecknoglobals // Parsed once; templates are safe for concurrent use.
var (
	manifestTmpl   = mustParse("package.xml", manifestTemplate)
	descriptorTmpl = mustParse("meta.xml", descriptorTemplate)
)

func funcMap() template.FuncMap {
	all := sprig.TxtFuncMap()

	funcs := make(template.FuncMap, len(allowedSprigFuncs)+1)
	for _, name := range allowedSprigFuncs {
		funcs[name] = all[name]
	}

	funcs["xml"] = escapeXML

	return funcs
}

func mustParse(name, content string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=error").Funcs(funcMap()).Parse(content))
}

func escapeXML(s string) (string, error) {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}

	return b.String(), nil
}

// BuildManifest lists every artifact's logical name, in input order, under
// the ApexClass type.
func BuildManifest(artifacts []deploy.ArtifactRef) (deploy.Manifest, error) {
	if len(artifacts) == 0 {
		return deploy.Manifest{}, &deploy.ArtifactError{Reason: "no artifacts to deploy"}
	}

	members := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if a.LogicalName == "" {
			return deploy.Manifest{}, &deploy.ArtifactError{
				Reason: fmt.Sprintf("artifact %q has an empty logical name", a.SourcePath),
			}
		}

		members = append(members, a.LogicalName)
	}

	return deploy.Manifest{
		Members:  members,
		TypeName: deploy.ApexClassType,
		Version:  deploy.ManifestAPIVersion,
	}, nil
}

// RenderManifest returns the package.xml text of m.
func RenderManifest(m deploy.Manifest) (string, error) {
	var b strings.Builder
	if err := manifestTmpl.Execute(&b, m); err != nil {
		return "", fmt.Errorf("render manifest: %w", err)
	}

	return b.String(), nil
}

// RenderDescriptor returns the -meta.xml text for the given API version.
func RenderDescriptor(apiVersion string) (string, error) {
	var b strings.Builder
	if err := descriptorTmpl.Execute(&b, apiVersion); err != nil {
		return "", fmt.Errorf("render descriptor: %w", err)
	}

	return b.String(), nil
}
